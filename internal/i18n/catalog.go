// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

// Package i18n renders message keys into localized text.
package i18n

import (
	"embed"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when no configured or requested locale matches.
const DefaultLocale = "fr"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// catalogFile is the on-disk layout of one locale.
type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds the messages of every loaded locale.
type Bundle struct {
	fallback  language.Tag
	supported []language.Tag
	matcher   language.Matcher
	messages  map[language.Tag]map[string]string
	catalog   *catalog.Builder
}

// Load reads the embedded catalogs. defaultLocale must be one of them.
func Load(defaultLocale string) (*Bundle, error) {
	return LoadFS(embeddedLocales, defaultLocale)
}

// LoadFS reads locales/*.yaml from fsys.
func LoadFS(fsys fs.FS, defaultLocale string) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, oops.Code("I18N_LOAD_FAILED").Wrap(err)
	}
	if len(paths) == 0 {
		return nil, oops.Code("I18N_LOAD_FAILED").Errorf("no catalog files found")
	}
	slices.Sort(paths)

	b := &Bundle{
		messages: make(map[language.Tag]map[string]string),
		catalog:  catalog.NewBuilder(),
	}
	for _, p := range paths {
		if err := b.addFile(fsys, p); err != nil {
			return nil, err
		}
	}

	if defaultLocale == "" {
		defaultLocale = DefaultLocale
	}
	fallback, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, oops.Code("I18N_INVALID_LOCALE").With("locale", defaultLocale).Wrap(err)
	}
	if _, ok := b.messages[fallback]; !ok {
		return nil, oops.Code("I18N_INVALID_LOCALE").
			With("locale", defaultLocale).
			Errorf("default locale %q has no catalog", defaultLocale)
	}
	b.fallback = fallback

	// The matcher prefers its first entry when nothing matches.
	others := slices.DeleteFunc(slices.Collect(maps.Keys(b.messages)), func(t language.Tag) bool {
		return t == fallback
	})
	slices.SortFunc(others, func(x, y language.Tag) int { return strings.Compare(x.String(), y.String()) })
	b.supported = append([]language.Tag{fallback}, others...)
	b.matcher = language.NewMatcher(b.supported)
	return b, nil
}

func (b *Bundle) addFile(fsys fs.FS, p string) error {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return oops.Code("I18N_LOAD_FAILED").With("file", p).Wrap(err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return oops.Code("I18N_LOAD_FAILED").With("file", p).Wrap(err)
	}

	name := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if file.Locale != name {
		return oops.Code("I18N_LOAD_FAILED").
			With("file", p).
			Errorf("locale %q must match file name %q", file.Locale, name)
	}
	tag, err := language.Parse(file.Locale)
	if err != nil {
		return oops.Code("I18N_INVALID_LOCALE").With("file", p).Wrap(err)
	}
	if _, dup := b.messages[tag]; dup {
		return oops.Code("I18N_LOAD_FAILED").With("file", p).Errorf("locale %q defined twice", file.Locale)
	}

	msgs := make(map[string]string, len(file.Messages))
	for key, text := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return oops.Code("I18N_LOAD_FAILED").With("file", p).Errorf("blank message key")
		}
		if err := b.catalog.SetString(tag, key, text); err != nil {
			return oops.Code("I18N_LOAD_FAILED").With("file", p).With("key", key).Wrap(err)
		}
		msgs[key] = text
	}
	b.messages[tag] = msgs
	return nil
}

// Default returns the fallback locale.
func (b *Bundle) Default() language.Tag {
	return b.fallback
}

// Supported returns the loaded locales, fallback first.
func (b *Bundle) Supported() []language.Tag {
	return slices.Clone(b.supported)
}

// Match picks the best supported locale for an Accept-Language header value.
// An empty or malformed header yields the fallback.
func (b *Bundle) Match(acceptLanguage string) language.Tag {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return b.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.fallback
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return b.fallback
	}
	return b.supported[idx]
}

// Message renders key in locale, trying the fallback locale next. Unknown
// keys are returned as is.
func (b *Bundle) Message(locale language.Tag, key string, args ...any) string {
	for _, tag := range []language.Tag{locale, b.fallback} {
		if _, ok := b.messages[tag][key]; ok {
			return message.NewPrinter(tag, message.Catalog(b.catalog)).Sprintf(key, args...)
		}
	}
	return key
}
