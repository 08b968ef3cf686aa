// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/motiveme/motiveme/internal/auth"
	"github.com/motiveme/motiveme/internal/auth/authtest"
	"github.com/motiveme/motiveme/internal/auth/postgres"
	"github.com/motiveme/motiveme/internal/session"
)

var _ = Describe("Repositories", func() {
	var (
		ctx   context.Context
		users *postgres.UserRepository
		creds *postgres.CredentialRepository
		tx    *postgres.Transactor
	)

	BeforeEach(func() {
		ctx = env.ctx
		truncate()
		users = postgres.NewUserRepository(env.pool)
		creds = postgres.NewCredentialRepository(env.pool)
		tx = postgres.NewTransactor(env.pool)
	})

	createAccount := func(email string) *auth.User {
		user, err := auth.NewUser(email, "Test")
		Expect(err).NotTo(HaveOccurred())
		cred, err := auth.NewCredential(user.ID, user.Email, "$argon2id$hash")
		Expect(err).NotTo(HaveOccurred())
		Expect(tx.InTransaction(ctx, func(ctx context.Context) error {
			if err := users.Create(ctx, user); err != nil {
				return err
			}
			return creds.Create(ctx, cred)
		})).To(Succeed())
		return user
	}

	It("round-trips a user with profile defaults", func() {
		user := createAccount("a@x.com")

		got, err := users.GetByID(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Email).To(Equal("a@x.com"))
		Expect(got.Points).To(BeZero())
		Expect(got.Badges).To(BeEmpty())
		Expect(got.Preferences).To(BeEmpty())
		Expect(got.CreatedAt).To(BeTemporally("==", user.CreatedAt))
	})

	It("updates the profile", func() {
		user := createAccount("a@x.com")
		user.Points = 10
		user.Badges = []any{"starter"}
		user.Stats = map[string]any{"streak": float64(2)}
		Expect(users.Update(ctx, user)).To(Succeed())

		got, err := users.GetByID(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Points).To(Equal(10))
		Expect(got.Badges).To(Equal([]any{"starter"}))
		Expect(got.Stats).To(Equal(map[string]any{"streak": float64(2)}))
	})

	It("reports a duplicate email as a conflict and rolls back", func() {
		createAccount("a@x.com")

		dup, err := auth.NewUser("a@x.com", "Other")
		Expect(err).NotTo(HaveOccurred())
		err = users.Create(ctx, dup)
		Expect(auth.KindOf(err)).To(Equal(auth.KindConflict))

		_, err = users.GetByID(ctx, dup.ID)
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})

	It("rejects a credential without a user", func() {
		cred, err := auth.NewCredential(uuid.New(), "ghost@x.com", "$argon2id$hash")
		Expect(err).NotTo(HaveOccurred())
		err = creds.Create(ctx, cred)
		Expect(err).To(HaveOccurred())
		Expect(auth.KindOf(err)).To(Equal(auth.KindInternal))
	})

	It("cascades user deletion to credentials and sessions", func() {
		user := createAccount("a@x.com")
		sessions := postgres.NewSessionStore(env.pool)
		now := time.Now()
		Expect(sessions.Save(ctx, "key", session.Record{
			UserID: user.ID.String(), Email: user.Email, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		}, time.Hour)).To(Succeed())

		Expect(users.Delete(ctx, user.ID)).To(Succeed())

		_, err := creds.GetByEmail(ctx, "a@x.com")
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		_, err = sessions.Load(ctx, "key")
		Expect(errors.Is(err, session.ErrNotFound)).To(BeTrue())
	})
})

var _ = Describe("SessionStore", func() {
	var (
		ctx   context.Context
		store *postgres.SessionStore
		user  *auth.User
	)

	BeforeEach(func() {
		ctx = env.ctx
		truncate()
		store = postgres.NewSessionStore(env.pool)
		var err error
		user, err = auth.NewUser("s@x.com", "S")
		Expect(err).NotTo(HaveOccurred())
		Expect(postgres.NewUserRepository(env.pool).Create(ctx, user)).To(Succeed())
	})

	It("slides expiry on repeated saves", func() {
		now := time.Now().UTC().Truncate(time.Microsecond)
		rec := session.Record{UserID: user.ID.String(), Email: user.Email, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
		Expect(store.Save(ctx, "key", rec, time.Hour)).To(Succeed())

		rec.ExpiresAt = now.Add(2 * time.Hour)
		Expect(store.Save(ctx, "key", rec, 2*time.Hour)).To(Succeed())

		got, err := store.Load(ctx, "key")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UserID).To(Equal(user.ID.String()))
		Expect(got.ExpiresAt).To(BeTemporally("==", rec.ExpiresAt))
	})

	It("hides and purges expired rows", func() {
		now := time.Now()
		Expect(store.Save(ctx, "old", session.Record{
			UserID: user.ID.String(), Email: user.Email, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		}, time.Hour)).To(Succeed())

		_, err := store.Load(ctx, "old")
		Expect(errors.Is(err, session.ErrNotFound)).To(BeTrue())

		n, err := store.DeleteExpired(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})
})

var _ = Describe("Signup against PostgreSQL", func() {
	BeforeEach(truncate)

	It("lets exactly one of many concurrent duplicate signups through", func() {
		svc, err := auth.NewAuthService(
			postgres.NewUserRepository(env.pool),
			postgres.NewCredentialRepository(env.pool),
			postgres.NewTransactor(env.pool),
			authtest.NewHasher(),
		)
		Expect(err).NotTo(HaveOccurred())
		manager, err := session.NewManager(postgres.NewSessionStore(env.pool), session.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		const attempts = 8
		kinds := make(chan auth.Kind, attempts)
		var wg sync.WaitGroup
		for range attempts {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				scope := manager.Scope(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/auth/signup", nil))
				_, err := svc.Signup(env.ctx, scope, auth.SignupInput{
					Email: "race@x.com", Password: "password123", Name: "Racer",
				})
				if err == nil {
					kinds <- -1
					return
				}
				kinds <- auth.KindOf(err)
			}()
		}
		wg.Wait()
		close(kinds)

		var ok, conflicts int
		for k := range kinds {
			switch k {
			case -1:
				ok++
			case auth.KindConflict:
				conflicts++
			}
		}
		Expect(ok).To(Equal(1))
		Expect(conflicts).To(Equal(attempts - 1))

		var count int
		Expect(env.pool.QueryRow(env.ctx, `SELECT count(*) FROM users`).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})
})
