package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/pkg/crypto"
	"github.com/kesrow/constable/internal/repository"
)

func mustTestTokenID(t *testing.T) string {
	t.Helper()
	id, err := crypto.GenerateSessionTokenID()
	if err != nil {
		t.Fatalf("failed to generate token ID: %v", err)
	}
	return id
}

type sessionFixture struct {
	svc    *SessionService
	users  *mockUserRepo
	tokens *mockTokenRepo
	cache  *mockCache
	user   *domain.User
	clock  time.Time
}

func newSessionFixture(t *testing.T, cache *mockCache) *sessionFixture {
	t.Helper()

	users := newMockUserRepo()
	tokens := newMockTokenRepo()

	user := domain.NewUser("alice", "hash")
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	var cacheIface repository.Cache
	if cache != nil {
		cacheIface = cache
	}

	f := &sessionFixture{
		svc:    NewSessionService(tokens, users, cacheIface, time.Hour, zerolog.Nop()),
		users:  users,
		tokens: tokens,
		cache:  cache,
		user:   user,
		clock:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *sessionFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func TestSessionService_IssueAndValidate(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()

	out, err := f.svc.Issue(ctx, f.user)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if len(out.Token.ID) != 64 {
		t.Errorf("token ID length = %d, want 64", len(out.Token.ID))
	}
	if out.ExpiresIn != time.Hour {
		t.Errorf("ExpiresIn = %v, want %v", out.ExpiresIn, time.Hour)
	}
	if want := f.clock.Add(time.Hour); !out.Token.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", out.Token.ExpiresAt, want)
	}

	user, err := f.svc.Validate(ctx, out.Token.ID)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if user.ID != f.user.ID {
		t.Errorf("Validate() user ID = %d, want %d", user.ID, f.user.ID)
	}
}

func TestSessionService_Issue_InactiveUser(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.user.IsActive = false

	_, err := f.svc.Issue(context.Background(), f.user)
	if !errors.Is(err, domain.ErrUserInactive) {
		t.Fatalf("Issue() error = %v, want ErrUserInactive", err)
	}
}

func TestSessionService_Validate_Expired(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()

	out, err := f.svc.Issue(ctx, f.user)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	// One second before expiry the token is still good.
	f.advance(time.Hour - time.Second)
	if _, err := f.svc.Validate(ctx, out.Token.ID); err != nil {
		t.Fatalf("Validate() before expiry failed: %v", err)
	}

	f.advance(2 * time.Second)
	_, err = f.svc.Validate(ctx, out.Token.ID)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("Validate() error = %v, want ErrTokenExpired", err)
	}
}

func TestSessionService_Validate_Malformed(t *testing.T) {
	f := newSessionFixture(t, nil)

	for _, token := range []string{"", "short", "Z" + string(make([]byte, 63))} {
		if _, err := f.svc.Validate(context.Background(), token); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("Validate(%q) error = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestSessionService_Validate_Unknown(t *testing.T) {
	f := newSessionFixture(t, nil)

	_, err := f.svc.Validate(context.Background(), mustTestTokenID(t))
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("Validate() error = %v, want ErrTokenInvalid", err)
	}
}

func TestSessionService_Validate_InactiveOwner(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()

	out, err := f.svc.Issue(ctx, f.user)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	if err := f.users.SetActive(ctx, f.user.ID, false); err != nil {
		t.Fatalf("SetActive() failed: %v", err)
	}

	_, err = f.svc.Validate(ctx, out.Token.ID)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("Validate() error = %v, want ErrTokenInvalid", err)
	}
}

func TestSessionService_Revoke(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()

	out, err := f.svc.Issue(ctx, f.user)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	if err := f.svc.Revoke(ctx, out.Token.ID); err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}
	if _, err := f.svc.Validate(ctx, out.Token.ID); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("Validate() after revoke error = %v, want ErrTokenInvalid", err)
	}

	// Revoking twice is not an error.
	if err := f.svc.Revoke(ctx, out.Token.ID); err != nil {
		t.Fatalf("second Revoke() failed: %v", err)
	}
}

func TestSessionService_Revoke_Unknown(t *testing.T) {
	f := newSessionFixture(t, nil)

	if err := f.svc.Revoke(context.Background(), mustTestTokenID(t)); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("Revoke() error = %v, want ErrTokenInvalid", err)
	}
}

func TestSessionService_CacheServesValidation(t *testing.T) {
	cache := newMockCache()
	f := newSessionFixture(t, cache)
	ctx := context.Background()

	out, err := f.svc.Issue(ctx, f.user)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	// With the token cached, validation must not need the token store.
	f.tokens.getErr = errors.New("token store down")
	if _, err := f.svc.Validate(ctx, out.Token.ID); err != nil {
		t.Fatalf("Validate() from cache failed: %v", err)
	}
}

func TestSessionService_RevokeEvictsCache(t *testing.T) {
	cache := newMockCache()
	f := newSessionFixture(t, cache)
	ctx := context.Background()

	out, err := f.svc.Issue(ctx, f.user)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if err := f.svc.Revoke(ctx, out.Token.ID); err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}

	key := repository.CacheKey{}.Token(out.Token.ID)
	if _, ok := cache.entries[key]; ok {
		t.Error("revoked token still present in cache")
	}
	// A stale cached copy must not resurrect the token.
	if _, err := f.svc.Validate(ctx, out.Token.ID); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("Validate() after revoke error = %v, want ErrTokenInvalid", err)
	}
}

func TestSessionService_PurgeExpired(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()

	live := domain.NewSessionToken(mustTestTokenID(t), f.user.ID, time.Now(), time.Hour)
	dead := domain.NewSessionToken(mustTestTokenID(t), f.user.ID, time.Now().Add(-2*time.Hour), time.Hour)

	for _, token := range []*domain.SessionToken{live, dead} {
		if err := f.tokens.Create(ctx, token); err != nil {
			t.Fatalf("failed to seed token: %v", err)
		}
	}

	n, err := f.svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired() deleted %d tokens, want 1", n)
	}
	if _, err := f.tokens.GetByID(ctx, live.ID); err != nil {
		t.Errorf("live token was purged: %v", err)
	}
}
