package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mkamil/qalam/internal/errs"
	"github.com/mkamil/qalam/internal/model"
	"github.com/mkamil/qalam/internal/repository"
)

type fakeUsers struct {
	byName map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

type fakeLimiter struct {
	allowed     bool
	allowErr    error
	blockOnFail bool

	successes int
	failures  int
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, _ []byte) (bool, time.Duration, error) {
	if f.allowErr != nil {
		return false, 0, f.allowErr
	}
	return f.allowed, 0, nil
}

func (f *fakeLimiter) Success(_ context.Context, _ string, _ []byte) error {
	f.successes++
	return nil
}

func (f *fakeLimiter) Failure(_ context.Context, _ string, _ []byte) (bool, time.Duration, error) {
	f.failures++
	return f.blockOnFail, 0, nil
}

func newAuthForTest(users *fakeUsers, lim *fakeLimiter) *AuthServiceImpl {
	return NewAuthService(users, []byte("test-signing-key"), time.Hour, lim)
}

func TestRegister_CreatesUser(t *testing.T) {
	users := &fakeUsers{}
	svc := newAuthForTest(users, &fakeLimiter{allowed: true})

	id, err := svc.Register(context.Background(), "amira", "pw123456")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := uuid.FromString(id); err != nil {
		t.Fatalf("returned id is not a uuid: %q", id)
	}
	u := users.byName["amira"]
	if u == nil {
		t.Fatalf("user not stored")
	}
	if len(u.PwdHash) == 0 || len(u.SaltAuth) == 0 {
		t.Fatalf("hash/salt must be set")
	}
}

func TestRegister_EmptyInput(t *testing.T) {
	svc := newAuthForTest(&fakeUsers{}, &fakeLimiter{allowed: true})

	if _, err := svc.Register(context.Background(), "", "pw"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	users := &fakeUsers{}
	svc := newAuthForTest(users, &fakeLimiter{allowed: true})

	if _, err := svc.Register(context.Background(), "amira", "pw123456"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "amira", "other"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	users := &fakeUsers{}
	lim := &fakeLimiter{allowed: true}
	svc := newAuthForTest(users, lim)

	if _, err := svc.Register(context.Background(), "amira", "pw123456"); err != nil {
		t.Fatalf("register: %v", err)
	}

	tokens, err := svc.LoginWithIP(context.Background(), "amira", "pw123456", "10.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tokens.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	if lim.successes != 1 {
		t.Fatalf("limiter success should be recorded once, got %d", lim.successes)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	users := &fakeUsers{}
	lim := &fakeLimiter{allowed: true}
	svc := newAuthForTest(users, lim)

	if _, err := svc.Register(context.Background(), "amira", "pw123456"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.LoginWithIP(context.Background(), "amira", "nope", "10.0.0.1")
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if lim.failures != 1 {
		t.Fatalf("limiter failure should be recorded once, got %d", lim.failures)
	}
}

func TestLogin_UnknownUserLooksLikeWrongPassword(t *testing.T) {
	lim := &fakeLimiter{allowed: true}
	svc := newAuthForTest(&fakeUsers{}, lim)

	_, err := svc.LoginWithIP(context.Background(), "ghost", "pw", "10.0.0.1")
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	svc := newAuthForTest(&fakeUsers{}, &fakeLimiter{allowed: false})

	_, err := svc.LoginWithIP(context.Background(), "amira", "pw", "10.0.0.1")
	if !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestLogin_FailureTripsBlock(t *testing.T) {
	users := &fakeUsers{}
	lim := &fakeLimiter{allowed: true, blockOnFail: true}
	svc := newAuthForTest(users, lim)

	if _, err := svc.Register(context.Background(), "amira", "pw123456"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.LoginWithIP(context.Background(), "amira", "nope", "10.0.0.1")
	if !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited once the block trips, got %v", err)
	}
}
