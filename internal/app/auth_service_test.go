package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fitlog/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	getByUsernameFn func(ctx context.Context, username string) (*domain.User, error)
	getByIDFn       func(ctx context.Context, id int64) (*domain.User, error)
	createFn        func(ctx context.Context, nu domain.NewUser) (*domain.User, error)
	updateProfileFn func(ctx context.Context, id int64, p domain.ProfileUpdate) error
	countFn         func(ctx context.Context) (int, error)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, nu)
	}
	return &domain.User{ID: 1, Username: nu.Username, PasswordHash: nu.PasswordHash, Name: nu.Name, Email: nu.Email}, nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id int64, p domain.ProfileUpdate) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, p)
	}
	return nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	getByTokenFn    func(ctx context.Context, token string) (*domain.Session, error)
	deleteFn        func(ctx context.Context, token string) error
	deleteExpiredFn func(ctx context.Context) error
}

func (m *mockSessionRepo) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	if m.createFn != nil {
		return m.createFn(ctx, userID, token, expiresAt)
	}
	return nil
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) error {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return nil
}

func userWithPassword(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &domain.User{ID: 1, Username: "testuser", PasswordHash: string(hash)}
}

func TestAuthService_Register_Success(t *testing.T) {
	ctx := context.Background()

	var stored domain.NewUser
	users := &mockUserRepo{
		createFn: func(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
			stored = nu
			return &domain.User{ID: 7, Username: nu.Username, PasswordHash: nu.PasswordHash, Name: nu.Name, Email: nu.Email}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{})
	u, err := svc.Register(ctx, "  alice ", "s3cret", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if u.ID != 7 || u.Username != "alice" {
		t.Errorf("unexpected user %+v", u)
	}
	if stored.PasswordHash == "s3cret" || stored.PasswordHash == "" {
		t.Fatal("password must be stored as a hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
			return nil, domain.ErrConflict
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{})
	_, err := svc.Register(context.Background(), "alice", "pw", "", "")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Error("ErrUsernameTaken should wrap domain.ErrConflict")
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{})

	for _, tc := range []struct{ name, username, password string }{
		{"empty username", "", "pw"},
		{"blank username", "   ", "pw"},
		{"empty password", "alice", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.username, tc.password, "", "")
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestAuthService_Register_Closed(t *testing.T) {
	users := &mockUserRepo{
		countFn: func(ctx context.Context) (int, error) { return 1, nil },
		createFn: func(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
			t.Error("Create should not be called when registration is closed")
			return nil, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{}, WithRegistration(false))
	_, err := svc.Register(context.Background(), "alice", "pw", "", "")
	if !errors.Is(err, ErrRegistrationClosed) {
		t.Errorf("expected ErrRegistrationClosed, got %v", err)
	}
}

func TestAuthService_Register_ClosedAllowsFirstUser(t *testing.T) {
	users := &mockUserRepo{
		countFn: func(ctx context.Context) (int, error) { return 0, nil },
	}

	svc := NewAuthService(users, &mockSessionRepo{}, WithRegistration(false))
	if _, err := svc.Register(context.Background(), "admin", "pw", "", ""); err != nil {
		t.Fatalf("expected first user to register, got %v", err)
	}
}

func TestAuthService_Authenticate_SameErrorForUnknownUser(t *testing.T) {
	ctx := context.Background()
	known := userWithPassword(t, "correct")

	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			if username == known.Username {
				return known, nil
			}
			return nil, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{})

	_, wrongPassword := svc.Authenticate(ctx, "testuser", "wrong")
	_, unknownUser := svc.Authenticate(ctx, "ghost", "wrong")

	if wrongPassword != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", wrongPassword)
	}
	if unknownUser != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", unknownUser)
	}
}

func TestAuthService_Authenticate_PasswordlessAccount(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 3, Username: username}, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{})

	if _, err := svc.Authenticate(context.Background(), "sso", ""); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Authenticate_RepoError(t *testing.T) {
	boom := errors.New("db down")
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return nil, boom
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{})

	if _, err := svc.Authenticate(context.Background(), "x", "y"); !errors.Is(err, boom) {
		t.Errorf("expected repository error, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	ctx := context.Background()
	user := userWithPassword(t, "testpass123")

	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return user, nil
		},
	}

	var expires time.Time
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
			if userID != 1 {
				t.Errorf("expected userID 1, got %d", userID)
			}
			if token == "" {
				t.Error("token should not be empty")
			}
			expires = expiresAt
			return nil
		},
	}

	svc := NewAuthService(users, sessions, WithSessionTTL(2*time.Hour))
	token, err := svc.Login(ctx, "testuser", "testpass123", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(token) < 40 {
		t.Errorf("token looks too short: %q", token)
	}
	if d := time.Until(expires); d < 119*time.Minute || d > 2*time.Hour {
		t.Errorf("expected expiry about 2h ahead, got %v", d)
	}
}

func TestAuthService_Login_ReplacesPreviousSession(t *testing.T) {
	user := userWithPassword(t, "pw")
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return user, nil
		},
	}

	var deleted []string
	sessions := &mockSessionRepo{
		deleteFn: func(ctx context.Context, token string) error {
			deleted = append(deleted, token)
			return nil
		},
	}

	svc := NewAuthService(users, sessions)
	token, err := svc.Login(context.Background(), "testuser", "pw", "old-token")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "old-token" {
		t.Errorf("expected old-token to be deleted, got %v", deleted)
	}
	if token == "old-token" {
		t.Error("expected a fresh token")
	}
}

func TestAuthService_Login_InvalidPasswordKeepsSession(t *testing.T) {
	user := userWithPassword(t, "correctpass")
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return user, nil
		},
	}
	sessions := &mockSessionRepo{
		deleteFn: func(ctx context.Context, token string) error {
			t.Error("a failed login must not touch the existing session")
			return nil
		},
		createFn: func(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
			t.Error("a failed login must not create a session")
			return nil
		},
	}

	svc := NewAuthService(users, sessions)
	if _, err := svc.Login(context.Background(), "testuser", "wrongpass", "old"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_TokensAreUnique(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{})
	seen := map[string]bool{}
	for range 50 {
		tok, err := svc.StartSession(context.Background(), 1, "")
		if err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestAuthService_Resolve_Valid(t *testing.T) {
	sessions := &mockSessionRepo{
		getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
			return &domain.Session{Token: tok, UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.User, error) {
			return &domain.User{ID: id, Username: "testuser"}, nil
		},
	}

	svc := NewAuthService(users, sessions)
	user, err := svc.Resolve(context.Background(), "validtoken")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %s", user.Username)
	}
}

func TestAuthService_Resolve_Expired(t *testing.T) {
	deleted := false
	sessions := &mockSessionRepo{
		getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
			return &domain.Session{Token: tok, UserID: 1, ExpiresAt: time.Now().Add(-time.Hour)}, nil
		},
		deleteFn: func(ctx context.Context, tok string) error {
			deleted = true
			return nil
		},
	}

	svc := NewAuthService(&mockUserRepo{}, sessions)
	_, err := svc.Resolve(context.Background(), "expiredtoken")
	if err != ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
	if !errors.Is(err, ErrAuthRequired) {
		t.Error("ErrSessionExpired should wrap ErrAuthRequired")
	}
	if !deleted {
		t.Error("expected session to be deleted")
	}
}

func TestAuthService_Resolve_Missing(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{})

	for _, token := range []string{"", "unknown"} {
		_, err := svc.Resolve(context.Background(), token)
		if !errors.Is(err, ErrAuthRequired) {
			t.Errorf("token %q: expected ErrAuthRequired, got %v", token, err)
		}
	}
}

func TestAuthService_Resolve_DeletedUser(t *testing.T) {
	deleted := false
	sessions := &mockSessionRepo{
		getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
			return &domain.Session{Token: tok, UserID: 9, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		deleteFn: func(ctx context.Context, tok string) error {
			deleted = true
			return nil
		},
	}

	svc := NewAuthService(&mockUserRepo{}, sessions)
	if _, err := svc.Resolve(context.Background(), "orphan"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if !deleted {
		t.Error("expected orphaned session to be deleted")
	}
}

func TestAuthService_Resolve_StoreError(t *testing.T) {
	boom := errors.New("redis unavailable")
	sessions := &mockSessionRepo{
		getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
			return nil, boom
		},
	}

	svc := NewAuthService(&mockUserRepo{}, sessions)
	_, err := svc.Resolve(context.Background(), "tok")
	if !errors.Is(err, boom) {
		t.Errorf("expected store error, got %v", err)
	}
	if errors.Is(err, ErrAuthRequired) {
		t.Error("store failures must not look like a missing login")
	}
}

func TestAuthService_Logout(t *testing.T) {
	var deleted []string
	sessions := &mockSessionRepo{
		deleteFn: func(ctx context.Context, tok string) error {
			deleted = append(deleted, tok)
			return nil
		},
	}

	svc := NewAuthService(&mockUserRepo{}, sessions)
	if err := svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("empty token: %v", err)
	}
	if err := svc.Logout(context.Background(), "tok"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := svc.Logout(context.Background(), "tok"); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("expected two deletes, got %v", deleted)
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	calls := 0
	var got domain.ProfileUpdate
	users := &mockUserRepo{
		updateProfileFn: func(ctx context.Context, id int64, p domain.ProfileUpdate) error {
			calls++
			got = p
			return nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{})

	if err := svc.UpdateProfile(context.Background(), 1, domain.ProfileUpdate{}); err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if calls != 0 {
		t.Fatal("empty update should not reach the repository")
	}

	name := "New Name"
	if err := svc.UpdateProfile(context.Background(), 1, domain.ProfileUpdate{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 1 || got.Name == nil || *got.Name != name || got.Email != nil {
		t.Errorf("unexpected update %+v", got)
	}
}

func TestAuthService_Profile_NotFound(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{})
	if _, err := svc.Profile(context.Background(), 42); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthService_PruneSessions(t *testing.T) {
	called := false
	sessions := &mockSessionRepo{
		deleteExpiredFn: func(ctx context.Context) error {
			called = true
			return nil
		},
	}
	svc := NewAuthService(&mockUserRepo{}, sessions)
	if err := svc.PruneSessions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("expected DeleteExpired to be called")
	}
}

func TestAuthService_ValidateForwardAuth_ExistingUser(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 1, Username: "ssouser"}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{})
	user, err := svc.ValidateForwardAuth(context.Background(), "ssouser")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Username != "ssouser" {
		t.Errorf("expected username 'ssouser', got %s", user.Username)
	}
}

func TestAuthService_ValidateForwardAuth_NewUser(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
			if nu.PasswordHash != "" {
				t.Error("provisioned accounts must not have a password")
			}
			return &domain.User{ID: 2, Username: nu.Username}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{})
	user, err := svc.ValidateForwardAuth(context.Background(), "newssouser")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Username != "newssouser" {
		t.Errorf("expected username 'newssouser', got %s", user.Username)
	}
}

func TestAuthService_ValidateForwardAuth_Empty(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{})
	if _, err := svc.ValidateForwardAuth(context.Background(), ""); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
}

func TestAuthService_LoginWithUser_ProvisioningRace(t *testing.T) {
	var mu sync.Mutex
	lookups := 0
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			mu.Lock()
			defer mu.Unlock()
			lookups++
			if lookups == 1 {
				return nil, nil
			}
			return &domain.User{ID: 5, Username: username}, nil
		},
		createFn: func(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
			return nil, domain.ErrConflict
		},
	}

	var sessionUser int64
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
			sessionUser = userID
			return nil
		},
	}

	svc := NewAuthService(users, sessions)
	if _, err := svc.LoginWithUser(context.Background(), "raced", ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sessionUser != 5 {
		t.Errorf("expected session for user 5, got %d", sessionUser)
	}
}

func TestAuthService_ValidateForwardAuth_RefusesPasswordAccount(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 3, Username: username, PasswordHash: "$2a$10$registered"}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{})
	user, err := svc.ValidateForwardAuth(context.Background(), "victim@corp.example")
	if !errors.Is(err, ErrPasswordAccount) {
		t.Fatalf("expected ErrPasswordAccount, got %v", err)
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected error to wrap domain.ErrConflict, got %v", err)
	}
	if user != nil {
		t.Errorf("expected no user, got %+v", user)
	}
}

func TestAuthService_LoginWithUser_RefusesPasswordAccount(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 3, Username: username, PasswordHash: "$2a$10$registered"}, nil
		},
	}
	created := false
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
			created = true
			return nil
		},
	}

	svc := NewAuthService(users, sessions)
	if _, err := svc.LoginWithUser(context.Background(), "victim@corp.example", ""); !errors.Is(err, ErrPasswordAccount) {
		t.Fatalf("expected ErrPasswordAccount, got %v", err)
	}
	if created {
		t.Error("no session may be created for a password account")
	}
}

func TestAuthService_LoginWithUser_RaceWithRegistration(t *testing.T) {
	lookups := 0
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			lookups++
			if lookups == 1 {
				return nil, nil
			}
			return &domain.User{ID: 9, Username: username, PasswordHash: "$2a$10$registered"}, nil
		},
		createFn: func(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
			return nil, domain.ErrConflict
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{})
	if _, err := svc.LoginWithUser(context.Background(), "raced", ""); !errors.Is(err, ErrPasswordAccount) {
		t.Fatalf("expected ErrPasswordAccount, got %v", err)
	}
}

func TestAuthService_Resolve_ExpiredDeleteFailureStillExpires(t *testing.T) {
	sessions := &mockSessionRepo{
		getByTokenFn: func(ctx context.Context, token string) (*domain.Session, error) {
			return &domain.Session{Token: token, UserID: 1, ExpiresAt: time.Now().Add(-time.Minute)}, nil
		},
		deleteFn: func(ctx context.Context, token string) error {
			return errors.New("store down")
		},
	}

	svc := NewAuthService(&mockUserRepo{}, sessions)
	if _, err := svc.Resolve(context.Background(), "old"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestAuthService_DummyHashFallback(t *testing.T) {
	orig := hashPassword
	t.Cleanup(func() { hashPassword = orig })
	hashPassword = func([]byte, int) ([]byte, error) {
		return nil, errors.New("entropy exhausted")
	}

	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{})
	cost, err := bcrypt.Cost(svc.dummy())
	if err != nil {
		t.Fatalf("fallback hash is not a bcrypt hash: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("expected cost %d, got %d", bcrypt.DefaultCost, cost)
	}

	if _, err := svc.Authenticate(context.Background(), "nobody", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !ConstantTimeCompare("abc", "abc") {
		t.Error("equal strings should match")
	}
	if ConstantTimeCompare("abc", "abd") || ConstantTimeCompare("abc", "ab") {
		t.Error("different strings should not match")
	}
}
