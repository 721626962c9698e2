package service

import (
	"context"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn         func(context.Context, uint) (*models.User, error)
	getByEmailFn      func(context.Context, string) (*models.User, error)
	getByUsernameFn   func(context.Context, string) (*models.User, error)
	getByIdentifierFn func(context.Context, string) (*models.User, error)
	createFn          func(context.Context, *models.User) error
	updateFn          func(context.Context, *models.User) error
	searchFn          func(context.Context, string, uint, int) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return s.getByIdentifierFn(ctx, identifier)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error) {
	return s.searchFn(ctx, query, excludeID, limit)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:         func(context.Context, uint) (*models.User, error) { return &models.User{ID: 1}, nil },
		getByEmailFn:      func(context.Context, string) (*models.User, error) { return nil, nil },
		getByUsernameFn:   func(context.Context, string) (*models.User, error) { return nil, nil },
		getByIdentifierFn: func(context.Context, string) (*models.User, error) { return nil, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateFn: func(context.Context, *models.User) error { return nil },
		searchFn: func(context.Context, string, uint, int) ([]models.User, error) { return nil, nil },
	}
}

// memSessionRepo keeps session rows in a map so rotation semantics can be
// exercised end to end.
type memSessionRepo struct {
	byHash map[string]*models.Session
	nextID uint
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byHash: map[string]*models.Session{}, nextID: 1}
}

func (m *memSessionRepo) Create(_ context.Context, session *models.Session) error {
	session.ID = m.nextID
	m.nextID++
	m.byHash[session.TokenHash] = session
	return nil
}

func (m *memSessionRepo) FindByHash(_ context.Context, tokenHash string) (*models.Session, error) {
	return m.byHash[tokenHash], nil
}

func (m *memSessionRepo) DeleteByHash(_ context.Context, tokenHash string) error {
	delete(m.byHash, tokenHash)
	return nil
}

func (m *memSessionRepo) DeleteAllForUser(_ context.Context, userID uint) error {
	for hash, s := range m.byHash {
		if s.UserID == userID {
			delete(m.byHash, hash)
		}
	}
	return nil
}

func (m *memSessionRepo) PurgeExpired(_ context.Context, userID uint) (int64, error) {
	var purged int64
	now := time.Now()
	for hash, s := range m.byHash {
		if s.UserID == userID && s.ExpiresAt.Before(now) {
			delete(m.byHash, hash)
			purged++
		}
	}
	return purged, nil
}

func testAuthConfig() *config.Config {
	return &config.Config{
		JWTAccessSecret:  "test-access-secret",
		JWTRefreshSecret: "test-refresh-secret",
		SessionHMACKey:   "test-session-hmac-key",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := NewAuthService(noopUserRepo(), newMemSessionRepo(), testAuthConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"short username", RegisterRequest{Username: "ab", Email: "a@b.io", Password: "password1"}},
		{"bad username charset", RegisterRequest{Username: "no spaces", Email: "a@b.io", Password: "password1"}},
		{"bad email", RegisterRequest{Username: "alice", Email: "nope", Password: "password1"}},
		{"short password", RegisterRequest{Username: "alice", Email: "a@b.io", Password: "seven77"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tt.req, ClientMeta{})
			assert.Equal(t, models.CodeValidation, appCode(t, err))
		})
	}
}

func TestRegister_StoresHashNotToken(t *testing.T) {
	sessions := newMemSessionRepo()
	svc := NewAuthService(noopUserRepo(), sessions, testAuthConfig())

	user, pair, err := svc.Register(context.Background(),
		RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1"},
		ClientMeta{IP: "10.0.0.1", UserAgent: "test"},
	)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	require.Len(t, sessions.byHash, 1)
	for hash, session := range sessions.byHash {
		assert.NotEqual(t, pair.RefreshToken, hash)
		assert.Len(t, hash, 64)
		assert.Equal(t, "10.0.0.1", session.IP)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)

	users := noopUserRepo()
	users.getByIdentifierFn = func(_ context.Context, identifier string) (*models.User, error) {
		if identifier == "alice" {
			return &models.User{ID: 1, Username: "alice", Password: string(hashed)}, nil
		}
		return nil, nil
	}
	svc := NewAuthService(users, newMemSessionRepo(), testAuthConfig())
	ctx := context.Background()

	_, _, err = svc.Login(ctx, "ghost", "password1", ClientMeta{})
	assert.Equal(t, models.CodeUnauthorized, appCode(t, err))

	_, _, err = svc.Login(ctx, "alice", "wrongpass1", ClientMeta{})
	assert.Equal(t, models.CodeUnauthorized, appCode(t, err))

	_, pair, err := svc.Login(ctx, "alice", "password1", ClientMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestRotate_ConsumesPresentedToken(t *testing.T) {
	sessions := newMemSessionRepo()
	svc := NewAuthService(noopUserRepo(), sessions, testAuthConfig())
	ctx := context.Background()

	_, pair, err := svc.Register(ctx,
		RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1"},
		ClientMeta{},
	)
	require.NoError(t, err)

	rotated, err := svc.Rotate(ctx, pair.RefreshToken, ClientMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Replaying the consumed token fails even though its signature is valid.
	_, err = svc.Rotate(ctx, pair.RefreshToken, ClientMeta{})
	assert.Equal(t, models.CodeExpiredOrRevoked, appCode(t, err))

	// The rotated token still works.
	_, err = svc.Rotate(ctx, rotated.RefreshToken, ClientMeta{})
	assert.NoError(t, err)
}

func TestRotate_RejectsAccessToken(t *testing.T) {
	sessions := newMemSessionRepo()
	svc := NewAuthService(noopUserRepo(), sessions, testAuthConfig())
	ctx := context.Background()

	_, pair, err := svc.Register(ctx,
		RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1"},
		ClientMeta{},
	)
	require.NoError(t, err)

	// An access token never verifies as a refresh credential; that is a bad
	// token, not a revoked session.
	_, err = svc.Rotate(ctx, pair.AccessToken, ClientMeta{})
	assert.Equal(t, models.CodeUnauthorized, appCode(t, err))
}

func TestRotate_GarbageTokenFails(t *testing.T) {
	svc := NewAuthService(noopUserRepo(), newMemSessionRepo(), testAuthConfig())

	_, err := svc.Rotate(context.Background(), "not.a.jwt", ClientMeta{})
	assert.Equal(t, models.CodeUnauthorized, appCode(t, err))
}

func TestLogout_IsIdempotent(t *testing.T) {
	sessions := newMemSessionRepo()
	svc := NewAuthService(noopUserRepo(), sessions, testAuthConfig())
	ctx := context.Background()

	_, pair, err := svc.Register(ctx,
		RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1"},
		ClientMeta{},
	)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, svc.Logout(ctx, ""))
	assert.Empty(t, sessions.byHash)
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	sessions := newMemSessionRepo()
	svc := NewAuthService(noopUserRepo(), sessions, testAuthConfig())
	ctx := context.Background()

	_, _, err := svc.Register(ctx,
		RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1"},
		ClientMeta{},
	)
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "nobody", "password1", ClientMeta{})
	assert.Error(t, err)

	require.NoError(t, svc.LogoutAll(ctx, 1))
	assert.Empty(t, sessions.byHash)
}
