package auth

import (
	"context"
	"testing"
	"time"

	"rankpilot-service/internal/domain/admin"
	xerrors "rankpilot-service/internal/pkg/errors"
	"rankpilot-service/internal/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeAdminRepo struct {
	byEmail    map[string]*admin.Admin
	lastLogins []int64
	nextID     int64
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{byEmail: map[string]*admin.Admin{}}
}

func (f *fakeAdminRepo) Create(ctx context.Context, a *admin.Admin) (*admin.Admin, error) {
	f.nextID++
	a.ID = f.nextID
	f.byEmail[a.Email] = a
	return a, nil
}

func (f *fakeAdminRepo) FindByEmail(ctx context.Context, email string) (*admin.Admin, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return a, nil
}

func (f *fakeAdminRepo) FindByID(ctx context.Context, id int64) (*admin.Admin, error) {
	for _, a := range f.byEmail {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeAdminRepo) UpdateLastLogin(ctx context.Context, id int64) error {
	f.lastLogins = append(f.lastLogins, id)
	return nil
}

func testService(t *testing.T, repo *fakeAdminRepo) *AuthService {
	t.Helper()
	manager, err := jwt.NewManager(jwt.Config{
		Secret:   "test-secret",
		Issuer:   "rankpilot",
		Audience: "rankpilot-admin",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	return NewAuthService(repo, manager, zap.NewNop())
}

func seedAdmin(t *testing.T, repo *fakeAdminRepo, email, password string, active bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), &admin.Admin{
		FullName:     "Test Admin",
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []string{"admin"},
		IsActive:     active,
	})
	require.NoError(t, err)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	repo := newFakeAdminRepo()
	seedAdmin(t, repo, "ops@rankpilot.app", "correct-horse", true)
	svc := testService(t, repo)

	resp, err := svc.Login(context.Background(), &admin.LoginRequest{
		Email:    "ops@rankpilot.app",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ops@rankpilot.app", resp.Admin.Email)
	assert.Contains(t, repo.lastLogins, resp.Admin.ID)

	claims, err := svc.Verify(resp.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeAdminRepo()
	seedAdmin(t, repo, "ops@rankpilot.app", "correct-horse", true)
	svc := testService(t, repo)

	_, err := svc.Login(context.Background(), &admin.LoginRequest{
		Email:    "ops@rankpilot.app",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	svc := testService(t, newFakeAdminRepo())

	_, err := svc.Login(context.Background(), &admin.LoginRequest{
		Email:    "nobody@rankpilot.app",
		Password: "whatever1",
	})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestLoginInactiveAdminRejected(t *testing.T) {
	repo := newFakeAdminRepo()
	seedAdmin(t, repo, "former@rankpilot.app", "correct-horse", false)
	svc := testService(t, repo)

	_, err := svc.Login(context.Background(), &admin.LoginRequest{
		Email:    "former@rankpilot.app",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestEnsureSuperAdminIsIdempotent(t *testing.T) {
	repo := newFakeAdminRepo()
	svc := testService(t, repo)
	ctx := context.Background()

	require.NoError(t, svc.EnsureSuperAdminExists(ctx, "root@rankpilot.app", "bootstrap-pass", "Root"))
	require.NoError(t, svc.EnsureSuperAdminExists(ctx, "root@rankpilot.app", "bootstrap-pass", "Root"))

	a, err := repo.FindByEmail(ctx, "root@rankpilot.app")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.Contains(t, a.Roles, "super_admin")
	assert.True(t, a.IsActive)
}
