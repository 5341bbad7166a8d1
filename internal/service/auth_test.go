package service

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository"
)

type memUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[string]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Email]; exists {
		return domain.User{}, repository.ErrUserEmailExists
	}

	r.nextID++
	user.ID = r.nextID
	r.users[user.Email] = user

	return user, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}

	return user, nil
}

func TestAuthService_Signup(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewAuthService(repo)
	ctx := context.Background()

	user, err := svc.Signup(ctx, domain.User{
		Email:    "alice@example.com",
		Password: "Str0ngPass",
		Name:     "Alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "user", user.Role)
	assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]{40}$`), user.WalletAddress)

	// Stored as a bcrypt hash, never plain.
	assert.NotEqual(t, "Str0ngPass", user.Password)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("Str0ngPass")))

	_, err = svc.Signup(ctx, domain.User{Email: "alice@example.com", Password: "Str0ngPass"})
	require.ErrorIs(t, err, ErrUserEmailExists)
}

func TestAuthService_Signup_UniqueWallets(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewAuthService(repo)
	ctx := context.Background()

	first, err := svc.Signup(ctx, domain.User{Email: "a@example.com", Password: "Str0ngPass"})
	require.NoError(t, err)

	second, err := svc.Signup(ctx, domain.User{Email: "b@example.com", Password: "Str0ngPass"})
	require.NoError(t, err)

	assert.NotEqual(t, first.WalletAddress, second.WalletAddress)
}

func TestAuthService_Login(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewAuthService(repo)
	ctx := context.Background()

	_, err := svc.Signup(ctx, domain.User{Email: "alice@example.com", Password: "Str0ngPass"})
	require.NoError(t, err)

	user, err := svc.Login(ctx, "alice@example.com", "Str0ngPass")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrWrongPassword)

	_, err = svc.Login(ctx, "nobody@example.com", "Str0ngPass")
	require.ErrorIs(t, err, ErrUserNotFound)
}
