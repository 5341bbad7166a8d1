package service

import (
	"context"
	"fmt"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository"
)

var ErrUserNotFound = repository.ErrUserNotFound

type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	FindByID(ctx context.Context, id uint) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByWalletAddress(ctx context.Context, address string) (domain.User, error)
}

type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{
		repo: repo,
	}
}

func (s *UserService) GetUser(ctx context.Context, id uint) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	return user, nil
}

func (s *UserService) GetUserByWallet(ctx context.Context, address string) (domain.User, error) {
	user, err := s.repo.FindByWalletAddress(ctx, address)
	if err != nil {
		return domain.User{}, fmt.Errorf("s.repo.FindByWalletAddress -> %w", err)
	}

	return user, nil
}
