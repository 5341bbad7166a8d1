package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/repository/dao"
)

var (
	ErrUserEmailExists = dao.ErrUserEmailExists
	ErrUserNotFound    = dao.ErrUserNotFound
)

type UserDAO interface {
	Insert(ctx context.Context, user dao.User) (dao.User, error)
	FindByID(ctx context.Context, id uint) (dao.User, error)
	FindByEmail(ctx context.Context, email string) (dao.User, error)
	FindByWalletAddress(ctx context.Context, address string) (dao.User, error)
}

type UserRepository struct {
	dao UserDAO
}

func NewUserRepository(dao UserDAO) *UserRepository {
	return &UserRepository{
		dao: dao,
	}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row, err := userToDAO(user)
	if err != nil {
		return domain.User{}, err
	}

	created, err := r.dao.Insert(ctx, row)
	if err != nil {
		return domain.User{}, err
	}

	return userToDomain(created), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (domain.User, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	return userToDomain(found), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	found, err := r.dao.FindByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}

	return userToDomain(found), nil
}

func (r *UserRepository) FindByWalletAddress(ctx context.Context, address string) (domain.User, error) {
	found, err := r.dao.FindByWalletAddress(ctx, address)
	if err != nil {
		return domain.User{}, err
	}

	return userToDomain(found), nil
}

// Expertise crosses the storage boundary as JSON text; everywhere else
// it is a plain ordered slice.
func userToDAO(u domain.User) (dao.User, error) {
	var expertise string
	if len(u.Expertise) > 0 {
		raw, err := json.Marshal(u.Expertise)
		if err != nil {
			return dao.User{}, fmt.Errorf("marshal expertise -> %w", err)
		}
		expertise = string(raw)
	}

	return dao.User{
		ID:            u.ID,
		Email:         u.Email,
		Password:      u.Password,
		Name:          u.Name,
		WalletAddress: u.WalletAddress,
		Role:          u.Role,
		Expertise:     expertise,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}, nil
}

func userToDomain(u dao.User) domain.User {
	var expertise []string
	if u.Expertise != "" {
		// Stored by us, so a decode failure just means no tags.
		_ = json.Unmarshal([]byte(u.Expertise), &expertise)
	}

	return domain.User{
		ID:            u.ID,
		Email:         u.Email,
		Password:      u.Password,
		Name:          u.Name,
		WalletAddress: u.WalletAddress,
		Role:          u.Role,
		Expertise:     expertise,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
