package users

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUserNotFound signals a lookup miss at the repository layer.
var ErrUserNotFound = errors.New("user not found")

// Repository persists accounts.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	Upsert(ctx context.Context, user User) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds the GORM-backed account repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *gormRepository) Upsert(ctx context.Context, user User) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "role", "password_hash", "updated_at"}),
		}).
		Create(&user).Error
}
