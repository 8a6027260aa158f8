package repo

import (
	"context"
	"strings"
	"time"

	"github.com/aicourt/backend/internal/models"
	"github.com/google/uuid"
)

// NormalizeEmail lowercases the address so that lookups and the unique index
// agree on case-insensitive identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormRepo) FindUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// CreateUser relies on the unique indexes on email and firebase_uid: when two
// requests race to create the same identity the database picks the winner and
// the loser gets ErrDuplicate.
func (r *GormRepo) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	return translate(r.DB.WithContext(ctx).Create(user).Error)
}

func (r *GormRepo) UpdateUserProfile(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

func (r *GormRepo) UpdatePassword(ctx context.Context, id uuid.UUID, newHash string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("password_hash", newHash)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkFirebaseUID attaches a federated id to an existing account. The guard on
// firebase_uid IS NULL makes the linkage first-write-wins.
func (r *GormRepo) LinkFirebaseUID(ctx context.Context, id uuid.UUID, firebaseUID, provider string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND firebase_uid IS NULL", id).
		Updates(map[string]any{"firebase_uid": firebaseUID, "provider": provider})
	return translate(res.Error)
}

func (r *GormRepo) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return translate(r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("last_login", now).Error)
}
