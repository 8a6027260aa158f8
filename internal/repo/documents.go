package repo

import (
	"context"
	"errors"
	"time"

	"github.com/aicourt/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrAlreadySigned = errors.New("document already signed")

// DocumentFilter narrows list queries. Nil pointer fields mean "no filter".
type DocumentFilter struct {
	OwnerID  *uuid.UUID
	Status   string
	IsSigned *bool
}

func (r *GormRepo) CreateDocument(ctx context.Context, doc *models.Document) error {
	return translate(r.DB.WithContext(ctx).Create(doc).Error)
}

func (r *GormRepo) GetDocumentByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (r *GormRepo) ListDocuments(ctx context.Context, f DocumentFilter, offset, limit int) (int64, []models.Document, error) {
	q := r.DB.WithContext(ctx).Model(&models.Document{})
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.IsSigned != nil {
		q = q.Where("is_signed = ?", *f.IsSigned)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, translate(err)
	}

	var docs []models.Document
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&docs).Error
	if err != nil {
		return 0, nil, translate(err)
	}
	return total, docs, nil
}

// SignDocument applies the signature in a single guarded UPDATE so that
// concurrent signers race on the is_signed predicate instead of on a
// read-then-write window: exactly one statement affects a row, the rest
// observe ErrAlreadySigned.
func (r *GormRepo) SignDocument(ctx context.Context, id uuid.UUID, signer *models.User) (*models.Document, error) {
	now := time.Now().UTC()
	res := r.DB.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND is_signed = ?", id, false).
		Updates(map[string]any{
			"is_signed":       true,
			"signed_by_id":    signer.ID,
			"signed_by_email": signer.Email,
			"signed_by_name":  signer.DisplayName,
			"signed_at":       now,
			"status":          models.StatusApproved,
		})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		var doc models.Document
		if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return nil, ErrAlreadySigned
	}
	return r.GetDocumentByID(ctx, id)
}

func (r *GormRepo) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status string) (*models.Document, error) {
	res := r.DB.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetDocumentByID(ctx, id)
}

func (r *GormRepo) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Document{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
