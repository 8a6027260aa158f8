package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aicourt/backend/internal/models"
	"github.com/aicourt/backend/internal/repo"
	"github.com/aicourt/backend/pkg/logging"
	"github.com/google/uuid"
)

var (
	ErrForbidden       = errors.New("access denied")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidStatus   = errors.New("invalid status")
)

// MaxFileSize caps uploads at 10MiB.
const MaxFileSize = 10 << 20

// fileTypeByMIME is the closed set of accepted upload types.
var fileTypeByMIME = map[string]string{
	"application/pdf":    "pdf",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"text/plain": "txt",
}

// BlobStore is the opaque byte store holding uploaded file contents,
// keyed by storage key.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher receives custody audit events. May be absent.
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
}

type DocumentService struct {
	Repo   *repo.GormRepo
	Blobs  BlobStore
	Events EventPublisher
}

func (s *DocumentService) publish(ctx context.Context, key string, event map[string]any) {
	if s.Events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Events.PublishEvent(pubCtx, key, event); err != nil {
		logging.FromContext(ctx).Error("audit_publish_failed", "error", err)
	}
}

func newStorageKey() string {
	d := time.Now().UTC()
	return fmt.Sprintf("documents/%d/%02d/%02d/%s", d.Year(), d.Month(), d.Day(), uuid.NewString())
}

type UploadParams struct {
	OriginalName string
	ContentType  string
	Size         int64
	Content      io.Reader
	Description  string
	Tags         []string
}

func (s *DocumentService) Upload(ctx context.Context, owner *models.User, p UploadParams) (*models.Document, error) {
	l := logging.FromContext(ctx).With("svc", "documents.upload", "owner_id", owner.ID)

	fileType, ok := fileTypeByMIME[p.ContentType]
	if !ok {
		l.Warn("upload_rejected", "reason", "invalid file type", "content_type", p.ContentType)
		return nil, ErrInvalidFileType
	}
	if p.Size > MaxFileSize {
		l.Warn("upload_rejected", "reason", "file too large", "size", p.Size)
		return nil, ErrFileTooLarge
	}

	key := newStorageKey()
	if err := s.Blobs.Put(ctx, key, p.ContentType, p.Content, p.Size); err != nil {
		l.Error("upload_failed", "error", err)
		return nil, err
	}

	doc := &models.Document{
		StorageKey:   key,
		Filename:     fmt.Sprintf("%d-%s", time.Now().UnixMilli(), p.OriginalName),
		OriginalName: p.OriginalName,
		FileType:     fileType,
		FileSize:     p.Size,
		OwnerID:      owner.ID,
		OwnerEmail:   owner.Email,
		OwnerName:    owner.DisplayName,
		AIAnalysis:   models.DefaultAnalysis,
		Tags:         p.Tags,
		Description:  p.Description,
		Status:       models.StatusPending,
		IsSigned:     false,
	}
	if err := s.Repo.CreateDocument(ctx, doc); err != nil {
		l.Error("upload_failed", "error", err)
		if delErr := s.Blobs.Delete(ctx, key); delErr != nil {
			l.Error("orphan_blob_cleanup_failed", "key", key, "error", delErr)
		}
		return nil, err
	}

	l.Info("document_uploaded", "document_id", doc.ID, "file_type", fileType, "size", p.Size)
	s.publish(ctx, owner.ID.String(), map[string]any{
		"type":        "document_uploaded",
		"document_id": doc.ID,
		"owner_id":    owner.ID,
		"file_type":   fileType,
	})
	return doc, nil
}

// canView: a document is visible to its owner and to any official,
// never to other citizens.
func canView(principal *models.User, doc *models.Document) bool {
	return principal.Role == models.RoleOfficial || doc.OwnerID == principal.ID
}

func (s *DocumentService) Get(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Document, error) {
	doc, err := s.Repo.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(principal, doc) {
		return nil, ErrForbidden
	}
	return doc, nil
}

// Download returns the record plus the stored bytes. The caller owns the
// returned ReadCloser.
func (s *DocumentService) Download(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.Blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, body, nil
}

func (s *DocumentService) Sign(ctx context.Context, signer *models.User, id uuid.UUID) (*models.Document, error) {
	l := logging.FromContext(ctx).With("svc", "documents.sign", "document_id", id, "signer_id", signer.ID)

	if signer.Role != models.RoleOfficial {
		return nil, ErrForbidden
	}
	doc, err := s.Repo.SignDocument(ctx, id, signer)
	if err != nil {
		return nil, err
	}

	l.Info("document_signed")
	s.publish(ctx, signer.ID.String(), map[string]any{
		"type":        "document_signed",
		"document_id": doc.ID,
		"signer_id":   signer.ID,
	})
	return doc, nil
}

// SetStatus accepts any value of the closed status set after any other; the
// workflow has no transition graph on purpose.
func (s *DocumentService) SetStatus(ctx context.Context, principal *models.User, id uuid.UUID, status string) (*models.Document, error) {
	l := logging.FromContext(ctx).With("svc", "documents.set_status", "document_id", id)

	if principal.Role != models.RoleOfficial {
		return nil, ErrForbidden
	}
	if !models.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	doc, err := s.Repo.UpdateDocumentStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	l.Info("status_changed", "status", status)
	s.publish(ctx, principal.ID.String(), map[string]any{
		"type":        "document_status_changed",
		"document_id": doc.ID,
		"status":      status,
	})
	return doc, nil
}

// Delete is owner-only: officials may read everything but a record leaves
// custody only by its owner's hand.
func (s *DocumentService) Delete(ctx context.Context, principal *models.User, id uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "documents.delete", "document_id", id)

	doc, err := s.Repo.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	if doc.OwnerID != principal.ID {
		return ErrForbidden
	}
	if err := s.Repo.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := s.Blobs.Delete(ctx, doc.StorageKey); err != nil {
		l.Error("blob_delete_failed", "key", doc.StorageKey, "error", err)
	}
	l.Info("document_deleted")
	return nil
}

type ListParams struct {
	Status   string
	IsSigned *bool
	OwnerID  *uuid.UUID
	Page     int
	Limit    int
}

func (p *ListParams) normalize() (offset, limit int) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	limit = p.Limit
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return (page - 1) * limit, limit
}

// ListMine returns the principal's own documents, newest first.
func (s *DocumentService) ListMine(ctx context.Context, principal *models.User, p ListParams) (int64, []models.Document, error) {
	offset, limit := p.normalize()
	return s.Repo.ListDocuments(ctx, repo.DocumentFilter{
		OwnerID:  &principal.ID,
		Status:   p.Status,
		IsSigned: p.IsSigned,
	}, offset, limit)
}

// ListAll returns every document, with optional filters. Officials only.
func (s *DocumentService) ListAll(ctx context.Context, principal *models.User, p ListParams) (int64, []models.Document, error) {
	if principal.Role != models.RoleOfficial {
		return 0, nil, ErrForbidden
	}
	offset, limit := p.normalize()
	return s.Repo.ListDocuments(ctx, repo.DocumentFilter{
		OwnerID:  p.OwnerID,
		Status:   p.Status,
		IsSigned: p.IsSigned,
	}, offset, limit)
}
