package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleCitizen  = "citizen"
	RoleOfficial = "official"
)

const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// DefaultAnalysis is the placeholder stored until an external analyzer
// fills the field in.
const DefaultAnalysis = "AI analysis pending..."

type User struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"      json:"id"`
	Email         string     `gorm:"uniqueIndex;not null"      json:"email"`
	PasswordHash  string     `gorm:"column:password_hash"      json:"-"`
	FirebaseUID   *string    `gorm:"uniqueIndex"               json:"firebaseUid,omitempty"`
	Provider      string     `json:"provider,omitempty"`
	Role          string     `gorm:"not null"                  json:"role"`
	DisplayName   string     `gorm:"not null"                  json:"displayName"`
	Phone         string     `json:"phone,omitempty"`
	Address       string     `json:"address,omitempty"`
	Court         string     `json:"court,omitempty"`
	Designation   string     `json:"designation,omitempty"`
	PhotoURL      string     `json:"photoURL,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	IsActive      bool       `gorm:"default:true"              json:"isActive"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Document struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StorageKey   string    `gorm:"not null"             json:"-"`
	Filename     string    `gorm:"not null"             json:"filename"`
	OriginalName string    `gorm:"not null"             json:"originalName"`
	FileType     string    `gorm:"not null"             json:"fileType"`
	FileSize     int64     `gorm:"not null"             json:"fileSize"`

	// Owner identity is snapshotted at upload time and deliberately never
	// re-synced after profile edits.
	OwnerID    uuid.UUID `gorm:"type:uuid;index;not null" json:"ownerId"`
	OwnerEmail string    `gorm:"not null"                 json:"ownerEmail"`
	OwnerName  string    `gorm:"not null"                 json:"ownerName"`

	AIAnalysis  string   `json:"aiAnalysis"`
	Tags        []string `gorm:"serializer:json" json:"tags"`
	Description string   `json:"description,omitempty"`

	Status   string `gorm:"index;default:pending" json:"status"`
	IsSigned bool   `gorm:"index;default:false"   json:"isSigned"`

	SignedByID    *uuid.UUID `gorm:"type:uuid" json:"signedById,omitempty"`
	SignedByEmail string     `json:"signedByEmail,omitempty"`
	SignedByName  string     `json:"signedByName,omitempty"`
	SignedAt      *time.Time `json:"signedAt,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func ValidRole(role string) bool {
	return role == RoleCitizen || role == RoleOfficial
}

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusReviewed, StatusApproved, StatusRejected:
		return true
	}
	return false
}
