package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Request statuses. No other states exist.
const (
	StatusPending  = "pending"
	StatusCreated  = "created"
	StatusRejected = "rejected"
)

// CertificateRequest tracks one certificate through request, review and issuance.
type CertificateRequest struct {
	ID              string `gorm:"primaryKey;size:36" json:"id"`
	Title           string `gorm:"not null" json:"title"`
	CertificateType string `gorm:"size:64;not null" json:"certificateType"`
	OwnerID         string `gorm:"size:36;index;not null" json:"ownerId"`
	Status          string `gorm:"size:16;index;default:'pending'" json:"status"` // pending, created, rejected

	// Blob-store keys in upload order.
	AttachmentNames datatypes.JSONSlice[string] `json:"attachmentNames"`
	RequestedDate   time.Time                   `json:"requestedDate"`

	RejectionReason string `gorm:"type:text;default:''" json:"rejectionReason,omitempty"`

	// Issuance proof, set only while status is created.
	RecipientName    string     `gorm:"default:''" json:"recipientName,omitempty"`
	IssuedDate       *time.Time `json:"issuedDate,omitempty"`
	ContentHash      string     `gorm:"size:128;index;default:''" json:"contentHash,omitempty"`
	OrganizationName string     `gorm:"default:''" json:"organizationName,omitempty"`
	Issuer           string     `gorm:"default:''" json:"issuer,omitempty"`
	LedgerTxRef      string     `gorm:"size:128;default:''" json:"ledgerTxRef,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Joined by the repository on reads.
	Owner *UserProfile `gorm:"-" json:"owner,omitempty"`
}

func (r *CertificateRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ClearOutcome drops the rejection reason and every issuance field.
func (r *CertificateRequest) ClearOutcome() {
	r.RejectionReason = ""
	r.RecipientName = ""
	r.IssuedDate = nil
	r.ContentHash = ""
	r.OrganizationName = ""
	r.Issuer = ""
	r.LedgerTxRef = ""
}

func (r *CertificateRequest) HasAttachment(name string) bool {
	for _, n := range r.AttachmentNames {
		if n == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (r *CertificateRequest) Clone() *CertificateRequest {
	c := *r
	if r.AttachmentNames != nil {
		c.AttachmentNames = append(datatypes.JSONSlice[string]{}, r.AttachmentNames...)
	}
	if r.IssuedDate != nil {
		d := *r.IssuedDate
		c.IssuedDate = &d
	}
	if r.Owner != nil {
		o := *r.Owner
		c.Owner = &o
	}
	return &c
}
