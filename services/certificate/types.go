package certificate

import (
	"context"
	"io"
	"time"

	"certportal/models"
	"certportal/repository"
)

// RecordStore is the persistence contract the engine drives. Update must
// apply mutate atomically per record.
type RecordStore interface {
	Create(ctx context.Context, rec *models.CertificateRequest) error
	Get(ctx context.Context, id string) (*models.CertificateRequest, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*models.CertificateRequest, error)
	FindAll(ctx context.Context, f repository.CertificateFilter) ([]*models.CertificateRequest, error)
	FindIssuedByContentHash(ctx context.Context, hash string) (*models.CertificateRequest, error)
	Update(ctx context.Context, id string, mutate func(*models.CertificateRequest) error) (*models.CertificateRequest, error)
	Delete(ctx context.Context, id string) error
}

// OwnerIndex maintains the per-user certificate id back-reference.
type OwnerIndex interface {
	AppendCertificateID(ctx context.Context, userID, certID string) error
}

// Upload is one incoming attachment.
type Upload struct {
	Filename string
	Content  io.Reader
}

type CreateInput struct {
	Title           string
	CertificateType string
	Files           []Upload
}

type EditInput struct {
	ID              string
	Title           string
	CertificateType string
	KeepAttachments []string
	Files           []Upload
}

type IssueInput struct {
	ID               string
	RecipientName    string
	IssuedDate       time.Time
	ContentHash      string
	OrganizationName string
	Issuer           string
	LedgerTxRef      string
}

type RejectInput struct {
	ID     string
	Reason string
}

// Cleanup outcomes for a best-effort blob delete.
const (
	OutcomeDeleted  = "deleted"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

type CleanupEntry struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// CleanupResult reports what happened to every blob the engine tried to remove.
type CleanupResult []CleanupEntry

func (c CleanupResult) Failed() []string {
	var out []string
	for _, e := range c {
		if e.Outcome == OutcomeFailed {
			out = append(out, e.Name)
		}
	}
	return out
}

// Result is returned by mutating transitions.
type Result struct {
	Record  *models.CertificateRequest `json:"certificate"`
	Cleanup CleanupResult              `json:"cleanup,omitempty"`
}
