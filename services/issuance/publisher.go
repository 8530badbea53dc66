package issuance

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"certportal/apperror"
	"certportal/ledger"
	"certportal/models"
	"certportal/services/certificate"
)

// ContentStore is the content-addressed document store.
type ContentStore interface {
	Add(ctx context.Context, filename string, content io.Reader) (string, error)
	Cat(ctx context.Context, cid string) (io.ReadCloser, error)
}

// Ledger records issuance events and returns a transaction reference.
type Ledger interface {
	Anchor(ctx context.Context, a ledger.Anchor) (string, error)
}

// Lifecycle is the part of the certificate engine the publisher drives.
type Lifecycle interface {
	Get(ctx context.Context, actor models.Actor, id string) (*models.CertificateRequest, error)
	Issue(ctx context.Context, actor models.Actor, in certificate.IssueInput) (*certificate.Result, error)
	VerifyByContentHash(ctx context.Context, hash string) (*models.CertificateRequest, error)
}

type PublishInput struct {
	ID               string
	RecipientName    string
	IssuedDate       time.Time
	OrganizationName string
	Issuer           string
	Document         certificate.Upload
}

// Publisher obtains the content hash and ledger reference for a final
// certificate document and only then asks the engine to issue.
type Publisher struct {
	content ContentStore
	ledger  Ledger
	engine  Lifecycle
	log     *slog.Logger
}

func NewPublisher(content ContentStore, l Ledger, engine Lifecycle, log *slog.Logger) *Publisher {
	return &Publisher{content: content, ledger: l, engine: engine, log: log}
}

func (p *Publisher) Publish(ctx context.Context, actor models.Actor, in PublishInput) (*certificate.Result, error) {
	if actor.IsZero() {
		return nil, apperror.Unauthorized("Authorization token required")
	}
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("Access denied! Admin only.")
	}

	fields := map[string]string{}
	if strings.TrimSpace(in.RecipientName) == "" {
		fields["recipientName"] = "recipientName is required!"
	}
	if strings.TrimSpace(in.OrganizationName) == "" {
		fields["organizationName"] = "organizationName is required!"
	}
	if strings.TrimSpace(in.Issuer) == "" {
		fields["issuer"] = "issuer is required!"
	}
	if in.Document.Content == nil {
		fields["certificate"] = "Certificate document is required!"
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	// Fail before touching external stores when the request cannot be issued.
	rec, err := p.engine.Get(ctx, actor, in.ID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusPending {
		return nil, apperror.InvalidTransition("Only pending requests can be issued!")
	}

	cid, err := p.content.Add(ctx, in.Document.Filename, in.Document.Content)
	if err != nil {
		p.log.Error("content store upload failed", "certificate_id", in.ID, "err", err)
		return nil, asDependency(err, "Failed to upload document to IPFS!")
	}

	anchor := ledger.Anchor{
		CertificateID:    rec.ID,
		RecipientName:    strings.TrimSpace(in.RecipientName),
		Issuer:           strings.TrimSpace(in.Issuer),
		OrganizationName: strings.TrimSpace(in.OrganizationName),
		ContentHash:      cid,
	}
	if rec.Owner != nil {
		anchor.RecipientAddress = rec.Owner.PublicAddress
	}
	txRef, err := p.ledger.Anchor(ctx, anchor)
	if err != nil {
		p.log.Error("ledger anchor failed", "certificate_id", in.ID, "content_hash", cid, "err", err)
		return nil, asDependency(err, "Failed to record certificate on ledger!")
	}

	return p.engine.Issue(ctx, actor, certificate.IssueInput{
		ID:               in.ID,
		RecipientName:    in.RecipientName,
		IssuedDate:       in.IssuedDate,
		ContentHash:      cid,
		OrganizationName: in.OrganizationName,
		Issuer:           in.Issuer,
		LedgerTxRef:      txRef,
	})
}

// FetchProof streams the issued document for a content hash that belongs
// to an issued certificate.
func (p *Publisher) FetchProof(ctx context.Context, hash string) (*models.CertificateRequest, io.ReadCloser, error) {
	rec, err := p.engine.VerifyByContentHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	body, err := p.content.Cat(ctx, rec.ContentHash)
	if err != nil {
		return nil, nil, asDependency(err, "Failed to fetch document from IPFS!")
	}
	return rec, body, nil
}

func asDependency(err error, msg string) error {
	if apperror.Is(err, apperror.CodeDependency) || apperror.Is(err, apperror.CodeValidation) {
		return err
	}
	return apperror.Dependency(msg, err)
}
