package certificate

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"certportal/apperror"
	"certportal/models"
	"certportal/repository"
	"certportal/storage"

	"gorm.io/datatypes"
)

// Types lists the request categories a student can choose from.
var Types = []string{
	"Course Completion",
	"Mark Sheet",
	"Character Certificate",
	"Workshop Attendance",
	"Skill Certification",
	"Program Graduation",
	"Professional Development",
	"Academic Achievement",
	"Extracurricular Participation",
}

func IsValidType(t string) bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

type Options struct {
	MaxCreateAttachments int
	MaxEditAttachments   int // new uploads per edit; 0 means no limit
	Now                  func() time.Time
}

// Engine owns the request lifecycle: pending, created, rejected. It is the
// only caller of RecordStore.Update.
type Engine struct {
	records RecordStore
	blobs   storage.AttachmentStore
	owners  OwnerIndex
	log     *slog.Logger
	opts    Options
}

func NewEngine(records RecordStore, blobs storage.AttachmentStore, owners OwnerIndex, log *slog.Logger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxCreateAttachments <= 0 {
		opts.MaxCreateAttachments = 2
	}
	return &Engine{records: records, blobs: blobs, owners: owners, log: log, opts: opts}
}

// Create stores the uploads, then persists a pending record, then appends
// the record id to the owner's index on a best-effort basis.
func (e *Engine) Create(ctx context.Context, actor models.Actor, in CreateInput) (*Result, error) {
	if err := authorize(actor, capStudent); err != nil {
		return nil, err
	}

	fields := validateRequestFields(in.Title, in.CertificateType)
	switch {
	case len(in.Files) == 0:
		fields["attachments"] = "At least one attachment is required!"
	case len(in.Files) > e.opts.MaxCreateAttachments:
		fields["attachments"] = "Too many attachments!"
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	names, err := e.storeAll(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	rec := &models.CertificateRequest{
		Title:           strings.TrimSpace(in.Title),
		CertificateType: in.CertificateType,
		OwnerID:         actor.UserID,
		Status:          models.StatusPending,
		AttachmentNames: names,
		RequestedDate:   e.opts.Now(),
	}
	if err := e.records.Create(ctx, rec); err != nil {
		e.removeAll(ctx, names)
		return nil, err
	}

	if err := e.owners.AppendCertificateID(ctx, actor.UserID, rec.ID); err != nil {
		e.log.Warn("owner index append failed", "user_id", actor.UserID, "certificate_id", rec.ID, "err", err)
	}

	e.log.Info("certificate requested", "certificate_id", rec.ID, "user_id", actor.UserID, "attachments", len(names))
	return &Result{Record: rec}, nil
}

// Edit resubmits a pending or rejected request. Names not in
// KeepAttachments are deleted once the record update has been persisted.
func (e *Engine) Edit(ctx context.Context, actor models.Actor, in EditInput) (*Result, error) {
	if err := authorize(actor, capRequester); err != nil {
		return nil, err
	}

	current, err := e.records.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := checkEditable(actor, current); err != nil {
		return nil, err
	}

	keep := dedupe(in.KeepAttachments)
	fields := validateRequestFields(in.Title, in.CertificateType)
	if name, ok := firstForeign(keep, current); !ok {
		fields["keepAttachmentNames"] = "Unknown attachment " + name
	}
	if len(keep)+len(in.Files) == 0 {
		fields["attachments"] = "At least one attachment is required!"
	}
	if e.opts.MaxEditAttachments > 0 && len(in.Files) > e.opts.MaxEditAttachments {
		fields["attachments"] = "Too many attachments!"
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	newNames, err := e.storeAll(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	var toDelete []string
	updated, err := e.records.Update(ctx, in.ID, func(r *models.CertificateRequest) error {
		if err := checkEditable(actor, r); err != nil {
			return err
		}
		if name, ok := firstForeign(keep, r); !ok {
			return apperror.Field("keepAttachmentNames", "Unknown attachment "+name)
		}

		kept := make(map[string]bool, len(keep))
		for _, n := range keep {
			kept[n] = true
		}
		toDelete = toDelete[:0]
		next := make(datatypes.JSONSlice[string], 0, len(keep)+len(newNames))
		for _, n := range r.AttachmentNames {
			if kept[n] {
				next = append(next, n)
			} else {
				toDelete = append(toDelete, n)
			}
		}
		next = append(next, newNames...)

		r.AttachmentNames = next
		r.Title = strings.TrimSpace(in.Title)
		r.CertificateType = in.CertificateType
		r.RequestedDate = e.opts.Now()
		r.ClearOutcome()
		r.Status = models.StatusPending
		return nil
	})
	if err != nil {
		e.removeAll(ctx, newNames)
		return nil, err
	}

	cleanup := e.removeAll(ctx, toDelete)
	e.log.Info("certificate resubmitted", "certificate_id", in.ID, "kept", len(keep), "added", len(newNames), "removed", len(toDelete))
	return &Result{Record: updated, Cleanup: cleanup}, nil
}

// Issue records the issuance proof the caller already obtained from the
// content store and ledger, and drops the submission evidence.
func (e *Engine) Issue(ctx context.Context, actor models.Actor, in IssueInput) (*Result, error) {
	if err := authorize(actor, capReviewer); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	required := map[string]string{
		"recipientName":    in.RecipientName,
		"contentHash":      in.ContentHash,
		"organizationName": in.OrganizationName,
		"issuer":           in.Issuer,
		"ledgerTxRef":      in.LedgerTxRef,
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			fields[k] = k + " is required!"
		}
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	issuedDate := in.IssuedDate
	if issuedDate.IsZero() {
		issuedDate = e.opts.Now()
	}

	var toDelete []string
	updated, err := e.records.Update(ctx, in.ID, func(r *models.CertificateRequest) error {
		if r.Status != models.StatusPending {
			return apperror.InvalidTransition("Only pending requests can be issued!")
		}
		toDelete = append([]string(nil), r.AttachmentNames...)

		r.AttachmentNames = datatypes.JSONSlice[string]{}
		r.RejectionReason = ""
		r.RecipientName = strings.TrimSpace(in.RecipientName)
		r.IssuedDate = &issuedDate
		r.ContentHash = strings.TrimSpace(in.ContentHash)
		r.OrganizationName = strings.TrimSpace(in.OrganizationName)
		r.Issuer = strings.TrimSpace(in.Issuer)
		r.LedgerTxRef = strings.TrimSpace(in.LedgerTxRef)
		r.Status = models.StatusCreated
		return nil
	})
	if err != nil {
		return nil, err
	}

	cleanup := e.removeAll(ctx, toDelete)
	e.log.Info("certificate issued", "certificate_id", in.ID, "content_hash", updated.ContentHash, "ledger_tx", updated.LedgerTxRef)
	return &Result{Record: updated, Cleanup: cleanup}, nil
}

// Reject keeps the attachments so the owner can resubmit.
func (e *Engine) Reject(ctx context.Context, actor models.Actor, in RejectInput) (*Result, error) {
	if err := authorize(actor, capReviewer); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, apperror.Field("rejectionReason", "Rejection reason is required!")
	}

	updated, err := e.records.Update(ctx, in.ID, func(r *models.CertificateRequest) error {
		if r.Status != models.StatusPending {
			return apperror.InvalidTransition("Only pending requests can be rejected!")
		}
		r.ClearOutcome()
		r.RejectionReason = in.Reason
		r.Status = models.StatusRejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("certificate rejected", "certificate_id", in.ID)
	return &Result{Record: updated}, nil
}

// Delete removes the record first and then its blobs.
func (e *Engine) Delete(ctx context.Context, actor models.Actor, id string) (*Result, error) {
	if err := authorize(actor, capReviewer); err != nil {
		return nil, err
	}

	rec, err := e.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.records.Delete(ctx, id); err != nil {
		return nil, err
	}

	cleanup := e.removeAll(ctx, rec.AttachmentNames)
	e.log.Info("certificate deleted", "certificate_id", id)
	return &Result{Record: rec, Cleanup: cleanup}, nil
}

// Get is open to admins and the owning user.
func (e *Engine) Get(ctx context.Context, actor models.Actor, id string) (*models.CertificateRequest, error) {
	if err := authorize(actor, capRequester); err != nil {
		return nil, err
	}
	rec, err := e.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && rec.OwnerID != actor.UserID {
		return nil, apperror.Forbidden("You do not have access to this certificate!")
	}
	return rec, nil
}

func (e *Engine) List(ctx context.Context, actor models.Actor, f repository.CertificateFilter) ([]*models.CertificateRequest, error) {
	if err := authorize(actor, capReviewer); err != nil {
		return nil, err
	}
	return e.records.FindAll(ctx, f)
}

func (e *Engine) ListByOwner(ctx context.Context, actor models.Actor) ([]*models.CertificateRequest, error) {
	if err := authorize(actor, capRequester); err != nil {
		return nil, err
	}
	return e.records.FindByOwner(ctx, actor.UserID)
}

// VerifyByContentHash is the public status lookup for issued certificates.
func (e *Engine) VerifyByContentHash(ctx context.Context, hash string) (*models.CertificateRequest, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, apperror.Field("contentHash", "Content hash is required!")
	}
	return e.records.FindIssuedByContentHash(ctx, hash)
}

func (e *Engine) storeAll(ctx context.Context, files []Upload) (datatypes.JSONSlice[string], error) {
	names := make(datatypes.JSONSlice[string], 0, len(files))
	for _, f := range files {
		name, err := e.blobs.Put(ctx, f.Filename, f.Content)
		if err != nil {
			e.removeAll(ctx, names)
			return nil, apperror.Dependency("Failed to store attachment!", err)
		}
		names = append(names, name)
	}
	return names, nil
}

// removeAll is the best-effort cleanup path. Failures are logged and
// reported, never returned.
func (e *Engine) removeAll(ctx context.Context, names []string) CleanupResult {
	if len(names) == 0 {
		return nil
	}
	out := make(CleanupResult, 0, len(names))
	for _, name := range names {
		entry := CleanupEntry{Name: name, Outcome: OutcomeDeleted}
		deleted, err := e.blobs.Delete(ctx, name)
		switch {
		case err != nil:
			entry.Outcome = OutcomeFailed
			entry.Error = err.Error()
			e.log.Warn("attachment delete failed", "name", name, "err", err)
		case !deleted:
			entry.Outcome = OutcomeNotFound
		}
		out = append(out, entry)
	}
	return out
}

func validateRequestFields(title, certType string) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(title) == "" {
		fields["title"] = "Title is required!"
	} else if strings.IndexFunc(title, unicode.IsControl) >= 0 {
		fields["title"] = "Title must not contain control characters!"
	}
	if certType == "" {
		fields["certificateType"] = "Certificate type is required!"
	} else if !IsValidType(certType) {
		fields["certificateType"] = "Unknown certificate type!"
	}
	return fields
}

func checkEditable(actor models.Actor, r *models.CertificateRequest) error {
	if r.OwnerID != actor.UserID {
		return apperror.Forbidden("Only the owner can edit this request!")
	}
	if r.Status != models.StatusPending && r.Status != models.StatusRejected {
		return apperror.InvalidTransition("Issued certificates cannot be edited!")
	}
	return nil
}

// firstForeign reports the first name in keep that r does not hold.
func firstForeign(keep []string, r *models.CertificateRequest) (string, bool) {
	for _, n := range keep {
		if !r.HasAttachment(n) {
			return n, false
		}
	}
	return "", true
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
