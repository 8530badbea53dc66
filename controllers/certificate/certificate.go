package certificateController

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"certportal/apperror"
	"certportal/middleware"
	"certportal/models"
	"certportal/repository"
	"certportal/services/certificate"
	"certportal/services/issuance"
	"certportal/storage"
	"certportal/utils"
	certificateValidator "certportal/validators/certificate"

	"github.com/gofiber/fiber/v2"
)

// Lifecycle is the subset of the certificate engine the handlers drive.
type Lifecycle interface {
	Create(ctx context.Context, actor models.Actor, in certificate.CreateInput) (*certificate.Result, error)
	Edit(ctx context.Context, actor models.Actor, in certificate.EditInput) (*certificate.Result, error)
	Issue(ctx context.Context, actor models.Actor, in certificate.IssueInput) (*certificate.Result, error)
	Reject(ctx context.Context, actor models.Actor, in certificate.RejectInput) (*certificate.Result, error)
	Delete(ctx context.Context, actor models.Actor, id string) (*certificate.Result, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.CertificateRequest, error)
	List(ctx context.Context, actor models.Actor, f repository.CertificateFilter) ([]*models.CertificateRequest, error)
	ListByOwner(ctx context.Context, actor models.Actor) ([]*models.CertificateRequest, error)
	VerifyByContentHash(ctx context.Context, hash string) (*models.CertificateRequest, error)
}

type Publisher interface {
	Publish(ctx context.Context, actor models.Actor, in issuance.PublishInput) (*certificate.Result, error)
	FetchProof(ctx context.Context, hash string) (*models.CertificateRequest, io.ReadCloser, error)
}

// Notifier tells the owner about a review outcome.
type Notifier interface {
	CertificateIssued(to, name, title, proofURL string)
	CertificateRejected(to, name, title, reason string)
}

type Controller struct {
	engine    Lifecycle
	publisher Publisher
	blobs     storage.AttachmentStore
	notify    Notifier
	proofURL  func(contentHash string) string
	log       *slog.Logger
}

func New(engine Lifecycle, publisher Publisher, blobs storage.AttachmentStore, notify Notifier, proofURL func(string) string, log *slog.Logger) *Controller {
	return &Controller{
		engine:    engine,
		publisher: publisher,
		blobs:     blobs,
		notify:    notify,
		proofURL:  proofURL,
		log:       log,
	}
}

// Verification is what anyone holding a content hash may see.
type Verification struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	CertificateType  string     `json:"certificateType"`
	RecipientName    string     `json:"recipientName"`
	IssuedDate       *time.Time `json:"issuedDate"`
	ContentHash      string     `json:"contentHash"`
	OrganizationName string     `json:"organizationName"`
	Issuer           string     `json:"issuer"`
	LedgerTxRef      string     `json:"ledgerTxRef"`
	ProofURL         string     `json:"proofUrl,omitempty"`
}

func (ctl *Controller) verification(r *models.CertificateRequest) Verification {
	v := Verification{
		ID:               r.ID,
		Title:            r.Title,
		CertificateType:  r.CertificateType,
		RecipientName:    r.RecipientName,
		IssuedDate:       r.IssuedDate,
		ContentHash:      r.ContentHash,
		OrganizationName: r.OrganizationName,
		Issuer:           r.Issuer,
		LedgerTxRef:      r.LedgerTxRef,
	}
	if ctl.proofURL != nil {
		v.ProofURL = ctl.proofURL(r.ContentHash)
	}
	return v
}

// Types lists the accepted certificate types.
func (ctl *Controller) Types(c *fiber.Ctx) error {
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate types fetched successfully!", certificate.Types)
}

func (ctl *Controller) RequestCertificate(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedRequest").(*certificateValidator.RequestForm)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	uploads, closeAll, err := utils.OpenUploads(reqData.Files)
	if err != nil {
		ctl.log.Error("open uploads", "err", err)
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to read attachments!", nil)
	}
	defer closeAll()

	res, err := ctl.engine.Create(c.UserContext(), middleware.ActorFrom(c), certificate.CreateInput{
		Title:           reqData.Title,
		CertificateType: reqData.CertificateType,
		Files:           uploads,
	})
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Certificate requested successfully!", res)
}

func (ctl *Controller) EditCertificate(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedEdit").(*certificateValidator.EditForm)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	uploads, closeAll, err := utils.OpenUploads(reqData.Files)
	if err != nil {
		ctl.log.Error("open uploads", "err", err)
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to read attachments!", nil)
	}
	defer closeAll()

	res, err := ctl.engine.Edit(c.UserContext(), middleware.ActorFrom(c), certificate.EditInput{
		ID:              reqData.ID,
		Title:           reqData.Title,
		CertificateType: reqData.CertificateType,
		KeepAttachments: reqData.KeepAttachmentNames,
		Files:           uploads,
	})
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate request updated successfully!", res)
}

// IssueCertificate records the proof directly, or publishes the attached
// document first when one is uploaded.
func (ctl *Controller) IssueCertificate(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedIssue").(*certificateValidator.IssueForm)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}
	actor := middleware.ActorFrom(c)

	var (
		res *certificate.Result
		err error
	)
	if reqData.Document != nil {
		var doc io.ReadCloser
		doc, err = reqData.Document.Open()
		if err != nil {
			ctl.log.Error("open certificate document", "err", err)
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to read certificate document!", nil)
		}
		defer doc.Close()

		res, err = ctl.publisher.Publish(c.UserContext(), actor, issuance.PublishInput{
			ID:               reqData.ID,
			RecipientName:    reqData.RecipientName,
			IssuedDate:       reqData.IssuedAt,
			OrganizationName: reqData.OrganizationName,
			Issuer:           reqData.Issuer,
			Document:         certificate.Upload{Filename: reqData.Document.Filename, Content: doc},
		})
	} else {
		res, err = ctl.engine.Issue(c.UserContext(), actor, certificate.IssueInput{
			ID:               reqData.ID,
			RecipientName:    reqData.RecipientName,
			IssuedDate:       reqData.IssuedAt,
			ContentHash:      reqData.ContentHash,
			OrganizationName: reqData.OrganizationName,
			Issuer:           reqData.Issuer,
			LedgerTxRef:      reqData.LedgerTxRef,
		})
	}
	if err != nil {
		return middleware.Fail(c, err)
	}

	if owner := res.Record.Owner; owner != nil && ctl.notify != nil {
		proof := ""
		if ctl.proofURL != nil {
			proof = ctl.proofURL(res.Record.ContentHash)
		}
		ctl.notify.CertificateIssued(owner.Email, owner.Name, res.Record.Title, proof)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate issued successfully!", res)
}

func (ctl *Controller) RejectCertificate(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedReject").(*certificateValidator.RejectForm)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	res, err := ctl.engine.Reject(c.UserContext(), middleware.ActorFrom(c), certificate.RejectInput{
		ID:     reqData.ID,
		Reason: reqData.RejectionReason,
	})
	if err != nil {
		return middleware.Fail(c, err)
	}

	if owner := res.Record.Owner; owner != nil && ctl.notify != nil {
		ctl.notify.CertificateRejected(owner.Email, owner.Name, res.Record.Title, res.Record.RejectionReason)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate request rejected!", res)
}

func (ctl *Controller) DeleteCertificate(c *fiber.Ctx) error {
	res, err := ctl.engine.Delete(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate request deleted successfully!", res)
}

func (ctl *Controller) GetCertificate(c *fiber.Ctx) error {
	rec, err := ctl.engine.Get(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate fetched successfully!", rec)
}

// ListCertificates is the reviewer listing with optional filters.
func (ctl *Controller) ListCertificates(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedList").(*certificateValidator.ListQuery)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	list, err := ctl.engine.List(c.UserContext(), middleware.ActorFrom(c), repository.CertificateFilter{
		Status:          reqData.Status,
		CertificateType: reqData.CertificateType,
	})
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully!", list)
}

func (ctl *Controller) MyCertificates(c *fiber.Ctx) error {
	list, err := ctl.engine.ListByOwner(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully!", list)
}

// Verify is public: it only answers for issued certificates.
func (ctl *Controller) Verify(c *fiber.Ctx) error {
	rec, err := ctl.engine.VerifyByContentHash(c.UserContext(), c.Params("hash"))
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate verified successfully!", ctl.verification(rec))
}

// Proof streams the published document for an issued certificate.
func (ctl *Controller) Proof(c *fiber.Ctx) error {
	_, body, err := ctl.publisher.FetchProof(c.UserContext(), c.Params("hash"))
	if err != nil {
		return middleware.Fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/octet-stream")
	return c.SendStream(body)
}

// ServeAttachment streams a stored attachment by its generated name.
func (ctl *Controller) ServeAttachment(c *fiber.Ctx) error {
	name := c.Params("name")
	body, err := ctl.blobs.Resolve(c.UserContext(), name)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return middleware.Fail(c, apperror.NotFound("Attachment not found"))
		}
		ctl.log.Error("resolve attachment", "name", name, "err", err)
		return middleware.Fail(c, apperror.Internal("resolve attachment", err))
	}
	c.Type(filepath.Ext(name))
	c.Set("Cross-Origin-Resource-Policy", "cross-origin")
	return c.SendStream(body)
}
