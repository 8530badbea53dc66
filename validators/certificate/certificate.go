package certificateValidator

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"certportal/middleware"
	"certportal/validators"

	"github.com/gofiber/fiber/v2"
)

// Limits bounds what a multipart submission may carry.
type Limits struct {
	MaxFileBytes   int64
	MaxCreateFiles int
	MaxEditFiles   int // 0 means no limit
}

type RequestForm struct {
	Title           string `form:"title" validate:"notblank,nocontrol,max=200"`
	CertificateType string `form:"certificateType" validate:"required"`
	Files           []*multipart.FileHeader
}

type EditForm struct {
	ID                  string `params:"id" validate:"required"`
	Title               string `form:"title" validate:"notblank,nocontrol,max=200"`
	CertificateType     string `form:"certificateType" validate:"required"`
	KeepAttachmentNames []string
	Files               []*multipart.FileHeader
}

// IssueForm carries either the final proof values or, for multipart
// requests, the certificate document to publish.
type IssueForm struct {
	ID               string `json:"-" params:"id" validate:"required"`
	RecipientName    string `json:"recipientName" form:"recipientName" validate:"notblank"`
	IssuedDate       string `json:"issuedDate" form:"issuedDate"`
	OrganizationName string `json:"organizationName" form:"organizationName" validate:"notblank"`
	Issuer           string `json:"issuer" form:"issuer" validate:"notblank"`
	ContentHash      string `json:"contentHash" form:"contentHash" validate:"required_without=Document"`
	LedgerTxRef      string `json:"ledgerTxRef" form:"ledgerTxRef" validate:"required_without=Document"`
	Document         *multipart.FileHeader `json:"-" form:"-"`

	IssuedAt time.Time `json:"-" form:"-"`
}

type RejectForm struct {
	ID              string `json:"-" params:"id" validate:"required"`
	RejectionReason string `json:"rejectionReason" validate:"notblank,max=1000"`
}

type ListQuery struct {
	Status          string `query:"status" validate:"omitempty,oneof=pending created rejected"`
	CertificateType string `query:"certificateType"`
}

// RequestCertificate validates the multipart create form.
func RequestCertificate(limits Limits) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid multipart form!", nil)
		}

		reqData := &RequestForm{
			Title:           firstValue(form, "title"),
			CertificateType: firstValue(form, "certificateType"),
			Files:           form.File["attachments"],
		}

		errors := validators.Struct(reqData)
		if errors == nil {
			errors = map[string]string{}
		}
		switch {
		case len(reqData.Files) == 0:
			errors["attachments"] = "At least one attachment is required!"
		case len(reqData.Files) > limits.MaxCreateFiles:
			errors["attachments"] = fmt.Sprintf("At most %d attachments are allowed!", limits.MaxCreateFiles)
		}
		checkSizes(errors, "attachments", reqData.Files, limits.MaxFileBytes)
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedRequest", reqData)
		return c.Next()
	}
}

// EditCertificate validates a resubmission. Multipart requests may repeat
// keepAttachmentNames or send it once as a JSON array; requests without
// new files may be plain JSON.
func EditCertificate(limits Limits) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := &EditForm{ID: c.Params("id")}

		if isMultipart(c) {
			form, err := c.MultipartForm()
			if err != nil {
				return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid multipart form!", nil)
			}
			reqData.Title = firstValue(form, "title")
			reqData.CertificateType = firstValue(form, "certificateType")
			reqData.Files = form.File["attachments"]
			keep, ok := parseKeepList(form.Value["keepAttachmentNames"])
			if !ok {
				return middleware.ValidationErrorResponse(c, map[string]string{"keepAttachmentNames": "keepAttachmentNames must be a list of names!"})
			}
			reqData.KeepAttachmentNames = keep
		} else {
			body := new(struct {
				Title               string   `json:"title"`
				CertificateType     string   `json:"certificateType"`
				KeepAttachmentNames []string `json:"keepAttachmentNames"`
			})
			if err := c.BodyParser(body); err != nil {
				return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
			}
			reqData.Title = strings.TrimSpace(body.Title)
			reqData.CertificateType = strings.TrimSpace(body.CertificateType)
			reqData.KeepAttachmentNames = body.KeepAttachmentNames
		}

		errors := validators.Struct(reqData)
		if errors == nil {
			errors = map[string]string{}
		}
		if limits.MaxEditFiles > 0 && len(reqData.Files) > limits.MaxEditFiles {
			errors["attachments"] = fmt.Sprintf("At most %d attachments are allowed!", limits.MaxEditFiles)
		}
		checkSizes(errors, "attachments", reqData.Files, limits.MaxFileBytes)
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedEdit", reqData)
		return c.Next()
	}
}

// IssueCertificate accepts JSON with contentHash/ledgerTxRef already in
// hand, or multipart with a "certificate" document to publish.
func IssueCertificate(limits Limits) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := &IssueForm{ID: c.Params("id")}

		if isMultipart(c) {
			form, err := c.MultipartForm()
			if err != nil {
				return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid multipart form!", nil)
			}
			reqData.RecipientName = firstValue(form, "recipientName")
			reqData.IssuedDate = firstValue(form, "issuedDate")
			reqData.OrganizationName = firstValue(form, "organizationName")
			reqData.Issuer = firstValue(form, "issuer")
			reqData.ContentHash = firstValue(form, "contentHash")
			reqData.LedgerTxRef = firstValue(form, "ledgerTxRef")
			if files := form.File["certificate"]; len(files) > 0 {
				reqData.Document = files[0]
			}
		} else if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := validators.Struct(reqData)
		if errors == nil {
			errors = map[string]string{}
		}
		if reqData.IssuedDate != "" {
			at, err := parseDate(reqData.IssuedDate)
			if err != nil {
				errors["issuedDate"] = "issuedDate must be an RFC 3339 timestamp or YYYY-MM-DD date!"
			}
			reqData.IssuedAt = at
		}
		if reqData.Document != nil {
			checkSizes(errors, "certificate", []*multipart.FileHeader{reqData.Document}, limits.MaxFileBytes)
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedIssue", reqData)
		return c.Next()
	}
}

// RejectCertificate validates the rejection body.
func RejectCertificate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := &RejectForm{ID: c.Params("id")}
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errors := validators.Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedReject", reqData)
		return c.Next()
	}
}

func ListCertificates() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ListQuery)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}
		if errors := validators.Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedList", reqData)
		return c.Next()
	}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func parseKeepList(values []string) ([]string, bool) {
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var names []string
		if err := json.Unmarshal([]byte(values[0]), &names); err != nil {
			return nil, false
		}
		return names, true
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, true
}

func checkSizes(errors map[string]string, field string, files []*multipart.FileHeader, max int64) {
	if max <= 0 {
		return
	}
	for _, f := range files {
		if f.Size > max {
			errors[field] = fmt.Sprintf("%s exceeds the %d byte limit!", f.Filename, max)
			return
		}
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
