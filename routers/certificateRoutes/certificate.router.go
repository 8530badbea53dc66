package certificateRoutes

import (
	certificateController "certportal/controllers/certificate"
	"certportal/middleware"
	"certportal/models"
	certificateValidator "certportal/validators/certificate"

	"github.com/gofiber/fiber/v2"
)

func SetupCertificateRoutes(router fiber.Router, ctl *certificateController.Controller, jwt *middleware.JWTManager, limits certificateValidator.Limits) {
	certGroup := router.Group("/certificates")

	// Public
	certGroup.Get("/types", ctl.Types)
	certGroup.Get("/verify/:hash", ctl.Verify)
	certGroup.Get("/verify/:hash/proof", ctl.Proof)

	certGroup.Use(jwt.Middleware())
	admin := middleware.RequireRole(models.RoleAdmin)

	certGroup.Post("/", certificateValidator.RequestCertificate(limits), ctl.RequestCertificate)
	certGroup.Get("/mine", ctl.MyCertificates)
	certGroup.Get("/", admin, certificateValidator.ListCertificates(), ctl.ListCertificates)
	certGroup.Get("/:id", ctl.GetCertificate)
	certGroup.Put("/:id", certificateValidator.EditCertificate(limits), ctl.EditCertificate)
	certGroup.Delete("/:id", ctl.DeleteCertificate)
	certGroup.Put("/:id/issue", admin, certificateValidator.IssueCertificate(limits), ctl.IssueCertificate)
	certGroup.Put("/:id/reject", admin, certificateValidator.RejectCertificate(), ctl.RejectCertificate)
}

// SetupUploadRoutes serves stored attachments by name.
func SetupUploadRoutes(app *fiber.App, ctl *certificateController.Controller) {
	app.Get("/uploads/certificates/:name", ctl.ServeAttachment)
}
