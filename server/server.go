package server

import (
	"log/slog"
	"time"

	"certportal/config"
	authController "certportal/controllers/auth"
	certificateController "certportal/controllers/certificate"
	userController "certportal/controllers/userControllers"
	"certportal/ledger"
	"certportal/middleware"
	"certportal/repository"
	authRoutes "certportal/routers/authRoutes"
	certificateRoutes "certportal/routers/certificateRoutes"
	userProfileRoutes "certportal/routers/userRoutes"
	"certportal/services/account"
	"certportal/services/certificate"
	"certportal/services/issuance"
	"certportal/services/report"
	"certportal/storage"
	"certportal/utils"
	certificateValidator "certportal/validators/certificate"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

const externalTimeout = 30 * time.Second

// Server is the assembled HTTP app plus the background pieces main must
// start and drain.
type Server struct {
	App       *fiber.App
	Notifier  *utils.Notifier
	Scheduler *utils.Scheduler
	JWT       *middleware.JWTManager
}

// New wires every store, service and route on top of db.
func New(cfg *config.Config, db *gorm.DB, log *slog.Logger) (*Server, error) {
	certRepo := repository.NewCertificateRepository(db)
	userRepo := repository.NewUserRepository(db)

	blobs, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	mailer, err := utils.NewMailer(cfg, log)
	if err != nil {
		return nil, err
	}
	notifier := utils.NewNotifier(mailer, log)
	jwt := middleware.NewJWTManager(cfg.JWTKey, time.Duration(cfg.JWTExpireMinutes)*time.Minute)

	accounts := account.NewService(userRepo, jwt, notifier, log, account.Options{
		SaltRound:       cfg.SaltRound,
		VerificationTTL: time.Duration(cfg.EmailVerificationExpireMinutes) * time.Minute,
		ResetTTL:        time.Duration(cfg.PasswordResetExpireMinutes) * time.Minute,
		AllowedDomains:  cfg.AllowedEmailDomains,
		Courses:         cfg.Courses,
		ClientURL:       cfg.ClientURL,
	})
	engine := certificate.NewEngine(certRepo, blobs, accounts, log, certificate.Options{
		MaxCreateAttachments: cfg.MaxCreateAttachments,
		MaxEditAttachments:   cfg.MaxEditAttachments,
	})
	reports := report.NewService(certRepo, userRepo, time.Now)

	ipfs := ledger.NewIPFSClient(cfg.IPFSApiURL, cfg.IPFSGatewayURL, externalTimeout)
	if cfg.LedgerGatewayURL == "" {
		log.Warn("LEDGER_GATEWAY_URL is not set; document publishing will fail")
	}
	gateway := ledger.NewGatewayClient(cfg.LedgerGatewayURL, cfg.LedgerAPIKey, externalTimeout)
	publisher := issuance.NewPublisher(ipfs, gateway, engine, log)

	scheduler := utils.NewScheduler(log)
	if err := scheduler.ScheduleTokenSweep(cfg.SweepSchedule, userRepo); err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(log),
		BodyLimit:    bodyLimit(cfg),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.ClientURL,
		AllowMethods:     "GET,POST,PUT,DELETE",
		AllowHeaders:     "Content-Type,Authorization",
		AllowCredentials: true,
	}))
	if !cfg.IsProduction() {
		// Enable the built-in logger middleware to log all requests
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
		}))
	}

	limits := certificateValidator.Limits{
		MaxFileBytes:   int64(cfg.MaxUploadBytes),
		MaxCreateFiles: cfg.MaxCreateAttachments,
		MaxEditFiles:   cfg.MaxEditAttachments,
	}
	certCtl := certificateController.New(engine, publisher, blobs, notifier, ipfs.GatewayURL, log)
	authCtl := authController.New(accounts, log, authController.Options{
		TokenTTL:        jwt.TTL(),
		VerificationTTL: time.Duration(cfg.EmailVerificationExpireMinutes) * time.Minute,
		SecureCookie:    cfg.IsProduction(),
	})
	userCtl := userController.New(accounts, reports, log)

	api := app.Group("/api")
	authRoutes.SetupAuthRoutes(api, authCtl, jwt)
	userProfileRoutes.SetupUserRoutes(api, userCtl, jwt)
	certificateRoutes.SetupCertificateRoutes(api, certCtl, jwt, limits)
	certificateRoutes.SetupUploadRoutes(app, certCtl)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Certificate portal API is running")
	})

	return &Server{App: app, Notifier: notifier, Scheduler: scheduler, JWT: jwt}, nil
}

// bodyLimit leaves room for a full create submission plus form overhead.
func bodyLimit(cfg *config.Config) int {
	limit := cfg.MaxUploadBytes*(cfg.MaxCreateAttachments+2) + 1<<20
	if limit < 4<<20 {
		return 4 << 20
	}
	return limit
}
