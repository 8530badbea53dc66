package account

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"certportal/apperror"
	"certportal/models"
	"certportal/utils"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence the account service needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
	AppendCertificateID(ctx context.Context, userID, certID string) error
	ListByRole(ctx context.Context, role string) ([]*models.User, error)
}

// TokenIssuer signs identity tokens for authenticated users.
type TokenIssuer interface {
	Issue(u *models.User) (string, error)
}

// Notifier delivers onboarding mail. Implementations must not block.
type Notifier interface {
	VerificationCode(to, name, code string, ttl time.Duration)
	PasswordReset(to, name, link string, ttl time.Duration)
}

type Options struct {
	SaltRound       int
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	AllowedDomains  []string
	Courses         []string
	ClientURL       string
	Now             func() time.Time
	NewCode         func() string
}

type Service struct {
	users  UserStore
	tokens TokenIssuer
	notify Notifier
	log    *slog.Logger
	opts   Options
}

func NewService(users UserStore, tokens TokenIssuer, notify Notifier, log *slog.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewCode == nil {
		opts.NewCode = utils.GenerateOTP
	}
	if opts.SaltRound < bcrypt.MinCost {
		opts.SaltRound = bcrypt.DefaultCost
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 10 * time.Minute
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 10 * time.Minute
	}
	return &Service{users: users, tokens: tokens, notify: notify, log: log, opts: opts}
}

type RegisterInput struct {
	Name          string
	Email         string
	Password      string
	RollNo        string
	Course        string
	PublicAddress string
}

// OnboardingOptions is what the registration form offers.
type OnboardingOptions struct {
	AllowedDomains []string `json:"allowedDomains"`
	Courses        []string `json:"courses"`
}

func (s *Service) Options() OnboardingOptions {
	return OnboardingOptions{
		AllowedDomains: append([]string{}, s.opts.AllowedDomains...),
		Courses:        append([]string{}, s.opts.Courses...),
	}
}

// Register creates an unverified user and mails the verification code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)

	fields := map[string]string{}
	if !s.domainAllowed(email) {
		fields["email"] = "Email domain is not allowed!"
	}
	if in.Course != "" && len(s.opts.Courses) > 0 && !contains(s.opts.Courses, in.Course) {
		fields["course"] = "Unknown course!"
	}
	address := strings.TrimSpace(in.PublicAddress)
	if address != "" {
		if !common.IsHexAddress(address) {
			fields["publicAddress"] = "Invalid wallet address!"
		} else {
			address = common.HexToAddress(address).Hex()
		}
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("User already exist!")
	} else if !apperror.Is(err, apperror.CodeNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.SaltRound)
	if err != nil {
		return nil, apperror.Internal("Failed to process your request!", err)
	}

	code, expires := s.newCode()
	u := &models.User{
		Name:                     strings.TrimSpace(in.Name),
		Email:                    email,
		RollNo:                   strings.TrimSpace(in.RollNo),
		Course:                   in.Course,
		PublicAddress:            address,
		Role:                     models.RoleUser,
		Password:                 string(hashed),
		EmailVerificationCode:    code,
		EmailVerificationExpires: &expires,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.notify.VerificationCode(u.Email, u.Name, code, s.opts.VerificationTTL)
	s.log.Info("user registered", "user_id", u.ID)
	return u, nil
}

// VerifyEmail fails closed: a wrong code and an expired code both reject,
// and expiry is checked even when the code matches.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if u.IsEmailVerified {
		return apperror.Conflict("Email already verified!")
	}
	if u.EmailVerificationCode == "" || u.EmailVerificationCode != strings.TrimSpace(code) {
		return apperror.Field("code", "Invalid verification code!")
	}
	if u.EmailVerificationExpires == nil || !s.opts.Now().Before(*u.EmailVerificationExpires) {
		return apperror.Field("code", "Verification code has expired!")
	}

	u.IsEmailVerified = true
	u.EmailVerificationCode = ""
	u.EmailVerificationExpires = nil
	return s.users.Save(ctx, u)
}

func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if u.IsEmailVerified {
		return apperror.Conflict("Email already verified!")
	}

	code, expires := s.newCode()
	u.EmailVerificationCode = code
	u.EmailVerificationExpires = &expires
	if err := s.users.Save(ctx, u); err != nil {
		return err
	}
	s.notify.VerificationCode(u.Email, u.Name, code, s.opts.VerificationTTL)
	return nil
}

// Authenticate checks credentials and returns a signed identity token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, *models.User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperror.Is(err, apperror.CodeNotFound) {
			return "", nil, apperror.Unauthorized("Invalid credentials!")
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", nil, apperror.Unauthorized("Invalid credentials!")
	}
	if !u.IsEmailVerified {
		return "", nil, apperror.Unauthorized("Email not verified!")
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", nil, apperror.Internal("Failed to generate token!", err)
	}
	return token, u, nil
}

func (s *Service) ChangePassword(ctx context.Context, actor models.Actor, current, next string) error {
	if actor.IsZero() {
		return apperror.Unauthorized("Authorization token required")
	}
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(current)) != nil {
		return apperror.Field("currentPassword", "Current password is incorrect!")
	}
	if current == next {
		return apperror.Field("newPassword", "New password must differ from the current one!")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), s.opts.SaltRound)
	if err != nil {
		return apperror.Internal("Failed to process your request!", err)
	}
	u.Password = string(hashed)
	return s.users.Save(ctx, u)
}

// ForgotPassword stores the hash of a fresh reset token and mails the raw
// token as a link.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	token, err := utils.GenerateResetToken()
	if err != nil {
		return apperror.Internal("Failed to generate reset token!", err)
	}
	expires := s.opts.Now().Add(s.opts.ResetTTL)
	u.ResetPasswordToken = utils.HashToken(token)
	u.ResetPasswordExpires = &expires
	if err := s.users.Save(ctx, u); err != nil {
		return err
	}

	link := strings.TrimRight(s.opts.ClientURL, "/") + "/reset-password/" + token
	s.notify.PasswordReset(u.Email, u.Name, link, s.opts.ResetTTL)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	u, err := s.users.GetByResetToken(ctx, utils.HashToken(token), s.opts.Now())
	if err != nil {
		if apperror.Is(err, apperror.CodeNotFound) {
			return apperror.Field("token", "Invalid or expired token!")
		}
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.SaltRound)
	if err != nil {
		return apperror.Internal("Failed to process your request!", err)
	}
	u.Password = string(hashed)
	u.ResetPasswordToken = ""
	u.ResetPasswordExpires = nil
	return s.users.Save(ctx, u)
}

func (s *Service) Me(ctx context.Context, actor models.Actor) (*models.User, error) {
	if actor.IsZero() {
		return nil, apperror.Unauthorized("Authorization token required")
	}
	return s.users.GetByID(ctx, actor.UserID)
}

// AppendCertificateID maintains the owner back-reference. Certificate
// creation calls it on a best-effort basis.
func (s *Service) AppendCertificateID(ctx context.Context, userID, certID string) error {
	return s.users.AppendCertificateID(ctx, userID, certID)
}

func (s *Service) ListByRole(ctx context.Context, actor models.Actor, role string) ([]*models.User, error) {
	if actor.IsZero() {
		return nil, apperror.Unauthorized("Authorization token required")
	}
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("Access denied! Admin only.")
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, apperror.Field("role", "Unknown role!")
	}
	return s.users.ListByRole(ctx, role)
}

func (s *Service) newCode() (string, time.Time) {
	return s.opts.NewCode(), s.opts.Now().Add(s.opts.VerificationTTL)
}

func (s *Service) domainAllowed(email string) bool {
	if len(s.opts.AllowedDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range s.opts.AllowedDomains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
