package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"certportal/apperror"
	"certportal/models"
	"certportal/repository"
	"certportal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubTokens struct{ err error }

func (s stubTokens) Issue(u *models.User) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-" + u.ID, nil
}

type sentMail struct {
	kind, to, payload string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (r *recordingNotifier) VerificationCode(to, _, code string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{"verify", to, code})
}

func (r *recordingNotifier) PasswordReset(to, _, link string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{"reset", to, link})
}

func (r *recordingNotifier) last() sentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

type fixture struct {
	svc    *Service
	users  *repository.UserRepository
	mail   *recordingNotifier
	clock  time.Time
	tokens *stubTokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "account.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.CertificateRequest{}))

	f := &fixture{
		users:  repository.NewUserRepository(db),
		mail:   &recordingNotifier{},
		clock:  time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC),
		tokens: &stubTokens{},
	}
	f.svc = NewService(f.users, f.tokens, f.mail, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		SaltRound:       bcrypt.MinCost,
		VerificationTTL: 10 * time.Minute,
		ResetTTL:        15 * time.Minute,
		AllowedDomains:  []string{"ncit.edu.np"},
		Courses:         []string{"BE IT", "BCA"},
		ClientURL:       "http://portal.test/",
		Now:             func() time.Time { return f.clock },
		NewCode:         func() string { return "123456" },
	})
	return f
}

func (f *fixture) register(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Name: "Jane Doe", Email: email, Password: "s3cretpass", RollNo: "021-301", Course: "BE IT",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) verified(t *testing.T, email string) *models.User {
	t.Helper()
	u := f.register(t, email)
	require.NoError(t, f.svc.VerifyEmail(context.Background(), email, "123456"))
	return u
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, RegisterInput{
		Name:          " Jane Doe ",
		Email:         " Jane@NCIT.edu.np",
		Password:      "s3cretpass",
		Course:        "BCA",
		PublicAddress: "0x52908400098527886e0f7030069857d2e4169ee7",
	})
	require.NoError(t, err)

	assert.Equal(t, "jane@ncit.edu.np", u.Email)
	assert.Equal(t, "Jane Doe", u.Name)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.False(t, u.IsEmailVerified)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", u.PublicAddress)
	assert.NotEqual(t, "s3cretpass", u.Password)
	require.NotNil(t, u.EmailVerificationExpires)
	assert.True(t, u.EmailVerificationExpires.Equal(f.clock.Add(10*time.Minute)))
	assert.Equal(t, sentMail{"verify", "jane@ncit.edu.np", "123456"}, f.mail.last())

	_, err = f.svc.Register(ctx, RegisterInput{Name: "Again", Email: "jane@ncit.edu.np", Password: "s3cretpass"})
	assert.True(t, apperror.Is(err, apperror.CodeConflict))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Name: "X", Email: "x@gmail.com", Password: "s3cretpass", Course: "Law", PublicAddress: "0x1234",
	})
	require.True(t, apperror.Is(err, apperror.CodeValidation))
	fields := apperror.FieldsOf(err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "course")
	assert.Contains(t, fields, "publicAddress")
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong code", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "a@ncit.edu.np")
		err := f.svc.VerifyEmail(ctx, "a@ncit.edu.np", "654321")
		assert.True(t, apperror.Is(err, apperror.CodeValidation))
	})

	t.Run("matching but expired code", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "a@ncit.edu.np")
		f.clock = f.clock.Add(10 * time.Minute)
		err := f.svc.VerifyEmail(ctx, "a@ncit.edu.np", "123456")
		require.True(t, apperror.Is(err, apperror.CodeValidation))
		assert.Equal(t, "Verification code has expired!", apperror.FieldsOf(err)["code"])

		u, err := f.users.GetByEmail(ctx, "a@ncit.edu.np")
		require.NoError(t, err)
		assert.False(t, u.IsEmailVerified)
	})

	t.Run("success clears the code", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "a@ncit.edu.np")
		require.NoError(t, f.svc.VerifyEmail(ctx, "A@ncit.edu.np", " 123456 "))

		u, err := f.users.GetByEmail(ctx, "a@ncit.edu.np")
		require.NoError(t, err)
		assert.True(t, u.IsEmailVerified)
		assert.Empty(t, u.EmailVerificationCode)
		assert.Nil(t, u.EmailVerificationExpires)

		err = f.svc.VerifyEmail(ctx, "a@ncit.edu.np", "123456")
		assert.True(t, apperror.Is(err, apperror.CodeConflict))
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.VerifyEmail(ctx, "nobody@ncit.edu.np", "123456")
		assert.True(t, apperror.Is(err, apperror.CodeNotFound))
	})
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@ncit.edu.np")

	f.clock = f.clock.Add(time.Hour)
	require.NoError(t, f.svc.ResendVerification(ctx, "a@ncit.edu.np"))
	assert.Len(t, f.mail.sent, 2)

	require.NoError(t, f.svc.VerifyEmail(ctx, "a@ncit.edu.np", "123456"))
	assert.True(t, apperror.Is(f.svc.ResendVerification(ctx, "a@ncit.edu.np"), apperror.CodeConflict))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.register(t, "new@ncit.edu.np")
	u := f.verified(t, "jane@ncit.edu.np")

	_, _, err := f.svc.Authenticate(ctx, "new@ncit.edu.np", "s3cretpass")
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized), "unverified user %s", pending.ID)

	_, _, err = f.svc.Authenticate(ctx, "jane@ncit.edu.np", "wrong")
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized))

	_, _, err = f.svc.Authenticate(ctx, "ghost@ncit.edu.np", "s3cretpass")
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized))

	token, got, err := f.svc.Authenticate(ctx, "JANE@ncit.edu.np", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, "token-"+u.ID, token)
	assert.Equal(t, u.ID, got.ID)

	f.tokens.err = errors.New("signing failed")
	_, _, err = f.svc.Authenticate(ctx, "jane@ncit.edu.np", "s3cretpass")
	assert.True(t, apperror.Is(err, apperror.CodeInternal))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.verified(t, "jane@ncit.edu.np")
	actor := models.Actor{UserID: u.ID, Role: models.RoleUser}

	assert.True(t, apperror.Is(f.svc.ChangePassword(ctx, models.Actor{}, "s3cretpass", "n3wpassword"), apperror.CodeUnauthorized))
	assert.True(t, apperror.Is(f.svc.ChangePassword(ctx, actor, "wrong", "n3wpassword"), apperror.CodeValidation))
	assert.True(t, apperror.Is(f.svc.ChangePassword(ctx, actor, "s3cretpass", "s3cretpass"), apperror.CodeValidation))

	require.NoError(t, f.svc.ChangePassword(ctx, actor, "s3cretpass", "n3wpassword"))
	_, _, err := f.svc.Authenticate(ctx, "jane@ncit.edu.np", "n3wpassword")
	assert.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verified(t, "jane@ncit.edu.np")

	assert.True(t, apperror.Is(f.svc.ForgotPassword(ctx, "ghost@ncit.edu.np"), apperror.CodeNotFound))

	require.NoError(t, f.svc.ForgotPassword(ctx, "jane@ncit.edu.np"))
	mail := f.mail.last()
	require.Equal(t, "reset", mail.kind)
	require.True(t, strings.HasPrefix(mail.payload, "http://portal.test/reset-password/"))
	token := strings.TrimPrefix(mail.payload, "http://portal.test/reset-password/")

	stored, err := f.users.GetByEmail(ctx, "jane@ncit.edu.np")
	require.NoError(t, err)
	assert.Equal(t, utils.HashToken(token), stored.ResetPasswordToken)

	err = f.svc.ResetPassword(ctx, "not-the-token", "n3wpassword")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	require.NoError(t, f.svc.ResetPassword(ctx, token, "n3wpassword"))
	_, _, err = f.svc.Authenticate(ctx, "jane@ncit.edu.np", "n3wpassword")
	assert.NoError(t, err)

	assert.True(t, apperror.Is(f.svc.ResetPassword(ctx, token, "again12345"), apperror.CodeValidation))
}

func TestResetPasswordExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.verified(t, "jane@ncit.edu.np")

	require.NoError(t, f.svc.ForgotPassword(ctx, "jane@ncit.edu.np"))
	token := strings.TrimPrefix(f.mail.last().payload, "http://portal.test/reset-password/")

	f.clock = f.clock.Add(16 * time.Minute)
	assert.True(t, apperror.Is(f.svc.ResetPassword(ctx, token, "n3wpassword"), apperror.CodeValidation))
}

func TestMeAndListByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.verified(t, "jane@ncit.edu.np")
	f.register(t, "john@ncit.edu.np")
	actor := models.Actor{UserID: u.ID, Role: models.RoleUser}

	me, err := f.svc.Me(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, "jane@ncit.edu.np", me.Email)

	_, err = f.svc.ListByRole(ctx, actor, models.RoleUser)
	assert.True(t, apperror.Is(err, apperror.CodeForbidden))

	admin := models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	users, err := f.svc.ListByRole(ctx, admin, models.RoleUser)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = f.svc.ListByRole(ctx, admin, "root")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestAppendCertificateID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane@ncit.edu.np")

	require.NoError(t, f.svc.AppendCertificateID(ctx, u.ID, "c-1"))
	require.NoError(t, f.svc.AppendCertificateID(ctx, u.ID, "c-1"))

	got, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1"}, []string(got.CertificateIDs))
}

func TestOptions(t *testing.T) {
	f := newFixture(t)
	opts := f.svc.Options()
	assert.Equal(t, []string{"ncit.edu.np"}, opts.AllowedDomains)
	assert.Equal(t, []string{"BE IT", "BCA"}, opts.Courses)
}
