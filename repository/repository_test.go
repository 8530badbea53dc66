package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"certportal/apperror"
	"certportal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.CertificateRequest{}))
	return db
}

func seedUser(t *testing.T, repo *UserRepository, email, role string) *models.User {
	t.Helper()
	u := &models.User{Name: "Student " + email, Email: email, Password: "x", Role: role, RollNo: "021-301"}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestCertificateRepository_CreateGetJoinsOwner(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	certs := NewCertificateRepository(db)
	owner := seedUser(t, users, "jane@ncit.edu.np", models.RoleUser)

	rec := &models.CertificateRequest{
		Title:           "X",
		CertificateType: "Course Completion",
		OwnerID:         owner.ID,
		Status:          models.StatusPending,
		AttachmentNames: []string{"a.pdf", "b.pdf"},
		RequestedDate:   time.Now(),
	}
	require.NoError(t, certs.Create(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := certs.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, []string(got.AttachmentNames))
	require.NotNil(t, got.Owner)
	assert.Equal(t, "jane@ncit.edu.np", got.Owner.Email)
	assert.Equal(t, "021-301", got.Owner.RollNo)
}

func TestCertificateRepository_GetMissing(t *testing.T) {
	certs := NewCertificateRepository(newTestDB(t))

	_, err := certs.Get(context.Background(), "nope")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestCertificateRepository_UpdateAppliesOrAborts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := seedUser(t, NewUserRepository(db), "a@x.io", models.RoleUser)
	certs := NewCertificateRepository(db)

	rec := &models.CertificateRequest{Title: "X", CertificateType: "Mark Sheet", OwnerID: owner.ID, Status: models.StatusPending, RequestedDate: time.Now()}
	require.NoError(t, certs.Create(ctx, rec))

	updated, err := certs.Update(ctx, rec.ID, func(r *models.CertificateRequest) error {
		r.Status = models.StatusRejected
		r.RejectionReason = "Missing signature"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)

	_, err = certs.Update(ctx, rec.ID, func(r *models.CertificateRequest) error {
		r.Title = "changed"
		return apperror.InvalidTransition("no")
	})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidTransition))

	got, err := certs.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "X", got.Title)
	assert.Equal(t, "Missing signature", got.RejectionReason)

	_, err = certs.Update(ctx, "missing", func(*models.CertificateRequest) error { return nil })
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestCertificateRepository_FiltersAndCounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	certs := NewCertificateRepository(db)
	a := seedUser(t, users, "a@x.io", models.RoleUser)
	b := seedUser(t, users, "b@x.io", models.RoleUser)

	now := time.Now()
	for i, tc := range []struct {
		owner  string
		status string
	}{
		{a.ID, models.StatusPending},
		{a.ID, models.StatusCreated},
		{b.ID, models.StatusPending},
		{b.ID, models.StatusRejected},
	} {
		rec := &models.CertificateRequest{
			Title: "T", CertificateType: "Character Certificate", OwnerID: tc.owner,
			Status: tc.status, RequestedDate: now.Add(time.Duration(i) * time.Minute),
		}
		if tc.status == models.StatusCreated {
			rec.ContentHash = "QmIssued"
		}
		require.NoError(t, certs.Create(ctx, rec))
	}

	mine, err := certs.FindByOwner(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := certs.FindAll(ctx, CertificateFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, !all[0].RequestedDate.Before(all[3].RequestedDate))

	pending, err := certs.FindAll(ctx, CertificateFilter{Status: models.StatusPending})
	require.NoError(t, err)
	n, err := certs.CountByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(len(pending)), n)

	since, err := certs.CountRequestedSince(ctx, now.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), since)

	issued, err := certs.FindIssuedByContentHash(ctx, "QmIssued")
	require.NoError(t, err)
	assert.Equal(t, a.ID, issued.OwnerID)

	_, err = certs.FindIssuedByContentHash(ctx, "QmOther")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestCertificateRepository_Delete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := seedUser(t, NewUserRepository(db), "a@x.io", models.RoleUser)
	certs := NewCertificateRepository(db)

	rec := &models.CertificateRequest{Title: "X", CertificateType: "Mark Sheet", OwnerID: owner.ID, RequestedDate: time.Now()}
	require.NoError(t, certs.Create(ctx, rec))

	require.NoError(t, certs.Delete(ctx, rec.ID))
	assert.True(t, apperror.Is(certs.Delete(ctx, rec.ID), apperror.CodeNotFound))
}

func TestUserRepository_AppendCertificateID(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newTestDB(t))
	u := seedUser(t, users, "a@x.io", models.RoleUser)

	var wg sync.WaitGroup
	for _, id := range []string{"c1", "c2", "c3"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, users.AppendCertificateID(ctx, u.ID, id))
		}(id)
	}
	wg.Wait()
	require.NoError(t, users.AppendCertificateID(ctx, u.ID, "c1"))

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, []string(got.CertificateIDs))

	err = users.AppendCertificateID(ctx, "ghost", "c9")
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestUserRepository_SaveKeepsCertificateIndex(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newTestDB(t))
	u := seedUser(t, users, "a@x.io", models.RoleUser)

	stale, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, users.AppendCertificateID(ctx, u.ID, "cert-1"))

	stale.IsEmailVerified = true
	stale.EmailVerificationCode = ""
	require.NoError(t, users.Save(ctx, stale))

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEmailVerified)
	assert.Equal(t, []string{"cert-1"}, []string(got.CertificateIDs))

	err = users.Save(ctx, &models.User{ID: "ghost", Email: "ghost@x.io"})
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestUserRepository_RolesAndTokens(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newTestDB(t))
	seedUser(t, users, "a@x.io", models.RoleUser)
	seedUser(t, users, "b@x.io", "")
	seedUser(t, users, "admin@x.io", models.RoleAdmin)

	n, err := users.CountByRole(ctx, models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	admins, err := users.ListByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@x.io", admins[0].Email)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	u, err := users.GetByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	u.EmailVerificationCode = "123456"
	u.EmailVerificationExpires = &past
	u.ResetPasswordToken = "hash"
	u.ResetPasswordExpires = &future
	require.NoError(t, users.Save(ctx, u))

	byToken, err := users.GetByResetToken(ctx, "hash", time.Now())
	require.NoError(t, err)
	assert.Equal(t, u.ID, byToken.ID)

	cleared, err := users.ClearExpiredTokens(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.EmailVerificationCode)
	assert.Nil(t, got.EmailVerificationExpires)
	assert.Equal(t, "hash", got.ResetPasswordToken)

	_, err = users.GetByResetToken(ctx, "hash", future.Add(time.Minute))
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}
