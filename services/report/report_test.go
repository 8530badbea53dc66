package report

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"certportal/apperror"
	"certportal/models"
	"certportal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var clock = time.Date(2025, 5, 20, 15, 30, 0, 0, time.UTC)

func newRepos(t *testing.T) (*repository.CertificateRepository, *repository.UserRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "report.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.CertificateRequest{}))
	return repository.NewCertificateRepository(db), repository.NewUserRepository(db)
}

func TestStats_MatchesStoreContents(t *testing.T) {
	ctx := context.Background()
	certs, users := newRepos(t)

	for i, role := range []string{models.RoleUser, models.RoleUser, models.RoleUser, models.RoleAdmin} {
		require.NoError(t, users.Create(ctx, &models.User{Email: fmt.Sprintf("u%d@ncit.edu.np", i), Password: "x", Role: role}))
	}

	seed := []struct {
		status    string
		requested time.Time
	}{
		{models.StatusPending, clock.Add(-time.Hour)},
		{models.StatusPending, clock.AddDate(0, 0, -3)},
		{models.StatusCreated, clock.AddDate(0, 0, -10)},
		{models.StatusRejected, clock.Add(-2 * time.Hour)},
		{models.StatusPending, clock.Add(-16 * time.Hour)},
	}
	for i, s := range seed {
		require.NoError(t, certs.Create(ctx, &models.CertificateRequest{
			Title:           fmt.Sprintf("Request %d", i),
			CertificateType: "Mark Sheet",
			OwnerID:         "u",
			Status:          s.status,
			RequestedDate:   s.requested,
		}))
	}

	svc := NewService(certs, users, func() time.Time { return clock })
	stats, err := svc.Stats(ctx, models.Actor{UserID: "a", Role: models.RoleAdmin})
	require.NoError(t, err)

	pending, err := certs.FindAll(ctx, repository.CertificateFilter{Status: models.StatusPending})
	require.NoError(t, err)

	assert.Equal(t, int64(len(pending)), stats.PendingCount)
	assert.Equal(t, &Stats{
		TotalUsers:     3,
		CreatedCount:   1,
		PendingCount:   3,
		RejectedCount:  1,
		RequestedToday: 2,
	}, stats)
}

func TestStats_AdminOnly(t *testing.T) {
	certs, users := newRepos(t)
	svc := NewService(certs, users, nil)

	_, err := svc.Stats(context.Background(), models.Actor{})
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized))

	_, err = svc.Stats(context.Background(), models.Actor{UserID: "u", Role: models.RoleUser})
	assert.True(t, apperror.Is(err, apperror.CodeForbidden))
}

type failingUsers struct{}

func (failingUsers) CountByRole(context.Context, string) (int64, error) {
	return 0, apperror.Internal("failed to count users", errors.New("db down"))
}

func TestStats_PropagatesStoreErrors(t *testing.T) {
	certs, _ := newRepos(t)
	svc := NewService(certs, failingUsers{}, nil)

	_, err := svc.Stats(context.Background(), models.Actor{UserID: "a", Role: models.RoleAdmin})
	assert.True(t, apperror.Is(err, apperror.CodeInternal))
}
