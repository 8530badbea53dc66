package report

import (
	"context"
	"time"

	"certportal/apperror"
	"certportal/models"

	"github.com/jinzhu/now"
)

type CertificateCounter interface {
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountRequestedSince(ctx context.Context, since time.Time) (int64, error)
}

type UserCounter interface {
	CountByRole(ctx context.Context, role string) (int64, error)
}

// Stats is derived on every call; nothing is cached.
type Stats struct {
	TotalUsers     int64 `json:"totalUsers"`
	CreatedCount   int64 `json:"createdCount"`
	PendingCount   int64 `json:"pendingCount"`
	RejectedCount  int64 `json:"rejectedCount"`
	RequestedToday int64 `json:"requestedToday"`
}

type Service struct {
	certs CertificateCounter
	users UserCounter
	clock func() time.Time
}

func NewService(certs CertificateCounter, users UserCounter, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{certs: certs, users: users, clock: clock}
}

func (s *Service) Stats(ctx context.Context, actor models.Actor) (*Stats, error) {
	if actor.IsZero() {
		return nil, apperror.Unauthorized("Authorization token required")
	}
	if !actor.IsAdmin() {
		return nil, apperror.Forbidden("Access denied! Admin only.")
	}

	var (
		out Stats
		err error
	)
	if out.TotalUsers, err = s.users.CountByRole(ctx, models.RoleUser); err != nil {
		return nil, err
	}
	if out.CreatedCount, err = s.certs.CountByStatus(ctx, models.StatusCreated); err != nil {
		return nil, err
	}
	if out.PendingCount, err = s.certs.CountByStatus(ctx, models.StatusPending); err != nil {
		return nil, err
	}
	if out.RejectedCount, err = s.certs.CountByStatus(ctx, models.StatusRejected); err != nil {
		return nil, err
	}

	today := now.With(s.clock()).BeginningOfDay()
	if out.RequestedToday, err = s.certs.CountRequestedSince(ctx, today); err != nil {
		return nil, err
	}
	return &out, nil
}
