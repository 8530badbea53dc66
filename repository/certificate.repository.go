package repository

import (
	"context"
	"time"

	"certportal/apperror"
	"certportal/models"

	"gorm.io/gorm"
)

// CertificateFilter narrows FindAll. Zero fields match everything.
type CertificateFilter struct {
	Status          string
	CertificateType string
	OwnerID         string
}

type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) Create(ctx context.Context, rec *models.CertificateRequest) error {
	if err := withCtx(ctx, r.db).Create(rec).Error; err != nil {
		return apperror.Internal("failed to save certificate request", err)
	}
	return nil
}

func (r *CertificateRepository) Get(ctx context.Context, id string) (*models.CertificateRequest, error) {
	var rec models.CertificateRequest
	if err := withCtx(ctx, r.db).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, notFoundOr(err, "Certificate not found")
	}
	if err := r.attachOwners(ctx, []*models.CertificateRequest{&rec}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *CertificateRepository) FindByOwner(ctx context.Context, ownerID string) ([]*models.CertificateRequest, error) {
	return r.FindAll(ctx, CertificateFilter{OwnerID: ownerID})
}

func (r *CertificateRepository) FindAll(ctx context.Context, f CertificateFilter) ([]*models.CertificateRequest, error) {
	q := withCtx(ctx, r.db).Model(&models.CertificateRequest{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CertificateType != "" {
		q = q.Where("certificate_type = ?", f.CertificateType)
	}
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}

	var recs []*models.CertificateRequest
	if err := q.Order("requested_date desc").Find(&recs).Error; err != nil {
		return nil, apperror.Internal("failed to fetch certificates", err)
	}
	if err := r.attachOwners(ctx, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// FindIssuedByContentHash looks up the created record carrying hash.
func (r *CertificateRepository) FindIssuedByContentHash(ctx context.Context, hash string) (*models.CertificateRequest, error) {
	var rec models.CertificateRequest
	err := withCtx(ctx, r.db).
		Where("content_hash = ? AND status = ?", hash, models.StatusCreated).
		First(&rec).Error
	if err != nil {
		return nil, notFoundOr(err, "Certificate not found")
	}
	if err := r.attachOwners(ctx, []*models.CertificateRequest{&rec}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update loads the record under a row lock, applies mutate and saves the
// result in one transaction. If mutate returns an error nothing is written.
func (r *CertificateRepository) Update(ctx context.Context, id string, mutate func(*models.CertificateRequest) error) (*models.CertificateRequest, error) {
	var out models.CertificateRequest

	err := withCtx(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var rec models.CertificateRequest
		if err := forUpdate(tx).Where("id = ?", id).First(&rec).Error; err != nil {
			return notFoundOr(err, "Certificate not found")
		}
		if err := mutate(&rec); err != nil {
			return err
		}
		if err := tx.Save(&rec).Error; err != nil {
			return apperror.Internal("failed to update certificate", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.attachOwners(ctx, []*models.CertificateRequest{&out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *CertificateRepository) Delete(ctx context.Context, id string) error {
	res := withCtx(ctx, r.db).Where("id = ?", id).Delete(&models.CertificateRequest{})
	if res.Error != nil {
		return apperror.Internal("failed to delete certificate", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("Certificate not found")
	}
	return nil
}

func (r *CertificateRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	if err := withCtx(ctx, r.db).Model(&models.CertificateRequest{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, apperror.Internal("failed to count certificates", err)
	}
	return n, nil
}

func (r *CertificateRepository) CountRequestedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := withCtx(ctx, r.db).Model(&models.CertificateRequest{}).Where("requested_date >= ?", since).Count(&n).Error; err != nil {
		return 0, apperror.Internal("failed to count certificates", err)
	}
	return n, nil
}

// attachOwners joins the owner's public profile onto each record.
func (r *CertificateRepository) attachOwners(ctx context.Context, recs []*models.CertificateRequest) error {
	if len(recs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(recs))
	seen := make(map[string]bool)
	for _, rec := range recs {
		if !seen[rec.OwnerID] {
			seen[rec.OwnerID] = true
			ids = append(ids, rec.OwnerID)
		}
	}

	var users []models.User
	if err := withCtx(ctx, r.db).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return apperror.Internal("failed to fetch owners", err)
	}
	byID := make(map[string]*models.UserProfile, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].Profile()
	}
	for _, rec := range recs {
		rec.Owner = byID[rec.OwnerID]
	}
	return nil
}
