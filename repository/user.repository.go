package repository

import (
	"context"
	"time"

	"certportal/apperror"
	"certportal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if err := withCtx(ctx, r.db).Create(u).Error; err != nil {
		return apperror.Internal("failed to save user", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := withCtx(ctx, r.db).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := withCtx(ctx, r.db).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	return &u, nil
}

// GetByResetToken matches the stored token hash and requires it to be unexpired.
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	var u models.User
	err := withCtx(ctx, r.db).
		Where("reset_password_token = ? AND reset_password_expires > ?", tokenHash, now).
		First(&u).Error
	if err != nil {
		return nil, notFoundOr(err, "Invalid or expired token")
	}
	return &u, nil
}

// Save writes the account columns of u. The certificate index is owned by
// AppendCertificateID and is never written from a possibly stale copy.
func (r *UserRepository) Save(ctx context.Context, u *models.User) error {
	res := withCtx(ctx, r.db).Model(u).
		Select("*").
		Omit("id", "certificate_ids", "created_at").
		Updates(u)
	if res.Error != nil {
		return apperror.Internal("failed to update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("User not found")
	}
	return nil
}

// AppendCertificateID adds certID to the user's index once.
func (r *UserRepository) AppendCertificateID(ctx context.Context, userID, certID string) error {
	return withCtx(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := forUpdate(tx).Where("id = ?", userID).First(&u).Error; err != nil {
			return notFoundOr(err, "User not found")
		}
		for _, id := range u.CertificateIDs {
			if id == certID {
				return nil
			}
		}
		u.CertificateIDs = append(u.CertificateIDs, certID)
		if err := tx.Model(&u).Update("certificate_ids", u.CertificateIDs).Error; err != nil {
			return apperror.Internal("failed to update certificate index", err)
		}
		return nil
	})
}

func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]*models.User, error) {
	var users []*models.User
	if err := withCtx(ctx, r.db).Where("role = ?", role).Order("created_at desc").Find(&users).Error; err != nil {
		return nil, apperror.Internal("failed to fetch users", err)
	}
	return users, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	if err := withCtx(ctx, r.db).Model(&models.User{}).Where("role = ?", role).Count(&n).Error; err != nil {
		return 0, apperror.Internal("failed to count users", err)
	}
	return n, nil
}

// ClearExpiredTokens wipes verification codes and reset tokens past their expiry.
func (r *UserRepository) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := withCtx(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("email_verification_expires IS NOT NULL AND email_verification_expires < ?", now).
			Updates(map[string]interface{}{"email_verification_code": "", "email_verification_expires": nil})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected

		res = tx.Model(&models.User{}).
			Where("reset_password_expires IS NOT NULL AND reset_password_expires < ?", now).
			Updates(map[string]interface{}{"reset_password_token": "", "reset_password_expires": nil})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, apperror.Internal("failed to clear expired tokens", err)
	}
	return total, nil
}
