package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	Name          string `gorm:"default:''" json:"name"`
	Email         string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	RollNo        string `gorm:"default:''" json:"rollNo"`
	Course        string `gorm:"default:''" json:"course"`
	PublicAddress string `gorm:"size:42;default:''" json:"publicAddress"`
	Role          string `gorm:"size:16;index;default:'user'" json:"role"` // user, admin
	Password      string `gorm:"not null" json:"-"`

	IsEmailVerified          bool       `gorm:"default:false" json:"isEmailVerified"`
	EmailVerificationCode    string     `gorm:"size:6;default:''" json:"-"`
	EmailVerificationExpires *time.Time `json:"-"`
	ResetPasswordToken       string     `gorm:"size:64;index;default:''" json:"-"` // sha256 hex of the emailed token
	ResetPasswordExpires     *time.Time `json:"-"`

	// Back-reference index; the owner column on each request is authoritative.
	CertificateIDs datatypes.JSONSlice[string] `json:"certificateIds"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// Profile is the public projection joined onto certificate requests.
func (u *User) Profile() *UserProfile {
	return &UserProfile{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		RollNo:        u.RollNo,
		Course:        u.Course,
		PublicAddress: u.PublicAddress,
	}
}

// UserProfile holds the owner fields exposed alongside a request.
type UserProfile struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	RollNo        string `json:"rollNo"`
	Course        string `json:"course"`
	PublicAddress string `json:"publicAddress"`
}

// Actor is the verified identity behind a call. It is always passed
// explicitly into service methods.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

func (a Actor) IsZero() bool { return a.UserID == "" }
