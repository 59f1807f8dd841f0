package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleOps   Role = "ops"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOps, RoleUser:
		return true
	}
	return false
}

// SystemUserID identifies the account recorded as reviewer, creator and
// uploader for everything done by the automatic review path.
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

const SystemUsername = "system"

type User struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Username  string     `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Email     *string    `json:"email,omitempty" gorm:"size:100;uniqueIndex"`
	Password  string     `json:"-"`
	Role      Role       `json:"role" gorm:"size:16;not null;default:user"`
	IsActive  bool       `json:"isActive" gorm:"not null"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
