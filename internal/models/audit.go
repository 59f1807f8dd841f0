package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID      `json:"userId" gorm:"type:uuid;index;not null"`
	Action       string         `json:"action" gorm:"size:50;index;not null"` // review, upload, delete...
	ResourceType string         `json:"resourceType" gorm:"size:50"`
	ResourceID   string         `json:"resourceId" gorm:"size:64"`
	Details      datatypes.JSON `json:"details"`
	IPAddress    string         `json:"ipAddress" gorm:"size:45"`
	CreatedAt    time.Time      `json:"createdAt" gorm:"autoCreateTime;index"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
