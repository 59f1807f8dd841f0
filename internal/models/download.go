package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DownloadLog is an append-only record of one download.
type DownloadLog struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID `json:"userId" gorm:"type:uuid;index;not null"`
	SoftwareVersionID uuid.UUID `json:"softwareVersionId" gorm:"type:uuid;index;not null"`
	DownloadTime      time.Time `json:"downloadTime" gorm:"autoCreateTime;index"`
	IPAddress         string    `json:"ipAddress" gorm:"size:45"`
}

func (d *DownloadLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&d.ID)
	return nil
}
