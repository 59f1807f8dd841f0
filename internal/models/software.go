package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Software is a distinct distributable product. Name is unique.
type Software struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string            `json:"name" gorm:"size:100;uniqueIndex;not null"`
	Description string            `json:"description" gorm:"type:text"`
	Category    string            `json:"category" gorm:"size:50;index"`
	IconURL     string            `json:"iconUrl" gorm:"size:255"`
	Logo        string            `json:"logo" gorm:"size:255"`
	OfficialURL string            `json:"officialUrl" gorm:"size:255"`
	CreatedBy   uuid.UUID         `json:"createdBy" gorm:"type:uuid;index"`
	CreatedAt   time.Time         `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `json:"updatedAt" gorm:"autoUpdateTime"`
	Versions    []SoftwareVersion `json:"versions,omitempty" gorm:"foreignKey:SoftwareID"`
}

func (Software) TableName() string { return "software" }

func (s *Software) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// SoftwareVersion is one stored artifact of a Software. Version labels are
// free-form and may repeat within the same Software.
type SoftwareVersion struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SoftwareID    uuid.UUID `json:"softwareId" gorm:"type:uuid;index;not null"`
	Version       string    `json:"version" gorm:"size:50;not null"`
	FilePath      string    `json:"-" gorm:"size:255;not null"` // storage key
	FileName      string    `json:"fileName" gorm:"size:255;not null"`
	FileSize      int64     `json:"fileSize"`                // bytes
	FileHash      string    `json:"fileHash" gorm:"size:64"` // sha256 hex
	UploadTime    time.Time `json:"uploadTime" gorm:"autoCreateTime"`
	UploaderID    uuid.UUID `json:"uploaderId" gorm:"type:uuid;index"`
	DownloadCount int64     `json:"downloadCount" gorm:"not null;default:0"`
	ReleaseNotes  string    `json:"releaseNotes" gorm:"type:text"`
}

func (v *SoftwareVersion) BeforeCreate(tx *gorm.DB) error {
	assignID(&v.ID)
	return nil
}
