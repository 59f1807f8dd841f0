package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	// StatusProcessing is part of the stored enum but nothing transitions to it.
	StatusProcessing RequestStatus = "processing"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusProcessing:
		return true
	}
	return false
}

// SoftwareRequest is a user's ask to add or update a piece of software.
// SoftwareID is set once the request has been approved.
type SoftwareRequest struct {
	ID            uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	SoftwareName  string        `json:"softwareName" gorm:"size:100;not null;index"`
	Version       string        `json:"version" gorm:"size:50;not null"`
	DownloadURL   string        `json:"downloadUrl" gorm:"size:500;not null"`
	Description   string        `json:"description" gorm:"type:text"`
	Category      string        `json:"category" gorm:"size:50"`
	Logo          string        `json:"logo" gorm:"size:255"`
	OfficialURL   string        `json:"officialUrl" gorm:"size:255"`
	ApplicantID   uuid.UUID     `json:"applicantId" gorm:"type:uuid;index;not null"`
	Status        RequestStatus `json:"status" gorm:"size:16;index;not null"`
	ReviewerID    *uuid.UUID    `json:"reviewerId" gorm:"type:uuid"`
	ReviewComment string        `json:"reviewComment" gorm:"type:text"`
	ReviewedAt    *time.Time    `json:"reviewedAt"`
	SoftwareID    *uuid.UUID    `json:"softwareId" gorm:"type:uuid;index"`
	CreatedAt     time.Time     `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time     `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (r *SoftwareRequest) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	if r.Status == "" {
		r.Status = StatusPending
	}
	return nil
}
