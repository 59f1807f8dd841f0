package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/models"
)

type DownloadStore struct {
	db *gorm.DB
}

func NewDownloadStore(db *gorm.DB) *DownloadStore {
	return &DownloadStore{db: db}
}

type DownloadFilter struct {
	UserID    *uuid.UUID
	VersionID *uuid.UUID
	Skip      int
	Limit     int
}

type DownloadRow struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	Username     string    `json:"username"`
	SoftwareName string    `json:"softwareName"`
	Version      string    `json:"version"`
	DownloadTime time.Time `json:"downloadTime"`
	IPAddress    string    `json:"ipAddress"`
}

func (s *DownloadStore) Logs(ctx context.Context, f DownloadFilter) ([]DownloadRow, int64, error) {
	skip, limit := page(f.Skip, f.Limit, 50, 500)

	q := s.db.WithContext(ctx).Model(&models.DownloadLog{})
	if f.UserID != nil {
		q = q.Where("download_logs.user_id = ?", *f.UserID)
	}
	if f.VersionID != nil {
		q = q.Where("download_logs.software_version_id = ?", *f.VersionID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	rows := []DownloadRow{}
	err := q.Select(`download_logs.id, download_logs.user_id, download_logs.download_time, download_logs.ip_address,
			COALESCE(users.username, '') AS username,
			COALESCE(software.name, '') AS software_name,
			COALESCE(software_versions.version, '') AS version`).
		Joins("LEFT JOIN users ON users.id = download_logs.user_id").
		Joins("LEFT JOIN software_versions ON software_versions.id = download_logs.software_version_id").
		Joins("LEFT JOIN software ON software.id = software_versions.software_id").
		Order("download_logs.download_time DESC").
		Offset(skip).Limit(limit).
		Scan(&rows).Error
	return rows, total, err
}

type TopSoftware struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type DownloadStats struct {
	TotalDownloads int64         `json:"totalDownloads"`
	UniqueUsers    int64         `json:"uniqueUsers"`
	TopSoftware    []TopSoftware `json:"topSoftware"`
}

func (s *DownloadStore) Stats(ctx context.Context) (*DownloadStats, error) {
	db := s.db.WithContext(ctx)
	st := &DownloadStats{TopSoftware: []TopSoftware{}}

	if err := db.Model(&models.DownloadLog{}).Count(&st.TotalDownloads).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.DownloadLog{}).Distinct("user_id").Count(&st.UniqueUsers).Error; err != nil {
		return nil, err
	}
	err := db.Model(&models.DownloadLog{}).
		Select("software.name AS name, COUNT(download_logs.id) AS count").
		Joins("JOIN software_versions ON software_versions.id = download_logs.software_version_id").
		Joins("JOIN software ON software.id = software_versions.software_id").
		Group("software.name").
		Order("count DESC").
		Limit(10).
		Scan(&st.TopSoftware).Error
	if err != nil {
		return nil, err
	}
	return st, nil
}
