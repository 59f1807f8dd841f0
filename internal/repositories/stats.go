package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/models"
)

type Dashboard struct {
	SoftwareCount   int64 `json:"softwareCount"`
	TotalDownloads  int64 `json:"totalDownloads"`
	PendingRequests int64 `json:"pendingRequests"`
	UserCount       int64 `json:"userCount"`
}

// DashboardStats counts the headline numbers. Pending requests and users are
// only counted when privileged is set.
func DashboardStats(ctx context.Context, db *gorm.DB, privileged bool) (*Dashboard, error) {
	db = db.WithContext(ctx)
	var d Dashboard
	if err := db.Model(&models.Software{}).Count(&d.SoftwareCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.DownloadLog{}).Count(&d.TotalDownloads).Error; err != nil {
		return nil, err
	}
	if !privileged {
		return &d, nil
	}
	if err := db.Model(&models.SoftwareRequest{}).Where("status = ?", models.StatusPending).Count(&d.PendingRequests).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("id <> ?", models.SystemUserID).Count(&d.UserCount).Error; err != nil {
		return nil, err
	}
	return &d, nil
}
