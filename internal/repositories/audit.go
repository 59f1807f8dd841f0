package repositories

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/models"
)

// AuditStore appends to and reads the audit trail. Recording never fails
// the operation being audited.
type AuditStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewAuditStore(db *gorm.DB, log zerolog.Logger) *AuditStore {
	return &AuditStore{db: db, log: log.With().Str("component", "audit").Logger()}
}

type AuditEntry struct {
	UserID       uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Details      any
	IPAddress    string
}

func (s *AuditStore) Record(ctx context.Context, e AuditEntry) {
	RecordAudit(s.db.WithContext(ctx), s.log, e)
}

// RecordAudit writes e through db, which may be a transaction.
func RecordAudit(db *gorm.DB, log zerolog.Logger, e AuditEntry) {
	row := models.AuditLog{
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		IPAddress:    e.IPAddress,
	}
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			log.Warn().Err(err).Str("action", e.Action).Msg("cannot encode audit details")
		} else {
			row.Details = datatypes.JSON(b)
		}
	}
	if err := db.Create(&row).Error; err != nil {
		log.Error().Err(err).Str("action", e.Action).Msg("cannot write audit log")
	}
}

type AuditFilter struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	Skip         int
	Limit        int
}

func (s *AuditStore) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, int64, error) {
	skip, limit := page(f.Skip, f.Limit, 50, 500)
	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	logs := []models.AuditLog{}
	err := q.Order("created_at DESC").Offset(skip).Limit(limit).Find(&logs).Error
	return logs, total, err
}
