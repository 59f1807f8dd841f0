package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/models"
)

type RequestStore struct {
	db *gorm.DB
}

func NewRequestStore(db *gorm.DB) *RequestStore {
	return &RequestStore{db: db}
}

func (s *RequestStore) Create(ctx context.Context, r *models.SoftwareRequest) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *RequestStore) Get(ctx context.Context, id uuid.UUID) (*models.SoftwareRequest, error) {
	return GetRequest(s.db.WithContext(ctx), id)
}

func GetRequest(db *gorm.DB, id uuid.UUID) (*models.SoftwareRequest, error) {
	var r models.SoftwareRequest
	if err := db.First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "request "+id.String())
	}
	return &r, nil
}

type RequestFilter struct {
	Status models.RequestStatus
	// ApplicantID restricts the listing to one applicant when set.
	ApplicantID *uuid.UUID
	Skip        int
	Limit       int
}

// RequestRow is a request joined with the names of the people involved.
type RequestRow struct {
	models.SoftwareRequest
	ApplicantName string `json:"applicantName"`
	ReviewerName  string `json:"reviewerName,omitempty"`
}

func (s *RequestStore) List(ctx context.Context, f RequestFilter) ([]RequestRow, int64, error) {
	skip, limit := page(f.Skip, f.Limit, 20, 100)

	q := s.db.WithContext(ctx).Model(&models.SoftwareRequest{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ApplicantID != nil {
		q = q.Where("applicant_id = ?", *f.ApplicantID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reqs []models.SoftwareRequest
	if err := q.Order("created_at DESC").Offset(skip).Limit(limit).Find(&reqs).Error; err != nil {
		return nil, 0, err
	}

	ids := map[uuid.UUID]struct{}{}
	for _, r := range reqs {
		ids[r.ApplicantID] = struct{}{}
		if r.ReviewerID != nil {
			ids[*r.ReviewerID] = struct{}{}
		}
	}
	names, err := usernames(s.db.WithContext(ctx), ids)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]RequestRow, len(reqs))
	for i, r := range reqs {
		rows[i] = RequestRow{SoftwareRequest: r, ApplicantName: names[r.ApplicantID]}
		if r.ReviewerID != nil {
			rows[i].ReviewerName = names[*r.ReviewerID]
		}
	}
	return rows, total, nil
}

// DownloadURLsByVersion maps version labels of softwareID to the download
// URL of the request that introduced them.
func (s *RequestStore) DownloadURLsByVersion(ctx context.Context, softwareID uuid.UUID) (map[string]string, error) {
	var reqs []models.SoftwareRequest
	if err := s.db.WithContext(ctx).
		Select("version, download_url").
		Where("software_id = ?", softwareID).
		Order("created_at").
		Find(&reqs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(reqs))
	for _, r := range reqs {
		out[r.Version] = r.DownloadURL
	}
	return out, nil
}

// ReviewUpdate is written by MarkReviewed.
type ReviewUpdate struct {
	Status     models.RequestStatus
	ReviewerID uuid.UUID
	Comment    string
	ReviewedAt time.Time
	SoftwareID *uuid.UUID
}

// MarkReviewed moves a pending request to its reviewed state. It reports
// false when the request was no longer pending.
func MarkReviewed(tx *gorm.DB, id uuid.UUID, u ReviewUpdate) (bool, error) {
	changes := map[string]any{
		"status":         u.Status,
		"reviewer_id":    u.ReviewerID,
		"review_comment": u.Comment,
		"reviewed_at":    u.ReviewedAt,
	}
	if u.SoftwareID != nil {
		changes["software_id"] = *u.SoftwareID
	}
	res := tx.Model(&models.SoftwareRequest{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(changes)
	return res.RowsAffected == 1, res.Error
}

// AnnotatePending rewrites the comment and reviewer of a request that is
// still pending, leaving its status alone.
func (s *RequestStore) AnnotatePending(ctx context.Context, id, reviewerID uuid.UUID, comment string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.SoftwareRequest{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]any{"reviewer_id": reviewerID, "review_comment": comment})
	return res.RowsAffected == 1, res.Error
}

func usernames(db *gorm.DB, ids map[uuid.UUID]struct{}) (map[uuid.UUID]string, error) {
	out := map[uuid.UUID]string{}
	if len(ids) == 0 {
		return out, nil
	}
	list := make([]uuid.UUID, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	var users []models.User
	if err := db.Select("id, username").Where("id IN ?", list).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Username
	}
	return out, nil
}
