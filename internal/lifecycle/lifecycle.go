// Package lifecycle drives a SoftwareRequest from submission through review
// to the background fetch that turns it into a SoftwareVersion.
//
// Approval and the Software it resolves to are committed together. The fetch
// and the version insert happen later on a task queue, so a failed or lost
// fetch leaves an approved request without a version. Nothing retries it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/advisor"
	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/fetcher"
	"github.com/rohits-web03/softvault/internal/models"
	"github.com/rohits-web03/softvault/internal/repositories"
	"github.com/rohits-web03/softvault/internal/storage"
	"github.com/rohits-web03/softvault/internal/tasks"
)

const (
	JobAutoReview    = "auto_review"
	JobFetchArtifact = "fetch_artifact"

	autoApprovedPrefix = "Auto-review approved: "
	autoRejectedPrefix = "Auto-review suggests rejection: "
)

type Enqueuer interface {
	Enqueue(ctx context.Context, job tasks.Job) error
}

type Advisor interface {
	Review(ctx context.Context, s advisor.Settings, sum advisor.Summary) advisor.Result
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, ownerID uuid.UUID, version string, uploaderID uuid.UUID) (*fetcher.Artifact, error)
}

type Manager struct {
	db      *gorm.DB
	configs advisor.ConfigSource
	advisor Advisor
	fetcher Fetcher
	blobs   storage.Store
	queue   Enqueuer
	log     zerolog.Logger
}

func New(db *gorm.DB, configs advisor.ConfigSource, adv Advisor, f Fetcher, blobs storage.Store, queue Enqueuer, log zerolog.Logger) *Manager {
	return &Manager{
		db:      db,
		configs: configs,
		advisor: adv,
		fetcher: f,
		blobs:   blobs,
		queue:   queue,
		log:     log.With().Str("component", "lifecycle").Logger(),
	}
}

// Register installs the background job handlers on d.
func (m *Manager) Register(d *tasks.Dispatcher) {
	d.Handle(JobAutoReview, func(ctx context.Context, job tasks.Job) error {
		var p autoReviewJob
		if err := job.Decode(&p); err != nil {
			return err
		}
		return m.AutoReview(ctx, p.RequestID)
	})
	d.Handle(JobFetchArtifact, func(ctx context.Context, job tasks.Job) error {
		var p FetchJob
		if err := job.Decode(&p); err != nil {
			return err
		}
		return m.HandleFetch(ctx, p)
	})
}

type autoReviewJob struct {
	RequestID uuid.UUID `json:"requestId"`
}

// FetchJob is scheduled by a successful approval.
type FetchJob struct {
	RequestID  uuid.UUID `json:"requestId"`
	URL        string    `json:"url"`
	SoftwareID uuid.UUID `json:"softwareId"`
	Version    string    `json:"version"`
	UploaderID uuid.UUID `json:"uploaderId"`
}

type SubmitInput struct {
	SoftwareName string `json:"softwareName"`
	Version      string `json:"version"`
	DownloadURL  string `json:"downloadUrl"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Logo         string `json:"logo"`
	OfficialURL  string `json:"officialUrl"`
}

func (in SubmitInput) validate() error {
	if strings.TrimSpace(in.SoftwareName) == "" {
		return fmt.Errorf("software name is required: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(in.Version) == "" {
		return fmt.Errorf("version is required: %w", apperr.ErrValidation)
	}
	u, err := url.Parse(strings.TrimSpace(in.DownloadURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("download url must be an absolute http(s) url: %w", apperr.ErrValidation)
	}
	return nil
}

// Submit stores a new pending request and, when auto-review is switched on,
// schedules it without waiting for the outcome.
func (m *Manager) Submit(ctx context.Context, in SubmitInput, applicantID uuid.UUID) (*models.SoftwareRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var applicant models.User
	if err := m.db.WithContext(ctx).Select("id").First(&applicant, "id = ?", applicantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("applicant %s: %w", applicantID, apperr.ErrNotFound)
		}
		return nil, err
	}

	req := &models.SoftwareRequest{
		SoftwareName: strings.TrimSpace(in.SoftwareName),
		Version:      strings.TrimSpace(in.Version),
		DownloadURL:  strings.TrimSpace(in.DownloadURL),
		Description:  in.Description,
		Category:     in.Category,
		Logo:         in.Logo,
		OfficialURL:  in.OfficialURL,
		ApplicantID:  applicantID,
		Status:       models.StatusPending,
	}
	if err := m.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	m.log.Info().Str("request_id", req.ID.String()).Str("software", req.SoftwareName).Msg("request submitted")

	if m.autoReviewEnabled(ctx) {
		job, err := tasks.NewJob(JobAutoReview, autoReviewJob{RequestID: req.ID})
		if err == nil {
			err = m.queue.Enqueue(ctx, job)
		}
		if err != nil {
			m.log.Error().Err(err).Str("request_id", req.ID.String()).Msg("cannot schedule auto-review")
		}
	}
	return req, nil
}

func (m *Manager) autoReviewEnabled(ctx context.Context) bool {
	s, err := advisor.LoadSettings(ctx, m.configs)
	if err != nil {
		m.log.Warn().Err(err).Msg("cannot read auto-review settings")
		return false
	}
	return s.Enabled
}

// AutoReview consults the advisor about a pending request. Approval goes all
// the way to fulfillment. Anything else only annotates the request, which
// stays pending for a human.
func (m *Manager) AutoReview(ctx context.Context, requestID uuid.UUID) error {
	log := m.log.With().Str("request_id", requestID.String()).Logger()

	req, err := repositories.GetRequest(m.db.WithContext(ctx), requestID)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Warn().Msg("request vanished before auto-review")
		return nil
	}
	if err != nil {
		return err
	}
	if req.Status != models.StatusPending {
		log.Info().Str("status", string(req.Status)).Msg("request already reviewed, skipping auto-review")
		return nil
	}

	settings, err := advisor.LoadSettings(ctx, m.configs)
	if err != nil {
		return err
	}
	res := m.advisor.Review(ctx, settings, advisor.Summary{
		SoftwareName: req.SoftwareName,
		Version:      req.Version,
		DownloadURL:  req.DownloadURL,
		Description:  req.Description,
		Category:     req.Category,
		OfficialURL:  req.OfficialURL,
	})

	if !res.Approved {
		comment := autoRejectedPrefix + res.Reason
		if req.ReviewComment != "" {
			comment += "\n" + req.ReviewComment
		}
		ok, err := repositories.NewRequestStore(m.db).AnnotatePending(ctx, requestID, models.SystemUserID, comment)
		if err != nil {
			return err
		}
		if !ok {
			log.Info().Msg("request reviewed while the advisor was running")
			return nil
		}
		log.Info().Str("reason", res.Reason).Msg("auto-review did not approve, left pending")
		return nil
	}

	comment := autoApprovedPrefix + res.Reason
	if req.ReviewComment != "" {
		comment = req.ReviewComment + "\n" + comment
	}
	job, err := m.approve(ctx, req, models.SystemUserID, comment)
	if errors.Is(err, apperr.ErrAlreadyReviewed) {
		log.Info().Msg("request reviewed while the advisor was running")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("software_id", job.SoftwareID.String()).Msg("auto-review approved")
	m.enqueueFetch(ctx, job)
	return nil
}

// Review records a human decision. Only pending requests can be reviewed.
func (m *Manager) Review(ctx context.Context, requestID, reviewerID uuid.UUID, decision models.RequestStatus, comment string) (*models.SoftwareRequest, error) {
	req, err := repositories.GetRequest(m.db.WithContext(ctx), requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPending {
		return nil, fmt.Errorf("request %s is %s: %w", requestID, req.Status, apperr.ErrAlreadyReviewed)
	}

	switch decision {
	case models.StatusApproved:
		job, err := m.approve(ctx, req, reviewerID, comment)
		if err != nil {
			return nil, err
		}
		m.enqueueFetch(ctx, job)
	case models.StatusRejected:
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := repositories.MarkReviewed(tx, requestID, repositories.ReviewUpdate{
				Status:     models.StatusRejected,
				ReviewerID: reviewerID,
				Comment:    comment,
				ReviewedAt: time.Now().UTC(),
			})
			if err == nil && !ok {
				err = fmt.Errorf("request %s: %w", requestID, apperr.ErrAlreadyReviewed)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("decision must be approved or rejected, got %q: %w", decision, apperr.ErrValidation)
	}

	m.log.Info().Str("request_id", requestID.String()).Str("decision", string(decision)).Str("reviewer", reviewerID.String()).Msg("request reviewed")
	return repositories.GetRequest(m.db.WithContext(ctx), requestID)
}

// approve marks req approved and fulfills it in one transaction. The
// returned job must be enqueued by the caller once this has returned.
func (m *Manager) approve(ctx context.Context, req *models.SoftwareRequest, reviewerID uuid.UUID, comment string) (*FetchJob, error) {
	var job *FetchJob
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		job, err = fulfill(tx, req, reviewerID)
		if err != nil {
			return err
		}
		ok, err := repositories.MarkReviewed(tx, req.ID, repositories.ReviewUpdate{
			Status:     models.StatusApproved,
			ReviewerID: reviewerID,
			Comment:    comment,
			ReviewedAt: time.Now().UTC(),
			SoftwareID: &job.SoftwareID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("request %s: %w", req.ID, apperr.ErrAlreadyReviewed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// fulfill resolves the Software the request is about, creating it from the
// request fields when no Software has that name yet.
func fulfill(tx *gorm.DB, req *models.SoftwareRequest, ownerID uuid.UUID) (*FetchJob, error) {
	sw, _, err := repositories.FindOrCreateSoftware(tx, &models.Software{
		Name:        req.SoftwareName,
		Description: req.Description,
		Category:    req.Category,
		Logo:        req.Logo,
		OfficialURL: req.OfficialURL,
		CreatedBy:   ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot resolve software %q: %w", req.SoftwareName, err)
	}
	return &FetchJob{
		RequestID:  req.ID,
		URL:        req.DownloadURL,
		SoftwareID: sw.ID,
		Version:    req.Version,
		UploaderID: ownerID,
	}, nil
}

func (m *Manager) enqueueFetch(ctx context.Context, fj *FetchJob) {
	log := m.log.With().Str("request_id", fj.RequestID.String()).Logger()
	job, err := tasks.NewJob(JobFetchArtifact, fj)
	if err == nil {
		err = m.queue.Enqueue(context.WithoutCancel(ctx), job)
	}
	if err != nil {
		log.Error().Err(err).Msg("cannot schedule artifact fetch")
		return
	}
	log.Debug().Str("job_id", job.ID).Msg("artifact fetch scheduled")
}

// HandleFetch downloads the artifact of an approved request and records it
// as a new version. The blob is removed again if the row cannot be written.
func (m *Manager) HandleFetch(ctx context.Context, fj FetchJob) error {
	art, err := m.fetcher.Fetch(ctx, fj.URL, fj.SoftwareID, fj.Version, fj.UploaderID)
	if err != nil {
		return err
	}

	v := &models.SoftwareVersion{
		SoftwareID: fj.SoftwareID,
		Version:    fj.Version,
		FilePath:   art.Path,
		FileName:   art.FileName,
		FileSize:   art.Size,
		FileHash:   art.Digest,
		UploaderID: fj.UploaderID,
	}
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repositories.CreateVersion(tx, v)
	})
	if err != nil {
		if rerr := m.blobs.Remove(ctx, art.Path); rerr != nil {
			m.log.Warn().Err(rerr).Str("path", art.Path).Msg("cannot remove orphaned artifact")
		}
		return fmt.Errorf("cannot record version %s of %s: %w", fj.Version, fj.SoftwareID, err)
	}

	m.log.Info().
		Str("request_id", fj.RequestID.String()).
		Str("software_id", fj.SoftwareID.String()).
		Str("version_id", v.ID.String()).
		Msg("version created from fetched artifact")
	return nil
}
