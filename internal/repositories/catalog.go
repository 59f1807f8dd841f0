package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/models"
	"github.com/rohits-web03/softvault/internal/storage"
)

const MaxLogoSize = 5 << 20 // 5 MB

var logoExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true,
}

// CatalogStore persists Software and SoftwareVersion rows together with the
// blobs they point at.
type CatalogStore struct {
	db        *gorm.DB
	blobs     storage.Store
	maxUpload int64
	log       zerolog.Logger
}

func NewCatalogStore(db *gorm.DB, blobs storage.Store, maxUpload int64, log zerolog.Logger) *CatalogStore {
	return &CatalogStore{
		db:        db,
		blobs:     blobs,
		maxUpload: maxUpload,
		log:       log.With().Str("component", "catalog").Logger(),
	}
}

func (c *CatalogStore) Blobs() storage.Store { return c.blobs }

type SoftwareFilter struct {
	Category string
	Search   string
	Skip     int
	Limit    int
}

// SoftwareSummary is a list row with aggregates over the versions.
type SoftwareSummary struct {
	models.Software
	LatestVersion  string `json:"latestVersion,omitempty"`
	VersionCount   int64  `json:"versionCount"`
	TotalDownloads int64  `json:"totalDownloads"`
}

func (c *CatalogStore) ListSoftware(ctx context.Context, f SoftwareFilter) ([]SoftwareSummary, int64, error) {
	skip, limit := page(f.Skip, f.Limit, 20, 1000)

	q := c.db.WithContext(ctx).Model(&models.Software{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		q = q.Where("name LIKE ?", "%"+f.Search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Software
	if err := q.Order("updated_at DESC").Offset(skip).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	if len(list) == 0 {
		return []SoftwareSummary{}, total, nil
	}

	ids := make([]uuid.UUID, len(list))
	for i, sw := range list {
		ids[i] = sw.ID
	}

	type agg struct {
		SoftwareID     uuid.UUID
		VersionCount   int64
		TotalDownloads int64
	}
	var aggs []agg
	if err := c.db.WithContext(ctx).Model(&models.SoftwareVersion{}).
		Select("software_id, COUNT(*) AS version_count, COALESCE(SUM(download_count), 0) AS total_downloads").
		Where("software_id IN ?", ids).
		Group("software_id").
		Scan(&aggs).Error; err != nil {
		return nil, 0, err
	}
	byID := make(map[uuid.UUID]agg, len(aggs))
	for _, a := range aggs {
		byID[a.SoftwareID] = a
	}

	var versions []models.SoftwareVersion
	if err := c.db.WithContext(ctx).
		Select("software_id, version, upload_time").
		Where("software_id IN ?", ids).
		Order("upload_time DESC").
		Find(&versions).Error; err != nil {
		return nil, 0, err
	}
	latest := map[uuid.UUID]string{}
	for _, v := range versions {
		if _, ok := latest[v.SoftwareID]; !ok {
			latest[v.SoftwareID] = v.Version
		}
	}

	out := make([]SoftwareSummary, len(list))
	for i, sw := range list {
		a := byID[sw.ID]
		out[i] = SoftwareSummary{
			Software:       sw,
			LatestVersion:  latest[sw.ID],
			VersionCount:   a.VersionCount,
			TotalDownloads: a.TotalDownloads,
		}
	}
	return out, total, nil
}

// GetSoftware loads a Software with its versions, newest first.
func (c *CatalogStore) GetSoftware(ctx context.Context, id uuid.UUID) (*models.Software, error) {
	var sw models.Software
	err := c.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB { return db.Order("upload_time DESC") }).
		First(&sw, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "software "+id.String())
	}
	return &sw, nil
}

func (c *CatalogStore) FindSoftwareByName(ctx context.Context, name string) (*models.Software, error) {
	return findSoftwareByName(c.db.WithContext(ctx), name)
}

func findSoftwareByName(db *gorm.DB, name string) (*models.Software, error) {
	var sw models.Software
	if err := db.Where("name = ?", name).First(&sw).Error; err != nil {
		return nil, notFound(err, "software "+name)
	}
	return &sw, nil
}

// CreateSoftware inserts sw. A name that is already taken, whether caught by
// the lookup or by the unique index, is a conflict.
func (c *CatalogStore) CreateSoftware(ctx context.Context, sw *models.Software) error {
	if strings.TrimSpace(sw.Name) == "" {
		return fmt.Errorf("software name is required: %w", apperr.ErrValidation)
	}
	db := c.db.WithContext(ctx)
	if _, err := findSoftwareByName(db, sw.Name); err == nil {
		return fmt.Errorf("software %q already exists: %w", sw.Name, apperr.ErrConflict)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if err := db.Create(sw).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("software %q already exists: %w", sw.Name, apperr.ErrConflict)
		}
		return err
	}
	return nil
}

// FindOrCreateSoftware returns the Software named like sw, inserting sw when
// none exists. It must run inside a transaction: the insert happens in a
// savepoint so losing a concurrent race leaves tx usable for the re-query.
func FindOrCreateSoftware(tx *gorm.DB, sw *models.Software) (*models.Software, bool, error) {
	existing, err := findSoftwareByName(tx, sw.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}
	return insertOrReuse(tx, sw)
}

func insertOrReuse(tx *gorm.DB, sw *models.Software) (*models.Software, bool, error) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(sw).Error
	})
	if err == nil {
		return sw, true, nil
	}
	if !IsUniqueViolation(err) {
		return nil, false, err
	}
	existing, err := findSoftwareByName(tx, sw.Name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

type SoftwareUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	IconURL     *string `json:"iconUrl"`
	OfficialURL *string `json:"officialUrl"`
}

func (c *CatalogStore) UpdateSoftware(ctx context.Context, id uuid.UUID, upd SoftwareUpdate) (*models.Software, error) {
	db := c.db.WithContext(ctx)
	var sw models.Software
	if err := db.First(&sw, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "software "+id.String())
	}

	changes := map[string]any{}
	if upd.Name != nil && *upd.Name != sw.Name {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("software name is required: %w", apperr.ErrValidation)
		}
		if _, err := findSoftwareByName(db, name); err == nil {
			return nil, fmt.Errorf("software %q already exists: %w", name, apperr.ErrConflict)
		}
		changes["name"] = name
	}
	if upd.Description != nil {
		changes["description"] = *upd.Description
	}
	if upd.Category != nil {
		changes["category"] = *upd.Category
	}
	if upd.IconURL != nil {
		changes["icon_url"] = *upd.IconURL
	}
	if upd.OfficialURL != nil {
		changes["official_url"] = *upd.OfficialURL
	}
	if len(changes) == 0 {
		return &sw, nil
	}
	if err := db.Model(&sw).Updates(changes).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("software name already exists: %w", apperr.ErrConflict)
		}
		return nil, err
	}
	return c.getSoftwareRow(ctx, id)
}

// DeleteSoftware removes the Software and every version row in one
// transaction, then removes their blobs. Missing blobs are logged and ignored.
func (c *CatalogStore) DeleteSoftware(ctx context.Context, id uuid.UUID) (*models.Software, error) {
	var (
		sw       models.Software
		versions []models.SoftwareVersion
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sw, "id = ?", id).Error; err != nil {
			return notFound(err, "software "+id.String())
		}
		if err := tx.Where("software_id = ?", id).Find(&versions).Error; err != nil {
			return err
		}
		if err := tx.Where("software_id = ?", id).Delete(&models.SoftwareVersion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sw).Error
	})
	if err != nil {
		return nil, err
	}

	for _, v := range versions {
		c.removeBlob(ctx, v.FilePath)
	}
	if strings.HasPrefix(sw.Logo, storage.LogoDir+"/") {
		c.removeBlob(ctx, sw.Logo)
	}
	return &sw, nil
}

func (c *CatalogStore) removeBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := c.blobs.Remove(ctx, key); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.log.Warn().Str("path", key).Msg("blob already missing")
			return
		}
		c.log.Error().Err(err).Str("path", key).Msg("cannot remove blob")
	}
}

// Categories lists the distinct non-empty categories in use.
func (c *CatalogStore) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := c.db.WithContext(ctx).Model(&models.Software{}).
		Where("category IS NOT NULL AND category <> ''").
		Distinct().
		Order("category").
		Pluck("category", &cats).Error
	return cats, err
}

// CreateVersion inserts v for an existing Software.
func (c *CatalogStore) CreateVersion(ctx context.Context, v *models.SoftwareVersion) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return CreateVersion(tx, v)
	})
}

// CreateVersion inserts v through db and bumps the owning Software's
// update time.
func CreateVersion(db *gorm.DB, v *models.SoftwareVersion) error {
	if strings.TrimSpace(v.Version) == "" {
		return fmt.Errorf("version label is required: %w", apperr.ErrValidation)
	}
	var count int64
	if err := db.Model(&models.Software{}).Where("id = ?", v.SoftwareID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("software %s: %w", v.SoftwareID, apperr.ErrNotFound)
	}
	if err := db.Create(v).Error; err != nil {
		return err
	}
	return db.Model(&models.Software{}).Where("id = ?", v.SoftwareID).Update("updated_at", time.Now()).Error
}

// ListVersions returns the versions of softwareID, newest first.
func (c *CatalogStore) ListVersions(ctx context.Context, softwareID uuid.UUID) ([]models.SoftwareVersion, error) {
	if _, err := c.getSoftwareRow(ctx, softwareID); err != nil {
		return nil, err
	}
	var versions []models.SoftwareVersion
	if err := c.db.WithContext(ctx).Where("software_id = ?", softwareID).
		Order("upload_time DESC").Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("could not list versions: %w", err)
	}
	return versions, nil
}

func (c *CatalogStore) GetVersion(ctx context.Context, id uuid.UUID) (*models.SoftwareVersion, error) {
	var v models.SoftwareVersion
	if err := c.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "version "+id.String())
	}
	return &v, nil
}

// DeleteVersion removes one version of softwareID and then its blob.
func (c *CatalogStore) DeleteVersion(ctx context.Context, softwareID, versionID uuid.UUID) (*models.SoftwareVersion, error) {
	var v models.SoftwareVersion
	db := c.db.WithContext(ctx)
	if err := db.First(&v, "id = ? AND software_id = ?", versionID, softwareID).Error; err != nil {
		return nil, notFound(err, "version "+versionID.String())
	}
	if err := db.Delete(&v).Error; err != nil {
		return nil, err
	}
	c.removeBlob(ctx, v.FilePath)
	return &v, nil
}

type UploadInput struct {
	SoftwareID   uuid.UUID
	Version      string
	FileName     string
	Body         io.Reader
	ReleaseNotes string
	UploaderID   uuid.UUID
}

// UploadVersion stores an operator supplied file and records it as a new
// version. Content beyond the configured maximum is rejected after reading.
func (c *CatalogStore) UploadVersion(ctx context.Context, in UploadInput) (*models.SoftwareVersion, error) {
	if strings.TrimSpace(in.Version) == "" {
		return nil, fmt.Errorf("version label is required: %w", apperr.ErrValidation)
	}
	name := storage.SafeName(in.FileName)
	if name == "" {
		return nil, fmt.Errorf("file name is required: %w", apperr.ErrValidation)
	}
	if _, err := c.getSoftwareRow(ctx, in.SoftwareID); err != nil {
		return nil, err
	}

	key := storage.VersionKey(in.SoftwareID, name)
	size, digest, err := storage.Save(ctx, c.blobs, key, io.LimitReader(in.Body, c.maxUpload+1))
	if err != nil {
		return nil, err
	}
	if size > c.maxUpload {
		c.removeBlob(ctx, key)
		return nil, fmt.Errorf("file exceeds the %d byte upload limit: %w", c.maxUpload, apperr.ErrValidation)
	}

	v := &models.SoftwareVersion{
		SoftwareID:   in.SoftwareID,
		Version:      in.Version,
		FilePath:     key,
		FileName:     name,
		FileSize:     size,
		FileHash:     digest,
		UploaderID:   in.UploaderID,
		ReleaseNotes: in.ReleaseNotes,
	}
	if err := c.CreateVersion(ctx, v); err != nil {
		c.removeBlob(ctx, key)
		return nil, err
	}
	c.log.Info().Str("software_id", in.SoftwareID.String()).Str("version", v.Version).Int64("size", size).Msg("version uploaded")
	return v, nil
}

func (c *CatalogStore) getSoftwareRow(ctx context.Context, id uuid.UUID) (*models.Software, error) {
	var sw models.Software
	if err := c.db.WithContext(ctx).First(&sw, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "software "+id.String())
	}
	return &sw, nil
}

// UploadLogo stores an image for softwareID and points Software.Logo at it.
// A previously uploaded logo is removed.
func (c *CatalogStore) UploadLogo(ctx context.Context, softwareID uuid.UUID, fileName string, r io.Reader) (*models.Software, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !logoExts[ext] {
		return nil, fmt.Errorf("unsupported logo type %q: %w", ext, apperr.ErrValidation)
	}
	sw, err := c.getSoftwareRow(ctx, softwareID)
	if err != nil {
		return nil, err
	}

	key := storage.LogoKey(softwareID, ext)
	size, err := c.blobs.Put(ctx, key, io.LimitReader(r, MaxLogoSize+1))
	if err != nil {
		return nil, err
	}
	if size > MaxLogoSize {
		c.removeBlob(ctx, key)
		return nil, fmt.Errorf("logo exceeds 5 MB: %w", apperr.ErrValidation)
	}

	previous := sw.Logo
	if err := c.db.WithContext(ctx).Model(sw).Update("logo", key).Error; err != nil {
		c.removeBlob(ctx, key)
		return nil, err
	}
	sw.Logo = key
	if previous != key && strings.HasPrefix(previous, storage.LogoDir+"/") {
		c.removeBlob(ctx, previous)
	}
	return sw, nil
}

// OpenLogo opens logos/<name>.
func (c *CatalogStore) OpenLogo(ctx context.Context, name string) (io.ReadCloser, error) {
	safe := storage.SafeName(name)
	if safe == "" || safe != name {
		return nil, fmt.Errorf("invalid logo name: %w", apperr.ErrNotFound)
	}
	return c.blobs.Open(ctx, storage.LogoDir+"/"+safe)
}

// RecordDownload bumps the counter of versionID and appends one DownloadLog,
// atomically.
func (c *CatalogStore) RecordDownload(ctx context.Context, versionID, userID uuid.UUID, ip string) (*models.SoftwareVersion, error) {
	var v models.SoftwareVersion
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SoftwareVersion{}).
			Where("id = ?", versionID).
			UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("version %s: %w", versionID, apperr.ErrNotFound)
		}
		if err := tx.Create(&models.DownloadLog{UserID: userID, SoftwareVersionID: versionID, IPAddress: ip}).Error; err != nil {
			return err
		}
		return tx.First(&v, "id = ?", versionID).Error
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}
