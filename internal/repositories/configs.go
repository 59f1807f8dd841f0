package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/models"
)

// ConfigStore is the runtime key-value configuration behind /configs.
type ConfigStore struct {
	db *gorm.DB
}

func NewConfigStore(db *gorm.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

func (s *ConfigStore) List(ctx context.Context) ([]models.ConfigEntry, error) {
	var entries []models.ConfigEntry
	err := s.db.WithContext(ctx).Order("key").Find(&entries).Error
	return entries, err
}

func (s *ConfigStore) Get(ctx context.Context, key string) (*models.ConfigEntry, error) {
	var e models.ConfigEntry
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&e).Error; err != nil {
		return nil, notFound(err, "config "+key)
	}
	return &e, nil
}

// ConfigValues returns the values of the given keys that exist.
func (s *ConfigStore) ConfigValues(ctx context.Context, keys ...string) (map[string]string, error) {
	var entries []models.ConfigEntry
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Find(&entries).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

func (s *ConfigStore) Create(ctx context.Context, e *models.ConfigEntry) error {
	e.Key = strings.TrimSpace(e.Key)
	if e.Key == "" {
		return fmt.Errorf("config key is required: %w", apperr.ErrValidation)
	}
	if _, err := s.Get(ctx, e.Key); err == nil {
		return fmt.Errorf("config %q already exists: %w", e.Key, apperr.ErrConflict)
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("config %q already exists: %w", e.Key, apperr.ErrConflict)
		}
		return err
	}
	return nil
}

// Update sets value and, when non-nil, description of key.
func (s *ConfigStore) Update(ctx context.Context, key, value string, description *string) (*models.ConfigEntry, error) {
	e, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	changes := map[string]any{"value": value}
	if description != nil {
		changes["description"] = *description
	}
	if err := s.db.WithContext(ctx).Model(e).Updates(changes).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, key)
}

func (s *ConfigStore) Delete(ctx context.Context, key string) error {
	res := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.ConfigEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("config %s: %w", key, apperr.ErrNotFound)
	}
	return nil
}

// CategoryStore manages the curated category list. Software rows carry the
// category by name.
type CategoryStore struct {
	db *gorm.DB
}

func NewCategoryStore(db *gorm.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	err := s.db.WithContext(ctx).Order("sort_order, name").Find(&cats).Error
	return cats, err
}

func (s *CategoryStore) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "category "+id.String())
	}
	return &c, nil
}

func (s *CategoryStore) Create(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("category name is required: %w", apperr.ErrValidation)
	}
	err := s.db.WithContext(ctx).Create(c).Error
	if IsUniqueViolation(err) {
		return fmt.Errorf("category %q already exists: %w", c.Name, apperr.ErrConflict)
	}
	return err
}

type CategoryUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	SortOrder   *int    `json:"sortOrder"`
}

// Update applies upd. A rename is carried over to every Software filed
// under the old name.
func (s *CategoryStore) Update(ctx context.Context, id uuid.UUID, upd CategoryUpdate) (*models.Category, error) {
	var cat models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&cat, "id = ?", id).Error; err != nil {
			return notFound(err, "category "+id.String())
		}
		oldName, newName := cat.Name, cat.Name
		changes := map[string]any{}
		if upd.Name != nil {
			newName = strings.TrimSpace(*upd.Name)
			if newName == "" {
				return fmt.Errorf("category name is required: %w", apperr.ErrValidation)
			}
			changes["name"] = newName
		}
		if upd.Description != nil {
			changes["description"] = *upd.Description
		}
		if upd.SortOrder != nil {
			changes["sort_order"] = *upd.SortOrder
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&cat).Updates(changes).Error; err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("category already exists: %w", apperr.ErrConflict)
			}
			return err
		}
		if newName != oldName {
			if err := tx.Model(&models.Software{}).Where("category = ?", oldName).Update("category", newName).Error; err != nil {
				return err
			}
		}
		return tx.First(&cat, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

var errCategoryInUse = errors.New("category is in use")

// Delete refuses to remove a category that software still uses.
func (s *CategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		if err := tx.First(&cat, "id = ?", id).Error; err != nil {
			return notFound(err, "category "+id.String())
		}
		var used int64
		if err := tx.Model(&models.Software{}).Where("category = ?", cat.Name).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return fmt.Errorf("%w by %d software: %w", errCategoryInUse, used, apperr.ErrValidation)
		}
		return tx.Delete(&cat).Error
	})
}
