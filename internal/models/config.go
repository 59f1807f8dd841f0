package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConfigEntry is one runtime-tunable key of the /configs store.
type ConfigEntry struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Key         string    `json:"key" gorm:"size:100;uniqueIndex;not null"`
	Value       string    `json:"value" gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"size:255"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (ConfigEntry) TableName() string { return "configs" }

func (c *ConfigEntry) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

type Category struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"size:50;uniqueIndex;not null"`
	Description string    `json:"description" gorm:"size:200"`
	SortOrder   int       `json:"sortOrder" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Category) TableName() string { return "software_categories" }

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}
