package models

import (
	"time"

	"gorm.io/datatypes"
)

func init() {
	registerModel(&FileInfo{})
}

// FileInfo is the row form of core.FileInfo. The table name is chosen at
// runtime, so queries always go through gorm.DB.Table.
type FileInfo struct {
	ID           string         `gorm:"column:id;primaryKey;type:varchar(255)"`
	Offset       int64          `gorm:"column:offset;not null"`
	Length       *int64         `gorm:"column:length"`
	Path         *string        `gorm:"column:path;type:text"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null;autoCreateTime:false"`
	DeferredSize bool           `gorm:"column:deferred_size;not null"`
	IsPartial    bool           `gorm:"column:is_partial;not null"`
	IsFinal      bool           `gorm:"column:is_final;not null"`
	Parts        datatypes.JSON `gorm:"column:parts"`
	Storage      string         `gorm:"column:storage;type:text;not null"`
	Metadata     datatypes.JSON `gorm:"column:metadata;not null"`
}
