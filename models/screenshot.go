package models

import (
	"time"
)

// Screenshot is an uploaded result screen. Failed screenshots are kept so
// they can be reviewed and reprocessed.
type Screenshot struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublicID    string `gorm:"size:36;uniqueIndex;not null"`
	UserID      uint   `gorm:"index;not null"`
	User        User   `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	FileName    string `gorm:"size:255;not null"`
	StorePath   string `gorm:"column:store_path;size:512"`
	ContentType string `gorm:"size:128"`
	SHA256      string `gorm:"column:sha256;size:64;index"`
	Width       int
	Height      int
	// RawText is the OCR output the record was parsed from.
	RawText      string `gorm:"type:text"`
	Failed       bool   `gorm:"default:false;index"`
	FailedReason string `gorm:"size:255"`
	Record       *MatchRecord
}
