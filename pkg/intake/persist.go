package intake

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"crucible/models"
	"crucible/pkg/pipeline"
)

// Upload describes the stored file behind an analysis.
type Upload struct {
	UserID      uint
	FileName    string
	StorePath   string
	ContentType string
}

// Save stores the screenshot and its record in one transaction.
func Save(db *gorm.DB, up Upload, a Analysis) (models.Screenshot, error) {
	shot := models.Screenshot{
		PublicID:     uuid.NewString(),
		UserID:       up.UserID,
		FileName:     up.FileName,
		StorePath:    up.StorePath,
		ContentType:  up.ContentType,
		SHA256:       a.SHA256,
		RawText:      a.Text,
		Failed:       a.Failed(),
		FailedReason: a.FailedReason(),
	}
	if a.Image != nil {
		shot.Width = a.Image.Bounds().Dx()
		shot.Height = a.Image.Bounds().Dy()
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&shot).Error; err != nil {
			return fmt.Errorf("create screenshot: %w", err)
		}
		rec := models.MatchRecord{PublicID: uuid.NewString(), ScreenshotID: shot.ID, UserID: up.UserID}
		rec.Apply(a.Record)
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("create record: %w", err)
		}
		shot.Record = &rec
		return nil
	})
	return shot, err
}

// FindDuplicate returns the screenshot already stored with the same content
// for the user, if any.
func FindDuplicate(db *gorm.DB, userID uint, sum string) (*models.Screenshot, error) {
	var shot models.Screenshot
	err := db.Preload("Record").Where("user_id = ? AND sha256 = ?", userID, sum).First(&shot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shot, nil
}

// UpdateRecord replaces the derived columns of rec with r and saves it.
func UpdateRecord(db *gorm.DB, rec *models.MatchRecord, r pipeline.Record) error {
	rec.Apply(r)
	return db.Save(rec).Error
}
