package model

import "time"

// Document records an uploaded file. Rows are soft-deleted so that the
// upload history survives index rebuilds; deleted documents are excluded
// from every future rebuild.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Filename  string    `gorm:"size:255;not null" json:"filename"`
	FilePath  string    `gorm:"size:500;not null" json:"-"`
	IsDeleted bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt time.Time `json:"uploaded_at"`
}
