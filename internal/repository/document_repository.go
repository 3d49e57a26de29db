package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"documind/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

// ListActiveByUserID returns the user's non-deleted documents in upload
// order; this is the document set every rebuild is computed from.
func (r *DocumentRepository) ListActiveByUserID(userID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("user_id = ? AND is_deleted = ?", userID, false).Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// SoftDelete flags the document as deleted; the row stays for audit.
func (r *DocumentRepository) SoftDelete(id uint) error {
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Update("is_deleted", true).Error; err != nil {
		return fmt.Errorf("soft delete document failed: %w", err)
	}
	return nil
}
