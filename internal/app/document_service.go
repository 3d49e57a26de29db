package app

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"documind/internal/model"
	"documind/internal/repository"
	"documind/internal/storage"
)

var ErrDocumentNotFound = errors.New("document not found")

// ingestTimeout bounds a single background ingestion or reindex run,
// embedding calls included.
const ingestTimeout = 10 * time.Minute

type DocumentService struct {
	docRepo *repository.DocumentRepository
	layout  *storage.Layout
	ingest  *IngestService
	log     *zap.Logger
}

// Upload is one file of an upload batch.
type Upload struct {
	Filename string
	Content  io.Reader
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	layout *storage.Layout,
	ingest *IngestService,
	log *zap.Logger,
) *DocumentService {
	return &DocumentService{
		docRepo: docRepo,
		layout:  layout,
		ingest:  ingest,
		log:     log,
	}
}

// SaveUploads writes the uploaded files to the user's storage, records a
// document row per file, and schedules ingestion in the background. It
// returns once bytes and rows are durable; chunking, embedding, and the
// index rebuild happen off this path.
func (s *DocumentService) SaveUploads(userID uint, uploads []Upload) (int, error) {
	if userID == 0 || len(uploads) == 0 {
		return 0, ErrInvalidInput
	}

	var savedPaths []string
	for _, up := range uploads {
		path, err := s.layout.SaveUpload(userID, up.Filename, up.Content)
		if err != nil {
			return 0, err
		}

		doc := &model.Document{
			UserID:   userID,
			Filename: up.Filename,
			FilePath: path,
		}
		if err := s.docRepo.Create(doc); err != nil {
			return 0, err
		}
		savedPaths = append(savedPaths, path)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		if err := s.ingest.Ingest(ctx, userID, savedPaths); err != nil {
			s.log.Error("background ingest failed",
				zap.Uint("user_id", userID),
				zap.Error(err))
		}
	}()

	return len(savedPaths), nil
}

// ListDocuments returns the user's non-deleted documents.
func (s *DocumentService) ListDocuments(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListActiveByUserID(userID)
}

// DeleteDocument removes the stored file, soft-deletes the document row,
// and schedules a full reindex of the surviving documents.
func (s *DocumentService) DeleteDocument(userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}

	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	if err := storage.RemoveFile(doc.FilePath); err != nil {
		// The row is still soft-deleted and the reindex still runs; a
		// leftover file only wastes disk.
		s.log.Warn("remove document file failed",
			zap.Uint("document_id", doc.ID),
			zap.Error(err))
	}

	if err := s.docRepo.SoftDelete(doc.ID); err != nil {
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		if err := s.ingest.ReindexAfterDeletion(ctx, userID); err != nil {
			s.log.Error("reindex after deletion failed",
				zap.Uint("user_id", userID),
				zap.Error(err))
		}
	}()

	return nil
}
