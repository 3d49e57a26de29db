package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"documind/internal/extract"
	"documind/internal/model"
	"documind/internal/rag"
)

// ActiveDocumentLister supplies the surviving document set a reindex is
// computed from.
type ActiveDocumentLister interface {
	ListActiveByUserID(userID uint) ([]model.Document, error)
}

// IngestService drives extraction, chunking, and index rebuilds. Rebuilds
// for one user are serialized through a per-user mutex: a rebuild reads
// the full existing chunk list, merges, and writes a new artifact, and two
// of those interleaving would publish an index misaligned with the final
// chunk list. Different users rebuild in parallel.
type IngestService struct {
	docRepo      ActiveDocumentLister
	store        *rag.Store
	chunkSize    int
	chunkOverlap int
	log          *zap.Logger

	mu        sync.Mutex
	userLocks map[uint]*sync.Mutex
}

func NewIngestService(
	docRepo ActiveDocumentLister,
	store *rag.Store,
	chunkSize, chunkOverlap int,
	log *zap.Logger,
) *IngestService {
	if chunkSize <= 0 {
		chunkSize = rag.DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = rag.DefaultChunkOverlap
	}
	return &IngestService{
		docRepo:      docRepo,
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		log:          log,
	}
}

func (s *IngestService) lockFor(userID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userLocks == nil {
		s.userLocks = make(map[uint]*sync.Mutex)
	}
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// Ingest processes a batch of newly uploaded files: extract, clean, chunk,
// merge with the user's existing chunks, and rebuild the index. Files
// yielding no chunks are skipped without failing the batch; a batch that
// yields nothing at all leaves the prior index untouched.
func (s *IngestService) Ingest(ctx context.Context, userID uint, paths []string) error {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	var newChunks []string
	for _, path := range paths {
		chunks := s.chunkFile(path)
		if len(chunks) == 0 {
			s.log.Warn("file yielded no chunks, skipping",
				zap.Uint("user_id", userID),
				zap.String("path", path))
			continue
		}
		newChunks = append(newChunks, chunks...)
	}
	if len(newChunks) == 0 {
		return nil
	}

	existing, _, err := s.store.Load(userID)
	if err != nil {
		return err
	}
	merged := append(existing, newChunks...)

	if err := s.store.Rebuild(ctx, userID, merged); err != nil {
		return err
	}
	s.log.Info("index rebuilt after ingest",
		zap.Uint("user_id", userID),
		zap.Int("new_chunks", len(newChunks)),
		zap.Int("total_chunks", len(merged)))
	return nil
}

// ReindexAfterDeletion recomputes the user's chunk list from every
// surviving document and rebuilds from scratch, so no chunk of a removed
// document can linger in the index.
func (s *IngestService) ReindexAfterDeletion(ctx context.Context, userID uint) error {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	docs, err := s.docRepo.ListActiveByUserID(userID)
	if err != nil {
		return err
	}

	var chunks []string
	for _, doc := range docs {
		chunks = append(chunks, s.chunkFile(doc.FilePath)...)
	}

	if err := s.store.Rebuild(ctx, userID, chunks); err != nil {
		return err
	}
	s.log.Info("index rebuilt after deletion",
		zap.Uint("user_id", userID),
		zap.Int("documents", len(docs)),
		zap.Int("total_chunks", len(chunks)))
	return nil
}

func (s *IngestService) chunkFile(path string) []string {
	raw := extract.Text(path)
	cleaned := extract.Clean(raw)
	return rag.Chunk(cleaned, s.chunkSize, s.chunkOverlap)
}
