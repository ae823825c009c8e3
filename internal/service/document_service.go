package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/repository"
	"approvalflow/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FileUpload is one incoming file. Name is untrusted and only used for
// display and for deriving the sanitized storage key.
type FileUpload struct {
	Name    string
	Content io.Reader
}

// DocumentResponse is the API shape of an attached document.
type DocumentResponse struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	FileName  string `json:"file_name"`
	FilePath  string `json:"file_path"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

// DocumentService manages the files attached to a request: blob bytes plus
// the metadata row, kept consistent with each other. It performs no
// permission checks — callers scope access before invoking it.
type DocumentService interface {
	List(ctx context.Context, requestID uuid.UUID) ([]DocumentResponse, error)
	Upload(ctx context.Context, requestID uuid.UUID, files []FileUpload) ([]model.Document, error)
	Delete(ctx context.Context, ids []uuid.UUID) error
	// Reconcile brings a request's attachment set to the edited state:
	// deletions first, then new uploads.
	Reconcile(ctx context.Context, requestID uuid.UUID, deletedIDs []uuid.UUID, files []FileUpload) error
	// ResolveLocator maps a storage path to a retrievable URL, or
	// model.ErrNotFound when no blob backs the path.
	ResolveLocator(ctx context.Context, path string) (string, error)
}

type documentService struct {
	repo  repository.DocumentRepository
	blobs storage.BlobStore
}

func NewDocumentService(repo repository.DocumentRepository, blobs storage.BlobStore) DocumentService {
	return &documentService{repo: repo, blobs: blobs}
}

func (s *documentService) List(ctx context.Context, requestID uuid.UUID) ([]DocumentResponse, error) {
	docs, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	res := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		res = append(res, s.toResponse(d))
	}
	return res, nil
}

// Upload writes each blob before its row, so a failure can leave at worst an
// orphan blob, never a row without bytes. A mid-batch failure aborts the
// remaining files rather than silently skipping them.
func (s *documentService) Upload(ctx context.Context, requestID uuid.UUID, files []FileUpload) ([]model.Document, error) {
	created := make([]model.Document, 0, len(files))

	for i, f := range files {
		key := storage.ObjectKey(requestID.String(), time.Now(), f.Name)

		if err := s.blobs.Put(ctx, key, f.Content); err != nil {
			return created, model.NewStorageError(fmt.Sprintf("upload aborted at file %d of %d (%s)", i+1, len(files), f.Name), err)
		}

		doc := model.Document{
			RequestID: requestID,
			FileName:  f.Name,
			FilePath:  key,
		}
		if err := s.repo.Create(ctx, &doc); err != nil {
			// Blob written, row missing: surface a distinct error so the
			// caller knows the batch is partially applied.
			return created, model.NewStorageError(fmt.Sprintf("document row insert after blob write for %q (batch %d of %d)",
				key, i+1, len(files)), err)
		}
		created = append(created, doc)
	}

	return created, nil
}

// Delete removes backing blobs first and rows after, per blob: a blob that
// cannot be removed keeps its row, so nothing ever dangles without bytes.
// A blob already gone is treated as removed.
func (s *documentService) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	docs, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	removed := make([]uuid.UUID, 0, len(docs))
	var blobErr error
	for _, d := range docs {
		if err := s.blobs.Delete(ctx, d.FilePath); err != nil && err != storage.ErrBlobNotFound {
			blobErr = model.NewStorageError("delete blob "+d.FilePath, err)
			break
		}
		removed = append(removed, d.ID)
	}

	if len(removed) > 0 {
		if err := s.repo.DeleteByIDs(ctx, removed); err != nil {
			return fmt.Errorf("delete document rows: %w", err)
		}
	}

	if blobErr != nil {
		return blobErr
	}

	log.Debug().Int("count", len(removed)).Msg("documents deleted")
	return nil
}

func (s *documentService) Reconcile(ctx context.Context, requestID uuid.UUID, deletedIDs []uuid.UUID, files []FileUpload) error {
	if err := s.Delete(ctx, deletedIDs); err != nil {
		return err
	}
	if len(files) > 0 {
		if _, err := s.Upload(ctx, requestID, files); err != nil {
			return err
		}
	}
	return nil
}

func (s *documentService) ResolveLocator(ctx context.Context, path string) (string, error) {
	ok, err := s.blobs.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("document path %q: %w", path, model.ErrNotFound)
	}
	return s.blobs.PublicURL(path), nil
}

func (s *documentService) toResponse(d model.Document) DocumentResponse {
	return DocumentResponse{
		ID:        d.ID.String(),
		RequestID: d.RequestID.String(),
		FileName:  d.FileName,
		FilePath:  d.FilePath,
		URL:       s.blobs.PublicURL(d.FilePath),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}
