// Package docstore implements the document storage boundary: raw bytes
// go to an object store, a metadata row goes to the database.
package docstore

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// ObjectStore stores and retrieves raw file bytes by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Recorder persists document metadata rows.
type Recorder interface {
	CreateDocument(d *model.Document) error
}

// Service is the document store consumed by the lifecycle manager and
// the dispatcher.
type Service struct {
	objects ObjectStore
	db      Recorder
}

func NewService(objects ObjectStore, db Recorder) *Service {
	return &Service{objects: objects, db: db}
}

// Store uploads the file and records its metadata. Any failure comes
// back wrapped in apperr.ErrAttachment so bulk flows can isolate it
// per item.
func (s *Service) Store(ctx context.Context, clientID uint, obligationID *uint, filename, category, description string, r io.Reader, size int64) (*model.Document, error) {
	if category == "" {
		category = "general"
	}
	key := fmt.Sprintf("clients/%d/%s/%s_%s", clientID, category, uuid.New().String(), filename)

	if err := s.objects.Put(ctx, key, r); err != nil {
		return nil, fmt.Errorf("%w: upload %s: %v", apperr.ErrAttachment, filename, err)
	}

	doc := &model.Document{
		ClientID:     clientID,
		ObligationID: obligationID,
		ObjectKey:    key,
		Filename:     filename,
		Category:     category,
		Description:  description,
		SizeBytes:    size,
	}
	if err := s.db.CreateDocument(doc); err != nil {
		return nil, fmt.Errorf("%w: record %s: %v", apperr.ErrAttachment, filename, err)
	}
	return doc, nil
}

// Fetch returns the stored bytes for a document, for mail attachments.
func (s *Service) Fetch(ctx context.Context, doc *model.Document) ([]byte, error) {
	data, err := s.objects.Get(ctx, doc.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", apperr.ErrAttachment, doc.ObjectKey, err)
	}
	return data, nil
}
