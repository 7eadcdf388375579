package businessflow

import (
	"context"

	"github.com/peykaro/whatsapp-dispatch/repository"
)

// RepositoryDocumentStore serves document snapshots from the mirrored
// business document table. Previous values are not tracked here; the
// API surface supplies them with the event payload.
type RepositoryDocumentStore struct {
	documents repository.BusinessDocumentRepository
}

func NewRepositoryDocumentStore(documents repository.BusinessDocumentRepository) *RepositoryDocumentStore {
	return &RepositoryDocumentStore{documents: documents}
}

func (s *RepositoryDocumentStore) Load(ctx context.Context, doctype, name string) (*DocumentSnapshot, error) {
	doc, err := s.documents.ByDoctypeName(ctx, doctype, name)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return &DocumentSnapshot{
		Doctype: doc.Doctype,
		Name:    doc.Name,
		Fields:  doc.Fields,
	}, nil
}

func (s *RepositoryDocumentStore) ListDueOn(ctx context.Context, doctype, dateField, day string) ([]string, error) {
	return s.documents.ListNamesDueOn(ctx, doctype, dateField, day)
}

func (s *RepositoryDocumentStore) SetProperty(ctx context.Context, doctype, name, field, value string) error {
	return s.documents.SetField(ctx, doctype, name, field, value)
}
