package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"gorm.io/datatypes"
)

type DocumentService struct {
	store store.DocumentStore
	log   zerolog.Logger
}

func NewDocumentService(s store.DocumentStore, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		store: s,
		log:   log.With().Str("component", "documents").Logger(),
	}
}

// GetAll returns the owner's documents, or none if the store fails.
func (s *DocumentService) GetAll(ctx context.Context, owner models.UserID) []*models.Document {
	recs, err := s.store.ListDocuments(ctx, owner)
	if err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Msg("failed to list documents")
		return []*models.Document{}
	}
	out := make([]*models.Document, 0, len(recs))
	for _, rec := range recs {
		doc, err := DocumentFromRecord(rec)
		if err != nil {
			s.log.Warn().Err(err).Stringer("document", rec.ID).Msg("skipping unreadable document")
			continue
		}
		out = append(out, doc)
	}
	return out
}

func (s *DocumentService) Create(ctx context.Context, owner models.UserID, doc *models.Document) error {
	rec, err := DocumentToRecord(owner, doc)
	if err != nil {
		return err
	}
	if err := s.store.CreateDocument(ctx, rec); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Stringer("document", doc.ID).Msg("failed to create document")
		return err
	}
	return nil
}

func (s *DocumentService) Update(ctx context.Context, owner models.UserID, doc *models.Document) error {
	rec, err := DocumentToRecord(owner, doc)
	if err != nil {
		return err
	}
	if err := s.store.UpdateDocument(ctx, rec); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Stringer("document", doc.ID).Msg("failed to update document")
		return err
	}
	return nil
}

// Delete removes all of ids in one store call.
func (s *DocumentService) Delete(ctx context.Context, owner models.UserID, ids []models.DocumentID) error {
	if err := s.store.DeleteDocuments(ctx, owner, ids); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Int("count", len(ids)).Msg("failed to delete documents")
		return err
	}
	return nil
}

// DocumentToRecord serializes a document for the store.
func DocumentToRecord(owner models.UserID, doc *models.Document) (*store.DocumentRecord, error) {
	blocks := doc.Blocks
	if blocks == nil {
		blocks = []models.Block{}
	}
	raw, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blocks: %w", err)
	}
	var parent *models.DocumentID
	if doc.ParentID != nil {
		p := *doc.ParentID
		parent = &p
	}
	return &store.DocumentRecord{
		ID:        doc.ID,
		OwnerID:   owner,
		Title:     doc.Title,
		Content:   doc.Content,
		Blocks:    datatypes.JSON(raw),
		Icon:      doc.Icon,
		ParentID:  parent,
		ChildIDs:  append(datatypes.JSONSlice[models.DocumentID]{}, doc.ChildIDs...),
		Expanded:  doc.Expanded,
		CreatedAt: utc(doc.CreatedAt),
		UpdatedAt: utc(doc.UpdatedAt),
	}, nil
}

// DocumentFromRecord decodes a stored row, filling defaults and putting the
// blocks in order.
func DocumentFromRecord(rec *store.DocumentRecord) (*models.Document, error) {
	blocks := []models.Block{}
	if len(rec.Blocks) > 0 && string(rec.Blocks) != "null" {
		if err := json.Unmarshal(rec.Blocks, &blocks); err != nil {
			return nil, fmt.Errorf("failed to decode blocks: %w", err)
		}
	}
	for i := range blocks {
		if !blocks[i].Kind.Valid() {
			blocks[i].Kind = models.BlockText
		}
		if blocks[i].ID.IsZero() {
			blocks[i].ID = models.NewBlockID()
		}
	}

	doc := &models.Document{
		ID:        rec.ID,
		Title:     rec.Title,
		Content:   rec.Content,
		Blocks:    blocks,
		ParentID:  rec.ParentID,
		ChildIDs:  append([]models.DocumentID{}, rec.ChildIDs...),
		Expanded:  rec.Expanded,
		Icon:      rec.Icon,
		CreatedAt: utc(rec.CreatedAt),
		UpdatedAt: utc(rec.UpdatedAt),
	}
	if doc.Title == "" {
		doc.Title = models.DefaultDocumentTitle
	}
	if doc.Icon == "" {
		doc.Icon = models.DefaultDocumentIcon
	}
	doc.SortBlocks()
	return doc, nil
}
