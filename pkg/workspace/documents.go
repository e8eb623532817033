package workspace

import (
	"context"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

// DocumentPatch holds the fields UpdateDocument changes. Nil fields are
// left alone.
type DocumentPatch struct {
	Title    *string         `json:"title,omitempty"`
	Content  *string         `json:"content,omitempty"`
	Icon     *string         `json:"icon,omitempty"`
	Expanded *bool           `json:"expanded,omitempty"`
	Blocks   *[]models.Block `json:"blocks,omitempty"`
}

type BlockInput struct {
	Kind    models.BlockKind `json:"kind"`
	Content string           `json:"content"`
	Data    models.JSONMap   `json:"data,omitempty"`
}

type BlockPatch struct {
	Kind    *models.BlockKind `json:"kind,omitempty"`
	Content *string           `json:"content,omitempty"`
	Data    models.JSONMap    `json:"data,omitempty"`
}

// CreateDocument adds a document at the root or under parentID and returns
// its id right away. If persisting fails the document and its link in the
// parent disappear again.
func (c *Controller) CreateDocument(title string, parentID *models.DocumentID) (models.DocumentID, *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return models.DocumentID{}, resolved(err)
	}
	var parent *models.Document
	if parentID != nil {
		p, ok := c.docs[*parentID]
		if !ok {
			return models.DocumentID{}, resolved(ErrDocumentNotFound)
		}
		parent = p
	}

	now := c.stamp()
	doc := models.NewDocument(title, parentID, now)
	c.docs[doc.ID] = doc
	keys := []string{docKey(doc.ID)}
	if parent != nil {
		parent.ChildIDs = append(parent.ChildIDs, doc.ID)
		parent.UpdatedAt = now
		keys = append(keys, docKey(parent.ID))
	}

	id := doc.ID
	return id, c.enqueueLocked("create document", keys, func() *step {
		return c.createDocStep(id, parentID)
	})
}

func (c *Controller) createDocStep(id models.DocumentID, parentID *models.DocumentID) *step {
	cur, ok := c.docs[id]
	if !ok {
		// dropped with a parent that failed to create or was deleted
		return &step{skip: ErrDocumentNotFound}
	}
	owner := c.user
	child := cur.Clone()
	child.ParentID = nil
	if parentID != nil {
		pid := *parentID
		child.ParentID = &pid
	}
	var parent *models.Document
	if parentID != nil {
		p, ok := c.docs[*parentID]
		if !ok {
			for _, d := range subtree(c.docs, id) {
				if _, ok := c.confDocs[d]; !ok {
					delete(c.docs, d)
				}
			}
			repairTree(c.docs)
			return &step{skip: ErrDocumentNotFound}
		}
		parent = p.Clone()
		if !parent.HasChild(id) {
			parent.ChildIDs = append(parent.ChildIDs, id)
		}
	}

	return &step{
		call: func(ctx context.Context) error {
			if err := c.svc.Documents.Create(ctx, owner, child); err != nil {
				return err
			}
			if parent == nil {
				return nil
			}
			if err := c.svc.Documents.Update(ctx, owner, parent); err != nil {
				if derr := c.svc.Documents.Delete(ctx, owner, []models.DocumentID{id}); derr != nil {
					c.log.Warn().Err(derr).Stringer("document", id).Msg("failed to remove orphaned document")
				}
				return err
			}
			return nil
		},
		commit: func() {
			c.confDocs[id] = child
			if parent != nil {
				c.confDocs[parent.ID] = parent.Clone()
			}
		},
		rollback: func(error) {
			// Children added while the create was queued never reached the
			// store either.
			for _, d := range subtree(c.docs, id) {
				if _, ok := c.confDocs[d]; !ok && d != id {
					delete(c.docs, d)
				}
			}
			c.revertDocLocked(id)
			if parentID != nil {
				c.revertDocLocked(*parentID)
			}
		},
	}
}

// UpdateDocument merges patch into the document and stamps UpdatedAt.
func (c *Controller) UpdateDocument(id models.DocumentID, patch DocumentPatch) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	doc, ok := c.docs[id]
	if !ok {
		return resolved(ErrDocumentNotFound)
	}
	var blocks []models.Block
	if patch.Blocks != nil {
		blocks = make([]models.Block, 0, len(*patch.Blocks))
		seen := map[models.BlockID]bool{}
		for _, b := range *patch.Blocks {
			if b.Kind == "" {
				b.Kind = models.BlockText
			}
			if !b.Kind.Valid() {
				return resolved(ErrInvalidBlock)
			}
			if b.ID.IsZero() {
				b.ID = models.NewBlockID()
			}
			if seen[b.ID] {
				return resolved(ErrInvalidBlock)
			}
			seen[b.ID] = true
			blocks = append(blocks, b.Clone())
		}
	}

	if patch.Title != nil {
		doc.Title = *patch.Title
		if doc.Title == "" {
			doc.Title = models.DefaultDocumentTitle
		}
	}
	if patch.Content != nil {
		doc.Content = *patch.Content
	}
	if patch.Icon != nil {
		doc.Icon = *patch.Icon
	}
	if patch.Expanded != nil {
		doc.Expanded = *patch.Expanded
	}
	if blocks != nil {
		doc.Blocks = blocks
		doc.SortBlocks()
	}
	doc.UpdatedAt = c.stamp()
	return c.saveDocsLocked("update document", id)
}

// MoveDocument reparents a document, or makes it a root when newParent is
// nil. It is appended to the end of the new parent's children.
func (c *Controller) MoveDocument(id models.DocumentID, newParent *models.DocumentID) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	doc, ok := c.docs[id]
	if !ok {
		return resolved(ErrDocumentNotFound)
	}
	var np *models.Document
	if newParent != nil {
		if np, ok = c.docs[*newParent]; !ok {
			return resolved(ErrDocumentNotFound)
		}
		if *newParent == id || isAncestor(c.docs, id, *newParent) {
			return resolved(ErrCycle)
		}
	}
	if (doc.ParentID == nil && newParent == nil) || (doc.ParentID != nil && newParent != nil && *doc.ParentID == *newParent) {
		return resolved(nil)
	}

	now := c.stamp()
	touched := []models.DocumentID{id}
	if doc.ParentID != nil {
		if old, ok := c.docs[*doc.ParentID]; ok {
			old.RemoveChild(id)
			old.UpdatedAt = now
			touched = append(touched, old.ID)
		}
	}
	doc.ParentID = nil
	if np != nil {
		pid := np.ID
		doc.ParentID = &pid
		np.ChildIDs = append(np.ChildIDs, id)
		np.UpdatedAt = now
		touched = append(touched, np.ID)
	}
	doc.UpdatedAt = now
	return c.saveDocsLocked("move document", touched...)
}

// DeleteDocument removes a document with all its descendants. Nothing
// leaves memory until the store confirms the delete.
func (c *Controller) DeleteDocument(id models.DocumentID) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	doc, ok := c.docs[id]
	if !ok {
		return resolved(ErrDocumentNotFound)
	}
	var keys []string
	for _, d := range subtree(c.docs, id) {
		keys = append(keys, docKey(d))
	}
	if doc.ParentID != nil {
		keys = append(keys, docKey(*doc.ParentID))
	}
	return c.enqueueLocked("delete document", keys, func() *step {
		return c.deleteDocStep(id)
	})
}

func (c *Controller) deleteDocStep(id models.DocumentID) *step {
	doc, ok := c.docs[id]
	if !ok {
		return nil
	}
	owner := c.user
	ids := subtree(c.docs, id)
	var parent *models.Document
	if doc.ParentID != nil {
		if p, ok := c.docs[*doc.ParentID]; ok {
			parent = p.Clone()
			parent.RemoveChild(id)
			parent.UpdatedAt = c.stamp()
		}
	}

	deleted := false
	drop := func() {
		for _, d := range ids {
			delete(c.docs, d)
			delete(c.confDocs, d)
		}
		if parent != nil {
			if p, ok := c.docs[parent.ID]; ok {
				p.RemoveChild(id)
			}
		}
	}
	return &step{
		call: func(ctx context.Context) error {
			if err := c.svc.Documents.Delete(ctx, owner, ids); err != nil {
				return err
			}
			deleted = true
			if parent == nil {
				return nil
			}
			return c.svc.Documents.Update(ctx, owner, parent)
		},
		commit: func() {
			drop()
			if parent != nil {
				if p, ok := c.docs[parent.ID]; ok {
					p.UpdatedAt = parent.UpdatedAt
				}
				c.confDocs[parent.ID] = parent
			}
		},
		rollback: func(error) {
			// The rows are gone even though the parent still lists the
			// document remotely; the next load drops the dangling id.
			if deleted {
				drop()
			}
		},
	}
}

// AddBlock inserts a block at position, or appends it when position is out
// of range.
func (c *Controller) AddBlock(docID models.DocumentID, in BlockInput, position int) (models.BlockID, *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return models.BlockID{}, resolved(err)
	}
	doc, ok := c.docs[docID]
	if !ok {
		return models.BlockID{}, resolved(ErrDocumentNotFound)
	}
	if in.Kind == "" {
		in.Kind = models.BlockText
	}
	if !in.Kind.Valid() {
		return models.BlockID{}, resolved(ErrInvalidBlock)
	}

	b := models.Block{ID: models.NewBlockID(), Kind: in.Kind, Content: in.Content, Data: in.Data.Clone()}
	if position < 0 || position > len(doc.Blocks) {
		position = len(doc.Blocks)
	}
	doc.Blocks = append(doc.Blocks, models.Block{})
	copy(doc.Blocks[position+1:], doc.Blocks[position:])
	doc.Blocks[position] = b
	doc.RenumberBlocks()
	doc.UpdatedAt = c.stamp()
	return b.ID, c.saveDocsLocked("add block", docID)
}

func (c *Controller) UpdateBlock(docID models.DocumentID, blockID models.BlockID, patch BlockPatch) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	doc, ok := c.docs[docID]
	if !ok {
		return resolved(ErrDocumentNotFound)
	}
	i := doc.BlockIndex(blockID)
	if i < 0 {
		return resolved(ErrBlockNotFound)
	}
	if patch.Kind != nil && !patch.Kind.Valid() {
		return resolved(ErrInvalidBlock)
	}

	b := &doc.Blocks[i]
	if patch.Kind != nil {
		b.Kind = *patch.Kind
	}
	if patch.Content != nil {
		b.Content = *patch.Content
	}
	if patch.Data != nil {
		b.Data = patch.Data.Clone()
	}
	doc.UpdatedAt = c.stamp()
	return c.saveDocsLocked("update block", docID)
}

func (c *Controller) DeleteBlock(docID models.DocumentID, blockID models.BlockID) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	doc, ok := c.docs[docID]
	if !ok {
		return resolved(ErrDocumentNotFound)
	}
	i := doc.BlockIndex(blockID)
	if i < 0 {
		return resolved(ErrBlockNotFound)
	}
	doc.Blocks = append(doc.Blocks[:i], doc.Blocks[i+1:]...)
	doc.RenumberBlocks()
	doc.UpdatedAt = c.stamp()
	return c.saveDocsLocked("delete block", docID)
}

// ReorderBlocks puts the blocks in the given order. order must name every
// block of the document exactly once.
func (c *Controller) ReorderBlocks(docID models.DocumentID, order []models.BlockID) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	doc, ok := c.docs[docID]
	if !ok {
		return resolved(ErrDocumentNotFound)
	}
	if len(order) != len(doc.Blocks) {
		return resolved(ErrInvalidOrder)
	}
	reordered := make([]models.Block, 0, len(order))
	seen := map[models.BlockID]bool{}
	for _, bid := range order {
		i := doc.BlockIndex(bid)
		if i < 0 || seen[bid] {
			return resolved(ErrInvalidOrder)
		}
		seen[bid] = true
		reordered = append(reordered, doc.Blocks[i])
	}
	doc.Blocks = reordered
	doc.RenumberBlocks()
	doc.UpdatedAt = c.stamp()
	return c.saveDocsLocked("reorder blocks", docID)
}

// saveDocsLocked queues an update of the given documents as they are when
// the write runs.
func (c *Controller) saveDocsLocked(op string, ids ...models.DocumentID) *Pending {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(id)
	}
	return c.enqueueLocked(op, keys, func() *step {
		return c.updateDocsStep(ids)
	})
}

func (c *Controller) updateDocsStep(ids []models.DocumentID) *step {
	owner := c.user
	var payloads []*models.Document
	prev := map[models.DocumentID]*models.Document{}
	for _, id := range ids {
		d, ok := c.docs[id]
		if !ok {
			continue
		}
		payloads = append(payloads, d.Clone())
		if conf, ok := c.confDocs[id]; ok {
			prev[id] = conf.Clone()
		}
	}
	if len(payloads) == 0 {
		return nil
	}

	return &step{
		call: func(ctx context.Context) error {
			for i, p := range payloads {
				if err := c.svc.Documents.Update(ctx, owner, p); err != nil {
					c.restoreDocs(ctx, owner, payloads[:i], prev)
					return err
				}
			}
			return nil
		},
		commit: func() {
			for _, p := range payloads {
				c.confDocs[p.ID] = p
			}
		},
		rollback: func(error) {
			for _, id := range ids {
				c.revertDocLocked(id)
			}
		},
	}
}

// restoreDocs puts the confirmed copies of already written documents back
// after a later write of the same batch failed.
func (c *Controller) restoreDocs(ctx context.Context, owner models.UserID, written []*models.Document, prev map[models.DocumentID]*models.Document) {
	for _, w := range written {
		p, ok := prev[w.ID]
		if !ok {
			continue
		}
		if err := c.svc.Documents.Update(ctx, owner, p); err != nil {
			c.log.Warn().Err(err).Stringer("document", w.ID).Msg("failed to restore document")
		}
	}
}

// revertDocLocked puts back the confirmed copy of a document, or removes it
// when the store never confirmed it. Callers repair the tree afterwards.
func (c *Controller) revertDocLocked(id models.DocumentID) {
	if conf, ok := c.confDocs[id]; ok {
		c.docs[id] = conf.Clone()
		return
	}
	delete(c.docs, id)
}
