package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// BlockKind tags the content a Block carries.
type BlockKind string

const (
	BlockText    BlockKind = "text"
	BlockHeading BlockKind = "heading"
	BlockImage   BlockKind = "image"
	BlockVideo   BlockKind = "video"
	BlockTable   BlockKind = "table"
)

// Valid reports whether k is one of the supported block kinds.
func (k BlockKind) Valid() bool {
	switch k {
	case BlockText, BlockHeading, BlockImage, BlockVideo, BlockTable:
		return true
	}
	return false
}

const (
	DefaultDocumentTitle = "Untitled"
	DefaultDocumentIcon  = "📄"
)

// JSONMap holds kind-specific block data (heading level, table cells, media
// URL) and other free-form structured content.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into JSONMap", value)
	}
	return json.Unmarshal(bytes, j)
}

// Clone returns a deep copy, going through JSON so nested maps and slices are
// not shared.
func (j JSONMap) Clone() JSONMap {
	if j == nil {
		return nil
	}
	raw, err := json.Marshal(j)
	if err != nil {
		out := make(JSONMap, len(j))
		for k, v := range j {
			out[k] = v
		}
		return out
	}
	out := JSONMap{}
	_ = json.Unmarshal(raw, &out)
	return out
}

// Block is one typed content unit inside a Document.
type Block struct {
	ID      BlockID   `json:"id"`
	Kind    BlockKind `json:"kind"`
	Content string    `json:"content"`
	Data    JSONMap   `json:"data,omitempty"`
	Order   int       `json:"order"`
}

func (b Block) Clone() Block {
	b.Data = b.Data.Clone()
	return b
}

// HeadingLevel returns the level stored in a heading block's data, 1 when unset.
func (b Block) HeadingLevel() int {
	if b.Kind != BlockHeading {
		return 0
	}
	switch v := b.Data["level"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 1
}

// Document is a page in the user's document forest.
type Document struct {
	ID        DocumentID   `json:"id"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Blocks    []Block      `json:"blocks"`
	ParentID  *DocumentID  `json:"parentId,omitempty"`
	ChildIDs  []DocumentID `json:"childIds"`
	Expanded  bool         `json:"expanded"`
	Icon      string       `json:"icon"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// NewDocument returns a document with a fresh id stamped at now.
func NewDocument(title string, parentID *DocumentID, now time.Time) *Document {
	if title == "" {
		title = DefaultDocumentTitle
	}
	var parent *DocumentID
	if parentID != nil {
		p := *parentID
		parent = &p
	}
	return &Document{
		ID:        NewDocumentID(),
		Title:     title,
		Blocks:    []Block{},
		ParentID:  parent,
		ChildIDs:  []DocumentID{},
		Icon:      DefaultDocumentIcon,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsRoot reports whether the document has no parent.
func (d *Document) IsRoot() bool {
	return d.ParentID == nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.ParentID != nil {
		p := *d.ParentID
		out.ParentID = &p
	}
	out.ChildIDs = append([]DocumentID{}, d.ChildIDs...)
	out.Blocks = make([]Block, len(d.Blocks))
	for i, b := range d.Blocks {
		out.Blocks[i] = b.Clone()
	}
	return &out
}

// HasChild reports whether id is listed among the document's children.
func (d *Document) HasChild(id DocumentID) bool {
	for _, c := range d.ChildIDs {
		if c == id {
			return true
		}
	}
	return false
}

// RemoveChild drops id from the child list, keeping the order of the rest.
func (d *Document) RemoveChild(id DocumentID) {
	out := d.ChildIDs[:0]
	for _, c := range d.ChildIDs {
		if c != id {
			out = append(out, c)
		}
	}
	d.ChildIDs = out
}

// BlockIndex returns the position of the block in d.Blocks, or -1.
func (d *Document) BlockIndex(id BlockID) int {
	for i, b := range d.Blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// SortBlocks orders blocks by Order and renumbers them 0..n-1. Ties keep
// their slice order.
func (d *Document) SortBlocks() {
	sort.SliceStable(d.Blocks, func(i, j int) bool {
		return d.Blocks[i].Order < d.Blocks[j].Order
	})
	d.RenumberBlocks()
}

// RenumberBlocks assigns each block its slice index as Order.
func (d *Document) RenumberBlocks() {
	for i := range d.Blocks {
		d.Blocks[i].Order = i
	}
}
