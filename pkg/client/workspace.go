package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/workspace"
)

func (c *Client) Workspace(ctx context.Context) (*workspace.State, error) {
	var st workspace.State
	if err := c.call(ctx, http.MethodGet, "/api/workspace", nil, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Reload makes the server load the workspace again from the store.
func (c *Client) Reload(ctx context.Context) (*workspace.State, error) {
	var st workspace.State
	if err := c.call(ctx, http.MethodPost, "/api/workspace/reload", nil, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func documentPath(id models.DocumentID, rest ...string) string {
	p := "/api/documents/" + url.PathEscape(id.String())
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// CreateDocument creates a document under parentID, or at the root when
// parentID is nil.
func (c *Client) CreateDocument(ctx context.Context, title string, parentID *models.DocumentID) (models.DocumentID, error) {
	res, err := c.mutate(ctx, http.MethodPost, "/api/documents", CreateDocumentRequest{Title: title, ParentID: parentID})
	if err != nil {
		return models.DocumentID{}, err
	}
	return models.ParseDocumentID(res.ID)
}

func (c *Client) Document(ctx context.Context, id models.DocumentID) (*models.Document, error) {
	var doc models.Document
	if err := c.call(ctx, http.MethodGet, documentPath(id), nil, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) UpdateDocument(ctx context.Context, id models.DocumentID, patch workspace.DocumentPatch) error {
	_, err := c.mutate(ctx, http.MethodPatch, documentPath(id), patch)
	return err
}

func (c *Client) DeleteDocument(ctx context.Context, id models.DocumentID) error {
	_, err := c.mutate(ctx, http.MethodDelete, documentPath(id), nil)
	return err
}

func (c *Client) MoveDocument(ctx context.Context, id models.DocumentID, parentID *models.DocumentID) error {
	_, err := c.mutate(ctx, http.MethodPost, documentPath(id, "move"), MoveDocumentRequest{ParentID: parentID})
	return err
}

// AddBlock inserts a block at position; nil appends it.
func (c *Client) AddBlock(ctx context.Context, docID models.DocumentID, in workspace.BlockInput, position *int) (models.BlockID, error) {
	res, err := c.mutate(ctx, http.MethodPost, documentPath(docID, "blocks"), AddBlockRequest{BlockInput: in, Position: position})
	if err != nil {
		return models.BlockID{}, err
	}
	return models.ParseBlockID(res.ID)
}

func (c *Client) UpdateBlock(ctx context.Context, docID models.DocumentID, blockID models.BlockID, patch workspace.BlockPatch) error {
	_, err := c.mutate(ctx, http.MethodPatch, documentPath(docID, "blocks", blockID.String()), patch)
	return err
}

func (c *Client) DeleteBlock(ctx context.Context, docID models.DocumentID, blockID models.BlockID) error {
	_, err := c.mutate(ctx, http.MethodDelete, documentPath(docID, "blocks", blockID.String()), nil)
	return err
}

func (c *Client) ReorderBlocks(ctx context.Context, docID models.DocumentID, order []models.BlockID) error {
	_, err := c.mutate(ctx, http.MethodPut, documentPath(docID, "blocks", "order"), ReorderBlocksRequest{Order: order})
	return err
}

func (c *Client) SearchDocuments(ctx context.Context, q string) ([]*models.Document, error) {
	var docs []*models.Document
	if err := c.call(ctx, http.MethodGet, "/api/documents/search", url.Values{"q": {q}}, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) Tasks(ctx context.Context, f workspace.TaskFilter) ([]*models.DailyTask, error) {
	q := url.Values{}
	if f.Priority != nil {
		q.Set("priority", string(*f.Priority))
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Completed != nil {
		q.Set("completed", strconv.FormatBool(*f.Completed))
	}
	var tasks []*models.DailyTask
	if err := c.call(ctx, http.MethodGet, "/api/tasks", q, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, in workspace.TaskInput) (models.TaskID, error) {
	res, err := c.mutate(ctx, http.MethodPost, "/api/tasks", in)
	if err != nil {
		return models.TaskID{}, err
	}
	return models.ParseTaskID(res.ID)
}

func (c *Client) UpdateTask(ctx context.Context, id models.TaskID, patch workspace.TaskPatch) error {
	_, err := c.mutate(ctx, http.MethodPatch, "/api/tasks/"+id.String(), patch)
	return err
}

func (c *Client) DeleteTask(ctx context.Context, id models.TaskID) error {
	_, err := c.mutate(ctx, http.MethodDelete, "/api/tasks/"+id.String(), nil)
	return err
}

func (c *Client) ToggleTask(ctx context.Context, id models.TaskID) error {
	_, err := c.mutate(ctx, http.MethodPost, "/api/tasks/"+id.String()+"/toggle", nil)
	return err
}

func (c *Client) Finance(ctx context.Context) (*models.FinanceData, error) {
	var f models.FinanceData
	if err := c.call(ctx, http.MethodGet, "/api/finance", nil, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) UpdateFinance(ctx context.Context, patch workspace.FinancePatch) error {
	_, err := c.mutate(ctx, http.MethodPatch, "/api/finance", patch)
	return err
}

func (c *Client) RecordTransaction(ctx context.Context, t models.Transaction) (models.TransactionID, error) {
	res, err := c.mutate(ctx, http.MethodPost, "/api/finance/transactions", t)
	if err != nil {
		return models.TransactionID{}, err
	}
	return models.ParseTransactionID(res.ID)
}

func (c *Client) DeleteTransaction(ctx context.Context, id models.TransactionID) error {
	_, err := c.mutate(ctx, http.MethodDelete, "/api/finance/transactions/"+id.String(), nil)
	return err
}

// Transactions lists transactions dated in [from, to). Zero bounds are
// left open.
func (c *Client) Transactions(ctx context.Context, from, to time.Time) ([]models.Transaction, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		q.Set("to", to.Format(time.RFC3339))
	}
	var out []models.Transaction
	if err := c.call(ctx, http.MethodGet, "/api/finance/transactions", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (*models.HealthData, error) {
	var h models.HealthData
	if err := c.call(ctx, http.MethodGet, "/api/health", nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) UpdateHealth(ctx context.Context, patch workspace.HealthPatch) (*HealthPatchResponse, error) {
	var query url.Values
	if c.Wait {
		query = url.Values{"wait": {"true"}}
	}
	var out HealthPatchResponse
	if err := c.call(ctx, http.MethodPatch, "/api/health", query, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Milestones(ctx context.Context) (*workspace.MilestoneReport, error) {
	var r workspace.MilestoneReport
	if err := c.call(ctx, http.MethodGet, "/api/health/milestones", nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ReadOnly(ctx context.Context) (bool, error) {
	var m ReadOnlyMode
	if err := c.call(ctx, http.MethodGet, "/api/admin/read-only", nil, nil, &m); err != nil {
		return false, err
	}
	return m.ReadOnly, nil
}

// SetReadOnly switches maintenance mode. The client's token must be the
// store key.
func (c *Client) SetReadOnly(ctx context.Context, readOnly bool) error {
	return c.call(ctx, http.MethodPost, "/api/admin/read-only", nil, ReadOnlyMode{ReadOnly: readOnly}, nil)
}
