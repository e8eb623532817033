package surrealdesk

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/surrealdb/surrealdesk/pkg/client"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/workspace"
)

// accepted answers a mutation. Without ?wait=true the change is only
// applied in memory; a write that already failed, like one rejected by
// validation, is reported either way.
func (a *App) accepted(w http.ResponseWriter, r *http.Request, id string, p *workspace.Pending) {
	if !wantWait(r) {
		select {
		case <-p.Done():
			if err := p.Err(); err != nil {
				a.respondErr(w, r, err)
				return
			}
		default:
		}
		respondJSON(w, http.StatusAccepted, client.Accepted{ID: id})
		return
	}
	if err := p.Wait(r.Context()); err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, client.Accepted{ID: id, Persisted: true})
}

func wantWait(r *http.Request) bool {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return wait
}

func pathDocumentID(w http.ResponseWriter, r *http.Request) (models.DocumentID, bool) {
	id, err := models.ParseDocumentID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid document id")
		return id, false
	}
	return id, true
}

func (a *App) handleGetWorkspace(w http.ResponseWriter, r *http.Request, s *clientSession) {
	respondJSON(w, http.StatusOK, s.workspace.Snapshot())
}

// handleReload loads the workspace again from the store and answers with
// the result. Unsaved optimistic changes are dropped.
func (a *App) handleReload(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id := s.auth.Current()
	if id == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.workspace.LoadForUser(r.Context(), id.UserID); err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.workspace.Snapshot())
}

func (a *App) handleCreateDocument(w http.ResponseWriter, r *http.Request, s *clientSession) {
	var req client.CreateDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, p := s.workspace.CreateDocument(req.Title, req.ParentID)
	a.accepted(w, r, id.String(), p)
}

func (a *App) handleGetDocument(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id, ok := pathDocumentID(w, r)
	if !ok {
		return
	}
	doc, found := s.workspace.Document(id)
	if !found {
		a.respondErr(w, r, workspace.ErrDocumentNotFound)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (a *App) handleUpdateDocument(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id, ok := pathDocumentID(w, r)
	if !ok {
		return
	}
	var patch workspace.DocumentPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.accepted(w, r, id.String(), s.workspace.UpdateDocument(id, patch))
}

// handleDeleteDocument removes the document with its whole subtree. The
// documents stay visible until the store confirmed the delete.
func (a *App) handleDeleteDocument(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id, ok := pathDocumentID(w, r)
	if !ok {
		return
	}
	a.accepted(w, r, id.String(), s.workspace.DeleteDocument(id))
}

func (a *App) handleMoveDocument(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id, ok := pathDocumentID(w, r)
	if !ok {
		return
	}
	var req client.MoveDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.accepted(w, r, id.String(), s.workspace.MoveDocument(id, req.ParentID))
}

func (a *App) handleAddBlock(w http.ResponseWriter, r *http.Request, s *clientSession) {
	docID, ok := pathDocumentID(w, r)
	if !ok {
		return
	}
	var req client.AddBlockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	position := -1
	if req.Position != nil {
		position = *req.Position
	}
	id, p := s.workspace.AddBlock(docID, req.BlockInput, position)
	a.accepted(w, r, id.String(), p)
}

func (a *App) handleUpdateBlock(w http.ResponseWriter, r *http.Request, s *clientSession) {
	docID, ok := pathDocumentID(w, r)
	if !ok {
		return
	}
	blockID, err := models.ParseBlockID(mux.Vars(r)["blockID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid block id")
		return
	}
	var patch workspace.BlockPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.accepted(w, r, blockID.String(), s.workspace.UpdateBlock(docID, blockID, patch))
}

func (a *App) handleDeleteBlock(w http.ResponseWriter, r *http.Request, s *clientSession) {
	docID, ok := pathDocumentID(w, r)
	if !ok {
		return
	}
	blockID, err := models.ParseBlockID(mux.Vars(r)["blockID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid block id")
		return
	}
	a.accepted(w, r, blockID.String(), s.workspace.DeleteBlock(docID, blockID))
}

func (a *App) handleReorderBlocks(w http.ResponseWriter, r *http.Request, s *clientSession) {
	docID, ok := pathDocumentID(w, r)
	if !ok {
		return
	}
	var req client.ReorderBlocksRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.accepted(w, r, docID.String(), s.workspace.ReorderBlocks(docID, req.Order))
}

func (a *App) handleSearchDocuments(w http.ResponseWriter, r *http.Request, s *clientSession) {
	respondJSON(w, http.StatusOK, s.workspace.SearchDocuments(r.URL.Query().Get("q")))
}

// handleListTasks filters with the optional query parameters priority,
// category and completed.
func (a *App) handleListTasks(w http.ResponseWriter, r *http.Request, s *clientSession) {
	q := r.URL.Query()
	var f workspace.TaskFilter
	if v := q.Get("priority"); v != "" {
		p := models.ParsePriority(v)
		f.Priority = &p
	}
	f.Category = q.Get("category")
	if v := q.Get("completed"); v != "" {
		done, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		f.Completed = &done
	}
	respondJSON(w, http.StatusOK, s.workspace.FilterTasks(f))
}

func (a *App) handleCreateTask(w http.ResponseWriter, r *http.Request, s *clientSession) {
	var in workspace.TaskInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, p := s.workspace.CreateTask(in)
	a.accepted(w, r, id.String(), p)
}

func pathTaskID(w http.ResponseWriter, r *http.Request) (models.TaskID, bool) {
	id, err := models.ParseTaskID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return id, false
	}
	return id, true
}

func (a *App) handleUpdateTask(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}
	var patch workspace.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.accepted(w, r, id.String(), s.workspace.UpdateTask(id, patch))
}

func (a *App) handleDeleteTask(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}
	a.accepted(w, r, id.String(), s.workspace.DeleteTask(id))
}

func (a *App) handleToggleTask(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}
	a.accepted(w, r, id.String(), s.workspace.ToggleTaskCompletion(id))
}

func (a *App) handleGetFinance(w http.ResponseWriter, r *http.Request, s *clientSession) {
	respondJSON(w, http.StatusOK, s.workspace.Finance())
}

func (a *App) handleUpdateFinance(w http.ResponseWriter, r *http.Request, s *clientSession) {
	var patch workspace.FinancePatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.accepted(w, r, "", s.workspace.UpdateFinanceData(patch))
}

// handleListTransactions returns the transactions dated in [from, to).
// Both bounds are RFC 3339 and default to the open ends.
func (a *App) handleListTransactions(w http.ResponseWriter, r *http.Request, s *clientSession) {
	from, err := parseTimeParam(r, "from", time.Time{})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseTimeParam(r, "to", time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	txs := s.workspace.TransactionsBetween(from, to)
	if txs == nil {
		txs = []models.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}

func parseTimeParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 time", name)
	}
	return t, nil
}

func (a *App) handleRecordTransaction(w http.ResponseWriter, r *http.Request, s *clientSession) {
	var t models.Transaction
	if err := decodeJSON(r, &t); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, p := s.workspace.RecordTransaction(t)
	a.accepted(w, r, id.String(), p)
}

func (a *App) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id, err := models.ParseTransactionID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	a.accepted(w, r, id.String(), s.workspace.DeleteTransaction(id))
}

func (a *App) handleGetHealth(w http.ResponseWriter, r *http.Request, s *clientSession) {
	respondJSON(w, http.StatusOK, s.workspace.Health())
}

// handleUpdateHealth assigns ids to new protocols and habits before the
// patch is applied, so the response can name them.
func (a *App) handleUpdateHealth(w http.ResponseWriter, r *http.Request, s *clientSession) {
	var patch workspace.HealthPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp := client.HealthPatchResponse{
		ProtocolIDs: make([]models.ProtocolID, 0, len(patch.Protocols)),
		HabitIDs:    make([]models.HabitID, 0, len(patch.Habits)),
	}
	for i := range patch.Protocols {
		if patch.Protocols[i].ID.IsZero() {
			patch.Protocols[i].ID = models.NewProtocolID()
		}
		resp.ProtocolIDs = append(resp.ProtocolIDs, patch.Protocols[i].ID)
	}
	for i := range patch.Habits {
		if patch.Habits[i].ID.IsZero() {
			patch.Habits[i].ID = models.NewHabitID()
		}
		resp.HabitIDs = append(resp.HabitIDs, patch.Habits[i].ID)
	}

	p := s.workspace.UpdateHealthData(patch)
	status := http.StatusAccepted
	if wantWait(r) {
		if err := p.Wait(r.Context()); err != nil {
			a.respondErr(w, r, err)
			return
		}
		status = http.StatusOK
		resp.Persisted = true
	} else if err := p.Err(); err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, status, resp)
}

func (a *App) handleMilestones(w http.ResponseWriter, r *http.Request, s *clientSession) {
	respondJSON(w, http.StatusOK, s.workspace.Milestones(a.now()))
}
