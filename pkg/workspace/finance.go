package workspace

import (
	"context"
	"time"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

// FinancePatch replaces the sub-collections that are non-nil. A new
// transaction list is applied as a difference against the current one, so
// wallet balances follow added, removed and edited transactions.
type FinancePatch struct {
	Wallets      *[]models.Wallet      `json:"wallets,omitempty"`
	Transactions *[]models.Transaction `json:"transactions,omitempty"`
	Categories   *[]models.Category    `json:"categories,omitempty"`
	Goals        *[]models.Goal        `json:"goals,omitempty"`
	Budgets      *[]models.Budget      `json:"budgets,omitempty"`
}

// UpdateFinanceData merges patch and persists the whole aggregate. A patch
// containing an invalid transaction changes nothing.
func (c *Controller) UpdateFinanceData(patch FinancePatch) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	next := c.finance.Clone()
	if patch.Wallets != nil {
		next.Wallets = append([]models.Wallet{}, (*patch.Wallets)...)
		for i := range next.Wallets {
			if next.Wallets[i].ID.IsZero() {
				next.Wallets[i].ID = models.NewWalletID()
			}
			if next.Wallets[i].CreatedAt.IsZero() {
				next.Wallets[i].CreatedAt = c.stamp()
			}
		}
	}
	if patch.Transactions != nil {
		if err := c.applyTransactionList(&next, *patch.Transactions); err != nil {
			return resolved(err)
		}
	}
	if patch.Categories != nil {
		next.Categories = append([]models.Category{}, (*patch.Categories)...)
		for i := range next.Categories {
			if next.Categories[i].ID.IsZero() {
				next.Categories[i].ID = models.NewCategoryID()
			}
		}
	}
	if patch.Goals != nil {
		next.Goals = models.FinanceData{Goals: *patch.Goals}.Clone().Goals
		for i := range next.Goals {
			if next.Goals[i].ID.IsZero() {
				next.Goals[i].ID = models.NewGoalID()
			}
		}
	}
	if patch.Budgets != nil {
		next.Budgets = append([]models.Budget{}, (*patch.Budgets)...)
		for i := range next.Budgets {
			if next.Budgets[i].ID.IsZero() {
				next.Budgets[i].ID = models.NewBudgetID()
			}
		}
	}
	next.Normalize()
	c.finance = next
	return c.saveFinanceLocked("update finance")
}

// applyTransactionList moves f to the given transaction list: removed
// transactions are reverted, edited ones reverted and re-applied, and new
// ones applied.
func (c *Controller) applyTransactionList(f *models.FinanceData, list []models.Transaction) error {
	list = append([]models.Transaction{}, list...)
	want := map[models.TransactionID]models.Transaction{}
	for i, t := range list {
		if t.ID.IsZero() {
			t.ID = models.NewTransactionID()
		}
		if t.Date.IsZero() {
			t.Date = c.stamp()
		}
		list[i] = t
		want[t.ID] = t
	}
	for _, t := range append([]models.Transaction{}, f.Transactions...) {
		if w, ok := want[t.ID]; ok && sameTransaction(w, t) {
			continue
		}
		f.RevertTransaction(t.ID)
	}
	for _, t := range list {
		if f.TransactionIndex(t.ID) >= 0 {
			continue
		}
		if err := f.ApplyTransaction(t); err != nil {
			return err
		}
	}
	return nil
}

func sameTransaction(a, b models.Transaction) bool {
	if (a.CategoryID == nil) != (b.CategoryID == nil) {
		return false
	}
	if a.CategoryID != nil && *a.CategoryID != *b.CategoryID {
		return false
	}
	return a.Amount == b.Amount && a.Direction == b.Direction && a.WalletID == b.WalletID &&
		a.Note == b.Note && a.Date.Equal(b.Date)
}

// RecordTransaction appends t and moves its wallet's balance in the same
// step. A zero id or date is filled in.
func (c *Controller) RecordTransaction(t models.Transaction) (models.TransactionID, *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return models.TransactionID{}, resolved(err)
	}
	if t.ID.IsZero() {
		t.ID = models.NewTransactionID()
	}
	if t.Date.IsZero() {
		t.Date = c.stamp()
	}
	next := c.finance.Clone()
	if err := next.ApplyTransaction(t); err != nil {
		return models.TransactionID{}, resolved(err)
	}
	c.finance = next
	return t.ID, c.saveFinanceLocked("record transaction")
}

// DeleteTransaction removes a transaction and undoes its wallet effect.
func (c *Controller) DeleteTransaction(id models.TransactionID) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	if !c.finance.RevertTransaction(id) {
		return resolved(ErrTransactionNotFound)
	}
	return c.saveFinanceLocked("delete transaction")
}

// TransactionsBetween returns the transactions dated in [from, to), newest
// first.
func (c *Controller) TransactionsBetween(from, to time.Time) []models.Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finance.Clone().TransactionsBetween(from, to)
}

func (c *Controller) saveFinanceLocked(op string) *Pending {
	return c.enqueueLocked(op, []string{financeKey}, func() *step {
		owner, payload := c.user, c.finance.Clone()
		return &step{
			call: func(ctx context.Context) error {
				return c.svc.Finance.Save(ctx, owner, payload)
			},
			commit: func() { c.confFinance = payload },
			rollback: func(error) {
				c.finance = c.confFinance.Clone()
			},
		}
	})
}
