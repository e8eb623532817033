package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Amounts are integers in the currency's minor unit (cents).

type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

var (
	ErrUnknownWallet     = errors.New("unknown wallet")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidDirection  = errors.New("direction must be income or expense")
	ErrDuplicateTransfer = errors.New("transaction already recorded")
)

type Wallet struct {
	ID        WalletID  `json:"id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

type Transaction struct {
	ID         TransactionID `json:"id"`
	Amount     int64         `json:"amount"`
	Direction  Direction     `json:"direction"`
	CategoryID *CategoryID   `json:"categoryId,omitempty"`
	WalletID   WalletID      `json:"walletId"`
	Note       string        `json:"note,omitempty"`
	Date       time.Time     `json:"date"`
}

// Signed returns the wallet delta the transaction causes.
func (t Transaction) Signed() int64 {
	if t.Direction == DirectionExpense {
		return -t.Amount
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if t.Direction != DirectionIncome && t.Direction != DirectionExpense {
		return ErrInvalidDirection
	}
	return nil
}

type Category struct {
	ID        CategoryID `json:"id"`
	Name      string     `json:"name"`
	Direction Direction  `json:"direction"`
	Color     string     `json:"color,omitempty"`
}

type Goal struct {
	ID            GoalID     `json:"id"`
	Name          string     `json:"name"`
	TargetAmount  int64      `json:"targetAmount"`
	CurrentAmount int64      `json:"currentAmount"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

// Progress is the fraction of the target reached, capped at 1.
func (g Goal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	p := float64(g.CurrentAmount) / float64(g.TargetAmount)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// Budget caps monthly expenses in one category.
type Budget struct {
	ID         BudgetID   `json:"id"`
	CategoryID CategoryID `json:"categoryId"`
	Limit      int64      `json:"limit"`
	Currency   string     `json:"currency,omitempty"`
}

// FinanceData is the per-user finance aggregate. It is persisted as one blob.
type FinanceData struct {
	Wallets      []Wallet      `json:"wallets"`
	Transactions []Transaction `json:"transactions"`
	Categories   []Category    `json:"categories"`
	Goals        []Goal        `json:"goals"`
	Budgets      []Budget      `json:"budgets"`
}

// EmptyFinance returns an aggregate with non-nil, empty collections.
func EmptyFinance() FinanceData {
	return FinanceData{
		Wallets:      []Wallet{},
		Transactions: []Transaction{},
		Categories:   []Category{},
		Goals:        []Goal{},
		Budgets:      []Budget{},
	}
}

// Normalize replaces nil collections with empty ones.
func (f *FinanceData) Normalize() {
	if f.Wallets == nil {
		f.Wallets = []Wallet{}
	}
	if f.Transactions == nil {
		f.Transactions = []Transaction{}
	}
	if f.Categories == nil {
		f.Categories = []Category{}
	}
	if f.Goals == nil {
		f.Goals = []Goal{}
	}
	if f.Budgets == nil {
		f.Budgets = []Budget{}
	}
}

func (f FinanceData) Clone() FinanceData {
	out := FinanceData{
		Wallets:      append([]Wallet{}, f.Wallets...),
		Transactions: make([]Transaction, len(f.Transactions)),
		Categories:   append([]Category{}, f.Categories...),
		Goals:        make([]Goal, len(f.Goals)),
		Budgets:      append([]Budget{}, f.Budgets...),
	}
	for i, t := range f.Transactions {
		if t.CategoryID != nil {
			c := *t.CategoryID
			t.CategoryID = &c
		}
		out.Transactions[i] = t
	}
	for i, g := range f.Goals {
		if g.Deadline != nil {
			d := *g.Deadline
			g.Deadline = &d
		}
		out.Goals[i] = g
	}
	return out
}

func (f *FinanceData) walletIndex(id WalletID) int {
	for i, w := range f.Wallets {
		if w.ID == id {
			return i
		}
	}
	return -1
}

// Wallet returns the wallet with the given id.
func (f *FinanceData) Wallet(id WalletID) (Wallet, bool) {
	if i := f.walletIndex(id); i >= 0 {
		return f.Wallets[i], true
	}
	return Wallet{}, false
}

// TransactionIndex returns the position of the transaction, or -1.
func (f *FinanceData) TransactionIndex(id TransactionID) int {
	for i, t := range f.Transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ApplyTransaction records t and moves its wallet balance in one step. On
// error f is unchanged.
func (f *FinanceData) ApplyTransaction(t Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if f.TransactionIndex(t.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTransfer, t.ID)
	}
	wi := f.walletIndex(t.WalletID)
	if wi < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownWallet, t.WalletID)
	}
	f.Wallets[wi].Balance += t.Signed()
	f.Transactions = append(f.Transactions, t)
	return nil
}

// RevertTransaction removes the transaction and undoes its wallet effect. If
// the wallet no longer exists only the transaction is removed.
func (f *FinanceData) RevertTransaction(id TransactionID) bool {
	ti := f.TransactionIndex(id)
	if ti < 0 {
		return false
	}
	t := f.Transactions[ti]
	if wi := f.walletIndex(t.WalletID); wi >= 0 {
		f.Wallets[wi].Balance -= t.Signed()
	}
	f.Transactions = append(f.Transactions[:ti], f.Transactions[ti+1:]...)
	return true
}

// TransactionsBetween returns transactions dated in [from, to), newest first.
func (f FinanceData) TransactionsBetween(from, to time.Time) []Transaction {
	var out []Transaction
	for _, t := range f.Transactions {
		if !t.Date.Before(from) && t.Date.Before(to) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// BudgetSpent sums the expenses in the budget's category during the calendar
// month containing at.
func (f FinanceData) BudgetSpent(b Budget, at time.Time) int64 {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	end := start.AddDate(0, 1, 0)
	var spent int64
	for _, t := range f.TransactionsBetween(start, end) {
		if t.Direction != DirectionExpense || t.CategoryID == nil || *t.CategoryID != b.CategoryID {
			continue
		}
		spent += t.Amount
	}
	return spent
}
