package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDCBORIsRecordID(t *testing.T) {
	id := NewDocumentID()

	data, err := id.MarshalCBOR()
	require.NoError(t, err)

	var tag cbor.Tag
	require.NoError(t, cbor.Unmarshal(data, &tag))
	assert.Equal(t, uint64(recordIDTag), tag.Number)
	assert.Equal(t, []any{"documents", id.String()}, tag.Content)

	var back DocumentID
	require.NoError(t, back.UnmarshalCBOR(data))
	assert.Equal(t, id, back)

	var wrong TaskID
	require.Error(t, wrong.UnmarshalCBOR(data))
}

func TestIDAsMapKeyInJSON(t *testing.T) {
	id := NewDocumentID()
	in := map[DocumentID]string{id: "x"}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	out := map[DocumentID]string{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "x", out[id])
}

func TestIDScan(t *testing.T) {
	id := NewTaskID()

	var fromString TaskID
	require.NoError(t, fromString.Scan(id.String()))
	assert.Equal(t, id, fromString)

	raw := id.UUID()
	var fromBytes TaskID
	require.NoError(t, fromBytes.Scan(raw[:]))
	assert.Equal(t, id, fromBytes)

	var fromNil TaskID
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())

	var bad TaskID
	require.Error(t, bad.Scan(42))
}

func TestStreakTransitions(t *testing.T) {
	task := &DailyTask{TimeAllocationMinutes: 30, Priority: PriorityHigh}

	task.Toggle()
	assert.True(t, task.Completed)
	assert.Equal(t, 1, task.Streak)

	task.Toggle()
	assert.False(t, task.Completed)
	assert.Equal(t, 0, task.Streak)

	task.Toggle()
	assert.True(t, task.Completed)
	assert.Equal(t, 1, task.Streak)

	task.SetCompleted(true)
	assert.Equal(t, 1, task.Streak, "no transition, no change")
}

func TestStreakNeverNegative(t *testing.T) {
	task := &DailyTask{Completed: true, Streak: 0}
	task.Toggle()
	assert.Equal(t, 0, task.Streak)
	assert.False(t, task.Completed)
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority(" HIGH "))
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityMedium, ParsePriority("urgent"))
}

func TestApplyTransaction(t *testing.T) {
	wallet := Wallet{ID: NewWalletID(), Balance: 10_000, Currency: "EUR"}
	f := EmptyFinance()
	f.Wallets = append(f.Wallets, wallet)

	expense := Transaction{ID: NewTransactionID(), Amount: 2_500, Direction: DirectionExpense, WalletID: wallet.ID}
	require.NoError(t, f.ApplyTransaction(expense))
	w, _ := f.Wallet(wallet.ID)
	assert.Equal(t, int64(7_500), w.Balance)
	assert.Len(t, f.Transactions, 1)

	income := Transaction{ID: NewTransactionID(), Amount: 1_000, Direction: DirectionIncome, WalletID: wallet.ID}
	require.NoError(t, f.ApplyTransaction(income))
	w, _ = f.Wallet(wallet.ID)
	assert.Equal(t, int64(8_500), w.Balance)

	require.True(t, f.RevertTransaction(expense.ID))
	w, _ = f.Wallet(wallet.ID)
	assert.Equal(t, int64(11_000), w.Balance)
	assert.Len(t, f.Transactions, 1)
}

func TestApplyTransactionRejectsWithoutChange(t *testing.T) {
	wallet := Wallet{ID: NewWalletID(), Balance: 500}
	f := EmptyFinance()
	f.Wallets = append(f.Wallets, wallet)
	before := f.Clone()

	err := f.ApplyTransaction(Transaction{ID: NewTransactionID(), Amount: 100, Direction: DirectionExpense, WalletID: NewWalletID()})
	require.ErrorIs(t, err, ErrUnknownWallet)

	err = f.ApplyTransaction(Transaction{ID: NewTransactionID(), Amount: -1, Direction: DirectionExpense, WalletID: wallet.ID})
	require.ErrorIs(t, err, ErrInvalidAmount)

	err = f.ApplyTransaction(Transaction{ID: NewTransactionID(), Amount: 1, Direction: "gift", WalletID: wallet.ID})
	require.ErrorIs(t, err, ErrInvalidDirection)

	assert.Equal(t, before, f)
}

func TestBudgetSpent(t *testing.T) {
	cat := NewCategoryID()
	other := NewCategoryID()
	wallet := NewWalletID()
	march := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	f := EmptyFinance()
	f.Transactions = []Transaction{
		{ID: NewTransactionID(), Amount: 300, Direction: DirectionExpense, CategoryID: &cat, WalletID: wallet, Date: march},
		{ID: NewTransactionID(), Amount: 200, Direction: DirectionExpense, CategoryID: &cat, WalletID: wallet, Date: march.AddDate(0, 0, 5)},
		{ID: NewTransactionID(), Amount: 900, Direction: DirectionExpense, CategoryID: &other, WalletID: wallet, Date: march},
		{ID: NewTransactionID(), Amount: 700, Direction: DirectionExpense, CategoryID: &cat, WalletID: wallet, Date: march.AddDate(0, 1, 0)},
		{ID: NewTransactionID(), Amount: 50, Direction: DirectionIncome, CategoryID: &cat, WalletID: wallet, Date: march},
	}

	assert.Equal(t, int64(500), f.BudgetSpent(Budget{CategoryID: cat, Limit: 1000}, march))
}

func TestGoalProgress(t *testing.T) {
	assert.Equal(t, 0.5, Goal{TargetAmount: 200, CurrentAmount: 100}.Progress())
	assert.Equal(t, 1.0, Goal{TargetAmount: 200, CurrentAmount: 900}.Progress())
	assert.Equal(t, 0.0, Goal{}.Progress())
}

func TestMilestoneProgressIsDerivedFromClock(t *testing.T) {
	quit := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	habit := QuitHabit{QuitAt: quit, Milestones: []Milestone{
		NewMilestone("1 day", 24*time.Hour),
		NewMilestone("20 minutes", 20*time.Minute),
	}}

	early := habit.Progress(quit.Add(time.Hour))
	require.Len(t, early, 2)
	assert.Equal(t, "20 minutes", early[0].Label)
	assert.True(t, early[0].Reached)
	assert.False(t, early[1].Reached)
	assert.Equal(t, 23*time.Hour, early[1].Remaining)

	later := habit.Progress(quit.Add(48 * time.Hour))
	assert.True(t, later[0].Reached)
	assert.True(t, later[1].Reached)

	before := habit.Progress(quit.Add(-time.Hour))
	assert.False(t, before[0].Reached)
}

func TestQuitHabitSaved(t *testing.T) {
	quit := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	habit := QuitHabit{QuitAt: quit, DailyCost: 800}
	assert.Equal(t, int64(2400), habit.Saved(quit.Add(3*24*time.Hour+time.Hour)))
	assert.Equal(t, int64(0), habit.Saved(quit.Add(-time.Hour)))
}

func TestSortBlocksMakesOrderUnique(t *testing.T) {
	d := NewDocument("", nil, time.Now())
	assert.Equal(t, DefaultDocumentTitle, d.Title)

	d.Blocks = []Block{
		{ID: NewBlockID(), Order: 5, Content: "c"},
		{ID: NewBlockID(), Order: 1, Content: "a"},
		{ID: NewBlockID(), Order: 1, Content: "b"},
	}
	d.SortBlocks()

	assert.Equal(t, "a", d.Blocks[0].Content)
	assert.Equal(t, "b", d.Blocks[1].Content)
	assert.Equal(t, "c", d.Blocks[2].Content)
	for i, b := range d.Blocks {
		assert.Equal(t, i, b.Order)
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	parent := NewDocumentID()
	d := NewDocument("Notes", &parent, time.Now())
	d.ChildIDs = append(d.ChildIDs, NewDocumentID())
	d.Blocks = append(d.Blocks, Block{ID: NewBlockID(), Kind: BlockTable, Data: JSONMap{"rows": 2.0}})

	c := d.Clone()
	c.ChildIDs[0] = NewDocumentID()
	c.Blocks[0].Data["rows"] = 3.0
	*c.ParentID = NewDocumentID()

	assert.NotEqual(t, d.ChildIDs[0], c.ChildIDs[0])
	assert.Equal(t, 2.0, d.Blocks[0].Data["rows"])
	assert.Equal(t, parent, *d.ParentID)
}
