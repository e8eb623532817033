package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// recordIDTag is the CBOR tag SurrealDB uses for record ids.
const recordIDTag = 8

// idKind names the table a typed ID belongs to.
type idKind interface {
	table() string
}

type (
	userKind        struct{}
	documentKind    struct{}
	blockKind       struct{}
	taskKind        struct{}
	financeKind     struct{}
	walletKind      struct{}
	transactionKind struct{}
	categoryKind    struct{}
	goalKind        struct{}
	budgetKind      struct{}
	protocolKind    struct{}
	habitKind       struct{}
)

func (userKind) table() string        { return "account" }
func (documentKind) table() string    { return "documents" }
func (blockKind) table() string       { return "blocks" }
func (taskKind) table() string        { return "daily_tasks" }
func (financeKind) table() string     { return "finance" }
func (walletKind) table() string      { return "wallets" }
func (transactionKind) table() string { return "transactions" }
func (categoryKind) table() string    { return "categories" }
func (goalKind) table() string        { return "goals" }
func (budgetKind) table() string      { return "budgets" }
func (protocolKind) table() string    { return "health_protocols" }
func (habitKind) table() string       { return "quit_habits" }

// ID is a UUID tagged with the table it identifies. Different kinds of IDs
// are distinct types, so a TaskID cannot be passed where a DocumentID is
// expected.
//
// IDs encode as plain strings in JSON and SQL, and as SurrealDB RecordIDs
// (CBOR tag 8, [table, id]) on the SurrealDB wire.
type ID[K idKind] struct {
	uuid uuid.UUID
}

type (
	UserID        = ID[userKind]
	DocumentID    = ID[documentKind]
	BlockID       = ID[blockKind]
	TaskID        = ID[taskKind]
	FinanceID     = ID[financeKind]
	WalletID      = ID[walletKind]
	TransactionID = ID[transactionKind]
	CategoryID    = ID[categoryKind]
	GoalID        = ID[goalKind]
	BudgetID      = ID[budgetKind]
	ProtocolID    = ID[protocolKind]
	HabitID       = ID[habitKind]
)

func NewUserID() UserID               { return UserID{uuid: uuid.New()} }
func NewDocumentID() DocumentID       { return DocumentID{uuid: uuid.New()} }
func NewBlockID() BlockID             { return BlockID{uuid: uuid.New()} }
func NewTaskID() TaskID               { return TaskID{uuid: uuid.New()} }
func NewFinanceID() FinanceID         { return FinanceID{uuid: uuid.New()} }
func NewWalletID() WalletID           { return WalletID{uuid: uuid.New()} }
func NewTransactionID() TransactionID { return TransactionID{uuid: uuid.New()} }
func NewCategoryID() CategoryID       { return CategoryID{uuid: uuid.New()} }
func NewGoalID() GoalID               { return GoalID{uuid: uuid.New()} }
func NewBudgetID() BudgetID           { return BudgetID{uuid: uuid.New()} }
func NewProtocolID() ProtocolID       { return ProtocolID{uuid: uuid.New()} }
func NewHabitID() HabitID             { return HabitID{uuid: uuid.New()} }

func ParseUserID(s string) (UserID, error)         { return parseID[userKind](s) }
func ParseDocumentID(s string) (DocumentID, error) { return parseID[documentKind](s) }
func ParseBlockID(s string) (BlockID, error)       { return parseID[blockKind](s) }
func ParseTaskID(s string) (TaskID, error)         { return parseID[taskKind](s) }
func ParseTransactionID(s string) (TransactionID, error) {
	return parseID[transactionKind](s)
}

// FinanceIDFor derives the id of an owner's finance aggregate, so every
// backend addresses the single blob by the same key.
func FinanceIDFor(owner UserID) FinanceID {
	return FinanceID{uuid: uuid.NewSHA1(owner.uuid, []byte("finance"))}
}

// UserIDFromUUID wraps an identifier issued by an identity backend.
func UserIDFromUUID(id uuid.UUID) UserID {
	return UserID{uuid: id}
}

func parseID[K idKind](s string) (ID[K], error) {
	id, err := uuid.Parse(s)
	if err != nil {
		var k K
		return ID[K]{}, fmt.Errorf("invalid %s id: %w", k.table(), err)
	}
	return ID[K]{uuid: id}, nil
}

func (i ID[K]) UUID() uuid.UUID { return i.uuid }
func (i ID[K]) String() string  { return i.uuid.String() }
func (i ID[K]) IsZero() bool    { return i.uuid == uuid.Nil }

// Table returns the table this kind of ID refers to.
func (i ID[K]) Table() string {
	var k K
	return k.table()
}

func (i ID[K]) RecordID() surrealmodels.RecordID {
	return surrealmodels.NewRecordID(i.Table(), i.uuid.String())
}

func (i ID[K]) MarshalText() ([]byte, error) {
	return []byte(i.uuid.String()), nil
}

func (i *ID[K]) UnmarshalText(data []byte) error {
	id, err := uuid.ParseBytes(data)
	if err != nil {
		return err
	}
	i.uuid = id
	return nil
}

func (i ID[K]) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.uuid.String())
}

func (i *ID[K]) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		i.uuid = uuid.Nil
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	i.uuid = id
	return nil
}

func (i ID[K]) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  recordIDTag,
		Content: []any{i.Table(), i.uuid.String()},
	})
}

func (i *ID[K]) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, i.Table(), &i.uuid)
}

func (i ID[K]) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}
	return i.uuid.String(), nil
}

func (i *ID[K]) Scan(value any) error {
	return scanUUID(value, &i.uuid)
}

// GormDataType keeps the column type portable between postgres and sqlite.
func (ID[K]) GormDataType() string {
	return "uuid"
}

func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		var (
			id  uuid.UUID
			err error
		)
		if len(v) == 16 {
			id, err = uuid.FromBytes(v)
		} else {
			id, err = uuid.ParseBytes(v)
		}
		if err != nil {
			return err
		}
		*target = id
	case [16]byte:
		*target = uuid.UUID(v)
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// unmarshalCBORID decodes a SurrealDB RecordID (tag 8, [table, id]) into a UUID.
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	if majorType := data[0] >> 5; majorType != 6 {
		return fmt.Errorf("expected CBOR tag for RecordID, got major type %d", majorType)
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}
	if tag.Number != recordIDTag {
		return fmt.Errorf("expected RecordID tag (%d), got %d", recordIDTag, tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}
	table, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}
	if table != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, table)
	}

	switch v := arr[1].(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid UUID in RecordID: %w", err)
		}
		*target = id
	case cbor.Tag:
		// SurrealDB encodes uuid-typed record keys as tag 37 over 16 raw bytes.
		raw, ok := v.Content.([]byte)
		if !ok {
			return fmt.Errorf("invalid UUID tag content in RecordID")
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return fmt.Errorf("invalid UUID in RecordID: %w", err)
		}
		*target = id
	default:
		return fmt.Errorf("invalid RecordID format: unsupported id type %T", arr[1])
	}
	return nil
}
