package service

import (
	"errors"
	"fmt"
)

// Kind classifies why a cart mutation was rejected.
type Kind int

const (
	KindLookupFailed Kind = iota + 1
	KindOutOfStock
	KindEntryNotFound
	KindInvalidAmount
	KindDuplicateEntry
	KindPersistenceFailed
)

var (
	ErrLookupFailed      = errors.New("stock or catalog lookup failed")
	ErrOutOfStock        = errors.New("requested quantity out of stock")
	ErrEntryNotFound     = errors.New("product not in cart")
	ErrInvalidAmount     = errors.New("amount must be at least 1")
	ErrDuplicateEntry    = errors.New("product already in cart")
	ErrPersistenceFailed = errors.New("cart could not be saved")
)

var kindSentinels = map[Kind]error{
	KindLookupFailed:      ErrLookupFailed,
	KindOutOfStock:        ErrOutOfStock,
	KindEntryNotFound:     ErrEntryNotFound,
	KindInvalidAmount:     ErrInvalidAmount,
	KindDuplicateEntry:    ErrDuplicateEntry,
	KindPersistenceFailed: ErrPersistenceFailed,
}

func (k Kind) String() string {
	switch k {
	case KindLookupFailed:
		return "lookup_failed"
	case KindOutOfStock:
		return "out_of_stock"
	case KindEntryNotFound:
		return "entry_not_found"
	case KindInvalidAmount:
		return "invalid_amount"
	case KindDuplicateEntry:
		return "duplicate_entry"
	case KindPersistenceFailed:
		return "persistence_failed"
	default:
		return "unknown"
	}
}

// MutationError is returned by every rejected CartService call.
// errors.Is matches both the kind sentinel (ErrOutOfStock, ...) and the cause.
type MutationError struct {
	Op        string
	ProductID int64
	Kind      Kind
	Err       error
}

func (e *MutationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s product %d: %v", e.Op, e.ProductID, kindSentinels[e.Kind])
	}
	return fmt.Sprintf("%s product %d: %v: %v", e.Op, e.ProductID, kindSentinels[e.Kind], e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

func (e *MutationError) Is(target error) bool {
	return target != nil && kindSentinels[e.Kind] == target
}

// KindOf extracts the rejection kind from err, or 0 when err is not a MutationError.
func KindOf(err error) Kind {
	var merr *MutationError
	if errors.As(err, &merr) {
		return merr.Kind
	}
	return 0
}

func fail(kind Kind, err error) *MutationError {
	return &MutationError{Kind: kind, Err: err}
}
