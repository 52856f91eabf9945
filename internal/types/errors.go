package types

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error for callers deciding how to react
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindUnauthorized
	KindValidation
	KindConflict // caller must refresh state and resubmit
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a domain error. Two errors match under errors.Is when their codes
// are equal, so sentinels can be specialised with a user-facing message.
// An error with a parent also matches the parent's code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error

	parent *Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	for cur := e; cur != nil; cur = cur.parent {
		if cur.Code == t.Code {
			return true
		}
	}
	return false
}

// Withf returns a copy of e carrying a specific message, typically naming
// the offending product
func (e *Error) Withf(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e that wraps cause
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func narrowError(parent *Error, code, message string) *Error {
	return &Error{Kind: parent.Kind, Code: code, Message: message, parent: parent}
}

var (
	ErrProductNotFound = newError(KindNotFound, "PRODUCT_NOT_FOUND", "product not found")
	ErrBidNotFound     = newError(KindNotFound, "BID_NOT_FOUND", "bid not found")
	ErrOrderNotFound   = newError(KindNotFound, "ORDER_NOT_FOUND", "order not found")

	ErrForbidden = newError(KindUnauthorized, "FORBIDDEN", "administrator role required")

	ErrInvalidAmount       = newError(KindValidation, "INVALID_AMOUNT", "bid amount must be a positive number")
	ErrInvalidStatus       = newError(KindValidation, "INVALID_STATUS", "invalid status")
	ErrInvalidQuantity     = newError(KindValidation, "INVALID_QUANTITY", "quantity must be between 1 and 10000")
	ErrEmptyCart           = newError(KindValidation, "EMPTY_CART", "cart is empty")
	ErrMissingAddress      = newError(KindValidation, "MISSING_ADDRESS", "shipping address is required")
	ErrIdempotencyKeyReuse = newError(KindValidation, "IDEMPOTENCY_KEY_REUSED", "idempotency key already used by another request")
	ErrInvalidIdemKey      = newError(KindValidation, "INVALID_IDEMPOTENCY_KEY", "idempotency key must be at most 128 characters")

	ErrNotAuction         = newError(KindConflict, "NOT_AUCTION", "product is not up for auction")
	ErrAuctionEnded       = newError(KindConflict, "AUCTION_ENDED", "auction has ended")
	ErrBidTooLow          = newError(KindConflict, "BID_TOO_LOW", "bid must be higher than the current price")
	ErrNotPurchasable     = newError(KindConflict, "NOT_PURCHASABLE", "product is not for sale")
	ErrInsufficientStock  = newError(KindConflict, "INSUFFICIENT_STOCK", "insufficient stock")
	ErrAlreadySold        = narrowError(ErrInsufficientStock, "ALREADY_SOLD", "product is already sold")
	ErrPurchaseLimit      = newError(KindConflict, "PURCHASE_LIMIT_EXCEEDED", "purchase limit per customer exceeded")
	ErrPriceMismatch      = newError(KindConflict, "PRICE_MISMATCH", "price mismatch, please refresh cart")
	ErrAuctionNotEnded    = newError(KindConflict, "AUCTION_NOT_ENDED", "auction has not ended yet")
	ErrNotAuctionWinner   = newError(KindConflict, "NOT_AUCTION_WINNER", "you are not the winner of this auction")
	ErrOrderCancelled     = newError(KindConflict, "ORDER_CANCELLED", "order is cancelled")
	ErrOrderAlreadyClosed = newError(KindConflict, "ORDER_ALREADY_CANCELLED", "order is already cancelled")

	ErrStorage = newError(KindStorage, "STORAGE_ERROR", "storage failure")
)

// KindOf returns the kind of the first domain error in err's chain, or
// KindStorage for anything unrecognised
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStorage
}
