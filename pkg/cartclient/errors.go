package cartclient

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by NewClient for a missing base URL
	ErrInvalidConfig = errors.New("cartclient: invalid config")

	// ErrNetwork wraps every transport failure
	ErrNetwork = errors.New("cartclient: network error")

	// ErrInvalidResponse is returned when a 2xx body cannot be decoded
	ErrInvalidResponse = errors.New("cartclient: invalid response")

	ErrInvalidInput      = errors.New("cartclient: invalid input")
	ErrInvalidQuantity   = errors.New("cartclient: invalid quantity")
	ErrCartNotFound      = errors.New("cartclient: cart not found")
	ErrCartItemNotFound  = errors.New("cartclient: product not in cart")
	ErrProductNotFound   = errors.New("cartclient: product not found")
	ErrEmptyCart         = errors.New("cartclient: cart is empty")
	ErrCartClosed        = errors.New("cartclient: cart already checked out")
	ErrInsufficientStock = errors.New("cartclient: insufficient stock")
	ErrServer            = errors.New("cartclient: server error")
)

var codeSentinels = map[string]error{
	"VALIDATION_INVALID_INPUT":   ErrInvalidInput,
	"VALIDATION_INVALID_ID":      ErrInvalidInput,
	"VALIDATION_INVALID_RANGE":   ErrInvalidInput,
	"CART_INVALID_QUANTITY":      ErrInvalidQuantity,
	"CART_NOT_FOUND":             ErrCartNotFound,
	"CART_ITEM_NOT_FOUND":        ErrCartItemNotFound,
	"PRODUCT_NOT_FOUND":          ErrProductNotFound,
	"CART_EMPTY":                 ErrEmptyCart,
	"CART_CLOSED":                ErrCartClosed,
	"PRODUCT_INSUFFICIENT_STOCK": ErrInsufficientStock,
}

// APIError is returned for every non-2xx response. It matches the package
// sentinels with errors.Is.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("cartclient: unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cartclient: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	if sentinel, ok := codeSentinels[e.Code]; ok && sentinel == target {
		return true
	}
	return target == ErrServer && e.StatusCode >= 500
}
