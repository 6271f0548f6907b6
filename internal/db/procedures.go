package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Procedure names the stored routines the cart gateway calls.
type Procedure string

const (
	ProcGetCartClient          Procedure = "getCartClient"
	ProcAddItemToCart          Procedure = "AddItemToCart"
	ProcUpdateCartItemQuantity Procedure = "UpdateCartItemQuantity"
	ProcDeleteCartItem         Procedure = "DeleteCartItem"
	ProcConvertCartToOrder     Procedure = "ConvertCartToOrder"
)

var AllProcedures = []Procedure{
	ProcGetCartClient,
	ProcAddItemToCart,
	ProcUpdateCartItemQuantity,
	ProcDeleteCartItem,
	ProcConvertCartToOrder,
}

// Failure markers raised by the procedures.
const (
	CodeInvalidQuantity   = "invalid_quantity"
	CodeProductNotFound   = "product_not_found"
	CodeCartNotFound      = "cart_not_found"
	CodeCartClosed        = "cart_closed"
	CodeCartItemNotFound  = "cart_item_not_found"
	CodeCartEmpty         = "cart_empty"
	CodeInsufficientStock = "insufficient_stock"
)

// ProcedureError is a business failure reported by a procedure.
type ProcedureError struct {
	Procedure Procedure
	Code      string
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Procedure, e.Code)
}

func procErr(proc Procedure, code string) error {
	return &ProcedureError{Procedure: proc, Code: code}
}

// Executor modes
const (
	ModeNative   = "native"
	ModeEmbedded = "embedded"
)

// ProcedureExecutor invokes a named procedure with named arguments and scans
// its result set into dest, which must be a pointer to a slice.
type ProcedureExecutor interface {
	Call(ctx context.Context, proc Procedure, dest interface{}, args ...sql.NamedArg) error
}

// NewProcedureExecutor returns the executor for mode.
func NewProcedureExecutor(conn *gorm.DB, mode string) (ProcedureExecutor, error) {
	switch mode {
	case ModeNative:
		if conn.Dialector.Name() != "postgres" {
			return nil, fmt.Errorf("native procedures require postgres, got %s", conn.Dialector.Name())
		}
		return NewNativeExecutor(conn), nil
	case ModeEmbedded:
		return NewEmbeddedExecutor(conn), nil
	default:
		return nil, fmt.Errorf("unknown procedure mode %q", mode)
	}
}

type nativeExecutor struct {
	db *gorm.DB
}

// NewNativeExecutor calls the PostgreSQL functions installed by InstallProcedures.
func NewNativeExecutor(conn *gorm.DB) ProcedureExecutor {
	return &nativeExecutor{db: conn}
}

func (e *nativeExecutor) Call(ctx context.Context, proc Procedure, dest interface{}, args ...sql.NamedArg) error {
	query, values := CallStatement(proc, args...)
	return e.db.WithContext(ctx).Raw(query, values...).Scan(dest).Error
}

// CallStatement renders the SELECT that invokes proc, with one named
// placeholder per argument in order.
func CallStatement(proc Procedure, args ...sql.NamedArg) (string, []interface{}) {
	placeholders := make([]string, len(args))
	values := make([]interface{}, len(args))
	for i, arg := range args {
		placeholders[i] = "@" + arg.Name
		values[i] = arg
	}
	query := fmt.Sprintf("SELECT * FROM %s(%s)", pq.QuoteIdentifier(string(proc)), strings.Join(placeholders, ", "))
	return query, values
}
