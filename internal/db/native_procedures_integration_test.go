//go:build integration

package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Requires POSTGRES_TEST_DSN pointing at a disposable database; every table
// the cart uses is dropped and recreated.
func setupNativeTest(t *testing.T) (*gorm.DB, ProcedureExecutor, *model.Product) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() { CleanupTestDB(conn) })

	require.NoError(t, conn.Migrator().DropTable(
		&model.OrderItem{}, &model.Order{}, &model.CartLine{}, &model.Cart{}, &model.Product{}, &model.ErrorLog{},
	))
	require.NoError(t, MigrateDB(conn))
	require.NoError(t, InstallProcedures(conn))

	exec, err := NewProcedureExecutor(conn, ModeNative)
	require.NoError(t, err)

	product, err := SeedTestProduct(conn, "mate", "12.50", 5)
	require.NoError(t, err)
	return conn, exec, product
}

// requireMarker accepts both a ProcedureError and a raised PostgreSQL
// exception carrying the marker.
func requireMarker(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var procErr *ProcedureError
	if errors.As(err, &procErr) {
		assert.Equal(t, code, procErr.Code)
		return
	}
	assert.True(t, strings.Contains(err.Error(), code), "expected %s, got %v", code, err)
}

func TestNative_CartLifecycle(t *testing.T) {
	conn, exec, product := setupNativeTest(t)
	ctx := context.Background()

	first := addItem(t, exec, 42, product.ID, 1)
	item := addItem(t, exec, 42, product.ID, 2)
	assert.Equal(t, first.CartItemID, item.CartItemID)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, "mate", item.Name)
	assert.Equal(t, "37.5", item.SubTotal.String())

	var rows []model.CartItem
	require.NoError(t, exec.Call(ctx, ProcGetCartClient, &rows, sql.Named("ClientId", uint(42))))
	require.Len(t, rows, 1)
	assert.Equal(t, item.CartID, rows[0].CartID)

	rows = nil
	require.NoError(t, exec.Call(ctx, ProcUpdateCartItemQuantity, &rows,
		sql.Named("CartId", item.CartID),
		sql.Named("ProductId", product.ID),
		sql.Named("Quantity", 2),
	))
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Quantity)
	assert.Equal(t, "25", rows[0].SubTotal.String())

	var orders []model.Order
	require.NoError(t, exec.Call(ctx, ProcConvertCartToOrder, &orders, sql.Named("CartId", item.CartID)))
	require.Len(t, orders, 1)
	assert.Equal(t, uint(42), orders[0].ClientID)
	assert.Equal(t, 2, orders[0].ItemCount)
	assert.Equal(t, "25", orders[0].Total.String())

	var stored model.Product
	require.NoError(t, conn.First(&stored, product.ID).Error)
	assert.Equal(t, 3, stored.Stock)

	err := exec.Call(ctx, ProcConvertCartToOrder, &orders, sql.Named("CartId", item.CartID))
	requireMarker(t, err, CodeCartClosed)

	rows = nil
	require.NoError(t, exec.Call(ctx, ProcGetCartClient, &rows, sql.Named("ClientId", uint(42))))
	assert.Empty(t, rows)

	next := addItem(t, exec, 42, product.ID, 1)
	assert.NotEqual(t, item.CartID, next.CartID)
}

func TestNative_DeleteAndEmptyConvert(t *testing.T) {
	_, exec, product := setupNativeTest(t)
	item := addItem(t, exec, 7, product.ID, 1)
	ctx := context.Background()

	var removed []model.RemovedCartItem
	require.NoError(t, exec.Call(ctx, ProcDeleteCartItem, &removed,
		sql.Named("CartId", item.CartID),
		sql.Named("ProductId", product.ID),
	))
	require.Len(t, removed, 1)
	assert.Equal(t, uint(7), removed[0].ClientID)
	assert.Equal(t, "Product removed from cart", removed[0].Message)

	err := exec.Call(ctx, ProcDeleteCartItem, &removed,
		sql.Named("CartId", item.CartID),
		sql.Named("ProductId", product.ID),
	)
	requireMarker(t, err, CodeCartItemNotFound)

	var orders []model.Order
	err = exec.Call(ctx, ProcConvertCartToOrder, &orders, sql.Named("CartId", item.CartID))
	requireMarker(t, err, CodeCartEmpty)
}

func TestNative_Errors(t *testing.T) {
	_, exec, product := setupNativeTest(t)
	item := addItem(t, exec, 42, product.ID, 1)
	ctx := context.Background()

	tests := []struct {
		name string
		proc Procedure
		args []sql.NamedArg
		code string
	}{
		{
			name: "add zero quantity",
			proc: ProcAddItemToCart,
			args: []sql.NamedArg{sql.Named("ClientId", uint(1)), sql.Named("ProductId", product.ID), sql.Named("Quantity", 0)},
			code: CodeInvalidQuantity,
		},
		{
			name: "add unknown product",
			proc: ProcAddItemToCart,
			args: []sql.NamedArg{sql.Named("ClientId", uint(1)), sql.Named("ProductId", uint(9999)), sql.Named("Quantity", 1)},
			code: CodeProductNotFound,
		},
		{
			name: "add over stock",
			proc: ProcAddItemToCart,
			args: []sql.NamedArg{sql.Named("ClientId", uint(1)), sql.Named("ProductId", product.ID), sql.Named("Quantity", 6)},
			code: CodeInsufficientStock,
		},
		{
			name: "update unknown cart",
			proc: ProcUpdateCartItemQuantity,
			args: []sql.NamedArg{sql.Named("CartId", uint(9999)), sql.Named("ProductId", product.ID), sql.Named("Quantity", 1)},
			code: CodeCartNotFound,
		},
		{
			name: "update unknown line",
			proc: ProcUpdateCartItemQuantity,
			args: []sql.NamedArg{sql.Named("CartId", item.CartID), sql.Named("ProductId", uint(9999)), sql.Named("Quantity", 1)},
			code: CodeCartItemNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []model.CartItem
			err := exec.Call(ctx, tt.proc, &rows, tt.args...)
			requireMarker(t, err, tt.code)
		})
	}
}
