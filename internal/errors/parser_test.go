package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"nil", nil, http.StatusInternalServerError, InternalServerError},
		{"record not found", fmt.Errorf("find: %w", gorm.ErrRecordNotFound), http.StatusNotFound, ResourceNotFound},
		{"deadline", fmt.Errorf("GetCart: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, InternalTimeout},
		{"duplicate", errors.New(`ERROR: duplicate key value violates unique constraint "idx_carts_open_client"`), http.StatusConflict, ResourceAlreadyExists},
		{"foreign key", errors.New(`violates foreign key constraint "fk_carts_lines"`), http.StatusConflict, ResourceConflict},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), http.StatusServiceUnavailable, InternalDatabaseError},
		{"other", errors.New("boom"), http.StatusInternalServerError, InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseError(tt.err, "cart")
			assert.Equal(t, tt.status, info.Status)
			assert.Equal(t, tt.code, info.Code)
			assert.NotEmpty(t, info.Message)
		})
	}
}

func TestParseError_NotFoundMessage(t *testing.T) {
	assert.Equal(t, "Cart not found", ParseError(gorm.ErrRecordNotFound, "cart").Message)
	assert.Equal(t, "The requested resource was not found", ParseError(gorm.ErrRecordNotFound, "").Message)
}
