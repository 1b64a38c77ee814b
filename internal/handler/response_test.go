package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/crewcrew/internal/apperror"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantMsg    string
	}{
		{"validation", apperror.ValidationFailed("name", "Please enter a name."), http.StatusBadRequest, "validation_error", "Please enter a name."},
		{"unauthorized", apperror.Unauthorized("Please log in."), http.StatusUnauthorized, "unauthorized", "Please log in."},
		{"insufficient funds", apperror.InsufficientFunds("coin", 10, 50), http.StatusPaymentRequired, "insufficient_funds", "not enough coin: have 10, need 50"},
		{"forbidden", apperror.Forbidden("no"), http.StatusForbidden, "forbidden", "no"},
		{"not found", apperror.NotFound("crew", "abc"), http.StatusNotFound, "not_found", "crew not found with id abc"},
		{"conflict", apperror.Conflict("You already own this item."), http.StatusConflict, "conflict", "You already own this item."},
		{"upstream hides cause", apperror.Upstream(errors.New("dial tcp: refused")), http.StatusBadGateway, "upstream_error", apperror.GenericNetworkMessage},
		{"wrapped", fmt.Errorf("hiring crew: %w", apperror.ValidationFailed("name", "too long")), http.StatusBadRequest, "validation_error", "too long"},
		{"unknown error is generic", errors.New("sql: connection reset"), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, slog.New(slog.NewTextHandler(io.Discard, nil)), tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body.Error)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestWriteError_LogsThroughGivenLogger(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog string
	}{
		{"upstream cause at warn", apperror.Upstream(errors.New("dial tcp: refused")), "level=WARN msg=\"upstream failure\" cause=\"dial tcp: refused\""},
		{"unknown error at error", errors.New("sql: connection reset"), "level=ERROR msg=\"unhandled error\" error=\"sql: connection reset\""},
		{"validation is not logged", apperror.ValidationFailed("name", "x"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}))

			writeError(httptest.NewRecorder(), logger, tt.err)
			if tt.wantLog == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.wantLog)
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Please enter a name.", userMessage(apperror.ValidationFailed("name", "Please enter a name.")))
	assert.Equal(t, "An internal error occurred", userMessage(errors.New("boom")))
}
