package httputil

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, 200, map[string]bool{"received": true})
	require.NoError(t, err)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["received"])
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(rec *httptest.ResponseRecorder)
		status int
		errMsg string
	}{
		{"bad request", func(r *httptest.ResponseRecorder) { WriteBadRequest(r, "bad input") }, 400, "bad input"},
		{"unauthorized", func(r *httptest.ResponseRecorder) { WriteUnauthorized(r, "access denied") }, 401, "access denied"},
		{"forbidden", func(r *httptest.ResponseRecorder) { WriteForbidden(r, "invalid token") }, 403, "invalid token"},
		{"not found", func(r *httptest.ResponseRecorder) { WriteNotFoundError(r, "missing") }, 404, "missing"},
		{"conflict", func(r *httptest.ResponseRecorder) { WriteConflict(r, "duplicate") }, 409, "duplicate"},
		{"internal", func(r *httptest.ResponseRecorder) { WriteInternalError(r, errors.New("boom")) }, 500, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.errMsg, body["error"])
		})
	}
}
