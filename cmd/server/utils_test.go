package main

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icglr-rcm/mindata"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name      string
		params    url.Values
		wantPage  int
		wantLimit int
	}{
		{"defaults", url.Values{}, 1, 20},
		{"explicit values", url.Values{"page": {"3"}, "limit": {"50"}}, 3, 50},
		{"limit capped", url.Values{"limit": {"500"}}, 1, 100},
		{"invalid page ignored", url.Values{"page": {"abc"}}, 1, 20},
		{"zero page ignored", url.Values{"page": {"0"}}, 1, 20},
		{"negative limit ignored", url.Values{"limit": {"-5"}}, 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := parsePagination(tt.params, 20, 100)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, mindata.NewNotFoundError("Mine site not found"))

	assert.Equal(t, 404, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "Mine site not found", body.Message)
	assert.NotEmpty(t, body.Timestamp)
}

func TestWriteErrorWrapsUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, assert.AnError)

	assert.Equal(t, 500, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
}

func TestWriteErrorValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, mindata.NewValidationError("Validation failed").WithDetail("errors", []string{"bad"}))

	assert.Equal(t, 400, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Details, "errors")
}
