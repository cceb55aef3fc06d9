package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata"
	"github.com/icglr-rcm/mindata/internal"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := zap.NewNop().Sugar()

	set, err := internal.LoadSchemas("../../schemas", log)
	require.NoError(t, err)

	gen, err := internal.NewGenerator(set, log)
	require.NoError(t, err)

	store, err := internal.RebuildStore(filepath.Join(t.TempDir(), "test.db"), gen.GenerateSQL(), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	validator, err := internal.NewValidator(set, log)
	require.NoError(t, err)

	server := NewServer(mindata.DefaultConfig(),
		internal.NewMineSitesService(store, validator, log),
		internal.NewExportCertificatesService(store, validator, log),
		internal.NewLotsService(store, validator, log),
	)
	server.RegisterRoutes()
	return server
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestMineSiteEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/mine-sites", internal.ExampleMineSite())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	assert.Equal(t, "RWA-MS-0001", created["icglrId"])

	rec = doJSON(t, server, http.MethodGet, "/mine-sites/RWA-MS-0001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/mine-sites/RWA-MS-9999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.NotEmpty(t, body["timestamp"])

	rec = doJSON(t, server, http.MethodPost, "/mine-sites", internal.ExampleMineSite())
	require.Equal(t, http.StatusConflict, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "CONFLICT", body["code"])

	rec = doJSON(t, server, http.MethodPost, "/mine-sites", map[string]any{"icglrId": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.NotNil(t, body["details"])

	rec = doJSON(t, server, http.MethodGet, "/mine-sites?addressCountry=RW", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	data, _ := list["data"].([]any)
	assert.Len(t, data, 1)
	pagination, _ := list["pagination"].(map[string]any)
	require.NotNil(t, pagination)
	assert.EqualValues(t, 1, pagination["total"])
}

func TestMineSiteUpdateEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/mine-sites", internal.ExampleMineSite())
	require.Equal(t, http.StatusCreated, rec.Code)

	update := internal.ExampleMineSite()
	update["activityStatus"] = 2
	rec = doJSON(t, server, http.MethodPut, "/mine-sites/RWA-MS-0001", update)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["activityStatus"])
}

func TestExportCertificateEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/export-certificates", internal.ExampleExportCertificate())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, server, http.MethodGet, "/export-certificates/RW-EC-2025-000321?issuingCountry=RW", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "cassiterite", body["typeOfOre"])

	// The issuing country is mandatory on lookups.
	rec = doJSON(t, server, http.MethodGet, "/export-certificates/RW-EC-2025-000321", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	rec = doJSON(t, server, http.MethodGet, "/export-certificates?typeOfOre=cassiterite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	data, _ := list["data"].([]any)
	assert.Len(t, data, 1)
}

func TestLotEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/mine-sites", internal.ExampleMineSite())
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, server, http.MethodPost, "/export-certificates", internal.ExampleExportCertificate())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/lots", internal.ExampleLot())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, server, http.MethodGet, "/lots/RWA-LOT-2025-0001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	tag, _ := body["tag"].(map[string]any)
	require.NotNil(t, tag)
	assert.Equal(t, "ITSCI-RW-88412903", tag["identifier"])

	rec = doJSON(t, server, http.MethodGet, "/lots?mineSiteId=RWA-MS-0001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	data, _ := list["data"].([]any)
	assert.Len(t, data, 1)
}

func TestSystemEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])

	rec = doJSON(t, server, http.MethodPost, "/graphql", map[string]any{"query": "{}"})
	require.Equal(t, http.StatusNotImplemented, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "NOT_IMPLEMENTED", body["code"])

	rec = doJSON(t, server, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, standardVersion, body["version"])
	endpoints, _ := body["endpoints"].(map[string]any)
	require.NotNil(t, endpoints)
	assert.Equal(t, "/mine-sites", endpoints["mineSites"])
}

func TestOpenAPIEndpoints(t *testing.T) {
	server := newTestServer(t)
	require.NoError(t, server.LoadOpenAPISpec("../../api/openapi.yaml"))

	rec := doJSON(t, server, http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "3.0.3", body["openapi"])

	rec = doJSON(t, server, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/yaml", rec.Header().Get("Content-Type"))

	rec = doJSON(t, server, http.MethodGet, "/api-docs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")
}

func TestInvalidJSONBody(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/mine-sites", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}
