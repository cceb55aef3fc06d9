package main

import (
	"net/http"
	"time"

	"github.com/icglr-rcm/mindata"
	"github.com/icglr-rcm/mindata/internal"
)

// handleListMineSites handles GET /mine-sites.
func (s *Server) handleListMineSites(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := internal.MineSiteFilters{
		AddressCountry: query.Get("addressCountry"),
		Mineral:        query.Get("mineral"),
	}
	if v := query.Get("certificationStatus"); v != "" {
		filters.CertificationStatus = &v
	}
	if v := query.Get("activityStatus"); v != "" {
		filters.ActivityStatus = &v
	}

	page, limit := parsePagination(query, s.cfg.Query.DefaultPageSize, s.cfg.Query.MaxPageSize)

	result, err := s.mineSites.List(r.Context(), filters, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetMineSite handles GET /mine-sites/{icglrId}.
func (s *Server) handleGetMineSite(w http.ResponseWriter, r *http.Request) {
	mineSite, err := s.mineSites.GetByID(r.Context(), r.PathValue("icglrId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mineSite)
}

// handleCreateMineSite handles POST /mine-sites.
func (s *Server) handleCreateMineSite(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := readJSONBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	mineSite, err := s.mineSites.Create(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mineSite)
}

// handleUpdateMineSite handles PUT /mine-sites/{icglrId}.
func (s *Server) handleUpdateMineSite(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := readJSONBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	mineSite, err := s.mineSites.Update(r.Context(), r.PathValue("icglrId"), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mineSite)
}

// handleListExportCertificates handles GET /export-certificates.
func (s *Server) handleListExportCertificates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := internal.ExportCertificateFilters{
		IssuingCountry:     query.Get("issuingCountry"),
		Identifier:         query.Get("identifier"),
		LotNumber:          query.Get("lotNumber"),
		TypeOfOre:          query.Get("typeOfOre"),
		DateOfIssuanceFrom: query.Get("dateOfIssuanceFrom"),
		DateOfIssuanceTo:   query.Get("dateOfIssuanceTo"),
	}

	page, limit := parsePagination(query, s.cfg.Query.DefaultPageSize, s.cfg.Query.MaxPageSize)

	result, err := s.exportCertificates.List(r.Context(), filters, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetExportCertificate handles GET /export-certificates/{identifier}.
// Certificates are only unique per issuing country, so the country rides
// along as a query parameter.
func (s *Server) handleGetExportCertificate(w http.ResponseWriter, r *http.Request) {
	issuingCountry := r.URL.Query().Get("issuingCountry")
	if issuingCountry == "" {
		writeError(w, mindata.NewValidationError("issuingCountry query parameter is required"))
		return
	}

	certificate, err := s.exportCertificates.GetByID(r.Context(), r.PathValue("identifier"), issuingCountry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certificate)
}

// handleCreateExportCertificate handles POST /export-certificates.
func (s *Server) handleCreateExportCertificate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := readJSONBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	certificate, err := s.exportCertificates.Create(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, certificate)
}

// handleListLots handles GET /lots.
func (s *Server) handleListLots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := internal.LotFilters{
		MineSiteID:           query.Get("mineSiteId"),
		Mineral:              query.Get("mineral"),
		LotNumber:            query.Get("lotNumber"),
		DateRegistrationFrom: query.Get("dateRegistrationFrom"),
		DateRegistrationTo:   query.Get("dateRegistrationTo"),
		CreatorRole:          query.Get("creatorRole"),
		OriginatingOperation: query.Get("originatingOperation"),
	}

	page, limit := parsePagination(query, s.cfg.Query.DefaultPageSize, s.cfg.Query.MaxPageSize)

	result, err := s.lots.List(r.Context(), filters, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetLot handles GET /lots/{lotNumber}.
func (s *Server) handleGetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := s.lots.GetByID(r.Context(), r.PathValue("lotNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// handleCreateLot handles POST /lots.
func (s *Server) handleCreateLot(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := readJSONBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	lot, err := s.lots.Create(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

// handleGraphQL handles POST /graphql.
func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, errorResponse{
		Code:      "NOT_IMPLEMENTED",
		Message:   "GraphQL endpoint is not yet implemented",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   serverVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRoot handles GET /. It returns a service descriptor pointing at
// the documentation and resource endpoints.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    apiName,
		"version": standardVersion,
		"documentation": map[string]any{
			"swagger":     "/api-docs",
			"openapiJson": "/openapi.json",
			"openapiYaml": "/openapi.yaml",
		},
		"endpoints": map[string]any{
			"mineSites":          "/mine-sites",
			"exportCertificates": "/export-certificates",
			"lots":               "/lots",
			"graphql":            "/graphql",
			"health":             "/health",
		},
	})
}

// handleOpenAPIJSON handles GET /openapi.json.
func (s *Server) handleOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(s.openapiJSON)
}

// handleOpenAPIYAML handles GET /openapi.yaml.
func (s *Server) handleOpenAPIYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(s.openapiYAML)
}

// handleAPIDocs handles GET /api-docs. It serves a Swagger UI page backed
// by /openapi.json.
func (s *Server) handleAPIDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(swaggerUIPage))
}

const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Rwanda Mineral Data Interoperability Standard API Documentation</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  <style>.swagger-ui .topbar { display: none }</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({
        url: "/openapi.json",
        dom_id: "#swagger-ui"
      });
    };
  </script>
</body>
</html>
`
