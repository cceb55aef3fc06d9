package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata"
)

// MineSiteFilters narrows a mine site listing. Status values stay as
// strings; SQLite column affinity converts them for comparison.
type MineSiteFilters struct {
	AddressCountry      string
	CertificationStatus *string
	ActivityStatus      *string
	Mineral             string
}

// MineSitesService handles mine site persistence and reconstruction.
type MineSitesService struct {
	store     *Store
	validator *Validator
	log       *zap.SugaredLogger
}

func NewMineSitesService(store *Store, validator *Validator, log *zap.SugaredLogger) *MineSitesService {
	if log == nil {
		log = zap.S()
	}
	return &MineSitesService{store: store, validator: validator, log: log}
}

// List returns mine sites matching the filters, paginated. The mineral
// filter applies after reconstruction since minerals live in a junction
// table.
func (s *MineSitesService) List(ctx context.Context, filters MineSiteFilters, page, limit int) (*mindata.ListResult, error) {
	query := "SELECT * FROM mineSites WHERE 1=1"
	var values []any

	if filters.AddressCountry != "" {
		query += " AND addressCountry = ?"
		values = append(values, filters.AddressCountry)
	}
	if filters.CertificationStatus != nil {
		query += " AND certificationStatus = ?"
		values = append(values, *filters.CertificationStatus)
	}
	if filters.ActivityStatus != nil {
		query += " AND activityStatus = ?"
		values = append(values, *filters.ActivityStatus)
	}

	var total int
	countQuery := "SELECT COUNT(*) " + query[len("SELECT * "):]
	if err := s.store.DB().QueryRowContext(ctx, countQuery, values...).Scan(&total); err != nil {
		return nil, mindata.NewInternalError("failed to count mine sites", err)
	}

	offset := (page - 1) * limit
	rows, err := queryMaps(ctx, s.store.DB(), query+" LIMIT ? OFFSET ?", append(values, limit, offset)...)
	if err != nil {
		return nil, mindata.NewInternalError("failed to list mine sites", err)
	}

	data := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		site, err := s.reconstruct(ctx, s.store.DB(), row)
		if err != nil {
			return nil, mindata.NewInternalError("failed to reconstruct mine site", err)
		}
		if filters.Mineral != "" && !containsAny(site["mineral"], filters.Mineral) {
			continue
		}
		data = append(data, site)
	}

	return &mindata.ListResult{
		Data:       data,
		Pagination: mindata.NewPagination(page, limit, total),
	}, nil
}

// GetByID returns the mine site with the given ICGLR ID.
func (s *MineSitesService) GetByID(ctx context.Context, icglrID string) (map[string]any, error) {
	row, err := queryMap(ctx, s.store.DB(), "SELECT * FROM mineSites WHERE icglrId = ?", icglrID)
	if err != nil {
		return nil, mindata.NewInternalError("failed to query mine site", err)
	}
	if row == nil {
		return nil, mindata.NewNotFoundError("Mine site not found")
	}
	site, err := s.reconstruct(ctx, s.store.DB(), row)
	if err != nil {
		return nil, mindata.NewInternalError("failed to reconstruct mine site", err)
	}
	return site, nil
}

// Create validates and persists a full mine site document in one
// transaction, then returns it rebuilt from the database.
func (s *MineSitesService) Create(ctx context.Context, data map[string]any) (map[string]any, error) {
	if result := s.validator.Validate(data, "mine-site"); !result.Valid {
		return nil, mindata.NewValidationError("Validation failed").WithDetail("errors", result.Errors)
	}

	icglrID := strField(data, "icglrId")
	exists, err := rowExists(ctx, s.store.DB(), "mineSites", "icglrId", icglrID)
	if err != nil {
		return nil, mindata.NewInternalError("failed to check mine site existence", err)
	}
	if exists {
		return nil, mindata.NewConflictError("Mine site already exists")
	}

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		owner := mapField(data, "owner")
		if _, err := insertOrGetBusinessEntity(ctx, tx, owner); err != nil {
			return err
		}
		for _, op := range sliceField(data, "operator") {
			opMap, _ := op.(map[string]any)
			if _, err := insertOrGetBusinessEntity(ctx, tx, opMap); err != nil {
				return err
			}
		}

		if location := mapField(data, "mineSiteLocation"); location != nil {
			if err := insertMineSiteLocation(ctx, tx, location); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mineSites
			(icglrId, addressCountry, nationalId, certificationStatus, activityStatus, ownerId, allowedTags)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			icglrID,
			data["addressCountry"],
			data["nationalId"],
			data["certificationStatus"],
			data["activityStatus"],
			owner["identifier"],
			data["allowedTags"]); err != nil {
			return fmt.Errorf("failed to insert mine site: %w", err)
		}

		for _, geo := range sliceField(data, "minesLocations") {
			geoMap, _ := geo.(map[string]any)
			geoID, err := insertOrGetGeolocalization(ctx, tx, geoMap)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO mineSiteMinesLocations (mineSiteId, geolocalizationId) VALUES (?, ?)",
				icglrID, geoID); err != nil {
				return err
			}
		}

		for _, mineral := range sliceField(data, "mineral") {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO mineSiteMinerals (mineSiteId, mineralCode) VALUES (?, ?)",
				icglrID, mineral); err != nil {
				return err
			}
		}

		for _, lic := range sliceField(data, "license") {
			licMap, _ := lic.(map[string]any)
			licOwner := mapField(licMap, "owner")
			if _, err := insertOrGetBusinessEntity(ctx, tx, licOwner); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO licenses
				(licenseType, licenseId, ownerId, appliedDate, grantedDate, expiringDate, licenseStatus)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				licMap["licenseType"],
				licMap["licenseId"],
				licOwner["identifier"],
				licMap["appliedDate"],
				licMap["grantedDate"],
				licMap["expiringDate"],
				licMap["licenseStatus"]); err != nil {
				return fmt.Errorf("failed to insert license: %w", err)
			}
		}

		for _, insp := range sliceField(data, "inspection") {
			inspMap, _ := insp.(map[string]any)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO inspections
				(inspectionId, inspectionDate, inspectionResponsible, inspectionResult,
				 inspectionReport, inspectionPurpose, inspectionResults,
				 inspectorName, inspectorPosition, governmentAgency, governmentId)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				inspMap["inspectionId"],
				inspMap["inspectionDate"],
				inspMap["inspectionResponsible"],
				inspMap["inspectionResult"],
				inspMap["inspectionReport"],
				inspMap["inspectionPurpose"],
				inspMap["inspectionResults"],
				inspMap["inspectorName"],
				inspMap["inspectorPosition"],
				inspMap["governmentAgency"],
				inspMap["governmentId"]); err != nil {
				return fmt.Errorf("failed to insert inspection: %w", err)
			}
		}

		for _, status := range sliceField(data, "statusChange") {
			statusMap, _ := status.(map[string]any)
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO statusHistory (mineSiteId, dateOfChange, newStatus) VALUES (?, ?, ?)",
				icglrID, statusMap["dateOfChange"], statusMap["newStatus"]); err != nil {
				return fmt.Errorf("failed to insert status change: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, mindata.AsError(err)
	}

	s.log.Infow("mine site created", "icglrId", icglrID)
	return s.GetByID(ctx, icglrID)
}

// Update replaces the scalar columns of an existing mine site. Related
// entities (location, minerals, licenses) are not touched.
func (s *MineSitesService) Update(ctx context.Context, icglrID string, data map[string]any) (map[string]any, error) {
	if _, err := s.GetByID(ctx, icglrID); err != nil {
		return nil, err
	}

	if result := s.validator.Validate(data, "mine-site"); !result.Valid {
		return nil, mindata.NewValidationError("Validation failed").WithDetail("errors", result.Errors)
	}

	owner := mapField(data, "owner")
	if _, err := s.store.DB().ExecContext(ctx, `
		UPDATE mineSites
		SET addressCountry = ?, nationalId = ?, certificationStatus = ?, activityStatus = ?, ownerId = ?, allowedTags = ?
		WHERE icglrId = ?`,
		data["addressCountry"],
		data["nationalId"],
		data["certificationStatus"],
		data["activityStatus"],
		owner["identifier"],
		data["allowedTags"],
		icglrID); err != nil {
		return nil, mindata.NewInternalError("failed to update mine site", err)
	}

	return s.GetByID(ctx, icglrID)
}

func insertMineSiteLocation(ctx context.Context, q DBTX, location map[string]any) error {
	geoID, err := insertOrGetGeolocalization(ctx, q, mapField(location, "geolocalization"))
	if err != nil {
		return err
	}
	addressID, err := insertOrGetAddress(ctx, q, mapField(location, "localGeographicDesignation"))
	if err != nil {
		return err
	}

	var polygon any
	if location["polygon"] != nil {
		raw, err := json.Marshal(location["polygon"])
		if err != nil {
			return fmt.Errorf("failed to serialize polygon: %w", err)
		}
		polygon = string(raw)
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO mineSiteLocations
		(geolocalizationId, nationalCadasterLocalization, localGeographicDesignationId, polygon, altitude)
		VALUES (?, ?, ?, ?, ?)`,
		geoID,
		location["nationalCadasterLocalization"],
		nullableID(addressID),
		polygon,
		location["altitude"]); err != nil {
		return fmt.Errorf("failed to insert mine site location: %w", err)
	}
	return nil
}

// reconstruct rebuilds a full mine site document from its row. The location
// lookup is not scoped per site (the mineSites table carries no locationId
// column) and inspections are not linked back to the site either; both
// mirror the persisted data model's current shape.
func (s *MineSitesService) reconstruct(ctx context.Context, q DBTX, row map[string]any) (map[string]any, error) {
	ownerID := strField(row, "ownerId")
	owner, err := getBusinessEntity(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}

	icglrID := row["icglrId"]

	mineralRows, err := queryMaps(ctx, q,
		"SELECT mineralCode FROM mineSiteMinerals WHERE mineSiteId = ?", icglrID)
	if err != nil {
		return nil, err
	}
	minerals := make([]any, 0, len(mineralRows))
	for _, m := range mineralRows {
		minerals = append(minerals, m["mineralCode"])
	}

	locationRow, err := queryMap(ctx, q, `
		SELECT msl.*, g.lat, g.long,
		       a.country, a.subnationalDivisionL1, a.subnationalDivisionL1Text,
		       a.subnationalDivisionL2, a.subnationalDivisionL3, a.subnationalDivisionL4,
		       a.addressLocalityText, a.streetAddress
		FROM mineSiteLocations msl
		JOIN geolocalizations g ON msl.geolocalizationId = g.id
		JOIN addresses a ON msl.localGeographicDesignationId = a.id
		LIMIT 1`)
	if err != nil {
		return nil, err
	}

	var location map[string]any
	if locationRow != nil {
		location = map[string]any{
			"geolocalization": map[string]any{
				"lat":  locationRow["lat"],
				"long": locationRow["long"],
			},
			"nationalCadasterLocalization": locationRow["nationalCadasterLocalization"],
			"localGeographicDesignation": map[string]any{
				"country":                   locationRow["country"],
				"subnationalDivisionL1":     locationRow["subnationalDivisionL1"],
				"subnationalDivisionL1Text": locationRow["subnationalDivisionL1Text"],
				"subnationalDivisionL2":     locationRow["subnationalDivisionL2"],
				"subnationalDivisionL3":     locationRow["subnationalDivisionL3"],
				"subnationalDivisionL4":     locationRow["subnationalDivisionL4"],
				"addressLocalityText":       locationRow["addressLocalityText"],
				"streetAddress":             locationRow["streetAddress"],
			},
			"altitude": locationRow["altitude"],
		}
		if p, ok := locationRow["polygon"].(string); ok && p != "" {
			var polygon any
			if err := json.Unmarshal([]byte(p), &polygon); err == nil {
				location["polygon"] = polygon
			}
		}
	}

	licenseRows, err := queryMaps(ctx, q,
		"SELECT l.* FROM licenses l WHERE l.ownerId = ?", ownerID)
	if err != nil {
		return nil, err
	}
	licenses := make([]any, 0, len(licenseRows))
	for _, lic := range licenseRows {
		licOwner, err := getBusinessEntity(ctx, q, strField(lic, "ownerId"))
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, map[string]any{
			"licenseType":        lic["licenseType"],
			"licenseId":          lic["licenseId"],
			"owner":              licOwner,
			"appliedDate":        lic["appliedDate"],
			"grantedDate":        lic["grantedDate"],
			"expiringDate":       lic["expiringDate"],
			"licenseStatus":      lic["licenseStatus"],
			"coveredCommodities": []any{},
		})
	}

	minesLocationRows, err := queryMaps(ctx, q, `
		SELECT g.lat, g.long
		FROM mineSiteMinesLocations msl
		JOIN geolocalizations g ON msl.geolocalizationId = g.id
		WHERE msl.mineSiteId = ?`, icglrID)
	if err != nil {
		return nil, err
	}
	minesLocations := make([]any, 0, len(minesLocationRows))
	for _, geo := range minesLocationRows {
		minesLocations = append(minesLocations, map[string]any{
			"lat":  geo["lat"],
			"long": geo["long"],
		})
	}

	inspectionRows, err := queryMaps(ctx, q, `
		SELECT * FROM inspections WHERE inspectionId IN (
		  SELECT inspectionId FROM inspections LIMIT 10
		)`)
	if err != nil {
		return nil, err
	}
	inspections := make([]any, 0, len(inspectionRows))
	for _, insp := range inspectionRows {
		inspections = append(inspections, map[string]any{
			"inspectionId":          insp["inspectionId"],
			"inspectionDate":        insp["inspectionDate"],
			"inspectionResponsible": insp["inspectionResponsible"],
			"inspectionResult":      insp["inspectionResult"],
			"inspectionReport":      insp["inspectionReport"],
			"inspectionPurpose":     insp["inspectionPurpose"],
			"inspectionResults":     insp["inspectionResults"],
			"inspectorName":         insp["inspectorName"],
			"inspectorPosition":     insp["inspectorPosition"],
			"governmentAgency":      insp["governmentAgency"],
			"governmentId":          insp["governmentId"],
		})
	}

	statusRows, err := queryMaps(ctx, q, `
		SELECT dateOfChange, newStatus
		FROM statusHistory WHERE mineSiteId = ?
		ORDER BY dateOfChange DESC`, icglrID)
	if err != nil {
		return nil, err
	}
	statusHistory := make([]any, 0, len(statusRows))
	for _, sh := range statusRows {
		statusHistory = append(statusHistory, map[string]any{
			"dateOfChange": sh["dateOfChange"],
			"newStatus":    sh["newStatus"],
		})
	}

	return map[string]any{
		"icglrId":             row["icglrId"],
		"addressCountry":      row["addressCountry"],
		"nationalId":          row["nationalId"],
		"certificationStatus": row["certificationStatus"],
		"activityStatus":      row["activityStatus"],
		"mineSiteLocation":    location,
		"minesLocations":      minesLocations,
		"mineral":             minerals,
		"license":             licenses,
		"owner":               owner,
		"operator":            []any{},
		"inspection":          inspections,
		"statusChange":        statusHistory,
		"allowedTags":         row["allowedTags"],
	}, nil
}

func containsAny(list any, value string) bool {
	items, _ := list.([]any)
	for _, item := range items {
		if s, ok := item.(string); ok && s == value {
			return true
		}
	}
	return false
}
