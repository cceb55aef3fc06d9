package internal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/icglr-rcm/mindata"
)

// queryMaps runs query and scans every row into a map keyed by column name.
// Byte slices become strings so the maps serialize cleanly as JSON.
func queryMaps(ctx context.Context, q DBTX, query string, args ...any) ([]map[string]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// queryMap returns the first row of query as a map, or nil when there is
// none.
func queryMap(ctx context.Context, q DBTX, query string, args ...any) (map[string]any, error) {
	rows, err := queryMaps(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func strField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func mapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func sliceField(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

// insertOrGetAddress deduplicates addresses on (country,
// subnationalDivisionL1, addressLocalityText). A nil address yields a nil
// id.
func insertOrGetAddress(ctx context.Context, q DBTX, address map[string]any) (*int64, error) {
	if address == nil {
		return nil, nil
	}

	row, err := queryMap(ctx, q, `
		SELECT id FROM addresses
		WHERE country = ? AND subnationalDivisionL1 = ? AND addressLocalityText = ?`,
		address["country"], address["subnationalDivisionL1"], address["addressLocalityText"])
	if err != nil {
		return nil, err
	}
	if row != nil {
		id, _ := row["id"].(int64)
		return &id, nil
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO addresses
		(country, subnationalDivisionL1, subnationalDivisionL1Text,
		 subnationalDivisionL2, subnationalDivisionL3, subnationalDivisionL4, addressLocalityText, streetAddress)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		address["country"],
		address["subnationalDivisionL1"],
		address["subnationalDivisionL1Text"],
		address["subnationalDivisionL2"],
		address["subnationalDivisionL3"],
		address["subnationalDivisionL4"],
		address["addressLocalityText"],
		address["streetAddress"])
	if err != nil {
		return nil, fmt.Errorf("failed to insert address: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// insertOrGetContactDetails deduplicates contact details on contactEmail.
func insertOrGetContactDetails(ctx context.Context, q DBTX, contactDetails map[string]any) (int64, error) {
	if contactDetails == nil {
		return 0, mindata.NewValidationError("Contact details are required for business entity")
	}
	if strField(contactDetails, "contactEmail") == "" {
		return 0, mindata.NewValidationError("Contact email is required")
	}

	row, err := queryMap(ctx, q,
		`SELECT id FROM contactDetails WHERE contactEmail = ?`,
		contactDetails["contactEmail"])
	if err != nil {
		return 0, err
	}
	if row != nil {
		id, _ := row["id"].(int64)
		return id, nil
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO contactDetails
		(legalRepresentative, contactPhoneNumber, contactEmail)
		VALUES (?, ?, ?)`,
		contactDetails["legalRepresentative"],
		contactDetails["contactPhoneNumber"],
		contactDetails["contactEmail"])
	if err != nil {
		return 0, fmt.Errorf("failed to insert contact details: %w", err)
	}
	return result.LastInsertId()
}

// insertOrGetGeolocalization deduplicates coordinates on (lat, long).
func insertOrGetGeolocalization(ctx context.Context, q DBTX, geo map[string]any) (int64, error) {
	row, err := queryMap(ctx, q,
		`SELECT id FROM geolocalizations WHERE lat = ? AND long = ?`,
		geo["lat"], geo["long"])
	if err != nil {
		return 0, err
	}
	if row != nil {
		id, _ := row["id"].(int64)
		return id, nil
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO geolocalizations (lat, long) VALUES (?, ?)`,
		geo["lat"], geo["long"])
	if err != nil {
		return 0, fmt.Errorf("failed to insert geolocalization: %w", err)
	}
	return result.LastInsertId()
}

// insertOrGetBusinessEntity inserts the entity when its identifier is new,
// checking required fields first. Returns the identifier either way.
func insertOrGetBusinessEntity(ctx context.Context, q DBTX, entity map[string]any) (string, error) {
	identifier := strField(entity, "identifier")
	if identifier == "" {
		return "", mindata.NewValidationError("Business entity must have an identifier")
	}

	row, err := queryMap(ctx, q,
		`SELECT identifier FROM businessEntities WHERE identifier = ?`, identifier)
	if err != nil {
		return "", err
	}
	if row != nil {
		return identifier, nil
	}

	if strField(entity, "name") == "" {
		return "", mindata.NewValidationError(fmt.Sprintf("Business entity %s is missing required field: name", identifier))
	}
	if strField(entity, "tin") == "" {
		return "", mindata.NewValidationError(fmt.Sprintf("Business entity %s is missing required field: tin", identifier))
	}
	if entity["businessType"] == nil {
		return "", mindata.NewValidationError(fmt.Sprintf("Business entity %s is missing required field: businessType", identifier))
	}
	if mapField(entity, "contactDetails") == nil {
		return "", mindata.NewValidationError(fmt.Sprintf("Business entity %s is missing required field: contactDetails", identifier))
	}
	if mapField(entity, "legalAddress") == nil && mapField(entity, "physicalAddress") == nil {
		return "", mindata.NewValidationError(fmt.Sprintf("Business entity %s must have either legalAddress or physicalAddress", identifier))
	}

	legalAddressID, err := insertOrGetAddress(ctx, q, mapField(entity, "legalAddress"))
	if err != nil {
		return "", err
	}
	physicalAddressID, err := insertOrGetAddress(ctx, q, mapField(entity, "physicalAddress"))
	if err != nil {
		return "", err
	}
	contactDetailsID, err := insertOrGetContactDetails(ctx, q, mapField(entity, "contactDetails"))
	if err != nil {
		return "", err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO businessEntities
		(identifier, name, legalAddressId, physicalAddressId, tin, rdbNumber, rcaNumber, businessType, otherInfo, contactDetailsId)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		identifier,
		entity["name"],
		nullableID(legalAddressID),
		nullableID(physicalAddressID),
		entity["tin"],
		entity["rdbNumber"],
		entity["rcaNumber"],
		entity["businessType"],
		entity["otherInfo"],
		contactDetailsID)
	if err != nil {
		return "", fmt.Errorf("failed to insert business entity %s: %w", identifier, err)
	}

	return identifier, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// getBusinessEntity reconstructs the full document from one joined query.
// Returns nil when the identifier is unknown.
func getBusinessEntity(ctx context.Context, q DBTX, identifier string) (map[string]any, error) {
	row, err := queryMap(ctx, q, `
		SELECT be.*,
		       la.country as legalCountry, la.subnationalDivisionL1 as legalL1,
		       la.subnationalDivisionL1Text as legalL1Text,
		       la.subnationalDivisionL2 as legalL2, la.subnationalDivisionL3 as legalL3,
		       la.subnationalDivisionL4 as legalL4, la.addressLocalityText as legalLocality,
		       la.streetAddress as legalStreetAddress,
		       pa.country as physicalCountry, pa.subnationalDivisionL1 as physicalL1,
		       pa.subnationalDivisionL1Text as physicalL1Text,
		       pa.subnationalDivisionL2 as physicalL2, pa.subnationalDivisionL3 as physicalL3,
		       pa.subnationalDivisionL4 as physicalL4, pa.addressLocalityText as physicalLocality,
		       pa.streetAddress as physicalStreetAddress,
		       cd.legalRepresentative, cd.contactPhoneNumber, cd.contactEmail
		FROM businessEntities be
		LEFT JOIN addresses la ON be.legalAddressId = la.id
		LEFT JOIN addresses pa ON be.physicalAddressId = pa.id
		JOIN contactDetails cd ON be.contactDetailsId = cd.id
		WHERE be.identifier = ?`, identifier)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	var legalAddress map[string]any
	if row["legalCountry"] != nil {
		legalAddress = map[string]any{
			"country":                   row["legalCountry"],
			"subnationalDivisionL1":     row["legalL1"],
			"subnationalDivisionL1Text": row["legalL1Text"],
			"subnationalDivisionL2":     row["legalL2"],
			"subnationalDivisionL3":     row["legalL3"],
			"subnationalDivisionL4":     row["legalL4"],
			"addressLocalityText":       row["legalLocality"],
			"streetAddress":             row["legalStreetAddress"],
		}
	}

	var physicalAddress map[string]any
	if row["physicalCountry"] != nil {
		physicalAddress = map[string]any{
			"country":                   row["physicalCountry"],
			"subnationalDivisionL1":     row["physicalL1"],
			"subnationalDivisionL1Text": row["physicalL1Text"],
			"subnationalDivisionL2":     row["physicalL2"],
			"subnationalDivisionL3":     row["physicalL3"],
			"subnationalDivisionL4":     row["physicalL4"],
			"addressLocalityText":       row["physicalLocality"],
			"streetAddress":             row["physicalStreetAddress"],
		}
	}

	return map[string]any{
		"identifier":      row["identifier"],
		"name":            row["name"],
		"legalAddress":    legalAddress,
		"physicalAddress": physicalAddress,
		"tin":             row["tin"],
		"rdbNumber":       row["rdbNumber"],
		"rcaNumber":       row["rcaNumber"],
		"businessType":    row["businessType"],
		"otherInfo":       row["otherInfo"],
		"contactDetails": map[string]any{
			"legalRepresentative": row["legalRepresentative"],
			"contactPhoneNumber":  row["contactPhoneNumber"],
			"contactEmail":        row["contactEmail"],
		},
	}, nil
}

// rowExists reports whether a row with value in column exists in table.
// Table and column names come from fixed call sites, never user input.
func rowExists(ctx context.Context, q DBTX, table, column string, value any) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", table, column)
	var one int
	err := q.QueryRowContext(ctx, query, value).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
