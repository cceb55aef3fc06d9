package internal

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata"
)

// ExportCertificateFilters narrows an export certificate listing.
type ExportCertificateFilters struct {
	IssuingCountry     string
	Identifier         string
	LotNumber          string
	TypeOfOre          string
	DateOfIssuanceFrom string
	DateOfIssuanceTo   string
}

// ExportCertificatesService handles export certificate persistence.
// Certificates are identified by (issuingCountry, identifier); the combined
// exportCertificateId column keys the table.
type ExportCertificatesService struct {
	store     *Store
	validator *Validator
	log       *zap.SugaredLogger
}

func NewExportCertificatesService(store *Store, validator *Validator, log *zap.SugaredLogger) *ExportCertificatesService {
	if log == nil {
		log = zap.S()
	}
	return &ExportCertificatesService{store: store, validator: validator, log: log}
}

func (s *ExportCertificatesService) List(ctx context.Context, filters ExportCertificateFilters, page, limit int) (*mindata.ListResult, error) {
	query := "SELECT * FROM exportCertificates WHERE 1=1"
	var values []any

	if filters.IssuingCountry != "" {
		query += " AND issuingCountry = ?"
		values = append(values, filters.IssuingCountry)
	}
	if filters.Identifier != "" {
		query += " AND identifier = ?"
		values = append(values, filters.Identifier)
	}
	if filters.LotNumber != "" {
		query += " AND lotNumber = ?"
		values = append(values, filters.LotNumber)
	}
	if filters.TypeOfOre != "" {
		query += " AND typeOfOre = ?"
		values = append(values, filters.TypeOfOre)
	}
	if filters.DateOfIssuanceFrom != "" {
		query += " AND dateOfIssuance >= ?"
		values = append(values, filters.DateOfIssuanceFrom)
	}
	if filters.DateOfIssuanceTo != "" {
		query += " AND dateOfIssuance <= ?"
		values = append(values, filters.DateOfIssuanceTo)
	}

	var total int
	countQuery := "SELECT COUNT(*) " + query[len("SELECT * "):]
	if err := s.store.DB().QueryRowContext(ctx, countQuery, values...).Scan(&total); err != nil {
		return nil, mindata.NewInternalError("failed to count export certificates", err)
	}

	offset := (page - 1) * limit
	rows, err := queryMaps(ctx, s.store.DB(), query+" LIMIT ? OFFSET ?", append(values, limit, offset)...)
	if err != nil {
		return nil, mindata.NewInternalError("failed to list export certificates", err)
	}

	data := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		cert, err := s.reconstruct(ctx, s.store.DB(), row)
		if err != nil {
			return nil, mindata.NewInternalError("failed to reconstruct export certificate", err)
		}
		data = append(data, cert)
	}

	return &mindata.ListResult{
		Data:       data,
		Pagination: mindata.NewPagination(page, limit, total),
	}, nil
}

// GetByID returns the certificate with the given identifier and issuing
// country.
func (s *ExportCertificatesService) GetByID(ctx context.Context, identifier, issuingCountry string) (map[string]any, error) {
	row, err := queryMap(ctx, s.store.DB(),
		"SELECT * FROM exportCertificates WHERE identifier = ? AND issuingCountry = ?",
		identifier, issuingCountry)
	if err != nil {
		return nil, mindata.NewInternalError("failed to query export certificate", err)
	}
	if row == nil {
		return nil, mindata.NewNotFoundError("Export certificate not found")
	}
	cert, err := s.reconstruct(ctx, s.store.DB(), row)
	if err != nil {
		return nil, mindata.NewInternalError("failed to reconstruct export certificate", err)
	}
	return cert, nil
}

func (s *ExportCertificatesService) Create(ctx context.Context, data map[string]any) (map[string]any, error) {
	if result := s.validator.Validate(data, "export-certificate"); !result.Valid {
		return nil, mindata.NewValidationError("Validation failed").WithDetail("errors", result.Errors)
	}

	issuingCountry := strField(data, "issuingCountry")
	identifier := strField(data, "identifier")

	exists, err := rowExists(ctx, s.store.DB(), "exportCertificates", "exportCertificateId", issuingCountry+":"+identifier)
	if err != nil {
		return nil, mindata.NewInternalError("failed to check export certificate existence", err)
	}
	if exists {
		return nil, mindata.NewConflictError("Export certificate already exists")
	}

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		exporter := mapField(data, "exporter")
		importer := mapField(data, "importer")
		if _, err := insertOrGetBusinessEntity(ctx, tx, exporter); err != nil {
			return err
		}
		if _, err := insertOrGetBusinessEntity(ctx, tx, importer); err != nil {
			return err
		}

		exportCertificateID := issuingCountry + ":" + identifier

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO exportCertificates
			(exportCertificateId, issuingCountry, identifier, exporterId, importerId, lotNumber,
			 designatedMineralDescription, typeOfOre, lotWeight, lotWeightUOM,
			 lotGrade, mineralOrigin, customsValue, dateOfShipment, shipmentRoute,
			 transportCompany, memberStateIssuingAuthority, nameOfVerifier,
			 positionOfVerifier, idOfVerifier, dateOfVerification, nameOfValidator,
			 dateOfIssuance, dateOfExpiration, certificateFile)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			exportCertificateID,
			issuingCountry,
			identifier,
			exporter["identifier"],
			importer["identifier"],
			data["lotNumber"],
			data["designatedMineralDescription"],
			data["typeOfOre"],
			data["lotWeight"],
			data["lotWeightUOM"],
			data["lotGrade"],
			data["mineralOrigin"],
			data["customsValue"],
			data["dateOfShipment"],
			data["shipmentRoute"],
			data["transportCompany"],
			data["memberStateIssuingAuthority"],
			data["nameOfVerifier"],
			data["positionOfVerifier"],
			data["idOfVerifier"],
			data["dateOfVerification"],
			data["nameOfValidator"],
			data["dateOfIssuance"],
			data["dateOfExpiration"],
			data["certificateFile"]); err != nil {
			return fmt.Errorf("failed to insert export certificate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, mindata.AsError(err)
	}

	s.log.Infow("export certificate created", "issuingCountry", issuingCountry, "identifier", identifier)
	return s.GetByID(ctx, identifier, issuingCountry)
}

func (s *ExportCertificatesService) reconstruct(ctx context.Context, q DBTX, row map[string]any) (map[string]any, error) {
	exporter, err := getBusinessEntity(ctx, q, strField(row, "exporterId"))
	if err != nil {
		return nil, err
	}
	importer, err := getBusinessEntity(ctx, q, strField(row, "importerId"))
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"issuingCountry":               row["issuingCountry"],
		"identifier":                   row["identifier"],
		"exporter":                     exporter,
		"importer":                     importer,
		"lotNumber":                    row["lotNumber"],
		"designatedMineralDescription": row["designatedMineralDescription"],
		"typeOfOre":                    row["typeOfOre"],
		"lotWeight":                    row["lotWeight"],
		"lotWeightUOM":                 row["lotWeightUOM"],
		"lotGrade":                     row["lotGrade"],
		"mineralOrigin":                row["mineralOrigin"],
		"customsValue":                 row["customsValue"],
		"dateOfShipment":               row["dateOfShipment"],
		"shipmentRoute":                row["shipmentRoute"],
		"transportCompany":             row["transportCompany"],
		"memberStateIssuingAuthority":  row["memberStateIssuingAuthority"],
		"nameOfVerifier":               row["nameOfVerifier"],
		"positionOfVerifier":           row["positionOfVerifier"],
		"idOfVerifier":                 row["idOfVerifier"],
		"dateOfVerification":           row["dateOfVerification"],
		"nameOfValidator":              row["nameOfValidator"],
		"dateOfIssuance":               row["dateOfIssuance"],
		"dateOfExpiration":             row["dateOfExpiration"],
		"certificateFile":              row["certificateFile"],
	}, nil
}
