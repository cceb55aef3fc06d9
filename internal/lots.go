package internal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata"
)

// LotFilters narrows a lot listing. CreatorRole and OriginatingOperation
// resolve to lot number sets through their junction tables before the main
// query runs.
type LotFilters struct {
	MineSiteID           string
	Mineral              string
	LotNumber            string
	DateRegistrationFrom string
	DateRegistrationTo   string
	CreatorRole          string
	OriginatingOperation string
}

// LotsService handles chain of custody lot persistence.
type LotsService struct {
	store     *Store
	validator *Validator
	log       *zap.SugaredLogger
}

func NewLotsService(store *Store, validator *Validator, log *zap.SugaredLogger) *LotsService {
	if log == nil {
		log = zap.S()
	}
	return &LotsService{store: store, validator: validator, log: log}
}

func (s *LotsService) List(ctx context.Context, filters LotFilters, page, limit int) (*mindata.ListResult, error) {
	query := "SELECT * FROM lots WHERE 1=1"
	var values []any

	if filters.MineSiteID != "" {
		query += " AND mineSiteId = ?"
		values = append(values, filters.MineSiteID)
	}
	if filters.Mineral != "" {
		query += " AND mineral = ?"
		values = append(values, filters.Mineral)
	}
	if filters.LotNumber != "" {
		query += " AND lotNumber = ?"
		values = append(values, filters.LotNumber)
	}
	if filters.DateRegistrationFrom != "" {
		query += " AND dateRegistration >= ?"
		values = append(values, filters.DateRegistrationFrom)
	}
	if filters.DateRegistrationTo != "" {
		query += " AND dateRegistration <= ?"
		values = append(values, filters.DateRegistrationTo)
	}

	if filters.CreatorRole != "" {
		lotNumbers, err := s.lotNumbersMatching(ctx,
			"SELECT DISTINCT lotNumber FROM lotCreatorRoles WHERE roleCode = ?", filters.CreatorRole)
		if err != nil {
			return nil, mindata.NewInternalError("failed to filter by creator role", err)
		}
		if len(lotNumbers) == 0 {
			return emptyLotResult(page, limit), nil
		}
		query += " AND lotNumber IN (" + placeholders(len(lotNumbers)) + ")"
		values = append(values, lotNumbers...)
	}

	if filters.OriginatingOperation != "" {
		lotNumbers, err := s.lotNumbersMatching(ctx,
			"SELECT DISTINCT lotNumber FROM lotOriginatingOperations WHERE operationCode = ?", filters.OriginatingOperation)
		if err != nil {
			return nil, mindata.NewInternalError("failed to filter by originating operation", err)
		}
		if len(lotNumbers) == 0 {
			return emptyLotResult(page, limit), nil
		}
		query += " AND lotNumber IN (" + placeholders(len(lotNumbers)) + ")"
		values = append(values, lotNumbers...)
	}

	var total int
	countQuery := "SELECT COUNT(*) " + query[len("SELECT * "):]
	if err := s.store.DB().QueryRowContext(ctx, countQuery, values...).Scan(&total); err != nil {
		return nil, mindata.NewInternalError("failed to count lots", err)
	}

	offset := (page - 1) * limit
	rows, err := queryMaps(ctx, s.store.DB(), query+" LIMIT ? OFFSET ?", append(values, limit, offset)...)
	if err != nil {
		return nil, mindata.NewInternalError("failed to list lots", err)
	}

	data := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		lot, err := s.reconstruct(ctx, s.store.DB(), row)
		if err != nil {
			return nil, mindata.NewInternalError("failed to reconstruct lot", err)
		}
		data = append(data, lot)
	}

	return &mindata.ListResult{
		Data:       data,
		Pagination: mindata.NewPagination(page, limit, total),
	}, nil
}

func (s *LotsService) lotNumbersMatching(ctx context.Context, query string, arg any) ([]any, error) {
	rows, err := queryMaps(ctx, s.store.DB(), query, arg)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row["lotNumber"])
	}
	return out, nil
}

func emptyLotResult(page, limit int) *mindata.ListResult {
	return &mindata.ListResult{
		Data:       []map[string]any{},
		Pagination: mindata.NewPagination(page, limit, 0),
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *LotsService) GetByID(ctx context.Context, lotNumber string) (map[string]any, error) {
	row, err := queryMap(ctx, s.store.DB(), "SELECT * FROM lots WHERE lotNumber = ?", lotNumber)
	if err != nil {
		return nil, mindata.NewInternalError("failed to query lot", err)
	}
	if row == nil {
		return nil, mindata.NewNotFoundError("Lot not found")
	}
	lot, err := s.reconstruct(ctx, s.store.DB(), row)
	if err != nil {
		return nil, mindata.NewInternalError("failed to reconstruct lot", err)
	}
	return lot, nil
}

// Create validates and persists a lot plus its junction rows in one
// transaction. Referenced mine sites and export certificates must already
// exist.
func (s *LotsService) Create(ctx context.Context, data map[string]any) (map[string]any, error) {
	if result := s.validator.Validate(data, "lot"); !result.Valid {
		return nil, mindata.NewValidationError("Validation failed").WithDetail("errors", result.Errors)
	}

	lotNumber := strField(data, "lotNumber")

	exists, err := rowExists(ctx, s.store.DB(), "lots", "lotNumber", lotNumber)
	if err != nil {
		return nil, mindata.NewInternalError("failed to check lot existence", err)
	}
	if exists {
		return nil, mindata.NewConflictError("Lot already exists")
	}

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		creatorID, err := insertOrGetBusinessEntity(ctx, tx, mapField(data, "creator"))
		if err != nil {
			return fmt.Errorf("error creating creator business entity: %w", err)
		}
		if ok, err := rowExists(ctx, tx, "businessEntities", "identifier", creatorID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("failed to create creator business entity: %s", creatorID)
		}

		var recipientID any
		if recipient := mapField(data, "recipient"); recipient != nil {
			id, err := insertOrGetBusinessEntity(ctx, tx, recipient)
			if err != nil {
				return fmt.Errorf("error creating recipient business entity: %w", err)
			}
			recipientID = id
		}

		tag := mapField(data, "tag")
		var tagIssuerID any
		if tag != nil {
			issuer := mapField(tag, "issuer")
			if issuer == nil {
				return mindata.NewValidationError("Tag issuer is required when tag is provided")
			}
			id, err := insertOrGetBusinessEntity(ctx, tx, issuer)
			if err != nil {
				return fmt.Errorf("error creating tag issuer business entity: %w", err)
			}
			tagIssuerID = id

			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO tags (identifier, issuerId, issueDate, issueTime, representativeRMB, tagType)
				VALUES (?, ?, ?, ?, ?, ?)`,
				tag["identifier"],
				tagIssuerID,
				tag["issueDate"],
				tag["issueTime"],
				tag["representativeRMB"],
				tag["tagType"]); err != nil {
				return fmt.Errorf("failed to insert tag: %w", err)
			}
		}

		if mineSiteID := strField(data, "mineSiteId"); mineSiteID != "" {
			ok, err := rowExists(ctx, tx, "mineSites", "icglrId", mineSiteID)
			if err != nil {
				return err
			}
			if !ok {
				return mindata.NewValidationError(fmt.Sprintf("Mine site with ID %s does not exist", mineSiteID))
			}
		}

		if certID := strField(data, "exportCertificateId"); certID != "" {
			ok, err := rowExists(ctx, tx, "exportCertificates", "exportCertificateId", certID)
			if err != nil {
				return err
			}
			if !ok {
				return mindata.NewValidationError(fmt.Sprintf("Export certificate with ID %s does not exist", certID))
			}
		}

		var taxIDs []int64
		for _, tax := range sliceField(data, "taxPaid") {
			taxMap, _ := tax.(map[string]any)
			result, err := tx.ExecContext(ctx, `
				INSERT INTO taxes (taxType, taxAmount, currency, taxAuthority, taxPaidDate, receiptReference)
				VALUES (?, ?, ?, ?, ?, ?)`,
				taxMap["taxType"],
				taxMap["taxAmount"],
				taxMap["currency"],
				taxMap["taxAuthority"],
				taxMap["taxPaidDate"],
				taxMap["receiptReference"])
			if err != nil {
				return fmt.Errorf("failed to insert tax: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return err
			}
			taxIDs = append(taxIDs, id)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lots
			(lotNumber, dateRegistration, timeRegistration, creatorId, mineral, concentration, mass, packageType,
			 unitOfMeasurement, mineSiteId, miner, recipientId, price, tagIdentifier, tagIssuerId,
			 tagIssueDate, tagIssueTime, tagRepresentativeRMB, tagTagType, dateSealed, dateShipped, purchaseNumber, purchaseDate,
			 responsibleStaff, dateIn, transportationMethod, transportationRoute,
			 transportCompany, exportCertificateId, nrOfPackages)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			lotNumber,
			data["dateRegistration"],
			data["timeRegistration"],
			creatorID,
			data["mineral"],
			data["concentration"],
			data["mass"],
			data["packageType"],
			data["unitOfMeasurement"],
			data["mineSiteId"],
			data["miner"],
			recipientID,
			data["price"],
			tagValue(tag, "identifier"),
			tagIssuerID,
			tagValue(tag, "issueDate"),
			tagValue(tag, "issueTime"),
			tagValue(tag, "representativeRMB"),
			tagValue(tag, "tagType"),
			data["dateSealed"],
			data["dateShipped"],
			data["purchaseNumber"],
			data["purchaseDate"],
			data["responsibleStaff"],
			data["dateIn"],
			data["transportationMethod"],
			data["transportationRoute"],
			data["transportCompany"],
			data["exportCertificateId"],
			data["nrOfPackages"]); err != nil {
			return fmt.Errorf("failed to insert lot: %w", err)
		}

		for _, role := range sliceField(data, "creatorRole") {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO lotCreatorRoles (lotNumber, roleCode) VALUES (?, ?)",
				lotNumber, role); err != nil {
				return fmt.Errorf("failed to insert creator role: %w", err)
			}
		}

		for _, op := range sliceField(data, "originatingOperation") {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO lotOriginatingOperations (lotNumber, operationCode) VALUES (?, ?)",
				lotNumber, op); err != nil {
				return fmt.Errorf("failed to insert originating operation: %w", err)
			}
		}

		for _, input := range sliceField(data, "inputLot") {
			inputMap, _ := input.(map[string]any)
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO lotInputLots (lotNumber, inputLotNumber) VALUES (?, ?)",
				lotNumber, inputMap["lotNumber"]); err != nil {
				return fmt.Errorf("failed to insert input lot: %w", err)
			}
		}

		for _, taxID := range taxIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO lotTaxes (lotNumber, taxId) VALUES (?, ?)",
				lotNumber, taxID); err != nil {
				return fmt.Errorf("failed to link tax: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, mindata.AsError(err)
	}

	s.log.Infow("lot created", "lotNumber", lotNumber)
	return s.GetByID(ctx, lotNumber)
}

func tagValue(tag map[string]any, key string) any {
	if tag == nil {
		return nil
	}
	return tag[key]
}

// reconstruct rebuilds the lot document. The tag comes from the
// denormalized lot columns, not the tags table.
func (s *LotsService) reconstruct(ctx context.Context, q DBTX, row map[string]any) (map[string]any, error) {
	creator, err := getBusinessEntity(ctx, q, strField(row, "creatorId"))
	if err != nil {
		return nil, err
	}

	var recipient map[string]any
	if recipientID := strField(row, "recipientId"); recipientID != "" {
		recipient, err = getBusinessEntity(ctx, q, recipientID)
		if err != nil {
			return nil, err
		}
	}

	lotNumber := row["lotNumber"]

	roleRows, err := queryMaps(ctx, q,
		"SELECT roleCode FROM lotCreatorRoles WHERE lotNumber = ?", lotNumber)
	if err != nil {
		return nil, err
	}
	roles := make([]any, 0, len(roleRows))
	for _, r := range roleRows {
		roles = append(roles, r["roleCode"])
	}

	opRows, err := queryMaps(ctx, q,
		"SELECT operationCode FROM lotOriginatingOperations WHERE lotNumber = ?", lotNumber)
	if err != nil {
		return nil, err
	}
	operations := make([]any, 0, len(opRows))
	for _, r := range opRows {
		operations = append(operations, r["operationCode"])
	}

	inputRows, err := queryMaps(ctx, q,
		"SELECT inputLotNumber FROM lotInputLots WHERE lotNumber = ?", lotNumber)
	if err != nil {
		return nil, err
	}
	inputLots := make([]any, 0, len(inputRows))
	for _, r := range inputRows {
		inputLots = append(inputLots, map[string]any{"lotNumber": r["inputLotNumber"]})
	}

	var tag map[string]any
	if row["tagIdentifier"] != nil {
		var issuer map[string]any
		if issuerID := strField(row, "tagIssuerId"); issuerID != "" {
			issuer, err = getBusinessEntity(ctx, q, issuerID)
			if err != nil {
				return nil, err
			}
		}
		tag = map[string]any{
			"identifier":        row["tagIdentifier"],
			"issuer":            issuer,
			"issueDate":         row["tagIssueDate"],
			"issueTime":         row["tagIssueTime"],
			"representativeRMB": row["tagRepresentativeRMB"],
			"tagType":           row["tagTagType"],
		}
	}

	taxRows, err := queryMaps(ctx, q, `
		SELECT t.* FROM taxes t
		JOIN lotTaxes lt ON t.id = lt.taxId
		WHERE lt.lotNumber = ?`, lotNumber)
	if err != nil {
		return nil, err
	}
	taxes := make([]any, 0, len(taxRows))
	for _, t := range taxRows {
		taxes = append(taxes, map[string]any{
			"taxType":          t["taxType"],
			"taxAmount":        t["taxAmount"],
			"currency":         t["currency"],
			"taxAuthority":     t["taxAuthority"],
			"taxPaidDate":      t["taxPaidDate"],
			"receiptReference": t["receiptReference"],
		})
	}

	return map[string]any{
		"lotNumber":            row["lotNumber"],
		"dateRegistration":     row["dateRegistration"],
		"timeRegistration":     row["timeRegistration"],
		"creator":              creator,
		"mineral":              row["mineral"],
		"concentration":        row["concentration"],
		"mass":                 row["mass"],
		"packageType":          row["packageType"],
		"nrOfPackages":         row["nrOfPackages"],
		"unitOfMeasurement":    row["unitOfMeasurement"],
		"mineSiteId":           row["mineSiteId"],
		"miner":                row["miner"],
		"creatorRole":          roles,
		"recipient":            recipient,
		"price":                row["price"],
		"originatingOperation": operations,
		"inputLot":             inputLots,
		"tag":                  tag,
		"taxPaid":              taxes,
		"dateSealed":           row["dateSealed"],
		"dateShipped":          row["dateShipped"],
		"purchaseNumber":       row["purchaseNumber"],
		"purchaseDate":         row["purchaseDate"],
		"responsibleStaff":     row["responsibleStaff"],
		"dateIn":               row["dateIn"],
		"transportationMethod": row["transportationMethod"],
		"transportationRoute":  row["transportationRoute"],
		"transportCompany":     row["transportCompany"],
		"exportCertificateId":  row["exportCertificateId"],
	}, nil
}
