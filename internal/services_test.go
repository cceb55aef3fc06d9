package internal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icglr-rcm/mindata"
)

type testServices struct {
	store              *Store
	validator          *Validator
	mineSites          *MineSitesService
	exportCertificates *ExportCertificatesService
	lots               *LotsService
}

// newTestServices builds a fresh SQLite database from the generated DDL in
// a temp directory and wires the services against it.
func newTestServices(t *testing.T) *testServices {
	t.Helper()
	log := testLogger()

	set := loadTestSchemas(t)
	gen, err := NewGenerator(set, log)
	require.NoError(t, err)

	store, err := RebuildStore(filepath.Join(t.TempDir(), "test.db"), gen.GenerateSQL(), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	validator, err := NewValidator(set, log)
	require.NoError(t, err)

	return &testServices{
		store:              store,
		validator:          validator,
		mineSites:          NewMineSitesService(store, validator, log),
		exportCertificates: NewExportCertificatesService(store, validator, log),
		lots:               NewLotsService(store, validator, log),
	}
}

func TestMineSiteCreateAndGet(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	created, err := svc.mineSites.Create(ctx, ExampleMineSite())
	require.NoError(t, err)

	assert.Equal(t, "RWA-MS-0001", created["icglrId"])
	assert.Equal(t, "RW", created["addressCountry"])

	owner, _ := created["owner"].(map[string]any)
	require.NotNil(t, owner)
	assert.Equal(t, "Rulindo Mining Cooperative", owner["name"])
	legalAddress, _ := owner["legalAddress"].(map[string]any)
	require.NotNil(t, legalAddress)
	assert.Equal(t, "Kigali", legalAddress["subnationalDivisionL1"])

	minerals, _ := created["mineral"].([]any)
	assert.ElementsMatch(t, []any{"cassiterite", "coltan"}, minerals)

	location, _ := created["mineSiteLocation"].(map[string]any)
	require.NotNil(t, location)
	geo, _ := location["geolocalization"].(map[string]any)
	require.NotNil(t, geo)
	assert.InDelta(t, -1.7271, toFloat(t, geo["lat"]), 1e-6)

	minesLocations, _ := created["minesLocations"].([]any)
	assert.Len(t, minesLocations, 2)

	licenses, _ := created["license"].([]any)
	require.Len(t, licenses, 1)
	lic, _ := licenses[0].(map[string]any)
	assert.Equal(t, "RMB-LIC-2019-114", lic["licenseId"])

	statusChanges, _ := created["statusChange"].([]any)
	assert.Len(t, statusChanges, 1)

	fetched, err := svc.mineSites.GetByID(ctx, "RWA-MS-0001")
	require.NoError(t, err)
	assert.Equal(t, created["icglrId"], fetched["icglrId"])
}

func toFloat(t *testing.T, v any) float64 {
	t.Helper()
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		t.Fatalf("not a number: %T", v)
		return 0
	}
}

func TestMineSiteDuplicateConflict(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.mineSites.Create(ctx, ExampleMineSite())
	require.NoError(t, err)

	_, err = svc.mineSites.Create(ctx, ExampleMineSite())
	assert.True(t, mindata.IsConflictError(err))
}

func TestMineSiteValidationFailure(t *testing.T) {
	svc := newTestServices(t)

	_, err := svc.mineSites.Create(context.Background(), map[string]any{"icglrId": "RWA-MS-0002"})
	require.Error(t, err)
	assert.True(t, mindata.IsValidationError(err))

	e := mindata.AsError(err)
	assert.NotEmpty(t, e.Details["errors"])
}

func TestMineSiteNotFound(t *testing.T) {
	svc := newTestServices(t)

	_, err := svc.mineSites.GetByID(context.Background(), "RWA-MS-MISSING")
	assert.True(t, mindata.IsNotFoundError(err))
}

func TestMineSiteUpdate(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.mineSites.Create(ctx, ExampleMineSite())
	require.NoError(t, err)

	update := ExampleMineSite()
	update["certificationStatus"] = 2
	update["nationalId"] = "MS-RULINDO-018"

	updated, err := svc.mineSites.Update(ctx, "RWA-MS-0001", update)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated["certificationStatus"])
	assert.Equal(t, "MS-RULINDO-018", updated["nationalId"])

	_, err = svc.mineSites.Update(ctx, "RWA-MS-MISSING", update)
	assert.True(t, mindata.IsNotFoundError(err))
}

func TestMineSiteList(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.mineSites.Create(ctx, ExampleMineSite())
	require.NoError(t, err)

	result, err := svc.mineSites.List(ctx, MineSiteFilters{}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, result.Data, 1)
	assert.Equal(t, 1, result.Pagination.Total)
	assert.Equal(t, 1, result.Pagination.TotalPages)

	result, err = svc.mineSites.List(ctx, MineSiteFilters{AddressCountry: "CD"}, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, result.Data)
	assert.Equal(t, 0, result.Pagination.Total)

	result, err = svc.mineSites.List(ctx, MineSiteFilters{Mineral: "coltan"}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, result.Data, 1)

	result, err = svc.mineSites.List(ctx, MineSiteFilters{Mineral: "diamond"}, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, result.Data)
}

func TestExportCertificateLifecycle(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	created, err := svc.exportCertificates.Create(ctx, ExampleExportCertificate())
	require.NoError(t, err)
	assert.Equal(t, "RW-EC-2025-000321", created["identifier"])

	exporter, _ := created["exporter"].(map[string]any)
	require.NotNil(t, exporter)
	assert.Equal(t, "RW-BE-100045", exporter["identifier"])
	importer, _ := created["importer"].(map[string]any)
	require.NotNil(t, importer)
	assert.Equal(t, "Straits Tin Refining Sdn Bhd", importer["name"])

	fetched, err := svc.exportCertificates.GetByID(ctx, "RW-EC-2025-000321", "RW")
	require.NoError(t, err)
	assert.Equal(t, "cassiterite", fetched["typeOfOre"])

	_, err = svc.exportCertificates.GetByID(ctx, "RW-EC-2025-000321", "CD")
	assert.True(t, mindata.IsNotFoundError(err))

	_, err = svc.exportCertificates.Create(ctx, ExampleExportCertificate())
	assert.True(t, mindata.IsConflictError(err))
}

func TestExportCertificateList(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.exportCertificates.Create(ctx, ExampleExportCertificate())
	require.NoError(t, err)

	result, err := svc.exportCertificates.List(ctx, ExportCertificateFilters{IssuingCountry: "RW"}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, result.Data, 1)

	result, err = svc.exportCertificates.List(ctx, ExportCertificateFilters{TypeOfOre: "coltan"}, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, result.Data)

	result, err = svc.exportCertificates.List(ctx, ExportCertificateFilters{
		DateOfIssuanceFrom: "2025-01-01",
		DateOfIssuanceTo:   "2025-12-31",
	}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, result.Data, 1)
}

func TestLotLifecycle(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.mineSites.Create(ctx, ExampleMineSite())
	require.NoError(t, err)
	_, err = svc.exportCertificates.Create(ctx, ExampleExportCertificate())
	require.NoError(t, err)

	created, err := svc.lots.Create(ctx, ExampleLot())
	require.NoError(t, err)

	assert.Equal(t, "RWA-LOT-2025-0001", created["lotNumber"])
	assert.Equal(t, "cassiterite", created["mineral"])
	assert.Equal(t, "RWA-MS-0001", created["mineSiteId"])

	creator, _ := created["creator"].(map[string]any)
	require.NotNil(t, creator)
	assert.Equal(t, "RW-BE-100045", creator["identifier"])

	roles, _ := created["creatorRole"].([]any)
	require.Len(t, roles, 1)
	assert.EqualValues(t, 1, roles[0])

	tag, _ := created["tag"].(map[string]any)
	require.NotNil(t, tag)
	assert.Equal(t, "ITSCI-RW-88412903", tag["identifier"])
	tagIssuer, _ := tag["issuer"].(map[string]any)
	require.NotNil(t, tagIssuer)
	assert.Equal(t, "RW-BE-100045", tagIssuer["identifier"])

	taxes, _ := created["taxPaid"].([]any)
	require.Len(t, taxes, 1)
	tax, _ := taxes[0].(map[string]any)
	assert.Equal(t, "royalty", tax["taxType"])

	fetched, err := svc.lots.GetByID(ctx, "RWA-LOT-2025-0001")
	require.NoError(t, err)
	assert.Equal(t, created["lotNumber"], fetched["lotNumber"])

	_, err = svc.lots.Create(ctx, ExampleLot())
	assert.True(t, mindata.IsConflictError(err))
}

func TestLotCreateUnknownMineSite(t *testing.T) {
	svc := newTestServices(t)

	lot := ExampleLot()
	delete(lot, "exportCertificateId")
	lot["mineSiteId"] = "RWA-MS-MISSING"

	_, err := svc.lots.Create(context.Background(), lot)
	require.Error(t, err)
	assert.True(t, mindata.IsValidationError(err))
	assert.Contains(t, mindata.AsError(err).Message, "RWA-MS-MISSING")

	// The failed transaction left nothing behind.
	_, err = svc.lots.GetByID(context.Background(), "RWA-LOT-2025-0001")
	assert.True(t, mindata.IsNotFoundError(err))
}

func TestLotCreateUnknownExportCertificate(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.mineSites.Create(ctx, ExampleMineSite())
	require.NoError(t, err)

	lot := ExampleLot()
	lot["exportCertificateId"] = "RW:RW-EC-MISSING"

	_, err = svc.lots.Create(ctx, lot)
	require.Error(t, err)
	assert.True(t, mindata.IsValidationError(err))
}

func TestLotWithoutTag(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	lot := ExampleLot()
	delete(lot, "tag")
	delete(lot, "mineSiteId")
	delete(lot, "exportCertificateId")
	delete(lot, "taxPaid")

	created, err := svc.lots.Create(ctx, lot)
	require.NoError(t, err)
	assert.Nil(t, created["tag"])

	taxes, _ := created["taxPaid"].([]any)
	assert.Empty(t, taxes)
}

func TestLotListFilters(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.mineSites.Create(ctx, ExampleMineSite())
	require.NoError(t, err)
	_, err = svc.exportCertificates.Create(ctx, ExampleExportCertificate())
	require.NoError(t, err)
	_, err = svc.lots.Create(ctx, ExampleLot())
	require.NoError(t, err)

	result, err := svc.lots.List(ctx, LotFilters{MineSiteID: "RWA-MS-0001"}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, result.Data, 1)

	result, err = svc.lots.List(ctx, LotFilters{CreatorRole: "1"}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, result.Data, 1)

	result, err = svc.lots.List(ctx, LotFilters{CreatorRole: "7"}, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, result.Data)
	assert.Equal(t, 0, result.Pagination.Total)

	result, err = svc.lots.List(ctx, LotFilters{Mineral: "gold"}, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, result.Data)

	result, err = svc.lots.List(ctx, LotFilters{
		DateRegistrationFrom: "2025-03-01",
		DateRegistrationTo:   "2025-03-31",
	}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, result.Data, 1)
}

func TestBusinessEntityDeduplication(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.mineSites.Create(ctx, ExampleMineSite())
	require.NoError(t, err)
	// The certificate's exporter is the same business entity as the mine
	// site owner.
	_, err = svc.exportCertificates.Create(ctx, ExampleExportCertificate())
	require.NoError(t, err)

	var count int
	err = svc.store.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM businessEntities WHERE identifier = ?", "RW-BE-100045").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = svc.store.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contactDetails WHERE contactEmail = ?", "info@rulindomining.rw").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSeederIsIdempotent(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	seeder := NewSeeder(svc.store, svc.validator, 1, testLogger())
	require.NoError(t, seeder.SeedExample(ctx))
	require.NoError(t, seeder.SeedExample(ctx))

	result, err := svc.mineSites.List(ctx, MineSiteFilters{}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, result.Data, 1)
}

func TestSeederRandom(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	seeder := NewSeeder(svc.store, svc.validator, 42, testLogger())
	require.NoError(t, seeder.SeedRandom(ctx, 3))

	sites, err := svc.mineSites.List(ctx, MineSiteFilters{}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, sites.Data, 3)

	lots, err := svc.lots.List(ctx, LotFilters{}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, lots.Data, 3)
}

func TestPagination(t *testing.T) {
	p := mindata.NewPagination(2, 10, 25)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 3, p.TotalPages)

	p = mindata.NewPagination(1, 20, 0)
	assert.Equal(t, 0, p.TotalPages)
}
