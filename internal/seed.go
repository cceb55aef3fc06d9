package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata"
)

// Seeder loads example and generated documents through the services so
// every row passes schema validation on its way in.
type Seeder struct {
	mineSites          *MineSitesService
	exportCertificates *ExportCertificatesService
	lots               *LotsService
	faker              *gofakeit.Faker
	log                *zap.SugaredLogger
}

// NewSeeder creates a Seeder. The seed makes generated documents
// reproducible across runs.
func NewSeeder(store *Store, validator *Validator, seed int64, log *zap.SugaredLogger) *Seeder {
	if log == nil {
		log = zap.S()
	}
	return &Seeder{
		mineSites:          NewMineSitesService(store, validator, log),
		exportCertificates: NewExportCertificatesService(store, validator, log),
		lots:               NewLotsService(store, validator, log),
		faker:              gofakeit.New(seed),
		log:                log,
	}
}

// SeedExample inserts the reference documents: one mine site, one export
// certificate and one lot tied to both. Existing rows are left alone.
func (s *Seeder) SeedExample(ctx context.Context) error {
	if _, err := s.mineSites.Create(ctx, ExampleMineSite()); err != nil {
		if !mindata.IsConflictError(err) {
			return fmt.Errorf("seed mine site: %w", err)
		}
		s.log.Infow("example mine site already present")
	}

	if _, err := s.exportCertificates.Create(ctx, ExampleExportCertificate()); err != nil {
		if !mindata.IsConflictError(err) {
			return fmt.Errorf("seed export certificate: %w", err)
		}
		s.log.Infow("example export certificate already present")
	}

	if _, err := s.lots.Create(ctx, ExampleLot()); err != nil {
		if !mindata.IsConflictError(err) {
			return fmt.Errorf("seed lot: %w", err)
		}
		s.log.Infow("example lot already present")
	}

	s.log.Infow("example data seeded")
	return nil
}

// SeedRandom generates count mine sites, each with one lot registered
// against it.
func (s *Seeder) SeedRandom(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		site := s.randomMineSite(i)
		created, err := s.mineSites.Create(ctx, site)
		if err != nil {
			if mindata.IsConflictError(err) {
				continue
			}
			return fmt.Errorf("seed random mine site %d: %w", i, err)
		}

		lot := s.randomLot(i, strField(created, "icglrId"))
		if _, err := s.lots.Create(ctx, lot); err != nil && !mindata.IsConflictError(err) {
			return fmt.Errorf("seed random lot %d: %w", i, err)
		}
	}
	s.log.Infow("random data seeded", "count", count)
	return nil
}

// ExampleMineSite returns the reference mine site document.
func ExampleMineSite() map[string]any {
	return map[string]any{
		"icglrId":             "RWA-MS-0001",
		"addressCountry":      "RW",
		"nationalId":          "MS-RULINDO-017",
		"certificationStatus": 1,
		"activityStatus":      1,
		"allowedTags":         "iTSCi",
		"mineral":             []any{"cassiterite", "coltan"},
		"owner":               exampleOwner(),
		"mineSiteLocation": map[string]any{
			"geolocalization": map[string]any{
				"lat":  -1.7271,
				"long": 29.9941,
			},
			"localGeographicDesignation": map[string]any{
				"country":               "RW",
				"subnationalDivisionL1": "North",
				"addressLocalityText":   "Rulindo",
			},
			"nationalCadasterLocalization": "UPI 4/03/11/02/158",
			"altitude":                     1845,
		},
		"minesLocations": []any{
			map[string]any{"lat": -1.7269, "long": 29.9938},
			map[string]any{"lat": -1.7284, "long": 29.9957},
		},
		"license": []any{
			map[string]any{
				"licenseType":   2,
				"licenseId":     "RMB-LIC-2019-114",
				"owner":         exampleOwner(),
				"appliedDate":   "2019-02-11",
				"grantedDate":   "2019-06-30",
				"expiringDate":  "2034-06-30",
				"licenseStatus": 1,
			},
		},
		"inspection": []any{
			map[string]any{
				"inspectionId":       "INSP-2024-0088",
				"inspectionDate":     "2024-09-12",
				"inspectionResult":   1,
				"inspectorName":      "J. Mukandayisenga",
				"inspectorPosition":  "Senior Inspector",
				"governmentAgency":   "RMB",
				"certificationStatus": 1,
				"activityStatus":     1,
			},
		},
		"statusChange": []any{
			map[string]any{
				"dateOfChange": "2024-09-12",
				"newStatus":    1,
			},
		},
	}
}

// ExampleExportCertificate returns the reference export certificate.
func ExampleExportCertificate() map[string]any {
	return map[string]any{
		"issuingCountry":              "RW",
		"identifier":                  "RW-EC-2025-000321",
		"exporter":                    exampleOwner(),
		"importer":                    exampleImporter(),
		"lotNumber":                   "RWA-LOT-2025-0001",
		"typeOfOre":                   "cassiterite",
		"lotWeight":                   24000,
		"lotWeightUOM":                "kg",
		"memberStateIssuingAuthority": "Rwanda Mines, Petroleum and Gas Board",
		"dateOfIssuance":              "2025-03-18",
		"oreOrigin":                   "RW",
		"countryOfDestination":        "MY",
	}
}

// ExampleLot returns the reference chain of custody lot.
func ExampleLot() map[string]any {
	return map[string]any{
		"lotNumber":            "RWA-LOT-2025-0001",
		"dateRegistration":     "2025-03-02",
		"timeRegistration":     "10:45:00",
		"creator":              exampleOwner(),
		"creatorRole":          []any{1},
		"mineral":              "cassiterite",
		"concentration":        72,
		"mass":                 24000,
		"unitOfMeasurement":    "kg",
		"price":                312000,
		"originatingOperation": []any{1},
		"mineSiteId":           "RWA-MS-0001",
		"exportCertificateId":  "RW:RW-EC-2025-000321",
		"tag": map[string]any{
			"identifier":        "ITSCI-RW-88412903",
			"issuer":            exampleOwner(),
			"issueDate":         "2025-03-02",
			"issueTime":         "10:40:00",
			"representativeRMB": "C. Ndoli",
			"tagType":           "mine",
		},
		"taxPaid": []any{
			map[string]any{
				"taxType":          "royalty",
				"taxAmount":        9360,
				"currency":         "USD",
				"taxAuthority":     "Rwanda Revenue Authority",
				"taxPaidDate":      "2025-03-10",
				"receiptReference": "RRA-2025-0045112",
			},
		},
	}
}

func exampleOwner() map[string]any {
	return map[string]any{
		"identifier":   "RW-BE-100045",
		"name":         "Rulindo Mining Cooperative",
		"tin":          "102345678",
		"rdbNumber":    "RDB-48812",
		"businessType": 2,
		"legalAddress": map[string]any{
			"country":               "RW",
			"subnationalDivisionL1": "Kigali",
			"addressLocalityText":   "Nyarugenge",
			"streetAddress":         "KN 3 Ave 21",
		},
		"physicalAddress": map[string]any{
			"country":               "RW",
			"subnationalDivisionL1": "North",
			"addressLocalityText":   "Rulindo",
		},
		"contactDetails": map[string]any{
			"legalRepresentative": "A. Uwase",
			"contactPhoneNumber":  "+250788123456",
			"contactEmail":        "info@rulindomining.rw",
		},
	}
}

func exampleImporter() map[string]any {
	return map[string]any{
		"identifier":   "MY-BE-774210",
		"name":         "Straits Tin Refining Sdn Bhd",
		"tin":          "MY4455812",
		"businessType": 1,
		"legalAddress": map[string]any{
			"country":               "MY",
			"subnationalDivisionL1": "Penang",
			"addressLocalityText":   "Butterworth",
		},
		"contactDetails": map[string]any{
			"legalRepresentative": "L. Tan",
			"contactPhoneNumber":  "+60412345678",
			"contactEmail":        "imports@straitstin.example",
		},
	}
}

func (s *Seeder) randomMineSite(i int) map[string]any {
	f := s.faker
	country := "RW"
	minerals := []string{"cassiterite", "coltan", "wolframite", "gold"}
	return map[string]any{
		"icglrId":             fmt.Sprintf("RWA-MS-%04d", 1000+i),
		"addressCountry":      country,
		"nationalId":          fmt.Sprintf("MS-%s-%03d", f.City(), f.Number(1, 999)),
		"certificationStatus": f.Number(1, 3),
		"activityStatus":      f.Number(1, 2),
		"mineral":             []any{minerals[f.Number(0, len(minerals)-1)]},
		"owner":               s.randomBusinessEntity(fmt.Sprintf("RW-BE-%06d", 200000+i)),
		"mineSiteLocation": map[string]any{
			"geolocalization": map[string]any{
				"lat":  f.Float64Range(-2.8, -1.1),
				"long": f.Float64Range(28.9, 30.9),
			},
			"localGeographicDesignation": map[string]any{
				"country":               country,
				"subnationalDivisionL1": f.State(),
				"addressLocalityText":   f.City(),
			},
		},
		"statusChange": []any{
			map[string]any{
				"dateOfChange": f.DateRange(dateAt(2020, 1, 1), dateAt(2025, 8, 1)).Format("2006-01-02"),
				"newStatus":    f.Number(1, 3),
			},
		},
	}
}

func (s *Seeder) randomLot(i int, mineSiteID string) map[string]any {
	f := s.faker
	return map[string]any{
		"lotNumber":            fmt.Sprintf("RWA-LOT-%04d", 1000+i),
		"dateRegistration":     f.DateRange(dateAt(2024, 1, 1), dateAt(2025, 8, 1)).Format("2006-01-02"),
		"timeRegistration":     fmt.Sprintf("%02d:%02d:00", f.Number(6, 17), f.Number(0, 59)),
		"creator":              s.randomBusinessEntity(fmt.Sprintf("RW-BE-%06d", 300000+i)),
		"creatorRole":          []any{f.Number(1, 8)},
		"mineral":              "cassiterite",
		"concentration":        f.Number(40, 78),
		"mass":                 f.Number(500, 30000),
		"unitOfMeasurement":    "kg",
		"price":                f.Number(5000, 500000),
		"originatingOperation": []any{f.Number(1, 8)},
		"mineSiteId":           mineSiteID,
	}
}

func dateAt(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func (s *Seeder) randomBusinessEntity(identifier string) map[string]any {
	f := s.faker
	return map[string]any{
		"identifier":   identifier,
		"name":         f.Company(),
		"tin":          fmt.Sprintf("%09d", f.Number(100000000, 999999999)),
		"businessType": f.Number(1, 4),
		"legalAddress": map[string]any{
			"country":               "RW",
			"subnationalDivisionL1": f.State(),
			"addressLocalityText":   f.City(),
			"streetAddress":         f.Street(),
		},
		"contactDetails": map[string]any{
			"legalRepresentative": f.Name(),
			"contactPhoneNumber":  f.Phone(),
			"contactEmail":        f.Email(),
		},
	}
}
