package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	set := loadTestSchemas(t)
	v, err := NewValidator(set, testLogger())
	require.NoError(t, err)
	return v
}

func TestValidatorNames(t *testing.T) {
	v := newTestValidator(t)
	names := v.Names()

	// Bare file name aliases.
	assert.Contains(t, names, "mine-site")
	assert.Contains(t, names, "lot")
	assert.Contains(t, names, "export-certificate")

	// Path-derived aliases.
	assert.Contains(t, names, "chain-of-custody-lot")
	assert.Contains(t, names, "core-common")
}

func TestValidateMineSite(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate(ExampleMineSite(), "mine-site")
	assert.True(t, result.Valid, "errors: %v", result.Errors)

	incomplete := map[string]any{
		"icglrId": "RWA-MS-9999",
	}
	result = v.Validate(incomplete, "mine-site")
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateMineSiteLicenseCodes(t *testing.T) {
	v := newTestValidator(t)

	site := ExampleMineSite()
	licenses, _ := site["license"].([]any)
	require.Len(t, licenses, 1)
	lic, _ := licenses[0].(map[string]any)

	lic["licenseType"] = "exploitation"
	lic["licenseStatus"] = "active"
	result := v.Validate(site, "mine-site")
	assert.False(t, result.Valid, "licenseType and licenseStatus are integer codes")

	lic["licenseType"] = 2
	lic["licenseStatus"] = 1
	result = v.Validate(site, "mine-site")
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidateLot(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate(ExampleLot(), "lot")
	assert.True(t, result.Valid, "errors: %v", result.Errors)

	bad := ExampleLot()
	delete(bad, "creator")
	result = v.Validate(bad, "lot")
	assert.False(t, result.Valid)
}

func TestValidateExportCertificate(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate(ExampleExportCertificate(), "export-certificate")
	assert.True(t, result.Valid, "errors: %v", result.Errors)

	bad := ExampleExportCertificate()
	bad["lotWeight"] = "heavy"
	result = v.Validate(bad, "export-certificate")
	assert.False(t, result.Valid)
}

func TestValidateUnknownSchema(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate(map[string]any{}, "no-such-schema")
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "not found")
}

func TestValidateJSON(t *testing.T) {
	v := newTestValidator(t)

	result := v.ValidateJSON([]byte(`{"identifier":`), "mine-site")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0].Message, "invalid JSON")
}
