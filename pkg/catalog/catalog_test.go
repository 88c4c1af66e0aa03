/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogDoc = `
https://cmr.earthdata.nasa.gov:
  - name: harmony/gdal-subsetter
    type: turbo
    umm_s: S100-PROV
    collections:
      - id: C1-PROV
      - id: C2-PROV
        variables: [V1, V2]
        granule_limit: 2000
    capabilities:
      subsetting:
        bbox: true
        variable: true
      output_formats:
        - image/tiff
        - image/png
    batch_size: 2000
    steps:
      - image: !Env QUERY_CMR_IMAGE
      - image: ghcr.io/nasa/harmony-gdal:latest
  - name: harmony/disabled-service
    type: turbo
    umm_s: S101-PROV
    enabled: !Env DISABLED_SERVICE_ENABLED
    collections:
      - id: C3-PROV
    capabilities:
      output_formats:
        - application/x-netcdf4

https://cmr.uat.earthdata.nasa.gov:
  - name: harmony/uat-only
    type: http
    umm_s: S200-PROV
    collections:
      - id: C9-PROV
    capabilities:
      output_formats:
        - image/tiff
`

func parseTestCatalog(t *testing.T) *Catalog {
	t.Setenv("QUERY_CMR_IMAGE", "harmonyservices/query-cmr:latest")
	t.Setenv("DISABLED_SERVICE_ENABLED", "false")
	c, err := Parse([]byte(catalogDoc), "https://cmr.earthdata.nasa.gov", 350000)
	require.NoError(t, err)
	return c
}

func TestParseResolvesEnvAndDropsDisabled(t *testing.T) {
	c := parseTestCatalog(t)
	services := c.Services()
	require.Len(t, services, 1)

	svc := services[0]
	assert.Equal(t, "harmony/gdal-subsetter", svc.Name)
	assert.Equal(t, "harmonyservices/query-cmr:latest", svc.Steps[0].Image)
	assert.Equal(t, []string{"image/tiff", "image/png"}, svc.Capabilities.OutputFormats)
	require.NotNil(t, svc.BatchSize)
	assert.Equal(t, 2000, *svc.BatchSize)
}

func TestParseEnvTagAsInteger(t *testing.T) {
	t.Setenv("GDAL_BATCH_SIZE", "500")
	doc := `
https://cmr.earthdata.nasa.gov:
  - name: harmony/gdal-subsetter
    type: turbo
    umm_s: S100-PROV
    batch_size: !Env GDAL_BATCH_SIZE
    capabilities:
      output_formats: [image/tiff]
`
	c, err := Parse([]byte(doc), "https://cmr.earthdata.nasa.gov", 350000)
	require.NoError(t, err)
	svc, ok := c.Lookup("harmony/gdal-subsetter")
	require.True(t, ok)
	require.NotNil(t, svc.BatchSize)
	assert.Equal(t, 500, *svc.BatchSize)
}

func TestParseUnsetEnvTagOnTypedField(t *testing.T) {
	doc := `
https://cmr.earthdata.nasa.gov:
  - name: harmony/gdal-subsetter
    type: turbo
    umm_s: S100-PROV
    batch_size: !Env CATALOG_TEST_UNSET_BATCH_SIZE
    enabled: !Env CATALOG_TEST_UNSET_ENABLED
    capabilities:
      output_formats: [image/tiff]
`
	c, err := Parse([]byte(doc), "https://cmr.earthdata.nasa.gov", 350000)
	require.NoError(t, err)
	svc, ok := c.Lookup("harmony/gdal-subsetter")
	require.True(t, ok)
	assert.Nil(t, svc.BatchSize)
}

func TestParseUnknownEnvironment(t *testing.T) {
	_, err := Parse([]byte(catalogDoc), "https://cmr.sit.earthdata.nasa.gov", 350000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no services are configured")
}

func TestParseValidation(t *testing.T) {
	missingUmmS := `
https://cmr.earthdata.nasa.gov:
  - name: harmony/broken
    type: turbo
    capabilities:
      output_formats: [image/tiff]
`
	_, err := Parse([]byte(missingUmmS), "https://cmr.earthdata.nasa.gov", 350000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "umm_s")

	badBatchSize := `
https://cmr.earthdata.nasa.gov:
  - name: harmony/broken
    type: turbo
    umm_s: S1-PROV
    batch_size: 0
    capabilities:
      output_formats: [image/tiff]
`
	_, err = Parse([]byte(badBatchSize), "https://cmr.earthdata.nasa.gov", 350000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestServicesReturnsCopies(t *testing.T) {
	c := parseTestCatalog(t)
	first := c.Services()
	first[0].Name = "mutated"
	first[0].Collections[0].ID = "mutated"

	again := c.Services()
	assert.Equal(t, "harmony/gdal-subsetter", again[0].Name)
	assert.Equal(t, "C1-PROV", again[0].Collections[0].ID)
}

func TestLookup(t *testing.T) {
	c := parseTestCatalog(t)
	svc, ok := c.Lookup("harmony/gdal-subsetter")
	require.True(t, ok)

	entry := svc.CollectionEntryFor("C2-PROV")
	require.NotNil(t, entry)
	assert.Equal(t, []string{"V1", "V2"}, entry.Variables)

	_, ok = c.Lookup("harmony/uat-only")
	assert.False(t, ok)
}

func TestNoOpService(t *testing.T) {
	svc := NoOpService("no operations can be performed on C1-PROV")
	assert.True(t, svc.IsNoOp())
	assert.Equal(t, NoOpServiceName, svc.Name)
	assert.Equal(t, "no operations can be performed on C1-PROV", svc.Message)
}
