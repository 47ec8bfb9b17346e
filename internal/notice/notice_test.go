// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/permit-engine/pkg/types"
)

func writeNotice(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const yamlNotice = `property_address: 21 Maple Ave
suite_type: garden
items:
  - category: ZONING
    raw_text: Rear setback below 1.5m minimum.
    extracted_action: Revise site plan.
    confidence: 0.95
  - category: fire_access
    raw_text: Fire access path obstructed.
`

func TestLoad_YAML(t *testing.T) {
	sessionID := uuid.New()
	n, err := Load(writeNotice(t, "notice.yaml", yamlNotice), sessionID)
	require.NoError(t, err)

	assert.Equal(t, "21 Maple Ave", n.PropertyAddress)
	assert.Equal(t, types.SuiteGarden, n.SuiteType)
	require.Len(t, n.Items, 2)

	first := n.Items[0]
	assert.Equal(t, types.CategoryZoning, first.Category)
	assert.Equal(t, "Rear setback below 1.5m minimum.", first.RawText)
	assert.Equal(t, 0.95, first.Confidence)
	assert.Equal(t, sessionID, first.SessionID)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, 0, first.OrderIndex)

	second := n.Items[1]
	// Category is upper-cased, missing confidence gets the default,
	// and order indexes are dense.
	assert.Equal(t, types.CategoryFireAccess, second.Category)
	assert.Equal(t, defaultConfidence, second.Confidence)
	assert.Equal(t, 1, second.OrderIndex)
}

func TestLoad_JSON(t *testing.T) {
	content := `{
		"property_address": "5 Lane Way",
		"suite_type": "LANEWAY",
		"items": [
			{"category": "TREE_PROTECTION", "raw_text": "Construction within the TPZ of a 40cm DBH maple."}
		]
	}`
	n, err := Load(writeNotice(t, "notice.json", content), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, types.SuiteLaneway, n.SuiteType)
	require.Len(t, n.Items, 1)
	assert.Equal(t, types.CategoryTreeProtection, n.Items[0].Category)
}

func TestLoad_PreservesExplicitID(t *testing.T) {
	id := uuid.New()
	content := `{
		"property_address": "a",
		"suite_type": "GARDEN",
		"items": [{"id": "` + id.String() + `", "category": "ZONING", "raw_text": "x"}]
	}`
	n, err := Load(writeNotice(t, "notice.json", content), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, id, n.Items[0].ID)
}

func TestLoad_UnknownCategory(t *testing.T) {
	content := `{"property_address": "a", "suite_type": "GARDEN", "items": [{"category": "HERITAGE", "raw_text": "x"}]}`
	_, err := Load(writeNotice(t, "notice.json", content), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HERITAGE")
}

func TestLoad_MissingRawText(t *testing.T) {
	content := `{"property_address": "a", "suite_type": "GARDEN", "items": [{"category": "ZONING"}]}`
	_, err := Load(writeNotice(t, "notice.json", content), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw text")
}

func TestLoad_InvalidSuiteType(t *testing.T) {
	content := `{"property_address": "a", "suite_type": "COACH_HOUSE", "items": []}`
	_, err := Load(writeNotice(t, "notice.json", content), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COACH_HOUSE")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(writeNotice(t, "notice.txt", "whatever"), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported notice format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), uuid.New())
	require.Error(t, err)
}

func TestParseSuiteType(t *testing.T) {
	for in, want := range map[string]types.SuiteType{
		"garden":   types.SuiteGarden,
		"GARDEN":   types.SuiteGarden,
		" laneway": types.SuiteLaneway,
	} {
		got, err := ParseSuiteType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseSuiteType("duplex")
	assert.Error(t, err)
}
