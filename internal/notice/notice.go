// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notice loads deficiency items from an examiner's notice file.
// The CLI accepts pre-extracted items as YAML or JSON; vision-based PDF
// extraction happens upstream and hands the pipeline this materialized form.
package notice

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	yaml "go.yaml.in/yaml/v3"

	"github.com/pdiddy/permit-engine/pkg/types"
)

// defaultConfidence is assigned to items whose extractor confidence was not
// recorded.
const defaultConfidence = 0.8

// noticeFile is the on-disk shape of an extracted notice.
type noticeFile struct {
	PropertyAddress string                 `json:"property_address" yaml:"property_address"`
	SuiteType       string                 `json:"suite_type" yaml:"suite_type"`
	Items           []types.DeficiencyItem `json:"items" yaml:"items"`
}

// Notice is a loaded examiner's notice ready for a pipeline run.
type Notice struct {
	PropertyAddress string
	SuiteType       types.SuiteType
	Items           []types.DeficiencyItem
}

// Load reads a notice from path, decoding by extension (.yaml, .yml, or
// .json). Items get generated IDs when missing, dense order indexes, and the
// session id of the run they are about to join.
func Load(path string, sessionID uuid.UUID) (Notice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Notice{}, fmt.Errorf("reading notice file: %w", err)
	}

	var nf noticeFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &nf); err != nil {
			return Notice{}, fmt.Errorf("decoding notice YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &nf); err != nil {
			return Notice{}, fmt.Errorf("decoding notice JSON: %w", err)
		}
	default:
		return Notice{}, fmt.Errorf("unsupported notice format %q (want .yaml, .yml, or .json)", ext)
	}

	suite, err := ParseSuiteType(nf.SuiteType)
	if err != nil {
		return Notice{}, err
	}

	items, err := normalizeItems(nf.Items, sessionID)
	if err != nil {
		return Notice{}, err
	}

	return Notice{
		PropertyAddress: nf.PropertyAddress,
		SuiteType:       suite,
		Items:           items,
	}, nil
}

// ParseSuiteType maps user input onto a SuiteType.
func ParseSuiteType(s string) (types.SuiteType, error) {
	switch types.SuiteType(strings.ToUpper(strings.TrimSpace(s))) {
	case types.SuiteGarden:
		return types.SuiteGarden, nil
	case types.SuiteLaneway:
		return types.SuiteLaneway, nil
	default:
		return "", fmt.Errorf("invalid suite type %q (want GARDEN or LANEWAY)", s)
	}
}

// normalizeItems fills in identifiers and ordering the extractor may have
// omitted and rejects items the pipeline cannot route on.
func normalizeItems(items []types.DeficiencyItem, sessionID uuid.UUID) ([]types.DeficiencyItem, error) {
	out := make([]types.DeficiencyItem, 0, len(items))
	for i, item := range items {
		if item.RawText == "" {
			return nil, fmt.Errorf("notice item %d has no raw text", i)
		}
		item.Category = types.DeficiencyCategory(strings.ToUpper(strings.TrimSpace(string(item.Category))))
		if !types.KnownCategory(item.Category) {
			return nil, fmt.Errorf("notice item %d has unknown category %q", i, item.Category)
		}
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.SessionID = sessionID
		item.OrderIndex = i
		if item.Confidence == 0 {
			item.Confidence = defaultConfidence
		}
		out = append(out, item)
	}
	return out, nil
}
