// Package sqlgen turns validation intents into executable Athena SQL through
// an LLM provider, absorbing malformed responses, repairing dialect defects,
// memoizing results in a persistent cache, and falling back to deterministic
// queries when generation cannot be trusted.
package sqlgen

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/lakecheck/lakecheck/pkg/schema"
)

// Request describes one validation intent. Requests whose normalized fields
// match share a cache key.
type Request struct {
	LegacyTable       string
	ProdTable         string
	ValidationRequest string
	DateColumn        string
	StartDate         string
	EndDate           string
	SchemaContext     map[string][]schema.Column
}

// Origin records where a generation result came from.
type Origin string

const (
	OriginCache     Origin = "cache"
	OriginGenerated Origin = "generated"
	OriginFallback  Origin = "fallback"
)

// Result is the externally visible output of generation. ProdSQL is empty for
// unified comparison queries and single-table requests.
type Result struct {
	LegacySQL   string
	ProdSQL     string
	Explanation string
	Origin      Origin
}

// canonicalRequest is the normalized form hashed into a cache key. Fields are
// declared in sorted JSON-key order so the serialization is canonical.
type canonicalRequest struct {
	DateColumn        *string `json:"date_column"`
	EndDate           *string `json:"end_date"`
	LegacyTable       string  `json:"legacy_table"`
	ProdTable         string  `json:"prod_table"`
	SchemaSignature   string  `json:"schema_signature,omitempty"`
	StartDate         *string `json:"start_date"`
	ValidationRequest string  `json:"validation_request"`
}

// CacheKey returns the SHA-256 fingerprint of the normalized request.
func (r Request) CacheKey() string {
	canonical := canonicalRequest{
		LegacyTable:       strings.ToLower(strings.TrimSpace(r.LegacyTable)),
		ProdTable:         strings.ToLower(strings.TrimSpace(r.ProdTable)),
		ValidationRequest: strings.ToLower(strings.TrimSpace(r.ValidationRequest)),
		DateColumn:        normalizeOptional(r.DateColumn, true),
		StartDate:         normalizeOptional(r.StartDate, false),
		EndDate:           normalizeOptional(r.EndDate, false),
		SchemaSignature:   schemaSignature(r.SchemaContext),
	}

	encoded, _ := json.Marshal(canonical)
	digest := sha256.Sum256(encoded)
	return hex.EncodeToString(digest[:])
}

func normalizeOptional(s string, lower bool) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if lower {
		s = strings.ToLower(s)
	}
	return &s
}

// schemaSignature reduces schema context to a sorted per-table column-name
// signature. Column order and types are not part of cache identity.
func schemaSignature(schemaContext map[string][]schema.Column) string {
	if len(schemaContext) == 0 {
		return ""
	}

	parts := make([]string, 0, len(schemaContext))
	for table, columns := range schemaContext {
		names := make([]string, 0, len(columns))
		for _, col := range columns {
			names = append(names, col.Name)
		}
		sort.Strings(names)
		parts = append(parts, table+":"+strings.Join(names, ","))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
