package model

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Well-known record field names shared by sources and sinks.
const (
	FieldHash       = "hash"
	FieldURL        = "url"
	FieldScrapedAt  = "scraped_at"
	FieldUploadedAt = "uploaded_at"
)

// Record is one scraped entity: an open mapping from field name to value.
// Field names become JSON keys in file artifacts and document keys in
// database sinks. Every record produced by a source carries a stable
// identifier under FieldHash.
type Record map[string]any

// ID returns the record's deduplication identifier: the content hash when
// present, otherwise the URL. Records with neither return "".
func (r Record) ID() string {
	if h, ok := r[FieldHash].(string); ok && h != "" {
		return h
	}
	if u, ok := r[FieldURL].(string); ok {
		return u
	}
	return ""
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Hash derives a stable identifier from the given parts: each part is
// lowercased and trimmed, the parts are joined with "|", and the SHA-256
// digest is base64-encoded. This matches the identifiers already present in
// previously exported artifacts, so re-uploads dedupe against old data.
func Hash(parts ...string) string {
	norm := make([]string, len(parts))
	for i, p := range parts {
		norm[i] = strings.ToLower(strings.TrimSpace(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(norm, "|")))
	return base64.StdEncoding.EncodeToString(sum[:])
}
