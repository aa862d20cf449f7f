package common

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CacheKey derives the bit-exact content-addressed cache key:
// sha256(canonicalJSON({content_hash, provider, model, operation, ...extra}))
// where content_hash = sha256(content) as a lowercase hex digest, and
// canonical JSON means lexicographically sorted keys with no insignificant
// whitespace.
func CacheKey(content, provider, model, operation string, extra map[string]any) string {
	contentHash := sha256Hex(content)

	fields := map[string]any{
		"content_hash": contentHash,
		"provider":     provider,
		"model":        model,
		"operation":    operation,
	}
	for k, v := range extra {
		fields[k] = v
	}

	canonical := canonicalJSON(fields)
	return sha256Hex(canonical)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// canonicalJSON serializes m with lexicographically sorted keys and no
// insignificant whitespace. encoding/json sorts string map keys and emits
// no insignificant whitespace by default, at every nesting level, so a
// direct Marshal is already canonical.
func canonicalJSON(m map[string]any) string {
	b, _ := json.Marshal(m)
	return string(b)
}
