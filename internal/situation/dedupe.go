package situation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ashita-ai/beacon/internal/model"
)

// DedupeKey returns the identity two evaluations share when they measure the
// same KPI for the same principal under the same timeframe and comparison.
// Fields are trimmed and lowercased before hashing.
func DedupeKey(principalID, kpiName string, tf model.Timeframe, ct model.ComparisonType) string {
	parts := []string{principalID, kpiName, string(tf), string(ct)}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
