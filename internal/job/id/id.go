// Package id provides unique identifier generation for local tasks.
package id

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix marks every local task id.
const Prefix = "job_"

// Generate creates a new unique task ID.
// Format: job_<utc timestamp>_<random>
// Example: job_20251019_142530_9f86d081884c
func Generate() string {
	return generateAt(time.Now())
}

func generateAt(t time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return Prefix + t.UTC().Format("20060102_150405") + "_" + random
}
