// Package health probes the metadata/cache store with a write-read-delete
// round trip, so orchestrators can gate investigation runs on store
// availability.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/archhub/investigator/internal/storage"
	"github.com/archhub/investigator/internal/types"
)

// Status is the store's health classification.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Report is the result of one health probe.
type Report struct {
	Status  Status        `json:"status"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message"`
}

// sentinelKey is shaped like a real prompt cache key so the probe
// exercises the same code path as production reads and writes.
const sentinelKey = "_healthcheck_probe_000000_v1"

// degradedThreshold separates a working-but-slow store from a healthy one.
const degradedThreshold = 2 * time.Second

// CheckStore probes the store. A failed write or read reports the store
// as down; a failed cleanup only degrades it.
func CheckStore(ctx context.Context, store storage.PromptCacheStore) Report {
	start := time.Now()

	entry := &types.PromptCacheEntry{
		Content:   "health check",
		StepName:  "_healthcheck",
		Version:   "1",
		Timestamp: start.UTC(),
	}
	if err := store.PutResult(ctx, sentinelKey, entry, time.Minute); err != nil {
		return Report{
			Status:  StatusDown,
			Latency: time.Since(start),
			Message: fmt.Sprintf("store write failed: %v", err),
		}
	}

	got, err := store.GetResult(ctx, sentinelKey)
	if err != nil {
		return Report{
			Status:  StatusDown,
			Latency: time.Since(start),
			Message: fmt.Sprintf("store read failed: %v", err),
		}
	}
	if got == nil || got.Content != entry.Content {
		return Report{
			Status:  StatusDown,
			Latency: time.Since(start),
			Message: "store read did not return the written probe",
		}
	}

	status := StatusHealthy
	message := "store round trip ok"
	if err := store.DeleteResult(ctx, sentinelKey); err != nil {
		status = StatusDegraded
		message = fmt.Sprintf("probe cleanup failed: %v", err)
	}

	latency := time.Since(start)
	if status == StatusHealthy && latency > degradedThreshold {
		status = StatusDegraded
		message = fmt.Sprintf("store round trip slow (%v)", latency)
	}

	return Report{Status: status, Latency: latency, Message: message}
}
