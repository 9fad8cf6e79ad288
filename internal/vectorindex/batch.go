package vectorindex

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"docqa-backend/internal/shared/telemetry"
)

// DefaultBatchSize is the upsert batch size used when none is configured.
const DefaultBatchSize = 100

var retryDelay = 300 * time.Millisecond

// UpsertBatched writes records in sequential batches. A batch failing with a
// transient error is retried once; any other failure aborts the remaining
// batches.
func UpsertBatched(ctx context.Context, idx Index, records []Record, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := records[start:end]

		err := idx.Upsert(ctx, batch)
		if err == nil {
			continue
		}
		if !shouldRetry(err) {
			return err
		}

		telemetry.Warn("vectorindex.upsert_retry", map[string]any{
			"batch_start": start,
			"batch_size":  len(batch),
			"err":         err.Error(),
		})
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := idx.Upsert(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof") {
		return true
	}
	return false
}
