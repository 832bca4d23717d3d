package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/fleethours/internal/storage"
)

// parseReportSnapshot converts a Redis hash to ReportSnapshot
func parseReportSnapshot(data map[string]string) (*storage.ReportSnapshot, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	windowStart, err := time.Parse(time.RFC3339Nano, data["window_start"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse window_start: %w", err)
	}

	windowEnd, err := time.Parse(time.RFC3339Nano, data["window_end"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse window_end: %w", err)
	}

	generatedAt, err := time.Parse(time.RFC3339Nano, data["generated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated_at: %w", err)
	}

	snapshot := &storage.ReportSnapshot{
		ID:          data["id"],
		Kind:        data["kind"],
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Timezone:    data["timezone"],
		GeneratedAt: generatedAt,
	}
	if payload, ok := data["payload"]; ok && payload != "" {
		snapshot.Payload = json.RawMessage(payload)
	}
	return snapshot, nil
}
