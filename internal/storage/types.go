package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReportSnapshot is a stored, serialized report.
type ReportSnapshot struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Timezone    string          `json:"timezone"`
	GeneratedAt time.Time       `json:"generated_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// SnapshotID derives a stable id from the report kind and window, so
// regenerating a report overwrites the previous snapshot.
func SnapshotID(kind string, start, end time.Time) string {
	name := kind + "/" + start.UTC().Format(time.RFC3339) + "/" + end.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("fleethours:report:"+name)).String()
}
