package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/fleethours/internal/storage"
	"github.com/redis/go-redis/v9"
)

var saveReport = redis.NewScript(saveReportScript)

// summaryFields are read when listing; payloads can be large
var summaryFields = []string{"id", "kind", "window_start", "window_end", "timezone", "generated_at"}

type reportStore struct {
	client *redis.Client
}

func reportKey(id string) string {
	return fmt.Sprintf("fleethours:report:%s", id)
}

func reportIndexKey(kind string) string {
	return fmt.Sprintf("fleethours:reports:%s", kind)
}

// SaveReport stores a snapshot, replacing one with the same id
func (s *reportStore) SaveReport(ctx context.Context, snapshot storage.ReportSnapshot, ttl time.Duration) error {
	if snapshot.ID == "" || snapshot.Kind == "" {
		return fmt.Errorf("snapshot id and kind are required")
	}

	keys := []string{reportKey(snapshot.ID), reportIndexKey(snapshot.Kind)}
	args := []interface{}{
		snapshot.ID,
		snapshot.Kind,
		snapshot.WindowStart.Format(time.RFC3339Nano),
		snapshot.WindowEnd.Format(time.RFC3339Nano),
		snapshot.Timezone,
		snapshot.GeneratedAt.Format(time.RFC3339Nano),
		string(snapshot.Payload),
		snapshot.WindowStart.Unix(),
		int64(ttl.Seconds()),
	}

	return saveReport.Run(ctx, s.client, keys, args...).Err()
}

// GetReport retrieves a snapshot with its payload
func (s *reportStore) GetReport(ctx context.Context, id string) (*storage.ReportSnapshot, error) {
	data, err := s.client.HGetAll(ctx, reportKey(id)).Result()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	return parseReportSnapshot(data)
}

// ListReports returns snapshot summaries ordered by window start
func (s *reportStore) ListReports(ctx context.Context, kind string, from, to time.Time) ([]storage.ReportSnapshot, error) {
	ids, err := s.client.ZRangeByScore(ctx, reportIndexKey(kind), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: "(" + strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.ReportSnapshot{}, nil
	}

	// Use pipeline for batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, reportKey(id), summaryFields...)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	snapshots := make([]storage.ReportSnapshot, 0, len(ids))
	for _, cmd := range cmds {
		values, err := cmd.Result()
		if err != nil {
			continue
		}

		data := make(map[string]string, len(summaryFields))
		for i, v := range values {
			if str, ok := v.(string); ok {
				data[summaryFields[i]] = str
			}
		}
		// Expired snapshot still in the index
		if len(data) == 0 {
			continue
		}

		snapshot, err := parseReportSnapshot(data)
		if err == nil {
			snapshots = append(snapshots, *snapshot)
		}
	}

	return snapshots, nil
}
