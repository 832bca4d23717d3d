package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Names() NameStore
	Reports() ReportStore
}

// NameKind separates the display name namespaces.
type NameKind string

const (
	NameTarget   NameKind = "target"
	NameLocation NameKind = "location"
)

// ParseNameKind validates a name kind.
func ParseNameKind(s string) (NameKind, error) {
	switch NameKind(strings.ToLower(strings.TrimSpace(s))) {
	case NameTarget:
		return NameTarget, nil
	case NameLocation:
		return NameLocation, nil
	default:
		return "", fmt.Errorf("unknown name kind: %q (must be target or location)", s)
	}
}

// NameStore manages display names for targets and locations.
type NameStore interface {
	SetName(ctx context.Context, kind NameKind, id, name string) error
	DeleteName(ctx context.Context, kind NameKind, id string) error
	// GetNames returns the names that exist; unknown ids are absent.
	GetNames(ctx context.Context, kind NameKind, ids []string) (map[string]string, error)
	ListNames(ctx context.Context, kind NameKind) (map[string]string, error)
}

// ReportStore manages generated report snapshots.
type ReportStore interface {
	SaveReport(ctx context.Context, snapshot ReportSnapshot, ttl time.Duration) error
	GetReport(ctx context.Context, id string) (*ReportSnapshot, error)
	// ListReports returns snapshots of a kind whose window starts in [from, to),
	// oldest first, without payloads.
	ListReports(ctx context.Context, kind string, from, to time.Time) ([]ReportSnapshot, error)
}
