// Package store persists transformed readings and zone metadata.
//
// Three backends share one interface: DuckDB for single-node
// deployments, PostgreSQL for shared ones, and an in-memory store for
// development and tests. The store is the final authority on
// uniqueness: inserts that collide on id or (zone, timestamp) are
// silently skipped, so a pipeline re-run over the same batch is a
// no-op.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"github.com/ajosegun/carbon-pulse/pkg/validate"
)

// ErrNotFound is returned by point lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator for the pipeline and the API.
type Store interface {
	Open(ctx context.Context) error
	Close() error

	// UpsertZones inserts or refreshes zone metadata records.
	UpsertZones(ctx context.Context, zones []v1.ZoneMetadata) error
	// Zones returns all zone metadata keyed by zone code.
	Zones(ctx context.Context) (map[string]v1.ZoneMetadata, error)
	// Zone returns one zone's metadata, or ErrNotFound.
	Zone(ctx context.Context, code string) (*v1.ZoneMetadata, error)

	// InsertReadings persists transformed readings, skipping rows that
	// collide with an existing id or (zone, timestamp). Returns the
	// number of rows actually written.
	InsertReadings(ctx context.Context, readings []v1.TransformedReading) (int, error)
	// Latest returns the most recent reading for a zone, or ErrNotFound.
	Latest(ctx context.Context, zone string) (*v1.TransformedReading, error)
	// History returns a zone's readings in [start, end], oldest first.
	History(ctx context.Context, zone string, start, end time.Time) ([]v1.TransformedReading, error)
	// Window returns all readings with timestamp >= since, across zones.
	Window(ctx context.Context, since time.Time) ([]v1.TransformedReading, error)

	// Keys snapshots the stored ids and (zone, timestamp) pairs for the
	// validation gate's uniqueness pre-check.
	Keys(ctx context.Context) (*validate.KeySet, error)
}

// FromSpec builds the store selected by the monitor's storage block.
// The returned store is not yet opened.
func FromSpec(s v1.Storage) (Store, error) {
	switch s.Type {
	case v1.StorageDuckDB:
		return NewDuckDB(s.Path), nil
	case v1.StoragePostgres:
		return NewPostgres(s.DSN), nil
	case v1.StorageMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unsupported type %q", s.Type)
	}
}
