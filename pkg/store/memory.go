package store

import (
	"context"
	"sort"
	"sync"
	"time"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"github.com/ajosegun/carbon-pulse/pkg/validate"
)

// ═══════════════════════════════════════════
// In-Memory Store
// ═══════════════════════════════════════════

// Memory is a map-backed store for development and tests. Safe for
// concurrent use; everything is lost on Close.
type Memory struct {
	mu       sync.RWMutex
	zones    map[string]v1.ZoneMetadata
	readings []v1.TransformedReading
	byID     map[string]bool
	byKey    map[validate.Key]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		zones: make(map[string]v1.ZoneMetadata),
		byID:  make(map[string]bool),
		byKey: make(map[validate.Key]bool),
	}
}

func (m *Memory) Open(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

func (m *Memory) UpsertZones(ctx context.Context, zones []v1.ZoneMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, z := range zones {
		if existing, ok := m.zones[z.Zone]; ok {
			z.CreatedAt = existing.CreatedAt
		} else if z.CreatedAt.IsZero() {
			z.CreatedAt = now
		}
		z.UpdatedAt = now
		m.zones[z.Zone] = z
	}
	return nil
}

func (m *Memory) Zones(ctx context.Context) (map[string]v1.ZoneMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]v1.ZoneMetadata, len(m.zones))
	for code, z := range m.zones {
		out[code] = z
	}
	return out, nil
}

func (m *Memory) Zone(ctx context.Context, code string) (*v1.ZoneMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &z, nil
}

func (m *Memory) InsertReadings(ctx context.Context, readings []v1.TransformedReading) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, r := range readings {
		key := validate.Key{Zone: r.Zone, Timestamp: r.Timestamp.UTC()}
		if m.byID[r.ID] || m.byKey[key] {
			continue
		}
		m.byID[r.ID] = true
		m.byKey[key] = true
		m.readings = append(m.readings, r)
		inserted++
	}
	return inserted, nil
}

func (m *Memory) Latest(ctx context.Context, zone string) (*v1.TransformedReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *v1.TransformedReading
	for i := range m.readings {
		r := &m.readings[i]
		if r.Zone != zone {
			continue
		}
		if latest == nil || r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (m *Memory) History(ctx context.Context, zone string, start, end time.Time) ([]v1.TransformedReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []v1.TransformedReading
	for _, r := range m.readings {
		if r.Zone != zone {
			continue
		}
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) Window(ctx context.Context, since time.Time) ([]v1.TransformedReading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []v1.TransformedReading
	for _, r := range m.readings {
		if r.Timestamp.Before(since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) Keys(ctx context.Context) (*validate.KeySet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ks := validate.NewKeySet()
	for _, r := range m.readings {
		ks.Add(r.ID, r.Zone, r.Timestamp)
	}
	return ks, nil
}
