package temporal

import (
	"context"
	"log/slog"
	"sort"

	"github.com/patrickmn/go-cache"
)

// MemoryStorage implements StorageService on an in-process cache.
// Entries never expire.
type MemoryStorage struct {
	logger *slog.Logger
	cache  *cache.Cache
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage(logger *slog.Logger) *MemoryStorage {
	return &MemoryStorage{
		logger: logger,
		cache:  cache.New(cache.NoExpiration, 0),
	}
}

// SaveSeries stores document under seriesID, replacing any previous one
func (m *MemoryStorage) SaveSeries(ctx context.Context, seriesID string, document []byte) error {
	info, err := describeDocument(document)
	if err != nil {
		return err
	}
	m.cache.Set(seriesID, compressDocument(document), cache.NoExpiration)
	m.logger.Debug("Saved series", "seriesID", seriesID, "kind", info.Kind, "fingerprint", info.Fingerprint)
	return nil
}

// LoadSeries returns the document stored under seriesID
func (m *MemoryStorage) LoadSeries(ctx context.Context, seriesID string) ([]byte, error) {
	data, ok := m.cache.Get(seriesID)
	if !ok {
		return nil, ErrSeriesNotFound
	}
	return decompressDocument(data.([]byte))
}

// DeleteSeries removes the document stored under seriesID
func (m *MemoryStorage) DeleteSeries(ctx context.Context, seriesID string) error {
	if _, ok := m.cache.Get(seriesID); !ok {
		return ErrSeriesNotFound
	}
	m.cache.Delete(seriesID)
	return nil
}

// ListSeries returns the stored series ids in sorted order
func (m *MemoryStorage) ListSeries(ctx context.Context) ([]string, error) {
	items := m.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SeriesCount returns the number of stored series (for testing)
func (m *MemoryStorage) SeriesCount() int {
	return m.cache.ItemCount()
}
