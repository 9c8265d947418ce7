package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SeriesDocument is a row of the series_documents table
type SeriesDocument struct {
	ID          string `gorm:"primaryKey"`
	Kind        string `gorm:"not null"`
	Document    []byte `gorm:"not null"`
	Fingerprint string `gorm:"not null"`
	UpdatedAt   time.Time
}

// TableName overrides the gorm default
func (SeriesDocument) TableName() string {
	return "series_documents"
}

// SQLStorage implements StorageService on SQLite through gorm
type SQLStorage struct {
	logger *slog.Logger
	db     *gorm.DB
}

// NewSQLStorage opens (creating if needed) the SQLite database at path and
// migrates the schema.
func NewSQLStorage(log *slog.Logger, path string) (*SQLStorage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&SeriesDocument{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLStorage{logger: log, db: db}, nil
}

// Close releases the underlying connection pool
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSeries upserts document under seriesID
func (s *SQLStorage) SaveSeries(ctx context.Context, seriesID string, document []byte) error {
	info, err := describeDocument(document)
	if err != nil {
		return err
	}
	row := SeriesDocument{
		ID:          seriesID,
		Kind:        info.Kind,
		Document:    compressDocument(document),
		Fingerprint: info.Fingerprint,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save series %s: %w", seriesID, err)
	}
	s.logger.Debug("Saved series", "seriesID", seriesID, "kind", info.Kind, "fingerprint", info.Fingerprint)
	return nil
}

// LoadSeries returns the document stored under seriesID
func (s *SQLStorage) LoadSeries(ctx context.Context, seriesID string) ([]byte, error) {
	var row SeriesDocument
	err := s.db.WithContext(ctx).First(&row, "id = ?", seriesID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load series %s: %w", seriesID, err)
	}
	return decompressDocument(row.Document)
}

// DeleteSeries removes the row for seriesID
func (s *SQLStorage) DeleteSeries(ctx context.Context, seriesID string) error {
	result := s.db.WithContext(ctx).Delete(&SeriesDocument{}, "id = ?", seriesID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete series %s: %w", seriesID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSeriesNotFound
	}
	return nil
}

// ListSeries returns the stored series ids in sorted order
func (s *SQLStorage) ListSeries(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&SeriesDocument{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	return ids, nil
}
