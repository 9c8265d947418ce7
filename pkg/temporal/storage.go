package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/leowmjw/go-chronology/pkg/jsonts"
)

// ErrSeriesNotFound is returned when no document is stored under an id
var ErrSeriesNotFound = errors.New("series not found")

// StorageService persists JSON-TS documents by series id
type StorageService interface {
	SaveSeries(ctx context.Context, seriesID string, document []byte) error
	LoadSeries(ctx context.Context, seriesID string) ([]byte, error)
	DeleteSeries(ctx context.Context, seriesID string) error
	ListSeries(ctx context.Context) ([]string, error)
}

// documentInfo is the metadata kept next to a stored document
type documentInfo struct {
	Kind        string
	Fingerprint string
}

func describeDocument(document []byte) (documentInfo, error) {
	var head struct {
		JsonTs string `json:"JsonTs"`
	}
	if err := json.Unmarshal(document, &head); err != nil {
		return documentInfo{}, fmt.Errorf("invalid document: %w", err)
	}
	return documentInfo{Kind: head.JsonTs, Fingerprint: jsonts.Fingerprint(document)}, nil
}

// Stored documents are s2 block compressed.

func compressDocument(document []byte) []byte {
	return s2.Encode(nil, document)
}

func decompressDocument(data []byte) ([]byte, error) {
	document, err := s2.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress document: %w", err)
	}
	return document, nil
}
