package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"aligncall/internal/model"
	"aligncall/internal/sheet"
)

var ErrNoGeoRecords = errors.New("no usable geo records in file")

type CityInvalidator interface {
	Invalidate(ctx context.Context) error
}

type GeoWriter interface {
	CreateBatch(ctx context.Context, records []model.GeoRecord) error
	Replace(ctx context.Context, records []model.GeoRecord) error
}

type GeoIngestService struct {
	store  GeoWriter
	cities CityInvalidator
	logger *slog.Logger
}

func NewGeoIngestService(store GeoWriter, cities CityInvalidator, logger *slog.Logger) *GeoIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeoIngestService{store: store, cities: cities, logger: logger}
}

type GeoIngestResult struct {
	Loaded  int `json:"loaded"`
	Dropped int `json:"dropped"`
}

// Load imports a geo directory workbook. With replace set the existing
// directory is swapped out atomically. The cached city list is invalidated either way.
func (s *GeoIngestService) Load(ctx context.Context, data []byte, replace bool) (*GeoIngestResult, error) {
	parsed, err := sheet.ReadGeo(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(parsed.Records) == 0 {
		return nil, ErrNoGeoRecords
	}

	write := s.store.CreateBatch
	if replace {
		write = s.store.Replace
	}
	if err := write(ctx, parsed.Records); err != nil {
		return nil, fmt.Errorf("store geo directory failed: %w", err)
	}
	if s.cities != nil {
		if err := s.cities.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "invalidate city cache failed", "error", err)
		}
	}
	s.logger.InfoContext(ctx, "geo directory loaded", "records", len(parsed.Records), "dropped", parsed.Dropped, "replace", replace)
	return &GeoIngestResult{Loaded: len(parsed.Records), Dropped: parsed.Dropped}, nil
}
