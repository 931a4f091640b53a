package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"aligncall/internal/model"
)

const geoResultLimit = 5

const geoUsageMessage = "Error: Please provide at least a pincode or a city to find nearby clinics."

// GeoStore is the read side of the geo directory.
type GeoStore interface {
	Find(ctx context.Context, pincode, city string, limit int) ([]model.GeoRecord, error)
	DistinctCities(ctx context.Context) ([]string, error)
}

// CityCache remembers the distinct city list between lookups.
type CityCache interface {
	GetCities(ctx context.Context) ([]string, bool, error)
	SetCities(ctx context.Context, cities []string) error
}

type GeoResolver struct {
	store  GeoStore
	cities CityCache
	logger *slog.Logger
}

// NewGeoResolver builds a resolver. cities may be nil.
func NewGeoResolver(store GeoStore, cities CityCache, logger *slog.Logger) *GeoResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeoResolver{store: store, cities: cities, logger: logger}
}

// geoLookup carries one resolution through the tier chain. The fuzzy
// candidate is computed at most once and shared by later tiers.
type geoLookup struct {
	pincode    string
	city       string
	fuzzy      string
	fuzzyKnown bool
}

// geoTier returns a non-empty report when it resolves the lookup.
type geoTier func(ctx context.Context, q *geoLookup) (string, error)

// Resolve runs the fallback cascade for the supplied pincode and/or city and
// returns the report read back to the caller.
func (g *GeoResolver) Resolve(ctx context.Context, pincode, city string) (string, error) {
	q := &geoLookup{pincode: strings.TrimSpace(pincode), city: strings.TrimSpace(city)}

	var chain []geoTier
	switch {
	case q.pincode != "" && q.city != "":
		chain = []geoTier{g.exactPair, g.fuzzyPair, g.pincodeFallback, pairNotFound}
	case q.city != "":
		chain = []geoTier{g.exactCity, g.fuzzyCity, cityNotFound}
	case q.pincode != "":
		chain = []geoTier{g.exactPincode, pincodeNotFound}
	default:
		return geoUsageMessage, nil
	}

	for _, tier := range chain {
		report, err := tier(ctx, q)
		if err != nil {
			return "", err
		}
		if report != "" {
			return report, nil
		}
	}
	return "", nil
}

func (g *GeoResolver) exactPair(ctx context.Context, q *geoLookup) (string, error) {
	recs, err := g.store.Find(ctx, q.pincode, q.city, 0)
	if err != nil || len(recs) == 0 {
		return "", err
	}
	return formatGeoReport(fmt.Sprintf("Exact match found for pincode %s and city %s: %d record(s).",
		q.pincode, q.city, len(recs)), recs), nil
}

func (g *GeoResolver) fuzzyPair(ctx context.Context, q *geoLookup) (string, error) {
	candidate, err := g.fuzzyCityFor(ctx, q)
	if err != nil || candidate == "" {
		return "", err
	}
	recs, err := g.store.Find(ctx, q.pincode, candidate, 0)
	if err != nil || len(recs) == 0 {
		return "", err
	}
	return formatGeoReport(fmt.Sprintf("No exact match for city '%s'. Using fuzzy match '%s' for pincode %s: %d record(s).",
		q.city, titleCase(candidate), q.pincode, len(recs)), recs), nil
}

func (g *GeoResolver) pincodeFallback(ctx context.Context, q *geoLookup) (string, error) {
	recs, err := g.store.Find(ctx, q.pincode, "", geoResultLimit)
	if err != nil || len(recs) == 0 {
		return "", err
	}
	header := fmt.Sprintf("No records for pincode %s in city '%s'. Showing records for pincode %s from any city: %d record(s).",
		q.pincode, q.city, q.pincode, len(recs))
	if q.fuzzy != "" {
		header = fmt.Sprintf("No records for pincode %s in city '%s' or its fuzzy match '%s'. Showing records for pincode %s from any city: %d record(s).",
			q.pincode, q.city, titleCase(q.fuzzy), q.pincode, len(recs))
	}
	return formatGeoReport(header, recs), nil
}

func (g *GeoResolver) exactCity(ctx context.Context, q *geoLookup) (string, error) {
	recs, err := g.store.Find(ctx, "", q.city, geoResultLimit)
	if err != nil || len(recs) == 0 {
		return "", err
	}
	return formatGeoReport(fmt.Sprintf("Exact match found for city %s: %d record(s).", q.city, len(recs)), recs), nil
}

func (g *GeoResolver) fuzzyCity(ctx context.Context, q *geoLookup) (string, error) {
	candidate, err := g.fuzzyCityFor(ctx, q)
	if err != nil || candidate == "" {
		return "", err
	}
	recs, err := g.store.Find(ctx, "", candidate, geoResultLimit)
	if err != nil || len(recs) == 0 {
		return "", err
	}
	return formatGeoReport(fmt.Sprintf("No exact match for city '%s'. Using fuzzy match '%s': %d record(s).",
		q.city, titleCase(candidate), len(recs)), recs), nil
}

func (g *GeoResolver) exactPincode(ctx context.Context, q *geoLookup) (string, error) {
	recs, err := g.store.Find(ctx, q.pincode, "", geoResultLimit)
	if err != nil || len(recs) == 0 {
		return "", err
	}
	return formatGeoReport(fmt.Sprintf("Exact match found for pincode %s: %d record(s).", q.pincode, len(recs)), recs), nil
}

func pairNotFound(_ context.Context, q *geoLookup) (string, error) {
	return fmt.Sprintf("No clinics found for pincode %s and city '%s'. Please verify the pincode and city.", q.pincode, q.city), nil
}

func cityNotFound(_ context.Context, q *geoLookup) (string, error) {
	return fmt.Sprintf("No clinics found for city '%s'. Please check the spelling of the city name.", q.city), nil
}

func pincodeNotFound(_ context.Context, q *geoLookup) (string, error) {
	return fmt.Sprintf("No clinics found for pincode %s. Please verify the pincode.", q.pincode), nil
}

// fuzzyCityFor returns the stored spelling of the best known city for q.city,
// or "" when nothing clears the cutoff.
func (g *GeoResolver) fuzzyCityFor(ctx context.Context, q *geoLookup) (string, error) {
	if q.fuzzyKnown {
		return q.fuzzy, nil
	}
	known, err := g.knownCities(ctx)
	if err != nil {
		return "", err
	}

	byTitle := make(map[string]string, len(known))
	titles := make([]string, 0, len(known))
	for _, c := range known {
		t := titleCase(c)
		if _, dup := byTitle[t]; dup || t == "" {
			continue
		}
		byTitle[t] = c
		titles = append(titles, t)
	}

	q.fuzzyKnown = true
	if matches := closeMatches(titleCase(q.city), titles, fuzzyCandidates, fuzzyCutoff); len(matches) > 0 {
		q.fuzzy = byTitle[matches[0]]
		g.logger.DebugContext(ctx, "fuzzy city match", "input", q.city, "match", q.fuzzy, "candidates", matches)
	}
	return q.fuzzy, nil
}

func (g *GeoResolver) knownCities(ctx context.Context) ([]string, error) {
	if g.cities != nil {
		cached, hit, err := g.cities.GetCities(ctx)
		if err != nil {
			g.logger.WarnContext(ctx, "city cache read failed", "error", err)
		} else if hit {
			return cached, nil
		}
	}

	cities, err := g.store.DistinctCities(ctx)
	if err != nil {
		return nil, err
	}
	if g.cities != nil {
		if err := g.cities.SetCities(ctx, cities); err != nil {
			g.logger.WarnContext(ctx, "city cache write failed", "error", err)
		}
	}
	return cities, nil
}

func formatGeoReport(header string, recs []model.GeoRecord) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i, r := range recs {
		fmt.Fprintf(&b, "\n%d. Pincode: %s\n", i+1, r.Pincode)
		fmt.Fprintf(&b, "   City: %s\n", orNA(r.City))
		fmt.Fprintf(&b, "   Home Scan Available: %s\n", orNA(r.HomeScanAvailable))
		if r.Clinic1 != nil && *r.Clinic1 != "" {
			fmt.Fprintf(&b, "   Clinic 1: %s\n", *r.Clinic1)
		}
		if r.Clinic2 != nil && *r.Clinic2 != "" {
			fmt.Fprintf(&b, "   Clinic 2: %s\n", *r.Clinic2)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
