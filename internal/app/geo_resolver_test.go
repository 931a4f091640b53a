package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"aligncall/internal/model"
)

func geoDirectory() *fakeGeoStore {
	return &fakeGeoStore{records: []model.GeoRecord{
		geoRec("560001", "Bengaluru", "Yes", "Toothsi Indiranagar", "Toothsi MG Road"),
		geoRec("560001", "Bengaluru", "Yes", "Toothsi Koramangala"),
		geoRec("560001", "Mysuru", "No", "Toothsi Mysuru"),
		geoRec("400001", "Mumbai", "Yes", "Toothsi Fort"),
		geoRec("110001", "", "No", "Toothsi Connaught Place"),
	}}
}

func TestResolveExactPairShortCircuits(t *testing.T) {
	store := geoDirectory()
	g := NewGeoResolver(store, nil, nil)

	report, err := g.Resolve(context.Background(), "560001", "Bengaluru")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasPrefix(report, "Exact match found") {
		t.Errorf("header: %q", report)
	}
	for _, want := range []string{"Toothsi Indiranagar", "Toothsi MG Road", "Toothsi Koramangala"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if strings.Contains(report, "Mysuru") {
		t.Error("exact match must not include other cities")
	}
	if store.finds.Load() != 1 || store.listed.Load() != 0 {
		t.Errorf("finds=%d listed=%d, want a single exact query", store.finds.Load(), store.listed.Load())
	}
}

func TestResolveFuzzyPair(t *testing.T) {
	g := NewGeoResolver(geoDirectory(), nil, nil)

	report, err := g.Resolve(context.Background(), "560001", "Bengalore")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(report, "fuzzy match 'Bengaluru'") {
		t.Errorf("header should name the fuzzy match:\n%s", report)
	}
	if !strings.Contains(report, "Toothsi Koramangala") || strings.Contains(report, "Toothsi Mysuru") {
		t.Errorf("fuzzy pair should return Bengaluru records only:\n%s", report)
	}
}

func TestResolvePincodeFallbackAfterFuzzy(t *testing.T) {
	store := &fakeGeoStore{records: []model.GeoRecord{
		geoRec("560001", "Mysuru", "No", "Toothsi Mysuru"),
		geoRec("400001", "Bengaluru", "Yes", "Elsewhere"),
	}}
	g := NewGeoResolver(store, nil, nil)

	report, err := g.Resolve(context.Background(), "560001", "Bengalore")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(report, "fuzzy match 'Bengaluru'") {
		t.Errorf("fallback header should still name the fuzzy candidate:\n%s", report)
	}
	if !strings.Contains(report, "from any city") || !strings.Contains(report, "Toothsi Mysuru") {
		t.Errorf("expected pincode-only records:\n%s", report)
	}
}

func TestResolvePincodeFallbackWithoutFuzzy(t *testing.T) {
	g := NewGeoResolver(geoDirectory(), nil, nil)

	report, err := g.Resolve(context.Background(), "110001", "Xyzzy")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if strings.Contains(report, "fuzzy") {
		t.Errorf("no candidate clears the cutoff, header must not mention fuzzy:\n%s", report)
	}
	if !strings.Contains(report, "Toothsi Connaught Place") || !strings.Contains(report, "City: N/A") {
		t.Errorf("report:\n%s", report)
	}
}

func TestResolvePairNotFound(t *testing.T) {
	g := NewGeoResolver(geoDirectory(), nil, nil)
	report, err := g.Resolve(context.Background(), "999999", "Xyzzy")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "Please verify") {
		t.Errorf("report = %q", report)
	}
}

func TestResolveCityOnly(t *testing.T) {
	g := NewGeoResolver(geoDirectory(), nil, nil)

	report, err := g.Resolve(context.Background(), "", "mumbai")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(report, "Exact match found for city") || !strings.Contains(report, "Toothsi Fort") {
		t.Errorf("report:\n%s", report)
	}

	report, err = g.Resolve(context.Background(), "", "Mumbay")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "fuzzy match 'Mumbai'") {
		t.Errorf("report:\n%s", report)
	}

	report, err = g.Resolve(context.Background(), "", "Atlantis")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "check the spelling") {
		t.Errorf("report = %q", report)
	}
}

func TestResolveCityOnlyLimit(t *testing.T) {
	store := &fakeGeoStore{}
	for i := 0; i < 8; i++ {
		store.records = append(store.records, geoRec(fmt.Sprintf("5600%02d", i), "Bengaluru", "Yes", "Clinic"))
	}
	g := NewGeoResolver(store, nil, nil)
	report, err := g.Resolve(context.Background(), "", "Bengaluru")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "5 record(s)") || strings.Contains(report, "\n6. ") {
		t.Errorf("city lookups are limited to five records:\n%s", report)
	}
}

func TestResolvePincodeOnly(t *testing.T) {
	g := NewGeoResolver(geoDirectory(), nil, nil)

	report, err := g.Resolve(context.Background(), " 400001 ", "")
	if err != nil {
		t.Fatal(err)
	}
	want := "Exact match found for pincode 400001: 1 record(s).\n\n" +
		"1. Pincode: 400001\n" +
		"   City: Mumbai\n" +
		"   Home Scan Available: Yes\n" +
		"   Clinic 1: Toothsi Fort"
	if report != want {
		t.Errorf("report =\n%q\nwant\n%q", report, want)
	}

	report, err = g.Resolve(context.Background(), "000000", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "Please verify the pincode") {
		t.Errorf("report = %q", report)
	}
}

func TestResolveNeitherTouchesNoStore(t *testing.T) {
	store := geoDirectory()
	g := NewGeoResolver(store, nil, nil)
	report, err := g.Resolve(context.Background(), "  ", "")
	if err != nil {
		t.Fatal(err)
	}
	if report != geoUsageMessage {
		t.Errorf("report = %q", report)
	}
	if store.finds.Load() != 0 || store.listed.Load() != 0 {
		t.Error("usage error must not query the store")
	}
}

func TestResolveStoreErrorPropagates(t *testing.T) {
	g := NewGeoResolver(&fakeGeoStore{err: errUnavailable}, nil, nil)
	if _, err := g.Resolve(context.Background(), "560001", ""); !errors.Is(err, errUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestResolveUsesCityCache(t *testing.T) {
	store := geoDirectory()
	cache := &fakeCityCache{}
	g := NewGeoResolver(store, cache, nil)

	if _, err := g.Resolve(context.Background(), "", "Mumbay"); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 1 || store.listed.Load() != 1 {
		t.Fatalf("first lookup should fill the cache: sets=%d listed=%d", cache.sets, store.listed.Load())
	}
	if _, err := g.Resolve(context.Background(), "", "Chenai"); err != nil {
		t.Fatal(err)
	}
	if store.listed.Load() != 1 {
		t.Error("second lookup should read cities from the cache")
	}
}

func TestResolveCacheErrorFallsBackToStore(t *testing.T) {
	store := geoDirectory()
	g := NewGeoResolver(store, &fakeCityCache{err: errUnavailable}, nil)
	report, err := g.Resolve(context.Background(), "", "Mumbay")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "Toothsi Fort") {
		t.Errorf("report:\n%s", report)
	}
}
