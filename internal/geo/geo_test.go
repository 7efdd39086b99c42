package geo

import (
	"math"
	"testing"
)

func TestDistance_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         Point{Lat: 4.6708, Lng: -74.0543},
			b:         Point{Lat: 4.6708, Lng: -74.0543},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "Bogota pickup to nearby driver (~4km)",
			a:         Point{Lat: 4.6708, Lng: -74.0543},
			b:         Point{Lat: 4.6408, Lng: -74.0743},
			wantKm:    4.0,
			tolerance: 0.2,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         Point{Lat: 40.7128, Lng: -74.0060},
			b:         Point{Lat: 34.0522, Lng: -118.2437},
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistance_Symmetry(t *testing.T) {
	a := Point{Lat: 25.0, Lng: 121.0}
	b := Point{Lat: 26.0, Lng: 122.0}
	if d1, d2 := Distance(a, b), Distance(b, a); math.Abs(d1-d2) > 0.0001 {
		t.Errorf("distance is not symmetric: %f vs %f", d1, d2)
	}
}

func TestDistance_MetersAndKmAgree(t *testing.T) {
	a := Point{Lat: 4.6708, Lng: -74.0543}
	b := Point{Lat: 4.6308, Lng: -74.0643}
	if got := Distance(a, b) / 1000; math.Abs(got-DistanceKm(a, b)) > 1e-9 {
		t.Errorf("meters/1000 = %f, DistanceKm = %f", got, DistanceKm(a, b))
	}
}

func TestPoint_Valid(t *testing.T) {
	cases := []struct {
		p    Point
		want bool
	}{
		{Point{Lat: 0, Lng: 0}, true},
		{Point{Lat: 90, Lng: 180}, true},
		{Point{Lat: -90, Lng: -180}, true},
		{Point{Lat: 90.1, Lng: 0}, false},
		{Point{Lat: 0, Lng: -180.5}, false},
		{Point{Lat: math.NaN(), Lng: 0}, false},
		{Point{Lat: 0, Lng: math.Inf(1)}, false},
	}
	for _, tc := range cases {
		if got := tc.p.Valid(); got != tc.want {
			t.Errorf("Point%v.Valid() = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestPoint_StringKeepsPrecision(t *testing.T) {
	p := Point{Lat: 4.6708225, Lng: -74.0543174}
	if got, want := p.String(), "4.6708225,-74.0543174"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

type ranked struct {
	id   string
	dist float64
}

func TestSortByDistance_OrdersAndBreaksTies(t *testing.T) {
	items := []ranked{
		{"d", 500},
		{"c", 100},
		{"b", 300},
		{"a", 300},
		{"e", 0},
	}
	SortByDistance(items, func(r ranked) float64 { return r.dist }, func(r ranked) string { return r.id })

	want := []string{"e", "c", "a", "b", "d"}
	for i, r := range items {
		if r.id != want[i] {
			t.Fatalf("position %d: got %s, want %s (full: %v)", i, r.id, want[i], items)
		}
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var items []ranked
	SortByDistance(items, func(r ranked) float64 { return r.dist }, func(r ranked) string { return r.id })
	if len(items) != 0 {
		t.Fatalf("expected empty slice, got %v", items)
	}
}
