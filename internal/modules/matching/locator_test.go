package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickup/internal/config"
	"pickup/internal/geo"
	"pickup/internal/modules/driver"
	"pickup/internal/types"
)

type fixedSource struct {
	candidates []Candidate
	err        error
	gotRadius  float64
	gotLimit   int
}

func (f *fixedSource) NearbyAvailable(ctx context.Context, p geo.Point, radiusMeters float64, limit int) ([]Candidate, error) {
	f.gotRadius, f.gotLimit = radiusMeters, limit
	return append([]Candidate(nil), f.candidates...), f.err
}

func candidate(id string, dist float64) Candidate {
	loc := geo.Point{Lat: 1, Lng: 1}
	return Candidate{Driver: driver.Driver{ID: types.ID(id), Location: &loc}, DistanceMeters: dist}
}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c.Driver.ID)
	}
	return out
}

func TestFindCandidates_OrdersByDistanceThenID(t *testing.T) {
	src := &fixedSource{candidates: []Candidate{
		candidate("c", 300),
		candidate("b", 100),
		candidate("a", 100),
		candidate("d", 50),
	}}
	got, err := NewLocator(src, config.DispatchConfig{}).FindCandidates(context.Background(), geo.Point{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(got))

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].DistanceMeters, got[i].DistanceMeters)
	}
}

func TestFindCandidates_TruncatesAndPassesLimits(t *testing.T) {
	src := &fixedSource{candidates: []Candidate{
		candidate("e", 5), candidate("d", 4), candidate("c", 3), candidate("b", 2), candidate("a", 1),
	}}
	l := NewLocator(src, config.DispatchConfig{RadiusMeters: 2500, MaxCandidates: 2})
	got, err := l.FindCandidates(context.Background(), geo.Point{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.Equal(t, 2500.0, src.gotRadius)
	assert.Equal(t, 2, src.gotLimit)
}

func TestFindCandidates_Defaults(t *testing.T) {
	src := &fixedSource{}
	_, _ = NewLocator(src, config.DispatchConfig{}).FindCandidates(context.Background(), geo.Point{})
	assert.Equal(t, DefaultRadiusMeters, src.gotRadius)
	assert.Equal(t, DefaultMaxCandidates, src.gotLimit)
}

func TestFindCandidates_DropsUnlocatedAndOutOfRadius(t *testing.T) {
	noLoc := candidate("x", 10)
	noLoc.Driver.Location = nil
	src := &fixedSource{candidates: []Candidate{noLoc, candidate("far", 200001), candidate("ok", 10)}}

	got, err := NewLocator(src, config.DispatchConfig{RadiusMeters: 200000}).FindCandidates(context.Background(), geo.Point{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, ids(got))
}

func TestFindCandidates_EmptyAndError(t *testing.T) {
	got, err := NewLocator(&fixedSource{}, config.DispatchConfig{}).FindCandidates(context.Background(), geo.Point{})
	assert.NoError(t, err)
	assert.Nil(t, got)

	boom := errors.New("db down")
	_, err = NewLocator(&fixedSource{err: boom}, config.DispatchConfig{}).FindCandidates(context.Background(), geo.Point{})
	assert.ErrorIs(t, err, boom)
}
