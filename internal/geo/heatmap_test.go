package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateGroupsByPrecision(t *testing.T) {
	points := []Point{
		{52.5200, 13.4050}, // Berlin
		{52.5249, 13.4012}, // Berlin, same cell at precision 1
		{52.5600, 13.4400}, // Berlin north, different cell at precision 1
		{48.8566, 2.3522},  // Paris
	}

	cells := Aggregate(points, 1)
	require.Len(t, cells, 3)
	assert.Equal(t, HeatPoint{Latitude: 52.5, Longitude: 13.4, Count: 2, Intensity: 1}, cells[0])
	assert.Equal(t, 1, cells[1].Count)
	assert.InDelta(t, 0.5, cells[1].Intensity, 1e-9)

	coarse := Aggregate(points, 0)
	require.Len(t, coarse, 2)
	assert.Equal(t, 3, coarse[0].Count)
	assert.Equal(t, 53.0, coarse[0].Latitude)
}

func TestAggregateClampsPrecisionAndSkipsNaN(t *testing.T) {
	cells := Aggregate([]Point{{1.123456, 2.654321}, {math.NaN(), 1}}, 9)
	require.Len(t, cells, 1)
	assert.InDelta(t, 1.1235, cells[0].Latitude, 1e-9)
	assert.InDelta(t, 2.6543, cells[0].Longitude, 1e-9)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, DefaultPrecision))
}

func TestAggregateStableOrderOnTies(t *testing.T) {
	cells := Aggregate([]Point{{10, 5}, {-10, 5}, {10, -5}}, 0)
	require.Len(t, cells, 3)
	assert.Equal(t, -10.0, cells[0].Latitude)
	assert.Equal(t, 10.0, cells[1].Latitude)
	assert.Equal(t, -5.0, cells[1].Longitude)
}

func TestStaticLocator(t *testing.T) {
	loc := StaticLocator{"1.2.3.4": {Country: "DE"}}
	got, err := loc.Lookup("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "DE", got.Country)
	_, err = loc.Lookup("5.6.7.8")
	assert.ErrorIs(t, err, ErrNoLocation)
}
