package geo

import (
	"math"
	"sort"
)

// Precision bounds for heatmap grouping, in decimal places of a degree
const (
	MinPrecision     = 0
	MaxPrecision     = 4
	DefaultPrecision = 1
)

// Point is a single geolocated observation
type Point struct {
	Latitude  float64
	Longitude float64
}

// HeatPoint is one heatmap cell
type HeatPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Count     int     `json:"count"`
	Intensity float64 `json:"intensity"` // Count relative to the densest cell, in (0, 1]
}

// ClampPrecision keeps p within the supported range
func ClampPrecision(p int) int {
	if p < MinPrecision {
		return MinPrecision
	}
	if p > MaxPrecision {
		return MaxPrecision
	}
	return p
}

// Aggregate groups points into cells by rounding coordinates to precision
// decimals. Cells are ordered by count, densest first; ties are ordered by
// latitude then longitude so output is stable.
func Aggregate(points []Point, precision int) []HeatPoint {
	precision = ClampPrecision(precision)
	scale := math.Pow10(precision)

	type cell struct{ lat, lng int64 }
	counts := make(map[cell]int, len(points))
	for _, p := range points {
		if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
			continue
		}
		c := cell{lat: int64(math.Round(p.Latitude * scale)), lng: int64(math.Round(p.Longitude * scale))}
		counts[c]++
	}

	out := make([]HeatPoint, 0, len(counts))
	maxCount := 0
	for c, n := range counts {
		out = append(out, HeatPoint{Latitude: float64(c.lat) / scale, Longitude: float64(c.lng) / scale, Count: n})
		if n > maxCount {
			maxCount = n
		}
	}
	for i := range out {
		out[i].Intensity = float64(out[i].Count) / float64(maxCount)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Latitude != out[j].Latitude {
			return out[i].Latitude < out[j].Latitude
		}
		return out[i].Longitude < out[j].Longitude
	})
	return out
}
