// Package geo resolves visitor IPs to locations and aggregates them into heatmaps.
package geo

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// ErrNoLocation is returned when an IP cannot be placed on the map
var ErrNoLocation = errors.New("location unknown")

// Location is the resolved position of an IP address
type Location struct {
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator resolves IP addresses
type Locator interface {
	Lookup(ip string) (Location, error)
}

// MaxMindLocator reads a GeoLite2/GeoIP2 City database
type MaxMindLocator struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens the database at path
func OpenMaxMind(path string) (*MaxMindLocator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMindLocator{reader: r}, nil
}

// Lookup resolves ip to a city level location
func (m *MaxMindLocator) Lookup(ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() {
		return Location{}, ErrNoLocation
	}
	rec, err := m.reader.City(parsed)
	if err != nil {
		return Location{}, fmt.Errorf("geoip lookup: %w", err)
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return Location{Country: rec.Country.IsoCode}, ErrNoLocation
	}
	return Location{
		Country:   rec.Country.IsoCode,
		City:      rec.City.Names["en"],
		Latitude:  rec.Location.Latitude,
		Longitude: rec.Location.Longitude,
	}, nil
}

// Close releases the database
func (m *MaxMindLocator) Close() error { return m.reader.Close() }

// NoopLocator never resolves anything
type NoopLocator struct{}

// Lookup always reports an unknown location
func (NoopLocator) Lookup(string) (Location, error) { return Location{}, ErrNoLocation }

// StaticLocator resolves from a fixed table, for tests
type StaticLocator map[string]Location

// Lookup returns the table entry for ip
func (s StaticLocator) Lookup(ip string) (Location, error) {
	if loc, ok := s[ip]; ok {
		return loc, nil
	}
	return Location{}, ErrNoLocation
}
