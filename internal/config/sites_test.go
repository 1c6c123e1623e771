package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSites_Default(t *testing.T) {
	sites, err := LoadSites("")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "Rainbow_Beach", sites[0].Name)
	assert.True(t, sites[0].Region.Contains(orb.Point{153.1, -25.9}))
}

func TestLoadSites_AllShapes(t *testing.T) {
	path := writeCatalog(t, `
sites:
  - name: Rainbow_Beach
    bbox: {west: 153.078, south: -25.915, east: 153.145, north: -25.880}
  - name: Noosa_Spit
    point: {lon: 153.07, lat: -26.38}
    buffer_m: 800
  - name: Custom
    polygon: [[153.0, -26.0], [153.1, -26.0], [153.1, -25.9], [153.0, -26.0]]
`)

	sites, err := LoadSites(path)
	require.NoError(t, err)
	require.Len(t, sites, 3)

	assert.Equal(t, "Rainbow_Beach", sites[0].Name)
	assert.True(t, sites[0].Region.Contains(orb.Point{153.1, -25.9}))
	assert.Equal(t, "Noosa_Spit", sites[1].Name)
	assert.True(t, sites[1].Region.Contains(orb.Point{153.07, -26.38}))
	assert.Equal(t, "Custom", sites[2].Name)
	assert.True(t, sites[2].Region.Contains(orb.Point{153.09, -25.99}))
}

func TestLoadSites_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no sites", "sites: []\n"},
		{"missing name", "sites:\n  - bbox: {west: 1, south: 1, east: 2, north: 2}\n"},
		{"duplicate names", `
sites:
  - name: A
    bbox: {west: 1, south: 1, east: 2, north: 2}
  - name: A
    bbox: {west: 1, south: 1, east: 2, north: 2}
`},
		{"two shapes", `
sites:
  - name: A
    bbox: {west: 1, south: 1, east: 2, north: 2}
    point: {lon: 1.5, lat: 1.5}
    buffer_m: 100
`},
		{"no shape", "sites:\n  - name: A\n"},
		{"point without buffer", "sites:\n  - name: A\n    point: {lon: 1.5, lat: 1.5}\n"},
		{"latitude out of range", "sites:\n  - name: A\n    point: {lon: 1.5, lat: 95}\n    buffer_m: 10\n"},
		{"inverted bbox", "sites:\n  - name: A\n    bbox: {west: 2, south: 1, east: 1, north: 2}\n"},
		{"short polygon", "sites:\n  - name: A\n    polygon: [[0, 0], [1, 1]]\n"},
		{"bad coordinate pair", "sites:\n  - name: A\n    polygon: [[0, 0, 0], [1, 0], [1, 1]]\n"},
		{"unsafe name", "sites:\n  - name: ../etc\n    bbox: {west: 1, south: 1, east: 2, north: 2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSites(writeCatalog(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadSites_MissingFile(t *testing.T) {
	_, err := LoadSites(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
