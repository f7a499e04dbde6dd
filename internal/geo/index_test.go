package geo

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	"github.com/golang/geo/s2"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type place struct {
	name, country, admin1, tz string
	lat, lon                  float64
}

var (
	tokyoPlace    = place{"Tokyo", "JP", "40", "Asia/Tokyo", 35.6895, 139.69171}
	yokohamaPlace = place{"Yokohama", "JP", "19", "Asia/Tokyo", 35.44778, 139.6425}
	osloPlace     = place{"Oslo", "NO", "12", "Europe/Oslo", 59.91273, 10.74609}
	shinjukuPoint = place{lat: 35.6938, lon: 139.7034}
)

// gazetteerLine renders a 19-column geonames row.
func gazetteerLine(p place) string {
	cols := make([]string, 19)
	cols[0] = "1850147"
	cols[colName] = p.name
	cols[2] = p.name
	cols[colLat] = strconv.FormatFloat(p.lat, 'f', -1, 64)
	cols[colLon] = strconv.FormatFloat(p.lon, 'f', -1, 64)
	cols[6] = "P"
	cols[7] = "PPLC"
	cols[colCountry] = p.country
	cols[colAdmin1] = p.admin1
	cols[14] = "8336599"
	cols[colTimezone] = p.tz
	cols[18] = "2024-01-01"
	return strings.Join(cols, "\t")
}

func gazetteer(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildIndex(t *testing.T, opts []Option, lines ...string) *Index {
	t.Helper()
	idx, err := BuildFromReader(gazetteer(lines...), append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return idx
}

func TestResolve_ExactPlaceUsesFinestResolution(t *testing.T) {
	idx := buildIndex(t, []Option{WithCountryNames(map[string]string{"JP": "Japan"})}, gazetteerLine(tokyoPlace))

	got, ok := idx.Resolve(tokyoPlace.lat, tokyoPlace.lon)
	require.True(t, ok)
	assert.Equal(t, domain.RegionInfo{
		Country:      "Japan",
		Region:       "40",
		Timezone:     "Asia/Tokyo",
		NearestPlace: "Tokyo",
	}, got.RegionInfo)
	assert.Equal(t, domain.NumResolutions-1, got.ResolutionUsed)
}

func TestResolve_FallsBackToCoarserResolution(t *testing.T) {
	idx := buildIndex(t, nil, gazetteerLine(tokyoPlace))

	// Finest resolution at which both points share a cell.
	want := -1
	for res := domain.NumResolutions - 1; res >= 0; res-- {
		a, _ := CellID(tokyoPlace.lat, tokyoPlace.lon, res)
		b, _ := CellID(shinjukuPoint.lat, shinjukuPoint.lon, res)
		if a == b {
			want = res
			break
		}
	}
	require.GreaterOrEqual(t, want, 0)
	require.Less(t, want, domain.NumResolutions-1)

	got, ok := idx.Resolve(shinjukuPoint.lat, shinjukuPoint.lon)
	require.True(t, ok)
	assert.Equal(t, want, got.ResolutionUsed)
	assert.Equal(t, "Tokyo", got.NearestPlace)
	assert.Equal(t, "JP", got.Country)
}

func TestResolve_CellsCoverEveryResolution(t *testing.T) {
	idx := buildIndex(t, nil, gazetteerLine(tokyoPlace))

	got, ok := idx.Resolve(tokyoPlace.lat, tokyoPlace.lon)
	require.True(t, ok)
	for res := range domain.NumResolutions {
		want, _ := CellID(tokyoPlace.lat, tokyoPlace.lon, res)
		assert.Equal(t, want, got.Cells[res], "resolution %d", res)
	}
}

func TestBuild_FirstWriterWins(t *testing.T) {
	first := tokyoPlace
	second := tokyoPlace
	second.name = "Shinjuku"
	second.admin1 = "99"

	idx := buildIndex(t, nil, gazetteerLine(first), gazetteerLine(second))

	got, ok := idx.Resolve(tokyoPlace.lat, tokyoPlace.lon)
	require.True(t, ok)
	assert.Equal(t, "Tokyo", got.NearestPlace)
	assert.Equal(t, "40", got.Region)

	for res, n := range idx.CellCounts() {
		assert.Equal(t, 1, n, "resolution %d", res)
	}
}

func TestBuild_FinerCellBeatsEarlierCoarseOwner(t *testing.T) {
	idx := buildIndex(t, nil, gazetteerLine(tokyoPlace), gazetteerLine(yokohamaPlace))

	got, ok := idx.Resolve(yokohamaPlace.lat, yokohamaPlace.lon)
	require.True(t, ok)
	assert.Equal(t, "Yokohama", got.NearestPlace)
	assert.Equal(t, domain.NumResolutions-1, got.ResolutionUsed)

	got, ok = idx.Resolve(tokyoPlace.lat, tokyoPlace.lon)
	require.True(t, ok)
	assert.Equal(t, "Tokyo", got.NearestPlace)
}

func TestBuild_SkipsUnusableLines(t *testing.T) {
	badLat := tokyoPlace
	outOfRange := tokyoPlace
	outOfRange.lat = 95

	short := strings.Join(strings.Split(gazetteerLine(tokyoPlace), "\t")[:17], "\t")
	unparseable := strings.Replace(gazetteerLine(badLat), strconv.FormatFloat(badLat.lat, 'f', -1, 64), "north", 1)

	idx := buildIndex(t, nil,
		short,
		unparseable,
		gazetteerLine(outOfRange),
		"",
		gazetteerLine(osloPlace),
	)

	read, skipped := idx.Lines()
	assert.Equal(t, 5, read)
	assert.Equal(t, 4, skipped)

	_, ok := idx.Resolve(tokyoPlace.lat, tokyoPlace.lon)
	assert.False(t, ok)
	_, ok = idx.Resolve(osloPlace.lat, osloPlace.lon)
	assert.True(t, ok)
}

func TestResolve_NoMatch(t *testing.T) {
	idx := buildIndex(t, nil, gazetteerLine(tokyoPlace))

	got, ok := idx.Resolve(osloPlace.lat, osloPlace.lon)
	assert.False(t, ok)
	assert.Equal(t, domain.LocationResult{}, got)
}

func TestResolve_InvalidCoordinates(t *testing.T) {
	idx := buildIndex(t, nil, gazetteerLine(tokyoPlace))

	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"latitude above 90", 90.5, 0},
		{"latitude below -90", -91, 0},
		{"longitude above 180", 0, 181},
		{"NaN latitude", math.NaN(), 0},
		{"infinite longitude", 0, math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := idx.Resolve(tt.lat, tt.lon)
			assert.False(t, ok)
		})
	}
}

func TestCellID_InvalidInput(t *testing.T) {
	_, ok := CellID(0, 0, -1)
	assert.False(t, ok)
	_, ok = CellID(0, 0, domain.NumResolutions)
	assert.False(t, ok)
	_, ok = CellID(100, 0, 3)
	assert.False(t, ok)
}

func TestCellCenter_RoundTrip(t *testing.T) {
	points := []place{tokyoPlace, osloPlace, {lat: -33.8688, lon: 151.2093}, {lat: 0, lon: -179.99}}

	for _, p := range points {
		for res := range domain.NumResolutions {
			id, ok := CellID(p.lat, p.lon, res)
			require.True(t, ok)

			gotRes, ok := CellResolution(id)
			require.True(t, ok)
			assert.Equal(t, res, gotRes)

			lat, lon, ok := CellCenter(id)
			require.True(t, ok)

			again, ok := CellID(lat, lon, res)
			require.True(t, ok)
			assert.Equal(t, id, again, "center of %d at resolution %d maps to another cell", id, res)

			cell := s2.CellFromCellID(s2.CellID(id))
			assert.True(t, cell.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(p.lat, p.lon))))
		}
	}
}

func TestCellCenter_RejectsForeignIDs(t *testing.T) {
	_, _, ok := CellCenter(0)
	assert.False(t, ok)

	leaf := uint64(s2.CellIDFromLatLng(s2.LatLngFromDegrees(tokyoPlace.lat, tokyoPlace.lon)))
	_, _, ok = CellCenter(leaf)
	assert.False(t, ok)
}

func TestLookup(t *testing.T) {
	idx := buildIndex(t, nil, gazetteerLine(osloPlace))

	id, _ := CellID(osloPlace.lat, osloPlace.lon, 4)
	info, ok := idx.Lookup(4, id)
	require.True(t, ok)
	assert.Equal(t, "Oslo", info.NearestPlace)

	_, ok = idx.Lookup(4, id+1)
	assert.False(t, ok)

	_, ok = idx.Lookup(9, id)
	assert.False(t, ok)
	_, ok = idx.Lookup(-1, id)
	assert.False(t, ok)
}

func TestBuild_GzipFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allCountries.txt.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = io.WriteString(zw, gazetteerLine(osloPlace)+"\n")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	idx, err := Build(path, WithLogger(quietLogger()))
	require.NoError(t, err)

	got, ok := idx.Resolve(osloPlace.lat, osloPlace.lon)
	require.True(t, ok)
	assert.Equal(t, "Europe/Oslo", got.Timezone)
}

func TestBuild_MissingFile(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCountryNames(t *testing.T) {
	input := strings.Join([]string{
		"# ISO\tISO3\tISO-Numeric\tfips\tCountry",
		"JP\tJPN\t392\tJA\tJapan\tTokyo",
		"NO\tNOR\t578\tNO\tNorway\tOslo",
		"XX\tshort",
		"",
	}, "\n")

	names, err := LoadCountryNames(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"JP": "Japan", "NO": "Norway"}, names)
}
