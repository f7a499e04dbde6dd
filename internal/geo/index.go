// Package geo builds and queries the gazetteer-backed spatial index used to
// attach country, region, timezone and nearest place to a coordinate.
//
// The index holds one map per resolution from cell id to RegionInfo. It is
// populated once at startup and never mutated afterwards, so any number of
// goroutines may query it without locking.
package geo

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
)

// Gazetteer column positions (geonames allCountries layout).
const (
	colName     = 1
	colLat      = 4
	colLon      = 5
	colCountry  = 8
	colAdmin1   = 10
	colTimezone = 17

	minFields = 18
)

const (
	progressEvery  = 100_000
	maxLineBytes   = 4 * 1024 * 1024
	initialLineBuf = 64 * 1024
)

// Index maps cells at nine resolutions to administrative context.
type Index struct {
	cells   [domain.NumResolutions]map[uint64]*domain.RegionInfo
	lines   int
	skipped int
}

type buildOptions struct {
	logger       *slog.Logger
	countryNames map[string]string
}

// Option customizes index construction.
type Option func(*buildOptions)

// WithLogger sets the logger used for build progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *buildOptions) { o.logger = l }
}

// WithCountryNames translates gazetteer country codes (e.g. "JP") to display
// names (e.g. "Japan"). Codes missing from the map are kept as-is.
func WithCountryNames(names map[string]string) Option {
	return func(o *buildOptions) { o.countryNames = names }
}

// Build opens a gazetteer file (optionally gzip-compressed) and indexes it.
func Build(path string, opts ...Option) (*Index, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	idx, err := BuildFromReader(rc, opts...)
	if err != nil {
		return nil, fmt.Errorf("build index from %s: %w", path, err)
	}
	return idx, nil
}

// BuildFromReader streams tab-separated gazetteer lines into a new Index.
// Lines with fewer than 18 fields or unusable coordinates are skipped. For
// each resolution, the first line to reach a cell owns it.
func BuildFromReader(r io.Reader, opts ...Option) (*Index, error) {
	o := buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	idx := &Index{}
	for res := range idx.cells {
		idx.cells[res] = make(map[uint64]*domain.RegionInfo)
	}

	o.logger.Info("building spatial index", "resolutions", domain.NumResolutions)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuf), maxLineBytes)

	for scanner.Scan() {
		idx.lines++
		if !idx.insert(scanner.Text(), o.countryNames) {
			idx.skipped++
		}
		if idx.lines%progressEvery == 0 {
			o.logger.Info("indexing gazetteer", "lines", idx.lines)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read gazetteer line %d: %w", idx.lines+1, err)
	}

	counts := idx.CellCounts()
	for res, n := range counts {
		o.logger.Info("spatial index resolution", "resolution", res, "unique_cells", n)
	}
	o.logger.Info("spatial index built", "lines", idx.lines, "skipped", idx.skipped)

	return idx, nil
}

// insert indexes one gazetteer line and reports whether it was usable.
func (idx *Index) insert(line string, countryNames map[string]string) bool {
	fields := strings.SplitN(line, "\t", minFields+1)
	if len(fields) < minFields {
		return false
	}

	lat, errLat := strconv.ParseFloat(fields[colLat], 64)
	lon, errLon := strconv.ParseFloat(fields[colLon], 64)
	if errLat != nil || errLon != nil || !domain.ValidCoordinate(lat, lon) {
		return false
	}

	country := fields[colCountry]
	if name, ok := countryNames[country]; ok {
		country = name
	}

	info := &domain.RegionInfo{
		Country:      country,
		Region:       fields[colAdmin1],
		Timezone:     fields[colTimezone],
		NearestPlace: fields[colName],
	}

	cells := cellsFor(lat, lon)
	for res, cell := range cells {
		if _, taken := idx.cells[res][cell]; !taken {
			idx.cells[res][cell] = info
		}
	}
	return true
}

// Resolve looks a coordinate up from the finest resolution to the coarsest and
// returns the first match. It reports false for invalid coordinates or when
// no resolution has an entry.
func (idx *Index) Resolve(lat, lon float64) (domain.LocationResult, bool) {
	if !domain.ValidCoordinate(lat, lon) {
		return domain.LocationResult{}, false
	}

	cells := cellsFor(lat, lon)
	for res := domain.NumResolutions - 1; res >= 0; res-- {
		if info, ok := idx.cells[res][cells[res]]; ok {
			return domain.LocationResult{
				RegionInfo:     *info,
				Cells:          cells,
				ResolutionUsed: res,
			}, true
		}
	}
	return domain.LocationResult{}, false
}

// Lookup returns the RegionInfo stored for a cell at one resolution.
func (idx *Index) Lookup(resolution int, cell uint64) (domain.RegionInfo, bool) {
	if resolution < 0 || resolution >= domain.NumResolutions {
		return domain.RegionInfo{}, false
	}
	info, ok := idx.cells[resolution][cell]
	if !ok {
		return domain.RegionInfo{}, false
	}
	return *info, true
}

// CellCounts returns the number of populated cells per resolution.
func (idx *Index) CellCounts() [domain.NumResolutions]int {
	var counts [domain.NumResolutions]int
	for res, m := range idx.cells {
		counts[res] = len(m)
	}
	return counts
}

// Lines returns how many gazetteer lines were read and how many were skipped.
func (idx *Index) Lines() (read, skipped int) {
	return idx.lines, idx.skipped
}
