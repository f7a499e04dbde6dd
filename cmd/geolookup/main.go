// Command geolookup builds the spatial index from a gazetteer and answers
// queries against it, printing one JSON object per query.
//
// Usage:
//
//	go run ./cmd/geolookup -gazetteer data/allCountries.txt.gz -countries data/countryInfo.txt 35.6895,139.69171
//
// A query is either a "lat,lon" pair, resolved finest resolution first, or a
// decimal cell id, looked up at its own resolution. With no positional
// arguments, queries are read from stdin, one per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	"github.com/couchcryptid/geo-enrichment-etl/internal/geo"
)

// index is the part of *geo.Index the queries need.
type index interface {
	domain.Locator
	Lookup(resolution int, cell uint64) (domain.RegionInfo, bool)
}

type lookup struct {
	Query          string    `json:"query"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	Found          bool      `json:"found"`
	Country        string    `json:"country,omitempty"`
	Region         string    `json:"region,omitempty"`
	Timezone       string    `json:"timezone,omitempty"`
	NearestPlace   string    `json:"nearest_place,omitempty"`
	ResolutionUsed *int      `json:"resolution_used,omitempty"`
	Cells          []string  `json:"cells,omitempty"`
	CellCenter     []float64 `json:"cell_center,omitempty"`
	Error          string    `json:"error,omitempty"`
}

func main() {
	gazetteer := flag.String("gazetteer", "", "gazetteer TSV path (.gz accepted)")
	countries := flag.String("countries", "", "optional countryInfo.txt path for country names")
	verbose := flag.Bool("v", false, "log index build progress to stderr")
	flag.Parse()

	if *gazetteer == "" {
		fmt.Fprintln(os.Stderr, "usage: geolookup -gazetteer PATH [-countries PATH] [lat,lon ...]")
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	idx, err := geo.LoadIndex(context.Background(), geo.FileOpener{}, *gazetteer, *countries, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	var in io.Reader = os.Stdin
	if flag.NArg() > 0 {
		in = strings.NewReader(strings.Join(flag.Args(), "\n"))
	}
	if err := answerAll(idx, in, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func answerAll(idx index, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := enc.Encode(query(idx, line)); err != nil {
			return err
		}
	}
	return sc.Err()
}

func query(idx index, line string) lookup {
	if !strings.Contains(line, ",") {
		return lookupCell(idx, line)
	}
	return resolve(idx, line)
}

func resolve(idx index, line string) lookup {
	lat, lon, err := parsePair(line)
	if err != nil {
		return lookup{Query: line, Error: err.Error()}
	}
	out := lookup{Query: line, Lat: lat, Lon: lon}
	if !domain.ValidCoordinate(lat, lon) {
		out.Error = "coordinate out of range"
		return out
	}

	loc, ok := idx.Resolve(lat, lon)
	if !ok {
		return out
	}
	out.setRegion(loc.RegionInfo, loc.ResolutionUsed, loc.Cells[loc.ResolutionUsed])
	out.Cells = make([]string, len(loc.Cells))
	for i, c := range loc.Cells {
		out.Cells[i] = strconv.FormatUint(c, 10)
	}
	return out
}

func lookupCell(idx index, line string) lookup {
	out := lookup{Query: line}
	id, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		out.Error = fmt.Sprintf("expected lat,lon or a cell id: %q", line)
		return out
	}
	res, ok := geo.CellResolution(id)
	if !ok {
		out.Error = "not a cell id at any index resolution"
		return out
	}
	out.Lat, out.Lon, _ = geo.CellCenter(id)

	info, ok := idx.Lookup(res, id)
	if !ok {
		return out
	}
	out.setRegion(info, res, id)
	return out
}

func (l *lookup) setRegion(info domain.RegionInfo, res int, cell uint64) {
	l.Found = true
	l.Country = info.Country
	l.Region = info.Region
	l.Timezone = info.Timezone
	l.NearestPlace = info.NearestPlace
	l.ResolutionUsed = &res
	if lat, lon, ok := geo.CellCenter(cell); ok {
		l.CellCenter = []float64{lat, lon}
	}
}

func parsePair(s string) (lat, lon float64, err error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected lat,lon: %q", s)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(a), 64); err != nil {
		return 0, 0, fmt.Errorf("bad latitude %q", a)
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(b), 64); err != nil {
		return 0, 0, fmt.Errorf("bad longitude %q", b)
	}
	return lat, lon, nil
}
