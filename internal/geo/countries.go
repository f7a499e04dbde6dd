package geo

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	colISO         = 0
	colCountryName = 4
)

// LoadCountryNames reads a geonames countryInfo table and returns a map from
// ISO 3166 alpha-2 code to country name. Comment lines start with '#'.
func LoadCountryNames(r io.Reader) (map[string]string, error) {
	names := make(map[string]string, 256)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= colCountryName {
			continue
		}
		iso, name := fields[colISO], fields[colCountryName]
		if iso == "" || name == "" {
			continue
		}
		names[iso] = name
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read country info: %w", err)
	}
	return names, nil
}

// LoadCountryNamesFile is LoadCountryNames over a local file.
func LoadCountryNamesFile(path string) (map[string]string, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return LoadCountryNames(rc)
}
