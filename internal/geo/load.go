package geo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Opener returns a reader for a gazetteer or country-info location.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// FileOpener opens locations from the local filesystem.
type FileOpener struct{}

func (FileOpener) Open(_ context.Context, location string) (io.ReadCloser, error) {
	return os.Open(location)
}

// LoadIndex builds an Index from a gazetteer location, translating country
// codes through countryInfo when it is non-empty. Locations ending in ".gz"
// are decompressed whatever the opener.
func LoadIndex(ctx context.Context, opener Opener, gazetteer, countryInfo string, logger *slog.Logger) (*Index, error) {
	opts := []Option{WithLogger(logger)}

	if countryInfo != "" {
		names, err := loadNames(ctx, opener, countryInfo)
		if err != nil {
			return nil, err
		}
		logger.Info("country names loaded", "countries", len(names), "source", countryInfo)
		opts = append(opts, WithCountryNames(names))
	}

	rc, err := openDecompressed(ctx, opener, gazetteer)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	idx, err := BuildFromReader(rc, opts...)
	if err != nil {
		return nil, fmt.Errorf("build index from %s: %w", gazetteer, err)
	}
	return idx, nil
}

func loadNames(ctx context.Context, opener Opener, location string) (map[string]string, error) {
	rc, err := openDecompressed(ctx, opener, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	names, err := LoadCountryNames(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return names, nil
}

func openDecompressed(ctx context.Context, opener Opener, location string) (io.ReadCloser, error) {
	rc, err := opener.Open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", location, err)
	}
	out, err := Decompress(location, rc)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return out, nil
}
