package objectstore

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri         string
		bucket, key string
		wantErr     bool
	}{
		{"s3://geonames/allCountries.txt.gz", "geonames", "allCountries.txt.gz", false},
		{"s3://geonames/dumps/2024/countryInfo.txt", "geonames", "dumps/2024/countryInfo.txt", false},
		{"s3://geonames", "", "", true},
		{"s3://geonames/", "", "", true},
		{"s3:///key", "", "", true},
		{"/data/allCountries.txt", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestIsURI(t *testing.T) {
	assert.True(t, IsURI("s3://bucket/key"))
	assert.False(t, IsURI("allCountries.txt"))
	assert.False(t, IsURI("S3://bucket/key"))
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Endpoint: "minio:9000"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINIO_ACCESS_KEY")
}

func TestNew_Configured(t *testing.T) {
	c, err := New(Config{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "s"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestOpener_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countryInfo.txt")
	require.NoError(t, os.WriteFile(path, []byte("JP\tJPN\t392\tJA\tJapan\n"), 0o600))

	rc, err := Opener{}.Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Japan")
}

func TestOpener_RemoteWithoutClient(t *testing.T) {
	_, err := Opener{}.Open(context.Background(), "s3://geonames/allCountries.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object store not configured")
}
