package domain

// NumResolutions is the number of spatial resolutions, 0 (coarsest) to 8 (finest).
const NumResolutions = 9

// CellSet holds a coordinate's cell id at every resolution, index = resolution.
type CellSet [NumResolutions]uint64

// RegionInfo is the administrative context attached to one spatial cell.
type RegionInfo struct {
	Country      string `json:"country"`
	Region       string `json:"region"`
	Timezone     string `json:"timezone"`
	NearestPlace string `json:"nearest_place"`
}

// LocationResult is the outcome of a successful spatial lookup.
type LocationResult struct {
	RegionInfo
	Cells          CellSet `json:"cells"`
	ResolutionUsed int     `json:"resolution_used"`
}

// Locator resolves a coordinate to its administrative context. Implementations
// must be safe for concurrent use and must not block.
type Locator interface {
	Resolve(lat, lon float64) (LocationResult, bool)
}

// ValidCoordinate reports whether lat/lon fall inside [-90,90] x [-180,180].
// NaN never validates.
func ValidCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
