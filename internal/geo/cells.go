package geo

import (
	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	"github.com/golang/geo/s2"
)

// s2Levels maps resolution 0..8 to an S2 cell level. The levels follow a
// hexagonal grid's edge lengths, roughly ~1000 km at resolution 0 down to
// ~0.5 km at resolution 8:
//
//	res   0    1    2    3    4    5    6    7    8
//	level 3    4    6    7    8    10   11   13   14
var s2Levels = [domain.NumResolutions]int{3, 4, 6, 7, 8, 10, 11, 13, 14}

// CellID returns the cell id containing lat/lon at the given resolution.
// It reports false for a resolution outside 0..8 or an invalid coordinate.
func CellID(lat, lon float64, resolution int) (uint64, bool) {
	if resolution < 0 || resolution >= domain.NumResolutions {
		return 0, false
	}
	if !domain.ValidCoordinate(lat, lon) {
		return 0, false
	}
	return uint64(leafCell(lat, lon).Parent(s2Levels[resolution])), true
}

// CellCenter returns the center coordinate of a cell id produced by CellID.
// Ids that are not cells at one of the nine resolutions report false.
func CellCenter(id uint64) (lat, lon float64, ok bool) {
	if _, ok := CellResolution(id); !ok {
		return 0, 0, false
	}
	ll := s2.CellID(id).LatLng()
	return ll.Lat.Degrees(), ll.Lng.Degrees(), true
}

// CellResolution returns the resolution a cell id belongs to.
func CellResolution(id uint64) (int, bool) {
	cell := s2.CellID(id)
	if !cell.IsValid() {
		return 0, false
	}
	level := cell.Level()
	for res, l := range s2Levels {
		if l == level {
			return res, true
		}
	}
	return 0, false
}

// cellsFor computes the cell id at every resolution. The coordinate must
// already be validated.
func cellsFor(lat, lon float64) domain.CellSet {
	leaf := leafCell(lat, lon)
	var cells domain.CellSet
	for res, level := range s2Levels {
		cells[res] = uint64(leaf.Parent(level))
	}
	return cells
}

func leafCell(lat, lon float64) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))
}
