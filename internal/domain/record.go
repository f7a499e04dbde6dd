package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Measurement names written to the time-series sink.
const (
	MeasurementDataPoints       = "data_points"
	MeasurementSpatialCells     = "spatial_cells"
	MeasurementCalculatedFields = "calculated_fields"
)

const unknownTag = "unknown"

// Record is a single time-series point: a measurement with indexed tags and
// typed field values.
type Record struct {
	Measurement string            `json:"measurement"`
	Tags        map[string]string `json:"tags"`
	Fields      map[string]any    `json:"fields"`
	Time        time.Time         `json:"time"`
}

// Key groups records from the same sensor stream, used for sink partitioning.
func (r Record) Key() string {
	return r.Tags["source"] + "|" + r.Tags["variable"]
}

// BuildRecords converts processed points into sink records: one data_points
// record per point, one spatial_cells record when cells were resolved, and
// one calculated_fields record per derived field (sorted by field name).
func BuildRecords(points []ProcessedPoint) []Record {
	out := make([]Record, 0, len(points))
	for i := range points {
		out = append(out, pointRecords(points[i])...)
	}
	return out
}

func pointRecords(p ProcessedPoint) []Record {
	r := p.Reading
	e := p.Enriched
	ts := r.Time()
	category := r.Category.String()

	primary := Record{
		Measurement: MeasurementDataPoints,
		Tags: map[string]string{
			"source":   r.Source,
			"category": category,
			"variable": r.Variable,
			"units":    r.Units,
			"country":  orUnknown(e.Country),
			"region":   orUnknown(e.Region),
		},
		Fields: map[string]any{
			"value":         r.Value,
			"lat":           r.Lat,
			"lon":           r.Lon,
			"quality_score": p.QualityScore,
		},
		Time: ts,
	}
	addSpatial(primary, e)

	records := []Record{primary}

	if e.Cells != nil {
		spatial := Record{
			Measurement: MeasurementSpatialCells,
			Tags: map[string]string{
				"source":   r.Source,
				"category": category,
				"variable": r.Variable,
				"country":  orUnknown(e.Country),
				"region":   orUnknown(e.Region),
			},
			Fields: map[string]any{
				"lat": r.Lat,
				"lon": r.Lon,
			},
			Time: ts,
		}
		addSpatial(spatial, e)
		records = append(records, spatial)
	}

	for _, name := range slices.Sorted(maps.Keys(e.CalculatedFields)) {
		calc := Record{
			Measurement: MeasurementCalculatedFields,
			Tags: map[string]string{
				"source":            r.Source,
				"category":          category,
				"variable":          name,
				"original_variable": r.Variable,
				"units":             UnitFor(name, r.Category),
				"country":           orUnknown(e.Country),
				"region":            orUnknown(e.Region),
			},
			Fields: map[string]any{
				"value": e.CalculatedFields[name],
				"lat":   r.Lat,
				"lon":   r.Lon,
			},
			Time: ts,
		}
		addSpatial(calc, e)
		records = append(records, calc)
	}

	return records
}

// addSpatial adds per-resolution cell fields, resolution_used and the
// optional place/timezone tags. Maps are shared with rec, so no return value.
func addSpatial(rec Record, e EnrichedData) {
	if e.Cells != nil {
		for res, cell := range e.Cells {
			rec.Fields[CellFieldName(res)] = int64(cell) //nolint:gosec // cell ids are stored bit-for-bit
		}
	}
	if e.ResolutionUsed != nil {
		rec.Fields["resolution_used"] = int64(*e.ResolutionUsed)
	}
	if e.NearestPlace != nil {
		rec.Tags["nearest_place"] = *e.NearestPlace
	}
	if e.Timezone != nil {
		rec.Tags["timezone"] = *e.Timezone
	}
}

// CellFieldName returns the record field name for a resolution's cell id.
func CellFieldName(resolution int) string {
	return fmt.Sprintf("cell_res_%d", resolution)
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return unknownTag
	}
	return *s
}
