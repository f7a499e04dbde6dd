package domain

// ProcessedPoint is a reading ready for the sink.
type ProcessedPoint struct {
	Reading      Reading
	Enriched     EnrichedData
	QualityScore float64
}

// QualityScore rates how trustworthy a reading looks, in [0,1].
func QualityScore(r Reading, e EnrichedData) float64 {
	score := 1.0
	if r.Lat == 0 && r.Lon == 0 {
		score *= 0.7
	}
	if r.Source == "unknown" {
		score *= 0.8
	}
	if e.Country != nil {
		score *= 1.1
	}
	return min(max(score, 0), 1)
}
