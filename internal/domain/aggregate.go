package domain

// Aggregator expands one validated, enriched reading into zero or more output
// readings. Implementations must not block; a bucketing implementation keeps
// its own state keyed by (source, variable, time bucket) and returns the
// aggregated readings when a bucket closes.
type Aggregator interface {
	Aggregate(r Reading, e EnrichedData) []Reading
}

// PassthroughAggregator emits every reading unchanged.
type PassthroughAggregator struct{}

func (PassthroughAggregator) Aggregate(r Reading, _ EnrichedData) []Reading {
	return []Reading{r}
}
