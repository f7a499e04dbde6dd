package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category is the closed set of reading categories. The zero value is
// CategoryUnknown, which never passes validation.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryEnvironmental
	CategoryHealth
	CategoryInfrastructure
	CategoryEconomic
	CategorySocial
)

var categoryNames = [...]string{
	CategoryUnknown:        "unknown",
	CategoryEnvironmental:  "environmental",
	CategoryHealth:         "health",
	CategoryInfrastructure: "infrastructure",
	CategoryEconomic:       "economic",
	CategorySocial:         "social",
}

// ParseCategory maps a wire category string to a Category. Matching is exact;
// unrecognized or empty strings yield CategoryUnknown.
func ParseCategory(s string) Category {
	for c, name := range categoryNames {
		if c != int(CategoryUnknown) && name == s {
			return Category(c)
		}
	}
	return CategoryUnknown
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return categoryNames[CategoryUnknown]
}

// Known reports whether c is one of the supported categories.
func (c Category) Known() bool {
	return c != CategoryUnknown && int(c) < len(categoryNames)
}

// Reading is one timestamped, geolocated measurement of a named variable.
type Reading struct {
	Source   string
	Category Category
	Variable string
	Value    float64
	Units    string
	Lat      float64
	Lon      float64
	EpochMS  int64
}

// Time returns the reading timestamp in UTC.
func (r Reading) Time() time.Time {
	return time.UnixMilli(r.EpochMS).UTC()
}

// DecodeReading deserializes a RawEvent's value into a Reading. An absent or
// null epoch_ms falls back to the message timestamp, then to the package
// clock. An explicit 0 is kept.
func DecodeReading(raw RawEvent) (Reading, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(raw.Value, &msg); err != nil {
		return Reading{}, fmt.Errorf("decode reading: %w", err)
	}

	var epochMS int64
	switch {
	case msg.EpochMS != nil:
		epochMS = *msg.EpochMS
	case !raw.Timestamp.IsZero():
		epochMS = raw.Timestamp.UnixMilli()
	default:
		epochMS = clock.Now().UnixMilli()
	}

	return Reading{
		Source:   msg.Source,
		Category: ParseCategory(msg.Category),
		Variable: msg.Variable,
		Value:    msg.Value,
		Units:    msg.Units,
		Lat:      msg.Lat,
		Lon:      msg.Lon,
		EpochMS:  epochMS,
	}, nil
}
