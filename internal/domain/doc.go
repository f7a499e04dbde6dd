// Package domain models geotagged sensor readings and the rules that turn a
// raw reading into enriched time-series records.
//
// # Data Source
//
// Readings arrive on the Kafka source topic as flat JSON objects, one per
// message:
//
//	{"source":"sensor1","category":"environmental","variable":"temperature",
//	 "value":25.0,"units":"celsius","lat":35.5,"lon":139.5,"epoch_ms":1714143000000}
//
// A message without epoch_ms (absent or null) inherits the Kafka message
// timestamp; an explicit 0 is taken as the Unix epoch. Undecodable payloads are rejected by [DecodeReading] and never
// reach validation.
//
// # Categories
//
// The category set is closed: environmental, health, infrastructure, economic
// and social. The wire string is mapped to a [Category] once at decode time;
// anything else (including the empty string) becomes [CategoryUnknown], which
// the [Validator] always rejects.
//
// Validation ranges (value checks per category/variable):
//
//	environmental  temperature, humidity       configured [min,max]
//	               air_quality, pm2.5, pm10    >= 0
//	health         heart_rate                  [30,250] bpm
//	               temperature                 [35,42] °C (body temperature)
//	infrastructure temperature                 [-50,200] °C
//	               pressure                    > 0
//	               flow_rate                   >= 0
//	economic       price, cost, revenue        >= 0
//	social         population, count           >= 0, whole number
//	               percentage, rate            [0,100]
//
// Every reading, regardless of category, must also carry a finite value and a
// coordinate inside lat [-90,90], lon [-180,180].
//
// # Derived Fields
//
// The [Enricher] adds fixed-formula fields keyed by name. Two are simplified
// approximations and are kept bit-for-bit stable:
//
//	dew_point           = v - (100 - v) / 5   (humidity, not the Magnus formula)
//	population_density  = v / 1000            (no area data available)
//
// heart_rate_percentage uses a fixed reference maximum of 220-30 bpm; it is not
// age-adjusted.
//
// # Spatial Context
//
// Country, region, timezone and nearest place come from a [Locator], normally
// the gazetteer-backed index in package geo. Lookups are in-memory and never
// block; a coordinate with no gazetteer coverage simply leaves the spatial
// fields unset and the sink tags them "unknown".
//
// # Quality Score
//
// A heuristic confidence in [0,1]: start at 1.0, multiply by 0.7 when the
// coordinate is exactly (0,0) (null island, almost always a missing fix), by
// 0.8 when the source is the literal "unknown", by 1.1 when a country was
// resolved, then clamp. See [QualityScore].
package domain
