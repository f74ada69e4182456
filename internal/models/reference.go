package models

import (
	"sort"
	"strconv"
)

// Logical reference table names
const (
	TableCountryFrequency       = "country-frequency"
	TableEventLocationFrequency = "event-location-frequency"
	TableEventCountryFrequency  = "event-country-frequency"
	TableLocationAttributes     = "location-attributes"
	TableSportTypesPerLocation  = "sport-types-per-location"
	TableHistoricalResults      = "historical-results"
)

// AllTables lists every reference table in load order
var AllTables = []string{
	TableCountryFrequency,
	TableEventLocationFrequency,
	TableEventCountryFrequency,
	TableLocationAttributes,
	TableSportTypesPerLocation,
	TableHistoricalResults,
}

// Coordinates is a WGS84 latitude/longitude pair in degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LocationAttributes describes the course and environment of one event location
type LocationAttributes struct {
	EventLocation  string  `json:"event_location"`
	HostCountry    string  `json:"host_country"`
	SwimType       string  `json:"swim_type"`
	BikeType       string  `json:"bike_type"`
	RunType        string  `json:"run_type"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AltitudeMeters float64 `json:"altitude_m"`
	AvgAirTempC    float64 `json:"air_temp_c"`
	AvgWaterTempC  float64 `json:"water_temp_c"`
}

// Coordinates returns the event's position
func (l LocationAttributes) Coordinates() Coordinates {
	return Coordinates{Lat: l.Latitude, Lon: l.Longitude}
}

// SportTypeRow holds the categorical sport-type columns of one encoded location
type SportTypeRow struct {
	EventLocationEncoded float64
	Values               map[string]float64
}

// HistoricalResult is one participant's segment times in seconds
type HistoricalResult struct {
	EventLocation string  `json:"event_location"`
	SwimTime      float64 `json:"swim_time"`
	BikeTime      float64 `json:"bike_time"`
	RunTime       float64 `json:"run_time"`
}

// Time returns the result's duration for a segment. The total is the sum of the
// three legs.
func (h HistoricalResult) Time(segment Segment) float64 {
	switch segment {
	case SegmentSwim:
		return h.SwimTime
	case SegmentBike:
		return h.BikeTime
	case SegmentRun:
		return h.RunTime
	default:
		return h.SwimTime + h.BikeTime + h.RunTime
	}
}

// ReferenceTables is the read-only set of lookup tables shared by every request.
// It must not be mutated once returned by a loader.
type ReferenceTables struct {
	CountryFrequency       map[string]float64
	EventLocationFrequency map[string]float64
	EventCountryFrequency  map[string]float64
	LocationAttributes     map[string]LocationAttributes
	SportTypes             map[float64][]SportTypeRow
	SportTypeColumns       []string
	HistoricalResults      []HistoricalResult
}

// NewReferenceTables creates an empty table set
func NewReferenceTables() *ReferenceTables {
	return &ReferenceTables{
		CountryFrequency:       make(map[string]float64),
		EventLocationFrequency: make(map[string]float64),
		EventCountryFrequency:  make(map[string]float64),
		LocationAttributes:     make(map[string]LocationAttributes),
		SportTypes:             make(map[float64][]SportTypeRow),
	}
}

// CountryEncoded joins an athlete country against the country frequencies
func (t *ReferenceTables) CountryEncoded(country string) (float64, error) {
	return lookupFrequency(t.CountryFrequency, TableCountryFrequency, "Country", country)
}

// EventLocationEncoded joins an event location against its frequencies
func (t *ReferenceTables) EventLocationEncoded(location string) (float64, error) {
	return lookupFrequency(t.EventLocationFrequency, TableEventLocationFrequency, "EventLocation", location)
}

// EventCountryEncoded joins an event host country against its frequencies
func (t *ReferenceTables) EventCountryEncoded(country string) (float64, error) {
	return lookupFrequency(t.EventCountryFrequency, TableEventCountryFrequency, "EventCountry", country)
}

// Location returns the single attributes row for an event location
func (t *ReferenceTables) Location(location string) (LocationAttributes, error) {
	attrs, ok := t.LocationAttributes[location]
	if !ok {
		return LocationAttributes{}, &JoinError{Table: TableLocationAttributes, Key: "EventLocation", Value: location}
	}
	return attrs, nil
}

// SportTypesFor joins an encoded event location against the sport-type catalog.
// Frequency encodings may collide, so more than one row is an error.
func (t *ReferenceTables) SportTypesFor(encoded float64) (SportTypeRow, error) {
	rows := t.SportTypes[encoded]
	if len(rows) != 1 {
		return SportTypeRow{}, &JoinError{
			Table:   TableSportTypesPerLocation,
			Key:     "EventLocation_Encoded",
			Value:   strconv.FormatFloat(encoded, 'g', -1, 64),
			Matches: len(rows),
		}
	}
	return rows[0], nil
}

// HasSportTypeColumn checks if the sport-type catalog carries a column
func (t *ReferenceTables) HasSportTypeColumn(name string) bool {
	for _, c := range t.SportTypeColumns {
		if c == name {
			return true
		}
	}
	return false
}

// ResultsAt returns the historical results recorded at an event location
func (t *ReferenceTables) ResultsAt(location string) []HistoricalResult {
	var out []HistoricalResult
	for _, r := range t.HistoricalResults {
		if r.EventLocation == location {
			out = append(out, r)
		}
	}
	return out
}

// EventLocations returns the distinct event locations in sorted order
func (t *ReferenceTables) EventLocations() []string {
	return sortedKeys(t.EventLocationFrequency)
}

// Countries returns the distinct athlete countries in sorted order
func (t *ReferenceTables) Countries() []string {
	return sortedKeys(t.CountryFrequency)
}

// RowCounts returns the number of rows held per table
func (t *ReferenceTables) RowCounts() map[string]int {
	sportRows := 0
	for _, rows := range t.SportTypes {
		sportRows += len(rows)
	}
	return map[string]int{
		TableCountryFrequency:       len(t.CountryFrequency),
		TableEventLocationFrequency: len(t.EventLocationFrequency),
		TableEventCountryFrequency:  len(t.EventCountryFrequency),
		TableLocationAttributes:     len(t.LocationAttributes),
		TableSportTypesPerLocation:  sportRows,
		TableHistoricalResults:      len(t.HistoricalResults),
	}
}

func lookupFrequency(table map[string]float64, name, key, value string) (float64, error) {
	v, ok := table[value]
	if !ok {
		return 0, &JoinError{Table: name, Key: key, Value: value}
	}
	return v, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
