package models

import "strings"

// Gender of the athlete as recorded in the historical results
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// ParseGender normalizes user input into a Gender. Only "M" and "F" are
// accepted, ignoring surrounding whitespace.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.TrimSpace(s)); g {
	case GenderMale, GenderFemale:
		return g, nil
	default:
		return "", &InputError{Field: "gender", Value: s, Err: ErrInvalidGender}
	}
}

// AthleteQuery is the raw input of a single prediction request
type AthleteQuery struct {
	Age           int    `json:"age"`
	Gender        Gender `json:"gender"`
	Country       string `json:"country"`
	EventLocation string `json:"event_location"`
	IsElite       bool   `json:"elite"`
}

// Segment identifies one of the race legs a model predicts
type Segment string

const (
	SegmentSwim  Segment = "swim"
	SegmentBike  Segment = "bike"
	SegmentRun   Segment = "run"
	SegmentTotal Segment = "total"
)

// AllSegments lists the segments in presentation order
var AllSegments = []Segment{SegmentSwim, SegmentBike, SegmentRun, SegmentTotal}

// IsValid checks if the segment is one of the known race legs
func (s Segment) IsValid() bool {
	switch s {
	case SegmentSwim, SegmentBike, SegmentRun, SegmentTotal:
		return true
	default:
		return false
	}
}
