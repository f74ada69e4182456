package models

import (
	"errors"
	"fmt"
)

// Custom errors
var (
	ErrDataLoad           = errors.New("reference data load failed")
	ErrInvalidAge         = errors.New("invalid age")
	ErrInvalidGender      = errors.New("invalid gender")
	ErrUnjoinableRow      = errors.New("unjoinable row")
	ErrMissingFeature     = errors.New("missing feature")
	ErrNonNumericFeature  = errors.New("non-numeric feature")
	ErrModelUnavailable   = errors.New("model unavailable")
	ErrFeatureAssembly    = errors.New("feature assembly failed")
	ErrGeocodeUnavailable = errors.New("geocode unavailable")
	ErrNotFound           = errors.New("record not found")
)

// DataLoadError reports a reference table that is missing, malformed or
// violates a uniqueness rule.
type DataLoadError struct {
	Table  string
	Reason string
	Err    error
}

func (e *DataLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Table, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Table, e.Reason)
}

func (e *DataLoadError) Is(target error) bool { return target == ErrDataLoad }
func (e *DataLoadError) Unwrap() error        { return e.Err }

// NewDataLoadError creates a new data load error
func NewDataLoadError(table, reason string, err error) *DataLoadError {
	return &DataLoadError{Table: table, Reason: reason, Err: err}
}

// InputError reports a bad field on an AthleteQuery.
type InputError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%v: %s=%v", e.Err, e.Field, e.Value)
}

func (e *InputError) Unwrap() error { return e.Err }

// JoinError reports a lookup that matched zero or more than one row where
// exactly one was required.
type JoinError struct {
	Table   string
	Key     string
	Value   string
	Matches int
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("unjoinable row: %s.%s=%q matched %d rows, want 1", e.Table, e.Key, e.Value, e.Matches)
}

func (e *JoinError) Is(target error) bool { return target == ErrUnjoinableRow }

// MissingFeatureError reports a feature declared by a model that the
// assembler cannot produce.
type MissingFeatureError struct {
	Model   string
	Feature string
	Err     error
}

func (e *MissingFeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model %s: feature %q unavailable: %v", e.Model, e.Feature, e.Err)
	}
	return fmt.Sprintf("model %s: feature %q unavailable", e.Model, e.Feature)
}

func (e *MissingFeatureError) Is(target error) bool { return target == ErrMissingFeature }
func (e *MissingFeatureError) Unwrap() error        { return e.Err }

// FeatureAssemblyError wraps any failure raised while building a segment's
// feature row.
type FeatureAssemblyError struct {
	Segment Segment
	Err     error
}

func (e *FeatureAssemblyError) Error() string {
	return fmt.Sprintf("assemble %s features: %v", e.Segment, e.Err)
}

func (e *FeatureAssemblyError) Is(target error) bool { return target == ErrFeatureAssembly }
func (e *FeatureAssemblyError) Unwrap() error        { return e.Err }
