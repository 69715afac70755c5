package domain

import (
	"fmt"
	"time"
)

// Observation is one timestamped depth sounding with its position fix.
// Depth is meters below the transducer, latitude/longitude are WGS-84
// decimal degrees, heading is degrees true when the vessel reported one.
// Observations are immutable once recorded.
type Observation struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Depth     float64   `json:"depth"`
	Timestamp time.Time `json:"timestamp"`
	Heading   *float64  `json:"heading,omitempty"`
}

// Validate reports whether the observation is usable as a depth sample.
func (o Observation) Validate() error {
	if o.Depth < 0 {
		return fmt.Errorf("negative depth %f", o.Depth)
	}
	if o.Latitude < -90 || o.Latitude > 90 {
		return fmt.Errorf("latitude %f out of range", o.Latitude)
	}
	if o.Longitude < -180 || o.Longitude > 180 {
		return fmt.Errorf("longitude %f out of range", o.Longitude)
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	return nil
}

// Timeframe is a half-open time window [From, To).
type Timeframe struct {
	From time.Time
	To   time.Time
}

// Valid reports whether From <= To.
func (tf Timeframe) Valid() bool {
	return !tf.To.Before(tf.From)
}

// Contains reports whether t falls inside the half-open window.
func (tf Timeframe) Contains(t time.Time) bool {
	return !t.Before(tf.From) && t.Before(tf.To)
}

// VesselIdentity describes the reporting vessel. It is supplied by the
// surrounding server and treated as read-only here.
type VesselIdentity struct {
	UUID   string
	Name   string
	Type   string
	Length float64 // length overall in meters
	MMSI   string
	IMO    string
	Token  string // bearer credential for the submission endpoint
}

// UniqueID derives the canonical vessel identifier used in submissions
// and token binding.
func UniqueID(v VesselIdentity) string {
	return "SIGNALK-" + v.UUID
}
