package domain

import (
	"math"
)

// metersPerDegree is the length of one degree of latitude at the WGS-84
// mean radius. Good to well under a meter over the offsets involved here.
const metersPerDegree = 111320.0

// Stage is one pure step of the observation transform chain. Stages are
// stateless and composable; the reporter runs them per observation while
// streaming, so a slow consumer pauses the whole chain.
type Stage func(Observation) Observation

// Chain composes stages left to right into a single stage.
func Chain(stages ...Stage) Stage {
	return func(o Observation) Observation {
		for _, s := range stages {
			o = s(o)
		}
		return o
	}
}

// SensorOffset is the position of the sounder relative to the GNSS antenna
// in the vessel body frame: X forward (bow positive), Y starboard positive,
// Z down positive, all meters.
type SensorOffset struct {
	X float64
	Y float64
	Z float64
}

// IsZero reports whether the offset is the zero vector.
func (s SensorOffset) IsZero() bool {
	return s.X == 0 && s.Y == 0 && s.Z == 0
}

// CorrectForSensorPosition translates each observation's position from the
// GNSS antenna to the sounder's ground position using the vessel heading.
// Observations without a heading pass through unchanged: the body-frame
// offset cannot be rotated into earth coordinates without one.
func CorrectForSensorPosition(offset SensorOffset) Stage {
	return func(o Observation) Observation {
		if o.Heading == nil || offset.IsZero() {
			return o
		}

		theta := *o.Heading * math.Pi / 180
		north := offset.X*math.Cos(theta) - offset.Y*math.Sin(theta)
		east := offset.X*math.Sin(theta) + offset.Y*math.Cos(theta)

		o.Latitude += north / metersPerDegree
		o.Longitude += east / (metersPerDegree * math.Cos(o.Latitude*math.Pi/180))
		return o
	}
}

// ToPrecision rounds coordinates and depth to fixed decimal places. The
// rounding is idempotent: reapplying the stage never changes an
// already-rounded observation.
func ToPrecision(coordDecimals, depthDecimals int) Stage {
	coordScale := math.Pow(10, float64(coordDecimals))
	depthScale := math.Pow(10, float64(depthDecimals))

	return func(o Observation) Observation {
		o.Latitude = math.Round(o.Latitude*coordScale) / coordScale
		o.Longitude = math.Round(o.Longitude*coordScale) / coordScale
		o.Depth = math.Round(o.Depth*depthScale) / depthScale
		return o
	}
}
