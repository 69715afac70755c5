package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heading(h float64) *float64 { return &h }

func TestToPrecision(t *testing.T) {
	stage := ToPrecision(5, 2)

	o := stage(Observation{
		Latitude:  59.3293456789,
		Longitude: 18.0685912345,
		Depth:     12.3456789,
	})

	assert.Equal(t, 59.32935, o.Latitude)
	assert.Equal(t, 18.06859, o.Longitude)
	assert.Equal(t, 12.35, o.Depth)
}

func TestToPrecision_Idempotent(t *testing.T) {
	stage := ToPrecision(5, 2)

	inputs := []Observation{
		{Latitude: 59.3293456789, Longitude: 18.0685912345, Depth: 12.3456789},
		{Latitude: -33.857123, Longitude: 151.215123, Depth: 4.005},
		{Latitude: 0, Longitude: 0, Depth: 0},
		{Latitude: 89.999999, Longitude: -179.999999, Depth: 10999.99999},
	}

	for _, in := range inputs {
		once := stage(in)
		twice := stage(once)
		assert.Equal(t, once, twice, "rounding %+v must be stable", in)
	}
}

func TestCorrectForSensorPosition_NoHeading(t *testing.T) {
	stage := CorrectForSensorPosition(SensorOffset{X: 5, Y: 2})

	in := Observation{Latitude: 59.3, Longitude: 18.0, Depth: 10}
	out := stage(in)

	// Without a heading the body-frame offset cannot be applied.
	assert.Equal(t, in, out)
}

func TestCorrectForSensorPosition_ZeroOffset(t *testing.T) {
	stage := CorrectForSensorPosition(SensorOffset{})

	in := Observation{Latitude: 59.3, Longitude: 18.0, Depth: 10, Heading: heading(123)}
	assert.Equal(t, in, stage(in))
}

func TestCorrectForSensorPosition_HeadingNorth(t *testing.T) {
	// Sounder 10m forward of the antenna, vessel pointing due north:
	// the corrected position moves ~10m north, longitude unchanged.
	stage := CorrectForSensorPosition(SensorOffset{X: 10})

	out := stage(Observation{Latitude: 59.3, Longitude: 18.0, Heading: heading(0)})

	assert.InDelta(t, 59.3+10/111320.0, out.Latitude, 1e-9)
	assert.InDelta(t, 18.0, out.Longitude, 1e-9)
}

func TestCorrectForSensorPosition_HeadingEast(t *testing.T) {
	// Pointing due east, a forward offset moves the position east. The
	// longitude displacement grows with latitude.
	lat := 60.0
	stage := CorrectForSensorPosition(SensorOffset{X: 10})

	out := stage(Observation{Latitude: lat, Longitude: 18.0, Heading: heading(90)})

	wantLon := 18.0 + 10/(111320.0*math.Cos(lat*math.Pi/180))
	assert.InDelta(t, lat, out.Latitude, 1e-9)
	assert.InDelta(t, wantLon, out.Longitude, 1e-9)
}

func TestCorrectForSensorPosition_StarboardOffset(t *testing.T) {
	// Pointing north, a starboard offset moves the position east.
	stage := CorrectForSensorPosition(SensorOffset{Y: 4})

	out := stage(Observation{Latitude: 0, Longitude: 0, Heading: heading(0)})

	assert.InDelta(t, 0, out.Latitude, 1e-9)
	assert.InDelta(t, 4/111320.0, out.Longitude, 1e-9)
}

func TestChain(t *testing.T) {
	stage := Chain(
		CorrectForSensorPosition(SensorOffset{X: 10}),
		ToPrecision(5, 2),
	)

	out := stage(Observation{Latitude: 59.3, Longitude: 18.0, Depth: 12.345, Heading: heading(0)})

	assert.Equal(t, 59.30009, out.Latitude)
	assert.Equal(t, 18.0, out.Longitude)
	assert.Equal(t, 12.35, out.Depth)
}

func TestObservationValidate(t *testing.T) {
	ts := time.Date(2025, time.August, 6, 22, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		obs     Observation
		wantErr bool
	}{
		{"valid", Observation{Latitude: 59.3, Longitude: 18.0, Depth: 5, Timestamp: ts}, false},
		{"negative depth", Observation{Latitude: 59.3, Longitude: 18.0, Depth: -1, Timestamp: ts}, true},
		{"latitude out of range", Observation{Latitude: 91, Longitude: 18.0, Depth: 5, Timestamp: ts}, true},
		{"longitude out of range", Observation{Latitude: 59.3, Longitude: -181, Depth: 5, Timestamp: ts}, true},
		{"missing timestamp", Observation{Latitude: 59.3, Longitude: 18.0, Depth: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.obs.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUniqueID(t *testing.T) {
	a := VesselIdentity{UUID: "aaaa-bbbb"}
	b := VesselIdentity{UUID: "cccc-dddd"}

	assert.Equal(t, "SIGNALK-aaaa-bbbb", UniqueID(a))
	assert.Equal(t, UniqueID(a), UniqueID(a), "derivation must be deterministic")
	assert.NotEqual(t, UniqueID(a), UniqueID(b))
}
