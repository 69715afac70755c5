package domain

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVessel = VesselIdentity{
	UUID:   "0b6a1a2c-3d4e-5f60-7a8b-9c0d1e2f3a4b",
	Name:   "Svanen",
	Type:   "Sail",
	Length: 11.3,
	MMSI:   "265547240",
}

func testSensors() SensorConfig {
	return SensorConfig{
		Sounder: SensorInfo{Make: "Airmar", Model: "DST810", X: -2, Z: 0.4, Draft: 0.5, Frequency: 235},
		GNSS:    SensorInfo{Make: "Garmin", Model: "GPS 24xd", X: 1.5, Z: -1.2},
	}
}

// featureCollection mirrors the serialized shape for assertions.
type featureCollection struct {
	Type string `json:"type"`
	CRS  struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
	Properties struct {
		TrustedNode struct {
			UniqueVesselID string `json:"uniqueVesselID"`
			Convention     string `json:"convention"`
		} `json:"trustedNode"`
		Platform struct {
			UniqueID string          `json:"uniqueID"`
			Name     string          `json:"name"`
			IDType   string          `json:"IDType"`
			IDNumber string          `json:"IDNumber"`
			Sensors  []json.RawMessage `json:"sensors"`
		} `json:"platform"`
	} `json:"properties"`
	Features []struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Time    string   `json:"time"`
			Heading *float64 `json:"heading"`
		} `json:"properties"`
	} `json:"features"`
}

func streamObservations(obs ...Observation) (<-chan Observation, chan error) {
	out := make(chan Observation)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, o := range obs {
			out <- o
		}
	}()
	return out, errs
}

func TestGeoJSONReader(t *testing.T) {
	base := time.Date(2025, time.August, 6, 22, 0, 0, 0, time.UTC)
	obs, errs := streamObservations(
		Observation{Latitude: 59.32935, Longitude: 18.06859, Depth: 12.35, Timestamp: base},
		Observation{Latitude: 59.32940, Longitude: 18.06870, Depth: 11.90, Timestamp: base.Add(time.Second), Heading: heading(181.5)},
	)

	meta := Metadata(testVessel, testSensors())
	r := NewGeoJSONReader(meta, nil, obs, errs)
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(data, &fc), "stream must be valid JSON: %s", data)

	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, "EPSG:4326", fc.CRS.Properties.Name)
	assert.Equal(t, "GeoJSON CSB 3.1", fc.Properties.TrustedNode.Convention)
	assert.Equal(t, "SIGNALK-"+testVessel.UUID, fc.Properties.TrustedNode.UniqueVesselID)
	assert.Equal(t, "SIGNALK-"+testVessel.UUID, fc.Properties.Platform.UniqueID)

	require.Len(t, fc.Features, 2)
	first := fc.Features[0]
	assert.Equal(t, "Feature", first.Type)
	assert.Equal(t, "Point", first.Geometry.Type)
	// Coordinates are [longitude, latitude, depth].
	assert.Equal(t, []float64{18.06859, 59.32935, 12.35}, first.Geometry.Coordinates)
	assert.Equal(t, "2025-08-06T22:00:00Z", first.Properties.Time)
	assert.Nil(t, first.Properties.Heading)

	second := fc.Features[1]
	require.NotNil(t, second.Properties.Heading)
	assert.Equal(t, 181.5, *second.Properties.Heading)
}

func TestGeoJSONReader_AppliesStage(t *testing.T) {
	obs, errs := streamObservations(
		Observation{Latitude: 59.329345678, Longitude: 18.068591234, Depth: 12.3456, Timestamp: time.Now()},
	)

	r := NewGeoJSONReader(Metadata(testVessel, testSensors()), ToPrecision(5, 2), obs, errs)
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, []float64{18.06859, 59.32935, 12.35}, fc.Features[0].Geometry.Coordinates)
}

func TestGeoJSONReader_EmptyWindow(t *testing.T) {
	obs, errs := streamObservations()

	r := NewGeoJSONReader(Metadata(testVessel, testSensors()), nil, obs, errs)
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Empty(t, fc.Features)
}

func TestGeoJSONReader_SourceError(t *testing.T) {
	obs := make(chan Observation)
	errs := make(chan error, 1)
	go func() {
		obs <- Observation{Latitude: 1, Longitude: 2, Depth: 3, Timestamp: time.Now()}
		errs <- errors.New("disk exploded")
		close(errs)
		close(obs)
	}()

	r := NewGeoJSONReader(Metadata(testVessel, testSensors()), nil, obs, errs)
	_, err := io.ReadAll(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk exploded")
}

func TestMetadata_IdentifiesVessel(t *testing.T) {
	meta := Metadata(testVessel, testSensors())

	p := meta.Properties.Platform
	assert.Equal(t, "Svanen", p.Name)
	assert.Equal(t, "Sail", p.Type)
	assert.Equal(t, 11.3, p.Length)
	assert.Equal(t, "MMSI", p.IDType)
	assert.Equal(t, "265547240", p.IDNumber)
	require.Len(t, p.Sensors, 2)
	assert.Equal(t, "Sounder", p.Sensors[0].Type)
	assert.Equal(t, "GNSS", p.Sensors[1].Type)
	assert.True(t, p.PositionOffsetsDocumented)
	assert.False(t, p.DataProcessed)
}

func TestMetadata_Anonymous(t *testing.T) {
	cfg := testSensors()
	cfg.Anonymous = true

	meta := Metadata(testVessel, cfg)

	p := meta.Properties.Platform
	assert.Equal(t, "SIGNALK-"+testVessel.UUID, p.UniqueID, "uniqueID survives anonymity")
	assert.Empty(t, p.Name)
	assert.Empty(t, p.Type)
	assert.Zero(t, p.Length)
	assert.Empty(t, p.IDType)
	assert.Empty(t, p.IDNumber)
	require.Len(t, p.Sensors, 2, "sensor installation is not identifying")
}

func TestMetadata_IMOFallback(t *testing.T) {
	v := testVessel
	v.MMSI = ""
	v.IMO = "9074729"

	p := Metadata(v, testSensors()).Properties.Platform
	assert.Equal(t, "IMO", p.IDType)
	assert.Equal(t, "9074729", p.IDNumber)
}

func TestSensorConfigOffset(t *testing.T) {
	off := testSensors().Offset()
	assert.InDelta(t, -3.5, off.X, 1e-12)
	assert.InDelta(t, 0, off.Y, 1e-12)
	assert.InDelta(t, 1.6, off.Z, 1e-12)
}
