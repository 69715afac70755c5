package domain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// feature is one GeoJSON Point feature. Coordinates are
// [longitude, latitude, depth] per the CSB convention.
type feature struct {
	Type     string `json:"type"`
	Geometry struct {
		Type        string     `json:"type"`
		Coordinates [3]float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties featureProperties `json:"properties"`
}

type featureProperties struct {
	Time    string   `json:"time"`
	Heading *float64 `json:"heading,omitempty"`
}

func newFeature(o Observation) feature {
	var f feature
	f.Type = "Feature"
	f.Geometry.Type = "Point"
	f.Geometry.Coordinates = [3]float64{o.Longitude, o.Latitude, o.Depth}
	f.Properties.Time = o.Timestamp.UTC().Format(time.RFC3339)
	f.Properties.Heading = o.Heading
	return f
}

// NewGeoJSONReader returns a lazy byte stream of a GeoJSON FeatureCollection.
// Observations are pulled from obs one at a time, run through stage, and
// serialized on demand, so an arbitrarily large report window never needs to
// be materialized. The errs channel follows the source convention: at most
// one error, delivered before obs is closed. A source error aborts the
// stream, surfacing through the reader.
func NewGeoJSONReader(meta SubmissionMetadata, stage Stage, obs <-chan Observation, errs <-chan error) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		w := bufio.NewWriter(pw)

		crs, err := json.Marshal(meta.CRS)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("encode crs: %w", err))
			return
		}
		props, err := json.Marshal(meta.Properties)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("encode metadata: %w", err))
			return
		}

		if _, err := fmt.Fprintf(w, `{"type":"FeatureCollection","crs":%s,"properties":%s,"features":[`, crs, props); err != nil {
			pw.CloseWithError(err)
			return
		}

		first := true
		for o := range obs {
			if stage != nil {
				o = stage(o)
			}
			data, err := json.Marshal(newFeature(o))
			if err != nil {
				pw.CloseWithError(fmt.Errorf("encode feature: %w", err))
				return
			}
			if !first {
				if err := w.WriteByte(','); err != nil {
					pw.CloseWithError(err)
					return
				}
			}
			first = false
			if _, err := w.Write(data); err != nil {
				pw.CloseWithError(err)
				return
			}
		}

		if err, ok := <-errs; ok && err != nil {
			pw.CloseWithError(fmt.Errorf("read observations: %w", err))
			return
		}

		if _, err := w.WriteString("]}"); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := w.Flush(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	return pr
}
