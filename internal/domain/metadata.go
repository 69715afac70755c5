package domain

// Provenance identifies this logger in submission envelopes.
const (
	providerOrganization = "Open Water Software"
	providerEmail        = "bathy@openwaters.io"
	providerLogger       = "crowd-depth (https://github.com/openwaters/crowd-depth)"
	providerVersion      = "1.0.0"
	csbConvention        = "GeoJSON CSB 3.1"
	crsName              = "EPSG:4326"
)

// SensorInfo describes one installed sensor for the metadata envelope.
type SensorInfo struct {
	Make      string
	Model     string
	X, Y, Z   float64
	Draft     float64 // sounder only: meters below waterline
	Frequency float64 // sounder only: kHz
}

// SensorConfig holds the installation description used to build submission
// metadata and the offset correction.
type SensorConfig struct {
	Sounder   SensorInfo
	GNSS      SensorInfo
	Anonymous bool // omit identifying vessel attributes from submissions
}

// Offset returns the sounder position relative to the GNSS antenna.
func (c SensorConfig) Offset() SensorOffset {
	return SensorOffset{
		X: c.Sounder.X - c.GNSS.X,
		Y: c.Sounder.Y - c.GNSS.Y,
		Z: c.Sounder.Z - c.GNSS.Z,
	}
}

// SubmissionMetadata is the crowd-sourced bathymetry metadata envelope,
// per the IHO CSB GeoJSON convention. It is carried both as the multipart
// metadataInput field and as the FeatureCollection properties block.
type SubmissionMetadata struct {
	CRS        metadataCRS        `json:"crs"`
	Properties metadataProperties `json:"properties"`
}

type metadataCRS struct {
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type metadataProperties struct {
	TrustedNode trustedNode `json:"trustedNode"`
	Platform    platform    `json:"platform"`
}

type trustedNode struct {
	ProviderOrganizationName string `json:"providerOrganizationName"`
	ProviderEmail            string `json:"providerEmail"`
	UniqueVesselID           string `json:"uniqueVesselID"`
	Convention               string `json:"convention"`
	DataLicense              string `json:"dataLicense"`
	ProviderLogger           string `json:"providerLogger"`
	ProviderLoggerVersion    string `json:"providerLoggerVersion"`
	NavigationCRS            string `json:"navigationCRS"`
	VerticalReferenceOfDepth string `json:"verticalReferenceOfDepth"`
	VesselPositionRefPoint   string `json:"vesselPositionReferencePoint"`
}

type platform struct {
	UniqueID string  `json:"uniqueID"`
	Type     string  `json:"type,omitempty"`
	Name     string  `json:"name,omitempty"`
	Length   float64 `json:"length,omitempty"`
	IDType   string  `json:"IDType,omitempty"`
	IDNumber string  `json:"IDNumber,omitempty"`

	Sensors []platformSensor `json:"sensors"`

	// Positions have been corrected for GNSS/sounder offsets.
	PositionOffsetsDocumented bool `json:"positionOffsetsDocumented"`
	// Data has not been adjusted for tides, datum, or sound speed.
	DataProcessed bool `json:"dataProcessed"`
}

type platformSensor struct {
	Type      string     `json:"type"`
	Make      string     `json:"make"`
	Model     string     `json:"model"`
	Position  [3]float64 `json:"position"`
	Draft     float64    `json:"draft,omitempty"`
	Frequency float64    `json:"frequency,omitempty"`
}

// Metadata builds the submission envelope for a vessel and sensor
// installation. With cfg.Anonymous set, identifying vessel attributes
// (name, type, length, MMSI/IMO) are omitted; the derived uniqueID is
// always present because the archive requires a stable submitter key.
func Metadata(v VesselIdentity, cfg SensorConfig) SubmissionMetadata {
	uid := UniqueID(v)

	var m SubmissionMetadata
	m.CRS.Properties.Name = crsName
	m.Properties.TrustedNode = trustedNode{
		ProviderOrganizationName: providerOrganization,
		ProviderEmail:            providerEmail,
		UniqueVesselID:           uid,
		Convention:               csbConvention,
		DataLicense:              "CC0 1.0",
		ProviderLogger:           providerLogger,
		ProviderLoggerVersion:    providerVersion,
		NavigationCRS:            crsName,
		VerticalReferenceOfDepth: "Waterline",
		VesselPositionRefPoint:   "Transducer",
	}

	p := platform{
		UniqueID:                  uid,
		PositionOffsetsDocumented: true,
		DataProcessed:             false,
		Sensors: []platformSensor{
			{
				Type:      "Sounder",
				Make:      orUnknown(cfg.Sounder.Make),
				Model:     orUnknown(cfg.Sounder.Model),
				Position:  [3]float64{cfg.Sounder.X, cfg.Sounder.Y, cfg.Sounder.Z},
				Draft:     cfg.Sounder.Draft,
				Frequency: cfg.Sounder.Frequency,
			},
			{
				Type:     "GNSS",
				Make:     orUnknown(cfg.GNSS.Make),
				Model:    orUnknown(cfg.GNSS.Model),
				Position: [3]float64{cfg.GNSS.X, cfg.GNSS.Y, cfg.GNSS.Z},
			},
		},
	}

	if !cfg.Anonymous {
		p.Type = v.Type
		p.Name = v.Name
		p.Length = v.Length
		switch {
		case v.MMSI != "":
			p.IDType = "MMSI"
			p.IDNumber = v.MMSI
		case v.IMO != "":
			p.IDType = "IMO"
			p.IDNumber = v.IMO
		}
	}

	m.Properties.Platform = p
	return m
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
