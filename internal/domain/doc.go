// Package domain models crowd-sourced bathymetry (CSB) observations and the
// transforms that prepare them for submission.
//
// # Data model
//
// An Observation is a single depth sounding with the GNSS position fix taken
// at the same instant. Depth is meters below the transducer; positions are
// WGS-84 (EPSG:4326). Observations are immutable once recorded.
//
// # Transform chain
//
// Submissions run each observation through a chain of pure stages:
//
//	CorrectForSensorPosition → ToPrecision → GeoJSON serialization
//
// Offset correction translates the GNSS fix to the sounder's ground position
// using the vessel heading and the body-frame offset between the two sensors
// (X forward, Y starboard, Z down). Without a heading the offset cannot be
// rotated into earth coordinates and the fix passes through unchanged.
//
// Precision quantization rounds coordinates and depth to fixed decimals to
// bound payload size and avoid reporting false precision. Archive guidance
// suggests 5 decimal degrees (~1 m) and centimeter depth; the exact values
// are configuration-supplied.
//
// # Submission format
//
// The archive accepts a GeoJSON FeatureCollection of Point features with
// [longitude, latitude, depth] coordinates, carrying a metadata envelope per
// the "GeoJSON CSB 3.1" convention: a trustedNode block identifying the
// provider and a platform block identifying the vessel and its sensor
// installation. See
// https://www.ncei.noaa.gov/sites/g/files/anmtlf171/files/2024-04/SampleCSBFileFormats.pdf
//
// Vessels that opt into anonymous sharing omit name, type, length, and
// MMSI/IMO from the platform block; the derived uniqueID remains because the
// archive keys submissions by it.
package domain
