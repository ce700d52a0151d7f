// Package zarr defines the core data model for streaming Zarr stores:
// dimensions, data types, stream settings, and the chunk/shard geometry
// arithmetic that maps appended frames onto stored objects.
//
// The package is pure data and math. It performs no I/O and holds no
// mutable state; everything downstream (assembly, compression, sinks,
// metadata) derives from a validated StreamSettings and its Geometry.
package zarr

import "errors"

// ErrInvalidSettings is returned when stream settings fail validation.
// A stream constructed from invalid settings never reaches the open state.
var ErrInvalidSettings = errors.New("invalid stream settings")

// Version selects the Zarr storage format.
type Version int

const (
	// V2 is the Zarr version 2 storage format (.zgroup/.zattrs/.zarray).
	V2 Version = 2
	// V3 is the Zarr version 3 storage format (zarr.json + meta/ documents),
	// the only version supporting sharded chunk storage.
	V3 Version = 3
)

func (v Version) String() string {
	switch v {
	case V2:
		return "v2"
	case V3:
		return "v3"
	}
	return "unknown"
}
