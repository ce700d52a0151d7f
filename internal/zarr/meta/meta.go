// Package meta serializes the version-specific JSON documents of a
// Zarr store: group/root metadata and OME multiscale axes at stream
// open, array metadata once the final shape is known at close. The two
// format versions are independent serializers over the same derived
// array description, so no version's fields can leak into the other's
// documents.
package meta

import (
	"encoding/json"
	"fmt"

	"zarrstream/internal/zarr"
)

// Doc is a metadata document ready for the sink.
type Doc struct {
	Key  string
	Data []byte
}

// Serializer emits the metadata documents for one store version.
type Serializer interface {
	// OpenDocs returns the documents written at stream open: group/root
	// metadata with axes and the custom-metadata passthrough. Shape is
	// not yet known and does not appear.
	OpenDocs() ([]Doc, error)
	// ArrayDoc returns the array metadata document for the final shape.
	// Written at close, and only once at least one chunk was emitted.
	ArrayDoc(shape []uint64) (Doc, error)
}

// NewSerializer selects the serializer for the settings' version.
// Settings must have been validated.
func NewSerializer(s *zarr.StreamSettings) Serializer {
	if s.Version == zarr.V2 {
		return &v2Serializer{settings: s, geo: zarr.NewGeometry(s)}
	}
	return &v3Serializer{settings: s, geo: zarr.NewGeometry(s)}
}

// axis is one entry of the OME multiscales axes list. Unit is present
// only for spatial axes.
type axis struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Unit string `json:"unit,omitempty"`
}

type dataset struct {
	Path                      string          `json:"path"`
	CoordinateTransformations []transformSpec `json:"coordinateTransformations"`
}

type transformSpec struct {
	Type  string    `json:"type"`
	Scale []float64 `json:"scale"`
}

type multiscale struct {
	Version  string    `json:"version"`
	Name     string    `json:"name"`
	Axes     []axis    `json:"axes"`
	Datasets []dataset `json:"datasets"`
}

// multiscales builds the OME block shared by both versions. Axis order
// always matches declared dimension order.
func multiscales(dims []zarr.Dimension) []multiscale {
	axes := make([]axis, len(dims))
	scale := make([]float64, len(dims))
	for i, d := range dims {
		axes[i] = axis{Name: d.Name, Type: d.Kind.String(), Unit: d.Kind.Unit()}
		scale[i] = 1
	}
	return []multiscale{{
		Version: "0.4",
		Name:    "/",
		Axes:    axes,
		Datasets: []dataset{{
			Path:                      "0",
			CoordinateTransformations: []transformSpec{{Type: "scale", Scale: scale}},
		}},
	}}
}

// attributes merges the caller's custom metadata object with the
// multiscales block. Custom keys are carried verbatim; "multiscales"
// is reserved.
func attributes(custom json.RawMessage, dims []zarr.Dimension) (map[string]any, error) {
	attrs := make(map[string]any)
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &attrs); err != nil {
			return nil, fmt.Errorf("parse custom metadata: %w", err)
		}
	}
	attrs["multiscales"] = multiscales(dims)
	return attrs, nil
}

// acquireDoc is the custom-metadata passthrough document. An absent
// custom object is written as an empty one.
func acquireDoc(key string, custom json.RawMessage) Doc {
	if len(custom) == 0 {
		custom = json.RawMessage(`{}`)
	}
	return Doc{Key: key, Data: append([]byte(nil), custom...)}
}
