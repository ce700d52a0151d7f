package meta

import (
	"encoding/json"

	"zarrstream/internal/zarr"
)

// v2Serializer emits the Zarr version 2 documents: .zgroup, .zattrs,
// acquire.json, and 0/.zarray.
type v2Serializer struct {
	settings *zarr.StreamSettings
	geo      *zarr.Geometry
}

type v2Group struct {
	ZarrFormat int `json:"zarr_format"`
}

// v2Compressor is the blosc-style compressor descriptor recorded in
// .zarray. Field names and values are the compatibility contract with
// external readers.
type v2Compressor struct {
	ID        string `json:"id"`
	Cname     string `json:"cname"`
	Clevel    int    `json:"clevel"`
	Shuffle   int    `json:"shuffle"`
	Blocksize int    `json:"blocksize"`
}

type v2Array struct {
	ZarrFormat int           `json:"zarr_format"`
	Shape      []uint64      `json:"shape"`
	Chunks     []uint64      `json:"chunks"`
	Dtype      string        `json:"dtype"`
	Compressor *v2Compressor `json:"compressor"`
	FillValue  any           `json:"fill_value"`
	Order      string        `json:"order"`
	Filters    any           `json:"filters"`
}

func (s *v2Serializer) OpenDocs() ([]Doc, error) {
	group, err := json.Marshal(v2Group{ZarrFormat: 2})
	if err != nil {
		return nil, err
	}

	attrs, err := attributes(s.settings.CustomMetadata, s.settings.Dimensions)
	if err != nil {
		return nil, err
	}
	attrsData, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}

	return []Doc{
		{Key: zarr.V2GroupKey, Data: group},
		{Key: zarr.V2AttrsKey, Data: attrsData},
		acquireDoc(zarr.V2AcquireKey, s.settings.CustomMetadata),
	}, nil
}

func (s *v2Serializer) ArrayDoc(shape []uint64) (Doc, error) {
	arr := v2Array{
		ZarrFormat: 2,
		Shape:      shape,
		Chunks:     s.geo.ChunkShape(),
		Dtype:      s.settings.DataType.V2(),
		FillValue:  0,
		Order:      "C",
		Filters:    nil,
	}
	if c := s.settings.Compression; c != nil {
		arr.Compressor = &v2Compressor{
			ID:      "blosc",
			Cname:   c.Codec.Name(),
			Clevel:  c.Level,
			Shuffle: c.Shuffle,
		}
	}

	data, err := json.Marshal(arr)
	if err != nil {
		return Doc{}, err
	}
	return Doc{Key: zarr.V2ArrayKey, Data: data}, nil
}
