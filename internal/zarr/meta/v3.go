package meta

import (
	"encoding/json"

	"zarrstream/internal/zarr"
)

// Protocol constants of the version 3 core spec.
const (
	v3ProtocolURI    = "https://purl.org/zarr/spec/protocol/core/3.0"
	v3BloscCodecURI  = "https://purl.org/zarr/spec/codec/blosc/1.0"
	v3ShardingExtURI = "https://purl.org/zarr/spec/storage_transformers/sharding/1.0"
)

// v3Serializer emits the Zarr version 3 documents: zarr.json,
// meta/root.group.json, meta/acquire.json, and meta/0.array.json.
type v3Serializer struct {
	settings *zarr.StreamSettings
	geo      *zarr.Geometry
}

type v3Root struct {
	ZarrFormat        string `json:"zarr_format"`
	MetadataEncoding  string `json:"metadata_encoding"`
	MetadataKeySuffix string `json:"metadata_key_suffix"`
	Extensions        []any  `json:"extensions"`
}

type v3Group struct {
	Attributes map[string]any `json:"attributes"`
}

type v3ChunkGrid struct {
	Type       string   `json:"type"`
	Separator  string   `json:"separator"`
	ChunkShape []uint64 `json:"chunk_shape"`
}

type v3Compressor struct {
	Codec         string          `json:"codec"`
	Configuration v3CompressorCfg `json:"configuration"`
}

type v3CompressorCfg struct {
	Blocksize int    `json:"blocksize"`
	Clevel    int    `json:"clevel"`
	Cname     string `json:"cname"`
	Shuffle   int    `json:"shuffle"`
}

type v3StorageTransformer struct {
	Type          string           `json:"type"`
	Extension     string           `json:"extension"`
	Configuration v3ShardingConfig `json:"configuration"`
}

type v3ShardingConfig struct {
	ChunksPerShard uint64 `json:"chunks_per_shard"`
}

type v3Array struct {
	Shape               []uint64               `json:"shape"`
	DataType            string                 `json:"data_type"`
	ChunkGrid           v3ChunkGrid            `json:"chunk_grid"`
	ChunkMemoryLayout   string                 `json:"chunk_memory_layout"`
	FillValue           any                    `json:"fill_value"`
	Extensions          []any                  `json:"extensions"`
	Compressor          *v3Compressor          `json:"compressor,omitempty"`
	StorageTransformers []v3StorageTransformer `json:"storage_transformers,omitempty"`
}

func (s *v3Serializer) OpenDocs() ([]Doc, error) {
	root, err := json.Marshal(v3Root{
		ZarrFormat:        v3ProtocolURI,
		MetadataEncoding:  v3ProtocolURI,
		MetadataKeySuffix: ".json",
		Extensions:        []any{},
	})
	if err != nil {
		return nil, err
	}

	attrs, err := attributes(s.settings.CustomMetadata, s.settings.Dimensions)
	if err != nil {
		return nil, err
	}
	group, err := json.Marshal(v3Group{Attributes: attrs})
	if err != nil {
		return nil, err
	}

	return []Doc{
		{Key: zarr.V3RootKey, Data: root},
		{Key: zarr.V3GroupKey, Data: group},
		acquireDoc(zarr.V3AcquireKey, s.settings.CustomMetadata),
	}, nil
}

func (s *v3Serializer) ArrayDoc(shape []uint64) (Doc, error) {
	arr := v3Array{
		Shape:    shape,
		DataType: s.settings.DataType.String(),
		ChunkGrid: v3ChunkGrid{
			Type:       "regular",
			Separator:  "/",
			ChunkShape: s.geo.ChunkShape(),
		},
		ChunkMemoryLayout: "C",
		FillValue:         0,
		Extensions:        []any{},
	}
	if c := s.settings.Compression; c != nil {
		arr.Compressor = &v3Compressor{
			Codec: v3BloscCodecURI,
			Configuration: v3CompressorCfg{
				Clevel:  c.Level,
				Cname:   c.Codec.Name(),
				Shuffle: c.Shuffle,
			},
		}
	}
	if s.settings.Sharded() {
		arr.StorageTransformers = []v3StorageTransformer{{
			Type:          "indexed",
			Extension:     v3ShardingExtURI,
			Configuration: v3ShardingConfig{ChunksPerShard: s.geo.SlotsPerShard()},
		}}
	}

	data, err := json.Marshal(arr)
	if err != nil {
		return Doc{}, err
	}
	return Doc{Key: zarr.V3ArrayKey, Data: data}, nil
}
