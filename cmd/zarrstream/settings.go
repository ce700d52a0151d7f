package main

import (
	"encoding/json"
	"fmt"
	"os"

	"zarrstream/internal/zarr"
)

// settingsFile is the on-disk JSON shape of stream settings consumed by
// the stream command.
type settingsFile struct {
	StorePath  string          `json:"store_path"`
	Version    int             `json:"version"`
	DataType   string          `json:"data_type"`
	Dimensions []dimensionFile `json:"dimensions"`
	Compression *struct {
		Codec   string `json:"codec"`
		Level   int    `json:"level"`
		Shuffle int    `json:"shuffle"`
	} `json:"compression"`
	S3 *struct {
		Endpoint        string `json:"endpoint"`
		Bucket          string `json:"bucket"`
		Region          string `json:"region"`
		AccessKeyID     string `json:"access_key_id"`
		SecretAccessKey string `json:"secret_access_key"`
	} `json:"s3"`
	CustomMetadata json.RawMessage `json:"custom_metadata"`
	MaxInFlight    int             `json:"max_in_flight"`
	Workers        int             `json:"workers"`
}

type dimensionFile struct {
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	ArraySizePx     uint64 `json:"array_size_px"`
	ChunkSizePx     uint64 `json:"chunk_size_px"`
	ShardSizeChunks uint64 `json:"shard_size_chunks"`
}

func parseKind(s string) (zarr.DimKind, error) {
	switch s {
	case "space":
		return zarr.KindSpace, nil
	case "time":
		return zarr.KindTime, nil
	case "channel":
		return zarr.KindChannel, nil
	case "other":
		return zarr.KindOther, nil
	}
	return 0, fmt.Errorf("unknown dimension kind %q", s)
}

// loadSettings reads and converts a settings JSON file. Validation
// proper happens in stream construction; this only maps the document
// onto StreamSettings.
func loadSettings(path string) (zarr.StreamSettings, error) {
	var s zarr.StreamSettings

	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	var f settingsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}

	dt, err := zarr.ParseDataType(f.DataType)
	if err != nil {
		return s, err
	}

	dims := make([]zarr.Dimension, len(f.Dimensions))
	for i, d := range f.Dimensions {
		kind, err := parseKind(d.Kind)
		if err != nil {
			return s, fmt.Errorf("dimension %q: %w", d.Name, err)
		}
		shard := d.ShardSizeChunks
		if shard == 0 {
			shard = 1
		}
		dims[i] = zarr.Dimension{
			Name:            d.Name,
			Kind:            kind,
			ArraySizePx:     d.ArraySizePx,
			ChunkSizePx:     d.ChunkSizePx,
			ShardSizeChunks: shard,
		}
	}

	s = zarr.StreamSettings{
		Dimensions:     dims,
		DataType:       dt,
		Version:        zarr.Version(f.Version),
		StorePath:      f.StorePath,
		CustomMetadata: f.CustomMetadata,
		MaxInFlight:    f.MaxInFlight,
		Workers:        f.Workers,
	}

	if f.Compression != nil {
		codec, err := zarr.ParseCodec(f.Compression.Codec)
		if err != nil {
			return s, err
		}
		s.Compression = &zarr.CompressionSettings{
			Codec:   codec,
			Level:   f.Compression.Level,
			Shuffle: f.Compression.Shuffle,
		}
	}
	if f.S3 != nil {
		s.S3 = &zarr.S3Settings{
			Endpoint:        f.S3.Endpoint,
			Bucket:          f.S3.Bucket,
			Region:          f.S3.Region,
			AccessKeyID:     f.S3.AccessKeyID,
			SecretAccessKey: f.S3.SecretAccessKey,
		}
	}
	return s, nil
}
