package zarr

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidateAcceptsWellFormedSettings(t *testing.T) {
	s := testSettings()
	s.Compression = &CompressionSettings{Codec: CodecZSTD, Level: 1, Shuffle: 1}
	s.CustomMetadata = json.RawMessage(`{"foo":"bar"}`)
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StreamSettings)
	}{
		{"no dimensions", func(s *StreamSettings) { s.Dimensions = nil }},
		{"no store path", func(s *StreamSettings) { s.StorePath = "" }},
		{"bad version", func(s *StreamSettings) { s.Version = 4 }},
		{"zero chunk size", func(s *StreamSettings) { s.Dimensions[1].ChunkSizePx = 0 }},
		{"zero shard size", func(s *StreamSettings) { s.Dimensions[2].ShardSizeChunks = 0 }},
		{"chunk exceeds array", func(s *StreamSettings) { s.Dimensions[1].ChunkSizePx = 100 }},
		{"no streaming dimension", func(s *StreamSettings) { s.Dimensions[0].ArraySizePx = 10 }},
		{"two streaming dimensions", func(s *StreamSettings) {
			s.Dimensions[1].ArraySizePx = 0
			s.Dimensions[1].ChunkSizePx = 1
		}},
		{"streaming dimension not outermost", func(s *StreamSettings) {
			s.Dimensions[0].ArraySizePx = 16
			s.Dimensions[2].ArraySizePx = 0
			s.Dimensions[2].ChunkSizePx = 1
		}},
		{"compression level out of range", func(s *StreamSettings) {
			s.Compression = &CompressionSettings{Codec: CodecZSTD, Level: 10}
		}},
		{"bad shuffle", func(s *StreamSettings) {
			s.Compression = &CompressionSettings{Codec: CodecLZ4, Level: 1, Shuffle: 2}
		}},
		{"s3 without bucket", func(s *StreamSettings) { s.S3 = &S3Settings{Endpoint: "http://localhost:9000"} }},
		{"custom metadata not an object", func(s *StreamSettings) { s.CustomMetadata = json.RawMessage(`[1,2]`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			tt.mutate(s)
			err := s.Validate()
			if !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("expected ErrInvalidSettings, got %v", err)
			}
		})
	}
}

func TestSharded(t *testing.T) {
	s := testSettings()
	if s.Sharded() {
		t.Fatal("v2 must never shard")
	}
	s.Version = V3
	if s.Sharded() {
		t.Fatal("shard size 1 everywhere is unsharded")
	}
	s.Dimensions[0].ShardSizeChunks = 2
	if !s.Sharded() {
		t.Fatal("expected sharded")
	}
	s.Version = V2
	if s.Sharded() {
		t.Fatal("v2 must never shard even with shard sizes set")
	}
}

func TestDataTypeEncodings(t *testing.T) {
	tests := []struct {
		dt   DataType
		size int
		v2   string
		v3   string
	}{
		{UInt8, 1, "|u1", "uint8"},
		{UInt16, 2, "<u2", "uint16"},
		{Int8, 1, "|i1", "int8"},
		{Int32, 4, "<i4", "int32"},
		{UInt64, 8, "<u8", "uint64"},
		{Float32, 4, "<f4", "float32"},
		{Float64, 8, "<f8", "float64"},
	}
	for _, tt := range tests {
		if got := tt.dt.Size(); got != tt.size {
			t.Fatalf("%s size: expected %d, got %d", tt.v3, tt.size, got)
		}
		if got := tt.dt.V2(); got != tt.v2 {
			t.Fatalf("%s v2 encoding: expected %q, got %q", tt.v3, tt.v2, got)
		}
		if got := tt.dt.String(); got != tt.v3 {
			t.Fatalf("v3 encoding: expected %q, got %q", tt.v3, got)
		}
		parsed, err := ParseDataType(tt.v3)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.v3, err)
		}
		if parsed != tt.dt {
			t.Fatalf("parse %q: got %v", tt.v3, parsed)
		}
	}

	if _, err := ParseDataType("complex128"); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}
