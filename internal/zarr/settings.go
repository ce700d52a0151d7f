package zarr

import (
	"encoding/json"
	"fmt"
)

// Compressor identifies the compression container. Only the blosc-style
// container is supported; the inner codec is selected by Codec.
type Compressor int

const (
	CompressorBlosc1 Compressor = iota
)

// Codec selects the compression algorithm applied to sealed chunks.
type Codec int

const (
	CodecLZ4 Codec = iota
	CodecZSTD
)

// Name returns the codec identifier recorded in compressor metadata
// (the blosc "cname" field).
func (c Codec) Name() string {
	switch c {
	case CodecLZ4:
		return "lz4"
	case CodecZSTD:
		return "zstd"
	}
	return "unknown"
}

// ParseCodec parses a codec name as produced by Name.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZSTD, nil
	}
	return 0, fmt.Errorf("%w: unknown codec %q", ErrInvalidSettings, s)
}

// CompressionSettings configures the codec stage. A nil
// *CompressionSettings on StreamSettings disables compression entirely
// and omits the compressor from array metadata.
type CompressionSettings struct {
	Compressor Compressor
	Codec      Codec
	Level      int // 0 (fastest) through 9
	Shuffle    int // 0 = none, 1 = byte shuffle pre-filter
}

// S3Settings carries the connection parameters for an S3-compatible
// object store destination.
type S3Settings struct {
	Endpoint        string
	Bucket          string
	Region          string // defaults to us-east-1 when empty
	AccessKeyID     string
	SecretAccessKey string
}

// StreamSettings is the immutable construction-time configuration of a
// stream: dimension geometry, element type, storage format version,
// optional compression, destination, and caller metadata.
type StreamSettings struct {
	// Dimensions lists axes outermost first. Exactly one dimension must
	// be streaming (ArraySizePx == 0) and it must be Dimensions[0].
	Dimensions []Dimension

	DataType DataType
	Version  Version

	// Compression is optional; nil writes chunks uncompressed.
	Compression *CompressionSettings

	// StorePath is the store root: a directory path for filesystem
	// stores, or a key prefix within the bucket for S3 stores.
	StorePath string

	// S3 selects an object-store destination when non-nil; otherwise
	// the store is written to the local filesystem under StorePath.
	S3 *S3Settings

	// CustomMetadata is an arbitrary JSON object embedded verbatim in
	// the acquire metadata document and group attributes.
	CustomMetadata json.RawMessage

	// MaxInFlight bounds the number of sealed chunks queued or being
	// compressed/written at once; Append blocks when the limit is
	// reached. Zero selects a default.
	MaxInFlight int

	// Workers sizes the codec/write worker pool. Zero selects a default.
	Workers int
}

// Validate checks the settings invariants. It is called once at stream
// construction; a failure means the stream never opens.
func (s *StreamSettings) Validate() error {
	if len(s.Dimensions) == 0 {
		return fmt.Errorf("%w: no dimensions", ErrInvalidSettings)
	}
	if s.Version != V2 && s.Version != V3 {
		return fmt.Errorf("%w: unknown version %d", ErrInvalidSettings, int(s.Version))
	}
	if s.DataType.Size() == 0 {
		return fmt.Errorf("%w: unknown data type", ErrInvalidSettings)
	}
	if s.StorePath == "" {
		return fmt.Errorf("%w: store path is required", ErrInvalidSettings)
	}

	streaming := 0
	for i, d := range s.Dimensions {
		if d.Name == "" {
			return fmt.Errorf("%w: dimension %d has no name", ErrInvalidSettings, i)
		}
		if d.ChunkSizePx == 0 {
			return fmt.Errorf("%w: dimension %q: chunk size must be positive", ErrInvalidSettings, d.Name)
		}
		if d.ShardSizeChunks == 0 {
			return fmt.Errorf("%w: dimension %q: shard size must be positive", ErrInvalidSettings, d.Name)
		}
		if d.Streaming() {
			streaming++
			if i != 0 {
				return fmt.Errorf("%w: streaming dimension %q must be outermost", ErrInvalidSettings, d.Name)
			}
		} else if d.ChunkSizePx > d.ArraySizePx {
			return fmt.Errorf("%w: dimension %q: chunk size %d exceeds array size %d",
				ErrInvalidSettings, d.Name, d.ChunkSizePx, d.ArraySizePx)
		}
	}
	if streaming != 1 {
		return fmt.Errorf("%w: exactly one streaming dimension required, got %d", ErrInvalidSettings, streaming)
	}

	if c := s.Compression; c != nil {
		if c.Compressor != CompressorBlosc1 {
			return fmt.Errorf("%w: unknown compressor", ErrInvalidSettings)
		}
		if c.Codec != CodecLZ4 && c.Codec != CodecZSTD {
			return fmt.Errorf("%w: unknown compression codec", ErrInvalidSettings)
		}
		if c.Level < 0 || c.Level > 9 {
			return fmt.Errorf("%w: compression level %d out of range [0,9]", ErrInvalidSettings, c.Level)
		}
		if c.Shuffle != 0 && c.Shuffle != 1 {
			return fmt.Errorf("%w: shuffle must be 0 or 1", ErrInvalidSettings)
		}
	}

	if s.S3 != nil {
		if s.S3.Endpoint == "" || s.S3.Bucket == "" {
			return fmt.Errorf("%w: s3 endpoint and bucket are required", ErrInvalidSettings)
		}
	}

	if len(s.CustomMetadata) > 0 {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(s.CustomMetadata, &obj); err != nil {
			return fmt.Errorf("%w: custom metadata is not a JSON object: %v", ErrInvalidSettings, err)
		}
	}

	if s.MaxInFlight < 0 || s.Workers < 0 {
		return fmt.Errorf("%w: worker limits must be non-negative", ErrInvalidSettings)
	}

	return nil
}

// Sharded reports whether the stream packs chunks into shards. Only V3
// stores shard, and only when some dimension groups more than one chunk
// per shard.
func (s *StreamSettings) Sharded() bool {
	if s.Version != V3 {
		return false
	}
	for _, d := range s.Dimensions {
		if d.ShardSizeChunks > 1 {
			return true
		}
	}
	return false
}
