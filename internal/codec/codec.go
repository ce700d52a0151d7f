// Package codec applies the configured compressor to sealed chunk
// buffers. The inner algorithm is treated as an opaque
// encode(bytes) -> bytes with configuration: ZSTD and LZ4 both emit
// self-describing frames, so the stored bytes carry their own framing
// for the matching decoder. An optional byte-shuffle pre-filter
// rearranges element bytes into per-byte planes before compression,
// which typically improves ratios for multi-byte sample types.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"zarrstream/internal/zarr"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// zstdDec is a package-level decoder, concurrent-safe, always available
// for round-trip verification.
var zstdDec *zstd.Decoder

func init() {
	var err error
	zstdDec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic("zstd: init decoder: " + err.Error())
	}
}

// Codec encodes chunk buffers per the stream's compression settings.
// A Codec built from nil settings is the identity transform.
//
// Encode and Decode are safe for concurrent use: the zstd encoder's
// EncodeAll is concurrency-safe and LZ4 writers are created per call.
type Codec struct {
	settings *zarr.CompressionSettings
	typeSize int
	zstdEnc  *zstd.Encoder
	lz4Level lz4.CompressionLevel
}

// New builds a codec for the given settings and element byte width.
// Settings must have been validated; nil settings yield a pass-through
// codec.
func New(settings *zarr.CompressionSettings, typeSize int) (*Codec, error) {
	c := &Codec{settings: settings, typeSize: typeSize}
	if settings == nil {
		return c, nil
	}

	switch settings.Codec {
	case zarr.CodecZSTD:
		// Blosc levels 0-9 map onto zstd's native level range; level 0
		// still produces a valid frame at the fastest setting.
		level := settings.Level
		if level < 1 {
			level = 1
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("zstd: init encoder: %w", err)
		}
		c.zstdEnc = enc
	case zarr.CodecLZ4:
		c.lz4Level = lz4Level(settings.Level)
	default:
		return nil, fmt.Errorf("unknown codec %d", int(settings.Codec))
	}
	return c, nil
}

// Enabled reports whether the codec transforms data.
func (c *Codec) Enabled() bool { return c.settings != nil }

// Encode compresses a sealed chunk buffer. The input is not modified;
// the returned slice is freshly allocated (or the input itself for the
// identity codec). Deterministic for fixed input and settings.
func (c *Codec) Encode(p []byte) ([]byte, error) {
	if c.settings == nil {
		return p, nil
	}

	src := p
	if c.settings.Shuffle == 1 {
		src = shuffle(p, c.typeSize)
	}

	switch c.settings.Codec {
	case zarr.CodecZSTD:
		return c.zstdEnc.EncodeAll(src, nil), nil
	case zarr.CodecLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if err := zw.Apply(lz4.CompressionLevelOption(c.lz4Level)); err != nil {
			return nil, fmt.Errorf("lz4: apply level: %w", err)
		}
		if _, err := zw.Write(src); err != nil {
			return nil, fmt.Errorf("lz4: compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("lz4: close frame: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown codec %d", int(c.settings.Codec))
}

// Decode reverses Encode. The writer never reads stores; this exists to
// verify round trips in tests and tooling.
func (c *Codec) Decode(p []byte) ([]byte, error) {
	if c.settings == nil {
		return p, nil
	}

	var out []byte
	var err error
	switch c.settings.Codec {
	case zarr.CodecZSTD:
		out, err = zstdDec.DecodeAll(p, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: decompress: %w", err)
		}
	case zarr.CodecLZ4:
		out, err = io.ReadAll(lz4.NewReader(bytes.NewReader(p)))
		if err != nil {
			return nil, fmt.Errorf("lz4: decompress: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown codec %d", int(c.settings.Codec))
	}

	if c.settings.Shuffle == 1 {
		out = unshuffle(out, c.typeSize)
	}
	return out, nil
}

// lz4Level maps a blosc-style level 0-9 onto the lz4 level constants.
func lz4Level(level int) lz4.CompressionLevel {
	switch level {
	case 0, 1:
		return lz4.Fast
	case 2:
		return lz4.Level2
	case 3:
		return lz4.Level3
	case 4:
		return lz4.Level4
	case 5:
		return lz4.Level5
	case 6:
		return lz4.Level6
	case 7:
		return lz4.Level7
	case 8:
		return lz4.Level8
	}
	return lz4.Level9
}

// shuffle rearranges element bytes into byte planes: all first bytes,
// then all second bytes, and so on. len(p) must be a multiple of size,
// which holds for chunk buffers by construction.
func shuffle(p []byte, size int) []byte {
	if size <= 1 {
		return p
	}
	n := len(p) / size
	out := make([]byte, len(p))
	for b := 0; b < size; b++ {
		plane := out[b*n : (b+1)*n]
		for e := 0; e < n; e++ {
			plane[e] = p[e*size+b]
		}
	}
	return out
}

// unshuffle inverts shuffle.
func unshuffle(p []byte, size int) []byte {
	if size <= 1 {
		return p
	}
	n := len(p) / size
	out := make([]byte, len(p))
	for b := 0; b < size; b++ {
		plane := p[b*n : (b+1)*n]
		for e := 0; e < n; e++ {
			out[e*size+b] = plane[e]
		}
	}
	return out
}
