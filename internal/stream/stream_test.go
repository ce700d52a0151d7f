package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"zarrstream/internal/codec"
	"zarrstream/internal/sink"
	"zarrstream/internal/zarr"
)

func testSettings(version zarr.Version) zarr.StreamSettings {
	return zarr.StreamSettings{
		Dimensions: []zarr.Dimension{
			{Name: "t", Kind: zarr.KindTime, ArraySizePx: 0, ChunkSizePx: 4, ShardSizeChunks: 1},
			{Name: "y", Kind: zarr.KindSpace, ArraySizePx: 8, ChunkSizePx: 8, ShardSizeChunks: 1},
		},
		DataType:       zarr.UInt8,
		Version:        version,
		StorePath:      "/tmp/test.zarr",
		CustomMetadata: json.RawMessage(`{"foo":"bar"}`),
	}
}

func frame(n int, size uint64) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = byte(n)
	}
	return p
}

func openStream(t *testing.T, settings zarr.StreamSettings, m *sink.Memory) *Stream {
	t.Helper()
	s, err := New(context.Background(), Config{Settings: settings, Sink: m})
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}
	return s
}

func TestFullChunkProducesOneObject(t *testing.T) {
	m := sink.NewMemory()
	s := openStream(t, testSettings(zarr.V2), m)

	var want []byte
	for n := 0; n < 4; n++ {
		f := frame(n, 8)
		want = append(want, f...)
		if err := s.Append(f); err != nil {
			t.Fatalf("append %d: %v", n, err)
		}
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, ok := m.Get("0/0.0")
	if !ok {
		t.Fatalf("chunk object missing; keys: %v", m.Keys())
	}
	if !bytes.Equal(got, want) {
		t.Fatal("chunk bytes must equal the appended frames in order")
	}
}

func TestPartialChunkFlushedAtActualExtent(t *testing.T) {
	m := sink.NewMemory()
	s := openStream(t, testSettings(zarr.V2), m)

	for n := 0; n < 3; n++ {
		if err := s.Append(frame(n, 8)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, ok := m.Get("0/0.0")
	if !ok {
		t.Fatal("partial chunk object missing")
	}
	if len(got) != 3*8 {
		t.Fatalf("partial chunk: expected %d bytes, got %d", 3*8, len(got))
	}

	var arr map[string]any
	data, ok := m.Get(zarr.V2ArrayKey)
	if !ok {
		t.Fatal(".zarray missing")
	}
	if err := json.Unmarshal(data, &arr); err != nil {
		t.Fatalf("parse .zarray: %v", err)
	}
	if shape := arr["shape"].([]any); shape[0] != float64(3) {
		t.Fatalf("shape[0]: expected 3, got %v", shape[0])
	}
}

func TestMultiFrameAppend(t *testing.T) {
	m := sink.NewMemory()
	s := openStream(t, testSettings(zarr.V2), m)

	// One call carrying two full chunks of frames.
	buf := make([]byte, 8*8)
	for i := range buf {
		buf[i] = byte(i)
	}
	if err := s.Append(buf); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := s.Frames(); got != 8 {
		t.Fatalf("frames: expected 8, got %d", got)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	a, ok := m.Get("0/0.0")
	if !ok {
		t.Fatal("first chunk missing")
	}
	b, ok := m.Get("0/1.0")
	if !ok {
		t.Fatal("second chunk missing")
	}
	if !bytes.Equal(append(append([]byte(nil), a...), b...), buf) {
		t.Fatal("chunk split does not reassemble the appended buffer")
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	for _, c := range []zarr.Codec{zarr.CodecZSTD, zarr.CodecLZ4} {
		t.Run(c.Name(), func(t *testing.T) {
			settings := testSettings(zarr.V2)
			settings.DataType = zarr.UInt16
			settings.Compression = &zarr.CompressionSettings{Codec: c, Level: 1, Shuffle: 1}

			m := sink.NewMemory()
			s := openStream(t, settings, m)

			var want []byte
			for n := 0; n < 4; n++ {
				f := frame(n, 16)
				want = append(want, f...)
				if err := s.Append(f); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			if err := s.Close(context.Background()); err != nil {
				t.Fatalf("close: %v", err)
			}

			enc, ok := m.Get("0/0.0")
			if !ok {
				t.Fatal("chunk object missing")
			}
			if bytes.Equal(enc, want) {
				t.Fatal("chunk was not compressed")
			}

			dec, err := codec.New(settings.Compression, settings.DataType.Size())
			if err != nil {
				t.Fatalf("decoder: %v", err)
			}
			got, err := dec.Decode(enc)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Fatal("decoded chunk differs from appended frames")
			}
		})
	}
}

func TestV2MetadataWithoutData(t *testing.T) {
	m := sink.NewMemory()
	s := openStream(t, testSettings(zarr.V2), m)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, key := range []string{zarr.V2GroupKey, zarr.V2AttrsKey, zarr.V2AcquireKey} {
		if _, ok := m.Get(key); !ok {
			t.Fatalf("expected %s", key)
		}
	}
	if _, ok := m.Get(zarr.V2ArrayKey); ok {
		t.Fatal(".zarray must not exist when no data was written")
	}

	data, _ := m.Get(zarr.V2AcquireKey)
	var acquire map[string]any
	if err := json.Unmarshal(data, &acquire); err != nil {
		t.Fatalf("parse acquire.json: %v", err)
	}
	if acquire["foo"] != "bar" {
		t.Fatalf("custom metadata passthrough: got %v", acquire)
	}
}

func TestV3MetadataAfterOneChunk(t *testing.T) {
	m := sink.NewMemory()
	s := openStream(t, testSettings(zarr.V3), m)

	for n := 0; n < 4; n++ {
		if err := s.Append(frame(n, 8)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, ok := m.Get("data/root/0/c0/0"); !ok {
		t.Fatalf("v3 chunk object missing; keys: %v", m.Keys())
	}

	data, ok := m.Get(zarr.V3ArrayKey)
	if !ok {
		t.Fatal("array metadata missing")
	}
	var arr map[string]any
	if err := json.Unmarshal(data, &arr); err != nil {
		t.Fatalf("parse array metadata: %v", err)
	}
	if shape := arr["shape"].([]any); shape[0] != float64(4) {
		t.Fatalf("shape[0]: expected 4, got %v", shape[0])
	}

	root, _ := m.Get(zarr.V3RootKey)
	var rootDoc map[string]any
	if err := json.Unmarshal(root, &rootDoc); err != nil {
		t.Fatalf("parse zarr.json: %v", err)
	}
	if ext := rootDoc["extensions"].([]any); len(ext) != 0 {
		t.Fatalf("extensions: got %v", ext)
	}
	if rootDoc["metadata_key_suffix"] != ".json" {
		t.Fatalf("metadata_key_suffix: got %v", rootDoc["metadata_key_suffix"])
	}

	if _, ok := m.Get(zarr.V3AcquireKey); !ok {
		t.Fatal("meta/acquire.json missing")
	}
}

func TestShardedStreamPacksChunks(t *testing.T) {
	settings := testSettings(zarr.V3)
	settings.Dimensions[0].ShardSizeChunks = 2

	m := sink.NewMemory()
	s := openStream(t, settings, m)

	// Nine frames: chunks 0 and 1 fill shard 0; chunk 2 starts shard 1
	// and is flushed partial at close.
	for n := 0; n < 9; n++ {
		if err := s.Append(frame(n, 8)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, ok := m.Get("data/root/0/c0/0"); !ok {
		t.Fatalf("shard 0 missing; keys: %v", m.Keys())
	}
	shard1, ok := m.Get("data/root/0/c1/0")
	if !ok {
		t.Fatal("shard 1 missing")
	}
	// Shard 1 holds one partial chunk (1 frame) plus a 2-slot index.
	if len(shard1) != 8+2*16 {
		t.Fatalf("shard 1 size: expected %d, got %d", 8+2*16, len(shard1))
	}

	// No bare chunk objects besides the two shards.
	for _, key := range m.Keys() {
		if key != "data/root/0/c0/0" && key != "data/root/0/c1/0" &&
			key != zarr.V3RootKey && key != zarr.V3GroupKey &&
			key != zarr.V3ArrayKey && key != zarr.V3AcquireKey {
			t.Fatalf("unexpected object %q", key)
		}
	}
}

func TestShapeMismatchLeavesStateIntact(t *testing.T) {
	m := sink.NewMemory()
	s := openStream(t, testSettings(zarr.V2), m)

	if err := s.Append(make([]byte, 5)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if err := s.Append(nil); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for empty append, got %v", err)
	}
	if got := s.Frames(); got != 0 {
		t.Fatalf("failed appends must not advance the stream, frames=%d", got)
	}

	// The stream stays usable.
	if err := s.Append(frame(0, 8)); err != nil {
		t.Fatalf("append after mismatch: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	m := sink.NewMemory()
	s := openStream(t, testSettings(zarr.V2), m)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Append(frame(0, 8)); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
}

func TestDoubleCloseIsNoOp(t *testing.T) {
	m := sink.NewMemory()
	s := openStream(t, testSettings(zarr.V2), m)
	if err := s.Append(frame(0, 8)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("first close: %v", err)
	}
	puts := m.Puts()
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second close must not fail: %v", err)
	}
	if m.Puts() != puts {
		t.Fatal("second close must not write anything")
	}
}

func TestInvalidSettingsNeverOpen(t *testing.T) {
	settings := testSettings(zarr.V2)
	settings.Dimensions[0].ArraySizePx = 16 // no streaming dimension

	m := sink.NewMemory()
	_, err := New(context.Background(), Config{Settings: settings, Sink: m})
	if !errors.Is(err, zarr.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
	if len(m.Keys()) != 0 {
		t.Fatal("invalid settings must not write metadata")
	}
}

// failingSink accepts metadata but fails every chunk write.
type failingSink struct {
	*sink.Memory
}

func (f *failingSink) Put(ctx context.Context, key string, data []byte) error {
	if key == "0/0.0" {
		return fmt.Errorf("disk full")
	}
	return f.Memory.Put(ctx, key, data)
}

func TestWriteFailuresSurfaceAtClose(t *testing.T) {
	m := &failingSink{Memory: sink.NewMemory()}
	s, err := New(context.Background(), Config{Settings: testSettings(zarr.V2), Sink: m})
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}

	for n := 0; n < 4; n++ {
		if err := s.Append(frame(n, 8)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	err = s.Close(context.Background())
	if err == nil {
		t.Fatal("expected close to report the failed chunk write")
	}
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected a WriteError, got %v", err)
	}
	if we.Key != "0/0.0" {
		t.Fatalf("failed key: got %q", we.Key)
	}
}

func TestBackpressureBoundsInFlightChunks(t *testing.T) {
	settings := testSettings(zarr.V2)
	settings.Workers = 1
	settings.MaxInFlight = 2

	m := sink.NewMemory()
	s := openStream(t, settings, m)

	// Many chunks through a tiny pipeline: correctness under
	// backpressure, not throughput.
	for n := 0; n < 64; n++ {
		if err := s.Append(frame(n, 8)); err != nil {
			t.Fatalf("append %d: %v", n, err)
		}
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	for c := 0; c < 16; c++ {
		if _, ok := m.Get(fmt.Sprintf("0/%d.0", c)); !ok {
			t.Fatalf("chunk %d missing", c)
		}
	}
}
