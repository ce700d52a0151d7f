package zarr

// Geometry precomputes the chunk/shard arithmetic for a validated
// dimension list. A frame is one full cross-section of all bounded
// dimensions, so the stored chunk unit spans the complete inner extent
// and only the streaming axis accumulates chunk coordinates.
type Geometry struct {
	dims       []Dimension
	dtype      DataType
	frameBytes uint64
	// chunkFrames is the streaming-axis chunk size: frames per chunk.
	chunkFrames uint64
	// shardChunks is the streaming-axis shard size: chunks per shard
	// that can actually fill (inner axes contribute a single chunk).
	shardChunks uint64
	// slotsPerShard is the full slot count of a shard index table, the
	// product of ShardSizeChunks across all axes. Slots on inner-axis
	// coordinates never fill and are recorded with the absent sentinel.
	slotsPerShard uint64
}

// NewGeometry derives the geometry from settings. Settings must have
// been validated.
func NewGeometry(s *StreamSettings) *Geometry {
	g := &Geometry{
		dims:          s.Dimensions,
		dtype:         s.DataType,
		frameBytes:    uint64(s.DataType.Size()),
		chunkFrames:   s.Dimensions[0].ChunkSizePx,
		shardChunks:   s.Dimensions[0].ShardSizeChunks,
		slotsPerShard: 1,
	}
	for _, d := range s.Dimensions[1:] {
		g.frameBytes *= d.ArraySizePx
	}
	for _, d := range s.Dimensions {
		g.slotsPerShard *= d.ShardSizeChunks
	}
	return g
}

// FrameBytes is the byte length of a single appended frame.
func (g *Geometry) FrameBytes() uint64 { return g.frameBytes }

// ChunkFrames is the number of frames that fill one chunk.
func (g *Geometry) ChunkFrames() uint64 { return g.chunkFrames }

// ChunkBytes is the byte capacity of a full chunk buffer.
func (g *Geometry) ChunkBytes() uint64 { return g.chunkFrames * g.frameBytes }

// ChunkIndex returns the streaming-axis chunk coordinate containing
// flat frame index n.
func (g *Geometry) ChunkIndex(n uint64) uint64 { return n / g.chunkFrames }

// FrameOffset returns the byte offset of frame n within its chunk buffer.
func (g *Geometry) FrameOffset(n uint64) uint64 { return (n % g.chunkFrames) * g.frameBytes }

// ChunkCoord expands a streaming-axis chunk index into the full
// multi-dimensional chunk coordinate. Inner axes are always 0 since a
// chunk spans the full inner extent.
func (g *Geometry) ChunkCoord(index uint64) []uint64 {
	coord := make([]uint64, len(g.dims))
	coord[0] = index
	return coord
}

// ShardIndex returns the streaming-axis shard coordinate containing the
// given chunk index.
func (g *Geometry) ShardIndex(chunk uint64) uint64 { return chunk / g.shardChunks }

// ShardCoord expands a streaming-axis shard index into the full
// multi-dimensional shard coordinate.
func (g *Geometry) ShardCoord(index uint64) []uint64 {
	coord := make([]uint64, len(g.dims))
	coord[0] = index
	return coord
}

// SlotIndex returns the row-major intra-shard slot of a chunk: the
// per-axis remainders of chunk coordinate mod shard size, flattened over
// the shard's slot grid.
func (g *Geometry) SlotIndex(chunk uint64) uint64 {
	slot := chunk % g.shardChunks
	for _, d := range g.dims[1:] {
		slot *= d.ShardSizeChunks
	}
	return slot
}

// SlotsPerShard is the size of a shard's index table.
func (g *Geometry) SlotsPerShard() uint64 { return g.slotsPerShard }

// FillableSlots is the number of slots an interior shard actually
// receives before it is complete.
func (g *Geometry) FillableSlots() uint64 { return g.shardChunks }

// Shape returns the final array shape given the total number of frames
// appended: the accumulated streaming extent followed by the declared
// bounded extents.
func (g *Geometry) Shape(frames uint64) []uint64 {
	shape := make([]uint64, len(g.dims))
	shape[0] = frames
	for i, d := range g.dims[1:] {
		shape[i+1] = d.ArraySizePx
	}
	return shape
}

// ChunkShape returns the shape of the stored chunk unit: the
// streaming-axis chunk size followed by the full bounded extents.
func (g *Geometry) ChunkShape() []uint64 {
	shape := make([]uint64, len(g.dims))
	shape[0] = g.chunkFrames
	for i, d := range g.dims[1:] {
		shape[i+1] = d.ArraySizePx
	}
	return shape
}
