package zarr

// DimKind classifies a dimension for OME multiscale metadata.
type DimKind int

const (
	KindSpace DimKind = iota
	KindTime
	KindChannel
	KindOther
)

// String returns the OME axis type for the kind.
func (k DimKind) String() string {
	switch k {
	case KindSpace:
		return "space"
	case KindTime:
		return "time"
	case KindChannel:
		return "channel"
	}
	return "other"
}

// Unit returns the physical unit recorded in axis metadata, or "" when
// the kind carries no unit. Spatial axes are micrometers by convention.
func (k DimKind) Unit() string {
	if k == KindSpace {
		return "micrometer"
	}
	return ""
}

// Dimension describes one axis of the streamed array.
//
// ArraySizePx == 0 marks the streaming dimension: its total extent is
// unknown until the stream closes. Exactly one dimension may be
// streaming, and it must be the outermost (index 0), since every append
// carries full cross-sections of all bounded dimensions.
type Dimension struct {
	Name            string
	Kind            DimKind
	ArraySizePx     uint64
	ChunkSizePx     uint64
	ShardSizeChunks uint64
}

// Streaming reports whether this is the unbounded dimension.
func (d Dimension) Streaming() bool { return d.ArraySizePx == 0 }
