// Package shard packs compressed chunks into version 3 shard objects.
// A shard is one stored object holding several chunks back to back,
// followed by an index trailer locating each chunk slot. Chunks may
// arrive out of order (worker completion order is not the dispatch
// order); placement is by chunk coordinate, not arrival order.
package shard

import (
	"encoding/binary"
	"sync"

	"zarrstream/internal/zarr"
)

// AbsentSlot marks an index slot whose chunk was never written, per the
// v3 sharding convention (all-ones offset and length).
const AbsentSlot = ^uint64(0)

// Object is a finished shard ready for the sink.
type Object struct {
	Key  string
	Data []byte
}

type shardState struct {
	buf    []byte
	index  []uint64 // offset/length pairs, AbsentSlot-initialized
	filled uint64
}

// Packer accumulates chunks into shards. Safe for concurrent use by the
// worker pool; each shard is finalized exactly once and never reopened.
type Packer struct {
	geo *zarr.Geometry

	mu   sync.Mutex
	open map[uint64]*shardState
}

func NewPacker(geo *zarr.Geometry) *Packer {
	return &Packer{geo: geo, open: make(map[uint64]*shardState)}
}

// Add places a compressed chunk into its shard. When the shard's last
// fillable slot lands, the finished object is returned and the shard is
// closed; otherwise ok is false.
func (p *Packer) Add(chunk uint64, data []byte) (obj Object, ok bool) {
	shardIdx := p.geo.ShardIndex(chunk)
	slot := p.geo.SlotIndex(chunk)

	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.open[shardIdx]
	if s == nil {
		s = &shardState{index: make([]uint64, 2*p.geo.SlotsPerShard())}
		for i := range s.index {
			s.index[i] = AbsentSlot
		}
		p.open[shardIdx] = s
	}

	s.index[2*slot] = uint64(len(s.buf))
	s.index[2*slot+1] = uint64(len(data))
	s.buf = append(s.buf, data...)
	s.filled++

	if s.filled < p.geo.FillableSlots() {
		return Object{}, false
	}
	delete(p.open, shardIdx)
	return p.finalize(shardIdx, s), true
}

// Flush finalizes every open shard, recording absent slots with the
// sentinel. Called once at stream close after the worker pool drains.
func (p *Packer) Flush() []Object {
	p.mu.Lock()
	defer p.mu.Unlock()

	objs := make([]Object, 0, len(p.open))
	for idx, s := range p.open {
		objs = append(objs, p.finalize(idx, s))
	}
	p.open = make(map[uint64]*shardState)
	return objs
}

// finalize appends the index trailer: one little-endian uint64
// offset/length pair per slot.
func (p *Packer) finalize(shardIdx uint64, s *shardState) Object {
	data := s.buf
	for _, v := range s.index {
		data = binary.LittleEndian.AppendUint64(data, v)
	}
	return Object{
		Key:  zarr.ChunkKey(zarr.V3, p.geo.ShardCoord(shardIdx)),
		Data: data,
	}
}
