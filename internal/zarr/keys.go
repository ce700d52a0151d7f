package zarr

import (
	"strconv"
	"strings"
)

// Object key layout. These names are the compatibility contract with
// external Zarr readers and must not drift.
const (
	// V2 document keys.
	V2GroupKey   = ".zgroup"
	V2AttrsKey   = ".zattrs"
	V2ArrayKey   = "0/.zarray"
	V2AcquireKey = "acquire.json"

	// V3 document keys.
	V3RootKey    = "zarr.json"
	V3GroupKey   = "meta/root.group.json"
	V3ArrayKey   = "meta/0.array.json"
	V3AcquireKey = "meta/acquire.json"
)

// ChunkKey returns the object key for a chunk (or shard) coordinate.
// V2 keys live under the numeric array group with dot-joined indices
// ("0/1.0.0"); V3 keys live under the data root with slash-joined
// indices ("data/root/0/c1/0/0").
func ChunkKey(v Version, coord []uint64) string {
	var sb strings.Builder
	if v == V2 {
		sb.WriteString("0/")
		for i, c := range coord {
			if i > 0 {
				sb.WriteByte('.')
			}
			sb.WriteString(strconv.FormatUint(c, 10))
		}
		return sb.String()
	}
	sb.WriteString("data/root/0/c")
	for i, c := range coord {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.FormatUint(c, 10))
	}
	return sb.String()
}
