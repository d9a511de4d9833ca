package array

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/tilestore/uri"
	"github.com/hupe1980/tilestore/vfs"
)

// coordsAttrName is the on-disk file stem for a sparse array's coordinate
// tile (spec.md S:6's __coords.tdb), reused as a pseudo-attribute name
// inside a fragment's offsets index.
const coordsAttrName = "__coords"

const (
	schemaFileName = "__array_schema"
	lockFileName   = "__lock"
)

// NewFragmentID returns a monotone, lexicographically ordered fragment
// identifier: a fixed-width UTC timestamp so fragments created later
// always sort after earlier ones, plus a uuid suffix that disambiguates
// fragments minted within the same clock tick (spec.md S:6).
func NewFragmentID(now time.Time) string {
	return now.UTC().Format("20060102T150405.000000000") + "_" + uuid.NewString()
}

func fragmentDir(arrayURI uri.URI, fragmentID string) uri.URI {
	return arrayURI.Join(fragmentID)
}

func coordsTileFile(fragDir uri.URI) uri.URI { return fragDir.Join(coordsAttrName + ".tdb") }
func coordsVarFile(fragDir uri.URI) uri.URI  { return fragDir.Join(coordsAttrName + ".tdb.var") }
func attrTileFile(fragDir uri.URI, attr string) uri.URI {
	return fragDir.Join(attr + ".tdb")
}
func attrVarFile(fragDir uri.URI, attr string) uri.URI {
	return fragDir.Join(attr + ".tdb.var")
}
func offsetsFile(fragDir uri.URI) uri.URI { return fragDir.Join("__offsets") }

// tileFileFor returns the on-disk tile data file for attr, special-casing
// the reserved coordinate pseudo-attribute.
func tileFileFor(fragDir uri.URI, attr string) uri.URI {
	if attr == coordsAttrName {
		return coordsTileFile(fragDir)
	}
	return attrTileFile(fragDir, attr)
}

// fragRef names one fragment directory.
type fragRef struct {
	id  string
	dir uri.URI
}

// fragments lists an array's fragment directories (every child of arrayURI
// other than the reserved schema blob and lock sentinel), sorted ascending
// by id -- which, since ids are monotone timestamps, is also write order.
func fragments(ctx context.Context, v *vfs.VFS, arrayURI uri.URI) ([]fragRef, error) {
	children, err := v.LS(ctx, arrayURI)
	if err != nil {
		return nil, err
	}
	out := make([]fragRef, 0, len(children))
	for _, c := range children {
		name := lastSegment(c.ToString())
		if name == schemaFileName || name == lockFileName || name == "" {
			continue
		}
		out = append(out, fragRef{id: name, dir: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

// fragmentsDescending is fragments in reverse (newest first), used by the
// DENSE read path to prefer the most recently written fragment's data for
// a tile when more than one fragment holds it (consolidation -- picking a
// winner among *overlapping* writes -- is explicitly out of scope per
// spec.md S:4.6; this is the simplest tie-break consistent with "existing
// fragments are not modified").
func fragmentsDescending(ctx context.Context, v *vfs.VFS, arrayURI uri.URI) ([]fragRef, error) {
	frags, err := fragments(ctx, v, arrayURI)
	if err != nil {
		return nil, err
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i].id > frags[j].id })
	return frags, nil
}

func lastSegment(s string) string {
	s = strings.TrimSuffix(s, "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}
