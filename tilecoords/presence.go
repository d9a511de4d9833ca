package tilecoords

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// PresenceIndex tracks which global tile IDs of a sparse array's domain
// currently hold fragment data, letting a reader prune
// subarray-to-tile-range candidates before issuing tile reads. Grounded on the teacher's LocalBitmap wrapper around
// roaring.Bitmap, repurposed from a deleted-document tombstone set to a
// tile-presence set.
type PresenceIndex struct {
	bitmap *roaring.Bitmap
}

// NewPresenceIndex returns an empty PresenceIndex.
func NewPresenceIndex() *PresenceIndex {
	return &PresenceIndex{bitmap: roaring.New()}
}

// Mark records that tileID holds data (array.readSparse calls it once per
// tile listed in a fragment's offsets index).
func (p *PresenceIndex) Mark(tileID int64) {
	p.bitmap.Add(uint32(tileID))
}

// Has reports whether tileID has been marked present.
func (p *PresenceIndex) Has(tileID int64) bool {
	return p.bitmap.Contains(uint32(tileID))
}

// FilterCandidates returns the subset of candidateTileIDs that are
// actually present, preserving order. Callers use this after
// Translator.IntersectingTiles to skip tiles that hold no data at all.
func (p *PresenceIndex) FilterCandidates(candidateTileIDs []int64) []int64 {
	out := make([]int64, 0, len(candidateTileIDs))
	for _, id := range candidateTileIDs {
		if p.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Cardinality returns the number of distinct tile IDs currently marked.
func (p *PresenceIndex) Cardinality() int64 {
	return int64(p.bitmap.GetCardinality())
}
