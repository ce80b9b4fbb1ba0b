package core

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// ContentHash returns the hex BLAKE3 digest of data.
func ContentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile streams the file at path through BLAKE3 and returns the hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PlanMarker is the per-plan record stored next to the plan items. It is
// written incomplete before items are rewritten and sealed afterwards, so a
// crash between the two leaves a marker that forces a rebuild.
type PlanMarker struct {
	Hash      string `json:"hash"`
	Complete  bool   `json:"complete"`
	ItemCount int    `json:"item_count"`
}

// RebuildReason explains why NeedsRebuild returned true.
type RebuildReason string

const (
	RebuildNone         RebuildReason = ""
	RebuildNoMarker     RebuildReason = "no stored marker"
	RebuildHashChanged  RebuildReason = "content hash changed"
	RebuildIncomplete   RebuildReason = "previous ingestion did not complete"
	RebuildCountChanged RebuildReason = "stored item count differs from marker"
)

// NeedsRebuild decides whether a plan must be re-ingested, given the stored
// marker (nil when absent), the hash of the current source file and the
// number of plan items currently stored for the plan.
func NeedsRebuild(marker *PlanMarker, hash string, storedItems int) (bool, RebuildReason) {
	switch {
	case marker == nil:
		return true, RebuildNoMarker
	case marker.Hash != hash:
		return true, RebuildHashChanged
	case !marker.Complete:
		return true, RebuildIncomplete
	case marker.ItemCount != storedItems:
		return true, RebuildCountChanged
	}
	return false, RebuildNone
}
