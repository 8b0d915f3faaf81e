// Package snapshot persists a point-in-time image of engine state so the
// WAL can be truncated. Startup loads the latest snapshot, then replays
// the WAL from the snapshot's sequence.
package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"
)

type OrderEntry struct {
	ID    uint64
	Side  int
	Price int64
	Qty   uint32
	Owner uint64
}

type ClaimEntry struct {
	Principal uint64
	OrderID   uint64
	AssetQty  uint64
	Payment   uint64
}

type Snapshot struct {
	Seq     uint64
	Asset   uint64
	Burned  uint64
	Created time.Time
	Orders  []OrderEntry
	Claims  []ClaimEntry
}

const fileName = "snapshot.bin"

// Save writes atomically: temp file first, then rename over the old image.
func Save(dir string, s *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fileName+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(s); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, fileName))
}

// Load returns the latest snapshot, or nil when none exists yet.
func Load(dir string) (*Snapshot, error) {
	f, err := os.Open(filepath.Join(dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
