package storage

import (
	"os"
	"path/filepath"
)

// Footprint is the on-disk size of the persisted state.
type Footprint struct {
	IndexBytes    int64 `json:"index_bytes"`
	DatabaseBytes int64 `json:"database_bytes"`
}

// MeasureFootprint sums the index directory and the patient database with its WAL files.
// Missing paths count as zero.
func MeasureFootprint(indexPath, dbPath string) (Footprint, error) {
	var (
		fp  Footprint
		err error
	)
	if fp.IndexBytes, err = sizeOf(indexPath); err != nil {
		return fp, err
	}
	if dbPath == "" {
		return fp, nil
	}
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		n, err := sizeOf(p)
		if err != nil {
			return fp, err
		}
		fp.DatabaseBytes += n
	}
	return fp, nil
}

func sizeOf(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
