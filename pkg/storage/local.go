package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalMeter measures tenant directories on the local filesystem.
type LocalMeter struct {
	root string
}

// NewLocalMeter measures tenant directories under root.
func NewLocalMeter(root string) *LocalMeter {
	return &LocalMeter{root: root}
}

// Usage sums regular file sizes below root/tenants/<id>/. A missing
// directory counts as zero.
func (m *LocalMeter) Usage(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	dir := filepath.Join(m.root, filepath.FromSlash(TenantPrefix(tenantID)))

	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(ErrFailedToMeasure, err)
	}
	return total, nil
}
