package dataset

import (
	"context"

	"github.com/edaschema/edaschema/internal/datastore"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/snapshot"
)

func (d *Dataset) requireSnapshots(operation string) error {
	if d.snapshots != nil {
		return nil
	}
	return errors.Newf("%s: snapshots are not enabled", operation).
		Component("dataset").
		Category(errors.CategoryConfiguration).
		Build()
}

// Fingerprint returns the content fingerprint of the backend
func (d *Dataset) Fingerprint(ctx context.Context) (string, error) {
	ctx, _ = d.trace(ctx, "fingerprint")
	return datastore.Fingerprint(ctx, d.store, d.md)
}

// SaveSnapshot captures the backend into a new image and saves it
func (d *Dataset) SaveSnapshot(ctx context.Context) (*snapshot.Image, error) {
	if err := d.requireSnapshots("save snapshot"); err != nil {
		return nil, err
	}
	ctx, log := d.trace(ctx, "save_snapshot")
	img, err := snapshot.Capture(ctx, d.store, d.md)
	if err != nil {
		return nil, err
	}
	if err := d.snapshots.Save(img); err != nil {
		return nil, err
	}
	log.Info("snapshot saved",
		logger.String("fingerprint", img.Fingerprint),
		logger.Int("rows", img.RowCount()))
	return img, nil
}

// LoadSnapshot returns the image of the current backend content. The image
// comes from the cache when one matches the backend fingerprint and is
// captured and saved otherwise, so it never differs from the backend.
func (d *Dataset) LoadSnapshot(ctx context.Context) (*snapshot.Image, error) {
	if err := d.requireSnapshots("load snapshot"); err != nil {
		return nil, err
	}
	ctx, log := d.trace(ctx, "load_snapshot")
	fp, err := datastore.Fingerprint(ctx, d.store, d.md)
	if err != nil {
		return nil, err
	}
	img, err := d.snapshots.Load(fp)
	switch {
	case err == nil:
		log.Debug("snapshot hit", logger.String("fingerprint", fp))
		return img, nil
	case errors.IsNotFound(err):
		log.Debug("snapshot miss", logger.String("fingerprint", fp))
	default:
		log.Warn("discarding unreadable snapshot", logger.String("fingerprint", fp), logger.Error(err))
	}
	return d.SaveSnapshot(ctx)
}

// RestoreSnapshot writes the cached image with the given fingerprint into
// the backend, which must not hold any of its rows yet
func (d *Dataset) RestoreSnapshot(ctx context.Context, fingerprint string) (*snapshot.Image, error) {
	if err := d.requireSnapshots("restore snapshot"); err != nil {
		return nil, err
	}
	ctx, log := d.trace(ctx, "restore_snapshot", logger.String("fingerprint", fingerprint))
	img, err := d.snapshots.Load(fingerprint)
	if err != nil {
		return nil, err
	}
	if err := img.Restore(ctx, d.store, d.md); err != nil {
		return nil, err
	}
	log.Info("snapshot restored",
		logger.String("source_backend", img.Backend),
		logger.Int("rows", img.RowCount()))
	return img, nil
}

// PruneSnapshots removes every cached image except the one matching the
// current backend content
func (d *Dataset) PruneSnapshots(ctx context.Context) (int, error) {
	if err := d.requireSnapshots("prune snapshots"); err != nil {
		return 0, err
	}
	ctx, _ = d.trace(ctx, "prune_snapshots")
	fp, err := datastore.Fingerprint(ctx, d.store, d.md)
	if err != nil {
		return 0, err
	}
	return d.snapshots.Prune(fp)
}

// Snapshots returns the snapshot cache, nil when disabled
func (d *Dataset) Snapshots() *snapshot.Cache { return d.snapshots }
