// Package snapshot keeps binary images of a dataset keyed by the content
// fingerprint of the backend they were taken from. An image is never
// authoritative: it is found only while the backend still hashes to the
// same fingerprint, and it can always be captured again.
package snapshot

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/edaschema/edaschema/internal/datastore"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/schema"
)

// Image is the full content of a dataset backend
type Image struct {
	Fingerprint string
	Backend     string
	CreatedAt   time.Time
	Tables      []TableImage
}

// TableImage holds the rows and graphs of one table
type TableImage struct {
	Name   string
	Rows   []map[string]any
	Graphs map[string]graph.Dict
}

// Table returns the image of the named table
func (img *Image) Table(name string) (TableImage, bool) {
	for _, t := range img.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableImage{}, false
}

// RowCount returns the number of rows over all tables
func (img *Image) RowCount() int {
	var n int
	for _, t := range img.Tables {
		n += len(t.Rows)
	}
	return n
}

// Capture reads every table and graph of store into an image. Tables the
// backend never created are left out.
func Capture(ctx context.Context, store datastore.Interface, md *schema.Metadata) (*Image, error) {
	if md == nil {
		md = schema.DatasetMetadata()
	}
	fingerprint, err := datastore.Fingerprint(ctx, store, md)
	if err != nil {
		return nil, err
	}

	img := &Image{
		Fingerprint: fingerprint,
		Backend:     store.Backend(),
		CreatedAt:   time.Now().UTC(),
	}
	for _, t := range md.Tables() {
		rows, err := store.GetTableData(ctx, t.Name, nil)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ti := TableImage{Name: t.Name, Rows: rows}

		if t.Graph {
			keys, err := store.ListGraphKeys(ctx, t.Name)
			if err != nil && !errors.IsNotFound(err) {
				return nil, err
			}
			if len(keys) > 0 {
				ti.Graphs = make(map[string]graph.Dict, len(keys))
			}
			for _, key := range keys {
				d, err := store.GetGraphData(ctx, t.Name, key)
				if err != nil {
					return nil, err
				}
				ti.Graphs[key] = d
			}
		}
		img.Tables = append(img.Tables, ti)
	}
	return img, nil
}

// Restore writes the image into store. The store must not hold any of the
// image rows or graphs yet; duplicates fail with a conflict.
func (img *Image) Restore(ctx context.Context, store datastore.Interface, md *schema.Metadata) error {
	if err := store.CreateDatasetTables(ctx, md); err != nil {
		return err
	}
	for _, t := range img.Tables {
		if err := store.AddTableData(ctx, t.Name, t.Rows); err != nil {
			return err
		}
		for _, key := range slices.Sorted(maps.Keys(t.Graphs)) {
			if err := store.AddGraphData(ctx, t.Name, key, t.Graphs[key]); err != nil {
				return err
			}
		}
	}
	return nil
}
