// Package vecstream provides an embedded vector database: a collection of
// named VectorStore+HNSWIndex pairs rooted at a directory on disk.
//
// # Quick Start
//
//	db, _ := vecstream.Open(vecstream.DefaultDBPath())
//	col, _ := db.CreateCollection("docs")
//	col.AddVector("doc-1", []float32{0.1, 0.2, 0.3}, metadata.Document{"title": "hello"})
//	results, _ := col.SearchSimilar([]float32{0.1, 0.2, 0.3}, 10, 50, nil, nil)
//
// # Collections
//
// A DB multiplexes independent Collections, each owning its own VectorStore,
// HNSWIndex, and on-disk directory ({dbpath}/{name}/). Operations on
// distinct collections proceed without coordination; within one collection,
// reads and writes are guarded by a single readers-writer lock.
//
// # Persistence
//
// Save/Load round-trip a collection's vectors, metadata, and HNSW graph to
// vectors.npy, ids.json, metadata.json, and index.bin. If index.bin is
// absent or inconsistent with ids.json on load, the index is rebuilt from
// vectors and a warning is logged.
package vecstream

import (
	"github.com/torinriley/vecstream/collection"
	"github.com/torinriley/vecstream/manager"
)

// DB is the top-level handle returned by Open: a directory-rooted registry
// of named Collections.
type DB struct {
	mgr *manager.Manager
	opt options
}

// Open roots a DB at dir, creating it if necessary and lazily discovering
// existing collections. dir defaults to DefaultDBPath() if empty.
func Open(dir string, optFns ...Option) (*DB, error) {
	if dir == "" {
		dir = DefaultDBPath()
	}
	o := applyOptions(optFns)

	mgr, err := manager.Open(dir,
		manager.WithLogger(o.logger),
		manager.WithCollectionOptions(
			collection.WithRebuildThreshold(o.rebuildThreshold),
			collection.WithHNSWParams(o.hnsw.M, o.hnsw.EfConstruction, o.hnsw.EfSearch, o.hnsw.Seed),
		),
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &DB{mgr: mgr, opt: o}, nil
}

// CreateCollection creates and registers a new, empty collection.
func (db *DB) CreateCollection(name string) (*collection.Collection, error) {
	c, err := db.mgr.CreateCollection(name)
	if err != nil {
		return nil, translateError(err)
	}
	return c, nil
}

// GetCollection returns the handle for name.
func (db *DB) GetCollection(name string) (*collection.Collection, error) {
	c, err := db.mgr.GetCollection(name)
	if err != nil {
		return nil, translateError(err)
	}
	return c, nil
}

// ListCollections returns registered collection names in alphabetical order.
func (db *DB) ListCollections() []string {
	return db.mgr.ListCollections()
}

// DeleteCollection removes name's handle and on-disk directory.
func (db *DB) DeleteCollection(name string) error {
	return translateError(db.mgr.DeleteCollection(name))
}

// RenameCollection renames a registered collection's directory and
// registry key.
func (db *DB) RenameCollection(oldName, newName string) error {
	return translateError(db.mgr.RenameCollection(oldName, newName))
}

// GetCollectionStats passes through to name's Stats.
func (db *DB) GetCollectionStats(name string) (collection.Stats, error) {
	stats, err := db.mgr.GetCollectionStats(name)
	if err != nil {
		return collection.Stats{}, translateError(err)
	}
	return stats, nil
}
