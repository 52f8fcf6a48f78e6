package collection

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/torinriley/vecstream/hnsw"
	"github.com/torinriley/vecstream/metadata"
	"github.com/torinriley/vecstream/vectorstore"
)

const (
	vectorsFile  = "vectors.npy"
	idsFile      = "ids.json"
	metadataFile = "metadata.json"
	indexFile    = "index.bin"
	configFile   = "config.json"

	vectorsMagic = "VSV1"
	configVersion = 1
)

// config mirrors config.json's schema from §6.
type config struct {
	Dimension int            `json:"dimension"`
	Size      int            `json:"size"`
	Params    configParams   `json:"params"`
	HNSW      bool           `json:"hnsw"`
	CreatedAt time.Time      `json:"created_at"`
	Version   int            `json:"version"`
}

type configParams struct {
	M              int   `json:"m"`
	EfConstruction int   `json:"ef_construction"`
	EfSearch       int   `json:"ef_search"`
	Seed           int64 `json:"seed"`
}

// liveIDs returns insertOrder filtered down to ids still present in the
// store, establishing the stable row order vectors.npy/ids.json/index.bin
// are all written and read against.
func (c *Collection) liveIDs() []string {
	live := make([]string, 0, len(c.insertOrder))
	for _, id := range c.insertOrder {
		if _, _, err := c.store.Get(id); err == nil {
			live = append(live, id)
		}
	}
	return live
}

// Save persists the collection to its directory atomically: each file is
// written to a "{file}.tmp-*" temp file, fsynced, then renamed into place,
// per §6.
func (c *Collection) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.saveLocked()
	c.opts.Logger.LogSave(c.dir, err)
	return err
}

func (c *Collection) saveLocked() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	ids := c.liveIDs()
	vectors := make([][]float32, len(ids))
	docs := make(map[string]metadata.Document, len(ids))
	for i, id := range ids {
		vec, meta, err := c.store.Get(id)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptStore, err)
		}
		vectors[i] = vec
		docs[id] = meta
	}

	if err := c.writeVectorsFile(ids, vectors); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(c.dir, idsFile), ids); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(c.dir, metadataFile), docs); err != nil {
		return err
	}

	hasIndex := c.index != nil
	if hasIndex {
		snap := c.index.Export(ids)
		data := hnsw.EncodeSnapshot(snap)
		if err := writeFileAtomic(filepath.Join(c.dir, indexFile), data); err != nil {
			return err
		}
	}

	if c.createdAt.IsZero() {
		c.createdAt = time.Now().UTC()
	}

	cfg := config{
		Dimension: c.dimension,
		Size:      len(ids),
		Params: configParams{
			M:              c.opts.M,
			EfConstruction: c.opts.EfConstruction,
			EfSearch:       c.opts.EfSearch,
			Seed:           c.opts.Seed,
		},
		HNSW:      hasIndex,
		CreatedAt: c.createdAt,
		Version:   configVersion,
	}
	if err := writeJSONAtomic(filepath.Join(c.dir, configFile), cfg); err != nil {
		return err
	}

	c.dirty = false
	return nil
}

// writeVectorsFile writes vectors.npy: magic, uint32 N, uint32 D, then
// N*D little-endian float32s.
func (c *Collection) writeVectorsFile(ids []string, vectors [][]float32) error {
	buf := &bytes.Buffer{}
	buf.WriteString(vectorsMagic)

	var n, d uint32
	n = uint32(len(ids))
	if len(vectors) > 0 {
		d = uint32(len(vectors[0]))
	} else {
		d = uint32(c.dimension)
	}

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], n)
	binary.LittleEndian.PutUint32(hdr[4:8], d)
	buf.Write(hdr[:])

	for _, v := range vectors {
		for _, f := range v {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], floatBits(f))
			buf.Write(b[:])
		}
	}

	return writeFileAtomic(filepath.Join(c.dir, vectorsFile), buf.Bytes())
}

// readVectorsFile parses vectors.npy. Returns ErrCorruptStore on bad magic
// or a truncated/mismatched body.
func readVectorsFile(path string) (n, d int, vectors [][]float32, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if len(data) < 12 || string(data[:4]) != vectorsMagic {
		return 0, 0, nil, fmt.Errorf("%w: bad vectors.npy magic", ErrCorruptStore)
	}

	nVal := int(binary.LittleEndian.Uint32(data[4:8]))
	dVal := int(binary.LittleEndian.Uint32(data[8:12]))
	want := 12 + nVal*dVal*4
	if len(data) != want {
		return 0, 0, nil, fmt.Errorf("%w: vectors.npy length mismatch", ErrCorruptStore)
	}

	vectors = make([][]float32, nVal)
	offset := 12
	for i := 0; i < nVal; i++ {
		row := make([]float32, dVal)
		for j := 0; j < dVal; j++ {
			bits := binary.LittleEndian.Uint32(data[offset : offset+4])
			row[j] = floatFromBits(bits)
			offset += 4
		}
		vectors[i] = row
	}

	return nVal, dVal, vectors, nil
}

// Load replaces the collection's in-memory state with what is persisted in
// its directory. On any failure the collection is left in its pre-load
// state, per §7.
func (c *Collection) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.loadLocked()
	c.opts.Logger.LogLoad(c.dir, err)
	return err
}

func (c *Collection) loadLocked() error {
	var ids []string
	if err := readJSON(filepath.Join(c.dir, idsFile), &ids); err != nil {
		return err
	}

	_, d, vectors, err := readVectorsFile(filepath.Join(c.dir, vectorsFile))
	if err != nil {
		return err
	}
	if len(vectors) != len(ids) {
		return fmt.Errorf("%w: vectors.npy/ids.json row count mismatch", ErrCorruptStore)
	}

	var docs map[string]metadata.Document
	if err := readJSON(filepath.Join(c.dir, metadataFile), &docs); err != nil {
		return err
	}

	var cfg config
	if err := readJSON(filepath.Join(c.dir, configFile), &cfg); err != nil {
		return err
	}

	store := newStoreFrom(ids, vectors, docs)
	fieldIndex, rowOf, idOf := rebuildFieldIndex(ids, docs)

	var idx *hnsw.Index
	rebuiltReason := ""
	indexPath := filepath.Join(c.dir, indexFile)
	if data, readErr := os.ReadFile(indexPath); readErr == nil && cfg.HNSW {
		snap, decodeErr := hnsw.DecodeSnapshot(data, len(ids))
		if decodeErr == nil {
			idx, decodeErr = hnsw.Import(d, ids, vectors, snap)
		}
		if decodeErr != nil {
			rebuiltReason = "index.bin inconsistent with ids.json"
		}
	} else if cfg.HNSW {
		rebuiltReason = "index.bin missing"
	}

	if idx == nil && len(ids) > 0 {
		idx = hnsw.New(d,
			hnsw.WithM(cfg.Params.M),
			hnsw.WithEfConstruction(cfg.Params.EfConstruction),
			hnsw.WithEfSearch(cfg.Params.EfSearch),
			hnsw.WithSeed(cfg.Params.Seed),
		)
		for i, id := range ids {
			if err := idx.Insert(id, vectors[i]); err != nil {
				rebuildErr := fmt.Errorf("%w: rebuild failed: %v", ErrCorruptStore, err)
				c.opts.Logger.LogRebuild(rebuiltReason, len(ids), rebuildErr)
				return rebuildErr
			}
		}
		c.opts.Logger.LogRebuild(rebuiltReason, len(ids), nil)
	}

	c.store = store
	c.index = idx
	c.dimension = cfg.Dimension
	c.fieldIndex = fieldIndex
	c.rowOf = rowOf
	c.idOf = idOf
	c.nextRow = uint32(len(ids))
	c.insertOrder = append([]string(nil), ids...)
	c.insertCount = len(ids)
	c.removedCount = 0
	c.dirty = false
	c.createdAt = cfg.CreatedAt
	if cfg.Params.M > 0 {
		c.opts.M = cfg.Params.M
		c.opts.EfConstruction = cfg.Params.EfConstruction
		c.opts.EfSearch = cfg.Params.EfSearch
		c.opts.Seed = cfg.Params.Seed
	}

	return nil
}

func rebuildFieldIndex(ids []string, docs map[string]metadata.Document) (*metadata.FieldIndex, map[string]uint32, map[uint32]string) {
	fi := metadata.NewFieldIndex()
	rowOf := make(map[string]uint32, len(ids))
	idOf := make(map[uint32]string, len(ids))
	for i, id := range ids {
		row := uint32(i)
		rowOf[id] = row
		idOf[row] = id
		fi.Index(row, docs[id])
	}
	return fi, rowOf, idOf
}

func newStoreFrom(ids []string, vectors [][]float32, docs map[string]metadata.Document) *vectorstore.Store {
	store := vectorstore.New()
	for i, id := range ids {
		// Rows were validated against the store's own invariants at the time
		// they were first added; a failure here means the on-disk files
		// disagree with each other, which readVectorsFile/readJSON callers
		// already guard against via row-count checks.
		_ = store.Add(id, vectors[i], docs[id])
	}
	return store
}

func floatBits(f float32) uint32 {
	return math.Float32bits(f)
}

func floatFromBits(bits uint32) float32 {
	return math.Float32frombits(bits)
}

// writeFileAtomic writes data to a temp file in path's directory, syncs it,
// renames it into place, then syncs the parent directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	w := bufio.NewWriterSize(tmp, 64*1024)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	return writeFileAtomic(path, data)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return nil
}
