package hnsw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// indexMagic identifies the index.bin format version, per §6.
const indexMagic = "VSH1"

// EncodeSnapshot serializes snap into the index.bin binary layout: magic,
// M/Mmax0/efConstruction/seed header, length-prefixed entry point id (zero
// length for an empty graph), then per row (in the row order snap was
// Export-ed against): level byte followed by each layer's neighbor count
// and row-index list.
func EncodeSnapshot(snap Snapshot) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString(indexMagic)

	writeUint32(buf, uint32(snap.M))
	writeUint32(buf, uint32(snap.Mmax0))
	writeUint32(buf, uint32(snap.EfConstruction))
	writeUint64(buf, uint64(snap.Seed))

	epBytes := []byte(snap.EntryPoint)
	writeUint32(buf, uint32(len(epBytes)))
	buf.Write(epBytes)

	for i, level := range snap.Levels {
		buf.WriteByte(byte(level))
		layers := snap.Neighbors[i]
		for l := 0; l <= level; l++ {
			var rows []uint32
			if l < len(layers) {
				rows = layers[l]
			}
			writeUint32(buf, uint32(len(rows)))
			for _, r := range rows {
				writeUint32(buf, r)
			}
		}
	}

	return buf.Bytes()
}

// DecodeSnapshot parses the index.bin layout for a graph with exactly
// rowCount ids. It returns ErrIndexInconsistency (wrapped) on any structural
// problem: bad magic, truncated data, or a level/row count that cannot be
// reconciled with rowCount — the caller (collection.Load) treats that as
// "untrusted, rebuild from vectors" per §6's load semantics.
func DecodeSnapshot(data []byte, rowCount int) (Snapshot, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := r.Read(magic); err != nil || string(magic) != indexMagic {
		return Snapshot{}, fmt.Errorf("%w: bad magic", ErrIndexInconsistency)
	}

	m, err := readUint32(r)
	if err != nil {
		return Snapshot{}, err
	}
	mmax0, err := readUint32(r)
	if err != nil {
		return Snapshot{}, err
	}
	efConstruction, err := readUint32(r)
	if err != nil {
		return Snapshot{}, err
	}
	seed, err := readUint64(r)
	if err != nil {
		return Snapshot{}, err
	}

	epLen, err := readUint32(r)
	if err != nil {
		return Snapshot{}, err
	}
	epBytes := make([]byte, epLen)
	if epLen > 0 {
		if _, err := io.ReadFull(r, epBytes); err != nil {
			return Snapshot{}, fmt.Errorf("%w: truncated entry point", ErrIndexInconsistency)
		}
	}

	snap := Snapshot{
		M:              int(m),
		Mmax0:          int(mmax0),
		EfConstruction: int(efConstruction),
		Seed:           int64(seed),
		EntryPoint:     string(epBytes),
		Levels:         make([]int, rowCount),
		Neighbors:      make([][][]uint32, rowCount),
	}

	for i := 0; i < rowCount; i++ {
		levelByte, err := r.ReadByte()
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: truncated level byte at row %d", ErrIndexInconsistency, i)
		}
		level := int(levelByte)
		snap.Levels[i] = level

		layers := make([][]uint32, level+1)
		for l := 0; l <= level; l++ {
			count, err := readUint32(r)
			if err != nil {
				return Snapshot{}, err
			}
			rows := make([]uint32, count)
			for j := uint32(0); j < count; j++ {
				row, err := readUint32(r)
				if err != nil {
					return Snapshot{}, err
				}
				if int(row) >= rowCount {
					return Snapshot{}, fmt.Errorf("%w: neighbor row %d out of range", ErrIndexInconsistency, row)
				}
				rows[j] = row
			}
			layers[l] = rows
		}
		snap.Neighbors[i] = layers
	}

	if r.Len() != 0 {
		return Snapshot{}, fmt.Errorf("%w: %d trailing bytes after %d rows", ErrIndexInconsistency, r.Len(), rowCount)
	}

	return snap, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: truncated uint32", ErrIndexInconsistency)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: truncated uint64", ErrIndexInconsistency)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
