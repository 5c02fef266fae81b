package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Snapshot file layout, little-endian, one record per entry:
//
//	magic "RGIX" | u16 format | u32 dimension | u64 version | u32 count
//	per entry: chunkID, documentID, section, text (u32 length + bytes each),
//	           u32 seq, u64 start, u64 end, dimension x f32
const (
	snapshotMagic  = "RGIX"
	snapshotFormat = uint16(1)

	// maxSnapshotString bounds each length-prefixed field so a corrupt file
	// cannot force a huge allocation before the read fails.
	maxSnapshotString = 16 << 20
)

// Save writes the current snapshot to path. The write goes through a temp
// file and rename so a crash never leaves a truncated snapshot behind.
func (m *Memory) Save(path string) error {
	snap := m.snap.Load()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	w := bufio.NewWriter(f)

	err = writeSnapshot(w, m.dimension, snap)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from path and atomically replaces the index
// contents. A snapshot recorded with a different embedding dimension is
// rejected with ErrDimensionMismatch.
func (m *Memory) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := readSnapshot(bufio.NewReader(f), m.dimension)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Store(snap)
	return nil
}

func writeSnapshot(w io.Writer, dimension int, snap *snapshot) error {
	if _, err := w.Write([]byte(snapshotMagic)); err != nil {
		return err
	}
	for _, v := range []any{snapshotFormat, uint32(dimension), snap.version, uint32(len(snap.entries))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, e := range snap.entries {
		for _, s := range []string{e.Chunk.ID, e.Chunk.DocumentID, e.Chunk.Section, e.Chunk.Text} {
			if err := writeString(w, s); err != nil {
				return err
			}
		}
		for _, v := range []any{uint32(e.Chunk.Seq), uint64(e.Chunk.Start), uint64(e.Chunk.End)} {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		for _, x := range e.Vector {
			if err := binary.Write(w, binary.LittleEndian, math.Float32bits(x)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readSnapshot(r io.Reader, wantDimension int) (*snapshot, error) {
	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if string(magic) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadSnapshot, magic)
	}

	var format uint16
	var dimension, count uint32
	var version uint64
	if err := binary.Read(r, binary.LittleEndian, &format); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if format != snapshotFormat {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrBadSnapshot, format)
	}
	if err := binary.Read(r, binary.LittleEndian, &dimension); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if int(dimension) != wantDimension {
		return nil, fmt.Errorf("%w: snapshot has %d dimensions, configured %d",
			ErrDimensionMismatch, dimension, wantDimension)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	// The count comes from the file; let entries grow instead of trusting it
	// for one huge up-front allocation.
	entries := make([]Entry, 0, min(count, 1024))
	for i := uint32(0); i < count; i++ {
		var e Entry
		var err error
		if e.Chunk.ID, err = readString(r); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadSnapshot, i, err)
		}
		if e.Chunk.DocumentID, err = readString(r); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadSnapshot, i, err)
		}
		if e.Chunk.Section, err = readString(r); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadSnapshot, i, err)
		}
		if e.Chunk.Text, err = readString(r); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadSnapshot, i, err)
		}

		var seq uint32
		var start, end uint64
		if err := binary.Read(r, binary.LittleEndian, &seq); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadSnapshot, i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &start); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadSnapshot, i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &end); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadSnapshot, i, err)
		}
		e.Chunk.Seq = int(seq)
		e.Chunk.Start = int(start)
		e.Chunk.End = int(end)

		e.Vector = make([]float32, dimension)
		for j := range e.Vector {
			var bits uint32
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return nil, fmt.Errorf("%w: entry %d vector: %v", ErrBadSnapshot, i, err)
			}
			e.Vector[j] = math.Float32frombits(bits)
		}
		entries = append(entries, e)
	}

	return &snapshot{entries: entries, version: version}, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxSnapshotString {
		return "", fmt.Errorf("string length %d exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
