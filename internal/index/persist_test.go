package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.snap")

	src := NewMemory(3)
	require.NoError(t, src.Replace(ctx, "doc-a", []Entry{
		{
			Chunk: Chunk{
				ID: "c1", DocumentID: "doc-a", Seq: 0,
				Start: 0, End: 12, Section: "Intro", Text: "hello world.",
			},
			Vector: []float32{1, 0, 0},
		},
		{
			Chunk: Chunk{
				ID: "c2", DocumentID: "doc-a", Seq: 1,
				Start: 8, End: 20, Section: "", Text: "more content",
			},
			Vector: []float32{0, 1, 0},
		},
	}))
	require.NoError(t, src.Save(path))

	dst := NewMemory(3)
	require.NoError(t, dst.Load(path))

	n, err := dst.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, err := dst.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v, "version survives the round trip")

	results, err := dst.Query(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, "doc-a", results[0].Chunk.DocumentID)
	assert.Equal(t, "Intro", results[0].Chunk.Section)
	assert.Equal(t, "hello world.", results[0].Chunk.Text)
	assert.Equal(t, 0, results[0].Chunk.Start)
	assert.Equal(t, 12, results[0].Chunk.End)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSaveLoad_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "empty.snap")

	src := NewMemory(4)
	require.NoError(t, src.Save(path))

	dst := NewMemory(4)
	require.NoError(t, dst.Load(path))

	n, err := dst.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLoad_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.snap")

	src := NewMemory(3)
	require.NoError(t, src.Replace(ctx, "doc-a", []Entry{
		{Chunk: Chunk{ID: "c1", DocumentID: "doc-a"}, Vector: []float32{1, 0, 0}},
	}))
	require.NoError(t, src.Save(path))

	dst := NewMemory(4)
	err := dst.Load(path)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// The failed load must not have touched the target index.
	n, err := dst.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLoad_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.snap")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot at all"), 0o644))

	m := NewMemory(3)
	assert.ErrorIs(t, m.Load(path), ErrBadSnapshot)
}

func TestLoad_Truncated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.snap")

	src := NewMemory(3)
	require.NoError(t, src.Replace(ctx, "doc-a", []Entry{
		{Chunk: Chunk{ID: "c1", DocumentID: "doc-a", Text: "some text"}, Vector: []float32{1, 0, 0}},
	}))
	require.NoError(t, src.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-10], 0o644))

	m := NewMemory(3)
	assert.ErrorIs(t, m.Load(path), ErrBadSnapshot)
}

// forgeHeader builds a snapshot header claiming the given entry count,
// followed by whatever body bytes the test supplies.
func forgeHeader(t *testing.T, dimension, count uint32, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	for _, v := range []any{snapshotFormat, dimension, uint64(1), count} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	buf.Write(body)
	return buf.Bytes()
}

func TestLoad_HugeStringLengthRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostile.snap")

	// One entry whose first string claims to be ~4 GiB.
	var body bytes.Buffer
	require.NoError(t, binary.Write(&body, binary.LittleEndian, uint32(0xFFFFFFF0)))
	require.NoError(t, os.WriteFile(path, forgeHeader(t, 3, 1, body.Bytes()), 0o644))

	m := NewMemory(3)
	assert.ErrorIs(t, m.Load(path), ErrBadSnapshot)
}

func TestLoad_HugeCountRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostile.snap")

	// Billions of entries claimed, none present; the load must fail on the
	// missing body rather than trust the count.
	require.NoError(t, os.WriteFile(path, forgeHeader(t, 3, 0xFFFFFFFF, nil), 0o644))

	m := NewMemory(3)
	assert.ErrorIs(t, m.Load(path), ErrBadSnapshot)
}

func TestLoad_MissingFile(t *testing.T) {
	m := NewMemory(3)
	err := m.Load(filepath.Join(t.TempDir(), "nope.snap"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSave_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.snap")

	src := NewMemory(2)
	require.NoError(t, src.Save(path))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "index.snap", files[0].Name())
}
