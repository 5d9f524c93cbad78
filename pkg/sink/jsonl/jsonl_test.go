package jsonl

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-leaflink/pkg/compression"
	"github.com/ajitpratap0/tap-leaflink/pkg/config"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

func readRecords(t *testing.T, path string, a compression.Algorithm) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := compression.NewReader(f, a)
	require.NoError(t, err)
	defer r.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, jsonpool.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestJSONLWritesStreams(t *testing.T) {
	for _, a := range []compression.Algorithm{compression.None, compression.Gzip, compression.Zstd} {
		t.Run(string(a), func(t *testing.T) {
			dir := t.TempDir()
			s, err := New(dir, a, nil)
			require.NoError(t, err)
			ctx := context.Background()

			products, _ := stream.Lookup("products")
			brands, _ := stream.Lookup("brands")

			require.NoError(t, s.WriteSchema(ctx, products, map[string]interface{}{"type": "object"}))
			require.NoError(t, s.WriteRecord(ctx, products, stream.Record{"id": jsonpool.Number("1")}, time.Now()))
			require.NoError(t, s.WriteRecord(ctx, products, stream.Record{"id": jsonpool.Number("2")}, time.Now()))
			require.NoError(t, s.WriteRecord(ctx, brands, stream.Record{"id": jsonpool.Number("7")}, time.Now()))
			require.NoError(t, s.Close(ctx))

			assert.Equal(t, filepath.Join(dir, "products.jsonl"+a.Extension()), s.RecordPath("products"))
			got := readRecords(t, s.RecordPath("products"), a)
			require.Len(t, got, 2)
			assert.EqualValues(t, 2, got[1]["id"])
			assert.Len(t, readRecords(t, s.RecordPath("brands"), a), 1)
			assert.FileExists(t, filepath.Join(dir, "products.schema.json"))
		})
	}
}

func TestJSONLStateFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, compression.None, nil)
	require.NoError(t, err)

	doc := state.Document{Bookmarks: map[string]state.Bookmark{
		"customers": {ReplicationKey: "modified", ReplicationKeyValue: "2024-03-01T00:00:00Z"},
	}}
	require.NoError(t, s.WriteState(context.Background(), doc))

	loaded, err := state.Load(filepath.Join(dir, StateFile))
	require.NoError(t, err)
	b, ok := loaded.Get("customers")
	require.True(t, ok)
	assert.Equal(t, "2024-03-01T00:00:00Z", b.ReplicationKeyValue)
}

func TestJSONLFactory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	s, err := sink.Create(context.Background(), config.OutputJSONL,
		config.OutputConfig{Path: dir, Compression: "lz4"}, sink.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
	assert.DirExists(t, dir)

	_, err = sink.Create(context.Background(), config.OutputJSONL,
		config.OutputConfig{Path: dir, Compression: "brotli"}, sink.Options{})
	assert.Error(t, err)
}
