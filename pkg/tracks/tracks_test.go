package tracks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestTOMLBasicTrack(t *testing.T) {
	registry := New()

	err := registry.Ingest(map[string]any{
		"track": map[string]any{
			"gene": map[string]any{
				"program_set":     "core",
				"program_version": int64(3),
				"scales":          []any{int64(0), int64(1000), int64(10)},
				"triggers":        []any{[]any{"gene", "show"}},
				"tags":            "default",
			},
		},
	})
	require.NoError(t, err)

	require.Len(t, registry.tracks, 1)
	tr := registry.tracks["gene"]
	require.Equal(t, "core", tr.ProgramSet)
	require.Equal(t, int64(3), tr.ProgramVersion)
	require.Equal(t, [3]int64{0, 1000, 10}, tr.Scales)
	require.Equal(t, [][]string{{"gene", "show"}}, tr.Triggers)
}

func TestIncludeFilesAndSharedSnippets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.toml", `
[include.common]
tags = "shared"
`)
	main := writeFile(t, dir, "main.toml", `
include_files = ["shared.toml"]

[track.gene]
include = ["common"]
program_set = "core"
scales = [0, 1000, 10]
`)

	registry := New()
	require.NoError(t, registry.LoadFile(main))

	tr := registry.tracks["gene"]
	require.Equal(t, "shared", tr.Tags)
}

func TestMergeLastWriterWins(t *testing.T) {
	a := New()
	require.NoError(t, a.Ingest(map[string]any{
		"track": map[string]any{"gene": map[string]any{"program_set": "a"}},
	}))

	b := New()
	require.NoError(t, b.Ingest(map[string]any{
		"track": map[string]any{"gene": map[string]any{"program_set": "b"}},
	}))

	a.Merge(b)
	require.Equal(t, "b", a.tracks["gene"].ProgramSet)
}

func TestDumpForWireProducesColumns(t *testing.T) {
	registry := New()
	require.NoError(t, registry.Ingest(map[string]any{
		"track": map[string]any{
			"gene": map[string]any{
				"program_set":     "core",
				"program_version": int64(1),
				"scales":          []any{int64(100), int64(200), int64(1)},
				"triggers":        []any{[]any{"gene", "show"}},
				"tags":            "t1",
			},
			"variant": map[string]any{
				"program_set":     "core",
				"program_version": int64(2),
				"scales":          []any{int64(0), int64(50), int64(1)},
				"triggers":        []any{[]any{"variant", "show"}},
				"tags":            "t2",
			},
		},
	}))

	dump, err := registry.DumpForWire()
	require.NoError(t, err)
	require.Len(t, dump, 1)

	data := dump[0].(map[string]any)
	starts := data["scale_start"].([]any)
	require.Equal(t, []any{int64(0), int64(100)}, starts)
}

func TestDumpForWireEmptyRegistryOmitsBase(t *testing.T) {
	registry := New()
	dump, err := registry.DumpForWire()
	require.NoError(t, err)
	require.Empty(t, dump)
}

func TestCyclicIncludeFilesRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.toml", `include_files = ["b.toml"]`)
	writeFile(t, dir, "b.toml", `include_files = ["a.toml"]`)

	registry := New()
	err := registry.LoadFile(filepath.Join(dir, "a.toml"))
	require.Error(t, err)
}
