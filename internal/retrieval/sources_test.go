package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDirSources_SortedSupportedOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "a\n1\n")
	writeFile(t, dir, "a.tsv", "a\n1\n")
	writeFile(t, dir, "notes.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	srcs, err := DirSources(dir)
	require.NoError(t, err)
	require.Len(t, srcs, 2)
	assert.Equal(t, "a.tsv", srcs[0].Name())
	assert.Equal(t, "b.csv", srcs[1].Name())

	none, err := DirSources(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileSource_IndexesIdentifierColumn(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "feed.csv", "Listing ID,Area,Notes\nF-1,West Loop,brick\nF-2,Lakeview,garden\n,West Town,brick\n")

	res, err := NewBudgeter(5000, FileSource{Path: p}).Build(context.Background(), "brick")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Payload.RowCount())
	assert.Equal(t, []string{"Listing ID", "Area", "Notes"}, res.Payload[0].Columns)
	assert.Contains(t, res.Index, "F-1")
	assert.Len(t, res.Index, 1)
}

func TestFileSource_MissingFileSkipped(t *testing.T) {
	res, err := NewBudgeter(5000, FileSource{Path: filepath.Join(t.TempDir(), "gone.csv")}).Build(context.Background(), "brick")
	require.NoError(t, err)
	assert.Empty(t, res.Payload)
}
