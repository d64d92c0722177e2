package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benchmd/internal/storage"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList("  "))
	assert.Equal(t, []string{"a", "b"}, splitList("a,b"))
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b ,"))
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	csv := `specialty,provider_type,region,variable,n_orgs,n_incumbents,p25,p50,p75,p90
cardiology,MD,midwest,Total Cash Compensation,10,100,350000,400000,450000,500000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MGMA.csv"), []byte(csv), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	store := storage.NewMemory()
	require.NoError(t, ingestDirectory(context.Background(), store, dir, nil))

	sources, err := store.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "MGMA", sources[0].Name)
	assert.Equal(t, 1, sources[0].RowCount)
}

func TestIngestDirectoryEmpty(t *testing.T) {
	store := storage.NewMemory()
	err := ingestDirectory(context.Background(), store, t.TempDir(), nil)
	assert.Error(t, err)
}
