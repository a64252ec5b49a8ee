package ingest

import (
	"path/filepath"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// trawl recurses through uri via vfs, collecting every file whose
// basename matches pattern.
func trawl(vfs *tiledb.VFS, pattern, uri string, items []string) ([]string, error) {
	dirs, files, err := vfs.List(uri)
	if err != nil {
		return items, err
	}

	for _, file := range files {
		match, err := filepath.Match(pattern, filepath.Base(file))
		if err != nil {
			return items, err
		}
		if match {
			items = append(items, file)
		}
	}

	for _, dir := range dirs {
		items, err = trawl(vfs, pattern, dir, items)
		if err != nil {
			return items, err
		}
	}

	return items, nil
}

// FindDatasetManifests recursively searches uri for dataset descriptor
// files (*.json, one per source dataset produced by the external
// "prepare" step, §1 non-goals). config must come from tiledb.NewConfig()
// for the default VFS backend, or tiledb.LoadConfig() to reach a
// permission-constrained object store such as S3.
func FindDatasetManifests(tctx *tiledb.Context, uri string, config *tiledb.Config) ([]string, error) {
	vfs, err := tiledb.NewVFS(tctx, config)
	if err != nil {
		return nil, err
	}
	defer vfs.Free()

	return trawl(vfs, "*.json", uri, make([]string, 0))
}
