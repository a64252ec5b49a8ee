package corecontext

import (
	"encoding/json"
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// WriteJSON serialises data as indented JSON to uri through TileDB's VFS,
// so a cube command can emit a query plan or ingest summary to an
// object store (s3://, ...) as easily as to a local path, without a
// second file-I/O abstraction alongside the one tile storage already
// depends on.
func WriteJSON(tctx *tiledb.Context, config *tiledb.Config, uri string, data any) (int, error) {
	vfs, err := tiledb.NewVFS(tctx, config)
	if err != nil {
		return 0, fmt.Errorf("corecontext: new vfs: %w", err)
	}
	defer vfs.Free()

	stream, err := vfs.Open(uri, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, fmt.Errorf("corecontext: open %s for write: %w", uri, err)
	}
	defer stream.Close()

	blob, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return 0, err
	}

	n, err := stream.Write(blob)
	if err != nil {
		return 0, fmt.Errorf("corecontext: write %s: %w", uri, err)
	}
	return n, nil
}
