package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue"
	"github.com/earthcube/cube/catalogue/memstore"
	"github.com/earthcube/cube/catalogue/postgres"
	"github.com/earthcube/cube/corecontext"
	"github.com/earthcube/cube/gridcalc"
	"github.com/earthcube/cube/ingest"
	"github.com/earthcube/cube/query"
)

// openCatalogue resolves the --catalogue flag to a live catalogue.Store:
// "memory" for the in-process store used by dry runs and tests, anything
// else treated as a postgres DSN.
func openCatalogue(ctx context.Context, dsn string) (catalogue.Store, func(), error) {
	if dsn == "" || dsn == "memory" {
		return memstore.New(), func() {}, nil
	}
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// datasetManifest is the JSON descriptor the external "prepare" step
// produces for one source dataset: its catalogue identity plus the
// pre-resampled per-measurement pixel buffers ingest fuses (§1 non-goals
// keep the raw decode/resample step outside this repo).
type datasetManifest struct {
	DatasetType string                 `json:"dataset_type"`
	DatasetID   string                 `json:"dataset_id"`
	Location    string                 `json:"location"`
	Observation string                 `json:"observation_id"`
	ObsStart    time.Time              `json:"observation_start"`
	ObsEnd      time.Time              `json:"observation_end"`
	Instrument  string                 `json:"instrument"`
	CentroidLon float64                `json:"centroid_lon"`
	CentroidLat float64                `json:"centroid_lat"`
	Ranges      []cube.DimensionRange  `json:"ranges"`
	Bands       map[string][]float64   `json:"bands"`
}

func loadManifest(path string) (datasetManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return datasetManifest{}, err
	}
	var m datasetManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return datasetManifest{}, fmt.Errorf("cube: parse manifest %s: %w", path, err)
	}
	if m.DatasetID == "" {
		m.DatasetID = uuid.NewString()
	}
	return m, nil
}

func loadStorageType(path string) (cube.StorageType, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return cube.StorageType{}, err
	}
	var spec cube.StorageType
	if err := json.Unmarshal(raw, &spec); err != nil {
		return cube.StorageType{}, fmt.Errorf("cube: parse storage type %s: %w", path, err)
	}
	return spec, nil
}

// registerStorageTypeCmd registers a StorageType definition from a JSON
// file.
func registerStorageTypeCmd(cctx *cli.Context) error {
	spec, err := loadStorageType(cctx.String("definition"))
	if err != nil {
		return err
	}
	store, closeStore, err := openCatalogue(cctx.Context, cctx.String("catalogue"))
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.RegisterStorageType(cctx.Context, spec); err != nil {
		return err
	}
	log.Printf("registered storage type %s", spec.Tag)
	return nil
}

// ingestManifestsCmd materialises the tiles covered by one or more
// dataset manifests: it resolves the storage type, loads each manifest
// (trawling a directory of them when --manifest-dir is set, via a
// TileDB VFS scan), catalogues each dataset, groups sources by tile,
// and submits one ingest.Task per tile to a Driver backed by a live
// TileDB context.
func ingestManifestsCmd(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt)
	defer stop()

	store, closeStore, err := openCatalogue(ctx, cctx.String("catalogue"))
	if err != nil {
		return err
	}
	defer closeStore()

	spec, ok, err := store.FindStorageType(ctx, cctx.String("storage-type"))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cube: storage type %q is not registered", cctx.String("storage-type"))
	}

	var manifestPaths []string
	if dir := cctx.String("manifest-dir"); dir != "" {
		tctx, err := tiledb.NewContext(nil)
		if err != nil {
			return err
		}
		defer tctx.Free()
		config, err := tiledb.NewConfig()
		if err != nil {
			return err
		}
		defer config.Free()
		manifestPaths, err = ingest.FindDatasetManifests(tctx, dir, config)
		if err != nil {
			return err
		}
	} else if path := cctx.String("manifest"); path != "" {
		manifestPaths = []string{path}
	} else {
		return fmt.Errorf("cube: one of --manifest or --manifest-dir is required")
	}
	log.Printf("found %d dataset manifest(s)", len(manifestPaths))

	cc := corecontext.New(ctx, store)
	defer cc.Close()

	tasks, err := buildTasks(ctx, cc, store, spec, manifestPaths)
	if err != nil {
		return err
	}
	log.Printf("ingesting %d tile(s)", len(tasks))

	tctx, err := tiledb.NewContext(nil)
	if err != nil {
		return err
	}
	defer tctx.Free()

	writer := ingest.TiledbWriter{Ctx: tctx}
	driver := ingest.NewDriver(store, writer, cctx.Bool("skip-broken"))

	for i, t := range tasks {
		t.OutputDir = cctx.String("outdir")
		t.Version = cctx.Int("version")
		tasks[i] = t
	}

	outcomes := driver.Run(ctx, tasks)
	var failed, skipped int
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			failed++
		}
	}
	log.Printf("ingest complete: %d tiles, %d skipped, %d failed", len(outcomes), skipped, failed)
	if failed > 0 && !cctx.Bool("skip-broken") {
		return fmt.Errorf("cube: %d tile(s) failed", failed)
	}
	return nil
}

// manifestResult is one manifest's contribution to the tile-building
// step: its catalogued dataset/observation, its source record, and the
// tiles it touches, computed concurrently across manifests since reading
// and parsing each is independent of every other (§4.D step 1).
type manifestResult struct {
	src   ingest.Source
	tiles []gridcalc.Tile
	err   error
}

// buildTasks catalogues every manifest's dataset/observation, computes
// its tile coverage against spec, and groups the resulting sources by
// tile index so each tile is fused from every dataset that touches it
// (§4.D step 1 "group contributing datasets by tile"). Manifest loading
// and catalogue registration run across cc's worker pool, one submission
// per manifest; the per-tile grouping that follows is inherently
// sequential and stays on the caller's goroutine.
func buildTasks(ctx context.Context, cc *corecontext.CoreContext, store catalogue.Store, spec cube.StorageType, paths []string) ([]ingest.Task, error) {
	pool := cc.Executor()
	results := make([]manifestResult, len(paths))

	var wg sync.WaitGroup
	wg.Add(len(paths))
	for i, path := range paths {
		i, path := i, path
		pool.Submit(func() {
			defer wg.Done()
			results[i] = loadAndRegisterManifest(ctx, store, spec, path)
		})
	}
	wg.Wait()

	byTile := make(map[string]*ingest.Task)
	order := make([]string, 0, len(paths))

	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		for _, tile := range r.tiles {
			key := tile.Index.Key(spec.DimOrder)
			t, ok := byTile[key]
			if !ok {
				t = &ingest.Task{StorageType: spec, Tile: tile}
				byTile[key] = t
				order = append(order, key)
			}
			t.Sources = append(t.Sources, r.src)
		}
	}

	tasks := make([]ingest.Task, 0, len(order))
	for _, key := range order {
		tasks = append(tasks, *byTile[key])
	}
	return tasks, nil
}

// loadAndRegisterManifest parses one manifest file, catalogues its
// observation and dataset, and computes its tile coverage. Run
// concurrently by buildTasks, one call per manifest.
func loadAndRegisterManifest(ctx context.Context, store catalogue.Store, spec cube.StorageType, path string) manifestResult {
	m, err := loadManifest(path)
	if err != nil {
		return manifestResult{err: err}
	}

	obs := cube.Observation{ID: m.Observation, Start: m.ObsStart, End: m.ObsEnd, Instrument: m.Instrument}
	if obs.ID == "" {
		obs.ID = m.DatasetID
	}
	if err := store.AddObservation(ctx, obs); err != nil {
		return manifestResult{err: err}
	}

	ds := cube.Dataset{DatasetType: m.DatasetType, DatasetID: m.DatasetID, Observation: obs.ID, Location: m.Location, Ranges: m.Ranges}
	if err := store.AddDataset(ctx, ds, true); err != nil {
		return manifestResult{err: err}
	}

	tiles, err := gridcalc.Coverage(m.Ranges, spec)
	if err != nil {
		return manifestResult{err: err}
	}

	return manifestResult{
		src: ingest.Source{
			Dataset:     ds,
			Observation: obs,
			CentroidLon: m.CentroidLon,
			CentroidLat: m.CentroidLat,
			Bands:       m.Bands,
		},
		tiles: tiles,
	}
}

// queryCmd resolves a region/time query to its covering tiles, grouped
// by solar day, and prints a summary of each group (§4.E, §8 scenario 4).
func queryCmd(cctx *cli.Context) error {
	ctx := cctx.Context
	store, closeStore, err := openCatalogue(ctx, cctx.String("catalogue"))
	if err != nil {
		return err
	}
	defer closeStore()

	cc := corecontext.New(ctx, store)
	native, err := cc.ResolveCRS("EPSG:4326")
	if err != nil {
		return err
	}

	req := query.Request{
		StorageType: cctx.String("storage-type"),
		Footprint: cube.Footprint{
			MinX: cctx.Float64("min-x"), MinY: cctx.Float64("min-y"),
			MaxX: cctx.Float64("max-x"), MaxY: cctx.Float64("max-y"),
		},
	}

	plan, err := query.Plan(ctx, store, nil, native, req)
	if err != nil {
		return err
	}

	for _, g := range plan.Groups {
		fmt.Printf("%s: %d tile(s)\n", g.Key, len(g.Units))
		for _, u := range g.Units {
			fmt.Printf("  %s/%s v%d %s\n", u.StorageType, u.StorageID, u.Version, u.Location)
		}
	}

	if out := cctx.String("output-uri"); out != "" {
		tctx, err := tiledb.NewContext(nil)
		if err != nil {
			return err
		}
		defer tctx.Free()
		config, err := tiledb.NewConfig()
		if err != nil {
			return err
		}
		defer config.Free()
		if _, err := corecontext.WriteJSON(tctx, config, out, plan.Groups); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "cube",
		Usage: "register storage layouts, ingest datasets, and query the data cube",
		Commands: []*cli.Command{
			{
				Name:  "register-storage-type",
				Usage: "register a storage type definition",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "definition", Required: true, Usage: "path to a storage type JSON definition"},
					&cli.StringFlag{Name: "catalogue", Usage: "catalogue DSN, or \"memory\" for an in-process store"},
				},
				Action: registerStorageTypeCmd,
			},
			{
				Name:  "ingest",
				Usage: "fuse and materialise the tiles covered by one or more dataset manifests",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "storage-type", Required: true},
					&cli.StringFlag{Name: "manifest", Usage: "path to a single dataset manifest JSON file"},
					&cli.StringFlag{Name: "manifest-dir", Usage: "directory to recursively trawl for dataset manifests"},
					&cli.StringFlag{Name: "outdir", Usage: "output directory for materialised tiles"},
					&cli.IntFlag{Name: "version", Value: 1},
					&cli.StringFlag{Name: "catalogue", Usage: "catalogue DSN, or \"memory\" for an in-process store"},
					&cli.BoolFlag{Name: "skip-broken", Usage: "skip tiles that fail to ingest rather than aborting the run"},
				},
				Action: ingestManifestsCmd,
			},
			{
				Name:  "query",
				Usage: "plan and list the storage units covering a region, grouped by solar day",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "storage-type", Required: true},
					&cli.Float64Flag{Name: "min-x", Required: true},
					&cli.Float64Flag{Name: "min-y", Required: true},
					&cli.Float64Flag{Name: "max-x", Required: true},
					&cli.Float64Flag{Name: "max-y", Required: true},
					&cli.StringFlag{Name: "catalogue", Usage: "catalogue DSN, or \"memory\" for an in-process store"},
					&cli.StringFlag{Name: "output-uri", Usage: "write the matched groups as JSON to this URI (local path or object store)"},
				},
				Action: queryCmd,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
