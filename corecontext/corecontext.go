// Package corecontext replaces global process configuration and implicit
// CRS singletons (§9 re-architecture note) with an explicit dependency
// bundle every command and test constructs and passes down: the
// catalogue handle, a fixed worker pool, a reference-system registry,
// and a Clock seam for deterministic tests.
package corecontext

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/alitto/pond"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue"
	"github.com/earthcube/cube/refsystem"
)

// Clock abstracts wall-clock time so tests can control CreatedAt-style
// timestamps without sleeping or racing on real time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, delegating to time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Registry resolves a reference system's authority string to the
// refsystem.Projection that implements it, so callers never hardcode a
// type switch on CRS identity the way a global singleton table would
// (§9 "avoid implicit CRS singletons").
type Registry struct {
	mu    sync.RWMutex
	byTag map[string]refsystem.Projection
}

// NewRegistry seeds a Registry with the well-known CRS this cube ships
// with: geographic WGS84 and Web Mercator, the one projected system the
// reprojection path supports (§4.A, §8 scenario 4).
func NewRegistry() *Registry {
	r := &Registry{byTag: make(map[string]refsystem.Projection)}
	r.Register(refsystem.Geographic{Auth: "EPSG:4326"})
	r.Register(refsystem.Projected{
		Auth:          "EPSG:3857",
		MetersPerUnit: 1,
	})
	return r
}

// Register adds or replaces the Projection found under its own
// Authority().
func (r *Registry) Register(p refsystem.Projection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTag[p.Authority()] = p
}

// Lookup resolves tag to a registered Projection.
func (r *Registry) Lookup(tag string) (refsystem.Projection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byTag[tag]
	return p, ok
}

// CoreContext bundles every dependency a command or ingest/query
// operation needs, constructed once at process startup (or once per
// test) and threaded explicitly rather than reached for through package
// globals.
type CoreContext struct {
	Catalogue catalogue.Store
	Registry  *Registry
	Clock     Clock

	pool     *pond.WorkerPool
	poolOnce sync.Once
	ctx      context.Context
}

// New constructs a CoreContext. The worker pool is created lazily on
// the first Executor call so a CoreContext built for a read-only query never pays
// for a pool it doesn't use.
func New(ctx context.Context, store catalogue.Store) *CoreContext {
	return &CoreContext{
		Catalogue: store,
		Registry:  NewRegistry(),
		Clock:     SystemClock{},
		ctx:       ctx,
	}
}

// Executor returns the fixed-size worker pool sized at 2*NumCPU, the
// same sizing convert_gsf_list uses, created on first use and shared by
// every subsequent caller of this CoreContext.
func (c *CoreContext) Executor() *pond.WorkerPool {
	c.poolOnce.Do(func() {
		n := runtime.NumCPU() * 2
		c.pool = pond.New(n, 0, pond.MinWorkers(n), pond.Context(c.ctx))
	})
	return c.pool
}

// Close stops and drains the worker pool, if one was created.
func (c *CoreContext) Close() {
	if c.pool != nil {
		c.pool.StopAndWait()
	}
}

// ResolveCRS looks up tag in the Registry, wrapping a miss in
// cube.ErrReproject so callers get a recognisable error kind rather than
// a bare "not found".
func (c *CoreContext) ResolveCRS(tag string) (refsystem.Projection, error) {
	p, ok := c.Registry.Lookup(tag)
	if !ok {
		return nil, cube.Wrapf(cube.ErrReproject, "corecontext: unknown reference system %q", tag)
	}
	return p, nil
}
