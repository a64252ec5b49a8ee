package corecontext

import (
	"context"
	"errors"
	"testing"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue/memstore"
	"github.com/earthcube/cube/refsystem"
)

func TestRegistryResolvesSeededCRS(t *testing.T) {
	r := NewRegistry()
	p, ok := r.Lookup("EPSG:4326")
	if !ok {
		t.Fatal("expected EPSG:4326 to be pre-registered")
	}
	if p.Authority() != "EPSG:4326" {
		t.Fatalf("unexpected authority %q", p.Authority())
	}
}

func TestRegistryLookupMiss(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("EPSG:9999"); ok {
		t.Fatal("expected unregistered authority to miss")
	}
}

func TestResolveCRSWrapsMissAsReprojectError(t *testing.T) {
	cc := New(context.Background(), memstore.New())
	_, err := cc.ResolveCRS("EPSG:9999")
	if err == nil {
		t.Fatal("expected an error for an unknown CRS")
	}
	if !errors.Is(err, cube.ErrReproject) {
		t.Fatalf("expected a ReprojectError for an unknown CRS, got %v", err)
	}
}

func TestExecutorIsSharedAcrossCalls(t *testing.T) {
	cc := New(context.Background(), memstore.New())
	defer cc.Close()

	a := cc.Executor()
	b := cc.Executor()
	if a != b {
		t.Fatal("expected Executor to return the same pool on repeated calls")
	}
}

func TestRegisterOverridesExistingAuthority(t *testing.T) {
	r := NewRegistry()
	custom := refsystem.Projected{Auth: "EPSG:3857", FalseEasting: 1}
	r.Register(custom)
	got, ok := r.Lookup("EPSG:3857")
	if !ok {
		t.Fatal("expected EPSG:3857 to remain registered")
	}
	if p, isProjected := got.(refsystem.Projected); !isProjected || p != custom {
		t.Fatal("expected Register to replace the existing projection")
	}
}
