package testsupport

import (
	"context"
	"testing"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/definition"
	"mediaflow/internal/mediapackage"
	"mediaflow/internal/store"
	"mediaflow/internal/workflow"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewMediaPackage returns a package with one presenter track and one
// episode catalog.
func NewMediaPackage(t testing.TB) *mediapackage.MediaPackage {
	t.Helper()

	mp := &mediapackage.MediaPackage{ID: "mp-test", Title: "Test Recording"}
	mp.Add(mediapackage.Element{
		ID:     "track-1",
		Kind:   mediapackage.KindTrack,
		Flavor: mediapackage.MustParseFlavor("presenter/source"),
		URI:    "file:///recordings/presenter.mp4",
		Tags:   []string{"archive"},
	})
	mp.Add(mediapackage.Element{
		ID:     "catalog-1",
		Kind:   mediapackage.KindCatalog,
		Flavor: mediapackage.MustParseFlavor("dublincore/episode"),
	})
	return mp
}

// NewInstance instantiates def against a fresh test package and stores it.
func NewInstance(t testing.TB, st *store.Store, def *definition.Workflow, props map[string]string) *workflow.Instance {
	t.Helper()

	wi, err := workflow.NewInstance(def, NewMediaPackage(t), props, time.Now())
	if err != nil {
		t.Fatalf("workflow.NewInstance: %v", err)
	}
	if err := st.Create(context.Background(), wi); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return wi
}
