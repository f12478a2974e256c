package operations_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediaflow/internal/definition"
	"mediaflow/internal/handler"
	"mediaflow/internal/job"
	"mediaflow/internal/mediapackage"
	"mediaflow/internal/operations"
	"mediaflow/internal/services"
	"mediaflow/internal/testsupport"
	"mediaflow/internal/workflow"
)

func invocation(t *testing.T, mp *mediapackage.MediaPackage, props map[string]string, op definition.Operation) *handler.Invocation {
	t.Helper()
	def := &definition.Workflow{ID: "test", Operations: []definition.Operation{op}}
	wi, err := workflow.NewInstance(def, mp, props, time.Now())
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	return handler.NewInvocation(wi, wi.Operations[0], nil, nil)
}

func TestDefaultsFillsOnlyMissingProperties(t *testing.T) {
	inv := invocation(t, testsupport.NewMediaPackage(t), map[string]string{"captions": "manual"},
		definition.MustOperation(operations.Defaults,
			definition.WithConfig("captions", "auto"),
			definition.WithConfig("publish", "true"),
		))

	result, err := operations.DefaultsHandler{}.Start(context.Background(), inv)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result.Action != handler.ActionContinue {
		t.Fatalf("expected CONTINUE, got %s", result.Action)
	}
	if len(result.Properties) != 1 || result.Properties["publish"] != "true" {
		t.Fatalf("unexpected properties: %#v", result.Properties)
	}
}

func TestDefaultsSkipsWhenNothingMissing(t *testing.T) {
	inv := invocation(t, testsupport.NewMediaPackage(t), map[string]string{"captions": "manual"},
		definition.MustOperation(operations.Defaults, definition.WithConfig("captions", "auto")))

	result, err := operations.DefaultsHandler{}.Start(context.Background(), inv)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result.Action != handler.ActionSkip {
		t.Fatalf("expected SKIP, got %s", result.Action)
	}
}

func TestTagRewritesInPlace(t *testing.T) {
	inv := invocation(t, testsupport.NewMediaPackage(t), nil,
		definition.MustOperation(operations.Tag,
			definition.WithConfig("source-flavors", "presenter/*"),
			definition.WithConfig("target-flavor", "*/delivery"),
			definition.WithConfig("target-tags", "+engage, -archive"),
		))

	result, err := operations.TagHandler{}.Start(context.Background(), inv)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	el, ok := result.MediaPackage.Element("track-1")
	if !ok {
		t.Fatal("track-1 missing")
	}
	if el.Flavor.String() != "presenter/delivery" {
		t.Fatalf("expected presenter/delivery, got %s", el.Flavor)
	}
	if !el.HasTag("engage") || el.HasTag("archive") {
		t.Fatalf("unexpected tags: %v", el.Tags)
	}
	catalog, _ := result.MediaPackage.Element("catalog-1")
	if catalog.Flavor.String() != "dublincore/episode" {
		t.Fatalf("catalog should be untouched, got %s", catalog.Flavor)
	}
}

func TestTagCopyKeepsOriginal(t *testing.T) {
	inv := invocation(t, testsupport.NewMediaPackage(t), nil,
		definition.MustOperation(operations.Tag,
			definition.WithConfig("source-tags", "archive"),
			definition.WithConfig("target-flavor", "presenter/preview"),
			definition.WithConfig("target-tags", "preview"),
			definition.WithConfig("copy", "true"),
		))

	result, err := operations.TagHandler{}.Start(context.Background(), inv)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(result.MediaPackage.Tracks) != 2 {
		t.Fatalf("expected a copied track, got %d tracks", len(result.MediaPackage.Tracks))
	}
	original, _ := result.MediaPackage.Element("track-1")
	if original.Flavor.String() != "presenter/source" || !original.HasTag("archive") {
		t.Fatalf("original changed: %#v", original)
	}
	dup := result.MediaPackage.Tracks[1]
	if dup.Flavor.String() != "presenter/preview" || len(dup.Tags) != 1 || dup.Tags[0] != "preview" {
		t.Fatalf("unexpected copy: %#v", dup)
	}
}

func TestTagRejectsBadFlavor(t *testing.T) {
	inv := invocation(t, testsupport.NewMediaPackage(t), nil,
		definition.MustOperation(operations.Tag, definition.WithConfig("target-flavor", "nonsense")))

	_, err := operations.TagHandler{}.Start(context.Background(), inv)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestApproveResume(t *testing.T) {
	h := operations.ApproveHandler{}
	inv := invocation(t, testsupport.NewMediaPackage(t), nil, definition.MustOperation(operations.Approve))

	start, err := h.Start(context.Background(), inv)
	if err != nil || start.Action != handler.ActionPause {
		t.Fatalf("expected PAUSE, got %v %v", start.Action, err)
	}
	if !h.AlwaysPause() || h.HoldStateUserInterfaceURL() == "" {
		t.Fatal("approve must always hold with a hold url")
	}

	cases := []struct {
		name   string
		props  map[string]string
		action handler.Action
		err    error
	}{
		{name: "approved", props: map[string]string{"approved": "true"}, action: handler.ActionContinue},
		{name: "rejected", props: map[string]string{"approved": "false"}, action: handler.ActionStop},
		{name: "missing", props: map[string]string{}, err: services.ErrValidation},
		{name: "garbage", props: map[string]string{"approved": "maybe"}, err: services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := h.Resume(context.Background(), inv, tc.props)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resume: %v", err)
			}
			if result.Action != tc.action {
				t.Fatalf("expected %s, got %s", tc.action, result.Action)
			}
		})
	}
}

func TestCleanupRemovesElementsAndWorkspaceFiles(t *testing.T) {
	workspace := t.TempDir()
	outside := filepath.Join(t.TempDir(), "keep.mp4")
	inside := filepath.Join(workspace, "preview.mp4")
	testsupport.WriteFile(t, inside, []byte("preview"))
	testsupport.WriteFile(t, outside, []byte("keep"))

	mp := testsupport.NewMediaPackage(t)
	mp.Add(mediapackage.Element{ID: "preview", Kind: mediapackage.KindTrack, Flavor: mediapackage.MustParseFlavor("presenter/preview"), URI: "file://" + inside})
	mp.Add(mediapackage.Element{ID: "external", Kind: mediapackage.KindAttachment, Flavor: mediapackage.MustParseFlavor("presenter/preview"), URI: outside})

	inv := invocation(t, mp, nil, definition.MustOperation(operations.Cleanup,
		definition.WithConfig("flavors", "*/preview"),
		definition.WithConfig("delete-files", "true"),
	))
	h := &operations.CleanupHandler{Workspace: workspace}
	result, err := h.Start(context.Background(), inv)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok := result.MediaPackage.Element("preview"); ok {
		t.Fatal("preview element should be removed")
	}
	if _, ok := result.MediaPackage.Element("external"); ok {
		t.Fatal("external element should be removed")
	}
	if _, ok := result.MediaPackage.Element("track-1"); !ok {
		t.Fatal("source track should remain")
	}
	if _, err := os.Stat(inside); !os.IsNotExist(err) {
		t.Fatalf("workspace file should be deleted, stat err=%v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("file outside workspace should remain: %v", err)
	}
}

func newJobCluster(t *testing.T, workspace string) *job.Cluster {
	t.Helper()
	cluster := job.NewCluster(job.ClusterOptions{Nodes: 2, Buffer: 8})
	if err := operations.RegisterProcessors(cluster, workspace); err != nil {
		t.Fatalf("RegisterProcessors: %v", err)
	}
	if err := cluster.Start(context.Background()); err != nil {
		t.Fatalf("cluster.Start: %v", err)
	}
	t.Cleanup(func() { _ = cluster.Close() })
	return cluster
}

func TestInspectRecordsJobPayloads(t *testing.T) {
	workspace := t.TempDir()
	content := []byte("not really a video, but bytes all the same")
	testsupport.WriteFile(t, filepath.Join(workspace, "presenter.mp4"), content)
	sum := sha256.Sum256(content)

	mp := &mediapackage.MediaPackage{ID: "mp-1"}
	mp.Add(mediapackage.Element{ID: "track-1", Kind: mediapackage.KindTrack, Flavor: mediapackage.MustParseFlavor("presenter/source"), URI: "presenter.mp4"})
	mp.Add(mediapackage.Element{ID: "catalog-1", Kind: mediapackage.KindCatalog, Flavor: mediapackage.MustParseFlavor("dublincore/episode"), URI: "episode.xml"})

	cluster := newJobCluster(t, workspace)
	h := &operations.InspectHandler{Jobs: cluster, Poll: 5 * time.Millisecond, Timeout: 5 * time.Second}

	def := &definition.Workflow{ID: "test", Operations: []definition.Operation{definition.MustOperation(operations.Inspect)}}
	wi, err := workflow.NewInstance(def, mp, nil, time.Now())
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	var bound []string
	inv := handler.NewInvocation(wi, wi.Operations[0], nil, func(id string) { bound = append(bound, id) })

	result, err := h.Start(context.Background(), inv)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(bound) != 1 {
		t.Fatalf("expected one bound job, got %v", bound)
	}
	el, _ := result.MediaPackage.Element("track-1")
	if el.Size != int64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), el.Size)
	}
	if el.Checksum != "sha256:"+hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected checksum %q", el.Checksum)
	}
	if el.MimeType == "" {
		t.Fatal("expected a mime type")
	}
	if counts := cluster.Counts(); counts[job.StatusFinished] != 1 {
		t.Fatalf("expected one finished job, got %#v", counts)
	}
}

func TestInspectFailsWhenTrackMissing(t *testing.T) {
	workspace := t.TempDir()
	mp := &mediapackage.MediaPackage{ID: "mp-1"}
	mp.Add(mediapackage.Element{ID: "track-1", Kind: mediapackage.KindTrack, Flavor: mediapackage.MustParseFlavor("presenter/source"), URI: "missing.mp4"})

	cluster := newJobCluster(t, workspace)
	h := &operations.InspectHandler{Jobs: cluster, Poll: 5 * time.Millisecond, Timeout: 5 * time.Second}
	inv := invocation(t, mp, nil, definition.MustOperation(operations.Inspect))

	_, err := h.Start(context.Background(), inv)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestInspectSkipsWithoutTracks(t *testing.T) {
	cluster := newJobCluster(t, t.TempDir())
	h := &operations.InspectHandler{Jobs: cluster, Poll: 5 * time.Millisecond}
	inv := invocation(t, testsupport.NewMediaPackage(t), nil,
		definition.MustOperation(operations.Inspect, definition.WithConfig("source-flavors", "slides/*")))

	result, err := h.Start(context.Background(), inv)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result.Action != handler.ActionSkip {
		t.Fatalf("expected SKIP, got %s", result.Action)
	}
}

func TestRegisterAddsEveryHandler(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reg := handler.NewRegistry()
	if err := operations.Register(reg, job.NewCluster(job.ClusterOptions{}), cfg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := len(reg.IDs()); got != 5 {
		t.Fatalf("expected 5 handlers, got %d", got)
	}

	def := &definition.Workflow{ID: "publish", Operations: []definition.Operation{
		definition.MustOperation(operations.Defaults, definition.WithConfig("captions", "auto")),
		definition.MustOperation(operations.Inspect),
		definition.MustOperation(operations.Approve),
		definition.MustOperation(operations.Cleanup, definition.WithConfig("flavors", "*/preview")),
	}}
	if err := reg.ValidateDefinition(def); err != nil {
		t.Fatalf("ValidateDefinition: %v", err)
	}

	bad := &definition.Workflow{ID: "bad", Operations: []definition.Operation{
		definition.MustOperation(operations.Cleanup),
	}}
	if err := reg.ValidateDefinition(bad); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected missing flavors to be rejected, got %v", err)
	}
}
