package operations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mediaflow/internal/handler"
	"mediaflow/internal/job"
	"mediaflow/internal/logging"
	"mediaflow/internal/mediapackage"
	"mediaflow/internal/services"
)

// InspectHandler submits one inspect job per selected track and copies size,
// checksum and mime type from each payload onto the track.
type InspectHandler struct {
	Jobs    job.Service
	Poll    time.Duration
	Timeout time.Duration
}

type inspection struct {
	Element  string `json:"element"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	MimeType string `json:"mimetype"`
}

func (h *InspectHandler) Start(ctx context.Context, inv *handler.Invocation) (handler.Result, error) {
	if h.Jobs == nil {
		return handler.Result{}, services.Wrap(services.ErrConfiguration, "inspect", "start", "no job service", nil)
	}
	flavors, err := mediapackage.ParseFlavors(inv.ConfigOr("source-flavors", ""))
	if err != nil {
		return handler.Result{}, services.Wrap(services.ErrConfiguration, "inspect", "parse source-flavors", "", err)
	}
	mp := inv.MediaPackage
	if mp == nil {
		return handler.Skip(), nil
	}

	var ids []string
	for _, el := range mp.Select(flavors, inv.ConfigList("source-tags")) {
		if el.Kind != mediapackage.KindTrack || el.URI == "" {
			continue
		}
		id, err := h.Jobs.Submit(ctx, job.Work{
			Type:      JobInspect,
			Arguments: map[string]string{"element": el.ID, "uri": el.URI},
		})
		if err != nil {
			return handler.Result{}, err
		}
		inv.BindJob(id)
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return handler.Skip(), nil
	}

	waitCtx := ctx
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	summary, err := job.Await(waitCtx, h.Jobs, h.Poll, ids...)
	if err != nil {
		return handler.Result{}, err
	}

	for _, id := range ids {
		var result inspection
		if err := json.Unmarshal([]byte(summary.Payloads[id]), &result); err != nil {
			return handler.Result{}, services.Wrap(services.ErrExternalTool, "inspect", "decode payload", "job "+id, err)
		}
		el, ok := mp.Element(result.Element)
		if !ok {
			continue
		}
		el.Size = result.Size
		el.Checksum = result.Checksum
		if result.MimeType != "" {
			el.MimeType = result.MimeType
		}
	}
	inv.Logger.Info("tracks inspected", logging.Int("count", len(ids)), logging.Duration("queue_time", summary.QueueTime))
	return handler.Result{Action: handler.ActionContinue, MediaPackage: mp, QueueTime: summary.QueueTime}, nil
}

func (h *InspectHandler) ConfigurationKeys() map[string]string {
	return map[string]string{
		"source-flavors": "comma-separated flavors of tracks to inspect",
		"source-tags":    "comma-separated tags of tracks to inspect",
	}
}

func (h *InspectHandler) HealthCheck(context.Context) handler.Health {
	if h.Jobs == nil {
		return handler.Unhealthy(Inspect, "job service unavailable")
	}
	return handler.Healthy(Inspect)
}

// InspectProcessor reads the local file behind an element URI and returns an
// inspection payload.
func InspectProcessor(workspace string) job.Processor {
	return func(ctx context.Context, work job.Work) (string, error) {
		uri := work.Arguments["uri"]
		path, ok := localPath(uri, workspace)
		if !ok {
			return "", services.Wrap(services.ErrValidation, "inspect", "resolve uri", fmt.Sprintf("unsupported uri %q", uri), nil)
		}
		if err := unix.Access(path, unix.R_OK); err != nil {
			return "", services.Wrap(services.ErrNotFound, "inspect", "open track", path, err)
		}
		result, err := inspectFile(ctx, path)
		if err != nil {
			return "", err
		}
		result.Element = work.Arguments["element"]
		data, err := json.Marshal(result)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func inspectFile(ctx context.Context, path string) (inspection, error) {
	f, err := os.Open(path)
	if err != nil {
		return inspection{}, services.Wrap(services.ErrNotFound, "inspect", "open track", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return inspection{}, services.Wrap(services.ErrExternalTool, "inspect", "read track", path, err)
	}
	hash := sha256.New()
	hash.Write(head[:n])
	size, err := io.Copy(hash, contextReader{ctx: ctx, r: f})
	if err != nil {
		return inspection{}, services.Wrap(services.ErrExternalTool, "inspect", "hash track", path, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(head[:n])
	}
	return inspection{
		Size:     size + int64(n),
		Checksum: "sha256:" + hex.EncodeToString(hash.Sum(nil)),
		MimeType: mimeType,
	}, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// localPath maps file:// URIs and bare paths to a filesystem path. Relative
// paths are taken from base.
func localPath(uri, base string) (string, bool) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", false
	}
	path := uri
	if strings.Contains(uri, "://") {
		parsed, err := url.Parse(uri)
		if err != nil || parsed.Scheme != "file" {
			return "", false
		}
		path = parsed.Path
	}
	if !filepath.IsAbs(path) {
		if base == "" {
			return "", false
		}
		path = filepath.Join(base, path)
	}
	return filepath.Clean(path), true
}
