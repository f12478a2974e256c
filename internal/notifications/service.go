package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediaflow/internal/config"
)

const userAgent = "mediaflow/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventWorkflowPaused    Event = "workflow_paused"
	EventWorkflowSucceeded Event = "workflow_succeeded"
	EventWorkflowFailed    Event = "workflow_failed"
	EventWorkflowStopped   Event = "workflow_stopped"
	EventTest              Event = "test"
)

// Payload carries event fields. Known keys: title, workflow, definition,
// operation, holdUrl, holdTitle, error, duration.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventWorkflowPaused:    cfg.Notifications.Paused,
			EventWorkflowSucceeded: cfg.Notifications.Succeeded,
			EventWorkflowFailed:    cfg.Notifications.Failed,
			EventWorkflowStopped:   cfg.Notifications.Stopped,
			EventTest:              true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	title := label(payload)
	switch event {
	case EventWorkflowPaused:
		body := fmt.Sprintf("⏸️ Waiting for input: %s", title)
		if action := text(payload, "holdTitle"); action != "" {
			body = fmt.Sprintf("%s\nAction: %s", body, action)
		}
		return message{
			title: "mediaflow - Input Needed",
			body:  body,
			tags:  []string{"mediaflow", "workflow", "paused"},
			click: text(payload, "holdUrl"),
		}, true
	case EventWorkflowSucceeded:
		body := fmt.Sprintf("✅ Finished: %s", title)
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body = fmt.Sprintf("%s in %s", body, d.Round(time.Second))
		}
		return message{
			title: "mediaflow - Complete",
			body:  body,
			tags:  []string{"mediaflow", "workflow", "completed"},
		}, true
	case EventWorkflowFailed:
		var builder strings.Builder
		builder.WriteString("❌ Failed: ")
		builder.WriteString(title)
		if op := text(payload, "operation"); op != "" {
			builder.WriteString(" at ")
			builder.WriteString(op)
		}
		if errText := text(payload, "error"); errText != "" {
			builder.WriteString("\n")
			builder.WriteString(errText)
		}
		return message{
			title:    "mediaflow - Failed",
			body:     builder.String(),
			tags:     []string{"mediaflow", "workflow", "failed"},
			priority: "high",
		}, true
	case EventWorkflowStopped:
		return message{
			title: "mediaflow - Stopped",
			body:  fmt.Sprintf("⏹️ Stopped: %s", title),
			tags:  []string{"mediaflow", "workflow", "stopped"},
		}, true
	case EventTest:
		return message{
			title:    "mediaflow - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"mediaflow", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func label(payload Payload) string {
	title := text(payload, "title")
	id := text(payload, "workflow")
	switch {
	case title != "" && id != "":
		return fmt.Sprintf("%s (%s)", title, id)
	case title != "":
		return title
	case id != "":
		return id
	default:
		return "workflow"
	}
}

func text(payload Payload, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if data.click != "" {
		req.Header.Set("Click", data.click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
