package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventWorkflowFailed, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
		expectClick    string
	}{
		{
			name:  "paused",
			event: notifications.EventWorkflowPaused,
			payload: notifications.Payload{
				"title":     "Lecture 4",
				"workflow":  "wf-1",
				"holdUrl":   "https://review.example/approve?id=wf-1",
				"holdTitle": "Approve recording",
			},
			expectTitle:   "mediaflow - Input Needed",
			expectMessage: "⏸️ Waiting for input: Lecture 4 (wf-1)\nAction: Approve recording",
			expectTags:    "mediaflow,workflow,paused",
			expectClick:   "https://review.example/approve?id=wf-1",
		},
		{
			name:  "succeeded",
			event: notifications.EventWorkflowSucceeded,
			payload: notifications.Payload{
				"title":    "Lecture 4",
				"duration": 90 * time.Second,
			},
			expectTitle:   "mediaflow - Complete",
			expectMessage: "✅ Finished: Lecture 4 in 1m30s",
			expectTags:    "mediaflow,workflow,completed",
		},
		{
			name:  "failed",
			event: notifications.EventWorkflowFailed,
			payload: notifications.Payload{
				"workflow":  "wf-2",
				"operation": "encode#1",
				"error":     errors.New("encoder exited 1"),
			},
			expectTitle:    "mediaflow - Failed",
			expectMessage:  "❌ Failed: wf-2 at encode#1\nencoder exited 1",
			expectTags:     "mediaflow,workflow,failed",
			expectPriority: "high",
		},
		{
			name:          "stopped",
			event:         notifications.EventWorkflowStopped,
			payload:       notifications.Payload{},
			expectTitle:   "mediaflow - Stopped",
			expectMessage: "⏹️ Stopped: workflow",
			expectTags:    "mediaflow,workflow,stopped",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				click    string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				captured.click = r.Header.Get("Click")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Paused = true
			cfg.Notifications.Succeeded = true
			cfg.Notifications.Failed = true
			cfg.Notifications.Stopped = true

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
			if captured.click != tc.expectClick {
				t.Fatalf("expected click %q, got %q", tc.expectClick, captured.click)
			}
		})
	}
}

func TestNtfyServiceIgnoresDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Paused = false
	cfg.Notifications.Succeeded = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventWorkflowPaused, notifications.EventWorkflowSucceeded, "unknown"} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"title": "ignored"}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
