package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autopost/internal/config"
)

const userAgent = "autopost/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventPostFailed   Event = "post_failed"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes notification events.
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
		runs:     cfg.Notifications.Runs,
		errors:   cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	runs     bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	msg, ok := n.render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunStarted:
		if !n.runs {
			return message{}, false
		}
		count := payloadInt(payload, "count")
		mode := payloadString(payload, "mode")
		body := fmt.Sprintf("Posting %d queued %s", count, plural(count, "image", "images"))
		if mode != "" {
			body = fmt.Sprintf("%s (%s mode)", body, mode)
		}
		return message{
			title: "Autopost - Run Started",
			body:  body,
			tags:  []string{"autopost", "run", "started"},
		}, true
	case EventRunCompleted:
		if !n.runs {
			return message{}, false
		}
		posted := payloadInt(payload, "posted")
		duration := payloadDuration(payload, "duration")
		return message{
			title: "Autopost - Run Complete",
			body:  fmt.Sprintf("Posted %d %s in %s", posted, plural(posted, "image", "images"), duration),
			tags:  []string{"autopost", "run", "completed"},
		}, true
	case EventPostFailed:
		if !n.errors {
			return message{}, false
		}
		var b strings.Builder
		b.WriteString("Post failed")
		if name := payloadString(payload, "file"); name != "" {
			b.WriteString(" for ")
			b.WriteString(name)
		}
		b.WriteString(": ")
		b.WriteString(nonEmpty(payloadString(payload, "error"), "unknown"))
		if remaining := payloadInt(payload, "remaining"); remaining > 0 {
			fmt.Fprintf(&b, "\n%d %s not attempted", remaining, plural(remaining, "job", "jobs"))
		}
		return message{
			title:    "Autopost - Post Failed",
			body:     b.String(),
			tags:     []string{"autopost", "post", "failed"},
			priority: "high",
		}, true
	case EventError:
		if !n.errors {
			return message{}, false
		}
		var b strings.Builder
		b.WriteString("Error")
		if label := payloadString(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		b.WriteString(nonEmpty(payloadString(payload, "error"), "unknown"))
		return message{
			title:    "Autopost - Error",
			body:     b.String(),
			tags:     []string{"autopost", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Autopost - Test",
			body:     "Notification system test",
			tags:     []string{"autopost", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func payloadString(p Payload, key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func payloadInt(p Payload, key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func payloadDuration(p Payload, key string) string {
	d, _ := p[key].(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func nonEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
