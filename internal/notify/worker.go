// Package notify delivers committed ledger events to the service endpoints
// of the identities they concern.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/riverqueue/river"

	"github.com/inaiurai/settlement/internal/models"
)

// ErrRejected marks a delivery the endpoint refused for good; it is not retried.
var ErrRejected = errors.New("endpoint rejected event")

type DeliverEventArgs struct {
	Endpoint  string         `json:"endpoint"`
	Recipient models.Address `json:"recipient"`
	Event     models.Event   `json:"event"`
}

func (DeliverEventArgs) Kind() string { return "deliver_event" }

// Headers set on every delivery.
const (
	HeaderEventKind = "X-Settlement-Event"
	HeaderEventID   = "X-Settlement-Delivery"
	HeaderAttempt   = "X-Settlement-Attempt"
)

type DeliverEventWorker struct {
	river.WorkerDefaults[DeliverEventArgs]
	httpClient *http.Client
	log        *slog.Logger
}

func NewDeliverEventWorker(log *slog.Logger) *DeliverEventWorker {
	if log == nil {
		log = slog.Default()
	}
	return &DeliverEventWorker{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

func (w *DeliverEventWorker) Timeout(*river.Job[DeliverEventArgs]) time.Duration {
	return 30 * time.Second
}

// Work POSTs the event as JSON. Network errors, 429 and 5xx are returned for
// retry; any other non-2xx status cancels the job.
func (w *DeliverEventWorker) Work(ctx context.Context, job *river.Job[DeliverEventArgs]) error {
	args := job.Args
	body, err := json.Marshal(args.Event)
	if err != nil {
		return river.JobCancel(fmt.Errorf("encode event %s: %w", args.Event.ID, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, args.Endpoint, bytes.NewReader(body))
	if err != nil {
		return river.JobCancel(fmt.Errorf("%w: build request: %v", ErrRejected, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventKind, string(args.Event.Kind))
	req.Header.Set(HeaderEventID, args.Event.ID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(job.Attempt))

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error delivering event %s: %w", args.Event.ID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		w.log.Debug("event delivered", "event_id", args.Event.ID, "recipient", args.Recipient, "attempt", job.Attempt)
		return nil
	case Permanent(resp.StatusCode):
		w.log.Warn("event rejected by endpoint", "event_id", args.Event.ID, "recipient", args.Recipient, "status", resp.StatusCode)
		return river.JobCancel(fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode))
	default:
		return fmt.Errorf("endpoint returned status %d for event %s", resp.StatusCode, args.Event.ID)
	}
}

// Permanent reports whether a response status should stop retries.
func Permanent(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout
}

// Deliveries plans one delivery per event and concerned identity with a
// usable endpoint. endpoint returns "" for identities without one.
func Deliveries(events []models.Event, endpoint func(models.Address) string) []DeliverEventArgs {
	var out []DeliverEventArgs
	for _, ev := range events {
		for i, who := range []models.Address{ev.Subject, ev.Counterparty} {
			if who.IsZero() || (i == 1 && who == ev.Subject) {
				continue
			}
			ep := endpoint(who)
			if !usableEndpoint(ep) {
				continue
			}
			out = append(out, DeliverEventArgs{Endpoint: ep, Recipient: who, Event: ev})
		}
	}
	return out
}

func usableEndpoint(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
