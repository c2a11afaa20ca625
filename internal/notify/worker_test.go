package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/inaiurai/settlement/internal/models"
)

var (
	alice = models.MustParseAddress("0x00000000000000000000000000000000000000a1")
	bob   = models.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

func newJob(endpoint string) *river.Job[DeliverEventArgs] {
	return &river.Job[DeliverEventArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: 2},
		Args: DeliverEventArgs{
			Endpoint:  endpoint,
			Recipient: alice,
			Event:     models.Event{ID: "01J0000000000000000000000", Seq: 7, Kind: models.EventJobApproved, Subject: alice, JobID: 3},
		},
	}
}

func TestWork_Delivers(t *testing.T) {
	var got models.Event
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewDeliverEventWorker(nil).Work(context.Background(), newJob(srv.URL)); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if got.Seq != 7 || got.Kind != models.EventJobApproved || got.JobID != 3 {
		t.Errorf("unexpected delivered event: %+v", got)
	}
	if headers.Get(HeaderEventKind) != "job_approved" || headers.Get(HeaderAttempt) != "2" {
		t.Errorf("unexpected headers: %v", headers)
	}
}

func TestWork_RetriesServerErrors(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		err := NewDeliverEventWorker(nil).Work(context.Background(), newJob(srv.URL))
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error for retry", status)
		}
		if errors.Is(err, ErrRejected) {
			t.Errorf("status %d: must be retried, not cancelled", status)
		}
	}
}

func TestWork_CancelsClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	err := NewDeliverEventWorker(nil).Work(context.Background(), newJob(srv.URL))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected cancelled delivery wrapping ErrRejected, got %v", err)
	}
}

func TestWork_NetworkErrorIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewDeliverEventWorker(nil).Work(context.Background(), newJob(url))
	if err == nil || errors.Is(err, ErrRejected) {
		t.Fatalf("expected retryable network error, got %v", err)
	}
}

func TestDeliveries(t *testing.T) {
	endpoints := map[models.Address]string{
		alice: "https://alice.example/hook",
		bob:   "ftp://bob.example",
	}
	lookup := func(a models.Address) string { return endpoints[a] }

	events := []models.Event{
		{Kind: models.EventJobCreated, Subject: alice, Counterparty: bob},
		{Kind: models.EventJobAccepted, Subject: bob, Counterparty: alice},
		{Kind: models.EventProfileUpdated, Subject: alice, Counterparty: alice},
		{Kind: models.EventFundsMinted, Subject: bob},
	}
	got := Deliveries(events, lookup)

	if len(got) != 3 {
		t.Fatalf("expected 3 deliveries, got %d: %+v", len(got), got)
	}
	for _, d := range got {
		if d.Recipient != alice || d.Endpoint != "https://alice.example/hook" {
			t.Errorf("unexpected delivery: %+v", d)
		}
	}
}

func TestPermanent(t *testing.T) {
	cases := map[int]bool{
		http.StatusBadRequest:         true,
		http.StatusNotFound:           true,
		http.StatusTooManyRequests:    false,
		http.StatusRequestTimeout:     false,
		http.StatusServiceUnavailable: false,
		http.StatusOK:                 false,
	}
	for status, want := range cases {
		if got := Permanent(status); got != want {
			t.Errorf("Permanent(%d) = %v, want %v", status, got, want)
		}
	}
}
