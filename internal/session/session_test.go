package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vedsharma/apitester/internal/codec"
	httpclient "github.com/vedsharma/apitester/internal/http"
	"github.com/vedsharma/apitester/internal/model"
	"github.com/vedsharma/apitester/internal/storage"
)

type fakeExecutor struct {
	mu       sync.Mutex
	requests []model.Request
	resp     *model.Response
	err      error

	started chan struct{}
	release chan struct{}
}

func (f *fakeExecutor) Execute(ctx context.Context, req model.Request) (*model.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.resp, f.err
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeHistory struct {
	count   atomic.Int32
	mu      sync.Mutex
	entries []model.HistoryEntry
	err     error
}

func (f *fakeHistory) History(ctx context.Context) ([]model.HistoryEntry, error) {
	f.count.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, f.err
}

func (f *fakeHistory) set(entries []model.HistoryEntry, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries, f.err = entries, err
}

func newTestController(t *testing.T, exec *fakeExecutor, hist *fakeHistory) *Controller {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	slots, err := storage.NewFileSlots(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSlots() error = %v", err)
	}
	store, err := storage.Open(slots, storage.Options{Logger: logger})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	c, err := New(Options{Executor: exec, History: hist, Store: store, Logger: logger})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func okResponse(status int) *model.Response {
	return &model.Response{Status: status, StatusText: "x", Headers: map[string]string{}, Data: map[string]any{}}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("Expected error for missing collaborators")
	}
}

func TestSendGetIgnoresBody(t *testing.T) {
	exec := &fakeExecutor{resp: okResponse(200)}
	hist := &fakeHistory{}
	c := newTestController(t, exec, hist)

	c.SetURL("http://x/y")
	c.SetHeadersText("{}")
	c.SetBodyText("{definitely not json")

	if _, err := c.Send(context.Background()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	c.WaitHistory()

	if exec.calls() != 1 {
		t.Fatalf("Expected 1 proxy call, got %d", exec.calls())
	}
	req := exec.requests[0]
	if req.Method != model.MethodGet || req.URL != "http://x/y" {
		t.Errorf("unexpected request %+v", req)
	}
	if h := req.Headers.(map[string]any); len(h) != 0 {
		t.Errorf("Expected empty headers, got %#v", h)
	}
	if b := req.Body.(map[string]any); len(b) != 0 {
		t.Errorf("Expected empty body, got %#v", b)
	}
}

func TestSendInvalidHeadersIsRejectedLocally(t *testing.T) {
	exec := &fakeExecutor{resp: okResponse(200)}
	hist := &fakeHistory{}
	c := newTestController(t, exec, hist)

	c.SetURL("http://x")
	c.SetHeadersText("{bad json")
	if err := c.SetMethod("POST"); err != nil {
		t.Fatalf("SetMethod() error = %v", err)
	}

	_, err := c.Send(context.Background())
	var vErr *codec.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != codec.FieldHeaders {
		t.Fatalf("Send() error = %v, want headers ValidationError", err)
	}
	c.WaitHistory()

	if exec.calls() != 0 {
		t.Errorf("Expected no proxy call, got %d", exec.calls())
	}
	if hist.count.Load() != 0 {
		t.Errorf("Expected no history refresh, got %d", hist.count.Load())
	}

	view := c.Snapshot()
	if view.State != Idle {
		t.Errorf("Expected Idle, got %s", view.State)
	}
	if view.FieldError != "Invalid JSON in Headers." || view.Banner != "" {
		t.Errorf("Expected inline headers message only, got %q / banner %q", view.FieldError, view.Banner)
	}
}

func TestSendMissingURL(t *testing.T) {
	exec := &fakeExecutor{resp: okResponse(200)}
	c := newTestController(t, exec, &fakeHistory{})

	if _, err := c.Send(context.Background()); !errors.Is(err, model.ErrMissingURL) {
		t.Fatalf("Send() error = %v, want ErrMissingURL", err)
	}
	if got := c.Snapshot().FieldError; got != "Please enter a URL." {
		t.Errorf("Error = %q", got)
	}
	if exec.calls() != 0 {
		t.Errorf("Expected no proxy call, got %d", exec.calls())
	}
}

func TestSendTargetErrorStatusDisplays(t *testing.T) {
	exec := &fakeExecutor{resp: &model.Response{Status: 404, StatusText: "Not Found", Data: map[string]any{}, Headers: map[string]string{}, Size: 2, TimeTaken: 50}}
	hist := &fakeHistory{entries: []model.HistoryEntry{{ID: "1", URL: "http://x"}}}
	c := newTestController(t, exec, hist)
	c.SetURL("http://x")

	resp, err := c.Send(context.Background())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	c.WaitHistory()

	view := c.Snapshot()
	if view.State != Displaying {
		t.Errorf("Expected Displaying, got %s", view.State)
	}
	if view.Response != resp || view.Response.Status != 404 {
		t.Errorf("unexpected response %+v", view.Response)
	}
	if hist.count.Load() != 1 {
		t.Errorf("Expected 1 history refresh, got %d", hist.count.Load())
	}
	if len(view.History) != 1 {
		t.Errorf("Expected refreshed history, got %d entries", len(view.History))
	}
}

func TestSendTransportFailureFails(t *testing.T) {
	exec := &fakeExecutor{err: &httpclient.ExecutionError{Op: "send", Err: errors.New("connection refused")}}
	hist := &fakeHistory{}
	c := newTestController(t, exec, hist)
	c.SetURL("http://x")

	_, err := c.Send(context.Background())
	var eErr *httpclient.ExecutionError
	if !errors.As(err, &eErr) {
		t.Fatalf("Send() error = %v, want ExecutionError", err)
	}
	c.WaitHistory()

	view := c.Snapshot()
	if view.State != Failed {
		t.Errorf("Expected Failed, got %s", view.State)
	}
	if view.Banner != httpclient.ReachabilityMessage || view.FieldError != "" {
		t.Errorf("Expected reachability banner, got %q / field error %q", view.Banner, view.FieldError)
	}
	if view.Response != nil {
		t.Errorf("Expected no response, got %+v", view.Response)
	}
	if hist.count.Load() != 1 {
		t.Errorf("Expected history refresh after failure, got %d", hist.count.Load())
	}
}

func TestFailedThenSuccessClearsBanner(t *testing.T) {
	exec := &fakeExecutor{err: &httpclient.ExecutionError{Op: "send", Err: errors.New("down")}}
	c := newTestController(t, exec, &fakeHistory{})
	c.SetURL("http://x")

	c.Send(context.Background())
	exec.err = nil
	exec.resp = okResponse(201)
	if _, err := c.Send(context.Background()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	c.WaitHistory()

	view := c.Snapshot()
	if view.State != Displaying || view.Banner != "" || view.FieldError != "" || view.Response.Status != 201 {
		t.Errorf("unexpected view %+v", view)
	}
}

func TestValidationFailureAfterFailedSendKeepsBannerSeparate(t *testing.T) {
	exec := &fakeExecutor{err: &httpclient.ExecutionError{Op: "send", Err: errors.New("down")}}
	c := newTestController(t, exec, &fakeHistory{})
	c.SetURL("http://x")

	c.Send(context.Background())
	c.WaitHistory()

	c.SetHeadersText("{bad")
	if _, err := c.Send(context.Background()); err == nil {
		t.Fatal("Expected validation error")
	}

	view := c.Snapshot()
	if view.State != Failed {
		t.Errorf("validation failure changed state to %s", view.State)
	}
	if view.Banner != httpclient.ReachabilityMessage {
		t.Errorf("Banner = %q, want the reachability message", view.Banner)
	}
	if view.FieldError != "Invalid JSON in Headers." {
		t.Errorf("FieldError = %q", view.FieldError)
	}
	if exec.calls() != 1 {
		t.Errorf("Expected 1 proxy call, got %d", exec.calls())
	}
}

func TestSendRejectedWhileInFlight(t *testing.T) {
	exec := &fakeExecutor{
		resp:    okResponse(200),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestController(t, exec, &fakeHistory{})
	c.SetURL("http://x")

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background())
		done <- err
	}()
	<-exec.started

	if c.State() != Sending {
		t.Errorf("Expected Sending, got %s", c.State())
	}
	if _, err := c.Send(context.Background()); !errors.Is(err, model.ErrSendInFlight) {
		t.Errorf("second Send() error = %v, want ErrSendInFlight", err)
	}

	close(exec.release)
	if err := <-done; err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	c.WaitHistory()

	if exec.calls() != 1 {
		t.Errorf("Expected 1 proxy call, got %d", exec.calls())
	}
}

func TestResendClearsPreviousResponseImmediately(t *testing.T) {
	exec := &fakeExecutor{resp: okResponse(200)}
	c := newTestController(t, exec, &fakeHistory{})
	c.SetURL("http://x")

	if _, err := c.Send(context.Background()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	exec.started = make(chan struct{}, 1)
	exec.release = make(chan struct{})
	done := make(chan struct{})
	go func() {
		c.Send(context.Background())
		close(done)
	}()
	<-exec.started

	if view := c.Snapshot(); view.Response != nil || view.State != Sending {
		t.Errorf("Expected cleared response while sending, got state %s response %+v", view.State, view.Response)
	}

	close(exec.release)
	<-done
	c.WaitHistory()
}

func TestValidationFailureKeepsDisplayedResponse(t *testing.T) {
	exec := &fakeExecutor{resp: okResponse(200)}
	c := newTestController(t, exec, &fakeHistory{})
	c.SetURL("http://x")
	c.Send(context.Background())
	c.WaitHistory()

	c.SetHeadersText("[oops")
	c.Send(context.Background())

	view := c.Snapshot()
	if view.State != Displaying || view.Response == nil {
		t.Errorf("validation failure changed state to %s / %+v", view.State, view.Response)
	}
}

func TestHistoryFailureKeepsPreviousEntries(t *testing.T) {
	hist := &fakeHistory{entries: []model.HistoryEntry{{ID: "a"}, {ID: "b"}}}
	c := newTestController(t, &fakeExecutor{resp: okResponse(200)}, hist)

	if err := c.RefreshHistory(context.Background()); err != nil {
		t.Fatalf("RefreshHistory() error = %v", err)
	}
	if n := len(c.Snapshot().History); n != 2 {
		t.Fatalf("Expected 2 entries, got %d", n)
	}

	hist.set(nil, errors.New("backend down"))
	if err := c.RefreshHistory(context.Background()); err == nil {
		t.Error("Expected refresh error to be reported")
	}
	if n := len(c.Snapshot().History); n != 2 {
		t.Errorf("Expected previous 2 entries kept, got %d", n)
	}

	hist.set([]model.HistoryEntry{}, nil)
	c.RefreshHistory(context.Background())
	if n := len(c.Snapshot().History); n != 0 {
		t.Errorf("Expected empty history, got %d", n)
	}
	if c.Snapshot().HistoryLoading {
		t.Error("HistoryLoading still set after refresh")
	}
}

func TestStaleRefreshDoesNotOverwriteNewer(t *testing.T) {
	hist := &fakeHistory{}
	c := newTestController(t, &fakeExecutor{}, hist)

	older := c.beginRefresh()
	newer := c.beginRefresh()

	hist.set([]model.HistoryEntry{{ID: "new"}}, nil)
	c.fetchHistory(context.Background(), newer)

	hist.set([]model.HistoryEntry{{ID: "old"}}, nil)
	c.fetchHistory(context.Background(), older)

	view := c.Snapshot()
	if len(view.History) != 1 || view.History[0].ID != "new" {
		t.Errorf("stale refresh applied: %+v", view.History)
	}
	if view.HistoryLoading {
		t.Error("HistoryLoading still set")
	}
}

func TestLoadHistoryEntryHydrates(t *testing.T) {
	hist := &fakeHistory{entries: []model.HistoryEntry{
		{ID: "1", URL: "http://h", Method: "PUT", Headers: map[string]any{"K": "v"}},
	}}
	c := newTestController(t, &fakeExecutor{}, hist)
	c.RefreshHistory(context.Background())

	if err := c.LoadHistoryEntry(0); err != nil {
		t.Fatalf("LoadHistoryEntry() error = %v", err)
	}
	view := c.Snapshot()
	if view.Method != model.MethodPut || view.URL != "http://h" {
		t.Errorf("unexpected composer %s %s", view.Method, view.URL)
	}
	if view.HeadersText != "{\n  \"K\": \"v\"\n}" || view.BodyText != "{\n  \n}" {
		t.Errorf("unexpected editor text %q / %q", view.HeadersText, view.BodyText)
	}

	if err := c.LoadHistoryEntry(5); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("LoadHistoryEntry(5) error = %v, want ErrEntryNotFound", err)
	}
}

func TestSaveToCollectionFlow(t *testing.T) {
	c := newTestController(t, &fakeExecutor{resp: okResponse(200)}, &fakeHistory{})
	c.SetURL("http://x")

	if _, err := c.SaveToCollection(false); !errors.Is(err, model.ErrNoCollections) {
		t.Fatalf("SaveToCollection() error = %v, want ErrNoCollections", err)
	}
	if len(c.Collections()) != 0 {
		t.Fatal("failed save changed the store")
	}

	col, err := c.CreateCollection("Mine")
	if err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}

	c.SelectCollection("nope")
	if _, err := c.SaveToCollection(false); !errors.Is(err, model.ErrNoSelection) {
		t.Fatalf("SaveToCollection() error = %v, want ErrNoSelection", err)
	}
	c.SelectCollection(col.ID)

	// Send succeeds with the current text, then the text is broken; the
	// save path must look at the editor, not the last sent request.
	c.Send(context.Background())
	c.WaitHistory()
	c.SetHeadersText("{broken")
	if _, err := c.SaveToCollection(false); err == nil {
		t.Fatal("Expected validation error from current editor text")
	}

	c.SetHeadersText(`{"Accept": "application/json"}`)
	item, err := c.SaveToCollection(false)
	if err != nil {
		t.Fatalf("SaveToCollection() error = %v", err)
	}

	selected, ok := c.SelectedCollection()
	if !ok || len(selected.Items) != 1 || selected.Items[0].ID != item.ID {
		t.Fatalf("unexpected selected collection %+v", selected)
	}

	c.SetURL("http://other")
	if err := c.LoadSavedRequest(col.ID, 0); err != nil {
		t.Fatalf("LoadSavedRequest() error = %v", err)
	}
	if c.Snapshot().URL != "http://x" {
		t.Errorf("Expected hydrated URL, got %q", c.Snapshot().URL)
	}
	if err := c.LoadSavedRequest(col.ID, 3); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("LoadSavedRequest(3) error = %v", err)
	}
	if err := c.LoadSavedRequest("missing", 0); !errors.Is(err, model.ErrCollectionNotFound) {
		t.Errorf("LoadSavedRequest(missing) error = %v", err)
	}
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"send missing url", SendMessage(model.ErrMissingURL), "Please enter a URL."},
		{"send body", SendMessage(&codec.ValidationError{Field: codec.FieldBody}), "Invalid JSON in Body."},
		{"send exec", SendMessage(&httpclient.ExecutionError{Op: "send", Err: errors.New("x")}), httpclient.ReachabilityMessage},
		{"save empty", SaveMessage(model.ErrNoCollections), "Create a collection first!"},
		{"save selection", SaveMessage(model.ErrNoSelection), "Select a collection to save into."},
		{"save url", SaveMessage(model.ErrMissingURL), "Enter a URL before saving to collection."},
		{"save headers", SaveMessage(&codec.ValidationError{Field: codec.FieldHeaders}), "Invalid JSON in Headers, cannot save."},
		{"nil", SaveMessage(nil), ""},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Failed.String() != "failed" || State(9).String() != "State(9)" {
		t.Error("unexpected State strings")
	}
}
