// Package session ties the composer, the proxy, the history log and the
// collection store into one editing session.
//
// A Controller moves through Idle -> Sending -> Displaying|Failed on each
// send. Local validation failures never leave the current state. Every
// send that reaches the proxy, successful or not, triggers a background
// history refresh.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vedsharma/apitester/internal/composer"
	httpclient "github.com/vedsharma/apitester/internal/http"
	"github.com/vedsharma/apitester/internal/model"
	"github.com/vedsharma/apitester/internal/storage"
)

// State is the send lifecycle of a session
type State int

const (
	Idle State = iota
	Sending
	Displaying
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Displaying:
		return "displaying"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Executor sends a validated request through the proxy
type Executor interface {
	Execute(ctx context.Context, req model.Request) (*model.Response, error)
}

// HistorySource reads the external history log
type HistorySource interface {
	History(ctx context.Context) ([]model.HistoryEntry, error)
}

// ErrEntryNotFound is returned when a history or collection index is out of range
var ErrEntryNotFound = errors.New("entry not found")

// Options configures a Controller
type Options struct {
	Executor Executor
	History  HistorySource
	Store    *storage.Store
	Logger   *slog.Logger
}

// View is a point-in-time copy of the session for rendering
type View struct {
	Method      model.Method
	URL         string
	HeadersText string
	BodyText    string

	State    State
	Response *model.Response
	// FieldError is the inline message for a request rejected before sending
	FieldError string
	// Banner is the top-level message of a send that could not complete
	Banner string

	History        []model.HistoryEntry
	HistoryLoading bool

	Collections []model.Collection
	SelectedID  string
}

// Controller owns the transient request/response pair and mediates all
// access to the history log and the collection store
type Controller struct {
	mu sync.Mutex

	exec    Executor
	history HistorySource
	store   *storage.Store
	logger  *slog.Logger

	composer *composer.Composer
	state    State
	response   *model.Response
	fieldError string
	banner     string

	entries        []model.HistoryEntry
	historyGen     uint64
	historyApplied uint64
	historyLoading bool
	refreshes      sync.WaitGroup
}

// New creates a controller with a fresh composer
func New(opts Options) (*Controller, error) {
	if opts.Executor == nil || opts.History == nil || opts.Store == nil {
		return nil, errors.New("session: executor, history and store are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		exec:     opts.Executor,
		history:  opts.History,
		store:    opts.Store,
		logger:   logger,
		composer: composer.New(),
		state:    Idle,
		entries:  []model.HistoryEntry{},
	}, nil
}

// Snapshot returns a copy of the current session state
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]model.HistoryEntry, len(c.entries))
	copy(history, c.entries)

	return View{
		Method:         c.composer.Method,
		URL:            c.composer.URL,
		HeadersText:    c.composer.HeadersText,
		BodyText:       c.composer.BodyText,
		State:          c.state,
		Response:       c.response,
		FieldError:     c.fieldError,
		Banner:         c.banner,
		History:        history,
		HistoryLoading: c.historyLoading,
		Collections:    c.store.Collections(),
		SelectedID:     c.store.SelectedID(),
	}
}

// State returns the current send state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// =============================================================================
// Editing
// =============================================================================

// SetMethod changes the request method
func (c *Controller) SetMethod(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.composer.SetMethod(method)
}

// SetURL changes the request URL
func (c *Controller) SetURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composer.URL = url
}

// SetHeadersText replaces the headers editor contents
func (c *Controller) SetHeadersText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composer.HeadersText = text
}

// SetBodyText replaces the body editor contents
func (c *Controller) SetBodyText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composer.BodyText = text
}

// =============================================================================
// Send
// =============================================================================

// Send validates the composer and dispatches the request through the proxy.
//
// Validation failures and a send already in flight return an error without
// changing state. A proxy call that cannot complete moves the session to
// Failed and returns the *httpclient.ExecutionError; a completed call moves
// it to Displaying whatever status the target returned.
func (c *Controller) Send(ctx context.Context) (*model.Response, error) {
	c.mu.Lock()
	if c.state == Sending {
		c.mu.Unlock()
		return nil, model.ErrSendInFlight
	}

	req, err := c.composer.BuildRequest()
	if err != nil {
		c.fieldError = SendMessage(err)
		c.mu.Unlock()
		return nil, err
	}

	c.state = Sending
	c.response = nil
	c.fieldError = ""
	c.banner = ""
	c.mu.Unlock()

	resp, err := c.exec.Execute(ctx, req)

	c.mu.Lock()
	if err != nil {
		c.state = Failed
		c.response = nil
		c.banner = httpclient.ReachabilityMessage
		c.logger.Warn("send failed", "method", req.Method, "url", req.URL, "error", err)
	} else {
		c.state = Displaying
		c.response = resp
	}
	c.mu.Unlock()

	c.refreshAsync(ctx)
	return resp, err
}

// =============================================================================
// History
// =============================================================================

// RefreshHistory reloads the history log and waits for the result. On a
// transport failure the previous entries stay in place and the error is
// returned.
func (c *Controller) RefreshHistory(ctx context.Context) error {
	gen := c.beginRefresh()
	return c.fetchHistory(ctx, gen)
}

// WaitHistory blocks until every background refresh has finished
func (c *Controller) WaitHistory() {
	c.refreshes.Wait()
}

func (c *Controller) refreshAsync(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	gen := c.beginRefresh()

	c.refreshes.Add(1)
	go func() {
		defer c.refreshes.Done()
		c.fetchHistory(ctx, gen)
	}()
}

func (c *Controller) beginRefresh() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.historyGen++
	c.historyLoading = true
	return c.historyGen
}

// fetchHistory applies a refresh result unless a newer one already landed.
// A failed fetch keeps the last known history.
func (c *Controller) fetchHistory(ctx context.Context, gen uint64) error {
	entries, err := c.history.History(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen == c.historyGen {
		c.historyLoading = false
	}
	if err != nil {
		c.logger.Warn("history refresh failed", "error", err)
		return err
	}
	if gen <= c.historyApplied {
		return nil
	}
	c.historyApplied = gen
	c.entries = entries
	return nil
}

// LoadHistoryEntry hydrates the composer from the i-th history entry
func (c *Controller) LoadHistoryEntry(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.entries) {
		return fmt.Errorf("history entry %d: %w", i+1, ErrEntryNotFound)
	}
	c.composer.HydrateHistory(c.entries[i])
	return nil
}

// =============================================================================
// Collections
// =============================================================================

// Collections returns the collection list
func (c *Controller) Collections() []model.Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Collections()
}

// SelectedCollection returns the selected collection, if any
func (c *Controller) SelectedCollection() (model.Collection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Selected()
}

// FindCollection looks a collection up by id or name
func (c *Controller) FindCollection(ref string) (model.Collection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Find(ref)
}

// CreateCollection adds a collection and selects it
func (c *Controller) CreateCollection(name string) (model.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Create(name)
}

// SelectCollection selects a collection; an unknown id clears the selection
func (c *Controller) SelectCollection(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Select(id)
}

// DeleteCollection removes a collection
func (c *Controller) DeleteCollection(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(id)
}

// SaveToCollection snapshots the current editor text into the selected
// collection. The text is parsed afresh, independent of any earlier send.
func (c *Controller) SaveToCollection(redact bool) (model.SavedRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.SaveItem(c.store.SelectedID(), storage.Draft{
		Method:      c.composer.Method,
		URL:         c.composer.URL,
		HeadersText: c.composer.HeadersText,
		BodyText:    c.composer.BodyText,
		Redact:      redact,
	})
}

// LoadSavedRequest hydrates the composer from the i-th item of a collection
func (c *Controller) LoadSavedRequest(collectionID string, i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.store.Find(collectionID)
	if !ok {
		return model.ErrCollectionNotFound
	}
	if i < 0 || i >= len(col.Items) {
		return fmt.Errorf("collection item %d: %w", i+1, ErrEntryNotFound)
	}
	c.composer.HydrateSaved(col.Items[i])
	return nil
}
