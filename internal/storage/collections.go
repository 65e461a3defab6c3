package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedsharma/apitester/internal/codec"
	"github.com/vedsharma/apitester/internal/model"
)

// CollectionsKey is the slot holding the collection list
const CollectionsKey = "api_tester_collections_v1"

// Options tunes a Store. Zero values pick production defaults.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Draft is the editor state a collection item is saved from
type Draft struct {
	Method      model.Method
	URL         string
	HeadersText string
	BodyText    string
	// Redact replaces sensitive header values before saving
	Redact bool
}

// Store owns the collection list and is the only writer of its slot.
// Every mutation persists the whole list; in-memory state changes only
// after the write succeeds.
type Store struct {
	slots  Slots
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	collections []model.Collection
	selectedID  string
}

// Open loads the collection list from slots. A missing or unreadable slot
// yields an empty store.
func Open(slots Slots, opts Options) (*Store, error) {
	if slots == nil {
		return nil, errors.New("storage: slots are required")
	}

	s := &Store{
		slots:  slots,
		logger: opts.Logger,
		now:    opts.Now,
		newID:  opts.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newTimeOrderedID
	}

	if err := s.Reload(); err != nil {
		s.logger.Warn("collections unreadable, starting empty", "error", err)
	}
	return s, nil
}

// newTimeOrderedID returns a UUIDv7, which embeds the creation time and
// stays unique within a single millisecond
func newTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Reload re-reads the slot. On failure the store is reset to empty and a
// *CorruptionError is returned for diagnostics.
func (s *Store) Reload() error {
	s.collections = []model.Collection{}
	s.selectedID = ""

	data, err := s.slots.Read(CollectionsKey)
	if err != nil {
		return &CorruptionError{Key: CollectionsKey, Err: err}
	}
	if data == nil {
		return nil
	}

	collections, err := decodeCollections(data)
	if err != nil {
		return &CorruptionError{Key: CollectionsKey, Err: err}
	}
	s.collections = collections
	return nil
}

func decodeCollections(data []byte) ([]model.Collection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("collection slot is not a JSON array")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var collections []model.Collection
	if err := dec.Decode(&collections); err != nil {
		return nil, err
	}

	for i := range collections {
		if collections[i].Items == nil {
			collections[i].Items = []model.SavedRequest{}
		}
	}
	return collections, nil
}

func (s *Store) persist(next []model.Collection) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode collections: %w", err)
	}
	if err := s.slots.Write(CollectionsKey, data); err != nil {
		return fmt.Errorf("failed to save collections: %w", err)
	}
	return nil
}

// Collections returns the collection list, most recently created first
func (s *Store) Collections() []model.Collection {
	out := make([]model.Collection, len(s.collections))
	copy(out, s.collections)
	return out
}

// Create adds a collection at the front of the list and selects it
func (s *Store) Create(name string) (model.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Collection{}, model.ErrEmptyName
	}

	col := model.Collection{
		ID:    s.newID(),
		Name:  name,
		Items: []model.SavedRequest{},
	}

	next := make([]model.Collection, 0, len(s.collections)+1)
	next = append(next, col)
	next = append(next, s.collections...)

	if err := s.persist(next); err != nil {
		return model.Collection{}, err
	}

	s.collections = next
	s.selectedID = col.ID
	s.logger.Debug("collection created", "id", col.ID, "name", name)
	return col, nil
}

// Select makes id the selected collection. An unknown id clears the
// selection and returns false.
func (s *Store) Select(id string) bool {
	if s.index(id) < 0 {
		s.selectedID = ""
		return false
	}
	s.selectedID = id
	return true
}

// SelectedID returns the selected collection id, or "" if none
func (s *Store) SelectedID() string {
	return s.selectedID
}

// Selected returns the selected collection
func (s *Store) Selected() (model.Collection, bool) {
	i := s.index(s.selectedID)
	if i < 0 {
		return model.Collection{}, false
	}
	return s.collections[i], true
}

// Find looks a collection up by id, then by name
func (s *Store) Find(ref string) (model.Collection, bool) {
	if i := s.index(ref); i >= 0 {
		return s.collections[i], true
	}
	for _, col := range s.collections {
		if col.Name == ref {
			return col, true
		}
	}
	return model.Collection{}, false
}

func (s *Store) index(id string) int {
	if id == "" {
		return -1
	}
	for i, col := range s.collections {
		if col.ID == id {
			return i
		}
	}
	return -1
}

// SaveItem snapshots the draft into the selected collection. The draft's
// editor text is parsed with the same rules as a send.
func (s *Store) SaveItem(collectionID string, d Draft) (model.SavedRequest, error) {
	if len(s.collections) == 0 {
		return model.SavedRequest{}, model.ErrNoCollections
	}
	if collectionID == "" {
		collectionID = s.selectedID
	}
	target := s.index(collectionID)
	if s.selectedID == "" || collectionID != s.selectedID || target < 0 {
		return model.SavedRequest{}, model.ErrNoSelection
	}

	url := strings.TrimSpace(d.URL)
	if url == "" {
		return model.SavedRequest{}, model.ErrMissingURL
	}

	headers, body, err := codec.ParseParts(d.Method, d.HeadersText, d.BodyText)
	if err != nil {
		return model.SavedRequest{}, err
	}
	if d.Redact {
		headers = redactHeaders(headers)
	}

	item := model.SavedRequest{
		ID:      s.newID(),
		URL:     url,
		Method:  string(d.Method),
		Headers: headers,
		Body:    body,
		SavedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	next := make([]model.Collection, len(s.collections))
	copy(next, s.collections)

	col := next[target]
	items := make([]model.SavedRequest, 0, len(col.Items)+1)
	items = append(items, item)
	items = append(items, col.Items...)
	col.Items = items
	next[target] = col

	if err := s.persist(next); err != nil {
		return model.SavedRequest{}, err
	}

	s.collections = next
	s.logger.Debug("request saved to collection", "collection", collectionID, "item", item.ID)
	return item, nil
}

// Delete removes a collection. Deleting the selected collection clears
// the selection.
func (s *Store) Delete(id string) error {
	i := s.index(id)
	if i < 0 {
		return model.ErrCollectionNotFound
	}

	next := make([]model.Collection, 0, len(s.collections)-1)
	next = append(next, s.collections[:i]...)
	next = append(next, s.collections[i+1:]...)

	if err := s.persist(next); err != nil {
		return err
	}

	s.collections = next
	if s.selectedID == id {
		s.selectedID = ""
	}
	return nil
}

// Close releases the underlying slots
func (s *Store) Close() error {
	return s.slots.Close()
}
