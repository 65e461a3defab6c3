package cmd

import (
	"fmt"
	"log/slog"

	"github.com/vedsharma/apitester/internal/config"
	"github.com/vedsharma/apitester/internal/format"
	httpclient "github.com/vedsharma/apitester/internal/http"
	"github.com/vedsharma/apitester/internal/session"
	"github.com/vedsharma/apitester/internal/storage"
)

// app is the wiring shared by every command
type app struct {
	client  *httpclient.Client
	store   *storage.Store
	session *session.Controller
	logger  *slog.Logger
}

func openSlots(c *config.Config, logger *slog.Logger) (storage.Slots, error) {
	switch c.Storage {
	case config.StorageSQLite:
		return storage.NewSQLiteSlots(c.DataDir, logger)
	default:
		return storage.NewFileSlots(c.DataDir)
	}
}

func newApp(c *config.Config, logger *slog.Logger) (*app, error) {
	slots, err := openSlots(c, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	store, err := storage.Open(slots, storage.Options{Logger: logger})
	if err != nil {
		slots.Close()
		return nil, err
	}

	client, err := httpclient.NewClient(httpclient.Config{BaseURL: c.BackendURL, Logger: logger})
	if err != nil {
		store.Close()
		return nil, err
	}

	sess, err := session.New(session.Options{
		Executor: client,
		History:  client,
		Store:    store,
		Logger:   logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{client: client, store: store, session: sess, logger: logger}, nil
}

// mustOpenApp wires the app from the loaded configuration or exits
func mustOpenApp() *app {
	a, err := newApp(cfg, logger)
	if err != nil {
		format.Fatal(err.Error())
	}
	return a
}

// Close drains background history refreshes and releases storage
func (a *app) Close() {
	a.session.WaitHistory()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", "error", err)
	}
}
