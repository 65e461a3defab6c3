package model

import "errors"

// User-input preconditions. These never reach the network or the store.
var (
	ErrMissingURL         = errors.New("missing URL")
	ErrNoCollections      = errors.New("no collections")
	ErrNoSelection        = errors.New("no collection selected")
	ErrEmptyName          = errors.New("collection name is empty")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrSendInFlight       = errors.New("a request is already being sent")
)
