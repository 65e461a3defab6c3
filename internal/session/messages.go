package session

import (
	"errors"

	"github.com/vedsharma/apitester/internal/codec"
	httpclient "github.com/vedsharma/apitester/internal/http"
	"github.com/vedsharma/apitester/internal/model"
)

// SendMessage is the user-facing text for an error returned by Send
func SendMessage(err error) string {
	var vErr *codec.ValidationError
	var eErr *httpclient.ExecutionError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrMissingURL):
		return "Please enter a URL."
	case errors.As(err, &vErr):
		return vErr.Message()
	case errors.Is(err, model.ErrSendInFlight):
		return "A request is already in flight."
	case errors.As(err, &eErr):
		return httpclient.ReachabilityMessage
	}
	return err.Error()
}

// SaveMessage is the user-facing notice for an error returned by SaveToCollection
func SaveMessage(err error) string {
	var vErr *codec.ValidationError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrNoCollections):
		return "Create a collection first!"
	case errors.Is(err, model.ErrNoSelection):
		return "Select a collection to save into."
	case errors.Is(err, model.ErrMissingURL):
		return "Enter a URL before saving to collection."
	case errors.As(err, &vErr):
		if vErr.Field == codec.FieldHeaders {
			return "Invalid JSON in Headers, cannot save."
		}
		return "Invalid JSON in Body, cannot save."
	}
	return err.Error()
}
