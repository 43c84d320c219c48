package bindings

import "errors"

// ErrAlreadyBound is returned when creating a binding for a channel that
// already has one. Surfaced to the invoking actor, never retried.
var ErrAlreadyBound = errors.New("channel is already bound")

// ErrUnknownBinding is returned when operating on a channel with no binding.
var ErrUnknownBinding = errors.New("channel is not bound")

// ErrInvalidID is returned when a community or channel identifier is empty
// or contains the path separator; such an id would corrupt the store
// hierarchy.
var ErrInvalidID = errors.New("invalid identifier")
