package storage

import "github.com/ashita-ai/beacon/internal/situation"

// ErrNotFound is returned when a requested situation does not exist. It is
// the situation package's sentinel so callers can match either name.
var ErrNotFound = situation.ErrNotFound
