// Package ids generates the identifiers handed to providers and consumers.
package ids

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewTransactionID returns a random uuid.
func NewTransactionID() string {
	return uuid.New().String()
}

// NewCorrelationID returns a lexically sortable id used as the provider order id.
func NewCorrelationID() string {
	return ulid.Make().String()
}

// NewEventID returns a lexically sortable id for published events.
func NewEventID() string {
	return ulid.Make().String()
}

// IsUUID reports whether s parses as a uuid.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
