package backend

import (
	"context"

	"crm/internal/amqp"
	"crm/internal/ports"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// BackendResult is an opened store together with the optional appointment
// event publisher. Events and AMQP are nil when no broker is configured or
// it could not be reached.
type BackendResult struct {
	Store  ports.Store
	Events ports.EventPublisher
	AMQP   *amqp.Client
	// Cleanup closes the broker connection and then the store.
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// AMQP is optional for every backend; an empty URL disables events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
