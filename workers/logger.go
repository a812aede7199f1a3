package workers

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"deal_hunter/models"
)

// LogFunc persists a worker log line to the hunt_logs table.
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}

// LogStore is the store method a LogFunc writes through.
type LogStore interface {
	Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, source string) error
}

// StoreLogger writes worker logs through the store without a run id.
// Write failures are only reported to the process log.
func StoreLogger(store LogStore) LogFunc {
	return func(level models.LogLevel, source, message string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Log(ctx, nil, level, message, source); err != nil {
			log.Printf("[%s] Warning: failed to persist log: %v", source, err)
		}
	}
}
