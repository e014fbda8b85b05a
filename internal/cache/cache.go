// Package cache defines the TTL key/value store shared by every update handler.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Keys used for the reference data mirror.
const (
	KeyCategories     = "reference:categories"
	KeyPaymentMethods = "reference:paymentMethods"
	KeyUpdatedAt      = "reference:updatedAt"
)

// Store is a key/value store with per-key expiry.
// Put and Delete are atomic per key.
type Store interface {
	// Get returns the value for key and whether it was present and unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores value under key. A ttl of zero means the entry never expires.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// TransactionKey returns the key of the pending approval record for a
// confirmation message.
func TransactionKey(chatID int64, messageID int) string {
	return fmt.Sprintf("txn:%d:%d", chatID, messageID)
}
