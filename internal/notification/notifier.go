// File: internal/notification/notifier.go
package notification

import (
	"context"

	"github.com/smartdevs17/contract-observer/internal/models"
)

// Notifier delivers an alert to its owning user. Delivery is fire-and-forget
// from the engine's perspective: failures are the dispatcher's concern and
// are never retried by the engine.
type Notifier interface {
	Notify(ctx context.Context, userID string, alert *models.ContractAlert) error
}
