// File: internal/notification/logger.go
package notification

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/contract-observer/internal/models"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// LogNotifier writes alerts to the application log. The real delivery
// transport lives outside this service; this notifier stands in at the
// interface boundary and in local deployments.
type LogNotifier struct {
	logger *logrus.Entry
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{
		logger: utils.ComponentLogger("notification"),
	}
}

// Notify logs the alert for its owning user
func (n *LogNotifier) Notify(ctx context.Context, userID string, alert *models.ContractAlert) error {
	fields := logrus.Fields{
		"user_id":  userID,
		"alert_id": alert.ID,
		"rule":     alert.Type,
		"severity": alert.Severity,
		"address":  alert.Address,
		"chain_id": alert.ChainID,
	}
	if alert.Trigger != nil {
		fields["tx_hash"] = alert.Trigger.TxHash
		fields["block_number"] = alert.Trigger.BlockNumber
	}
	n.logger.WithFields(fields).Info(alert.Message)
	return nil
}
