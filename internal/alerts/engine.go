// File: internal/alerts/engine.go
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/contract-observer/internal/metrics"
	"github.com/smartdevs17/contract-observer/internal/models"
	"github.com/smartdevs17/contract-observer/internal/notification"
	"github.com/smartdevs17/contract-observer/internal/storage"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// Engine evaluates the rule catalog against each ingested event. It holds
// no state between evaluations; every run is a pure function of the event,
// one bounded history fetch, and the latest sampled state.
type Engine struct {
	storage       storage.Storage
	notifier      notification.Notifier
	telemetry     *metrics.Manager
	logger        *logrus.Entry
	rules         []Rule
	historyWindow time.Duration
}

// NewEngine creates an alert engine over the fixed rule catalog. The history
// window bounds the single event fetch each evaluation performs; zero falls
// back to the widest rule window.
func NewEngine(store storage.Storage, notifier notification.Notifier, telemetry *metrics.Manager, historyWindow time.Duration) *Engine {
	if historyWindow <= 0 {
		historyWindow = unusualValueWindow
	}
	return &Engine{
		storage:       store,
		notifier:      notifier,
		telemetry:     telemetry,
		logger:        utils.ComponentLogger("alerts"),
		rules:         Catalog(),
		historyWindow: historyWindow,
	}
}

// EvaluateEvent runs every rule for one ingested event and returns the
// alerts that fired. Alert persistence and notification failures are
// logged, never propagated: a dispatch failure must not lose the persisted
// alert, and a persistence failure must not suppress the notification.
func (e *Engine) EvaluateEvent(ctx context.Context, contract *models.MonitoredContract, event *models.ContractEvent) []*models.ContractAlert {
	now := time.Now()

	history := e.fetchHistory(ctx, event, now)
	state, err := e.storage.GetState(ctx, event.Address, event.ChainID)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to load contract state for rule evaluation")
		state = nil
	}

	in := RuleInput{
		Event:   event,
		History: history,
		State:   state,
		Now:     now,
	}

	var fired []*models.ContractAlert
	for _, rule := range e.rules {
		ok, message := rule.Evaluate(in)
		if !ok {
			continue
		}
		alert := e.buildAlert(rule, contract, event, message, now)
		e.dispatch(ctx, alert)
		fired = append(fired, alert)
	}
	return fired
}

// fetchHistory loads the trailing window once; every rule filters its own
// sub-window in memory. The triggering event is excluded so rules see only
// prior history.
func (e *Engine) fetchHistory(ctx context.Context, event *models.ContractEvent, now time.Time) []*models.ContractEvent {
	events, err := e.storage.ListEvents(ctx, event.Address, event.ChainID, now.Add(-e.historyWindow), 0)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to load event history for rule evaluation")
		return nil
	}
	key := event.NaturalKey()
	history := events[:0]
	for _, prior := range events {
		if prior.NaturalKey() == key {
			continue
		}
		history = append(history, prior)
	}
	return history
}

func (e *Engine) buildAlert(rule Rule, contract *models.MonitoredContract, event *models.ContractEvent, message string, now time.Time) *models.ContractAlert {
	return &models.ContractAlert{
		ID:        uuid.NewString(),
		Address:   event.Address,
		ChainID:   event.ChainID,
		Type:      rule.ID,
		Severity:  rule.Severity,
		Title:     rule.Title,
		Message:   fmt.Sprintf("%s: %s", contractLabel(contract, event), message),
		Timestamp: now,
		UserID:    contract.UserID,
		Trigger: &models.AlertTrigger{
			TxHash:      event.TxHash,
			BlockNumber: event.BlockNumber,
			GasUsed:     event.GasUsed,
		},
	}
}

// dispatch persists the alert and then hands it to the notifier
func (e *Engine) dispatch(ctx context.Context, alert *models.ContractAlert) {
	if err := e.storage.InsertAlert(ctx, alert); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"alert_id": alert.ID,
			"rule":     alert.Type,
		}).Error("Failed to persist alert")
		if e.telemetry != nil {
			e.telemetry.GetPrometheusMetrics().AlertPersistFailures.Inc()
		}
	}

	if err := e.notifier.Notify(ctx, alert.UserID, alert); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"alert_id": alert.ID,
			"user_id":  alert.UserID,
		}).Warn("Failed to dispatch alert notification")
		if e.telemetry != nil {
			e.telemetry.GetPrometheusMetrics().NotificationFailures.Inc()
		}
	}

	if e.telemetry != nil {
		e.telemetry.GetPrometheusMetrics().RecordAlertFired(alert.Type, string(alert.Severity))
	}

	e.logger.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"rule":     alert.Type,
		"severity": alert.Severity,
		"address":  alert.Address,
		"chain_id": alert.ChainID,
	}).Info("Alert fired")
}

func contractLabel(contract *models.MonitoredContract, event *models.ContractEvent) string {
	if contract.TemplateType != nil && *contract.TemplateType != "" {
		return fmt.Sprintf("%s (%s)", event.Address, *contract.TemplateType)
	}
	return event.Address
}
