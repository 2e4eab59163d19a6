// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/smartdevs17/contract-observer/internal/models"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// SQLiteStorage implements Storage using SQLite
type SQLiteStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetSQLiteMigrations(),
	}
}

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	// SQLite handles one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping SQLite database", err.Error())
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLiteStorage) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	for _, migration := range s.migrations {
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applying migration")

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version), err.Error())
		}
	}
	return nil
}

// UpsertMonitoredContract inserts or replaces a monitored contract row
func (s *SQLiteStorage) UpsertMonitoredContract(ctx context.Context, contract *models.MonitoredContract) error {
	query := `
		INSERT INTO monitored_contracts
		(address, chain_id, user_id, abi, template_type, is_active, started_at, stopped_at, last_check)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address, chain_id) DO UPDATE SET
			user_id = excluded.user_id,
			abi = excluded.abi,
			template_type = excluded.template_type,
			is_active = excluded.is_active,
			started_at = excluded.started_at,
			stopped_at = excluded.stopped_at,
			last_check = excluded.last_check`

	_, err := s.db.ExecContext(ctx, query,
		utils.NormalizeAddress(contract.Address), contract.ChainID, contract.UserID,
		contract.ABI, contract.TemplateType, contract.IsActive,
		contract.StartedAt, contract.StoppedAt, contract.LastCheck)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to upsert monitored contract", err.Error())
	}
	return nil
}

// DeactivateMonitoredContract flips is_active off and records stopped_at
func (s *SQLiteStorage) DeactivateMonitoredContract(ctx context.Context, address string, chainID uint64, stoppedAt time.Time) error {
	query := `UPDATE monitored_contracts SET is_active = FALSE, stopped_at = ? WHERE address = ? AND chain_id = ?`
	_, err := s.db.ExecContext(ctx, query, stoppedAt, utils.NormalizeAddress(address), chainID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to deactivate monitored contract", err.Error())
	}
	return nil
}

// GetMonitoredContract returns one monitored contract, or nil when absent
func (s *SQLiteStorage) GetMonitoredContract(ctx context.Context, address string, chainID uint64) (*models.MonitoredContract, error) {
	query := `
		SELECT address, chain_id, user_id, abi, template_type, is_active, started_at, stopped_at, last_check
		FROM monitored_contracts WHERE address = ? AND chain_id = ?`

	contract := &models.MonitoredContract{}
	err := s.db.QueryRowContext(ctx, query, utils.NormalizeAddress(address), chainID).Scan(
		&contract.Address, &contract.ChainID, &contract.UserID, &contract.ABI,
		&contract.TemplateType, &contract.IsActive, &contract.StartedAt,
		&contract.StoppedAt, &contract.LastCheck)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get monitored contract", err.Error())
	}
	return contract, nil
}

// ListMonitoredContracts returns the active contracts owned by a user; an
// empty userID returns every active contract
func (s *SQLiteStorage) ListMonitoredContracts(ctx context.Context, userID string) ([]*models.MonitoredContract, error) {
	query := `
		SELECT address, chain_id, user_id, abi, template_type, is_active, started_at, stopped_at, last_check
		FROM monitored_contracts WHERE is_active = TRUE
		ORDER BY started_at DESC`
	var args []interface{}
	if userID != "" {
		query = `
			SELECT address, chain_id, user_id, abi, template_type, is_active, started_at, stopped_at, last_check
			FROM monitored_contracts WHERE user_id = ? AND is_active = TRUE
			ORDER BY started_at DESC`
		args = append(args, userID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to list monitored contracts", err.Error())
	}
	defer rows.Close()

	var contracts []*models.MonitoredContract
	for rows.Next() {
		contract := &models.MonitoredContract{}
		if err := rows.Scan(&contract.Address, &contract.ChainID, &contract.UserID,
			&contract.ABI, &contract.TemplateType, &contract.IsActive,
			&contract.StartedAt, &contract.StoppedAt, &contract.LastCheck); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan monitored contract", err.Error())
		}
		contracts = append(contracts, contract)
	}
	return contracts, rows.Err()
}

// InsertEvent persists one event; duplicates on the natural key are ignored
func (s *SQLiteStorage) InsertEvent(ctx context.Context, event *models.ContractEvent) error {
	argsJSON, err := json.Marshal(event.Args)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal event args", err.Error())
	}

	query := `
		INSERT INTO contract_events
		(address, chain_id, event_name, event_type, from_address, to_address,
		 value, token_id, args, gas_used, gas_price, block_number, tx_hash,
		 log_index, timestamp, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address, chain_id, tx_hash, event_name, log_index) DO NOTHING`

	_, err = s.db.ExecContext(ctx, query,
		utils.NormalizeAddress(event.Address), event.ChainID, event.EventName,
		string(event.EventType), event.From, event.To, event.Value, event.TokenID,
		string(argsJSON), event.GasUsed, event.GasPrice, event.BlockNumber,
		event.TxHash, event.LogIndex, event.Timestamp, event.Success)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to insert event", err.Error())
	}
	return nil
}

// ListEvents returns events newest-first since the given time, capped
func (s *SQLiteStorage) ListEvents(ctx context.Context, address string, chainID uint64, since time.Time, limit int) ([]*models.ContractEvent, error) {
	if limit <= 0 || limit > s.config.eventCap() {
		limit = s.config.eventCap()
	}

	query := `
		SELECT address, chain_id, event_name, event_type, from_address, to_address,
		       value, token_id, args, gas_used, gas_price, block_number, tx_hash,
		       log_index, timestamp, success
		FROM contract_events
		WHERE address = ? AND chain_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, utils.NormalizeAddress(address), chainID, since, limit)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to list events", err.Error())
	}
	defer rows.Close()

	var events []*models.ContractEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (*models.ContractEvent, error) {
	event := &models.ContractEvent{}
	var eventType, argsJSON string
	var from, to, value, tokenID sql.NullString
	if err := rows.Scan(&event.Address, &event.ChainID, &event.EventName, &eventType,
		&from, &to, &value, &tokenID, &argsJSON, &event.GasUsed, &event.GasPrice,
		&event.BlockNumber, &event.TxHash, &event.LogIndex, &event.Timestamp,
		&event.Success); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan event", err.Error())
	}
	event.EventType = models.EventType(eventType)
	event.From = from.String
	event.To = to.String
	event.Value = value.String
	event.TokenID = tokenID.String
	if err := json.Unmarshal([]byte(argsJSON), &event.Args); err != nil {
		event.Args = map[string]interface{}{}
	}
	return event, nil
}

// UpsertState replaces the current state row for a contract
func (s *SQLiteStorage) UpsertState(ctx context.Context, state *models.ContractState) error {
	query := `
		INSERT INTO contract_states
		(address, chain_id, balance, owner, paused, total_supply, total_minted,
		 unique_owners, sample_size, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address, chain_id) DO UPDATE SET
			balance = excluded.balance,
			owner = excluded.owner,
			paused = excluded.paused,
			total_supply = excluded.total_supply,
			total_minted = excluded.total_minted,
			unique_owners = excluded.unique_owners,
			sample_size = excluded.sample_size,
			last_updated = excluded.last_updated`

	_, err := s.db.ExecContext(ctx, query,
		utils.NormalizeAddress(state.Address), state.ChainID, state.Balance,
		state.Owner, state.Paused, state.TotalSupply, state.TotalMinted,
		state.UniqueOwners, state.SampleSize, state.LastUpdated)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to upsert state", err.Error())
	}
	return nil
}

// GetState returns the latest state snapshot, or nil when none was sampled
func (s *SQLiteStorage) GetState(ctx context.Context, address string, chainID uint64) (*models.ContractState, error) {
	query := `
		SELECT address, chain_id, balance, owner, paused, total_supply,
		       total_minted, unique_owners, sample_size, last_updated
		FROM contract_states WHERE address = ? AND chain_id = ?`

	state := &models.ContractState{}
	err := s.db.QueryRowContext(ctx, query, utils.NormalizeAddress(address), chainID).Scan(
		&state.Address, &state.ChainID, &state.Balance, &state.Owner,
		&state.Paused, &state.TotalSupply, &state.TotalMinted,
		&state.UniqueOwners, &state.SampleSize, &state.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get state", err.Error())
	}
	return state, nil
}

// InsertAlert persists one alert firing
func (s *SQLiteStorage) InsertAlert(ctx context.Context, alert *models.ContractAlert) error {
	var triggerJSON interface{}
	if alert.Trigger != nil {
		b, err := json.Marshal(alert.Trigger)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal alert trigger", err.Error())
		}
		triggerJSON = string(b)
	}

	query := `
		INSERT INTO contract_alerts
		(id, address, chain_id, type, severity, title, message, timestamp,
		 acknowledged, user_id, trigger_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		alert.ID, utils.NormalizeAddress(alert.Address), alert.ChainID,
		alert.Type, string(alert.Severity), alert.Title, alert.Message,
		alert.Timestamp, alert.Acknowledged, alert.UserID, triggerJSON)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to insert alert", err.Error())
	}
	return nil
}

// AcknowledgeAlert flips acknowledged for an alert owned by userID. A
// missing or foreign-owned alert reports false without an error so callers
// cannot distinguish the two cases.
func (s *SQLiteStorage) AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error) {
	query := `UPDATE contract_alerts SET acknowledged = TRUE WHERE id = ? AND user_id = ?`
	result, err := s.db.ExecContext(ctx, query, alertID, userID)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to acknowledge alert", err.Error())
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read acknowledge result", err.Error())
	}
	if affected > 0 {
		return true, nil
	}
	// The update matches zero rows when the alert is already acknowledged;
	// acknowledge stays idempotent by re-checking ownership.
	var acked bool
	err = s.db.QueryRowContext(ctx,
		`SELECT acknowledged FROM contract_alerts WHERE id = ? AND user_id = ?`,
		alertID, userID).Scan(&acked)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read alert", err.Error())
	}
	return acked, nil
}

// ListAlerts returns a user's alerts newest-first, optionally scoped to one
// contract address
func (s *SQLiteStorage) ListAlerts(ctx context.Context, userID, address string, limit int) ([]*models.ContractAlert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, address, chain_id, type, severity, title, message, timestamp,
		       acknowledged, user_id, trigger_data
		FROM contract_alerts WHERE user_id = ?`
	args := []interface{}{userID}
	if address != "" {
		query += ` AND address = ?`
		args = append(args, utils.NormalizeAddress(address))
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to list alerts", err.Error())
	}
	defer rows.Close()

	var alerts []*models.ContractAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlert(rows *sql.Rows) (*models.ContractAlert, error) {
	alert := &models.ContractAlert{}
	var severity string
	var triggerJSON sql.NullString
	if err := rows.Scan(&alert.ID, &alert.Address, &alert.ChainID, &alert.Type,
		&severity, &alert.Title, &alert.Message, &alert.Timestamp,
		&alert.Acknowledged, &alert.UserID, &triggerJSON); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan alert", err.Error())
	}
	alert.Severity = models.AlertSeverity(severity)
	if triggerJSON.Valid && triggerJSON.String != "" {
		trigger := &models.AlertTrigger{}
		if err := json.Unmarshal([]byte(triggerJSON.String), trigger); err == nil {
			alert.Trigger = trigger
		}
	}
	return alert, nil
}
