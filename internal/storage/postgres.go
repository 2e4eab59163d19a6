// File: internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/contract-observer/internal/models"
	"github.com/smartdevs17/contract-observer/pkg/utils"
)

// PostgreSQLStorage implements Storage using PostgreSQL
type PostgreSQLStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetPostgresMigrations(),
	}
}

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxConnections / 2)
	db.SetConnMaxLifetime(p.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	p.db = db
	p.logger.Info("PostgreSQL database connected")
	return nil
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgreSQLStorage) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return p.db.Ping()
}

// Migrate runs database migrations
func (p *PostgreSQLStorage) Migrate() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	for _, migration := range p.migrations {
		p.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applying migration")

		if _, err := p.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version), err.Error())
		}
	}
	return nil
}

// UpsertMonitoredContract inserts or replaces a monitored contract row
func (p *PostgreSQLStorage) UpsertMonitoredContract(ctx context.Context, contract *models.MonitoredContract) error {
	query := `
		INSERT INTO monitored_contracts
		(address, chain_id, user_id, abi, template_type, is_active, started_at, stopped_at, last_check)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (address, chain_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			abi = EXCLUDED.abi,
			template_type = EXCLUDED.template_type,
			is_active = EXCLUDED.is_active,
			started_at = EXCLUDED.started_at,
			stopped_at = EXCLUDED.stopped_at,
			last_check = EXCLUDED.last_check`

	_, err := p.db.ExecContext(ctx, query,
		utils.NormalizeAddress(contract.Address), contract.ChainID, contract.UserID,
		contract.ABI, contract.TemplateType, contract.IsActive,
		contract.StartedAt, contract.StoppedAt, contract.LastCheck)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to upsert monitored contract", err.Error())
	}
	return nil
}

// DeactivateMonitoredContract flips is_active off and records stopped_at
func (p *PostgreSQLStorage) DeactivateMonitoredContract(ctx context.Context, address string, chainID uint64, stoppedAt time.Time) error {
	query := `UPDATE monitored_contracts SET is_active = FALSE, stopped_at = $1 WHERE address = $2 AND chain_id = $3`
	_, err := p.db.ExecContext(ctx, query, stoppedAt, utils.NormalizeAddress(address), chainID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to deactivate monitored contract", err.Error())
	}
	return nil
}

// GetMonitoredContract returns one monitored contract, or nil when absent
func (p *PostgreSQLStorage) GetMonitoredContract(ctx context.Context, address string, chainID uint64) (*models.MonitoredContract, error) {
	query := `
		SELECT address, chain_id, user_id, abi, template_type, is_active, started_at, stopped_at, last_check
		FROM monitored_contracts WHERE address = $1 AND chain_id = $2`

	contract := &models.MonitoredContract{}
	err := p.db.QueryRowContext(ctx, query, utils.NormalizeAddress(address), chainID).Scan(
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

// ListMonitoredContracts returns the active contracts owned by a user
func (p *PostgreSQLStorage) ListMonitoredContracts(ctx context.Context, userID string) ([]*models.MonitoredContract, error) {
	query := `
		SELECT address, chain_id, user_id, abi, template_type, is_active, started_at, stopped_at, last_check
		FROM monitored_contracts WHERE is_active = TRUE
		ORDER BY started_at DESC`
	var args []interface{}
	if userID != "" {
		query = `
			SELECT address, chain_id, user_id, abi, template_type, is_active, started_at, stopped_at, last_check
			FROM monitored_contracts WHERE user_id = $1 AND is_active = TRUE
			ORDER BY started_at DESC`
		args = append(args, userID)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
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
func (p *PostgreSQLStorage) InsertEvent(ctx context.Context, event *models.ContractEvent) error {
	argsJSON, err := json.Marshal(event.Args)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal event args", err.Error())
	}

	query := `
		INSERT INTO contract_events
		(address, chain_id, event_name, event_type, from_address, to_address,
		 value, token_id, args, gas_used, gas_price, block_number, tx_hash,
		 log_index, timestamp, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (address, chain_id, tx_hash, event_name, log_index) DO NOTHING`

	_, err = p.db.ExecContext(ctx, query,
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
func (p *PostgreSQLStorage) ListEvents(ctx context.Context, address string, chainID uint64, since time.Time, limit int) ([]*models.ContractEvent, error) {
	if limit <= 0 || limit > p.config.eventCap() {
		limit = p.config.eventCap()
	}

	query := `
		SELECT address, chain_id, event_name, event_type, from_address, to_address,
		       value, token_id, args, gas_used, gas_price, block_number, tx_hash,
		       log_index, timestamp, success
		FROM contract_events
		WHERE address = $1 AND chain_id = $2 AND timestamp >= $3
		ORDER BY timestamp DESC
		LIMIT $4`

	rows, err := p.db.QueryContext(ctx, query, utils.NormalizeAddress(address), chainID, since, limit)
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

// UpsertState replaces the current state row for a contract
func (p *PostgreSQLStorage) UpsertState(ctx context.Context, state *models.ContractState) error {
	query := `
		INSERT INTO contract_states
		(address, chain_id, balance, owner, paused, total_supply, total_minted,
		 unique_owners, sample_size, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (address, chain_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			owner = EXCLUDED.owner,
			paused = EXCLUDED.paused,
			total_supply = EXCLUDED.total_supply,
			total_minted = EXCLUDED.total_minted,
			unique_owners = EXCLUDED.unique_owners,
			sample_size = EXCLUDED.sample_size,
			last_updated = EXCLUDED.last_updated`

	_, err := p.db.ExecContext(ctx, query,
		utils.NormalizeAddress(state.Address), state.ChainID, state.Balance,
		state.Owner, state.Paused, state.TotalSupply, state.TotalMinted,
		state.UniqueOwners, state.SampleSize, state.LastUpdated)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to upsert state", err.Error())
	}
	return nil
}

// GetState returns the latest state snapshot, or nil when none was sampled
func (p *PostgreSQLStorage) GetState(ctx context.Context, address string, chainID uint64) (*models.ContractState, error) {
	query := `
		SELECT address, chain_id, balance, owner, paused, total_supply,
		       total_minted, unique_owners, sample_size, last_updated
		FROM contract_states WHERE address = $1 AND chain_id = $2`

	state := &models.ContractState{}
	err := p.db.QueryRowContext(ctx, query, utils.NormalizeAddress(address), chainID).Scan(
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
func (p *PostgreSQLStorage) InsertAlert(ctx context.Context, alert *models.ContractAlert) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := p.db.ExecContext(ctx, query,
		alert.ID, utils.NormalizeAddress(alert.Address), alert.ChainID,
		alert.Type, string(alert.Severity), alert.Title, alert.Message,
		alert.Timestamp, alert.Acknowledged, alert.UserID, triggerJSON)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to insert alert", err.Error())
	}
	return nil
}

// AcknowledgeAlert flips acknowledged for an alert owned by userID
func (p *PostgreSQLStorage) AcknowledgeAlert(ctx context.Context, alertID, userID string) (bool, error) {
	query := `UPDATE contract_alerts SET acknowledged = TRUE WHERE id = $1 AND user_id = $2`
	result, err := p.db.ExecContext(ctx, query, alertID, userID)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to acknowledge alert", err.Error())
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read acknowledge result", err.Error())
	}
	return affected > 0, nil
}

// ListAlerts returns a user's alerts newest-first, optionally scoped to one
// contract address
func (p *PostgreSQLStorage) ListAlerts(ctx context.Context, userID, address string, limit int) ([]*models.ContractAlert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, address, chain_id, type, severity, title, message, timestamp,
		       acknowledged, user_id, trigger_data
		FROM contract_alerts WHERE user_id = $1`
	args := []interface{}{userID}
	if address != "" {
		query += ` AND address = $2 ORDER BY timestamp DESC LIMIT $3`
		args = append(args, utils.NormalizeAddress(address), limit)
	} else {
		query += ` ORDER BY timestamp DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
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
