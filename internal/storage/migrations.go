package storage

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create monitored_contracts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS monitored_contracts (
					address TEXT NOT NULL,
					chain_id INTEGER NOT NULL,
					user_id TEXT NOT NULL,
					abi TEXT NOT NULL,
					template_type TEXT,
					is_active BOOLEAN DEFAULT TRUE,
					started_at DATETIME NOT NULL,
					stopped_at DATETIME,
					last_check DATETIME NOT NULL,
					PRIMARY KEY (address, chain_id)
				);

				CREATE INDEX IF NOT EXISTS idx_monitored_user ON monitored_contracts(user_id);
				CREATE INDEX IF NOT EXISTS idx_monitored_active ON monitored_contracts(is_active);
			`,
		},
		{
			Version:     "002",
			Description: "Create contract_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS contract_events (
					address TEXT NOT NULL,
					chain_id INTEGER NOT NULL,
					event_name TEXT NOT NULL,
					event_type TEXT NOT NULL,
					from_address TEXT,
					to_address TEXT,
					value TEXT,
					token_id TEXT,
					args TEXT NOT NULL, -- JSON
					gas_used INTEGER NOT NULL,
					gas_price TEXT NOT NULL,
					block_number INTEGER NOT NULL,
					tx_hash TEXT NOT NULL,
					log_index INTEGER NOT NULL,
					timestamp DATETIME NOT NULL,
					success BOOLEAN NOT NULL,
					PRIMARY KEY (address, chain_id, tx_hash, event_name, log_index)
				);

				CREATE INDEX IF NOT EXISTS idx_events_contract_time ON contract_events(address, chain_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_events_block ON contract_events(block_number);
			`,
		},
		{
			Version:     "003",
			Description: "Create contract_states table",
			SQL: `
				CREATE TABLE IF NOT EXISTS contract_states (
					address TEXT NOT NULL,
					chain_id INTEGER NOT NULL,
					balance TEXT NOT NULL,
					owner TEXT,
					paused BOOLEAN,
					total_supply TEXT,
					total_minted INTEGER,
					unique_owners INTEGER,
					sample_size INTEGER,
					last_updated DATETIME NOT NULL,
					PRIMARY KEY (address, chain_id)
				);
			`,
		},
		{
			Version:     "004",
			Description: "Create contract_alerts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS contract_alerts (
					id TEXT PRIMARY KEY,
					address TEXT NOT NULL,
					chain_id INTEGER NOT NULL,
					type TEXT NOT NULL,
					severity TEXT NOT NULL,
					title TEXT NOT NULL,
					message TEXT NOT NULL,
					timestamp DATETIME NOT NULL,
					acknowledged BOOLEAN DEFAULT FALSE,
					user_id TEXT NOT NULL,
					trigger_data TEXT -- JSON
				);

				CREATE INDEX IF NOT EXISTS idx_alerts_user ON contract_alerts(user_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_alerts_contract ON contract_alerts(address, chain_id);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create monitored_contracts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS monitored_contracts (
					address TEXT NOT NULL,
					chain_id BIGINT NOT NULL,
					user_id TEXT NOT NULL,
					abi TEXT NOT NULL,
					template_type TEXT,
					is_active BOOLEAN DEFAULT TRUE,
					started_at TIMESTAMPTZ NOT NULL,
					stopped_at TIMESTAMPTZ,
					last_check TIMESTAMPTZ NOT NULL,
					PRIMARY KEY (address, chain_id)
				);

				CREATE INDEX IF NOT EXISTS idx_monitored_user ON monitored_contracts(user_id);
				CREATE INDEX IF NOT EXISTS idx_monitored_active ON monitored_contracts(is_active);
			`,
		},
		{
			Version:     "002",
			Description: "Create contract_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS contract_events (
					address TEXT NOT NULL,
					chain_id BIGINT NOT NULL,
					event_name TEXT NOT NULL,
					event_type TEXT NOT NULL,
					from_address TEXT,
					to_address TEXT,
					value TEXT,
					token_id TEXT,
					args JSONB NOT NULL,
					gas_used BIGINT NOT NULL,
					gas_price TEXT NOT NULL,
					block_number BIGINT NOT NULL,
					tx_hash TEXT NOT NULL,
					log_index BIGINT NOT NULL,
					timestamp TIMESTAMPTZ NOT NULL,
					success BOOLEAN NOT NULL,
					PRIMARY KEY (address, chain_id, tx_hash, event_name, log_index)
				);

				CREATE INDEX IF NOT EXISTS idx_events_contract_time ON contract_events(address, chain_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_events_block ON contract_events(block_number);
			`,
		},
		{
			Version:     "003",
			Description: "Create contract_states table",
			SQL: `
				CREATE TABLE IF NOT EXISTS contract_states (
					address TEXT NOT NULL,
					chain_id BIGINT NOT NULL,
					balance TEXT NOT NULL,
					owner TEXT,
					paused BOOLEAN,
					total_supply TEXT,
					total_minted BIGINT,
					unique_owners BIGINT,
					sample_size BIGINT,
					last_updated TIMESTAMPTZ NOT NULL,
					PRIMARY KEY (address, chain_id)
				);
			`,
		},
		{
			Version:     "004",
			Description: "Create contract_alerts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS contract_alerts (
					id TEXT PRIMARY KEY,
					address TEXT NOT NULL,
					chain_id BIGINT NOT NULL,
					type TEXT NOT NULL,
					severity TEXT NOT NULL,
					title TEXT NOT NULL,
					message TEXT NOT NULL,
					timestamp TIMESTAMPTZ NOT NULL,
					acknowledged BOOLEAN DEFAULT FALSE,
					user_id TEXT NOT NULL,
					trigger_data JSONB
				);

				CREATE INDEX IF NOT EXISTS idx_alerts_user ON contract_alerts(user_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_alerts_contract ON contract_alerts(address, chain_id);
			`,
		},
	}
}
