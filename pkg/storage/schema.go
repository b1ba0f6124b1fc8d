package storage

// Schema is created on open; every statement is idempotent so reopening
// an existing database is safe. There is no separate migration runner.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tenant_info (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		kp            TEXT NOT NULL DEFAULT '1',
		tenant_id     TEXT NOT NULL,
		tenant_name   TEXT NOT NULL DEFAULT '',
		tenant_desc   TEXT NOT NULL DEFAULT '',
		create_source TEXT NOT NULL DEFAULT '',
		gmt_create    INTEGER NOT NULL,
		gmt_modified  INTEGER NOT NULL,
		UNIQUE (kp, tenant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS config_info (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		data_id            TEXT NOT NULL,
		group_id           TEXT NOT NULL,
		tenant_id          TEXT NOT NULL DEFAULT 'public',
		app_name           TEXT NOT NULL DEFAULT '',
		content            TEXT NOT NULL,
		md5                TEXT NOT NULL,
		type               TEXT NOT NULL DEFAULT 'text',
		c_desc             TEXT NOT NULL DEFAULT '',
		c_use              TEXT NOT NULL DEFAULT '',
		effect             TEXT NOT NULL DEFAULT '',
		c_schema           TEXT NOT NULL DEFAULT '',
		encrypted_data_key TEXT NOT NULL DEFAULT '',
		src_user           TEXT NOT NULL DEFAULT '',
		src_ip             TEXT NOT NULL DEFAULT '',
		gmt_create         INTEGER NOT NULL,
		gmt_modified       INTEGER NOT NULL,
		UNIQUE (data_id, group_id, tenant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS config_info_beta (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		data_id            TEXT NOT NULL,
		group_id           TEXT NOT NULL,
		tenant_id          TEXT NOT NULL DEFAULT 'public',
		app_name           TEXT NOT NULL DEFAULT '',
		content            TEXT NOT NULL,
		md5                TEXT NOT NULL,
		beta_ips           TEXT NOT NULL DEFAULT '',
		src_user           TEXT NOT NULL DEFAULT '',
		src_ip             TEXT NOT NULL DEFAULT '',
		gmt_create         INTEGER NOT NULL,
		gmt_modified       INTEGER NOT NULL,
		UNIQUE (data_id, group_id, tenant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS config_history_info (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		nid                INTEGER NOT NULL,
		data_id            TEXT NOT NULL,
		group_id           TEXT NOT NULL,
		tenant_id          TEXT NOT NULL DEFAULT 'public',
		app_name           TEXT NOT NULL DEFAULT '',
		content            TEXT NOT NULL,
		md5                TEXT NOT NULL,
		op_type            TEXT NOT NULL,
		encrypted_data_key TEXT NOT NULL DEFAULT '',
		src_user           TEXT NOT NULL DEFAULT '',
		src_ip             TEXT NOT NULL DEFAULT '',
		gmt_create         INTEGER NOT NULL,
		gmt_modified       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_config_history_triple
		ON config_history_info (data_id, group_id, tenant_id, gmt_modified DESC)`,
	`CREATE TABLE IF NOT EXISTS subscribers (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		data_id        TEXT NOT NULL,
		group_id       TEXT NOT NULL,
		tenant_id      TEXT NOT NULL DEFAULT 'public',
		client_ip      TEXT NOT NULL,
		client_port    INTEGER NOT NULL DEFAULT 0,
		user_agent     TEXT NOT NULL DEFAULT '',
		app_name       TEXT NOT NULL DEFAULT '',
		md5            TEXT NOT NULL DEFAULT '',
		last_poll_time INTEGER NOT NULL,
		created_at     INTEGER NOT NULL,
		UNIQUE (data_id, group_id, tenant_id, client_ip, client_port)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscribers_triple
		ON subscribers (data_id, group_id, tenant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_subscribers_client
		ON subscribers (client_ip, tenant_id)`,
	`CREATE TABLE IF NOT EXISTS service_info (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		namespace_id      TEXT NOT NULL,
		group_name        TEXT NOT NULL,
		service_name      TEXT NOT NULL,
		metadata          TEXT NOT NULL DEFAULT '{}',
		protect_threshold REAL NOT NULL DEFAULT 0,
		selector_type     TEXT NOT NULL DEFAULT 'none',
		selector          TEXT NOT NULL DEFAULT '',
		gmt_create        INTEGER NOT NULL,
		gmt_modified      INTEGER NOT NULL,
		UNIQUE (namespace_id, group_name, service_name)
	)`,
	`CREATE TABLE IF NOT EXISTS instance_info (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		namespace_id TEXT NOT NULL,
		group_name   TEXT NOT NULL,
		service_name TEXT NOT NULL,
		instance_id  TEXT NOT NULL,
		ip           TEXT NOT NULL,
		port         INTEGER NOT NULL,
		weight       REAL NOT NULL DEFAULT 1,
		healthy      INTEGER NOT NULL DEFAULT 1,
		enabled      INTEGER NOT NULL DEFAULT 1,
		ephemeral    INTEGER NOT NULL DEFAULT 1,
		cluster_name TEXT NOT NULL DEFAULT 'DEFAULT',
		metadata     TEXT NOT NULL DEFAULT '{}',
		gmt_create   INTEGER NOT NULL,
		gmt_modified INTEGER NOT NULL,
		UNIQUE (namespace_id, group_name, service_name, instance_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_instance_service
		ON instance_info (namespace_id, group_name, service_name)`,
	`CREATE TABLE IF NOT EXISTS service_history_info (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		namespace_id TEXT NOT NULL,
		group_name   TEXT NOT NULL,
		service_name TEXT NOT NULL,
		op_type      TEXT NOT NULL,
		gmt_create   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		token      TEXT PRIMARY KEY,
		username   TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_expiry ON tokens (expires_at)`,
	`CREATE TABLE IF NOT EXISTS users (
		username   TEXT PRIMARY KEY,
		password   TEXT NOT NULL,
		gmt_create INTEGER NOT NULL
	)`,
}
