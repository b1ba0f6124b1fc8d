/*
Package storage provides SQLite-backed persistence for all nacoslite state.

The storage package implements the Store interface over a single embedded
SQLite database (modernc.org/sqlite, pure Go, no cgo). Configs, config
history, beta overlays, namespaces, services, instances, listener
subscribers, console users and access tokens all live in one file, so a
data directory backup is a complete state backup.

# Architecture

	┌───────────────────── SQLITE STORAGE ─────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │            SQLiteStore                     │            │
	│  │  - File: <dataDir>/nacoslite.db            │            │
	│  │  - Journal: WAL                            │            │
	│  │  - busy_timeout: 5s, foreign_keys: on      │            │
	│  └──────────────────┬─────────────────────────┘            │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐            │
	│  │              Table Structure               │            │
	│  │  ┌──────────────────────────────────────┐  │            │
	│  │  │ tenant_info          (namespaces)    │  │            │
	│  │  │ config_info          (live configs)  │  │            │
	│  │  │ config_info_beta     (beta overlays) │  │            │
	│  │  │ config_history_info  (I/U/D trail)   │  │            │
	│  │  │ subscribers          (listener rows) │  │            │
	│  │  │ service_info         (services)      │  │            │
	│  │  │ instance_info        (instances)     │  │            │
	│  │  │ service_history_info (service trail) │  │            │
	│  │  │ users                (console users) │  │            │
	│  │  │ tokens               (access tokens) │  │            │
	│  │  └──────────────────────────────────────┘  │            │
	│  └────────────────────────────────────────────┘            │
	│                                                            │
	└────────────────────────────────────────────────────────────┘

# Core Components

Store Interface:
  - Defines every persistence operation the server needs
  - context.Context on each method
  - Returned errors wrap ErrNotFound for missing rows

SQLiteStore:
  - The only Store implementation
  - Single long-lived *sql.DB pool shared by all callers
  - Parameterized queries throughout, never string-built SQL

Schema:
  - Authoritative DDL in schema.go, applied idempotently on Open
  - The public namespace row is seeded on first start

# Transactions

Every mutation that touches more than one table runs in one *sql.Tx:

 1. Config publish: upsert config_info + insert config_history_info
 2. Config delete: delete config_info + insert the D history row
 3. Namespace delete: cascade configs, history, beta rows, services,
    instances in the namespace, then the tenant_info row
 4. Service delete: cascade instance_info, then service_info
 5. Token refresh: delete the old row + insert the fresh one

History rows back up state: a U row stores the content being replaced,
an I row the inserted content, a D row the content at deletion. That is
what makes rollback a republish of the row's stored content.

# Usage

Opening the store:

	store, err := storage.Open("./data")
	if err != nil {
		return err
	}
	defer store.Close()

Publishing a config:

	created, err := store.PublishConfig(ctx, &types.Config{
		DataID:  "app.yaml",
		Group:   "DEFAULT_GROUP",
		Tenant:  "public",
		Content: "server:\n  port: 8080\n",
		MD5:     sum,
	})

Reading it back:

	cfg, err := store.GetConfig(ctx, types.ConfigKey{
		DataID: "app.yaml", Group: "DEFAULT_GROUP", Tenant: "public",
	})
	if errors.Is(err, storage.ErrNotFound) {
		// config does not exist
	}

# Performance Characteristics

  - WAL journaling lets reads proceed while a writer commits
  - All list endpoints page in SQL (LIMIT/OFFSET), never in memory
  - Search uses indexed equality for accurate mode and LIKE for blur
  - A 5s busy timeout absorbs writer contention instead of erroring

# Integration Points

  - pkg/configstore: config CRUD, history, beta, import/export reads
  - pkg/registry: service and instance rows, heartbeat timestamps
  - pkg/notify: subscriber upsert and pruning
  - pkg/tenant: namespace CRUD with cascades
  - pkg/auth: users and tokens
  - cmd/nacoslite: inventory counts for the Prometheus gauges

# See Also

  - pkg/types: the row types this package persists
  - pkg/configstore: the service layer over config tables
*/
package storage
