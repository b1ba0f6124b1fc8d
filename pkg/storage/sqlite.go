package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nacoslite/nacoslite/pkg/types"
	_ "modernc.org/sqlite"
)

const configColumns = `id, data_id, group_id, tenant_id, app_name, content, md5, type,
	c_desc, c_use, effect, c_schema, encrypted_data_key, src_user, src_ip,
	gmt_create, gmt_modified`

const historyColumns = `id, nid, data_id, group_id, tenant_id, app_name, content, md5,
	op_type, encrypted_data_key, src_user, src_ip, gmt_create, gmt_modified`

// SQLiteStore implements Store over a single SQLite database file.
// All multi-table mutations run in one transaction; reads go straight
// through the shared connection pool.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database under dataDir and
// ensures the schema exists.
func Open(dataDir string) (*SQLiteStore, error) {
	dbPath := filepath.Join(dataDir, "nacoslite.db")

	// WAL keeps readers unblocked while a writer commits; busy_timeout
	// covers writer contention across pooled connections.
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.seedPublicNamespace(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) seedPublicNamespace() error {
	now := time.Now().Unix()
	_, err := s.db.Exec(
		`INSERT INTO tenant_info (kp, tenant_id, tenant_name, tenant_desc, create_source, gmt_create, gmt_modified)
		 VALUES ('1', ?, ?, 'Public Namespace', 'system', ?, ?)
		 ON CONFLICT (kp, tenant_id) DO NOTHING`,
		types.DefaultNamespace, types.DefaultNamespace, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to seed public namespace: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func clampPage(pageNo, pageSize int) (limit, offset int) {
	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return pageSize, (pageNo - 1) * pageSize
}

// --- Configs ---

func scanConfig(row interface{ Scan(...any) error }) (*types.Config, error) {
	var c types.Config
	err := row.Scan(&c.ID, &c.DataID, &c.Group, &c.Tenant, &c.AppName, &c.Content,
		&c.MD5, &c.Type, &c.Desc, &c.Use, &c.Effect, &c.Schema,
		&c.EncryptedDataKey, &c.SrcUser, &c.SrcIP, &c.Created, &c.Modified)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) GetConfig(ctx context.Context, key types.ConfigKey) (*types.Config, error) {
	key = key.Normalized()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM config_info
		 WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		key.DataID, key.Group, key.Tenant)
	c, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetConfigByID(ctx context.Context, id int64) (*types.Config, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM config_info WHERE id = ?`, id)
	c, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) PublishConfig(ctx context.Context, c *types.Config) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM config_info
		 WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		c.DataID, c.Group, c.Tenant)
	existing, err := scanConfig(row)
	created := err == sql.ErrNoRows
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to query config: %w", err)
	}

	var existingID int64
	op := types.HistoryOpUpdate
	if created {
		op = types.HistoryOpInsert
		res, err := tx.ExecContext(ctx,
			`INSERT INTO config_info (data_id, group_id, tenant_id, app_name, content, md5, type,
				c_desc, c_use, effect, c_schema, encrypted_data_key, src_user, src_ip, gmt_create, gmt_modified)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.DataID, c.Group, c.Tenant, c.AppName, c.Content, c.MD5, c.Type,
			c.Desc, c.Use, c.Effect, c.Schema, c.EncryptedDataKey, c.SrcUser, c.SrcIP,
			c.Created, c.Modified)
		if err != nil {
			return false, fmt.Errorf("failed to insert config: %w", err)
		}
		existingID, err = res.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("failed to read insert id: %w", err)
		}
	} else {
		existingID = existing.ID
		c.Created = existing.Created
		_, err = tx.ExecContext(ctx,
			`UPDATE config_info SET app_name = ?, content = ?, md5 = ?, type = ?,
				c_desc = ?, c_use = ?, effect = ?, c_schema = ?, encrypted_data_key = ?,
				src_user = ?, src_ip = ?, gmt_modified = ?
			 WHERE id = ?`,
			c.AppName, c.Content, c.MD5, c.Type,
			c.Desc, c.Use, c.Effect, c.Schema, c.EncryptedDataKey,
			c.SrcUser, c.SrcIP, c.Modified, existingID)
		if err != nil {
			return false, fmt.Errorf("failed to update config: %w", err)
		}
	}
	c.ID = existingID

	// An I row records the inserted content; a U row backs up the
	// content being replaced, which is what rollback republishes.
	histContent, histMD5 := c.Content, c.MD5
	histApp, histKey := c.AppName, c.EncryptedDataKey
	if !created {
		histContent, histMD5 = existing.Content, existing.MD5
		histApp, histKey = existing.AppName, existing.EncryptedDataKey
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO config_history_info (nid, data_id, group_id, tenant_id, app_name, content,
			md5, op_type, encrypted_data_key, src_user, src_ip, gmt_create, gmt_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		existingID, c.DataID, c.Group, c.Tenant, histApp, histContent,
		histMD5, string(op), histKey, c.SrcUser, c.SrcIP, c.Modified, c.Modified)
	if err != nil {
		return false, fmt.Errorf("failed to append history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit publish: %w", err)
	}
	return created, nil
}

func (s *SQLiteStore) DeleteConfig(ctx context.Context, key types.ConfigKey, srcUser, srcIP string) error {
	key = key.Normalized()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM config_info
		 WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		key.DataID, key.Group, key.Tenant)
	c, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil // idempotent
	}
	if err != nil {
		return fmt.Errorf("failed to query config: %w", err)
	}

	now := time.Now().Unix()
	// History row carries the content as it was at deletion time and
	// must commit with the removal of the live row.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO config_history_info (nid, data_id, group_id, tenant_id, app_name, content,
			md5, op_type, encrypted_data_key, src_user, src_ip, gmt_create, gmt_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DataID, c.Group, c.Tenant, c.AppName, c.Content,
		c.MD5, string(types.HistoryOpDelete), c.EncryptedDataKey, srcUser, srcIP, now, now)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM config_info WHERE id = ?`, c.ID); err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func buildConfigSearch(q ConfigSearch) (where string, args []any) {
	where = ` WHERE tenant_id = ?`
	args = append(args, types.NormalizeTenant(q.Tenant))
	match := func(col, val string) {
		if val == "" {
			return
		}
		if q.Blur {
			where += ` AND ` + col + ` LIKE ?`
			args = append(args, "%"+val+"%")
		} else {
			where += ` AND ` + col + ` = ?`
			args = append(args, val)
		}
	}
	match("data_id", q.DataID)
	match("group_id", q.Group)
	match("app_name", q.AppName)
	return where, args
}

func (s *SQLiteStore) SearchConfigs(ctx context.Context, q ConfigSearch, pageNo, pageSize int) ([]*types.Config, int64, error) {
	where, args := buildConfigSearch(q)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM config_info`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count configs: %w", err)
	}

	limit, offset := clampPage(pageNo, pageSize)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+configColumns+` FROM config_info`+where+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search configs: %w", err)
	}
	defer rows.Close()

	var out []*types.Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan config: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *SQLiteStore) CountConfigs(ctx context.Context, tenant string) (int64, error) {
	var n int64
	var err error
	if tenant == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM config_info`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM config_info WHERE tenant_id = ?`, tenant).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count configs: %w", err)
	}
	return n, nil
}

// --- Beta overlay ---

func (s *SQLiteStore) GetBetaConfig(ctx context.Context, key types.ConfigKey) (*types.BetaConfig, error) {
	key = key.Normalized()
	var b types.BetaConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT id, data_id, group_id, tenant_id, app_name, content, md5, beta_ips,
			src_user, src_ip, gmt_create, gmt_modified
		 FROM config_info_beta WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		key.DataID, key.Group, key.Tenant).Scan(
		&b.ID, &b.DataID, &b.Group, &b.Tenant, &b.AppName, &b.Content, &b.MD5,
		&b.BetaIPs, &b.SrcUser, &b.SrcIP, &b.Created, &b.Modified)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get beta config: %w", err)
	}
	return &b, nil
}

func (s *SQLiteStore) PublishBetaConfig(ctx context.Context, b *types.BetaConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config_info_beta (data_id, group_id, tenant_id, app_name, content, md5,
			beta_ips, src_user, src_ip, gmt_create, gmt_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (data_id, group_id, tenant_id) DO UPDATE SET
			app_name = excluded.app_name, content = excluded.content, md5 = excluded.md5,
			beta_ips = excluded.beta_ips, src_user = excluded.src_user,
			src_ip = excluded.src_ip, gmt_modified = excluded.gmt_modified`,
		b.DataID, b.Group, b.Tenant, b.AppName, b.Content, b.MD5,
		b.BetaIPs, b.SrcUser, b.SrcIP, b.Created, b.Modified)
	if err != nil {
		return fmt.Errorf("failed to publish beta config: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteBetaConfig(ctx context.Context, key types.ConfigKey) error {
	key = key.Normalized()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM config_info_beta WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		key.DataID, key.Group, key.Tenant)
	if err != nil {
		return fmt.Errorf("failed to delete beta config: %w", err)
	}
	return nil
}

// --- Config history ---

func scanHistory(row interface{ Scan(...any) error }) (*types.ConfigHistory, error) {
	var h types.ConfigHistory
	var op string
	err := row.Scan(&h.ID, &h.ConfigID, &h.DataID, &h.Group, &h.Tenant, &h.AppName,
		&h.Content, &h.MD5, &op, &h.EncryptedDataKey, &h.SrcUser, &h.SrcIP,
		&h.Created, &h.Modified)
	if err != nil {
		return nil, err
	}
	h.OpType = types.HistoryOp(op)
	return &h, nil
}

func (s *SQLiteStore) ListConfigHistory(ctx context.Context, key types.ConfigKey, pageNo, pageSize int) ([]*types.ConfigHistory, int64, error) {
	key = key.Normalized()
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM config_history_info
		 WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		key.DataID, key.Group, key.Tenant).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	limit, offset := clampPage(pageNo, pageSize)
	// Newest first; id breaks timestamp ties.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM config_history_info
		 WHERE data_id = ? AND group_id = ? AND tenant_id = ?
		 ORDER BY gmt_modified DESC, id DESC LIMIT ? OFFSET ?`,
		key.DataID, key.Group, key.Tenant, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []*types.ConfigHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

func (s *SQLiteStore) GetConfigHistory(ctx context.Context, id int64) (*types.ConfigHistory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM config_history_info WHERE id = ?`, id)
	h, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return h, nil
}

func (s *SQLiteStore) PreviousConfigHistory(ctx context.Context, key types.ConfigKey, id int64) (*types.ConfigHistory, error) {
	key = key.Normalized()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM config_history_info
		 WHERE data_id = ? AND group_id = ? AND tenant_id = ? AND id < ?
		 ORDER BY id DESC LIMIT 1`,
		key.DataID, key.Group, key.Tenant, id)
	h, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get previous history: %w", err)
	}
	return h, nil
}

// --- Subscribers ---

func (s *SQLiteStore) UpsertSubscriber(ctx context.Context, sub *types.Subscriber) error {
	// created_at survives re-polls; everything soft is refreshed.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (data_id, group_id, tenant_id, client_ip, client_port,
			user_agent, app_name, md5, last_poll_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (data_id, group_id, tenant_id, client_ip, client_port) DO UPDATE SET
			user_agent = excluded.user_agent, app_name = excluded.app_name,
			md5 = excluded.md5, last_poll_time = excluded.last_poll_time`,
		sub.DataID, sub.Group, sub.Tenant, sub.ClientIP, sub.ClientPort,
		sub.UserAgent, sub.AppName, sub.MD5, sub.LastPollTime, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscriber: %w", err)
	}
	return nil
}

func scanSubscribers(rows *sql.Rows) ([]*types.Subscriber, error) {
	defer rows.Close()
	var out []*types.Subscriber
	for rows.Next() {
		var sub types.Subscriber
		if err := rows.Scan(&sub.DataID, &sub.Group, &sub.Tenant, &sub.ClientIP,
			&sub.ClientPort, &sub.UserAgent, &sub.AppName, &sub.MD5,
			&sub.LastPollTime, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListSubscribersByConfig(ctx context.Context, key types.ConfigKey) ([]*types.Subscriber, error) {
	key = key.Normalized()
	rows, err := s.db.QueryContext(ctx,
		`SELECT data_id, group_id, tenant_id, client_ip, client_port, user_agent,
			app_name, md5, last_poll_time, created_at
		 FROM subscribers WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		key.DataID, key.Group, key.Tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return scanSubscribers(rows)
}

func (s *SQLiteStore) ListSubscribersByIP(ctx context.Context, clientIP, tenant string) ([]*types.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data_id, group_id, tenant_id, client_ip, client_port, user_agent,
			app_name, md5, last_poll_time, created_at
		 FROM subscribers WHERE client_ip = ? AND tenant_id = ?`,
		clientIP, types.NormalizeTenant(tenant))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return scanSubscribers(rows)
}

func (s *SQLiteStore) PruneSubscribers(ctx context.Context, olderThan int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscribers WHERE last_poll_time < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune subscribers: %w", err)
	}
	return res.RowsAffected()
}

// --- Namespaces ---

func (s *SQLiteStore) ListNamespaces(ctx context.Context) ([]*types.Namespace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.tenant_id, t.tenant_name, t.tenant_desc, t.create_source,
			t.gmt_create, t.gmt_modified,
			(SELECT COUNT(*) FROM config_info c WHERE c.tenant_id = t.tenant_id)
		 FROM tenant_info t WHERE t.kp = '1' ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	defer rows.Close()

	var out []*types.Namespace
	for rows.Next() {
		var ns types.Namespace
		if err := rows.Scan(&ns.ID, &ns.Name, &ns.Desc, &ns.CreateSource,
			&ns.Created, &ns.Modified, &ns.ConfigCount); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		out = append(out, &ns)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetNamespace(ctx context.Context, id string) (*types.Namespace, error) {
	var ns types.Namespace
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, tenant_name, tenant_desc, create_source, gmt_create, gmt_modified
		 FROM tenant_info WHERE kp = '1' AND tenant_id = ?`, id).Scan(
		&ns.ID, &ns.Name, &ns.Desc, &ns.CreateSource, &ns.Created, &ns.Modified)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get namespace: %w", err)
	}
	return &ns, nil
}

func (s *SQLiteStore) CreateNamespace(ctx context.Context, ns *types.Namespace) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_info (kp, tenant_id, tenant_name, tenant_desc, create_source, gmt_create, gmt_modified)
		 VALUES ('1', ?, ?, ?, ?, ?, ?)`,
		ns.ID, ns.Name, ns.Desc, ns.CreateSource, ns.Created, ns.Modified)
	if err != nil {
		return fmt.Errorf("failed to create namespace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateNamespace(ctx context.Context, ns *types.Namespace) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tenant_info SET tenant_name = ?, tenant_desc = ?, gmt_modified = ?
		 WHERE kp = '1' AND tenant_id = ?`,
		ns.Name, ns.Desc, ns.Modified, ns.ID)
	if err != nil {
		return fmt.Errorf("failed to update namespace: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteNamespace(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	// Cascade: configs, beta overlays, subscribers, instances and
	// services vanish with the namespace. History tables are an
	// append-only audit log and stay.
	for _, q := range []string{
		`DELETE FROM config_info WHERE tenant_id = ?`,
		`DELETE FROM config_info_beta WHERE tenant_id = ?`,
		`DELETE FROM subscribers WHERE tenant_id = ?`,
		`DELETE FROM instance_info WHERE namespace_id = ?`,
		`DELETE FROM service_info WHERE namespace_id = ?`,
		`DELETE FROM tenant_info WHERE kp = '1' AND tenant_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to cascade namespace delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit namespace delete: %w", err)
	}
	return nil
}

// --- Services ---

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(s string) (map[string]string, error) {
	m := map[string]string{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) CreateService(ctx context.Context, svc *types.Service) error {
	meta, err := marshalMetadata(svc.Metadata)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO service_info (namespace_id, group_name, service_name, metadata,
			protect_threshold, selector_type, selector, gmt_create, gmt_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.NamespaceID, svc.GroupName, svc.Name, meta,
		svc.ProtectThreshold, svc.SelectorType, svc.Selector, svc.Created, svc.Modified)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	if err := appendServiceHistory(ctx, tx, svc, types.ServiceHistoryCreate); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit service create: %w", err)
	}
	return nil
}

func appendServiceHistory(ctx context.Context, tx *sql.Tx, svc *types.Service, op types.ServiceHistoryOp) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO service_history_info (namespace_id, group_name, service_name, op_type, gmt_create)
		 VALUES (?, ?, ?, ?, ?)`,
		svc.NamespaceID, svc.GroupName, svc.Name, string(op), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to append service history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetService(ctx context.Context, namespaceID, group, name string) (*types.Service, error) {
	var svc types.Service
	var meta string
	err := s.db.QueryRowContext(ctx,
		`SELECT namespace_id, group_name, service_name, metadata, protect_threshold,
			selector_type, selector, gmt_create, gmt_modified
		 FROM service_info WHERE namespace_id = ? AND group_name = ? AND service_name = ?`,
		types.NormalizeTenant(namespaceID), types.NormalizeGroup(group), name).Scan(
		&svc.NamespaceID, &svc.GroupName, &svc.Name, &meta, &svc.ProtectThreshold,
		&svc.SelectorType, &svc.Selector, &svc.Created, &svc.Modified)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	if svc.Metadata, err = unmarshalMetadata(meta); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *SQLiteStore) UpdateService(ctx context.Context, svc *types.Service) error {
	meta, err := marshalMetadata(svc.Metadata)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE service_info SET metadata = ?, protect_threshold = ?, selector_type = ?,
			selector = ?, gmt_modified = ?
		 WHERE namespace_id = ? AND group_name = ? AND service_name = ?`,
		meta, svc.ProtectThreshold, svc.SelectorType, svc.Selector, svc.Modified,
		svc.NamespaceID, svc.GroupName, svc.Name)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	if err := appendServiceHistory(ctx, tx, svc, types.ServiceHistoryUpdate); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit service update: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteService(ctx context.Context, namespaceID, group, name string) error {
	namespaceID = types.NormalizeTenant(namespaceID)
	group = types.NormalizeGroup(group)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM service_info WHERE namespace_id = ? AND group_name = ? AND service_name = ?`,
		namespaceID, group, name)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM instance_info WHERE namespace_id = ? AND group_name = ? AND service_name = ?`,
		namespaceID, group, name)
	if err != nil {
		return fmt.Errorf("failed to cascade instance delete: %w", err)
	}
	if err := appendServiceHistory(ctx, tx, &types.Service{
		NamespaceID: namespaceID, GroupName: group, Name: name,
	}, types.ServiceHistoryDelete); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit service delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListServices(ctx context.Context, namespaceID, group, nameFilter string, pageNo, pageSize int) ([]*types.Service, int64, error) {
	where := ` WHERE namespace_id = ?`
	args := []any{types.NormalizeTenant(namespaceID)}
	if group != "" {
		where += ` AND group_name = ?`
		args = append(args, group)
	}
	if nameFilter != "" {
		where += ` AND service_name LIKE ?`
		args = append(args, "%"+nameFilter+"%")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_info`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count services: %w", err)
	}

	limit, offset := clampPage(pageNo, pageSize)
	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace_id, group_name, service_name, metadata, protect_threshold,
			selector_type, selector, gmt_create, gmt_modified
		 FROM service_info`+where+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var out []*types.Service
	for rows.Next() {
		var svc types.Service
		var meta string
		if err := rows.Scan(&svc.NamespaceID, &svc.GroupName, &svc.Name, &meta,
			&svc.ProtectThreshold, &svc.SelectorType, &svc.Selector,
			&svc.Created, &svc.Modified); err != nil {
			return nil, 0, fmt.Errorf("failed to scan service: %w", err)
		}
		if svc.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, 0, err
		}
		out = append(out, &svc)
	}
	return out, total, rows.Err()
}

func (s *SQLiteStore) CountServices(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_info`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count services: %w", err)
	}
	return n, nil
}

// --- Instances ---

const instanceColumns = `namespace_id, group_name, service_name, instance_id, ip, port,
	weight, healthy, enabled, ephemeral, cluster_name, metadata, gmt_create, gmt_modified`

func scanInstance(row interface{ Scan(...any) error }) (*types.Instance, error) {
	var ins types.Instance
	var meta string
	err := row.Scan(&ins.NamespaceID, &ins.GroupName, &ins.ServiceName, &ins.InstanceID,
		&ins.IP, &ins.Port, &ins.Weight, &ins.Healthy, &ins.Enabled, &ins.Ephemeral,
		&ins.ClusterName, &meta, &ins.Created, &ins.Modified)
	if err != nil {
		return nil, err
	}
	if ins.Metadata, err = unmarshalMetadata(meta); err != nil {
		return nil, err
	}
	return &ins, nil
}

func (s *SQLiteStore) UpsertInstance(ctx context.Context, ins *types.Instance) error {
	meta, err := marshalMetadata(ins.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instance_info (namespace_id, group_name, service_name, instance_id,
			ip, port, weight, healthy, enabled, ephemeral, cluster_name, metadata,
			gmt_create, gmt_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (namespace_id, group_name, service_name, instance_id) DO UPDATE SET
			ip = excluded.ip, port = excluded.port, weight = excluded.weight,
			healthy = excluded.healthy, enabled = excluded.enabled,
			ephemeral = excluded.ephemeral, cluster_name = excluded.cluster_name,
			metadata = excluded.metadata, gmt_modified = excluded.gmt_modified`,
		ins.NamespaceID, ins.GroupName, ins.ServiceName, ins.InstanceID,
		ins.IP, ins.Port, ins.Weight, ins.Healthy, ins.Enabled, ins.Ephemeral,
		ins.ClusterName, meta, ins.Created, ins.Modified)
	if err != nil {
		return fmt.Errorf("failed to upsert instance: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetInstance(ctx context.Context, namespaceID, group, service, instanceID string) (*types.Instance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM instance_info
		 WHERE namespace_id = ? AND group_name = ? AND service_name = ? AND instance_id = ?`,
		types.NormalizeTenant(namespaceID), types.NormalizeGroup(group), service, instanceID)
	ins, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return ins, nil
}

func (s *SQLiteStore) DeleteInstance(ctx context.Context, namespaceID, group, service, instanceID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM instance_info
		 WHERE namespace_id = ? AND group_name = ? AND service_name = ? AND instance_id = ?`,
		types.NormalizeTenant(namespaceID), types.NormalizeGroup(group), service, instanceID)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListInstances(ctx context.Context, namespaceID, group, service string) ([]*types.Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instance_info
		 WHERE namespace_id = ? AND group_name = ? AND service_name = ?
		 ORDER BY id`,
		types.NormalizeTenant(namespaceID), types.NormalizeGroup(group), service)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var out []*types.Instance
	for rows.Next() {
		ins, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountInstances(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instance_info`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count instances: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) MarkStaleInstancesUnhealthy(ctx context.Context, olderThan int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE instance_info SET healthy = 0
		 WHERE ephemeral = 1 AND healthy = 1 AND gmt_modified < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale instances: %w", err)
	}
	return res.RowsAffected()
}

// --- Tokens and users ---

func (s *SQLiteStore) CreateToken(ctx context.Context, t *types.Token) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (token, username, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		t.Token, t.Username, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetToken(ctx context.Context, token string) (*types.Token, error) {
	var t types.Token
	err := s.db.QueryRowContext(ctx,
		`SELECT token, username, created_at, expires_at FROM tokens WHERE token = ?`,
		token).Scan(&t.Token, &t.Username, &t.CreatedAt, &t.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &t, nil
}

func (s *SQLiteStore) DeleteToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceToken(ctx context.Context, old string, fresh *types.Token) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, old); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tokens (token, username, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		fresh.Token, fresh.Username, fresh.CreatedAt, fresh.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit token refresh: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PruneExpiredTokens(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tokens: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*types.User, error) {
	var u types.User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password, gmt_create FROM users WHERE username = ?`,
		username).Scan(&u.Username, &u.PasswordHash, &u.Created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *types.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password, gmt_create) VALUES (?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`,
		u.Username, u.PasswordHash, u.Created)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
