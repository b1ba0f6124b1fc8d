package configstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/notify"
	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
)

// ContentMD5 returns the lowercase hex MD5 fingerprint of the content.
// This is a change-detection fingerprint for the listener protocol, not
// a security primitive.
func ContentMD5(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// PublishRequest carries everything a publish can set
type PublishRequest struct {
	DataID           string
	Group            string
	Tenant           string
	Content          string
	Type             string
	AppName          string
	Desc             string
	Use              string
	Effect           string
	Schema           string
	EncryptedDataKey string
	BetaIPs          string // non-empty routes the publish to the beta overlay
	SrcUser          string
	SrcIP            string
}

// Store is the configuration service. All mutations go through the
// persistence layer in one transaction and then wake matching
// long-poll listeners via the broker.
type Store struct {
	store  storage.Store
	broker *notify.Broker
}

// NewStore creates the config store
func NewStore(st storage.Store, broker *notify.Broker) *Store {
	return &Store{store: st, broker: broker}
}

// Get returns the live config for the triple
func (s *Store) Get(ctx context.Context, key types.ConfigKey) (*types.Config, error) {
	return s.store.GetConfig(ctx, key)
}

// GetByID returns the live config row by its id
func (s *Store) GetByID(ctx context.Context, id int64) (*types.Config, error) {
	return s.store.GetConfigByID(ctx, id)
}

// Publish upserts the config (or its beta overlay when BetaIPs is set),
// recomputing the MD5 from the content. Reports whether a new row was
// created.
func (s *Store) Publish(ctx context.Context, req PublishRequest) (bool, error) {
	key := types.ConfigKey{DataID: req.DataID, Group: req.Group, Tenant: req.Tenant}.Normalized()
	now := time.Now().Unix()
	sum := ContentMD5(req.Content)

	if req.BetaIPs != "" {
		b := &types.BetaConfig{
			DataID: key.DataID, Group: key.Group, Tenant: key.Tenant,
			Content: req.Content, MD5: sum, AppName: req.AppName,
			BetaIPs: req.BetaIPs, SrcUser: req.SrcUser, SrcIP: req.SrcIP,
			Created: now, Modified: now,
		}
		if err := s.store.PublishBetaConfig(ctx, b); err != nil {
			return false, err
		}
		return true, nil
	}

	cfgType := req.Type
	if cfgType == "" {
		cfgType = "text"
	}
	c := &types.Config{
		DataID: key.DataID, Group: key.Group, Tenant: key.Tenant,
		Content: req.Content, MD5: sum, Type: cfgType, AppName: req.AppName,
		Desc: req.Desc, Use: req.Use, Effect: req.Effect, Schema: req.Schema,
		EncryptedDataKey: req.EncryptedDataKey,
		SrcUser:          req.SrcUser, SrcIP: req.SrcIP,
		Created: now, Modified: now,
	}
	created, err := s.store.PublishConfig(ctx, c)
	if err != nil {
		return false, err
	}
	s.broker.Notify(key)
	logger := log.WithComponent("configstore")
	logger.Debug().
		Str("dataId", key.DataID).Str("group", key.Group).Str("tenant", key.Tenant).
		Bool("created", created).Msg("config published")
	return created, nil
}

// Delete removes the live config, appending the D history row first.
// Deleting a missing config succeeds.
func (s *Store) Delete(ctx context.Context, key types.ConfigKey, srcUser, srcIP string) error {
	key = key.Normalized()
	if err := s.store.DeleteConfig(ctx, key, srcUser, srcIP); err != nil {
		return err
	}
	s.broker.Notify(key)
	return nil
}

// Search lists configs matching the filter, paginated
func (s *Store) Search(ctx context.Context, q storage.ConfigSearch, pageNo, pageSize int) ([]*types.Config, int64, error) {
	return s.store.SearchConfigs(ctx, q, pageNo, pageSize)
}

// History lists the change log for a triple, newest first
func (s *Store) History(ctx context.Context, key types.ConfigKey, pageNo, pageSize int) ([]*types.ConfigHistory, int64, error) {
	return s.store.ListConfigHistory(ctx, key, pageNo, pageSize)
}

// HistoryPrevious returns the history row immediately before the given one
func (s *Store) HistoryPrevious(ctx context.Context, key types.ConfigKey, nid int64) (*types.ConfigHistory, error) {
	return s.store.PreviousConfigHistory(ctx, key, nid)
}

// Rollback restores the state recorded in the named history row. For an
// I row that means deleting the live config; for U and D it republishes
// the historical content. Either path writes its own history row.
func (s *Store) Rollback(ctx context.Context, nid int64, srcUser, srcIP string) error {
	h, err := s.store.GetConfigHistory(ctx, nid)
	if err != nil {
		return err
	}
	key := types.ConfigKey{DataID: h.DataID, Group: h.Group, Tenant: h.Tenant}

	if h.OpType == types.HistoryOpInsert {
		return s.Delete(ctx, key, srcUser, srcIP)
	}
	_, err = s.Publish(ctx, PublishRequest{
		DataID: h.DataID, Group: h.Group, Tenant: h.Tenant,
		Content: h.Content, AppName: h.AppName,
		EncryptedDataKey: h.EncryptedDataKey,
		SrcUser:          srcUser, SrcIP: srcIP,
	})
	if err != nil {
		return fmt.Errorf("rollback to history %d: %w", nid, err)
	}
	return nil
}

// GetBeta returns the beta overlay for the triple
func (s *Store) GetBeta(ctx context.Context, key types.ConfigKey) (*types.BetaConfig, error) {
	return s.store.GetBetaConfig(ctx, key)
}

// DeleteBeta removes the beta overlay, leaving the canonical row alone
func (s *Store) DeleteBeta(ctx context.Context, key types.ConfigKey) error {
	return s.store.DeleteBetaConfig(ctx, key)
}
