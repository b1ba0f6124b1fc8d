package storage

import (
	"context"
	"errors"

	"github.com/nacoslite/nacoslite/pkg/types"
)

// ErrNotFound is returned when the addressed row does not exist
var ErrNotFound = errors.New("not found")

// ConfigSearch selects configs for search, catalog listing and export.
// Empty fields are not constrained. With Blur set, non-empty fields
// match as substrings; otherwise they match exactly.
type ConfigSearch struct {
	Tenant  string
	DataID  string
	Group   string
	AppName string
	Blur    bool
}

// Store defines the persistence interface for all server state
type Store interface {
	// Configs
	GetConfig(ctx context.Context, key types.ConfigKey) (*types.Config, error)
	GetConfigByID(ctx context.Context, id int64) (*types.Config, error)
	// PublishConfig upserts the live row and appends the matching
	// history row in one transaction. Reports whether the row was
	// created rather than updated.
	PublishConfig(ctx context.Context, c *types.Config) (bool, error)
	// DeleteConfig appends a D history row and removes the live row in
	// one transaction. Deleting a missing config is a no-op.
	DeleteConfig(ctx context.Context, key types.ConfigKey, srcUser, srcIP string) error
	SearchConfigs(ctx context.Context, q ConfigSearch, pageNo, pageSize int) ([]*types.Config, int64, error)
	CountConfigs(ctx context.Context, tenant string) (int64, error)

	// Beta overlay
	GetBetaConfig(ctx context.Context, key types.ConfigKey) (*types.BetaConfig, error)
	PublishBetaConfig(ctx context.Context, b *types.BetaConfig) error
	DeleteBetaConfig(ctx context.Context, key types.ConfigKey) error

	// Config history
	ListConfigHistory(ctx context.Context, key types.ConfigKey, pageNo, pageSize int) ([]*types.ConfigHistory, int64, error)
	GetConfigHistory(ctx context.Context, id int64) (*types.ConfigHistory, error)
	// PreviousConfigHistory returns the history row with the largest id
	// strictly below the given id for the same triple.
	PreviousConfigHistory(ctx context.Context, key types.ConfigKey, id int64) (*types.ConfigHistory, error)

	// Subscribers
	UpsertSubscriber(ctx context.Context, sub *types.Subscriber) error
	ListSubscribersByConfig(ctx context.Context, key types.ConfigKey) ([]*types.Subscriber, error)
	ListSubscribersByIP(ctx context.Context, clientIP, tenant string) ([]*types.Subscriber, error)
	PruneSubscribers(ctx context.Context, olderThan int64) (int64, error)

	// Namespaces
	ListNamespaces(ctx context.Context) ([]*types.Namespace, error)
	GetNamespace(ctx context.Context, id string) (*types.Namespace, error)
	CreateNamespace(ctx context.Context, ns *types.Namespace) error
	UpdateNamespace(ctx context.Context, ns *types.Namespace) error
	// DeleteNamespace removes the namespace row and every config, beta
	// config, subscriber, service and instance in it, in one transaction.
	DeleteNamespace(ctx context.Context, id string) error

	// Services
	CreateService(ctx context.Context, svc *types.Service) error
	GetService(ctx context.Context, namespaceID, group, name string) (*types.Service, error)
	UpdateService(ctx context.Context, svc *types.Service) error
	// DeleteService removes the service and its instances in one
	// transaction and appends a DELETE service-history row.
	DeleteService(ctx context.Context, namespaceID, group, name string) error
	ListServices(ctx context.Context, namespaceID, group, nameFilter string, pageNo, pageSize int) ([]*types.Service, int64, error)
	CountServices(ctx context.Context) (int64, error)

	// Instances
	UpsertInstance(ctx context.Context, ins *types.Instance) error
	GetInstance(ctx context.Context, namespaceID, group, service, instanceID string) (*types.Instance, error)
	DeleteInstance(ctx context.Context, namespaceID, group, service, instanceID string) error
	ListInstances(ctx context.Context, namespaceID, group, service string) ([]*types.Instance, error)
	CountInstances(ctx context.Context) (int64, error)
	// MarkStaleInstancesUnhealthy downs ephemeral instances whose last
	// heartbeat is older than the cutoff. Returns the number touched.
	MarkStaleInstancesUnhealthy(ctx context.Context, olderThan int64) (int64, error)

	// Tokens and users
	CreateToken(ctx context.Context, t *types.Token) error
	GetToken(ctx context.Context, token string) (*types.Token, error)
	DeleteToken(ctx context.Context, token string) error
	// ReplaceToken deletes the old token and inserts the fresh one in
	// one transaction.
	ReplaceToken(ctx context.Context, old string, fresh *types.Token) error
	PruneExpiredTokens(ctx context.Context, now int64) (int64, error)
	GetUser(ctx context.Context, username string) (*types.User, error)
	CreateUser(ctx context.Context, u *types.User) error

	// Utility
	Close() error
}
