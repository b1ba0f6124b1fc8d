package types

import "fmt"

// Reserved identifiers. Nacos clients send empty strings and expect the
// server to substitute these before anything touches storage.
const (
	DefaultNamespace = "public"
	DefaultGroup     = "DEFAULT_GROUP"
	DefaultCluster   = "DEFAULT"
)

// NormalizeTenant maps the empty tenant to the reserved "public" namespace.
func NormalizeTenant(tenant string) string {
	if tenant == "" {
		return DefaultNamespace
	}
	return tenant
}

// NormalizeGroup maps the empty group to DEFAULT_GROUP.
func NormalizeGroup(group string) string {
	if group == "" {
		return DefaultGroup
	}
	return group
}

// NormalizeCluster maps the empty cluster to DEFAULT.
func NormalizeCluster(cluster string) string {
	if cluster == "" {
		return DefaultCluster
	}
	return cluster
}

// ConfigKey is the three-part key of a configuration entry.
type ConfigKey struct {
	DataID string
	Group  string
	Tenant string
}

// Normalized returns the key with empty group/tenant replaced by the
// reserved defaults. Dedup keys and storage lookups always use the
// normalized form.
func (k ConfigKey) Normalized() ConfigKey {
	return ConfigKey{
		DataID: k.DataID,
		Group:  NormalizeGroup(k.Group),
		Tenant: NormalizeTenant(k.Tenant),
	}
}

func (k ConfigKey) String() string {
	return fmt.Sprintf("%s+%s+%s", k.DataID, k.Group, k.Tenant)
}

// Config is a live configuration entry
type Config struct {
	ID               int64
	DataID           string
	Group            string
	Tenant           string
	Content          string
	MD5              string
	Type             string
	AppName          string
	Desc             string
	Use              string
	Effect           string
	Schema           string
	EncryptedDataKey string
	SrcUser          string
	SrcIP            string
	Created          int64 // unix seconds
	Modified         int64 // unix seconds
}

// Key returns the config's three-part key
func (c *Config) Key() ConfigKey {
	return ConfigKey{DataID: c.DataID, Group: c.Group, Tenant: c.Tenant}
}

// HistoryOp is the operation recorded in a config history row
type HistoryOp string

const (
	HistoryOpInsert HistoryOp = "I"
	HistoryOpUpdate HistoryOp = "U"
	HistoryOpDelete HistoryOp = "D"
)

// ConfigHistory is one row of the append-only config change log.
// ID is the history row's own id (the "nid" named by rollback and
// history/previous); ConfigID is the id the live config row had when
// the event was recorded.
type ConfigHistory struct {
	ID               int64
	ConfigID         int64
	DataID           string
	Group            string
	Tenant           string
	Content          string
	MD5              string
	AppName          string
	OpType           HistoryOp
	EncryptedDataKey string
	SrcUser          string
	SrcIP            string
	Created          int64
	Modified         int64
}

// BetaConfig is the gray-release overlay for a config triple
type BetaConfig struct {
	ID       int64
	DataID   string
	Group    string
	Tenant   string
	Content  string
	MD5      string
	AppName  string
	BetaIPs  string // comma-separated cohort
	SrcUser  string
	SrcIP    string
	Created  int64
	Modified int64
}

// Subscriber records which client is listening on which config triple
type Subscriber struct {
	DataID       string
	Group        string
	Tenant       string
	ClientIP     string
	ClientPort   int
	UserAgent    string
	AppName      string
	MD5          string
	LastPollTime int64
	CreatedAt    int64
}

// Namespace is a tenant partition
type Namespace struct {
	ID           string // tenant_id; "public" is reserved
	Name         string
	Desc         string
	CreateSource string
	Created      int64
	Modified     int64
	ConfigCount  int64 // filled on list for the console projection
}

// Service is a named group of instances in the registry
type Service struct {
	NamespaceID      string
	GroupName        string
	Name             string
	Metadata         map[string]string
	ProtectThreshold float64
	SelectorType     string
	Selector         string
	Created          int64
	Modified         int64
}

// GroupedName returns the Nacos wire form "{group}@@{service}"
func (s *Service) GroupedName() string {
	return s.GroupName + "@@" + s.Name
}

// Instance is one registered endpoint of a service
type Instance struct {
	NamespaceID string
	GroupName   string
	ServiceName string
	InstanceID  string
	IP          string
	Port        int
	Weight      float64
	Healthy     bool
	Enabled     bool
	Ephemeral   bool
	ClusterName string
	Metadata    map[string]string
	Created     int64
	Modified    int64
}

// BuildInstanceID returns the canonical instance id
// "{ip}#{port}#{cluster}#{group}".
func BuildInstanceID(ip string, port int, cluster, group string) string {
	return fmt.Sprintf("%s#%d#%s#%s", ip, port, cluster, group)
}

// ServiceHistoryOp is the operation recorded in a service history row
type ServiceHistoryOp string

const (
	ServiceHistoryCreate ServiceHistoryOp = "CREATE"
	ServiceHistoryUpdate ServiceHistoryOp = "UPDATE"
	ServiceHistoryDelete ServiceHistoryOp = "DELETE"
)

// ServiceHistory is one row of the append-only service change log
type ServiceHistory struct {
	ID          int64
	NamespaceID string
	GroupName   string
	ServiceName string
	OpType      ServiceHistoryOp
	Created     int64
}

// Token is an issued console access token
type Token struct {
	Token     string
	Username  string
	CreatedAt int64
	ExpiresAt int64
}

// User is a console login account
type User struct {
	Username     string
	PasswordHash string // bcrypt
	Created      int64
}
