package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nacoslite/nacoslite/pkg/auth"
	"github.com/nacoslite/nacoslite/pkg/configstore"
	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/metrics"
	"github.com/nacoslite/nacoslite/pkg/notify"
	"github.com/nacoslite/nacoslite/pkg/registry"
	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/tenant"
	"github.com/nacoslite/nacoslite/pkg/types"
)

// DefaultContextPath is the path prefix Nacos SDKs assume
const DefaultContextPath = "/nacos"

// Config wires the server's collaborators together
type Config struct {
	Store       storage.Store
	Configs     *configstore.Store
	Registry    *registry.Manager
	Tenants     *tenant.Manager
	Auth        *auth.Manager
	Poller      *notify.Poller
	ContextPath string
	AuthEnabled bool
}

// Server is the Nacos-protocol HTTP server
type Server struct {
	store       storage.Store
	configs     *configstore.Store
	registry    *registry.Manager
	tenants     *tenant.Manager
	auth        *auth.Manager
	poller      *notify.Poller
	contextPath string
	authEnabled bool
	startTime   time.Time

	httpServer *http.Server
}

// NewServer creates the server and builds its route table
func NewServer(cfg Config) *Server {
	s := &Server{
		store:       cfg.Store,
		configs:     cfg.Configs,
		registry:    cfg.Registry,
		tenants:     cfg.Tenants,
		auth:        cfg.Auth,
		poller:      cfg.Poller,
		contextPath: cfg.ContextPath,
		authEnabled: cfg.AuthEnabled,
		startTime:   time.Now(),
	}
	if s.contextPath == "" {
		s.contextPath = DefaultContextPath
	}
	return s
}

// Handler builds the full HTTP handler: the Nacos surface under the
// context path, Prometheus metrics outside it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Config endpoints. One URL multiplexes several operations on
	// query discriminators; the per-path handlers resolve those first.
	mux.HandleFunc("/v1/cs/configs", instrument("/v1/cs/configs", s.handleConfigs))
	mux.HandleFunc("/v1/cs/configs/listener", instrument("/v1/cs/configs/listener", s.handleListener))
	mux.HandleFunc("/v1/cs/configs/catalog", instrument("/v1/cs/configs/catalog", s.handleCatalog))
	mux.HandleFunc("/v1/cs/history", instrument("/v1/cs/history", s.handleHistory))
	mux.HandleFunc("/v1/cs/history/previous", instrument("/v1/cs/history/previous", s.handleHistoryPrevious))
	mux.HandleFunc("/v1/cs/health", instrument("/v1/cs/health", s.handleHealth))

	// Console (v3) config endpoints
	mux.HandleFunc("/v3/console/cs/config/listener",
		instrument("/v3/console/cs/config/listener", s.requireAuth(s.handleListenerStatus)))
	mux.HandleFunc("/v3/console/cs/config/listener/ip",
		instrument("/v3/console/cs/config/listener/ip", s.requireAuth(s.handleListenerStatusByIP)))
	mux.HandleFunc("/v3/console/cs/config/rollback",
		instrument("/v3/console/cs/config/rollback", s.requireAuth(s.handleRollback)))

	// Naming endpoints
	mux.HandleFunc("/v1/ns/service", instrument("/v1/ns/service", s.handleService))
	mux.HandleFunc("/v1/ns/service/list", instrument("/v1/ns/service/list", s.handleServiceList))
	mux.HandleFunc("/v1/ns/service/names", instrument("/v1/ns/service/names", s.handleServiceNames))
	mux.HandleFunc("/v1/ns/service/subscribers", instrument("/v1/ns/service/subscribers", s.handleServiceSubscribers))
	mux.HandleFunc("/v1/ns/instance", instrument("/v1/ns/instance", s.handleInstance))
	mux.HandleFunc("/v1/ns/instance/list", instrument("/v1/ns/instance/list", s.handleInstanceList))
	mux.HandleFunc("/v1/ns/instance/beat", instrument("/v1/ns/instance/beat", s.handleBeat))
	mux.HandleFunc("/v1/ns/instance/metadata/batch", instrument("/v1/ns/instance/metadata/batch", s.handleMetadataBatch))
	mux.HandleFunc("/v1/ns/instance/statuses", instrument("/v1/ns/instance/statuses", s.handleInstanceStatuses))
	mux.HandleFunc("/v1/ns/health/instance", instrument("/v1/ns/health/instance", s.handleUpdateHealth))
	mux.HandleFunc("/v1/ns/health", instrument("/v1/ns/health", s.handleHealth))

	// Operator stubs for SDK probes
	mux.HandleFunc("/v1/ns/operator/switches", instrument("/v1/ns/operator/switches", s.handleSwitches))
	mux.HandleFunc("/v1/ns/operator/servers", instrument("/v1/ns/operator/servers", s.handleServers))
	mux.HandleFunc("/v1/ns/operator/metrics", instrument("/v1/ns/operator/metrics", s.handleOperatorMetrics))
	mux.HandleFunc("/v1/ns/raft/leader", instrument("/v1/ns/raft/leader", s.handleRaftLeader))

	// Namespace console
	mux.HandleFunc("/v1/console/namespaces",
		instrument("/v1/console/namespaces", s.requireAuth(s.handleNamespaces)))

	// Auth
	mux.HandleFunc("/v1/auth/users/login", instrument("/v1/auth/users/login", s.handleLogin))

	top := http.NewServeMux()
	top.Handle(s.contextPath+"/", http.StripPrefix(s.contextPath, mux))
	top.Handle("/metrics", metrics.Handler())
	return top
}

// Start starts serving on addr and blocks until shutdown
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		// No WriteTimeout: long-poll responses are held open for up to
		// 30 s and must not be cut off by the server.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger := log.WithComponent("api")
	logger.Info().Str("addr", addr).Str("contextPath", s.contextPath).Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully drains the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// --- shared request helpers ---

// configKey reads the dataId/group/tenant triple from query or form.
// The namespace console APIs call the tenant "namespaceId" and the
// group "groupName"; both spellings are accepted everywhere.
func configKey(r *http.Request) (types.ConfigKey, error) {
	dataID := r.FormValue("dataId")
	if dataID == "" {
		return types.ConfigKey{}, fmt.Errorf("missing required parameter dataId")
	}
	group := r.FormValue("group")
	if group == "" {
		group = r.FormValue("groupName")
	}
	tenant := r.FormValue("tenant")
	if tenant == "" {
		tenant = r.FormValue("namespaceId")
	}
	return types.ConfigKey{DataID: dataID, Group: group, Tenant: tenant}.Normalized(), nil
}

// namespaceID reads the namespace with its aliases
func namespaceID(r *http.Request) string {
	ns := r.FormValue("namespaceId")
	if ns == "" {
		ns = r.FormValue("tenant")
	}
	return types.NormalizeTenant(ns)
}

// serviceCoordinates resolves the service name and group. The SDK
// often folds the group into the name as "{group}@@{service}".
func serviceCoordinates(r *http.Request) (group, service string, err error) {
	service = r.FormValue("serviceName")
	if service == "" {
		return "", "", fmt.Errorf("missing required parameter serviceName")
	}
	group = r.FormValue("groupName")
	if parts := strings.SplitN(service, "@@", 2); len(parts) == 2 {
		group = parts[0]
		service = parts[1]
	}
	return types.NormalizeGroup(group), service, nil
}

func pageParams(r *http.Request) (pageNo, pageSize int) {
	pageNo, _ = strconv.Atoi(r.FormValue("pageNo"))
	pageSize, _ = strconv.Atoi(r.FormValue("pageSize"))
	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return pageNo, pageSize
}
