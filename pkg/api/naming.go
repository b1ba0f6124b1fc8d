package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nacoslite/nacoslite/pkg/metrics"
	"github.com/nacoslite/nacoslite/pkg/registry"
	"github.com/nacoslite/nacoslite/pkg/types"
)

// defaultCacheMillis is the client cache window suggested in instance
// list responses, ms
const defaultCacheMillis = 10000

// beatMissingCode tells the SDK to re-register the instance
const beatMissingCode = 10200

// host is the wire projection of one instance
type host struct {
	InstanceID  string            `json:"instanceId"`
	IP          string            `json:"ip"`
	Port        int               `json:"port"`
	Weight      float64           `json:"weight"`
	Healthy     bool              `json:"healthy"`
	Enabled     bool              `json:"enabled"`
	Ephemeral   bool              `json:"ephemeral"`
	ClusterName string            `json:"clusterName"`
	ServiceName string            `json:"serviceName"`
	Metadata    map[string]string `json:"metadata"`
}

func toHost(ins *types.Instance) host {
	md := ins.Metadata
	if md == nil {
		md = map[string]string{}
	}
	return host{
		InstanceID:  ins.InstanceID,
		IP:          ins.IP,
		Port:        ins.Port,
		Weight:      ins.Weight,
		Healthy:     ins.Healthy,
		Enabled:     ins.Enabled,
		Ephemeral:   ins.Ephemeral,
		ClusterName: ins.ClusterName,
		ServiceName: ins.GroupName + "@@" + ins.ServiceName,
		Metadata:    md,
	}
}

type serviceDetail struct {
	NamespaceID      string            `json:"namespaceId"`
	GroupName        string            `json:"groupName"`
	Name             string            `json:"name"`
	ProtectThreshold float64           `json:"protectThreshold"`
	Metadata         map[string]string `json:"metadata"`
	Selector         map[string]string `json:"selector"`
	Clusters         []string          `json:"clusters"`
}

// --- services ---

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getService(w, r)
	case http.MethodPost:
		s.createService(w, r)
	case http.MethodPut:
		s.updateService(w, r)
	case http.MethodDelete:
		s.deleteService(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) getService(w http.ResponseWriter, r *http.Request) {
	group, name, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	svc, err := s.registry.GetService(r.Context(), namespaceID(r), group, name)
	if err != nil {
		writeError(w, err)
		return
	}
	md := svc.Metadata
	if md == nil {
		md = map[string]string{}
	}
	selector := map[string]string{"type": "none"}
	if svc.SelectorType != "" {
		selector["type"] = svc.SelectorType
	}
	if svc.Selector != "" {
		selector["expression"] = svc.Selector
	}
	writeJSON(w, http.StatusOK, serviceDetail{
		NamespaceID:      svc.NamespaceID,
		GroupName:        svc.GroupName,
		Name:             svc.Name,
		ProtectThreshold: svc.ProtectThreshold,
		Metadata:         md,
		Selector:         selector,
		Clusters:         []string{},
	})
}

func serviceFromForm(r *http.Request) (*types.Service, error) {
	group, name, err := serviceCoordinates(r)
	if err != nil {
		return nil, err
	}
	svc := &types.Service{
		NamespaceID:  namespaceID(r),
		GroupName:    group,
		Name:         name,
		SelectorType: r.FormValue("selector"),
	}
	if raw := r.FormValue("protectThreshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || t < 0 || t > 1 {
			return nil, errors.New("protectThreshold must be in [0.0, 1.0]")
		}
		svc.ProtectThreshold = t
	}
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &svc.Metadata); err != nil {
			return nil, errors.New("metadata must be a JSON object")
		}
	}
	return svc, nil
}

func (s *Server) createService(w http.ResponseWriter, r *http.Request) {
	svc, err := serviceFromForm(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.registry.CreateService(r.Context(), svc); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) updateService(w http.ResponseWriter, r *http.Request) {
	svc, err := serviceFromForm(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.registry.UpdateService(r.Context(), svc); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) deleteService(w http.ResponseWriter, r *http.Request) {
	group, name, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.registry.DeleteService(r.Context(), namespaceID(r), group, name); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleServiceList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	pageNo, pageSize := pageParams(r)
	services, total, err := s.registry.ListServices(r.Context(), namespaceID(r),
		r.FormValue("groupName"), r.FormValue("serviceNameParam"), pageNo, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	doms := make([]string, 0, len(services))
	for _, svc := range services {
		doms = append(doms, svc.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": total, "doms": doms})
}

func (s *Server) handleServiceNames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	pageNo, pageSize := pageParams(r)
	services, total, err := s.registry.ListServices(r.Context(), namespaceID(r),
		r.FormValue("groupName"), "", pageNo, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.GroupedName())
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": total, "META-INF/services": names})
}

// handleServiceSubscribers exists for console compatibility. Push
// subscriptions are not tracked, so the list is always empty.
func (s *Server) handleServiceSubscribers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": 0, "subscribers": []any{}})
}

// --- instances ---

func (s *Server) handleInstance(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodPut:
		s.registerInstance(w, r)
	case http.MethodDelete:
		s.deregisterInstance(w, r)
	case http.MethodGet:
		s.getInstance(w, r)
	case http.MethodPatch:
		s.patchInstance(w, r)
	default:
		methodNotAllowed(w)
	}
}

func instanceAddress(r *http.Request) (ip string, port int, cluster string, err error) {
	ip = r.FormValue("ip")
	if ip == "" {
		return "", 0, "", errors.New("missing required parameter ip")
	}
	port, err = strconv.Atoi(r.FormValue("port"))
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, "", errors.New("invalid port")
	}
	cluster = r.FormValue("clusterName")
	if cluster == "" {
		cluster = r.FormValue("cluster")
	}
	return ip, port, types.NormalizeCluster(cluster), nil
}

func (s *Server) registerInstance(w http.ResponseWriter, r *http.Request) {
	group, service, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ip, port, cluster, err := instanceAddress(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ins := &types.Instance{
		NamespaceID: namespaceID(r),
		GroupName:   group,
		ServiceName: service,
		IP:          ip,
		Port:        port,
		ClusterName: cluster,
		Weight:      1,
		Healthy:     true,
		Enabled:     true,
		Ephemeral:   true,
	}
	if raw := r.FormValue("weight"); raw != "" {
		if ins.Weight, err = strconv.ParseFloat(raw, 64); err != nil {
			badRequest(w, "invalid weight")
			return
		}
	}
	if raw := r.FormValue("healthy"); raw != "" {
		ins.Healthy = raw == "true"
	}
	if raw := r.FormValue("enabled"); raw != "" {
		ins.Enabled = raw == "true"
	}
	if raw := r.FormValue("ephemeral"); raw != "" {
		ins.Ephemeral = raw == "true"
	}
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ins.Metadata); err != nil {
			badRequest(w, "metadata must be a JSON object")
			return
		}
	}
	if err := s.registry.Register(r.Context(), ins); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) deregisterInstance(w http.ResponseWriter, r *http.Request) {
	group, service, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ip, port, cluster, err := instanceAddress(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.registry.Deregister(r.Context(), namespaceID(r), group, service, ip, port, cluster); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	group, service, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ip, port, cluster, err := instanceAddress(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ins, err := s.registry.GetInstance(r.Context(), namespaceID(r), group, service, ip, port, cluster)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHost(ins))
}

func (s *Server) patchInstance(w http.ResponseWriter, r *http.Request) {
	group, service, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ip, port, cluster, err := instanceAddress(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var patch registry.InstancePatch
	if raw := r.FormValue("weight"); raw != "" {
		weight, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(w, "invalid weight")
			return
		}
		patch.Weight = &weight
	}
	if raw := r.FormValue("enabled"); raw != "" {
		enabled := raw == "true"
		patch.Enabled = &enabled
	}
	if raw := r.FormValue("healthy"); raw != "" {
		healthy := raw == "true"
		patch.Healthy = &healthy
	}
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &patch.Metadata); err != nil {
			badRequest(w, "metadata must be a JSON object")
			return
		}
	}
	if _, err := s.registry.Patch(r.Context(), namespaceID(r), group, service, ip, port, cluster, patch); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleInstanceList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	group, service, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ns := namespaceID(r)
	clusters := splitNonEmpty(r.FormValue("clusters"), ",")
	healthyOnly := r.FormValue("healthyOnly") == "true"

	instances, err := s.registry.ListInstances(r.Context(), ns, group, service, clusters, healthyOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	hosts := make([]host, 0, len(instances))
	for _, ins := range instances {
		hosts = append(hosts, toHost(ins))
	}

	// The protection flag is advisory; a missing service row simply
	// leaves it false.
	protected := false
	if svc, err := s.registry.GetService(r.Context(), ns, group, service); err == nil {
		protected = registry.ReachProtectionThreshold(svc, instances)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":                     group + "@@" + service,
		"groupName":                group,
		"clusters":                 strings.Join(clusters, ","),
		"cacheMillis":              defaultCacheMillis,
		"hosts":                    hosts,
		"lastRefTime":              time.Now().UnixMilli(),
		"checksum":                 "",
		"allIPs":                   false,
		"reachProtectionThreshold": protected,
		"valid":                    true,
	})
}

func (s *Server) handleBeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	group, service, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ip := r.FormValue("ip")
	port, _ := strconv.Atoi(r.FormValue("port"))
	cluster := r.FormValue("clusterName")

	// The beat payload may carry the address instead of the query.
	if raw := r.FormValue("beat"); raw != "" {
		var beat struct {
			IP      string `json:"ip"`
			Port    int    `json:"port"`
			Cluster string `json:"cluster"`
		}
		if err := json.Unmarshal([]byte(raw), &beat); err != nil {
			badRequest(w, "invalid beat payload")
			return
		}
		if ip == "" {
			ip = beat.IP
		}
		if port == 0 {
			port = beat.Port
		}
		if cluster == "" {
			cluster = beat.Cluster
		}
	}
	if ip == "" || port <= 0 {
		badRequest(w, "missing instance address")
		return
	}

	// A miss is not an error: the 10200 code tells the client to
	// re-register.
	if _, err := s.registry.Heartbeat(r.Context(), namespaceID(r), group, service,
		ip, port, types.NormalizeCluster(cluster)); err != nil {
		writeError(w, err)
		return
	}
	metrics.HeartbeatsTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"clientBeatInterval": registry.ClientBeatInterval,
		"code":               beatMissingCode,
		"lightBeatEnabled":   false,
	})
}

func (s *Server) handleMetadataBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	group, service, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var targets []*types.Instance
	if raw := r.FormValue("instances"); raw != "" {
		var addrs []struct {
			IP          string `json:"ip"`
			Port        int    `json:"port"`
			ClusterName string `json:"clusterName"`
			Ephemeral   bool   `json:"ephemeral"`
		}
		if err := json.Unmarshal([]byte(raw), &addrs); err != nil {
			badRequest(w, "instances must be a JSON array")
			return
		}
		for _, a := range addrs {
			targets = append(targets, &types.Instance{IP: a.IP, Port: a.Port, ClusterName: a.ClusterName})
		}
	}

	ns := namespaceID(r)
	if r.Method == http.MethodPut {
		var metadata map[string]string
		if err := json.Unmarshal([]byte(r.FormValue("metadata")), &metadata); err != nil {
			badRequest(w, "metadata must be a JSON object")
			return
		}
		updated, err := s.registry.BatchUpdateMetadata(r.Context(), ns, group, service, targets, metadata)
		if err != nil {
			writeError(w, err)
			return
		}
		if updated == nil {
			updated = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
		return
	}

	keys := splitNonEmpty(r.FormValue("metadata"), ",")
	deleted, err := s.registry.BatchDeleteMetadata(r.Context(), ns, group, service, targets, keys)
	if err != nil {
		writeError(w, err)
		return
	}
	if deleted == nil {
		deleted = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handleInstanceStatuses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	group, service, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ips, err := s.registry.Statuses(r.Context(), namespaceID(r), group, service)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ips": ips})
}

func (s *Server) handleUpdateHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	group, service, err := serviceCoordinates(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ip, port, cluster, err := instanceAddress(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	healthy := r.FormValue("healthy") == "true"
	if err := s.registry.UpdateHealth(r.Context(), namespaceID(r), group, service, ip, port, cluster, healthy); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "ok")
}
