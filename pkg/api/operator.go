package api

import (
	"encoding/json"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/nacoslite/nacoslite/pkg/types"
)

// handleLogin issues a console token. Credentials arrive as form
// fields or JSON, depending on the SDK generation.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSONBody(r, &body); err == nil {
			username = body.Username
			password = body.Password
		}
	}
	var token *types.Token
	var err error
	if username == "" {
		// No credentials: an SDK holding a still-valid token may
		// exchange it for a fresh one instead of re-authenticating.
		presented := bearerToken(r)
		if presented == "" {
			badRequest(w, "missing required parameter username")
			return
		}
		token, err = s.auth.Refresh(r.Context(), presented)
	} else {
		token, err = s.auth.Login(r.Context(), username, password)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": token.Token,
		"tokenTtl":    int64(token.ExpiresAt - token.CreatedAt),
		"globalAdmin": true,
		"username":    token.Username,
	})
}

// handleHealth answers both /v1/cs/health and /v1/ns/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeText(w, http.StatusOK, "UP")
}

// handleSwitches returns the fixed standalone switch set. SDKs parse
// the whole object, so every field they know must be present.
func (s *Server) handleSwitches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":                       "00-00---000-NACOS_SWITCH_DOMAIN-000---00-00",
		"masters":                    nil,
		"adWeightMap":                map[string]any{},
		"defaultPushCacheMillis":     10000,
		"clientBeatInterval":         5000,
		"defaultCacheMillis":         3000,
		"distroThreshold":            0.7,
		"healthCheckEnabled":         true,
		"autoChangeHealthCheckEnabled": true,
		"distroEnabled":              false,
		"enableStandalone":           true,
		"pushEnabled":                true,
		"checkTimes":                 3,
		"httpHealthParams":           map[string]any{"max": 5000, "min": 500, "factor": 0.85},
		"tcpHealthParams":            map[string]any{"max": 5000, "min": 1000, "factor": 0.75},
		"mysqlHealthParams":          map[string]any{"max": 3000, "min": 2000, "factor": 0.65},
		"incrementalList":            []any{},
		"serverStatusSynchronizationPeriodMillis": 2000,
		"serviceStatusSynchronizationPeriodMillis": 5000,
		"disableAddIP":               false,
		"sendBeatOnly":               false,
		"lightBeatEnabled":           false,
		"doubleWriteEnabled":         false,
		"limitedUrlMap":              map[string]any{},
		"distroServerExpiredMillis":  10000,
		"pushGoVersion":              "0.1.0",
		"pushJavaVersion":            "0.1.0",
		"pushPythonVersion":          "0.4.3",
		"pushCVersion":               "1.0.12",
		"pushCSharpVersion":          "0.9.0",
		"enableAuthentication":       false,
		"overriddenServerStatus":     "UP",
		"defaultInstanceEphemeral":   true,
		"healthCheckWhiteList":       []any{},
		"checksum":                   nil,
	})
}

// handleServers lists the cluster membership, which in standalone
// mode is just this process.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ip := serverIP(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"servers": []map[string]any{{
			"ip":          ip,
			"servePort":   8848,
			"site":        "unknown",
			"weight":      1,
			"adWeight":    0,
			"alive":       true,
			"lastRefTime": time.Now().UnixMilli(),
			"key":         ip,
		}},
	})
}

// handleRaftLeader reports this node as the permanent leader
func (s *Server) handleRaftLeader(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ip := serverIP(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"leader": map[string]any{
			"ip":             ip,
			"heartbeatDueMs": 2500,
			"leaderDueMs":    12500,
			"state":          "LEADER",
			"term":           1,
			"voteFor":        ip,
		},
	})
}

// handleOperatorMetrics summarizes the registry for console dashboards
func (s *Server) handleOperatorMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	serviceCount, err := s.store.CountServices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	instanceCount, err := s.store.CountInstances(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	writeJSON(w, http.StatusOK, map[string]any{
		"serviceCount":             serviceCount,
		"instanceCount":            instanceCount,
		"subscribeCount":           0,
		"raftNotifyTaskCount":      0,
		"responsibleServiceCount":  serviceCount,
		"responsibleInstanceCount": instanceCount,
		"status":                   "UP",
		"cpu":                      0.0,
		"load":                     0.0,
		"mem":                      float64(mem.Alloc) / float64(mem.Sys+1),
	})
}

// serverIP picks the address this server is reachable on
func serverIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.Host); err == nil && host != "" {
		return host
	}
	if r.Host != "" {
		return r.Host
	}
	return "127.0.0.1"
}

func decodeJSONBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
