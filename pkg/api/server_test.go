package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nacoslite/nacoslite/pkg/auth"
	"github.com/nacoslite/nacoslite/pkg/configstore"
	"github.com/nacoslite/nacoslite/pkg/notify"
	"github.com/nacoslite/nacoslite/pkg/registry"
	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/tenant"
)

func newTestServer(t *testing.T, authEnabled bool) *httptest.Server {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	broker := notify.NewBroker()
	authMgr := auth.NewManager(store)
	require.NoError(t, authMgr.EnsureDefaultUser(context.Background()))

	srv := NewServer(Config{
		Store:       store,
		Configs:     configstore.NewStore(store, broker),
		Registry:    registry.NewManager(store),
		Tenants:     tenant.NewManager(store),
		Auth:        authMgr,
		Poller:      notify.NewPoller(store, broker),
		AuthEnabled: authEnabled,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func postForm(t *testing.T, ts *httptest.Server, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.PostForm(ts.URL+path, form)
	require.NoError(t, err)
	return resp
}

func do(t *testing.T, method, rawURL string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, rawURL, body)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// TestConfigPublishGetDelete walks a config through its lifecycle over
// the HTTP surface
func TestConfigPublishGetDelete(t *testing.T) {
	ts := newTestServer(t, false)

	resp := postForm(t, ts, "/nacos/v1/cs/configs", url.Values{
		"dataId": {"app.yaml"}, "content": {"hello"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", readBody(t, resp))

	resp, err := http.Get(ts.URL + "/nacos/v1/cs/configs?dataId=app.yaml")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain;charset=UTF-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "hello", readBody(t, resp))

	resp = do(t, http.MethodDelete, ts.URL+"/nacos/v1/cs/configs?dataId=app.yaml", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", readBody(t, resp))

	resp, err = http.Get(ts.URL + "/nacos/v1/cs/configs?dataId=app.yaml")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "config data not exist", readBody(t, resp))
}

// TestConfigShowAll tests the show=all JSON projection
func TestConfigShowAll(t *testing.T) {
	ts := newTestServer(t, false)

	postForm(t, ts, "/nacos/v1/cs/configs", url.Values{
		"dataId": {"d"}, "content": {"v"}, "appName": {"demo"}, "type": {"yaml"},
	}).Body.Close()

	resp, err := http.Get(ts.URL + "/nacos/v1/cs/configs?dataId=d&show=all")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	resp.Body.Close()
	assert.Equal(t, "d", detail["dataId"])
	assert.Equal(t, "DEFAULT_GROUP", detail["group"])
	assert.Equal(t, "public", detail["tenant"])
	assert.Equal(t, "v", detail["content"])
	assert.Equal(t, "demo", detail["appName"])
	assert.Equal(t, "yaml", detail["type"])
	assert.Equal(t, configstore.ContentMD5("v"), detail["md5"])
}

// TestConfigSearch tests the paged search envelope
func TestConfigSearch(t *testing.T) {
	ts := newTestServer(t, false)
	for _, d := range []string{"svc-a.yaml", "svc-b.yaml", "other.txt"} {
		postForm(t, ts, "/nacos/v1/cs/configs", url.Values{
			"dataId": {d}, "content": {"x"},
		}).Body.Close()
	}

	resp, err := http.Get(ts.URL + "/nacos/v1/cs/configs?search=blur&dataId=svc&pageNo=1&pageSize=10")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		TotalCount     int64            `json:"totalCount"`
		PageNumber     int              `json:"pageNumber"`
		PagesAvailable int64            `json:"pagesAvailable"`
		PageItems      []map[string]any `json:"pageItems"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, int64(2), result.TotalCount)
	assert.Equal(t, 1, result.PageNumber)
	assert.Len(t, result.PageItems, 2)
}

// TestConfigHistoryAndRollback tests the history chain and the console
// rollback
func TestConfigHistoryAndRollback(t *testing.T) {
	ts := newTestServer(t, false)

	for _, content := range []string{"a", "b", "c"} {
		postForm(t, ts, "/nacos/v1/cs/configs", url.Values{"dataId": {"d"}, "content": {content}}).Body.Close()
	}

	resp, err := http.Get(ts.URL + "/nacos/v1/cs/history?dataId=d&group=DEFAULT_GROUP")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist struct {
		TotalCount int64 `json:"totalCount"`
		PageItems  []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
			OpType  string `json:"opType"`
		} `json:"pageItems"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hist))
	resp.Body.Close()
	require.Equal(t, int64(3), hist.TotalCount)
	// Update rows back up the content they replaced.
	assert.Equal(t, "U", hist.PageItems[0].OpType)
	assert.Equal(t, "b", hist.PageItems[0].Content)

	// history/previous walks one row back.
	resp, err = http.Get(ts.URL + "/nacos/v1/cs/history/previous?dataId=d&id=" + hist.PageItems[0].ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var prev struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		OpType  string `json:"opType"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&prev))
	resp.Body.Close()
	assert.Equal(t, "a", prev.Content)
	assert.Equal(t, "U", prev.OpType)

	// Rolling back the U row that backed up "a" restores "a".
	resp = postForm(t, ts, "/nacos/v3/console/cs/config/rollback", url.Values{
		"dataId": {"d"}, "nid": {prev.ID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rb struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rb))
	resp.Body.Close()
	assert.Zero(t, rb.Code)

	resp, err = http.Get(ts.URL + "/nacos/v1/cs/configs?dataId=d")
	require.NoError(t, err)
	assert.Equal(t, "a", readBody(t, resp))
}

// TestListenerReportsChange tests the long-poll handshake with a stale MD5
func TestListenerReportsChange(t *testing.T) {
	ts := newTestServer(t, false)

	postForm(t, ts, "/nacos/v1/cs/configs", url.Values{"dataId": {"d"}, "content": {"v2"}}).Body.Close()

	form := url.Values{"Listening-Configs": {"d\x02DEFAULT_GROUP\x01stale-md5\x01"}}
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/nacos/v1/cs/configs/listener",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Long-Pulling-Timeout", "30000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "d\x02DEFAULT_GROUP\x02public\x01", readBody(t, resp))
}

// TestListenerTimesOutEmpty tests that an up-to-date listener gets an
// empty body after its window
func TestListenerTimesOutEmpty(t *testing.T) {
	ts := newTestServer(t, false)

	postForm(t, ts, "/nacos/v1/cs/configs", url.Values{"dataId": {"d"}, "content": {"v"}}).Body.Close()

	form := url.Values{"Listening-Configs": {"d\x02DEFAULT_GROUP\x01" + configstore.ContentMD5("v") + "\x01"}}
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/nacos/v1/cs/configs/listener",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Long-Pulling-Timeout", "200")

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, readBody(t, resp))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

// TestListenerStatusEndpoints tests the console subscriber projections
func TestListenerStatusEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	postForm(t, ts, "/nacos/v1/cs/configs", url.Values{"dataId": {"d"}, "content": {"v"}}).Body.Close()

	// A short poll records the subscriber row.
	form := url.Values{"Listening-Configs": {"d\x02DEFAULT_GROUP\x01" + configstore.ContentMD5("v") + "\x01"}}
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/nacos/v1/cs/configs/listener",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Long-Pulling-Timeout", "100")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/nacos/v3/console/cs/config/listener?dataId=d&groupName=DEFAULT_GROUP")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		ListenersStatus map[string]string `json:"listenersStatus"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	require.Len(t, status.ListenersStatus, 1)
	for _, md5 := range status.ListenersStatus {
		assert.Equal(t, configstore.ContentMD5("v"), md5)
	}
}

// TestNamespaceConsole tests the RestResult list and the literal
// true/false mutations
func TestNamespaceConsole(t *testing.T) {
	ts := newTestServer(t, false)

	resp := postForm(t, ts, "/nacos/v1/console/namespaces", url.Values{
		"customNamespaceId": {"dev"}, "namespaceName": {"Development"},
	})
	assert.Equal(t, "true", readBody(t, resp))

	resp, err := http.Get(ts.URL + "/nacos/v1/console/namespaces")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Code int `json:"code"`
		Data []struct {
			Namespace         string `json:"namespace"`
			NamespaceShowName string `json:"namespaceShowName"`
			Quota             int    `json:"quota"`
			Type              int    `json:"type"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, list.Code)
	require.Len(t, list.Data, 2)

	byID := map[string]int{}
	for _, ns := range list.Data {
		byID[ns.Namespace] = ns.Type
		assert.Equal(t, 200, ns.Quota)
	}
	assert.Equal(t, 0, byID["public"])
	assert.Equal(t, 2, byID["dev"])

	// Deleting the reserved namespace fails, deleting dev succeeds.
	resp = do(t, http.MethodDelete, ts.URL+"/nacos/v1/console/namespaces?namespaceId=public", nil)
	assert.Equal(t, "false", readBody(t, resp))
	resp = do(t, http.MethodDelete, ts.URL+"/nacos/v1/console/namespaces?namespaceId=dev", nil)
	assert.Equal(t, "true", readBody(t, resp))
}

// TestNamingLifecycle tests service create, instance register and the
// list envelope
func TestNamingLifecycle(t *testing.T) {
	ts := newTestServer(t, false)

	resp := postForm(t, ts, "/nacos/v1/ns/service", url.Values{
		"serviceName": {"orders"}, "protectThreshold": {"0.5"},
	})
	assert.Equal(t, "ok", readBody(t, resp))

	for _, port := range []string{"8080", "8081"} {
		resp = postForm(t, ts, "/nacos/v1/ns/instance", url.Values{
			"serviceName": {"orders"}, "ip": {"10.0.0.1"}, "port": {port},
		})
		assert.Equal(t, "ok", readBody(t, resp))
	}

	resp, err := http.Get(ts.URL + "/nacos/v1/ns/instance/list?serviceName=orders")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Name        string `json:"name"`
		GroupName   string `json:"groupName"`
		CacheMillis int    `json:"cacheMillis"`
		Hosts       []struct {
			InstanceID  string  `json:"instanceId"`
			IP          string  `json:"ip"`
			Port        int     `json:"port"`
			Weight      float64 `json:"weight"`
			Healthy     bool    `json:"healthy"`
			ServiceName string  `json:"serviceName"`
		} `json:"hosts"`
		LastRefTime int64 `json:"lastRefTime"`
		Valid       bool  `json:"valid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, "DEFAULT_GROUP@@orders", list.Name)
	assert.Equal(t, "DEFAULT_GROUP", list.GroupName)
	assert.Equal(t, 10000, list.CacheMillis)
	assert.NotZero(t, list.LastRefTime)
	assert.True(t, list.Valid)
	require.Len(t, list.Hosts, 2)
	assert.Equal(t, float64(1), list.Hosts[0].Weight)
	assert.Equal(t, "DEFAULT_GROUP@@orders", list.Hosts[0].ServiceName)

	// The service list projection.
	resp, err = http.Get(ts.URL + "/nacos/v1/ns/service/list")
	require.NoError(t, err)
	var doms struct {
		Count int64    `json:"count"`
		Doms  []string `json:"doms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doms))
	resp.Body.Close()
	assert.Equal(t, int64(1), doms.Count)
	assert.Equal(t, []string{"orders"}, doms.Doms)
}

// TestRegisterRejectsBadPort tests the 1..65535 port bounds
func TestRegisterRejectsBadPort(t *testing.T) {
	ts := newTestServer(t, false)

	resp := postForm(t, ts, "/nacos/v1/ns/service", url.Values{
		"serviceName": {"orders"},
	})
	assert.Equal(t, "ok", readBody(t, resp))

	tests := []struct {
		name string
		port string
	}{
		{"zero", "0"},
		{"negative", "-1"},
		{"above 65535", "65536"},
		{"not a number", "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postForm(t, ts, "/nacos/v1/ns/instance", url.Values{
				"serviceName": {"orders"}, "ip": {"10.0.0.1"}, "port": {tt.port},
			})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}

	// The boundary value itself registers fine.
	resp = postForm(t, ts, "/nacos/v1/ns/instance", url.Values{
		"serviceName": {"orders"}, "ip": {"10.0.0.1"}, "port": {"65535"},
	})
	assert.Equal(t, "ok", readBody(t, resp))
}

// TestRegisterWithoutService tests the 500 convention for unknown services
func TestRegisterWithoutService(t *testing.T) {
	ts := newTestServer(t, false)

	resp := postForm(t, ts, "/nacos/v1/ns/instance", url.Values{
		"serviceName": {"ghost"}, "ip": {"10.0.0.1"}, "port": {"8080"},
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()
}

// TestBeatShape tests the mandatory heartbeat response fields
func TestBeatShape(t *testing.T) {
	ts := newTestServer(t, false)

	// A beat for a never-registered instance still answers 10200.
	resp := do(t, http.MethodPut,
		ts.URL+"/nacos/v1/ns/instance/beat?serviceName=orders&ip=10.0.0.1&port=8080", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var beat struct {
		ClientBeatInterval int  `json:"clientBeatInterval"`
		Code               int  `json:"code"`
		LightBeatEnabled   bool `json:"lightBeatEnabled"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&beat))
	resp.Body.Close()
	assert.Equal(t, 5000, beat.ClientBeatInterval)
	assert.Equal(t, 10200, beat.Code)
	assert.False(t, beat.LightBeatEnabled)
}

// TestLogin tests the console login endpoint
func TestLogin(t *testing.T) {
	ts := newTestServer(t, false)

	resp := postForm(t, ts, "/nacos/v1/auth/users/login", url.Values{
		"username": {"nacos"}, "password": {"nacos"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		AccessToken string `json:"accessToken"`
		TokenTTL    int64  `json:"tokenTtl"`
		GlobalAdmin bool   `json:"globalAdmin"`
		Username    string `json:"username"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()
	assert.NotEmpty(t, login.AccessToken)
	assert.Equal(t, int64(18000), login.TokenTTL)
	assert.True(t, login.GlobalAdmin)
	assert.Equal(t, "nacos", login.Username)

	resp = postForm(t, ts, "/nacos/v1/auth/users/login", url.Values{
		"username": {"nacos"}, "password": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

// TestLoginRefreshesToken tests exchanging a held token for a fresh one
func TestLoginRefreshesToken(t *testing.T) {
	ts := newTestServer(t, true)

	login := postForm(t, ts, "/nacos/v1/auth/users/login", url.Values{
		"username": {"nacos"}, "password": {"nacos"},
	})
	var cred struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(login.Body).Decode(&cred))
	login.Body.Close()

	// A credential-less login with a valid bearer token rotates it.
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/nacos/v1/auth/users/login", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fresh struct {
		AccessToken string `json:"accessToken"`
		TokenTTL    int64  `json:"tokenTtl"`
		Username    string `json:"username"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fresh))
	resp.Body.Close()
	assert.NotEmpty(t, fresh.AccessToken)
	assert.NotEqual(t, cred.AccessToken, fresh.AccessToken)
	assert.Equal(t, int64(18000), fresh.TokenTTL)
	assert.Equal(t, "nacos", fresh.Username)

	// The old token stopped working; the fresh one guards the console.
	req, err = http.NewRequest(http.MethodGet, ts.URL+"/nacos/v1/console/namespaces", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req.Header.Set("Authorization", "Bearer "+fresh.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// With neither credentials nor a token the request is rejected.
	resp = postForm(t, ts, "/nacos/v1/auth/users/login", url.Values{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

// TestConsoleAuthEnforcement tests the bearer-token guard when auth is on
func TestConsoleAuthEnforcement(t *testing.T) {
	ts := newTestServer(t, true)

	resp, err := http.Get(ts.URL + "/nacos/v1/console/namespaces")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	login := postForm(t, ts, "/nacos/v1/auth/users/login", url.Values{
		"username": {"nacos"}, "password": {"nacos"},
	})
	var cred struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(login.Body).Decode(&cred))
	login.Body.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/nacos/v1/console/namespaces", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// TestOperatorStubs tests the standalone probe endpoints
func TestOperatorStubs(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/nacos/v1/ns/health")
	require.NoError(t, err)
	assert.Equal(t, "UP", readBody(t, resp))

	resp, err = http.Get(ts.URL + "/nacos/v1/ns/operator/switches")
	require.NoError(t, err)
	var switches map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&switches))
	resp.Body.Close()
	assert.Equal(t, true, switches["enableStandalone"])
	assert.Equal(t, false, switches["distroEnabled"])
	assert.Equal(t, "UP", switches["overriddenServerStatus"])

	resp, err = http.Get(ts.URL + "/nacos/v1/ns/raft/leader")
	require.NoError(t, err)
	var leader struct {
		Leader struct {
			State string `json:"state"`
			Term  int    `json:"term"`
		} `json:"leader"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&leader))
	resp.Body.Close()
	assert.Equal(t, "LEADER", leader.Leader.State)
	assert.Equal(t, 1, leader.Leader.Term)

	resp, err = http.Get(ts.URL + "/nacos/v1/ns/operator/metrics")
	require.NoError(t, err)
	var om struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&om))
	resp.Body.Close()
	assert.Equal(t, "UP", om.Status)

	// Prometheus metrics live outside the context path.
	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "nacoslite_api_requests_total")
}
