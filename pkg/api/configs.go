package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nacoslite/nacoslite/pkg/configstore"
	"github.com/nacoslite/nacoslite/pkg/metrics"
	"github.com/nacoslite/nacoslite/pkg/notify"
	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
)

// maxImportSize bounds one uploaded config archive
const maxImportSize = 64 << 20

// configDetail is the "show=all" / catalog projection
type configDetail struct {
	ID               string `json:"id"`
	DataID           string `json:"dataId"`
	Group            string `json:"group"`
	Tenant           string `json:"tenant"`
	AppName          string `json:"appName"`
	Content          string `json:"content"`
	MD5              string `json:"md5"`
	Type             string `json:"type"`
	Desc             string `json:"desc"`
	Use              string `json:"use"`
	Effect           string `json:"effect"`
	Schema           string `json:"schema"`
	EncryptedDataKey string `json:"encryptedDataKey"`
	CreateUser       string `json:"createUser"`
	CreateIP         string `json:"createIp"`
	CreateTime       int64  `json:"createTime"`
	ModifyTime       int64  `json:"modifyTime"`
}

func toConfigDetail(c *types.Config) configDetail {
	return configDetail{
		ID:               strconv.FormatInt(c.ID, 10),
		DataID:           c.DataID,
		Group:            c.Group,
		Tenant:           c.Tenant,
		AppName:          c.AppName,
		Content:          c.Content,
		MD5:              c.MD5,
		Type:             c.Type,
		Desc:             c.Desc,
		Use:              c.Use,
		Effect:           c.Effect,
		Schema:           c.Schema,
		EncryptedDataKey: c.EncryptedDataKey,
		CreateUser:       c.SrcUser,
		CreateIP:         c.SrcIP,
		CreateTime:       c.Created,
		ModifyTime:       c.Modified,
	}
}

type betaDetail struct {
	DataID  string `json:"dataId"`
	Group   string `json:"group"`
	Tenant  string `json:"tenant"`
	AppName string `json:"appName"`
	Content string `json:"content"`
	MD5     string `json:"md5"`
	BetaIPs string `json:"betaIps"`
}

// handleConfigs multiplexes /v1/cs/configs on method and discriminator
// query parameters, resolving them before any store call so a URL
// never falls through to the wrong operation.
func (s *Server) handleConfigs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		switch {
		case r.URL.Query().Get("search") != "":
			s.searchConfigs(w, r)
		case r.URL.Query().Get("export") == "true":
			s.exportConfigs(w, r, false)
		case r.URL.Query().Get("exportV2") == "true":
			s.exportConfigs(w, r, true)
		case r.URL.Query().Get("beta") == "true":
			s.getBetaConfig(w, r)
		default:
			s.getConfig(w, r)
		}
	case http.MethodPost:
		switch {
		case r.URL.Query().Get("import") == "true":
			s.importConfigs(w, r)
		case r.URL.Query().Get("clone") == "true":
			s.cloneConfigs(w, r)
		default:
			s.publishConfig(w, r)
		}
	case http.MethodDelete:
		if r.URL.Query().Get("beta") == "true" {
			s.deleteBetaConfig(w, r)
		} else {
			s.deleteConfig(w, r)
		}
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	key, err := configKey(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	cfg, err := s.configs.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("show") == "all" {
		writeJSON(w, http.StatusOK, toConfigDetail(cfg))
		return
	}
	writeText(w, http.StatusOK, cfg.Content)
}

func (s *Server) searchConfigs(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("search")
	if mode != "accurate" && mode != "blur" {
		badRequest(w, "search must be accurate or blur")
		return
	}
	pageNo, pageSize := pageParams(r)
	q := storage.ConfigSearch{
		Tenant:  namespaceID(r),
		DataID:  r.FormValue("dataId"),
		Group:   r.FormValue("group"),
		AppName: r.FormValue("appName"),
		Blur:    mode == "blur",
	}
	configs, total, err := s.configs.Search(r.Context(), q, pageNo, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]configDetail, 0, len(configs))
	for _, c := range configs {
		items = append(items, toConfigDetail(c))
	}
	writeJSON(w, http.StatusOK, newPage(total, pageNo, pageSize, items))
}

func (s *Server) getBetaConfig(w http.ResponseWriter, r *http.Request) {
	key, err := configKey(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	b, err := s.configs.GetBeta(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, betaDetail{
		DataID: b.DataID, Group: b.Group, Tenant: b.Tenant,
		AppName: b.AppName, Content: b.Content, MD5: b.MD5, BetaIPs: b.BetaIPs,
	})
}

func (s *Server) exportConfigs(w http.ResponseWriter, r *http.Request, v2 bool) {
	var ids []int64
	if raw := r.URL.Query().Get("ids"); raw != "" {
		for _, part := range splitNonEmpty(raw, ",") {
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				badRequest(w, "invalid ids")
				return
			}
			ids = append(ids, id)
		}
	}
	data, err := s.configs.Export(r.Context(), configstore.ExportParams{
		Tenant:  namespaceID(r),
		DataID:  r.FormValue("dataId"),
		Group:   r.FormValue("group"),
		AppName: r.FormValue("appName"),
		IDs:     ids,
	}, v2)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		"attachment;filename="+configstore.ExportFilename(time.Now()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) publishConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}
	dataID := r.FormValue("dataId")
	content := r.FormValue("content")
	if dataID == "" || content == "" {
		badRequest(w, "dataId and content are required")
		return
	}
	req := configstore.PublishRequest{
		DataID:           dataID,
		Group:            r.FormValue("group"),
		Tenant:           r.FormValue("tenant"),
		Content:          content,
		Type:             r.FormValue("type"),
		AppName:          r.FormValue("appName"),
		Desc:             r.FormValue("desc"),
		Use:              r.FormValue("use"),
		Effect:           r.FormValue("effect"),
		Schema:           r.FormValue("schema"),
		EncryptedDataKey: r.FormValue("encryptedDataKey"),
		BetaIPs:          r.FormValue("betaIps"),
		SrcUser:          r.FormValue("src_user"),
		SrcIP:            clientIP(r),
	}
	if _, err := s.configs.Publish(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	metrics.ConfigPublishesTotal.Inc()
	writeText(w, http.StatusOK, "true")
}

func (s *Server) deleteConfig(w http.ResponseWriter, r *http.Request) {
	key, err := configKey(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.configs.Delete(r.Context(), key, r.FormValue("src_user"), clientIP(r)); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "true")
}

func (s *Server) deleteBetaConfig(w http.ResponseWriter, r *http.Request) {
	key, err := configKey(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.configs.DeleteBeta(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "true")
}

func (s *Server) importConfigs(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		badRequest(w, "invalid multipart body")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing file part")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
	if err != nil {
		writeError(w, err)
		return
	}

	policy := configstore.ParsePolicy(r.FormValue("policy"))
	res, err := s.configs.Import(r.Context(), namespaceID(r), policy, data,
		r.FormValue("src_user"), clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) cloneConfigs(w http.ResponseWriter, r *http.Request) {
	var items []configstore.CloneItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		badRequest(w, "invalid clone body")
		return
	}
	if len(items) == 0 {
		badRequest(w, "empty clone set")
		return
	}
	policy := configstore.ParsePolicy(r.URL.Query().Get("policy"))
	res, err := s.configs.Clone(r.Context(), r.URL.Query().Get("tenant"), policy, items,
		r.URL.Query().Get("src_user"), clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- listener (long poll) ---

// handleListener serves POST long polls and the GET listener query
func (s *Server) handleListener(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.longPoll(w, r)
	case http.MethodGet:
		s.listenerQuery(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) longPoll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}
	records, err := notify.ParseListeningConfigs(r.FormValue("Listening-Configs"))
	if err != nil {
		writeError(w, err)
		return
	}

	timeout := notify.DefaultTimeout
	if raw := r.Header.Get("Long-Pulling-Timeout"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "invalid Long-Pulling-Timeout")
			return
		}
		timeout, err = notify.ClampTimeout(time.Duration(ms) * time.Millisecond)
		if err != nil {
			badRequest(w, "invalid Long-Pulling-Timeout")
			return
		}
	}

	// Recording the subscriber is a side effect of entering the
	// listener; it never blocks the comparison.
	s.poller.RecordSubscribers(r.Context(), records, clientIP(r), clientPort(r),
		r.UserAgent(), r.FormValue("appName"))

	metrics.ActiveListeners.Inc()
	defer metrics.ActiveListeners.Dec()

	changed, err := s.poller.Poll(r.Context(), records, timeout)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(changed) == 0 {
		// Empty body means "no change" to the SDK.
		writeText(w, http.StatusOK, "")
		return
	}
	metrics.ListenerWakeups.Inc()
	writeText(w, http.StatusOK, notify.FormatChanged(changed))
}

// listenerQuery projects the recorded subscribers for one triple
func (s *Server) listenerQuery(w http.ResponseWriter, r *http.Request) {
	key, err := configKey(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	subs, err := s.store.ListSubscribersByConfig(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	listeners := map[string]string{}
	collectors := make([]string, 0, len(subs))
	for _, sub := range subs {
		listeners[sub.ClientIP] = sub.MD5
		collectors = append(collectors, sub.ClientIP)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listeners":  listeners,
		"collectors": collectors,
	})
}

// handleListenerStatus is the v3 console projection {ip -> md5}
func (s *Server) handleListenerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	key, err := configKey(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	subs, err := s.store.ListSubscribersByConfig(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	status := map[string]string{}
	for _, sub := range subs {
		status[sub.ClientIP] = sub.MD5
	}
	writeJSON(w, http.StatusOK, map[string]any{"listenersStatus": status})
}

// handleListenerStatusByIP is the v3 console projection
// {"dataId+group" -> md5} for one client
func (s *Server) handleListenerStatusByIP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ip := r.FormValue("ip")
	if ip == "" {
		badRequest(w, "missing required parameter ip")
		return
	}
	subs, err := s.store.ListSubscribersByIP(r.Context(), ip, r.FormValue("namespaceId"))
	if err != nil {
		writeError(w, err)
		return
	}
	status := map[string]string{}
	for _, sub := range subs {
		status[sub.DataID+"+"+sub.Group] = sub.MD5
	}
	writeJSON(w, http.StatusOK, map[string]any{"listenersStatus": status})
}

// --- catalog / history / rollback ---

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	key, err := configKey(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	cfg, err := s.configs.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigDetail(cfg))
}

type historyItem struct {
	ID         string `json:"id"`
	DataID     string `json:"dataId"`
	Group      string `json:"group"`
	Tenant     string `json:"tenant"`
	AppName    string `json:"appName"`
	Content    string `json:"content"`
	MD5        string `json:"md5"`
	OpType     string `json:"opType"`
	SrcUser    string `json:"srcUser"`
	SrcIP      string `json:"srcIp"`
	CreateTime int64  `json:"createdTime"`
	ModifyTime int64  `json:"lastModifiedTime"`
}

func toHistoryItem(h *types.ConfigHistory) historyItem {
	return historyItem{
		ID:         strconv.FormatInt(h.ID, 10),
		DataID:     h.DataID,
		Group:      h.Group,
		Tenant:     h.Tenant,
		AppName:    h.AppName,
		Content:    h.Content,
		MD5:        h.MD5,
		OpType:     string(h.OpType),
		SrcUser:    h.SrcUser,
		SrcIP:      h.SrcIP,
		CreateTime: h.Created,
		ModifyTime: h.Modified,
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	key, err := configKey(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	pageNo, pageSize := pageParams(r)
	rows, total, err := s.configs.History(r.Context(), key, pageNo, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]historyItem, 0, len(rows))
	for _, h := range rows {
		items = append(items, toHistoryItem(h))
	}
	writeJSON(w, http.StatusOK, newPage(total, pageNo, pageSize, items))
}

func (s *Server) handleHistoryPrevious(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	key, err := configKey(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	h, err := s.configs.HistoryPrevious(r.Context(), key, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryItem(h))
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	nid, err := strconv.ParseInt(r.FormValue("nid"), 10, 64)
	if err != nil {
		badRequest(w, "invalid nid")
		return
	}
	if err := s.configs.Rollback(r.Context(), nid, r.FormValue("src_user"), clientIP(r)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "message": "history not found"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": 0, "message": "success"})
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
