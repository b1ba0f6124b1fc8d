package configstore

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	metaFileV1 = "metadata"
	metaFileV2 = "metadata.yml"
)

// SamePolicy decides what an import or clone does when the target
// triple already exists.
type SamePolicy string

const (
	PolicyAbort     SamePolicy = "ABORT"
	PolicySkip      SamePolicy = "SKIP"
	PolicyOverwrite SamePolicy = "OVERWRITE"
)

// ParsePolicy maps the wire value to a policy, defaulting to ABORT
func ParsePolicy(raw string) SamePolicy {
	switch SamePolicy(strings.ToUpper(raw)) {
	case PolicySkip:
		return PolicySkip
	case PolicyOverwrite:
		return PolicyOverwrite
	default:
		return PolicyAbort
	}
}

// ErrBadArchive reports an un-parseable import payload
var ErrBadArchive = errors.New("malformed config archive")

// FailItem identifies one config an import could not apply
type FailItem struct {
	DataID string `json:"dataId"`
	Group  string `json:"group"`
}

// ImportResult is the response shape shared by import and clone
type ImportResult struct {
	SuccCount int        `json:"succCount"`
	SkipCount int        `json:"skipCount"`
	FailCount int        `json:"failCount"`
	FailData  []FailItem `json:"failData"`
}

// importItem is one config extracted from the archive (or loaded for a
// clone), ready to be applied under the policy.
type importItem struct {
	DataID  string
	Group   string
	Content string
	AppName string
	Desc    string
	Type    string
}

func parseArchive(data []byte) ([]importItem, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	readEntry := func(f *zip.File) (string, error) {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadArchive, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadArchive, err)
		}
		return string(b), nil
	}

	var items []importItem
	v1Meta := map[string]string{} // "group+dataId" -> appName
	v2Meta := map[string]exportMetaItem{}

	for _, f := range zr.File {
		switch f.Name {
		case metaFileV2:
			raw, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			var meta exportMetadata
			if err := yaml.Unmarshal([]byte(raw), &meta); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
			}
			for _, m := range meta.Metadata {
				v2Meta[m.Group+"+"+m.DataID] = m
			}
		case metaFileV1:
			raw, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			for _, line := range strings.Split(raw, "\n") {
				line = strings.TrimRight(line, "\r")
				if line == "" {
					continue
				}
				// "{group}.{dataId}.app={appName}" with "." in the
				// dataId written as "~".
				eq := strings.Index(line, "=")
				if eq < 0 {
					continue
				}
				left := strings.TrimSuffix(line[:eq], ".app")
				appName := line[eq+1:]
				dot := strings.Index(left, ".")
				if dot < 0 {
					continue
				}
				group := left[:dot]
				dataID := strings.ReplaceAll(left[dot+1:], "~", ".")
				v1Meta[group+"+"+dataID] = appName
			}
		default:
			name := strings.TrimPrefix(f.Name, "/")
			sep := strings.Index(name, "+")
			if sep <= 0 || sep == len(name)-1 {
				return nil, fmt.Errorf("%w: unexpected entry %q", ErrBadArchive, f.Name)
			}
			content, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			items = append(items, importItem{
				DataID:  name[sep+1:],
				Group:   name[:sep],
				Content: content,
			})
		}
	}

	for i := range items {
		key := items[i].Group + "+" + items[i].DataID
		if m, ok := v2Meta[key]; ok {
			items[i].AppName = m.AppName
			items[i].Desc = m.Desc
			items[i].Type = m.Type
		} else if app, ok := v1Meta[key]; ok {
			items[i].AppName = app
		}
	}
	if len(items) == 0 {
		return nil, ErrBadArchive
	}
	return items, nil
}

// applyPolicy walks the items and applies the conflict policy, sharing
// the counting semantics between import and clone.
func (s *Store) applyPolicy(ctx context.Context, tenant string, policy SamePolicy, items []importItem, srcUser, srcIP string) (*ImportResult, error) {
	tenant = types.NormalizeTenant(tenant)
	res := &ImportResult{FailData: []FailItem{}}

	for _, item := range items {
		key := types.ConfigKey{DataID: item.DataID, Group: item.Group, Tenant: tenant}.Normalized()
		_, err := s.store.GetConfig(ctx, key)
		exists := err == nil
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		if exists {
			switch policy {
			case PolicyAbort:
				res.FailCount++
				res.FailData = append(res.FailData, FailItem{DataID: item.DataID, Group: item.Group})
				return res, nil
			case PolicySkip:
				res.SkipCount++
				continue
			case PolicyOverwrite:
				// falls through to publish
			}
		}

		_, err = s.Publish(ctx, PublishRequest{
			DataID: key.DataID, Group: key.Group, Tenant: key.Tenant,
			Content: item.Content, AppName: item.AppName,
			Desc: item.Desc, Type: item.Type,
			SrcUser: srcUser, SrcIP: srcIP,
		})
		if err != nil {
			return nil, err
		}
		res.SuccCount++
	}
	return res, nil
}

// Import applies a previously exported ZIP into the tenant. The V2
// layout is detected by the presence of metadata.yml.
func (s *Store) Import(ctx context.Context, tenant string, policy SamePolicy, archive []byte, srcUser, srcIP string) (*ImportResult, error) {
	items, err := parseArchive(archive)
	if err != nil {
		return nil, err
	}
	return s.applyPolicy(ctx, tenant, policy, items, srcUser, srcIP)
}

// CloneItem names one source config and its optional target rename
type CloneItem struct {
	CfgID  int64  `json:"cfgId,string"`
	DataID string `json:"dataId"`
	Group  string `json:"group"`
}

// Clone copies existing configs (by id) into the target tenant,
// honoring the same conflict policy as Import.
func (s *Store) Clone(ctx context.Context, tenant string, policy SamePolicy, srcs []CloneItem, srcUser, srcIP string) (*ImportResult, error) {
	var items []importItem
	for _, src := range srcs {
		c, err := s.store.GetConfigByID(ctx, src.CfgID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		item := importItem{
			DataID:  c.DataID,
			Group:   c.Group,
			Content: c.Content,
			AppName: c.AppName,
			Desc:    c.Desc,
			Type:    c.Type,
		}
		if src.DataID != "" {
			item.DataID = src.DataID
		}
		if src.Group != "" {
			item.Group = src.Group
		}
		items = append(items, item)
	}
	return s.applyPolicy(ctx, tenant, policy, items, srcUser, srcIP)
}
