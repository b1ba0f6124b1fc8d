package configstore

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
	"gopkg.in/yaml.v3"
)

// exportPageSize bounds one export projection read. Export is a console
// operation over a filtered set, not a bulk replication channel.
const exportPageSize = 10000

// ExportParams selects the configs to export. With IDs set the filter
// fields are ignored and rows are loaded by id.
type ExportParams struct {
	Tenant  string
	DataID  string
	Group   string
	AppName string
	IDs     []int64
}

// exportMetaItem is one entry of the V2 metadata.yml sequence
type exportMetaItem struct {
	DataID  string `yaml:"dataId"`
	Group   string `yaml:"group"`
	AppName string `yaml:"appName,omitempty"`
	Desc    string `yaml:"desc,omitempty"`
	Type    string `yaml:"type,omitempty"`
}

type exportMetadata struct {
	Metadata []exportMetaItem `yaml:"metadata"`
}

// ExportFilename returns the conventional artifact name for an export
// started at t.
func ExportFilename(t time.Time) string {
	return "nacos_config_export_" + t.Format("20060102_150405") + ".zip"
}

func (s *Store) collectForExport(ctx context.Context, p ExportParams) ([]*types.Config, error) {
	if len(p.IDs) > 0 {
		var out []*types.Config
		for _, id := range p.IDs {
			c, err := s.store.GetConfigByID(ctx, id)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}
	configs, _, err := s.store.SearchConfigs(ctx, storage.ConfigSearch{
		Tenant:  p.Tenant,
		DataID:  p.DataID,
		Group:   p.Group,
		AppName: p.AppName,
		Blur:    true,
	}, 1, exportPageSize)
	return configs, err
}

// Export builds the ZIP artifact for the selected configs. V1 carries a
// plain-text "metadata" entry; V2 carries "metadata.yml".
func (s *Store) Export(ctx context.Context, p ExportParams, v2 bool) ([]byte, error) {
	configs, err := s.collectForExport(ctx, p)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, c := range configs {
		w, err := zw.Create(c.Group + "+" + c.DataID)
		if err != nil {
			return nil, fmt.Errorf("failed to create zip entry: %w", err)
		}
		if _, err := w.Write([]byte(c.Content)); err != nil {
			return nil, fmt.Errorf("failed to write zip entry: %w", err)
		}
	}

	if v2 {
		meta := exportMetadata{}
		for _, c := range configs {
			meta.Metadata = append(meta.Metadata, exportMetaItem{
				DataID:  c.DataID,
				Group:   c.Group,
				AppName: c.AppName,
				Desc:    c.Desc,
				Type:    c.Type,
			})
		}
		w, err := zw.Create(metaFileV2)
		if err != nil {
			return nil, fmt.Errorf("failed to create metadata entry: %w", err)
		}
		enc, err := yaml.Marshal(&meta)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata.yml: %w", err)
		}
		if _, err := w.Write(enc); err != nil {
			return nil, fmt.Errorf("failed to write metadata entry: %w", err)
		}
	} else {
		// V1 metadata lines: "{group}.{dataId}.app={appName}", dots in
		// the dataId written as "~". Only configs with an app name get
		// a line.
		var sb strings.Builder
		for _, c := range configs {
			if c.AppName == "" {
				continue
			}
			sb.WriteString(c.Group)
			sb.WriteString(".")
			sb.WriteString(strings.ReplaceAll(c.DataID, ".", "~"))
			sb.WriteString(".app=")
			sb.WriteString(c.AppName)
			sb.WriteString("\r\n")
		}
		w, err := zw.Create(metaFileV1)
		if err != nil {
			return nil, fmt.Errorf("failed to create metadata entry: %w", err)
		}
		if _, err := w.Write([]byte(sb.String())); err != nil {
			return nil, fmt.Errorf("failed to write metadata entry: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish zip: %w", err)
	}
	return buf.Bytes(), nil
}
