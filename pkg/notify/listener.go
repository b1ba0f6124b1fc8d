package notify

import (
	"errors"
	"strings"

	"github.com/nacoslite/nacoslite/pkg/types"
)

// Wire separators of the Listening-Configs payload, conventionally
// written ^1 and ^2 in the Nacos docs.
const (
	recordSep = "\x01"
	fieldSep  = "\x02"
)

// ErrMalformedListeningConfigs reports an un-parseable listener payload
var ErrMalformedListeningConfigs = errors.New("malformed Listening-Configs payload")

// ListenRecord is one (triple, md5) entry submitted by a listening client
type ListenRecord struct {
	Key types.ConfigKey
	MD5 string
}

// ParseListeningConfigs decodes an already URL-decoded Listening-Configs
// payload. Each record is "dataId ^2 group ^2 tenant ^1 md5 ^1"; the
// trailing record separator is optional and tenants are normalized to
// "public" on the way in.
func ParseListeningConfigs(raw string) ([]ListenRecord, error) {
	if raw == "" {
		return nil, ErrMalformedListeningConfigs
	}
	segments := strings.Split(strings.TrimSuffix(raw, recordSep), recordSep)

	var records []ListenRecord
	for i := 0; i < len(segments); i += 2 {
		fields := strings.Split(segments[i], fieldSep)
		if len(fields) < 2 {
			return nil, ErrMalformedListeningConfigs
		}
		if fields[0] == "" || fields[1] == "" {
			return nil, ErrMalformedListeningConfigs
		}
		var md5 string
		if i+1 < len(segments) {
			md5 = segments[i+1]
		}
		tenant := ""
		if len(fields) > 2 {
			tenant = fields[2]
		}
		records = append(records, ListenRecord{
			Key: types.ConfigKey{
				DataID: fields[0],
				Group:  fields[1],
				Tenant: tenant,
			}.Normalized(),
			MD5: md5,
		})
	}
	if len(records) == 0 {
		return nil, ErrMalformedListeningConfigs
	}
	return records, nil
}

// FormatChanged encodes the changed triples for the listener response
// body: "dataId ^2 group ^2 tenant ^1" per changed config.
func FormatChanged(keys []types.ConfigKey) string {
	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key.DataID)
		sb.WriteString(fieldSep)
		sb.WriteString(key.Group)
		sb.WriteString(fieldSep)
		sb.WriteString(key.Tenant)
		sb.WriteString(recordSep)
	}
	return sb.String()
}
