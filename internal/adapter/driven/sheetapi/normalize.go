package sheetapi

import (
	"strconv"
	"strings"

	"github.com/hyeonwkim/passdir/internal/domain/model"
)

// fieldAliases maps each canonical ServiceRecord field to the upstream header
// strings that may carry it, in priority order. The sheet has gone through
// several header revisions (English keys from newer script deployments, Korean
// headers from raw exports), so the first alias with a non-empty value wins.
var fieldAliases = []struct {
	assign  func(*model.ServiceRecord, string)
	aliases []string
}{
	{func(r *model.ServiceRecord, v string) { r.ServiceName = v }, []string{"serviceName", "사이트명", "서비스명", "서비스"}},
	{func(r *model.ServiceRecord, v string) { r.URL = v }, []string{"url", "URL", "주소"}},
	{func(r *model.ServiceRecord, v string) { r.AccountID = v }, []string{"accountId", "계정", "아이디", "ID"}},
	{func(r *model.ServiceRecord, v string) { r.Password = v }, []string{"password", "PW", "pw", "비밀번호", "패스워드"}},
	{func(r *model.ServiceRecord, v string) { r.PasswordKr = v }, []string{"passwordKr", "PW(한글)"}},
	{func(r *model.ServiceRecord, v string) { r.Usage = v }, []string{"usage", "용도", "설명", "비고"}},
	{func(r *model.ServiceRecord, v string) { r.LastModified = v }, []string{"lastModified", "최종수정일", "최종 수정일", "수정일", "업데이트"}},
	{func(r *model.ServiceRecord, v string) { r.Editor = v }, []string{"editor", "편집자"}},
	{func(r *model.ServiceRecord, v string) { r.Registrant = v }, []string{"registrant", "계정가입자/본인인증"}},
	{func(r *model.ServiceRecord, v string) { r.Verified = v }, []string{"verified", "확인"}},
}

// normalizeRow converts one raw upstream row into the canonical schema.
// Keys consumed by the alias table are dropped; everything else survives in
// Extra under a slugified key so no column is silently lost.
func normalizeRow(row map[string]any) model.ServiceRecord {
	used := map[string]bool{"id": true}

	record := model.ServiceRecord{ID: coerceString(row["id"])}
	for _, field := range fieldAliases {
		for _, alias := range field.aliases {
			raw, ok := row[alias]
			if !ok {
				continue
			}
			used[alias] = true
			if v := coerceString(raw); v != "" {
				field.assign(&record, v)
				break
			}
		}
	}

	for key, raw := range row {
		if used[key] {
			continue
		}
		if record.Extra == nil {
			record.Extra = make(map[string]string)
		}
		record.Extra[slugifyHeader(key)] = coerceString(raw)
	}

	return record
}

// coerceString renders any JSON value as a string: arrays join with ", ",
// null becomes "", numbers lose their float formatting artifacts.
func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, coerceString(item))
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// slugifyHeader lowercases a header and collapses whitespace runs to single
// underscores: "최종 수정일" -> "최종_수정일", "Added By" -> "added_by".
func slugifyHeader(header string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(header))), "_")
}
