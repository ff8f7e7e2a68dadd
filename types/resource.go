package types

import (
	"encoding/json"
	"sort"
)

// Core attribute keys every resource record may carry. Everything else
// ends up in Extra so unknown provider attributes survive the pipeline.
const (
	KeyService          = "service"
	KeyType             = "type"
	KeyID               = "id"
	KeyARN              = "arn"
	KeyRegion           = "region"
	KeyAccountID        = "account_id"
	KeySourceAccount    = "source_account"
	KeyName             = "name"
	KeyTags             = "tags"
	KeyComplianceStatus = "compliance_status"
)

// Resource is one cloud resource record. The typed fields are the subset
// the analyzers read; Extra holds the open remainder of the record.
type Resource struct {
	Service          string            `json:"service"`
	Type             string            `json:"type"`
	ID               string            `json:"id"`
	ARN              string            `json:"arn,omitempty"`
	Region           string            `json:"region,omitempty"`
	AccountID        string            `json:"account_id,omitempty"`
	SourceAccount    string            `json:"source_account,omitempty"`
	Name             string            `json:"name,omitempty"`
	ComplianceStatus string            `json:"compliance_status,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
	Extra            map[string]any    `json:"extra,omitempty"`
}

// Key returns the deduplication key: the ARN when present, otherwise
// service:id:region.
func (r Resource) Key() string {
	if r.ARN != "" {
		return r.ARN
	}
	return r.Service + ":" + r.ID + ":" + r.Region
}

// Clone returns a deep copy. Analyzers enrich copies, never the
// caller's original record.
func (r Resource) Clone() Resource {
	out := r
	if r.Tags != nil {
		out.Tags = make(map[string]string, len(r.Tags))
		for k, v := range r.Tags {
			out.Tags[k] = v
		}
	}
	if r.Extra != nil {
		out.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = cloneValue(v)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// FieldCount counts populated fields. Deduplication keeps the record
// with the higher count.
func (r Resource) FieldCount() int {
	count := 0
	for _, s := range []string{
		r.Service, r.Type, r.ID, r.ARN, r.Region,
		r.AccountID, r.SourceAccount, r.Name, r.ComplianceStatus,
	} {
		if s != "" {
			count++
		}
	}
	if len(r.Tags) > 0 {
		count++
	}
	for _, v := range r.Extra {
		if !emptyValue(v) {
			count++
		}
	}
	return count
}

func emptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}

// SetExtra stores a non-core attribute, allocating the map on first use.
func (r *Resource) SetExtra(key string, value any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = value
}

// GetString reads a string attribute from Extra.
func (r Resource) GetString(key string) string {
	if v, ok := r.Extra[key].(string); ok {
		return v
	}
	return ""
}

// GetFloat reads a numeric attribute from Extra, accepting the types
// JSON decoding produces.
func (r Resource) GetFloat(key string) (float64, bool) {
	switch v := r.Extra[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// GetBool reads a boolean attribute from Extra.
func (r Resource) GetBool(key string) bool {
	v, _ := r.Extra[key].(bool)
	return v
}

// GetMap reads a nested mapping attribute from Extra.
func (r Resource) GetMap(key string) map[string]any {
	v, _ := r.Extra[key].(map[string]any)
	return v
}

// GetSlice reads a list attribute from Extra.
func (r Resource) GetSlice(key string) []any {
	v, _ := r.Extra[key].([]any)
	return v
}

// FromMap builds a Resource from an open record, splitting core keys
// out of the mapping and keeping the rest in Extra.
func FromMap(record map[string]any) Resource {
	var r Resource
	for key, value := range record {
		switch key {
		case KeyService:
			r.Service = asString(value)
		case KeyType:
			r.Type = asString(value)
		case KeyID:
			r.ID = asString(value)
		case KeyARN:
			r.ARN = asString(value)
		case KeyRegion:
			r.Region = asString(value)
		case KeyAccountID:
			r.AccountID = asString(value)
		case KeySourceAccount:
			r.SourceAccount = asString(value)
		case KeyName:
			r.Name = asString(value)
		case KeyComplianceStatus:
			r.ComplianceStatus = asString(value)
		case KeyTags:
			r.Tags = asTags(value)
		default:
			r.SetExtra(key, value)
		}
	}
	return r
}

// ToMap flattens the resource back into an open record.
func (r Resource) ToMap() map[string]any {
	out := make(map[string]any, len(r.Extra)+10)
	for k, v := range r.Extra {
		out[k] = v
	}
	putNonEmpty(out, KeyService, r.Service)
	putNonEmpty(out, KeyType, r.Type)
	putNonEmpty(out, KeyID, r.ID)
	putNonEmpty(out, KeyARN, r.ARN)
	putNonEmpty(out, KeyRegion, r.Region)
	putNonEmpty(out, KeyAccountID, r.AccountID)
	putNonEmpty(out, KeySourceAccount, r.SourceAccount)
	putNonEmpty(out, KeyName, r.Name)
	putNonEmpty(out, KeyComplianceStatus, r.ComplianceStatus)
	if len(r.Tags) > 0 {
		tags := make(map[string]any, len(r.Tags))
		for k, v := range r.Tags {
			tags[k] = v
		}
		out[KeyTags] = tags
	}
	return out
}

func putNonEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTags(v any) map[string]string {
	switch val := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(val))
		for k, inner := range val {
			if s, ok := inner.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}

// CustomAttributeNames returns the sorted union of non-core attribute
// names across resources.
func CustomAttributeNames(resources []Resource) []string {
	seen := map[string]bool{}
	for _, r := range resources {
		for key := range r.Extra {
			seen[key] = true
		}
	}
	names := make([]string, 0, len(seen))
	for key := range seen {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}
