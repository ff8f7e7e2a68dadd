// Package normalizer turns raw discovery output into a consistent,
// deduplicated resource list the analyzers can work on.
package normalizer

import (
	"fmt"
	"strings"

	"github.com/yairfalse/rikasta/telemetry"
	"github.com/yairfalse/rikasta/types"
)

// Normalizer standardizes and deduplicates raw resource records.
type Normalizer struct {
	logger *telemetry.Logger
}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{
		logger: telemetry.NewLogger("normalizer"),
	}
}

// Normalize extracts resource records from mixed container shapes,
// standardizes names, repairs identifiers from ARNs, and deduplicates.
// A normalization error aborts the whole run; malformed individual
// items are dropped silently per the input contract.
func (n *Normalizer) Normalize(rawItems []any) ([]types.Resource, error) {
	if rawItems == nil {
		return nil, fmt.Errorf("raw items must not be nil")
	}

	extracted := n.extract(rawItems)

	resources := make([]types.Resource, 0, len(extracted))
	for _, record := range extracted {
		r := types.FromMap(record)
		r = n.standardizeService(r)
		r = n.repairType(r)
		r = n.reclassifyNetwork(r)
		r = n.repairIdentifiers(r)
		resources = append(resources, r)
	}

	deduped := n.deduplicate(resources)

	n.logger.Info().
		Int("raw_items", len(rawItems)).
		Int("extracted", len(extracted)).
		Int("normalized", len(deduped)).
		Msg("normalization complete")

	return deduped, nil
}

// extract flattens the mixed container shapes discovery produces into
// a flat record list. Non-mapping, non-list items are dropped.
func (n *Normalizer) extract(items []any) []map[string]any {
	var records []map[string]any
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			records = append(records, n.extractContainer(v)...)
		case []any:
			records = append(records, n.extract(v)...)
		default:
			n.logger.Debug().
				Str("item_type", fmt.Sprintf("%T", item)).
				Msg("dropping non-record item")
		}
	}
	return records
}

// extractContainer unwraps known container shapes; a mapping that is
// not a recognized container is itself a resource record.
func (n *Normalizer) extractContainer(m map[string]any) []map[string]any {
	if list, ok := m[fieldAllDiscovered].([]any); ok {
		return n.recordsFromList(list)
	}

	_, hasCompliant := m[fieldCompliant]
	_, hasNonCompliant := m[fieldNonCompliant]
	_, hasUntagged := m[fieldUntagged]
	if hasCompliant || hasNonCompliant || hasUntagged {
		var records []map[string]any
		for _, field := range []string{fieldCompliant, fieldNonCompliant, fieldUntagged} {
			if list, ok := m[field].([]any); ok {
				records = append(records, n.recordsFromList(list)...)
			}
		}
		return records
	}

	return []map[string]any{m}
}

func (n *Normalizer) recordsFromList(list []any) []map[string]any {
	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if record, ok := item.(map[string]any); ok {
			records = append(records, record)
		}
	}
	return records
}

// standardizeService rewrites known service name variants to canonical
// upper-case codes. Unknown services pass through unchanged.
func (n *Normalizer) standardizeService(r types.Resource) types.Resource {
	if canonical, ok := serviceAliases[strings.ToLower(strings.TrimSpace(r.Service))]; ok {
		r.Service = canonical
	}
	return r
}

// repairType rewrites known type-name variants to canonical hyphenated
// forms.
func (n *Normalizer) repairType(r types.Resource) types.Resource {
	if canonical, ok := typeAliases[strings.ToLower(strings.TrimSpace(r.Type))]; ok {
		r.Type = canonical
	}
	return r
}

// reclassifyNetwork moves VPC-family types under the VPC service,
// whatever service discovery attributed them to.
func (n *Normalizer) reclassifyNetwork(r types.Resource) types.Resource {
	if networkPrimitiveTypes[r.Type] {
		r.Service = ServiceVPC
	}
	return r
}

// repairIdentifiers fills a missing id and placeholder account fields
// from the ARN. Populated, non-placeholder values are never overwritten.
func (n *Normalizer) repairIdentifiers(r types.Resource) types.Resource {
	if r.ARN == "" {
		return r
	}

	if r.ID == "" {
		if id := ResourceIDFromARN(r.ARN); id != "" {
			r.ID = id
		}
	}

	account := AccountIDFromARN(r.ARN)
	if account == "" {
		return r
	}
	if accountPlaceholders[r.AccountID] {
		r.AccountID = account
	}
	if accountPlaceholders[r.SourceAccount] {
		r.SourceAccount = account
	}
	return r
}

// deduplicate groups resources by key and keeps, per group, the record
// with strictly more populated fields; ties keep the first seen.
// First-appearance order is preserved for the survivors.
func (n *Normalizer) deduplicate(resources []types.Resource) []types.Resource {
	order := make([]string, 0, len(resources))
	best := make(map[string]types.Resource, len(resources))

	for _, r := range resources {
		key := r.Key()
		current, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = r
			continue
		}
		if r.FieldCount() > current.FieldCount() {
			best[key] = r
		}
	}

	out := make([]types.Resource, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// ResourceIDFromARN derives a resource-local id from the ARN's resource
// part: the final /-delimited token, or the whole segment if no /.
func ResourceIDFromARN(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return ""
	}
	resourcePart := parts[5]
	if idx := strings.LastIndex(resourcePart, "/"); idx >= 0 {
		return resourcePart[idx+1:]
	}
	return resourcePart
}

// AccountIDFromARN returns the ARN's account segment (5th colon field).
func AccountIDFromARN(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return ""
	}
	return parts[4]
}
