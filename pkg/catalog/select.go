package catalog

import (
	"github.com/google/uuid"

	"recordkeeper-hq/keeper/pkg/retention"
)

// SelectPolicies filters policies by kind and, when ids is non-empty, by id,
// then applies the catalog ordering. Stores that cannot filter natively use
// it on their full policy list.
func SelectPolicies(all []*retention.Policy, kind retention.Kind, ids []string) []*retention.Policy {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var out []*retention.Policy
	for _, p := range all {
		if p.Kind != kind {
			continue
		}
		if len(wanted) > 0 && !wanted[p.ID] {
			continue
		}
		out = append(out, p)
	}
	retention.SortPolicies(out)
	return out
}

// NewPolicyID returns a fresh policy identifier.
func NewPolicyID() string {
	return uuid.NewString()
}

// PreparePolicy fills the derived fields of a policy before it is stored: a
// generated id when none is set and the entity name when only the path is
// known.
func PreparePolicy(p *retention.Policy) {
	if p.ID == "" {
		p.ID = NewPolicyID()
	}
	if p.EntityName == "" {
		p.EntityName = retention.EntityName(p.EntityPath)
	}
}
