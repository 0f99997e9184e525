package retention

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind distinguishes recurring retention sweeps from targeted soft-deletes.
type Kind string

const (
	// KindScheduled policies apply a retention window on every scheduled run.
	KindScheduled Kind = "scheduled"
	// KindOnDemand policies soft-delete rows matching a filter expression.
	KindOnDemand Kind = "on-demand"
)

// Action is the operation a policy applies to matching rows.
type Action string

const (
	// ActionArchive copies matching rows to columnar storage, then deletes them.
	ActionArchive Action = "archive"
	// ActionDelete removes matching rows (hard delete for scheduled policies,
	// soft-delete followed by purge for on-demand policies).
	ActionDelete Action = "delete"
)

// StorageSystem identifies where a policy's entity lives.
type StorageSystem string

const (
	// StorageBQ is the warehouse (tables addressed as dataset.table).
	StorageBQ StorageSystem = "BQ"
	// StorageGCS is the object store (folders addressed as bucket/name).
	StorageGCS StorageSystem = "GCS"
)

// Unit is the calendar unit of a retention or soft-delete period.
type Unit string

const (
	UnitYear  Unit = "year"
	UnitMonth Unit = "month"
	UnitDay   Unit = "day"
)

// ParseUnit parses a period unit case-insensitively ("YEAR", "Month", "day").
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitYear:
		return UnitYear, nil
	case UnitMonth:
		return UnitMonth, nil
	case UnitDay:
		return UnitDay, nil
	default:
		return "", fmt.Errorf("unknown period unit %q (want year, month or day)", s)
	}
}

// Period is a count of calendar units.
type Period struct {
	Value int  `yaml:"value" json:"value"`
	Unit  Unit `yaml:"unit" json:"unit"`
}

// String renders the period the way SQL interval literals expect it ("30 day").
func (p Period) String() string {
	return fmt.Sprintf("%d %s", p.Value, p.Unit)
}

// Before returns t moved back by the period using calendar arithmetic.
func (p Period) Before(t time.Time) time.Time {
	return p.shift(t, -p.Value)
}

// After returns t moved forward by the period using calendar arithmetic.
func (p Period) After(t time.Time) time.Time {
	return p.shift(t, p.Value)
}

func (p Period) shift(t time.Time, n int) time.Time {
	switch p.Unit {
	case UnitYear:
		return addMonthsClamped(t, 12*n)
	case UnitMonth:
		return addMonthsClamped(t, n)
	default:
		return t.AddDate(0, 0, n)
	}
}

// addMonthsClamped adds months without overflowing into the following month,
// so that March 31 minus one month is February 28/29 rather than March 2/3.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// Validate reports whether the period has a known unit and a non-negative value.
func (p Period) Validate() error {
	if _, err := ParseUnit(string(p.Unit)); err != nil {
		return err
	}
	if p.Value < 0 {
		return fmt.Errorf("period value must be non-negative, got %d", p.Value)
	}
	return nil
}

// Policy is a retention policy as loaded from the policy store. The engine
// treats it as read-only.
type Policy struct {
	ID            string        `yaml:"policy_id" json:"policy_id"`
	Kind          Kind          `yaml:"kind" json:"kind"`
	StorageSystem StorageSystem `yaml:"storage_system" json:"storage_system"`
	EntityName    string        `yaml:"entity_name" json:"entity_name"`
	EntityPath    string        `yaml:"entity_path" json:"entity_path"`
	Grouping      bool          `yaml:"grouping" json:"grouping"`
	EntityGroups  []string      `yaml:"entity_groups" json:"entity_groups"`
	Action        Action        `yaml:"policy_action" json:"policy_action"`

	// FilterExpression narrows scheduled policies and defines the candidate
	// rows of on-demand policies.
	FilterExpression string `yaml:"sql_filter_exp" json:"sql_filter_exp,omitempty"`

	// Scheduled policies.
	TimestampColumn string `yaml:"ts_column" json:"ts_column,omitempty"`
	Retention       Period `yaml:"retention" json:"retention"`

	// On-demand policies.
	SoftDelete Period `yaml:"softdelete" json:"softdelete"`

	Created time.Time `yaml:"date_created" json:"date_created"`
}

// Name returns the entity name, deriving it from the path when not set.
func (p *Policy) Name() string {
	if p.EntityName != "" {
		return p.EntityName
	}
	return EntityName(p.EntityPath)
}

// InScope reports whether an entity with the given group may be reached by
// this policy's cascade.
func (p *Policy) InScope(group string) bool {
	for _, g := range p.EntityGroups {
		if g == group {
			return true
		}
	}
	return false
}

// GroupsKey is the canonical string form of EntityGroups used for ordering.
func (p *Policy) GroupsKey() string {
	return strings.Join(p.EntityGroups, ",")
}

// Validate checks that every field the engine needs for this policy's kind
// and action is present. It returns a *ConfigurationError.
func (p *Policy) Validate() error {
	field := func(name, msg string) error {
		return NewConfigurationError(fmt.Sprintf("policy[%s].%s", p.ID, name), msg)
	}

	if p.ID == "" {
		return NewConfigurationError("policy.policy_id", "policy id is required")
	}
	if p.EntityPath == "" {
		return field("entity_path", "entity path is required")
	}
	switch p.StorageSystem {
	case StorageBQ, StorageGCS:
	default:
		return field("storage_system", fmt.Sprintf("unknown storage system %q", p.StorageSystem))
	}
	switch p.Action {
	case ActionArchive, ActionDelete:
	default:
		return field("policy_action", fmt.Sprintf("unknown action %q", p.Action))
	}
	if p.Grouping && len(p.EntityGroups) == 0 {
		return field("entity_groups", "grouping requires at least one entity group")
	}

	switch p.Kind {
	case KindScheduled:
		if p.TimestampColumn == "" {
			return field("ts_column", "timestamp column is required for scheduled policies")
		}
		if err := p.Retention.Validate(); err != nil {
			return field("retention", err.Error())
		}
	case KindOnDemand:
		if strings.TrimSpace(p.FilterExpression) == "" {
			return field("sql_filter_exp", "filter expression is required for on-demand policies")
		}
		// A period of zero or less makes tombstoned rows purge-eligible the
		// same day, so only the unit is checked.
		if _, err := ParseUnit(string(p.SoftDelete.Unit)); err != nil {
			return field("softdelete", err.Error())
		}
	default:
		return field("kind", fmt.Sprintf("unknown policy kind %q", p.Kind))
	}
	return nil
}

// ContainsGrouping reports whether any policy cascades to related entities.
func ContainsGrouping(policies []*Policy) bool {
	for _, p := range policies {
		if p.Grouping {
			return true
		}
	}
	return false
}

// SortPolicies orders policies by entity name, then entity groups, then
// action. Storage system and id break remaining ties so runs are reproducible.
func SortPolicies(policies []*Policy) {
	sort.SliceStable(policies, func(i, j int) bool {
		a, b := policies[i], policies[j]
		if a.Name() != b.Name() {
			return a.Name() < b.Name()
		}
		if a.GroupsKey() != b.GroupsKey() {
			return a.GroupsKey() < b.GroupsKey()
		}
		if a.Action != b.Action {
			return a.Action < b.Action
		}
		if a.StorageSystem != b.StorageSystem {
			return a.StorageSystem < b.StorageSystem
		}
		return a.ID < b.ID
	})
}

// Mode selects which kind of policies a run processes.
type Mode string

const (
	ModeScheduled Mode = "scheduled"
	ModeOnDemand  Mode = "on-demand"
)

// Kind returns the policy kind processed in this mode.
func (m Mode) Kind() Kind {
	if m == ModeOnDemand {
		return KindOnDemand
	}
	return KindScheduled
}

// ParseMode accepts the mode spellings of the command line: "scheduled" or
// "s", and "on-demand", "d" or "on_demand". Anything else is a
// ConfigurationError.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scheduled", "s":
		return ModeScheduled, nil
	case "on-demand", "d", "on_demand":
		return ModeOnDemand, nil
	default:
		return "", NewConfigurationError("mode",
			fmt.Sprintf("invalid mode %q: want \"scheduled\" (or \"s\") or \"on-demand\" (or \"d\")", s))
	}
}

// ParsePolicyIDs splits a comma-delimited id list, dropping blanks.
func ParsePolicyIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
