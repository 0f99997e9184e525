package retention

import (
	"errors"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"scheduled", ModeScheduled, false},
		{"s", ModeScheduled, false},
		{" S ", ModeScheduled, false},
		{"on-demand", ModeOnDemand, false},
		{"d", ModeOnDemand, false},
		{"on_demand", ModeOnDemand, false},
		{"On-Demand", ModeOnDemand, false},
		{"weekly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMode(%q) expected error", tt.input)
				}
				if !IsConfigurationError(err) {
					t.Errorf("ParseMode(%q) error = %T, want *ConfigurationError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParsePolicyIDs(t *testing.T) {
	got := ParsePolicyIDs(" a, b,,c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("ParsePolicyIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParsePolicyIDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if ids := ParsePolicyIDs(""); len(ids) != 0 {
		t.Errorf("ParsePolicyIDs(\"\") = %v, want empty", ids)
	}
}

func TestParseUnit(t *testing.T) {
	for _, in := range []string{"YEAR", "year", "Month", "DAY"} {
		if _, err := ParseUnit(in); err != nil {
			t.Errorf("ParseUnit(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParseUnit("week"); err == nil {
		t.Error("ParseUnit(\"week\") expected error")
	}
}

func TestPeriod_Before(t *testing.T) {
	tests := []struct {
		name   string
		period Period
		now    time.Time
		want   time.Time
	}{
		{
			name:   "one year",
			period: Period{Value: 1, Unit: UnitYear},
			now:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "leap day minus one year clamps",
			period: Period{Value: 1, Unit: UnitYear},
			now:    time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2023, 2, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			name:   "end of month minus one month clamps",
			period: Period{Value: 1, Unit: UnitMonth},
			now:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "thirty days",
			period: Period{Value: 30, Unit: UnitDay},
			now:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.period.Before(tt.now); !got.Equal(tt.want) {
				t.Errorf("Before() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeriod_After(t *testing.T) {
	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := (Period{Value: 0, Unit: UnitDay}).After(today); !got.Equal(today) {
		t.Errorf("zero period After() = %v, want %v", got, today)
	}
	want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if got := (Period{Value: 30, Unit: UnitDay}).After(today); !got.Equal(want) {
		t.Errorf("30 day After() = %v, want %v", got, want)
	}
}

func validScheduled() *Policy {
	return &Policy{
		ID:              "p1",
		Kind:            KindScheduled,
		StorageSystem:   StorageBQ,
		EntityPath:      "sales.orders",
		Action:          ActionDelete,
		TimestampColumn: "created_at",
		Retention:       Period{Value: 1, Unit: UnitYear},
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Policy)
		wantErr bool
	}{
		{"valid scheduled", func(p *Policy) {}, false},
		{"missing id", func(p *Policy) { p.ID = "" }, true},
		{"missing path", func(p *Policy) { p.EntityPath = "" }, true},
		{"bad storage", func(p *Policy) { p.StorageSystem = "S3" }, true},
		{"bad action", func(p *Policy) { p.Action = "shred" }, true},
		{"grouping without groups", func(p *Policy) { p.Grouping = true }, true},
		{"missing ts column", func(p *Policy) { p.TimestampColumn = "" }, true},
		{"bad unit", func(p *Policy) { p.Retention.Unit = "week" }, true},
		{"unknown kind", func(p *Policy) { p.Kind = "hourly" }, true},
		{
			name: "valid on-demand",
			mutate: func(p *Policy) {
				p.Kind = KindOnDemand
				p.TimestampColumn = ""
				p.FilterExpression = "customer_id = 7"
				p.SoftDelete = Period{Value: 30, Unit: UnitDay}
			},
		},
		{
			name: "on-demand with negative soft-delete period",
			mutate: func(p *Policy) {
				p.Kind = KindOnDemand
				p.TimestampColumn = ""
				p.FilterExpression = "customer_id = 7"
				p.SoftDelete = Period{Value: -1, Unit: UnitDay}
			},
		},
		{
			name: "on-demand with bad soft-delete unit",
			mutate: func(p *Policy) {
				p.Kind = KindOnDemand
				p.FilterExpression = "customer_id = 7"
				p.SoftDelete = Period{Value: 3, Unit: "week"}
			},
			wantErr: true,
		},
		{"negative retention", func(p *Policy) { p.Retention.Value = -1 }, true},
		{
			name: "on-demand without filter",
			mutate: func(p *Policy) {
				p.Kind = KindOnDemand
				p.SoftDelete = Period{Value: 30, Unit: UnitDay}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validScheduled()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			if err != nil && !IsConfigurationError(err) {
				t.Errorf("Validate() error type = %T, want *ConfigurationError", err)
			}
		})
	}
}

func TestPolicy_InScope(t *testing.T) {
	p := &Policy{EntityGroups: []string{"Sales", "Finance"}}
	if !p.InScope("Sales") {
		t.Error("InScope(Sales) = false, want true")
	}
	if p.InScope("Ops") {
		t.Error("InScope(Ops) = true, want false")
	}
	if p.InScope("") {
		t.Error("InScope(\"\") = true, want false")
	}
}

func TestSortPolicies(t *testing.T) {
	policies := []*Policy{
		{ID: "4", EntityPath: "s.orders", EntityGroups: []string{"Sales"}, Action: ActionDelete},
		{ID: "3", EntityPath: "s.orders", EntityGroups: []string{"Sales"}, Action: ActionArchive},
		{ID: "2", EntityPath: "s.customers", EntityGroups: []string{"Sales"}},
		{ID: "1", EntityPath: "s.orders", EntityGroups: []string{"Finance"}, Action: ActionDelete},
	}
	SortPolicies(policies)

	want := []string{"2", "1", "3", "4"}
	for i, id := range want {
		if policies[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, policies[i].ID, id)
		}
	}
}

func TestContainsGrouping(t *testing.T) {
	if ContainsGrouping([]*Policy{{}, {}}) {
		t.Error("ContainsGrouping() = true for ungrouped policies")
	}
	if !ContainsGrouping([]*Policy{{}, {Grouping: true}}) {
		t.Error("ContainsGrouping() = false with a grouped policy")
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")

	qe := NewQueryExecutionError("sales.orders", "delete from sales.orders", cause)
	if !errors.Is(qe, cause) {
		t.Error("QueryExecutionError does not unwrap to its cause")
	}

	var wrapped error = NewJobPreconditionError("delete-orders", cause)
	if !IsJobPrecondition(wrapped) {
		t.Error("IsJobPrecondition() = false")
	}
	if IsJobPrecondition(qe) {
		t.Error("IsJobPrecondition() = true for a query error")
	}
}
