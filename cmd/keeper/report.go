package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"recordkeeper-hq/keeper/pkg/retention/cascade"
)

// reportView is the printed form of a run report.
type reportView struct {
	*cascade.Report
	RunStatus string          `json:"status"`
	Totals    cascade.Summary `json:"summary"`
}

func newReportView(r *cascade.Report) reportView {
	return reportView{Report: r, RunStatus: r.Status(), Totals: r.Summary()}
}

func (v reportView) WriteText(w io.Writer) error {
	mode := string(v.Mode)
	if v.DryRun {
		mode += ", dry run"
	}
	fmt.Fprintf(w, "Run %s (%s): %s in %s\n", v.RunID, mode, v.RunStatus, v.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Policies: %d total, %d succeeded, %d skipped, %d unsupported, %d failed\n",
		v.Totals.Total, v.Totals.Succeeded, v.Totals.Skipped, v.Totals.Unsupported, v.Totals.Failed)
	if len(v.Policies) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range v.Policies {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\n", p.PolicyID, p.Entity, p.Kind, p.Action, p.Status, policyDetail(p))
		for _, s := range p.Steps {
			fmt.Fprintf(tw, "\t  %s\t%s\t%s\t%s\n", s.Entity, s.Action, stepStatus(s), stepDetail(s))
		}
	}
	return tw.Flush()
}

func (v reportView) Header() []string {
	return []string{"policy_id", "entity", "kind", "action", "storage_system", "status", "step_entity", "step_action", "rows", "detail"}
}

// Rows emits one row per step, or one row for a policy without steps.
func (v reportView) Rows() [][]string {
	var rows [][]string
	for _, p := range v.Policies {
		base := []string{p.PolicyID, p.Entity, string(p.Kind), string(p.Action), string(p.Storage), string(p.Status)}
		if len(p.Steps) == 0 {
			rows = append(rows, append(base, "", "", "", policyDetail(p)))
			continue
		}
		for _, s := range p.Steps {
			row := append(append([]string(nil), base...), s.Entity, s.Action, strconv.FormatInt(s.Rows, 10), stepDetail(s))
			rows = append(rows, row)
		}
	}
	return rows
}

func policyDetail(p *cascade.PolicyReport) string {
	switch {
	case p.Error != "":
		return p.Error
	case p.Reason != "":
		return p.Reason
	}
	return ""
}

func stepStatus(s cascade.Step) string {
	switch {
	case s.Error != "":
		return "failed"
	case s.Skipped:
		return "skipped"
	}
	return "ok"
}

func stepDetail(s cascade.Step) string {
	var parts []string
	if s.Rows >= 0 && !s.Skipped {
		parts = append(parts, fmt.Sprintf("%d rows", s.Rows))
	}
	if s.Reason != "" {
		parts = append(parts, s.Reason)
	}
	if s.Error != "" {
		parts = append(parts, s.Error)
	}
	return strings.Join(parts, ", ")
}
