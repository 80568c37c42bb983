package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"folio/internal/canon"
	"folio/internal/review"
	"folio/internal/reviewstore"
	"folio/internal/textutil"
)

const evidenceWidth = 60

func renderFindings(findings []review.Finding) string {
	if len(findings) == 0 {
		return "No findings"
	}
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		decision := string(f.Decision)
		if f.SelectedOption != "" {
			decision += " " + f.SelectedOption
		}
		rows = append(rows, []string{
			f.ID,
			string(f.Severity),
			strconv.Itoa(f.PageNumber),
			f.Field,
			textutil.Preview(f.Evidence, evidenceWidth),
			decision,
			yesNo(f.Open),
		})
	}
	return renderTable(
		[]string{"ID", "Severity", "Page", "Field", "Evidence", "Decision", "Open"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

func renderAlerts(alerts []review.Alert) string {
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{a.ID, strconv.Itoa(a.PageNumber), a.Field, textutil.Preview(a.Evidence, evidenceWidth), a.Status})
	}
	return renderTable(
		[]string{"Alert", "Page", "Field", "Evidence", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	)
}

func formatMetrics(m review.Metrics) string {
	return fmt.Sprintf("critical=%d major=%d minor=%d info=%d", m.CriticalOpen, m.MajorOpen, m.MinorOpen, m.InfoOpen)
}

func renderPipelineState(state *reviewstore.PipelineState, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader("Cascade "+state.BookRelPath, colorize) {
		b.WriteString(line + "\n")
	}
	kind := statusInfo
	switch state.Phase {
	case reviewstore.PhaseCompleted:
		kind = statusOK
	case reviewstore.PhaseBlocked:
		kind = statusError
	}
	b.WriteString(renderStatusLine("Phase", kind, state.Phase, colorize) + "\n")
	b.WriteString(renderStatusLine("Run", statusInfo, state.RunID, colorize) + "\n")
	if state.BlockedStory != nil {
		blocked := state.BlockedStory
		message := fmt.Sprintf("story %s %s/%s (%s)", blocked.StoryID, blocked.Stage, blocked.SeverityBand, blocked.Reason)
		b.WriteString(renderStatusLine("Blocked", statusError, message, colorize) + "\n")
	} else if state.CurrentStoryID != "" {
		message := fmt.Sprintf("story %s %s/%s pass %d (%s)", state.CurrentStoryID, state.Stage, state.SeverityBand, state.PassIndex, state.ConvergenceStatus)
		b.WriteString(renderStatusLine("Current", statusInfo, message, colorize) + "\n")
	}
	totals := state.Totals
	b.WriteString(renderStatusLine("Ready", statusInfo, fmt.Sprintf("%d of %d stories", totals.Ready, totals.Stories), colorize) + "\n")
	b.WriteString(renderStatusLine("Open", statusInfo, fmt.Sprintf("critical=%d major=%d minor=%d info=%d",
		totals.CriticalOpen, totals.MajorOpen, totals.MinorOpen, totals.InfoOpen), colorize) + "\n")

	rows := make([][]string, 0, len(state.Stories))
	for _, row := range state.Stories {
		rows = append(rows, []string{row.StoryID, row.Status, stageCell(row.TextStage), stageCell(row.PromptStage), row.Error})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"Story", "Status", "Text", "Prompt", "Error"}, rows, nil) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func stageCell(summary *reviewstore.StageSummary) string {
	if summary == nil {
		return "-"
	}
	if summary.Blocked() {
		return fmt.Sprintf("%s @ %s", summary.Status, summary.BlockedSeverity)
	}
	passes := 0
	for _, band := range summary.Severities {
		passes += band.Passes
	}
	return fmt.Sprintf("%s (%d passes)", summary.Status, passes)
}

func renderPasses(log *reviewstore.PassLog) string {
	if len(log.Passes) == 0 {
		return "No passes recorded"
	}
	rows := make([][]string, 0, len(log.Passes))
	for _, p := range log.Passes {
		rows = append(rows, []string{
			p.Timestamp,
			string(p.Stage),
			string(p.SeverityBand),
			strconv.Itoa(p.PassIndex),
			p.Mode,
			strconv.Itoa(p.FindingsCount),
			strconv.Itoa(p.AlertsOpen),
			yesNo(p.AppliedChanges),
			yesNo(p.Converged),
		})
	}
	return renderTable(
		[]string{"Timestamp", "Stage", "Band", "Pass", "Mode", "Findings", "Open", "Applied", "Converged"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight},
	)
}

func renderGlossary(entries []canon.Entry) string {
	if len(entries) == 0 {
		return "Glossary is empty"
	}
	sorted := append([]canon.Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
	rows := make([][]string, 0, len(sorted))
	for _, e := range sorted {
		rows = append(rows, []string{
			e.Term,
			e.Target(),
			strings.Join(e.Allowed, ", "),
			strings.Join(e.Forbidden, ", "),
			e.SourceRel,
		})
	}
	return renderTable([]string{"Term", "Use", "Allowed", "Forbidden", "Source"}, rows, nil)
}
