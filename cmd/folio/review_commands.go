package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/cascade"
)

func newReviewCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newAuditCommand(ctx),
		newDetectCommand(ctx),
		newDecideCommand(ctx),
		newChooseCommand(ctx),
		newContrastCommand(ctx),
	}
}

func addBandFlags(cmd *cobra.Command, flags *bandFlags, severityHelp string) {
	cmd.Flags().StringVar(&flags.stage, "stage", "text", "Review stage (text or prompt)")
	cmd.Flags().StringVar(&flags.severity, "severity", "", severityHelp)
}

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var flags bandFlags
	cmd := &cobra.Command{
		Use:   "audit BOOK STORY",
		Short: "List the findings of a story without writing anything",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, severity, err := flags.parse(true)
			if err != nil {
				return err
			}
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			res, err := engine.RunAudit(cmd.Context(), args[0], args[1], stage, severity)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderFindings(res.Findings))
			fmt.Fprintf(out, "Open findings: %d (%s)\n", res.OpenFindings, formatMetrics(res.Metrics))
			return nil
		},
	}
	addBandFlags(cmd, &flags, "Severity band (empty audits every band)")
	return cmd
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var flags bandFlags
	var pass int
	cmd := &cobra.Command{
		Use:   "detect BOOK STORY",
		Short: "Run a detection pass and refresh the review sidecars",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, severity, err := flags.parse(false)
			if err != nil {
				return err
			}
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			res, err := engine.RunDetectionPass(cmd.Context(), args[0], args[1], stage, severity, pass)
			if err != nil {
				return err
			}
			return printPass(cmd, ctx, res)
		},
	}
	addBandFlags(cmd, &flags, "Severity band")
	cmd.Flags().IntVar(&pass, "pass", 1, "Pass index recorded in the sidecars")
	return cmd
}

func newDecideCommand(ctx *commandContext) *cobra.Command {
	var flags bandFlags
	var pass int
	cmd := &cobra.Command{
		Use:   "decide BOOK STORY",
		Short: "Apply accepted decisions and record a decision pass",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, severity, err := flags.parse(false)
			if err != nil {
				return err
			}
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			res, err := engine.RunDecisionPass(cmd.Context(), args[0], args[1], stage, severity, pass)
			if err != nil {
				return err
			}
			return printPass(cmd, ctx, res)
		},
	}
	addBandFlags(cmd, &flags, "Severity band")
	cmd.Flags().IntVar(&pass, "pass", 1, "Pass index of this decision pass")
	return cmd
}

func newChooseCommand(ctx *commandContext) *cobra.Command {
	var decision, option, notes string
	cmd := &cobra.Command{
		Use:   "choose BOOK STORY FINDING_ID",
		Short: "Record a reviewer decision for a finding",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseDecision(decision)
			if err != nil {
				return err
			}
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			rec, err := engine.Choose(cmd.Context(), cascade.ChoiceRequest{
				Book:      args[0],
				StoryID:   args[1],
				FindingID: args[2],
				Decision:  parsed,
				Option:    option,
				Notes:     notes,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, rec)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recorded %s for %s", rec.Decision, rec.FindingID)
			if rec.SelectedOption != "" {
				fmt.Fprintf(out, " (option %s)", rec.SelectedOption)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "accepted", "Decision: accepted, rejected, defer or pending")
	cmd.Flags().StringVar(&option, "option", "", "Suggestion to apply when accepting (A, B or C)")
	cmd.Flags().StringVar(&notes, "notes", "", "Reviewer notes")
	return cmd
}

func newContrastCommand(ctx *commandContext) *cobra.Command {
	var flags bandFlags
	cmd := &cobra.Command{
		Use:   "contrast BOOK STORY",
		Short: "Check a story against the contrast rules of one band",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, severity, err := flags.parse(false)
			if err != nil {
				return err
			}
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			doc, err := engine.RunContrast(cmd.Context(), args[0], args[1], stage, severity)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, doc)
			}
			out := cmd.OutOrStdout()
			if len(doc.Alerts) > 0 {
				fmt.Fprintln(out, renderAlerts(doc.Alerts))
			}
			kind := statusOK
			if doc.AlertsOpen > 0 {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Contrast", kind, fmt.Sprintf("%d open alerts", doc.AlertsOpen), shouldColorize(out)))
			return nil
		},
	}
	addBandFlags(cmd, &flags, "Severity band")
	return cmd
}

func printPass(cmd *cobra.Command, ctx *commandContext, res *cascade.PassResult) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, res)
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader(fmt.Sprintf("%s %s/%s pass %d", res.StoryID, res.Stage, res.Severity, res.PassIndex), colorize) {
		fmt.Fprintln(out, line)
	}
	if len(res.Findings) > 0 {
		fmt.Fprintln(out, renderFindings(res.Findings))
	}
	if len(res.Alerts) > 0 {
		fmt.Fprintln(out, renderAlerts(res.Alerts))
	}
	kind := statusOK
	message := "converged"
	if !res.Converged {
		kind = statusWarn
		if res.Blocking {
			kind = statusError
		}
		message = fmt.Sprintf("%d open findings, %d open alerts", res.OpenFindings, res.OpenAlerts)
	}
	fmt.Fprintln(out, renderStatusLine("Band", kind, message, colorize))
	fmt.Fprintln(out, renderStatusLine("Applied changes", statusInfo, yesNo(res.AppliedChanges), colorize))
	return nil
}
