package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/canon"
)

func newGlossaryCommand(ctx *commandContext) *cobra.Command {
	glossaryCmd := &cobra.Command{
		Use:   "glossary",
		Short: "Inspect and review the book glossary",
	}
	glossaryCmd.AddCommand(newGlossaryShowCommand(ctx))
	glossaryCmd.AddCommand(newGlossaryReviewCommand(ctx))
	return glossaryCmd
}

func newGlossaryShowCommand(ctx *commandContext) *cobra.Command {
	var inboxTitle string
	cmd := &cobra.Command{
		Use:   "show BOOK",
		Short: "Resolve the context chain and print the merged glossary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			resolved, err := engine.Glossary(cmd.Context(), args[0], inboxTitle)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, struct {
					Book          string              `json:"book_rel_path"`
					Entries       []canon.Entry       `json:"entries"`
					CanonicalPDFs canon.PDFSet        `json:"canonical_pdfs"`
					ReviewMetrics canon.ReviewMetrics `json:"review_metrics"`
				}{resolved.BookRelPath, resolved.Glossary(), resolved.PDFs, resolved.ReviewMetrics})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderGlossary(resolved.Glossary()))
			fmt.Fprintf(out, "Context files: %d nodes, canonical PDFs: %d\n", len(resolved.Chain), len(resolved.PDFs.Files))
			return nil
		},
	}
	cmd.Flags().StringVar(&inboxTitle, "inbox-title", "", "Inbox folder holding the canonical PDFs")
	return cmd
}

func newGlossaryReviewCommand(ctx *commandContext) *cobra.Command {
	var decision, alias, notes string
	var allow, forbid []string
	cmd := &cobra.Command{
		Use:   "review BOOK TERM",
		Short: "Record a decision on a glossary term",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			row := canon.ReviewRow{
				Term:           args[1],
				Decision:       decision,
				PreferredAlias: alias,
				AllowedAdd:     canon.SplitTerms(strings.Join(allow, ",")),
				ForbiddenAdd:   canon.SplitTerms(strings.Join(forbid, ",")),
				Notes:          notes,
			}
			doc, err := engine.ReviewGlossary(cmd.Context(), args[0], "", []canon.ReviewRow{row})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, doc)
			}
			m := doc.Metrics
			fmt.Fprintf(cmd.OutOrStdout(), "Glossary review: %d terms (accepted=%d rejected=%d defer=%d pending=%d, unknown terms=%d)\n",
				m.Total, m.Accepted, m.Rejected, m.Defer, m.Pending, m.IgnoredMissingTerm)
			return nil
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "accepted", "Decision: accepted, rejected, defer or pending")
	cmd.Flags().StringVar(&alias, "alias", "", "Preferred replacement for forbidden variants")
	cmd.Flags().StringSliceVar(&allow, "allow", nil, "Variants to add to the allowed list")
	cmd.Flags().StringSliceVar(&forbid, "forbid", nil, "Variants to add to the forbidden list")
	cmd.Flags().StringVar(&notes, "notes", "", "Reviewer notes")
	return cmd
}
