package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCascadeCommand(ctx *commandContext) *cobra.Command {
	var inboxTitle string
	var resume bool
	var auto bool
	cmd := &cobra.Command{
		Use:   "cascade BOOK",
		Short: "Run the full review cascade over every story of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			opts := engine.DefaultCascadeOptions()
			opts.InboxTitle = inboxTitle
			opts.Resume = resume
			if cmd.Flags().Changed("auto") {
				opts.AutoDecide = auto
			}
			state, err := engine.RunFullCascade(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, state)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPipelineState(state, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().StringVar(&inboxTitle, "inbox-title", "", "Inbox folder holding the canonical PDFs (defaults to the book folder name)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue from the last recorded story, stage and band")
	cmd.Flags().BoolVar(&auto, "auto", true, "Resolve pending findings with the automatic decision policy")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status BOOK",
		Short: "Show the last cascade checkpoint of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			state, err := engine.PipelineState(args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, state)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPipelineState(state, shouldColorize(out)))
			return nil
		},
	}
}

func newPassesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "passes BOOK STORY",
		Short: "Show the pass history of a story",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := ctx.engine()
			if err != nil {
				return err
			}
			log, err := engine.Passes(args[0], args[1])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, log)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPasses(log))
			return nil
		},
	}
}
