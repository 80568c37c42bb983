package main

import (
	"fmt"
	"strings"

	"folio/internal/review"
)

type bandFlags struct {
	stage    string
	severity string
}

func (f bandFlags) parse(allowAll bool) (review.Stage, review.Severity, error) {
	stage, err := review.ParseStage(f.stage)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(f.severity) == "" {
		if allowAll {
			return stage, "", nil
		}
		return "", "", fmt.Errorf("--severity is required (critical, major, minor or info)")
	}
	severity, err := review.ParseSeverity(f.severity)
	if err != nil {
		return "", "", err
	}
	return stage, severity, nil
}

func parseDecision(value string) (review.Decision, error) {
	if !review.ValidDecision(value) {
		return "", fmt.Errorf("unknown decision %q (accepted, rejected, defer or pending)", value)
	}
	return review.ParseDecision(value), nil
}
