package main

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is the cause recorded when a model returns only whitespace
var ErrEmptyResponse = errors.New("empty response")

// ConfigError reports an invalid experiment setup.
// It aborts the affected prompt only; the run continues with the next one.
type ConfigError struct {
	PromptID string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.PromptID == "" {
		return "config error: " + e.Reason
	}
	return fmt.Sprintf("config error for prompt %s: %s", e.PromptID, e.Reason)
}

// GenerationError reports a failed upstream model call
type GenerationError struct {
	ModelID string
	Cause   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for model %s: %v", e.ModelID, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// ElicitationError tags a failed voting call with the triple it belongs to
type ElicitationError struct {
	PromptID     string
	Condition    TestCondition
	VoterModelID string
	Err          error
}

func (e *ElicitationError) Error() string {
	return fmt.Sprintf("vote elicitation failed (prompt=%s condition=%s voter=%s): %v",
		e.PromptID, e.Condition, e.VoterModelID, e.Err)
}

func (e *ElicitationError) Unwrap() error {
	return e.Err
}
