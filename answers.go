package main

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// BuildAnswerSet collects one answer per registered model for prompt.
// Models are queried in parallel; a failed model is recorded in Missing
// rather than aborting the others. The returned set is always complete
// (answers plus missing cover the registry), even when err is a ConfigError
// because fewer than two answers came back.
func (e *Experiment) BuildAnswerSet(ctx context.Context, prompt Prompt) (*AnswerSet, error) {
	promptText, err := e.resolvePromptText(ctx, prompt)
	if err != nil {
		return nil, &ConfigError{PromptID: prompt.ID, Reason: err.Error()}
	}

	ids := e.registry.IDs()
	texts := make([]string, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(e.settings.VoteConcurrency)
	for i, modelID := range ids {
		g.Go(func() error {
			text, err := e.generator.Generate(ctx, promptText, modelID, e.settings.AnswerConfig())
			if err == nil && strings.TrimSpace(text) == "" {
				err = &GenerationError{ModelID: modelID, Cause: ErrEmptyResponse}
			}
			if err != nil {
				logger.Warnw("answer generation failed", "prompt", prompt.ID, "model", modelID, "error", err)
				errs[i] = err
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	// Every task returns nil; failures are kept per model in errs.
	_ = g.Wait()

	set := &AnswerSet{
		PromptID: prompt.ID,
		Prompt:   promptText,
	}
	for i, modelID := range ids {
		if errs[i] != nil {
			set.Missing = append(set.Missing, MissingAnswer{ModelID: modelID, Error: errs[i].Error()})
			continue
		}
		set.Answers = append(set.Answers, Answer{
			ModelID:  modelID,
			PromptID: prompt.ID,
			Text:     texts[i],
		})
	}

	if err := ValidateAnswerSet(set, e.registry); err != nil {
		return set, err
	}
	return set, nil
}

// ValidateAnswerSet checks the structural invariants of an AnswerSet:
// model ids unique and registered, every registered model accounted for,
// and at least two real answers to vote on.
func ValidateAnswerSet(set *AnswerSet, registry *ModelRegistry) error {
	seen := make(map[string]bool)
	check := func(id string) error {
		if seen[id] {
			return &ConfigError{PromptID: set.PromptID, Reason: fmt.Sprintf("duplicate model id %s in answer set", id)}
		}
		if registry != nil && !registry.Contains(id) {
			return &ConfigError{PromptID: set.PromptID, Reason: fmt.Sprintf("unregistered model id %s in answer set", id)}
		}
		seen[id] = true
		return nil
	}
	for _, a := range set.Answers {
		if err := check(a.ModelID); err != nil {
			return err
		}
	}
	for _, m := range set.Missing {
		if err := check(m.ModelID); err != nil {
			return err
		}
	}
	if registry != nil && len(seen) != registry.Len() {
		return &ConfigError{PromptID: set.PromptID, Reason: fmt.Sprintf("answer set covers %d of %d models", len(seen), registry.Len())}
	}
	if len(set.Answers) < 2 {
		return &ConfigError{PromptID: set.PromptID, Reason: fmt.Sprintf("at least 2 answers are required to vote, got %d", len(set.Answers))}
	}
	return nil
}

// resolvePromptText appends fetched page text when the prompt references a URL
func (e *Experiment) resolvePromptText(ctx context.Context, prompt Prompt) (string, error) {
	if prompt.URL == "" {
		return prompt.Text, nil
	}
	if e.contextFetcher == nil {
		return "", fmt.Errorf("prompt %s references %s but no context fetcher is configured", prompt.ID, prompt.URL)
	}
	content, err := e.contextFetcher.Fetch(ctx, prompt.URL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch context for prompt %s: %w", prompt.ID, err)
	}
	if prompt.Text == "" {
		return content, nil
	}
	return fmt.Sprintf("%s\n\nContext:\n%s", prompt.Text, content), nil
}
