package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"
)

// Progress event types emitted while a run is in flight
const (
	EventPromptStart    = "prompt_start"
	EventPromptComplete = "prompt_complete"
)

// ProgressEvent reports one step of a run to an observer
type ProgressEvent struct {
	Type     string        `json:"type"`
	PromptID string        `json:"prompt_id"`
	Index    int           `json:"index"`
	Total    int           `json:"total"`
	Result   *PromptResult `json:"result,omitempty"`
}

// Experiment orchestrates the four-condition voting experiment
type Experiment struct {
	registry       *ModelRegistry
	generator      Generator
	settings       ExperimentSettings
	contextFetcher *PromptContextFetcher

	// OnProgress, if set, receives events one at a time in completion order
	OnProgress func(ProgressEvent)
}

// NewExperiment creates an experiment over registry using generator.
// Zero token limits and concurrency fall back to DefaultExperimentSettings.
func NewExperiment(registry *ModelRegistry, generator Generator, settings ExperimentSettings) *Experiment {
	return &Experiment{
		registry:  registry,
		generator: generator,
		settings:  settings.withDefaults(),
	}
}

// SetContextFetcher enables prompts that reference a URL
func (e *Experiment) SetContextFetcher(f *PromptContextFetcher) {
	e.contextFetcher = f
}

// Settings returns the effective settings
func (e *Experiment) Settings() ExperimentSettings {
	return e.settings
}

// voteSlot is one (condition, voter) result; outcome.Kind says which pointer is set
type voteSlot struct {
	outcome VoteOutcome
	record  *VoteRecord
	failure *ParseFailure
	missing *MissingVote
}

// RunPrompt runs all four conditions for one prompt.
// Structural errors abort the prompt and are recorded in PromptResult.Error;
// per-voter failures are recorded alongside the successful votes.
func (e *Experiment) RunPrompt(ctx context.Context, prompt Prompt) PromptResult {
	result := PromptResult{
		PromptID:      prompt.ID,
		Prompt:        prompt.Text,
		Votes:         []VoteRecord{},
		ParseFailures: []ParseFailure{},
		MissingVotes:  []MissingVote{},
	}

	set, err := e.BuildAnswerSet(ctx, prompt)
	result.AnswerSet = set
	if err != nil {
		logger.Errorw("prompt aborted", "prompt", prompt.ID, "error", err)
		result.Error = err.Error()
		return result
	}

	mappings, err := BuildScenarios(set, ScenarioRNG(e.settings.Seed, prompt.ID))
	if err != nil {
		logger.Errorw("prompt aborted", "prompt", prompt.ID, "error", err)
		result.Error = err.Error()
		return result
	}
	result.Mappings = mappings

	// Missing models cannot vote: they have no answer of their own in the set.
	voters := set.Participants()
	slots := make([][]voteSlot, len(mappings))

	var g errgroup.Group
	g.SetLimit(e.settings.VoteConcurrency)
	for m, mapping := range mappings {
		slots[m] = make([]voteSlot, len(voters))
		for v, voter := range voters {
			g.Go(func() error {
				slots[m][v] = e.castVote(ctx, mapping, voter)
				return nil
			})
		}
	}
	_ = g.Wait()

	for m := range mappings {
		for v := range voters {
			s := slots[m][v]
			switch s.outcome.Kind {
			case OutcomeResolved:
				result.Votes = append(result.Votes, *s.record)
			case OutcomeUnparseable:
				result.ParseFailures = append(result.ParseFailures, *s.failure)
			case OutcomeMissing:
				result.MissingVotes = append(result.MissingVotes, *s.missing)
			}
		}
	}

	logger.Infow("prompt complete",
		"prompt", prompt.ID,
		"answers", len(set.Answers),
		"missing_answers", len(set.Missing),
		"votes", len(result.Votes),
		"parse_failures", len(result.ParseFailures),
		"missing_votes", len(result.MissingVotes),
	)
	return result
}

// castVote elicits and resolves one (condition, voter) vote
func (e *Experiment) castVote(ctx context.Context, mapping *PresentationMapping, voter string) voteSlot {
	raw, err := e.ElicitVote(ctx, mapping, voter)
	if err != nil {
		logger.Warnw("vote missing", "prompt", mapping.PromptID, "condition", mapping.Condition, "voter", voter, "error", err)
		return voteSlot{
			outcome: VoteOutcome{Kind: OutcomeMissing, Reason: err.Error()},
			missing: &MissingVote{
				PromptID:     mapping.PromptID,
				Condition:    mapping.Condition,
				VoterModelID: voter,
				Error:        err.Error(),
			},
		}
	}

	record, failure := ResolveVote(raw, mapping, voter)
	if failure != nil {
		logger.Warnw("vote unparseable", "prompt", mapping.PromptID, "condition", mapping.Condition, "voter", voter, "reason", failure.Reason)
		return voteSlot{outcome: VoteOutcome{Kind: OutcomeUnparseable, Reason: failure.Reason}, failure: failure}
	}
	if !e.settings.ShouldCollectReasoning() {
		record.RawResponseText = ""
	}
	return voteSlot{outcome: VoteOutcome{Kind: OutcomeResolved, Slot: record.ChosenSlotIndex}, record: record}
}

// Run executes every prompt on a bounded worker pool and returns the run.
// A failing prompt never stops the others; only cancellation of ctx
// produces an error, and the partial run is still returned.
func (e *Experiment) Run(ctx context.Context, prompts []Prompt) (*ExperimentRun, error) {
	prompts, err := NormalizePrompts(prompts)
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, &ConfigError{Reason: "no prompts to run"}
	}

	run := &ExperimentRun{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Seed:      e.settings.Seed,
		Models:    e.registry.Specs(),
		Settings:  e.settings,
		Results:   make([]PromptResult, len(prompts)),
	}

	pool, err := ants.NewPool(e.settings.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt pool: %w", err)
	}
	defer pool.Release()

	var (
		wg         sync.WaitGroup
		progressMu sync.Mutex
	)
	emit := func(ev ProgressEvent) {
		if e.OnProgress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		e.OnProgress(ev)
	}

	for i, prompt := range prompts {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			emit(ProgressEvent{Type: EventPromptStart, PromptID: prompt.ID, Index: i, Total: len(prompts)})
			run.Results[i] = e.RunPrompt(ctx, prompt)
			emit(ProgressEvent{Type: EventPromptComplete, PromptID: prompt.ID, Index: i, Total: len(prompts), Result: &run.Results[i]})
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			run.Results[i] = PromptResult{
				PromptID:      prompt.ID,
				Prompt:        prompt.Text,
				Votes:         []VoteRecord{},
				ParseFailures: []ParseFailure{},
				MissingVotes:  []MissingVote{},
				Error:         fmt.Sprintf("failed to schedule prompt: %v", err),
			}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("experiment interrupted: %w", err)
	}
	return run, nil
}

// IsConfigError reports whether err is, or wraps, a ConfigError
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
