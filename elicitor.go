package main

import (
	"context"
	"errors"
)

// ElicitVote asks voter to vote on mapping and returns the raw response text.
// It makes exactly one generation call and performs no parsing. Failures are
// returned as *ElicitationError tagged with (prompt, condition, voter).
func (e *Experiment) ElicitVote(ctx context.Context, mapping *PresentationMapping, voterModelID string) (string, error) {
	prompt := BuildVotingPrompt(mapping, voterModelID)
	text, err := e.generator.Generate(ctx, prompt, voterModelID, e.settings.VoteConfig())
	if err != nil {
		var genErr *GenerationError
		if !errors.As(err, &genErr) {
			err = &GenerationError{ModelID: voterModelID, Cause: err}
		}
		return "", &ElicitationError{
			PromptID:     mapping.PromptID,
			Condition:    mapping.Condition,
			VoterModelID: voterModelID,
			Err:          err,
		}
	}
	return text, nil
}
