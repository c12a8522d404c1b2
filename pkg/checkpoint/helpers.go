package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/minerva/pkg/resolver"
)

// NewCheckpoint creates a checkpoint with a fresh run ID for the given input,
// before any stage has completed.
func NewCheckpoint(input string) *LinkCheckpoint {
	now := time.Now()
	return &LinkCheckpoint{
		RunID:         uuid.New().String(),
		Input:         input,
		Step:          resolver.StepNone,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// Progress returns the state to resume the resolver from.
func (c *LinkCheckpoint) Progress() resolver.Progress {
	return resolver.Progress{Step: c.Step, Candidates: c.Candidates, Minidump: c.Minidump}
}

// Completed reports whether every stage has run.
func (c *LinkCheckpoint) Completed() bool {
	steps := resolver.Steps()
	return c.Step == steps[len(steps)-1]
}

// CanRetry determines if a checkpoint should be retried based on attempt count and age
func (c *LinkCheckpoint) CanRetry(maxAttempts int, maxAge time.Duration) bool {
	if c.AttemptCount >= maxAttempts {
		return false
	}
	return time.Since(c.CreatedAt) <= maxAge
}

// GetProgress returns a human-readable progress description
func (c *LinkCheckpoint) GetProgress() string {
	steps := append([]resolver.Step{resolver.StepNone}, resolver.Steps()...)
	for i, step := range steps {
		if step == c.Step {
			percentage := float64(i) / float64(len(steps)-1) * 100
			name := string(step)
			if name == "" {
				name = "initial"
			}
			return fmt.Sprintf("%.0f%% (%s)", percentage, name)
		}
	}
	return "Unknown step"
}

// Summary provides a human-readable summary of the checkpoint
func (c *LinkCheckpoint) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run: %s\n", c.RunID)
	fmt.Fprintf(&sb, "Input: %s\n", c.Input)
	fmt.Fprintf(&sb, "Progress: %s\n", c.GetProgress())
	fmt.Fprintf(&sb, "Created: %s\n", c.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Last Updated: %s\n", c.LastUpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Attempts: %d\n", c.AttemptCount)
	if c.LastError != "" {
		fmt.Fprintf(&sb, "Last Error: %s\n", c.LastError)
	}
	if c.Candidates != nil {
		fmt.Fprintf(&sb, "Mentions: %d\n", c.Candidates.Len())
	}
	if c.Minidump != nil {
		fmt.Fprintf(&sb, "Records: %d\n", len(c.Minidump))
	}
	return sb.String()
}

// Hook returns a resolver checkpoint callback that saves checkpoint after
// every stage.
func (m *Manager) Hook(checkpoint *LinkCheckpoint) resolver.CheckpointFunc {
	return func(ctx context.Context, p resolver.Progress) error {
		checkpoint.Step = p.Step
		checkpoint.Candidates = p.Candidates
		checkpoint.Minidump = p.Minidump
		return m.Save(ctx, checkpoint)
	}
}

// LoadOrCreate returns the most recent unfinished checkpoint for input, or
// saves and returns a new one. The boolean reports whether a checkpoint was
// resumed.
func (m *Manager) LoadOrCreate(ctx context.Context, input string) (*LinkCheckpoint, bool, error) {
	existing, err := m.Latest(ctx, input)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	checkpoint := NewCheckpoint(input)
	if err := m.Save(ctx, checkpoint); err != nil {
		return nil, false, err
	}
	return checkpoint, false, nil
}

// Latest returns the most recently updated unfinished checkpoint for input,
// or nil.
func (m *Manager) Latest(ctx context.Context, input string) (*LinkCheckpoint, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range checkpoints {
		if c.Input == input && !c.Completed() {
			return c, nil
		}
	}
	return nil, nil
}

// FindStalled returns checkpoints that haven't been updated recently
func (m *Manager) FindStalled(ctx context.Context, stalledDuration time.Duration) ([]*LinkCheckpoint, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-stalledDuration)
	var stalled []*LinkCheckpoint
	for _, checkpoint := range checkpoints {
		if !checkpoint.Completed() && checkpoint.LastUpdatedAt.Before(cutoff) {
			stalled = append(stalled, checkpoint)
		}
	}
	return stalled, nil
}
