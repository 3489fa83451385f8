package cardsched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func secs(s LearningSteps, f func(LearningSteps) (int, bool)) *int {
	v, ok := f(s)
	if !ok {
		return nil
	}
	return &v
}

func TestLearningStepsDelays(t *testing.T) {
	steps := LearningSteps{time.Minute, 10 * time.Minute}

	again, ok := steps.againDelaySecs()
	assert.True(t, ok)
	assert.Equal(t, 60, again)

	hard, _ := steps.hardDelaySecs(2)
	assert.Equal(t, 330, hard, "mean of the first two steps")
	good, ok := steps.goodDelaySecs(2)
	assert.True(t, ok)
	assert.Equal(t, 600, good)
	assert.Equal(t, 1, steps.remainingForGood(2))

	hard, _ = steps.hardDelaySecs(1)
	assert.Equal(t, 600, hard, "later steps repeat the current delay")
	_, ok = steps.goodDelaySecs(1)
	assert.False(t, ok, "good on the last step graduates")
	assert.Zero(t, steps.remainingForGood(1))

	assert.Equal(t, 2, steps.remainingForFailed())
}

func TestLearningStepsSingleStepHard(t *testing.T) {
	tests := []struct {
		step time.Duration
		want int
	}{
		{10 * time.Minute, 900},
		{24 * time.Hour, 129_600},
		{2 * 24 * time.Hour, 3 * secsPerDay},
		{3 * 24 * time.Hour, 4 * secsPerDay},
	}
	for _, tt := range tests {
		steps := LearningSteps{tt.step}
		got, ok := steps.hardDelaySecs(1)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, tt.step.String())
	}
}

func TestLearningStepsRemaining(t *testing.T) {
	steps := LearningSteps{time.Minute, 10 * time.Minute, time.Hour}

	cur, _ := steps.currentDelaySecs(1002)
	assert.Equal(t, 600, cur, "only the last three digits count")
	cur, _ = steps.currentDelaySecs(7)
	assert.Equal(t, 60, cur, "too many remaining steps clamps to the first")
	cur, _ = steps.currentDelaySecs(0)
	assert.Equal(t, 3600, cur, "no remaining steps clamps to the last")
}

func TestLearningStepsEmpty(t *testing.T) {
	var steps LearningSteps
	assert.True(t, steps.isEmpty())
	assert.Nil(t, secs(steps, LearningSteps.againDelaySecs))
	_, ok := steps.hardDelaySecs(1)
	assert.False(t, ok)
	_, ok = steps.goodDelaySecs(1)
	assert.False(t, ok)
	assert.Zero(t, steps.remainingForGood(1))
	assert.Zero(t, steps.remainingForFailed())
}
