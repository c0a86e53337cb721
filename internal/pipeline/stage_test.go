package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStageTransitions(t *testing.T) {
	t.Parallel()

	legal := []struct{ from, to Stage }{
		{StagePending, StageGeneratingBrief},
		{StageGeneratingBrief, StageWriting},
		{StageGeneratingBrief, StageFailed},
		{StageWriting, StageChecking},
		{StageWriting, StageFailed},
		{StageChecking, StageComplete},
		{StageChecking, StageFailed},
		{StageFailed, StagePending},
		{StageComplete, StagePending},
	}
	for _, tc := range legal {
		next, err := tc.from.Transition(tc.to)
		require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		require.Equal(t, tc.to, next)
	}

	illegal := []struct{ from, to Stage }{
		{StagePending, StageWriting},
		{StagePending, StageComplete},
		{StageComplete, StageWriting},
		{StageFailed, StageChecking},
		{StageWriting, StageComplete},
	}
	for _, tc := range illegal {
		_, err := tc.from.Transition(tc.to)
		require.Error(t, err, "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestStagePredicates(t *testing.T) {
	t.Parallel()

	require.True(t, StageComplete.Terminal())
	require.True(t, StageFailed.Terminal())
	require.False(t, StagePending.Terminal())

	require.True(t, StageGeneratingBrief.InFlight())
	require.True(t, StageWriting.InFlight())
	require.True(t, StageChecking.InFlight())
	require.False(t, StagePending.InFlight())
	require.False(t, StageComplete.InFlight())

	require.False(t, Stage("bogus").Valid())
}

func TestPageRecordResets(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0).UTC()
	rec := NewPageRecord("proj-1", "page-1", "standing desk", now)
	require.Equal(t, StagePending, rec.Stage)
	require.True(t, rec.Eligible())

	content := "draft body"
	passed := true
	rec.Stage = StageComplete
	rec.Brief = &Brief{Keyword: "standing desk", WordCount: 900}
	rec.GeneratedContent = &content
	rec.QAPassed = &passed
	rec.IsApproved = true
	require.NoError(t, rec.Validate())

	later := now.Add(time.Minute)
	rec.ResetForRegenerate(false, later)
	require.Equal(t, StagePending, rec.Stage)
	require.Nil(t, rec.GeneratedContent)
	require.Nil(t, rec.QAPassed)
	require.False(t, rec.IsApproved)
	require.NotNil(t, rec.Brief, "brief is kept unless refresh is requested")
	require.Equal(t, later, rec.UpdatedAt)

	rec.ResetForRegenerate(true, later)
	require.Nil(t, rec.Brief)
}

func TestPageRecordRetryKeepsBrief(t *testing.T) {
	t.Parallel()

	now := time.Unix(2000, 0).UTC()
	rec := NewPageRecord("proj-1", "page-2", "ergonomic chair", now)
	rec.Brief = &Brief{Keyword: "ergonomic chair"}
	rec.MarkFailed("generation provider: 503", now)
	require.Equal(t, StageFailed, rec.Stage)
	require.NotEmpty(t, rec.Error)

	rec.ResetForRetry(false, now)
	require.Equal(t, StagePending, rec.Stage)
	require.Empty(t, rec.Error)
	require.NotNil(t, rec.Brief)

	rec.MarkFailed("qa provider: timeout", now)
	rec.ResetForRetry(true, now)
	require.Nil(t, rec.Brief)
}

func TestPageRecordValidateRejectsInvariantViolations(t *testing.T) {
	t.Parallel()

	now := time.Unix(3000, 0).UTC()
	rec := NewPageRecord("proj-1", "page-3", "desk mat", now)

	rec.IsApproved = true
	require.Error(t, rec.Validate(), "approval requires complete stage and passing qa")

	rec.IsApproved = false
	rec.Error = "leftover"
	require.Error(t, rec.Validate(), "error text outside failed stage is rejected")

	rec.Error = ""
	rec.Stage = StageComplete
	require.Error(t, rec.Validate(), "complete requires content and qa verdict")
}
