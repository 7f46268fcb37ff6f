package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

func TestNextFire_Manual(t *testing.T) {
	next := NextFire(models.FrequencyManual, nil, nil, time.Now())
	assert.Nil(t, next)
}

func TestNextFire_Interval(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		spec map[string]any
		want time.Duration
	}{
		{"every_minutes", map[string]any{"every_minutes": float64(15)}, 15 * time.Minute},
		{"interval_minutes alias", map[string]any{"interval_minutes": float64(30)}, 30 * time.Minute},
		{"default 60", map[string]any{}, 60 * time.Minute},
		{"non-positive falls back", map[string]any{"every_minutes": float64(-5)}, 60 * time.Minute},
		{"string value", map[string]any{"every_minutes": "20"}, 20 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := NextFire(models.FrequencyInterval, tt.spec, nil, now)
			require.NotNil(t, next)
			assert.Equal(t, now.Add(tt.want), *next)
		})
	}
}

func TestNextFire_IntervalWithOffset(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	spec := map[string]any{"every_minutes": float64(10)}
	random := map[string]any{"offset_minutes_max": float64(5)}

	for i := 0; i < 50; i++ {
		next := NextFire(models.FrequencyInterval, spec, random, now)
		require.NotNil(t, next)
		delta := next.Sub(now)
		assert.GreaterOrEqual(t, delta, 10*time.Minute)
		assert.LessOrEqual(t, delta, 15*time.Minute)
	}
}

func TestNextFire_Daily(t *testing.T) {
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	next := NextFire(models.FrequencyDaily, map[string]any{"time_of_day": "09:30"}, nil, now)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC), *next)

	// Candidate at or before now advances a day.
	next = NextFire(models.FrequencyDaily, map[string]any{"time_of_day": "07:00"}, nil, now)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 5, 11, 7, 0, 0, 0, time.UTC), *next)

	// Default and malformed specs land on 09:00.
	next = NextFire(models.FrequencyDaily, map[string]any{"time_of_day": "nonsense"}, nil, now)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC), *next)

	// Out-of-range fields are clamped.
	next = NextFire(models.FrequencyDaily, map[string]any{"time_of_day": "99:99"}, nil, now)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC), *next)
}

func TestNextFire_UnknownFrequencyFallsBack(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	next := NextFire(models.ScheduleFrequency("weekly"), nil, nil, now)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(24*time.Hour), *next)
}

func TestShouldSkip(t *testing.T) {
	assert.False(t, ShouldSkip(nil))
	assert.False(t, ShouldSkip(map[string]any{"skip_probability": "garbage"}))
	assert.False(t, ShouldSkip(map[string]any{"skip_probability": float64(0)}))
	assert.False(t, ShouldSkip(map[string]any{"skip_probability": float64(-1)}))
	assert.True(t, ShouldSkip(map[string]any{"skip_probability": float64(1)}))
	assert.True(t, ShouldSkip(map[string]any{"skip_probability": float64(2)}))
}

func TestExtractTweetID(t *testing.T) {
	assert.Equal(t, "12345", ExtractTweetID("https://x.com/user/status/12345"))
	assert.Equal(t, "111", ExtractTweetID("https://x.com/user/status/111?s=20"))
	assert.Equal(t, "", ExtractTweetID("https://x.com/user"))
}

func testStrategy(config map[string]any) *models.Strategy {
	return &models.Strategy{ID: "st-1", Version: 1, PlatformKey: "x", Config: config}
}

func testPlanInput(strategy *models.Strategy) PlanInput {
	return PlanInput{
		WorkspaceID: "ws",
		AccountID:   "acc",
		PlatformKey: "x",
		RunID:       "run",
		Strategy:    strategy,
	}
}

func TestBuildActionSpecs_LikeTargets(t *testing.T) {
	in := testPlanInput(testStrategy(map[string]any{
		"type":    "x_like",
		"targets": []any{"https://x.com/user/status/111"},
	}))

	specs := BuildActionSpecs(in)
	require.Len(t, specs, 2)

	assert.Equal(t, models.ActionHealthCheck, specs[0].ActionType)
	assert.Equal(t, "ws:acc:health_check:run", specs[0].IdempotencyKey)

	assert.Equal(t, models.ActionXLike, specs[1].ActionType)
	assert.Equal(t, "ws:acc:x_like:111:v1", specs[1].IdempotencyKey)
	require.NotNil(t, specs[1].TargetExternalID)
	assert.Equal(t, "111", *specs[1].TargetExternalID)
}

func TestBuildActionSpecs_RepostAliasesAndMaxActions(t *testing.T) {
	in := testPlanInput(testStrategy(map[string]any{
		"type": "retweet",
		"target_urls": []any{
			"https://x.com/a/status/1",
			map[string]any{"url": "https://x.com/b/status/2", "tweet_id": "2"},
			"https://x.com/c/status/3",
		},
		"max_actions": float64(2),
	}))

	specs := BuildActionSpecs(in)
	require.Len(t, specs, 3) // health_check + 2 truncated targets
	assert.Equal(t, models.ActionXRepost, specs[1].ActionType)
	assert.Equal(t, "ws:acc:x_repost:1:v1", specs[1].IdempotencyKey)
	assert.Equal(t, "ws:acc:x_repost:2:v1", specs[2].IdempotencyKey)
}

func TestBuildActionSpecs_UnknownTypeDegradesToHealthCheck(t *testing.T) {
	in := testPlanInput(testStrategy(map[string]any{"type": "mystery"}))
	specs := BuildActionSpecs(in)
	require.Len(t, specs, 1)
	assert.Equal(t, models.ActionHealthCheck, specs[0].ActionType)
}

func TestBuildSearchCollectSpecs(t *testing.T) {
	in := testPlanInput(testStrategy(map[string]any{
		"type":        "x_verified_like",
		"query":       "golang tips",
		"search_mode": "live",
	}))

	specs := BuildSearchCollectSpecs(in)
	require.Len(t, specs, 2)

	collect := specs[1]
	assert.Equal(t, models.ActionXSearchCollect, collect.ActionType)
	assert.Equal(t, "ws:acc:x_search_collect:run", collect.IdempotencyKey)
	require.NotNil(t, collect.TargetURL)
	assert.Equal(t, "https://x.com/search?q=golang%20tips%20filter%3Averified&src=typed_query&f=live", *collect.TargetURL)
	assert.Equal(t, 20, collect.ActionParams["max_candidates"])
	assert.Equal(t, 6, collect.ActionParams["scroll_limit"])
	assert.Equal(t, true, collect.ActionParams["verified_only_dom"])
}

func TestBuildSearchCollectSpecs_NoQuery(t *testing.T) {
	in := testPlanInput(testStrategy(map[string]any{"type": "x_search_like"}))
	specs := BuildSearchCollectSpecs(in)
	require.Len(t, specs, 2)
	collect := specs[1]
	assert.Nil(t, collect.TargetURL)
	assert.Equal(t, 0, collect.ActionParams["max_candidates"])
}

func TestBuildSearchCollectSpecs_ClampsParams(t *testing.T) {
	in := testPlanInput(testStrategy(map[string]any{
		"type":           "x_search_repost",
		"query":          "go",
		"max_candidates": float64(9999),
		"scroll_limit":   float64(-3),
	}))
	specs := BuildSearchCollectSpecs(in)
	collect := specs[len(specs)-1]
	assert.Equal(t, 200, collect.ActionParams["max_candidates"])
	assert.Equal(t, 0, collect.ActionParams["scroll_limit"])
}

func TestBuildSearchActionSpecs(t *testing.T) {
	in := testPlanInput(testStrategy(map[string]any{
		"type":          "x_search_like",
		"verified_only": true,
		"max_actions":   float64(2),
	}))

	verified, unverified := true, false
	candidates := []v1.SearchCandidate{
		{TweetID: "1", URL: "https://x.com/a/status/1", IsVerified: &verified},
		{TweetID: "2", URL: "https://x.com/b/status/2", IsVerified: &unverified},
		{TweetID: "3", URL: "https://x.com/c/status/3", IsVerified: &verified},
		{TweetID: "4", URL: "https://x.com/d/status/4", IsVerified: &verified},
	}

	specs := BuildSearchActionSpecs(in, candidates)
	require.Len(t, specs, 2)
	for _, spec := range specs {
		assert.Equal(t, models.ActionXLike, spec.ActionType)
		require.NotNil(t, spec.TargetExternalID)
		assert.NotEqual(t, "2", *spec.TargetExternalID) // unverified filtered out
	}
}

func TestBuildSearchActionSpecsKeepsUnknownVerification(t *testing.T) {
	in := testPlanInput(testStrategy(map[string]any{
		"type":          "x_search_like",
		"verified_only": true,
	}))

	// Only an explicit false verdict filters a candidate out.
	unverified := false
	candidates := []v1.SearchCandidate{
		{TweetID: "1", URL: "https://x.com/a/status/1"},
		{TweetID: "2", URL: "https://x.com/b/status/2", IsVerified: &unverified},
	}

	specs := BuildSearchActionSpecs(in, candidates)
	require.Len(t, specs, 1)
	require.NotNil(t, specs[0].TargetExternalID)
	assert.Equal(t, "1", *specs[0].TargetExternalID)
}

func TestNormalizeBandwidthMode(t *testing.T) {
	assert.Equal(t, v1.BandwidthEco, NormalizeBandwidthMode(" ECO "))
	assert.Equal(t, v1.BandwidthBalanced, NormalizeBandwidthMode("balanced"))
	assert.Equal(t, v1.BandwidthFull, NormalizeBandwidthMode("full"))
	assert.Equal(t, v1.BandwidthMode(""), NormalizeBandwidthMode("turbo"))
}
