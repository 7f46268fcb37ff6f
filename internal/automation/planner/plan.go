package planner

import (
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strings"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

var tweetIDRe = regexp.MustCompile(`/status/(\d+)`)

// ActionSpec is one planned slot before idempotent materialization.
type ActionSpec struct {
	ActionType       string
	PlatformKey      string
	TargetURL        *string
	TargetExternalID *string
	IdempotencyKey   string
	BandwidthMode    v1.BandwidthMode
	ActionParams     map[string]any
}

// PlanInput carries the rows the planner derives a plan from.
type PlanInput struct {
	WorkspaceID string
	AccountID   string
	PlatformKey string
	RunID       string
	Strategy    *models.Strategy
}

// StrategyType returns the normalized config.type discriminator.
func StrategyType(strategy *models.Strategy) string {
	return strings.ToLower(strings.TrimSpace(stringFromMap(strategy.Config, "type", "")))
}

// IsSearchStrategy reports whether the strategy runs the two-phase
// search-then-act plan.
func IsSearchStrategy(strategyType string) bool {
	switch strategyType {
	case "x_search_like", "x_search_repost", "x_verified_like", "x_verified_repost":
		return true
	}
	return false
}

// BuildActionSpecs builds the single-phase plan: a health_check always leads,
// followed by one like/repost per configured target for x strategies.
// Unrecognized strategy types degrade to just the health check.
func BuildActionSpecs(in PlanInput) []ActionSpec {
	config := in.Strategy.Config
	bandwidth := NormalizeBandwidthMode(stringFromMap(config, "bandwidth_mode", ""))

	specs := []ActionSpec{{
		ActionType:     models.ActionHealthCheck,
		PlatformKey:    in.PlatformKey,
		IdempotencyKey: fmt.Sprintf("%s:%s:health_check:%s", in.WorkspaceID, in.AccountID, in.RunID),
		BandwidthMode:  bandwidth,
	}}

	if in.PlatformKey != "x" {
		return specs
	}

	actionKind := StrategyType(in.Strategy)
	var actionType string
	switch actionKind {
	case "x_like", "like":
		actionType = models.ActionXLike
	case "x_repost", "x_retweet", "retweet", "repost":
		actionType = models.ActionXRepost
	default:
		return specs
	}

	targets := collectTargets(config)
	if maxActions := intFromMap(config, []string{"max_actions"}, 0); maxActions > 0 && len(targets) > maxActions {
		targets = targets[:maxActions]
	}

	for _, target := range targets {
		stableTarget := target.tweetID
		if stableTarget == "" {
			stableTarget = target.url
		}
		if stableTarget == "" {
			continue
		}
		spec := ActionSpec{
			ActionType:     actionType,
			PlatformKey:    "x",
			IdempotencyKey: fmt.Sprintf("%s:%s:%s:%s:v%d", in.WorkspaceID, in.AccountID, actionType, stableTarget, in.Strategy.Version),
			BandwidthMode:  bandwidth,
		}
		if target.url != "" {
			u := target.url
			spec.TargetURL = &u
		}
		if target.tweetID != "" {
			id := target.tweetID
			spec.TargetExternalID = &id
		}
		specs = append(specs, spec)
	}

	return specs
}

// BuildSearchCollectSpecs builds the phase-1 plan for search strategies: the
// base plan plus an x_search_collect against a synthesized search URL. A
// strategy with no resolvable query still emits the collect slot, with zeroed
// params, so there is always a result row to inspect.
func BuildSearchCollectSpecs(in PlanInput) []ActionSpec {
	config := in.Strategy.Config
	bandwidth := NormalizeBandwidthMode(stringFromMap(config, "bandwidth_mode", ""))
	specs := BuildActionSpecs(in)

	strategyType := StrategyType(in.Strategy)
	verifiedOnly := boolFromMap(config, "verified_only") || strings.HasPrefix(strategyType, "x_verified_")

	collectKey := fmt.Sprintf("%s:%s:x_search_collect:%s", in.WorkspaceID, in.AccountID, in.RunID)

	query := resolveSearchQuery(config)
	if query == "" {
		specs = append(specs, ActionSpec{
			ActionType:     models.ActionXSearchCollect,
			PlatformKey:    "x",
			IdempotencyKey: collectKey,
			BandwidthMode:  bandwidth,
			ActionParams:   map[string]any{"max_candidates": 0, "scroll_limit": 0},
		})
		return specs
	}

	if verifiedOnly && !strings.Contains(strings.ToLower(query), "filter:verified") {
		query += " filter:verified"
	}

	searchURL := buildXSearchURL(query, stringFromMap(config, "search_mode", "live"))
	maxCandidates := clampInt(intFromMap(config, []string{"max_candidates"}, 20), 1, 200)
	scrollLimit := clampInt(intFromMap(config, []string{"scroll_limit"}, 6), 0, 50)

	specs = append(specs, ActionSpec{
		ActionType:     models.ActionXSearchCollect,
		PlatformKey:    "x",
		TargetURL:      &searchURL,
		IdempotencyKey: collectKey,
		BandwidthMode:  bandwidth,
		ActionParams: map[string]any{
			"max_candidates":    maxCandidates,
			"scroll_limit":      scrollLimit,
			"verified_only_dom": verifiedOnly,
		},
	})
	return specs
}

// BuildSearchActionSpecs builds the phase-2 plan from collected candidates:
// shuffle, filter by verification when required, truncate to max_actions, and
// emit one like/repost per pick.
func BuildSearchActionSpecs(in PlanInput, candidates []v1.SearchCandidate) []ActionSpec {
	config := in.Strategy.Config
	bandwidth := NormalizeBandwidthMode(stringFromMap(config, "bandwidth_mode", ""))

	strategyType := StrategyType(in.Strategy)
	actionType := models.ActionXRepost
	if strings.HasSuffix(strategyType, "like") {
		actionType = models.ActionXLike
	}
	maxActions := clampInt(intFromMap(config, []string{"max_actions"}, 3), 1, 50)
	verifiedOnly := boolFromMap(config, "verified_only") || strings.HasPrefix(strategyType, "x_verified_")

	shuffled := make([]v1.SearchCandidate, len(candidates))
	copy(shuffled, candidates)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	var specs []ActionSpec
	for _, cand := range shuffled {
		if len(specs) >= maxActions {
			break
		}
		tweetID := strings.TrimSpace(cand.TweetID)
		candURL := strings.TrimSpace(cand.URL)
		if tweetID == "" && candURL == "" {
			continue
		}
		// Only an explicit not-verified verdict filters; candidates with no
		// verdict pass through.
		if verifiedOnly && cand.IsVerified != nil && !*cand.IsVerified {
			continue
		}
		stableTarget := tweetID
		if stableTarget == "" {
			stableTarget = candURL
		}
		spec := ActionSpec{
			ActionType:     actionType,
			PlatformKey:    "x",
			IdempotencyKey: fmt.Sprintf("%s:%s:%s:%s:v%d", in.WorkspaceID, in.AccountID, actionType, stableTarget, in.Strategy.Version),
			BandwidthMode:  bandwidth,
		}
		if candURL != "" {
			u := candURL
			spec.TargetURL = &u
		}
		if tweetID != "" {
			id := tweetID
			spec.TargetExternalID = &id
		}
		specs = append(specs, spec)
	}
	return specs
}

// ExtractTweetID pulls the numeric status id out of a tweet URL.
func ExtractTweetID(rawURL string) string {
	m := tweetIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// NormalizeBandwidthMode validates a config-provided bandwidth mode.
// Anything unrecognized means no filtering preference.
func NormalizeBandwidthMode(value string) v1.BandwidthMode {
	switch v1.BandwidthMode(strings.ToLower(strings.TrimSpace(value))) {
	case v1.BandwidthEco:
		return v1.BandwidthEco
	case v1.BandwidthBalanced:
		return v1.BandwidthBalanced
	case v1.BandwidthFull:
		return v1.BandwidthFull
	}
	return ""
}

type planTarget struct {
	url     string
	tweetID string
}

// collectTargets reads config.targets (alias target_urls), accepting URL
// strings and {url, tweet_id} maps, deriving tweet ids from URLs when absent.
func collectTargets(config map[string]any) []planTarget {
	raw, ok := config["targets"]
	if !ok || raw == nil {
		raw = config["target_urls"]
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	var targets []planTarget
	for _, item := range list {
		switch v := item.(type) {
		case string:
			u := strings.TrimSpace(v)
			if u == "" {
				continue
			}
			targets = append(targets, planTarget{url: u, tweetID: ExtractTweetID(u)})
		case map[string]any:
			u := strings.TrimSpace(stringFromMap(v, "url", stringFromMap(v, "target_url", "")))
			if u == "" {
				continue
			}
			tweetID := strings.TrimSpace(stringFromMap(v, "tweet_id", stringFromMap(v, "target_external_id", "")))
			if tweetID == "" {
				tweetID = ExtractTweetID(u)
			}
			targets = append(targets, planTarget{url: u, tweetID: tweetID})
		}
	}
	return targets
}

// resolveSearchQuery returns config.query, or a random pick from
// config.keywords, or empty when neither yields anything.
func resolveSearchQuery(config map[string]any) string {
	if query := strings.TrimSpace(stringFromMap(config, "query", "")); query != "" {
		return query
	}

	raw, ok := config["keywords"].([]any)
	if !ok {
		return ""
	}
	var cleaned []string
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			cleaned = append(cleaned, strings.TrimSpace(s))
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	return cleaned[rand.Intn(len(cleaned))]
}

func buildXSearchURL(query, searchMode string) string {
	f := "top"
	switch strings.ToLower(strings.TrimSpace(searchMode)) {
	case "live", "latest":
		f = "live"
	}
	// QueryEscape uses + for spaces; the search page wants %20.
	q := strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	return fmt.Sprintf("https://x.com/search?q=%s&src=typed_query&f=%s", q, f)
}

func boolFromMap(m map[string]any, key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}
