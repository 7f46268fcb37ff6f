package automation

import (
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

const (
	defaultMaxCandidates = 20
	defaultScrollLimit   = 6

	scrollMinPx   = 900
	scrollMaxPx   = 1400
	scrollWaitMin = 450
	scrollWaitMax = 900
)

// xSearchCollect walks a search results page and harvests tweet candidates.
// It never fails outright on an empty result list; an empty page is a
// skipped result so the planner's second pass simply has nothing to do.
func xSearchCollect(page playwright.Page, targetURL *string, params map[string]any) v1.ExecuteActionResult {
	if targetURL == nil || strings.TrimSpace(*targetURL) == "" {
		return failed(CodeInvalidTarget, "target_url is required for x_search_collect", nil)
	}

	maxCandidates := clampParam(params, "max_candidates", defaultMaxCandidates, 1, 200)
	scrollLimit := clampParam(params, "scroll_limit", defaultScrollLimit, 0, 50)
	verifiedOnly := false
	if params != nil {
		verifiedOnly, _ = params["verified_only_dom"].(bool)
	}

	if _, err := page.Goto(*targetURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return errorResult(err, page)
	}

	if !xIsLoggedIn(page) {
		res := failed(CodeAuthRequired, "not logged in", page)
		res.Metadata = map[string]any{"logged_in": false}
		return res
	}

	if err := page.Locator("article").First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10_000),
	}); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return skipped(page, "no search results", map[string]any{
				"candidates": []v1.SearchCandidate{},
				"collected":  0,
			})
		}
		return errorResult(err, page)
	}

	seen := make(map[string]bool)
	candidates := make([]v1.SearchCandidate, 0, maxCandidates)

	for pass := 0; pass <= scrollLimit && len(candidates) < maxCandidates; pass++ {
		articles := page.Locator("article")
		count, err := articles.Count()
		if err != nil {
			return errorResult(err, page)
		}

		for i := 0; i < count && len(candidates) < maxCandidates; i++ {
			article := articles.Nth(i)

			if verifiedOnly {
				verified, err := article.Locator("[data-testid='icon-verified']").Count()
				if err != nil || verified == 0 {
					continue
				}
			}

			candidate, ok := extractCandidate(article)
			if !ok || seen[candidate.TweetID] {
				continue
			}
			seen[candidate.TweetID] = true
			candidates = append(candidates, candidate)
		}

		if pass < scrollLimit && len(candidates) < maxCandidates {
			px := scrollMinPx + rand.Intn(scrollMaxPx-scrollMinPx+1)
			if _, err := page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", px)); err != nil {
				return errorResult(err, page)
			}
			time.Sleep(randDuration(scrollWaitMin, scrollWaitMax))
		}
	}

	return succeeded(page, map[string]any{
		"candidates": candidates,
		"collected":  len(candidates),
	})
}

// extractCandidate pulls the tweet id, canonical URL, and verified badge
// from one search result article.
func extractCandidate(article playwright.Locator) (v1.SearchCandidate, bool) {
	link := article.Locator("a[href*='/status/']").First()
	href, err := link.GetAttribute("href")
	if err != nil || href == "" {
		return v1.SearchCandidate{}, false
	}

	tweetID, normalized, ok := normalizeTweetURL(href)
	if !ok {
		return v1.SearchCandidate{}, false
	}

	verified := false
	if count, err := article.Locator("[data-testid='icon-verified']").Count(); err == nil && count > 0 {
		verified = true
	}

	return v1.SearchCandidate{
		TweetID:    tweetID,
		URL:        normalized,
		IsVerified: &verified,
	}, true
}

// normalizeTweetURL maps any status link (relative or absolute) to the
// bare https://x.com form, stripping query strings and the /photo or
// /analytics suffixes under a status.
func normalizeTweetURL(href string) (tweetID, normalized string, ok bool) {
	parsed, err := url.Parse(href)
	if err != nil {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, part := range parts {
		if part == "status" && i+1 < len(parts) {
			id := parts[i+1]
			if id == "" || !isDigits(id) {
				return "", "", false
			}
			path := "/" + strings.Join(parts[:i+2], "/")
			return id, "https://x.com" + path, true
		}
	}
	return "", "", false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func clampParam(params map[string]any, key string, def, min, max int) int {
	v, ok := numField(params, key)
	if !ok {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
