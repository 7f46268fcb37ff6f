package automation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// xIsLoggedIn is the DOM-level login predicate for platform x. It is
// deliberately pessimistic: anything on a login flow or showing a login
// button is logged out, and only the composer button or the profile tab
// proves a session.
func xIsLoggedIn(page playwright.Page) bool {
	url := page.URL()
	if strings.Contains(url, "/i/flow/login") || strings.Contains(url, "/login") {
		return false
	}

	if count, err := page.Locator("[data-testid='loginButton']").Count(); err == nil && count > 0 {
		return false
	}
	if count, err := page.Locator("a[href='/login'], a[href*='/i/flow/login']").Count(); err == nil && count > 0 {
		return false
	}

	for _, selector := range []string{
		"[data-testid='SideNav_NewTweet_Button']",
		"[data-testid='AppTabBar_Profile_Link']",
	} {
		err := page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(2_500),
		})
		if err == nil {
			return true
		}
	}
	return false
}

func xHealthCheck(page playwright.Page) v1.ExecuteActionResult {
	if _, err := page.Goto("https://x.com/home", playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return errorResult(err, page)
	}

	if xIsLoggedIn(page) {
		return succeeded(page, map[string]any{"logged_in": true})
	}
	res := failed(CodeAuthRequired, "not logged in", page)
	res.Metadata = map[string]any{"logged_in": false}
	return res
}

// navigateToTweet opens the target and returns the article locator for the
// tweet, preferring the article containing the status link when a tweet id
// is known.
func navigateToTweet(page playwright.Page, targetURL string, tweetID *string) (playwright.Locator, *v1.ExecuteActionResult) {
	if _, err := page.Goto(targetURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		res := errorResult(err, page)
		return nil, &res
	}

	if !xIsLoggedIn(page) {
		res := failed(CodeAuthRequired, "not logged in", page)
		res.Metadata = map[string]any{"logged_in": false}
		return nil, &res
	}

	var article playwright.Locator
	if tweetID != nil && strings.TrimSpace(*tweetID) != "" {
		article = page.Locator("article", playwright.PageLocatorOptions{
			Has: page.Locator(fmt.Sprintf("a[href*='/status/%s']", strings.TrimSpace(*tweetID))),
		}).First()
	} else {
		article = page.Locator("article").First()
	}

	if err := article.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10_000),
	}); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			res := failed(CodeUISelectorChanged, "tweet article not found", page)
			return nil, &res
		}
		res := errorResult(err, page)
		return nil, &res
	}
	return article, nil
}

func xLike(page playwright.Page, targetURL, tweetID *string) v1.ExecuteActionResult {
	if targetURL == nil || strings.TrimSpace(*targetURL) == "" {
		return failed(CodeInvalidTarget, "target_url is required for x_like", nil)
	}

	article, errRes := navigateToTweet(page, *targetURL, tweetID)
	if errRes != nil {
		return *errRes
	}

	if count, err := article.Locator("button[data-testid='unlike']").Count(); err == nil && count > 0 {
		return skipped(page, "already liked", map[string]any{"already_liked": true})
	}

	likeButton := article.Locator("button[data-testid='like']").First()
	if errRes := clickArticleButton(page, likeButton, "like button not clickable"); errRes != nil {
		return *errRes
	}

	err := article.Locator("button[data-testid='unlike']").First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5_000),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			res := failed(CodePostValidationFailed, "like not confirmed (unlike not visible)", page)
			res.Metadata = map[string]any{"already_liked": false}
			return res
		}
		return errorResult(err, page)
	}
	return succeeded(page, map[string]any{"already_liked": false})
}

func xRepost(page playwright.Page, targetURL, tweetID *string) v1.ExecuteActionResult {
	if targetURL == nil || strings.TrimSpace(*targetURL) == "" {
		return failed(CodeInvalidTarget, "target_url is required for x_repost", nil)
	}

	article, errRes := navigateToTweet(page, *targetURL, tweetID)
	if errRes != nil {
		return *errRes
	}

	if count, err := article.Locator("button[data-testid='unretweet']").Count(); err == nil && count > 0 {
		return skipped(page, "already reposted", map[string]any{"already_reposted": true})
	}

	repostButton := article.Locator("button[data-testid='retweet']").First()
	if errRes := clickArticleButton(page, repostButton, "repost button not clickable"); errRes != nil {
		return *errRes
	}

	// The repost menu needs an explicit confirm.
	confirm := page.Locator("[data-testid='retweetConfirm']").First()
	if err := confirm.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5_000),
	}); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return failed(CodeUISelectorChanged, "repost confirm not found", page)
		}
		return errorResult(err, page)
	}
	if err := confirm.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5_000)}); err != nil {
		return errorResult(err, page)
	}

	err := article.Locator("button[data-testid='unretweet']").First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5_000),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			res := failed(CodePostValidationFailed, "repost not confirmed (unretweet not visible)", page)
			res.Metadata = map[string]any{"already_reposted": false}
			return res
		}
		return errorResult(err, page)
	}
	return succeeded(page, map[string]any{"already_reposted": false})
}

// clickArticleButton waits, scrolls to, and clicks an in-article button,
// mapping timeouts to UI_INTERCEPTED.
func clickArticleButton(page playwright.Page, button playwright.Locator, interceptedMsg string) *v1.ExecuteActionResult {
	if err := button.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10_000),
	}); err != nil {
		res := classifyClickError(err, page, interceptedMsg)
		return &res
	}
	if err := button.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: playwright.Float(5_000),
	}); err != nil {
		res := classifyClickError(err, page, interceptedMsg)
		return &res
	}
	if err := button.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5_000)}); err != nil {
		res := classifyClickError(err, page, interceptedMsg)
		return &res
	}
	return nil
}

func classifyClickError(err error, page playwright.Page, interceptedMsg string) v1.ExecuteActionResult {
	if errors.Is(err, playwright.ErrTimeout) {
		return failed(CodeUIIntercepted, interceptedMsg, page)
	}
	return errorResult(err, page)
}
