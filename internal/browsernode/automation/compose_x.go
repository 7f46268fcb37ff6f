package automation

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// Typing delays per character. Keeping keystrokes irregular avoids the
// instant-paste pattern that composer widgets are quick to flag.
const (
	typeDelayMinMs = 35
	typeDelayMaxMs = 75
)

func xReply(page playwright.Page, targetURL, tweetID *string, params map[string]any) v1.ExecuteActionResult {
	if targetURL == nil || strings.TrimSpace(*targetURL) == "" {
		return failed(CodeInvalidTarget, "target_url is required for x_reply", nil)
	}
	text := paramText(params)
	if text == "" {
		return failed(CodeInvalidParams, "action_params.text is required for x_reply", nil)
	}

	article, errRes := navigateToTweet(page, *targetURL, tweetID)
	if errRes != nil {
		return *errRes
	}

	replyButton := article.Locator("button[data-testid='reply']").First()
	if err := replyButton.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10_000),
	}); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return failed(CodeUISelectorChanged, "reply button not found", page)
		}
		return errorResult(err, page)
	}

	// A disabled reply button means the author limited who can reply.
	if disabled, err := replyButton.GetAttribute("aria-disabled"); err == nil && disabled == "true" {
		return skippedWithCode(page, CodeReplyRestricted, "replies are restricted on this tweet", nil)
	}
	if enabled, err := replyButton.IsEnabled(); err == nil && !enabled {
		return skippedWithCode(page, CodeReplyRestricted, "replies are restricted on this tweet", nil)
	}

	if errRes := clickArticleButton(page, replyButton, "reply button not clickable"); errRes != nil {
		return *errRes
	}

	// Restricted tweets answer the click with a "who can reply" notice
	// instead of the composer.
	if dismissReplyRestriction(page) {
		return skippedWithCode(page, CodeReplyRestricted, "replies are restricted on this tweet", nil)
	}

	if errRes := composeAndSubmit(page, text); errRes != nil {
		return *errRes
	}
	return succeeded(page, map[string]any{"text_length": len(text)})
}

// dismissReplyRestriction reports whether the reply click surfaced a "who can
// reply" restriction notice, closing it when found so the page stays usable
// for the rest of the batch.
func dismissReplyRestriction(page playwright.Page) bool {
	notice := page.Locator("[data-testid='sheetDialog']", playwright.PageLocatorOptions{
		HasText: "can reply",
	}).First()
	if err := notice.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(2_000),
	}); err != nil {
		return false
	}
	_ = page.Locator("[data-testid='app-bar-close']").First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(2_000),
	})
	return true
}

func xQuote(page playwright.Page, targetURL, tweetID *string, params map[string]any) v1.ExecuteActionResult {
	if targetURL == nil || strings.TrimSpace(*targetURL) == "" {
		return failed(CodeInvalidTarget, "target_url is required for x_quote", nil)
	}
	text := paramText(params)
	if text == "" {
		return failed(CodeInvalidParams, "action_params.text is required for x_quote", nil)
	}

	article, errRes := navigateToTweet(page, *targetURL, tweetID)
	if errRes != nil {
		return *errRes
	}

	repostButton := article.Locator("button[data-testid='retweet']").First()
	if errRes := clickArticleButton(page, repostButton, "repost button not clickable"); errRes != nil {
		return *errRes
	}

	// The repost dropdown offers Repost and Quote; pick the quote entry.
	quoteItem := page.Locator("[data-testid='Dropdown'] [role='menuitem']", playwright.PageLocatorOptions{
		HasText: "Quote",
	}).First()
	if err := quoteItem.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5_000),
	}); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return failed(CodeUISelectorChanged, "quote menu entry not found", page)
		}
		return errorResult(err, page)
	}
	if err := quoteItem.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5_000)}); err != nil {
		return errorResult(err, page)
	}

	if errRes := composeAndSubmit(page, text); errRes != nil {
		return *errRes
	}
	return succeeded(page, map[string]any{"text_length": len(text)})
}

// composeAndSubmit types text into the open composer character by character
// and submits it once the tweet button reports enabled.
func composeAndSubmit(page playwright.Page, text string) *v1.ExecuteActionResult {
	textarea := page.Locator("[data-testid='tweetTextarea_0']").First()
	if err := textarea.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10_000),
	}); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			res := failed(CodeUISelectorChanged, "composer textarea not found", page)
			return &res
		}
		res := errorResult(err, page)
		return &res
	}
	if err := textarea.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5_000)}); err != nil {
		res := classifyClickError(err, page, "composer textarea not clickable")
		return &res
	}

	for _, r := range text {
		if err := page.Keyboard().Type(string(r)); err != nil {
			res := errorResult(err, page)
			return &res
		}
		time.Sleep(randDuration(typeDelayMinMs, typeDelayMaxMs))
	}

	submit, errRes := waitForEnabledSubmit(page)
	if errRes != nil {
		return errRes
	}
	if err := submit.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5_000)}); err != nil {
		res := classifyClickError(err, page, "tweet button not clickable")
		return &res
	}

	// The composer disappears once the post goes through.
	err := page.Locator("[data-testid='tweetTextarea_0']").First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateDetached,
		Timeout: playwright.Float(10_000),
	})
	if err != nil && errors.Is(err, playwright.ErrTimeout) {
		res := failed(CodePostValidationFailed, "composer did not close after submit", page)
		return &res
	}
	return nil
}

// waitForEnabledSubmit polls the tweet submit button until it is enabled.
// The button stays disabled while text is empty or over the limit.
func waitForEnabledSubmit(page playwright.Page) (playwright.Locator, *v1.ExecuteActionResult) {
	deadline := time.Now().Add(10 * time.Second)
	for {
		for _, selector := range []string{
			"button[data-testid='tweetButton']",
			"button[data-testid='tweetButtonInline']",
		} {
			button := page.Locator(selector).First()
			count, err := button.Count()
			if err != nil || count == 0 {
				continue
			}
			if disabled, err := button.GetAttribute("aria-disabled"); err == nil && disabled == "true" {
				continue
			}
			if enabled, err := button.IsEnabled(); err == nil && enabled {
				return button, nil
			}
		}
		if time.Now().After(deadline) {
			res := failed(CodeUISelectorChanged, "tweet button never became enabled", page)
			return nil, &res
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func paramText(params map[string]any) string {
	if params == nil {
		return ""
	}
	text, _ := params["text"].(string)
	return strings.TrimSpace(text)
}

func randDuration(minMs, maxMs int) time.Duration {
	return time.Duration(minMs+rand.Intn(maxMs-minMs+1)) * time.Millisecond
}
