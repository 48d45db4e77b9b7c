package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autoapply/internal/portal"
	"github.com/jonathan/autoapply/internal/types"
)

const resultsURL = "https://www.dice.com/jobs/easy-apply"

func resultsPageURL(n int) string {
	if n == 1 {
		return resultsURL
	}
	return fmt.Sprintf("%s/page/%d", resultsURL, n)
}

func card(href, label string) string {
	return fmt.Sprintf(`<a class="inline-flex items-center" target="_blank" href="%s">%s</a>`, href, label)
}

func nextControl(attrs, href string) string {
	if href != "" {
		attrs += fmt.Sprintf(` data-href="%s"`, href)
	}
	return fmt.Sprintf(`<span role="link" aria-label="Next" %s>Next</span>`, attrs)
}

// buildPages returns n results pages, each holding one eligible card, where
// only the last page's next control is disabled.
func buildPages(n int) map[string]string {
	pages := map[string]string{}
	for i := 1; i <= n; i++ {
		href := fmt.Sprintf("/job-detail/p%d", i)
		next := nextControl(`class="cursor-pointer"`, resultsPageURL(i+1))
		if i == n {
			next = nextControl(`class="cursor-not-allowed"`, "")
		}
		pages[resultsPageURL(i)] = `<html><body>` + card(href, "Easy Apply") + next + `</body></html>`
		pages["https://www.dice.com"+href] = eligibleListing()
	}
	return pages
}

func TestPaginate_VisitsExactlyNPages(t *testing.T) {
	for _, n := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("%d pages", n), func(t *testing.T) {
			dice := newFakeAdapter(portal.Dice, nil)
			h := newHarness(t, harnessOptions{
				pages:    buildPages(n),
				adapters: []portal.Adapter{dice},
				limit:    30,
			})

			sum, err := h.orch.Paginate(context.Background(), types.PortalDice, resultsURL)
			require.NoError(t, err)

			assert.Equal(t, n, sum.Pages)
			assert.Equal(t, n, sum.Applied)
			assert.Equal(t, 1, dice.logins)
			assert.False(t, h.browser.Navigated(resultsPageURL(n+1)))
		})
	}
}

func TestPaginate_CardEligibility(t *testing.T) {
	page := `<html><body>` +
		card("/job-detail/a", "Easy Apply") +
		card("/job-detail/b", "Applied") +
		card("/job-detail/c", "Apply Now") +
		card("/job-detail/a", "Easy Apply") +
		`<a href="/job-detail/d">Easy Apply</a>` +
		`</body></html>`

	dice := newFakeAdapter(portal.Dice, nil)
	h := newHarness(t, harnessOptions{
		pages: map[string]string{
			resultsURL:                          page,
			"https://www.dice.com/job-detail/a": eligibleListing(),
			"https://www.dice.com/job-detail/b": eligibleListing(),
			"https://www.dice.com/job-detail/c": eligibleListing(),
			"https://www.dice.com/job-detail/d": eligibleListing(),
		},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})

	sum, err := h.orch.Paginate(context.Background(), types.PortalDice, resultsURL)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Pages, "a missing next control ends pagination")
	assert.Equal(t, 1, sum.Applied)
	assert.True(t, h.browser.Navigated("https://www.dice.com/job-detail/a"))
	assert.False(t, h.browser.Navigated("https://www.dice.com/job-detail/b"))
	assert.False(t, h.browser.Navigated("https://www.dice.com/job-detail/c"))
	assert.False(t, h.browser.Navigated("https://www.dice.com/job-detail/d"))
}

func TestPaginate_DisabledIndicators(t *testing.T) {
	tests := []struct {
		name  string
		attrs string
	}{
		{name: "disabled class", attrs: `class="cursor-not-allowed"`},
		{name: "aria-disabled", attrs: `aria-disabled="true"`},
		{name: "disabled attribute", attrs: `disabled`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := `<html><body>` + nextControl(tt.attrs, resultsPageURL(2)) + `</body></html>`
			h := newHarness(t, harnessOptions{
				pages:    map[string]string{resultsURL: page, resultsPageURL(2): page},
				adapters: []portal.Adapter{newFakeAdapter(portal.Dice, nil)},
				limit:    30,
			})

			sum, err := h.orch.Paginate(context.Background(), types.PortalDice, resultsURL)
			require.NoError(t, err)
			assert.Equal(t, 1, sum.Pages)
			assert.Empty(t, h.browser.Clicks)
		})
	}
}

func TestPaginate_StopsWhenBudgetExhausted(t *testing.T) {
	pages := buildPages(3)
	h := newHarness(t, harnessOptions{
		pages:    pages,
		adapters: []portal.Adapter{newFakeAdapter(portal.Dice, nil)},
		limit:    2,
	})

	sum, err := h.orch.Paginate(context.Background(), types.PortalDice, resultsURL)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Applied)
	assert.Equal(t, 2, sum.Pages)
	assert.False(t, h.browser.Navigated(resultsPageURL(3)))
}

func TestPaginate_StopsWhenResultsDoNotChange(t *testing.T) {
	page := `<html><body>` + card("/job-detail/a", "Easy Apply") +
		nextControl(`class="cursor-pointer"`, "") + `</body></html>`
	h := newHarness(t, harnessOptions{
		pages: map[string]string{
			resultsURL:                          page,
			"https://www.dice.com/job-detail/a": eligibleListing(),
		},
		adapters: []portal.Adapter{newFakeAdapter(portal.Dice, nil)},
		limit:    30,
	})

	sum, err := h.orch.Paginate(context.Background(), types.PortalDice, resultsURL)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Pages)
	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, 0, sum.Duplicates, "the unchanged page is not read again")
	assert.Equal(t, 1, h.browser.NavigationCount("https://www.dice.com/job-detail/a"))
	assert.Equal(t, []string{"Easy Apply", "Next"}, h.browser.ClickedTexts())
}

func TestPaginate_FailedCardNotRetriedOnLaterPage(t *testing.T) {
	failing := "https://www.dice.com/job-detail/a"
	pages := map[string]string{
		resultsURL: `<html><body>` + card("/job-detail/a", "Easy Apply") +
			nextControl(`class="cursor-pointer"`, resultsPageURL(2)) + `</body></html>`,
		resultsPageURL(2): `<html><body>` + card("/job-detail/a", "Easy Apply") + card("/job-detail/b", "Easy Apply") +
			nextControl(`class="cursor-not-allowed"`, "") + `</body></html>`,
		failing:                             `<html><body><h1>Closed</h1></body></html>`,
		"https://www.dice.com/job-detail/b": eligibleListing(),
	}
	h := newHarness(t, harnessOptions{
		pages:    pages,
		adapters: []portal.Adapter{newFakeAdapter(portal.Dice, nil)},
		limit:    30,
	})

	sum, err := h.orch.Paginate(context.Background(), types.PortalDice, resultsURL)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Pages)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 1, h.browser.NavigationCount(failing))
}

func TestPaginate_UnsupportedPortal(t *testing.T) {
	linkedin := newFakeAdapter(portal.LinkedIn, nil)
	h := newHarness(t, harnessOptions{adapters: []portal.Adapter{linkedin}, limit: 30})

	_, err := h.orch.Paginate(context.Background(), types.PortalLinkedIn, "https://www.linkedin.com/jobs")
	require.Error(t, err)
	assert.Equal(t, 0, linkedin.logins)
}

func TestPaginate_LoginError(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, nil)
	dice.loginErr = assert.AnError
	h := newHarness(t, harnessOptions{adapters: []portal.Adapter{dice}, limit: 30})

	_, err := h.orch.Paginate(context.Background(), types.PortalDice, resultsURL)

	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.False(t, h.browser.Navigated(resultsURL))
}

func TestNextDisabled_MissingControl(t *testing.T) {
	disabled, found, err := nextDisabled(`<html><body></body></html>`, portal.Dice.Pagination)
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, disabled)
}
