package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jonathan/autoapply/internal/browser"
	"github.com/jonathan/autoapply/internal/browser/browsertest"
	"github.com/jonathan/autoapply/internal/portal"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
	"github.com/jonathan/autoapply/internal/wizard"
)

// testSettle bounds the polled waits so pages that never change fail fast.
const testSettle = 20 * time.Millisecond

const (
	u1 = "https://www.dice.com/job-detail/1"
	u2 = "https://www.dice.com/job-detail/2"
	u3 = "https://www.linkedin.com/jobs/view/3"
)

type fakeAdapter struct {
	site      portal.Site
	results   map[string][]string
	searchErr map[string]error
	loginErr  error
	logins    int
	searches  []string
}

func newFakeAdapter(site portal.Site, results map[string][]string) *fakeAdapter {
	return &fakeAdapter{site: site, results: results, searchErr: map[string]error{}}
}

func (a *fakeAdapter) Portal() types.Portal { return a.site.Portal }

func (a *fakeAdapter) Site() portal.Site { return a.site }

func (a *fakeAdapter) Login(_ context.Context, _ browser.Page, _ types.Credentials) error {
	a.logins++
	return a.loginErr
}

func (a *fakeAdapter) Search(_ context.Context, _ browser.Page, query string) ([]string, error) {
	a.searches = append(a.searches, query)
	if err := a.searchErr[query]; err != nil {
		return nil, err
	}
	return a.results[query], nil
}

func eligibleListing() string {
	return `<html><body>
		<h1>Go Engineer</h1>
		<span class="company-name">Acme</span>
		<div class="job-description">2 years of Go</div>
		<button>Easy Apply</button>
	</body></html>`
}

type harness struct {
	browser *browsertest.Browser
	store   *store.FileStore
	orch    *Orchestrator
}

type harnessOptions struct {
	pages    map[string]string
	adapters []portal.Adapter
	limit    int
	seed     []string
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	ctx := context.Background()

	fs, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	for _, u := range opts.seed {
		require.NoError(t, fs.MarkApplied(ctx, u))
	}
	set, err := store.LoadAppliedSet(ctx, fs)
	require.NoError(t, err)

	adapters := make(map[types.Portal]portal.Adapter)
	for _, a := range opts.adapters {
		adapters[a.Portal()] = a
	}

	b := browsertest.NewBrowser(opts.pages)
	orch, err := New(Options{
		Page:          b.Page(),
		Adapters:      adapters,
		Applied:       set,
		Log:           fs,
		Driver:        wizard.New(wizard.Options{MaxYears: 3, SettleTimeout: testSettle}),
		ApplyLimit:    opts.limit,
		SettleTimeout: testSettle,
		RunID:         "run-1",
	})
	require.NoError(t, err)

	return &harness{browser: b, store: fs, orch: orch}
}

func (h *harness) appliedURLs(t *testing.T) []string {
	t.Helper()
	urls, err := h.store.LoadApplied(context.Background())
	require.NoError(t, err)
	return urls
}

func (h *harness) logs(t *testing.T) ([]types.AppliedRecord, []types.FailedRecord) {
	t.Helper()
	applied, err := h.store.ListApplied(context.Background())
	require.NoError(t, err)
	failed, err := h.store.ListFailed(context.Background())
	require.NoError(t, err)
	return applied, failed
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestRun_ScenarioA_Applied(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"engineer": {u1}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: eligibleListing()},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, 1, sum.Searches)
	assert.Equal(t, []string{u1}, h.appliedURLs(t))

	applied, failed := h.logs(t)
	require.Len(t, applied, 1)
	assert.Equal(t, u1, applied[0].URL)
	assert.Equal(t, "Go Engineer", applied[0].Title)
	assert.Equal(t, "Acme", applied[0].Company)
	assert.Equal(t, types.PortalDice, applied[0].Portal)
	assert.Equal(t, "run-1", applied[0].RunID)
	assert.Empty(t, failed)

	assert.Equal(t, 1, h.browser.TabsOpened)
	assert.Equal(t, 1, h.browser.TabsClosed)
	assert.Equal(t, 1, h.orch.Budget().Count())
}

func TestRun_ScenarioB_ExperienceSkip(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"engineer": {u1}})
	h := newHarness(t, harnessOptions{
		pages: map[string]string{u1: `<html><body>
			<h1>Senior Engineer</h1>
			<div class="job-description">Minimum 5 years of experience</div>
			<button>Easy Apply</button></body></html>`},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, h.appliedURLs(t))
	applied, failed := h.logs(t)
	assert.Empty(t, applied)
	require.Len(t, failed, 1)
	assert.Equal(t, types.ReasonExperience, failed[0].Reason)
	assert.Equal(t, 0, h.orch.Budget().Count())
}

func TestRun_ScenarioC_BudgetStopsBeforeNextListing(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"engineer": {u1, u2}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: eligibleListing(), u2: eligibleListing()},
		adapters: []portal.Adapter{dice},
		limit:    1,
	})

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Applied)
	assert.True(t, h.browser.Navigated(u1))
	assert.False(t, h.browser.Navigated(u2))
	assert.True(t, h.orch.Budget().Exhausted())
}

func TestRun_BudgetHaltsRemainingSpecs(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"a": {u1}, "b": {u2}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: eligibleListing(), u2: eligibleListing()},
		adapters: []portal.Adapter{dice},
		limit:    1,
	})

	_, err := h.orch.Run(context.Background(), []types.SearchSpec{
		{Portal: types.PortalDice, Query: "a"},
		{Portal: types.PortalDice, Query: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, dice.searches)
}

func TestRun_ZeroLimitOpensNothing(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"engineer": {u1}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: eligibleListing()},
		adapters: []portal.Adapter{dice},
		limit:    0,
	})

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}})
	require.NoError(t, err)
	assert.Equal(t, Summary{RunID: "run-1"}, sum)
	assert.Equal(t, 0, dice.logins)
	assert.Empty(t, h.browser.Navigations)
}

func TestRun_ScenarioD_NoApplyControl(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"engineer": {u1}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: `<html><body><h1>Go Engineer</h1><p>Contact us by mail.</p></body></html>`},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, h.appliedURLs(t))
	_, failed := h.logs(t)
	require.Len(t, failed, 1)
	assert.Equal(t, types.ReasonNoApplyControl, failed[0].Reason)
}

func TestRun_ScenarioE_LoginOncePerPortal(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, nil)
	linkedin := newFakeAdapter(portal.LinkedIn, nil)
	h := newHarness(t, harnessOptions{
		adapters: []portal.Adapter{dice, linkedin},
		limit:    30,
	})

	_, err := h.orch.Run(context.Background(), []types.SearchSpec{
		{Portal: types.PortalDice, Query: "x"},
		{Portal: types.PortalDice, Query: "y"},
		{Portal: types.PortalLinkedIn, Query: "z"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, dice.logins)
	assert.Equal(t, 1, linkedin.logins)
	assert.Equal(t, []string{"x", "y"}, dice.searches)
	assert.Equal(t, []string{"z"}, linkedin.searches)
}

func TestRun_AlreadyAppliedIsNeverReopened(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"engineer": {u1, u1}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: eligibleListing()},
		adapters: []portal.Adapter{dice},
		limit:    30,
		seed:     []string{u1},
	})

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Duplicates)
	assert.False(t, h.browser.Navigated(u1))
	assert.Equal(t, 0, h.browser.TabsOpened)
	applied, failed := h.logs(t)
	assert.Empty(t, applied)
	assert.Empty(t, failed, "duplicates are not logged")
}

func TestRun_AppliedWithinRunIsNotRepeated(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"a": {u1}, "b": {u1}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: eligibleListing()},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{
		{Portal: types.PortalDice, Query: "a"},
		{Portal: types.PortalDice, Query: "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 1, h.browser.NavigationCount(u1))
}

func TestRun_FailedListingNotRetriedWithinRun(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"go": {u1}, "golang": {u1}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: `<html><body><h1>No controls</h1></body></html>`},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{
		{Portal: types.PortalDice, Query: "go"},
		{Portal: types.PortalDice, Query: "golang"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 1, h.browser.NavigationCount(u1))
	assert.Empty(t, h.appliedURLs(t))
	_, failed := h.logs(t)
	assert.Len(t, failed, 1)
}

func TestRun_FailedListingStaysEligible(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"engineer": {u1}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: `<html><body><h1>No controls</h1></body></html>`},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})
	specs := []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}}

	_, err := h.orch.Run(context.Background(), specs)
	require.NoError(t, err)
	_, err = h.orch.Run(context.Background(), specs)
	require.NoError(t, err)

	assert.Equal(t, 2, h.browser.NavigationCount(u1))
	_, failed := h.logs(t)
	assert.Len(t, failed, 2)
}

func TestRun_LoginErrorIsFatal(t *testing.T) {
	cause := errors.New("form missing")
	dice := newFakeAdapter(portal.Dice, map[string][]string{"engineer": {u1}})
	dice.loginErr = cause
	linkedin := newFakeAdapter(portal.LinkedIn, map[string][]string{"go": {u3}})
	h := newHarness(t, harnessOptions{
		adapters: []portal.Adapter{dice, linkedin},
		limit:    30,
	})

	_, err := h.orch.Run(context.Background(), []types.SearchSpec{
		{Portal: types.PortalDice, Query: "engineer"},
		{Portal: types.PortalLinkedIn, Query: "go"},
	})

	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.Equal(t, types.PortalDice, loginErr.Portal)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, dice.searches)
	assert.Equal(t, 0, linkedin.logins)
}

func TestRun_SearchErrorSkipsSpec(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"good": {u1}})
	dice.searchErr["bad"] = &browser.TimeoutError{Op: "search"}
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: eligibleListing()},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{
		{Portal: types.PortalDice, Query: "bad"},
		{Portal: types.PortalDice, Query: "good"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Searches)
	assert.Equal(t, 1, sum.Applied)
}

func TestRun_UnknownPortal(t *testing.T) {
	h := newHarness(t, harnessOptions{
		adapters: []portal.Adapter{newFakeAdapter(portal.Dice, nil)},
		limit:    30,
	})

	_, err := h.orch.Run(context.Background(), []types.SearchSpec{{Portal: types.PortalIndeed, Query: "x"}})
	assert.Error(t, err)
}

func TestRun_ContextCancelled(t *testing.T) {
	dice := newFakeAdapter(portal.Dice, map[string][]string{"engineer": {u1}})
	h := newHarness(t, harnessOptions{
		pages:    map[string]string{u1: eligibleListing()},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.Run(ctx, []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.browser.Navigations)
}

func TestRun_WithDiceAdapter(t *testing.T) {
	loginPage := `<html><body>
		<input name="email"><button>Continue</button>
		<input name="password"><button>Sign In</button>
	</body></html>`
	searchPage := `<html><body>
		<a href="/job-detail/1">Go Engineer</a>
		<a href="/job-detail/1#apply">Go Engineer</a>
	</body></html>`

	dice := portal.New(portal.Dice, portal.Options{})
	h := newHarness(t, harnessOptions{
		pages: map[string]string{
			portal.Dice.LoginURL:               loginPage,
			portal.Dice.SearchPage("engineer"): searchPage,
			u1:                                 eligibleListing(),
		},
		adapters: []portal.Adapter{dice},
		limit:    30,
	})
	h.orch.creds[types.PortalDice] = types.Credentials{Email: "me@example.com", Password: "secret"}

	sum, err := h.orch.Run(context.Background(), []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, []string{u1}, h.appliedURLs(t))
	assert.Equal(t, []string{"Continue", "Sign In", "Easy Apply"}, h.browser.ClickedTexts())
	require.Len(t, h.browser.Fills, 2)
	assert.Equal(t, "me@example.com", h.browser.Fills[0].Value)
}

func TestRun_MissingCredentialsIsLoginError(t *testing.T) {
	dice := portal.New(portal.Dice, portal.Options{})
	h := newHarness(t, harnessOptions{adapters: []portal.Adapter{dice}, limit: 30})

	_, err := h.orch.Run(context.Background(), []types.SearchSpec{{Portal: types.PortalDice, Query: "engineer"}})

	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.ErrorIs(t, err, portal.ErrMissingCredentials)
}

func TestNewPacer(t *testing.T) {
	assert.Equal(t, rate.Inf, newPacer(0).Limit())
	assert.Equal(t, rate.Limit(0.5), newPacer(30).Limit())
}
