package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autoapply/internal/types"
)

func TestSiteFor_EveryPortal(t *testing.T) {
	for _, p := range types.Portals {
		t.Run(string(p), func(t *testing.T) {
			site, ok := SiteFor(p)
			require.True(t, ok)
			assert.Equal(t, p, site.Portal)
			assert.NotEmpty(t, site.LoginURL)
			assert.NotEmpty(t, site.LoginSteps)
			assert.Contains(t, site.SearchURL, "%s")
			assert.NotEmpty(t, site.ResultSelector)
		})
	}

	_, ok := SiteFor("monster")
	assert.False(t, ok)
}

func TestSearchPage_EscapesQuery(t *testing.T) {
	assert.Equal(t, "https://www.dice.com/jobs?q=go+engineer", Dice.SearchPage("go engineer"))
	assert.Equal(t, "https://www.indeed.com/jobs?q=c%2B%2B", Indeed.SearchPage("c++"))
}

func TestDetect(t *testing.T) {
	tests := []struct {
		url      string
		expected types.Portal
		ok       bool
	}{
		{"https://www.dice.com/job-detail/abc", types.PortalDice, true},
		{"https://www.linkedin.com/jobs/view/123", types.PortalLinkedIn, true},
		{"https://uk.indeed.com/viewjob?jk=1", types.PortalIndeed, true},
		{"https://notdice.com/job", "", false},
		{"https://example.com/jobs", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			p, ok := Detect(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestOnlyDiceSupportsPagination(t *testing.T) {
	require.NotNil(t, Dice.Pagination)
	assert.Nil(t, LinkedIn.Pagination)
	assert.Nil(t, Indeed.Pagination)
}
