package wizard

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/autoapply/internal/browser"
)

// Listing page selectors, tried in order.
var (
	TitleSelectors   = []string{"h1"}
	CompanySelectors = []string{"[class*='company']", "[data-testid*='company']"}
	// DescriptionSelectors cover the common job board layouts.
	DescriptionSelectors = []string{
		"[class*='job-description']",
		"#job-description",
		"#jobDescriptionText",
		".jobs-description",
		"[data-testid='jobDescriptionHtml']",
	}
)

// AppliedMarkers are control labels a portal shows on listings already applied
// to. Controls in the site's navigation or header are not considered.
var AppliedMarkers = []string{"Applied", "Application submitted"}

type pageDetails struct {
	title          string
	company        string
	description    string
	hasDescription bool
}

func extractDetails(html string) (pageDetails, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return pageDetails{}, err
	}

	var d pageDetails
	d.title = firstText(doc, TitleSelectors)
	d.company = firstText(doc, CompanySelectors)

	for _, sel := range DescriptionSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			d.description = cleanText(s.Text())
			d.hasDescription = true
			break
		}
	}

	return d, nil
}

// appliedMarkerShown reports whether a visible listing control carries one of
// AppliedMarkers.
func appliedMarkerShown(controls []browser.Control) bool {
	for _, c := range controls {
		if c.Navigation {
			continue
		}
		text := cleanText(c.Text)
		for _, marker := range AppliedMarkers {
			if text == marker {
				return true
			}
		}
	}
	return false
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := cleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
