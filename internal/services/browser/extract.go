package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/davidR-jmd/fb-leads/internal/models"
)

const siteOrigin = "https://www.linkedin.com"

// Strategy parses one known result-card layout. It returns nil when the
// layout is absent from the page.
type Strategy struct {
	Name    string
	Extract func(doc *goquery.Document) []models.ContactRecord
}

// Strategies lists the result-card layouts from the oldest to the most generic
var Strategies = []Strategy{
	{Name: "entity-result", Extract: extractEntityResults},
	{Name: "reusable-search", Extract: extractReusableSearch},
	{Name: "chameleon-urn", Extract: extractChameleonResults},
}

// ExtractContacts runs the strategies in order and returns the first non-empty result
func ExtractContacts(html string) ([]models.ContactRecord, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse search page: %w", err)
	}
	return ExtractFromDocument(doc)
}

// ExtractFromDocument is ExtractContacts for an already parsed page
func ExtractFromDocument(doc *goquery.Document) ([]models.ContactRecord, string, error) {
	for _, strategy := range Strategies {
		if contacts := strategy.Extract(doc); len(contacts) > 0 {
			return contacts, strategy.Name, nil
		}
	}
	return []models.ContactRecord{}, "", nil
}

// firstText returns the trimmed text of the first selector that matches a non-empty node
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(s.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstProfileLink(s *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		if href, ok := s.Find(selector).First().Attr("href"); ok && href != "" {
			return CleanProfileURL(href)
		}
	}
	return ""
}

// CleanProfileURL drops the query string and makes site-relative links absolute
func CleanProfileURL(href string) string {
	href = strings.TrimSpace(href)
	if i := strings.Index(href, "?"); i >= 0 {
		href = href[:i]
	}
	if strings.HasPrefix(href, "/") {
		href = siteOrigin + href
	}
	return href
}

func extractEntityResults(doc *goquery.Document) []models.ContactRecord {
	var contacts []models.ContactRecord
	doc.Find(".entity-result, .entity-result__item").Each(func(_ int, card *goquery.Selection) {
		name := firstText(card,
			`.entity-result__title-text a span[aria-hidden="true"]`,
			`.entity-result__title-text a span:not(.visually-hidden)`,
			`[data-anonymize="person-name"]`,
		)
		if name == "" {
			return
		}
		contacts = append(contacts, models.ContactRecord{
			Name:       name,
			Title:      firstText(card, ".entity-result__primary-subtitle", `[data-anonymize="title"]`),
			Location:   firstText(card, ".entity-result__secondary-subtitle", `[data-anonymize="location"]`),
			ProfileURL: firstProfileLink(card, ".entity-result__title-text a", `a[href*="/in/"]`),
		})
	})
	return contacts
}

func extractReusableSearch(doc *goquery.Document) []models.ContactRecord {
	var contacts []models.ContactRecord
	doc.Find(`li.reusable-search__result-container, [data-view-name="search-entity-result-universal-template"]`).Each(func(_ int, card *goquery.Selection) {
		name := firstText(card, `span[aria-hidden="true"]`, ".artdeco-entity-lockup__title")
		if name == "" {
			return
		}
		contacts = append(contacts, models.ContactRecord{
			Name:       name,
			Title:      firstText(card, ".entity-result__primary-subtitle", ".artdeco-entity-lockup__subtitle"),
			Location:   firstText(card, ".entity-result__secondary-subtitle", ".artdeco-entity-lockup__caption"),
			ProfileURL: firstProfileLink(card, `a[href*="/in/"]`),
		})
	})
	return contacts
}

func extractChameleonResults(doc *goquery.Document) []models.ContactRecord {
	var contacts []models.ContactRecord
	doc.Find("[data-chameleon-result-urn]").Each(func(_ int, card *goquery.Selection) {
		name := firstText(card, `span[aria-hidden="true"]`)
		if name == "" {
			return
		}
		contacts = append(contacts, models.ContactRecord{
			Name:       name,
			ProfileURL: firstProfileLink(card, `a[href*="/in/"]`),
		})
	})
	return contacts
}
