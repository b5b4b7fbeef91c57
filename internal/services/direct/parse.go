package direct

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/davidR-jmd/fb-leads/internal/services/browser"
)

const (
	profileType      = "com.linkedin.voyager.dash.identity.profile.Profile"
	entityResultType = "com.linkedin.voyager.dash.search.EntityResultViewModel"
)

var (
	csrfPattern        = regexp.MustCompile(`"csrfToken":"([^"]+)"`)
	profileLinkPattern = regexp.MustCompile(`linkedin\.com/in/[^/?#]+`)

	// card chrome that is never a headline
	uiWords = []string{"se connecter", "message", "suivre", "connexion"}
)

type voyagerResponse struct {
	Included []json.RawMessage `json:"included"`
}

type textViewModel struct {
	Text string `json:"text"`
}

type includedItem struct {
	Type              string          `json:"$type"`
	FirstName         string          `json:"firstName"`
	LastName          string          `json:"lastName"`
	PublicIdentifier  string          `json:"publicIdentifier"`
	Headline          string          `json:"headline"`
	Title             json.RawMessage `json:"title"`
	PrimarySubtitle   json.RawMessage `json:"primarySubtitle"`
	SecondarySubtitle json.RawMessage `json:"secondarySubtitle"`
	NavigationURL     string          `json:"navigationUrl"`
}

// text reads a {"text": ...} view model, tolerating other shapes
func text(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var vm textViewModel
	if err := json.Unmarshal(raw, &vm); err != nil {
		return ""
	}
	return strings.TrimSpace(vm.Text)
}

// decodeIncluded decodes the entries of a normalized voyager payload,
// skipping entries of unexpected shape
func decodeIncluded(body []byte) ([]includedItem, error) {
	var payload voyagerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode voyager response: %w", err)
	}

	items := make([]includedItem, 0, len(payload.Included))
	for _, raw := range payload.Included {
		var item includedItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func profileURL(publicID string) string {
	if publicID == "" {
		return ""
	}
	return "https://www.linkedin.com/in/" + publicID
}

// ParseGraphQL extracts profiles from the GraphQL search payload
func ParseGraphQL(body []byte, limit int) ([]models.ContactRecord, error) {
	items, err := decodeIncluded(body)
	if err != nil {
		return nil, err
	}

	contacts := []models.ContactRecord{}
	for _, item := range items {
		if item.Type != profileType {
			continue
		}
		name := strings.TrimSpace(item.FirstName + " " + item.LastName)
		if name == "" {
			continue
		}
		contacts = append(contacts, models.ContactRecord{
			Name:       name,
			Title:      strings.TrimSpace(item.Headline),
			ProfileURL: profileURL(item.PublicIdentifier),
		})
		if limit > 0 && len(contacts) >= limit {
			break
		}
	}
	return contacts, nil
}

// ParseDash extracts entity results from the dash clusters payload
func ParseDash(body []byte, limit int) ([]models.ContactRecord, error) {
	items, err := decodeIncluded(body)
	if err != nil {
		return nil, err
	}

	contacts := []models.ContactRecord{}
	for _, item := range items {
		if item.Type != entityResultType {
			continue
		}
		name := text(item.Title)
		if len(name) < 2 {
			continue
		}
		contacts = append(contacts, models.ContactRecord{
			Name:       name,
			Title:      text(item.PrimarySubtitle),
			Location:   text(item.SecondarySubtitle),
			ProfileURL: browser.CleanProfileURL(item.NavigationURL),
		})
		if limit > 0 && len(contacts) >= limit {
			break
		}
	}
	return Dedupe(contacts), nil
}

// ParseSearchHTML extracts contacts from a rendered search page: lockup
// title links first, any profile link otherwise
func ParseSearchHTML(body []byte, limit int) ([]models.ContactRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	contacts := []models.ContactRecord{}
	doc.Find(`a[data-view-name="search-result-lockup-title"]`).Each(func(_ int, link *goquery.Selection) {
		name := strings.TrimSpace(link.Text())
		if len(name) < 2 {
			return
		}
		href, _ := link.Attr("href")
		contacts = append(contacts, models.ContactRecord{
			Name:       name,
			Title:      nearbyHeadline(link, name),
			ProfileURL: browser.CleanProfileURL(href),
		})
	})

	if len(contacts) == 0 {
		doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			if !profileLinkPattern.MatchString(href) && !strings.HasPrefix(href, "/in/") {
				return
			}
			name := strings.TrimSpace(link.Text())
			if len(name) < 2 || len(name) >= 100 {
				return
			}
			contacts = append(contacts, models.ContactRecord{
				Name:       name,
				ProfileURL: browser.CleanProfileURL(href),
			})
		})
	}

	contacts = Dedupe(contacts)
	if limit > 0 && len(contacts) > limit {
		contacts = contacts[:limit]
	}
	return contacts, nil
}

// nearbyHeadline walks up to five ancestors looking for a span that reads like a headline
func nearbyHeadline(link *goquery.Selection, name string) string {
	parent := link.Parent()
	for level := 0; level < 5 && parent.Length() > 0; level++ {
		headline := ""
		parent.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
			candidate := strings.TrimSpace(span.Text())
			if candidate == "" || candidate == name || len(candidate) <= 5 || len(candidate) >= 200 {
				return true
			}
			lower := strings.ToLower(candidate)
			for _, word := range uiWords {
				if strings.Contains(lower, word) {
					return true
				}
			}
			headline = candidate
			return false
		})
		if headline != "" {
			return headline
		}
		parent = parent.Parent()
	}
	return ""
}

// csrfFromHTML finds the anti-forgery token embedded in a page
func csrfFromHTML(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		if token, ok := doc.Find(`meta[name="csrf-token"]`).First().Attr("content"); ok && token != "" {
			return token
		}
	}
	if m := csrfPattern.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	return ""
}

// FilterContacts keeps contacts matching the company and keyword filters.
// The company matches as a substring of the company or title, or when one of
// its first two words appears in the company; a keyword matches when any of
// its words appears in the title.
func FilterContacts(contacts []models.ContactRecord, companyFilter, keywordFilter string) []models.ContactRecord {
	company := strings.ToLower(strings.TrimSpace(companyFilter))
	keywords := strings.Fields(strings.ToLower(keywordFilter))
	if company == "" && len(keywords) == 0 {
		return contacts
	}

	companyWords := strings.Fields(company)
	if len(companyWords) > 2 {
		companyWords = companyWords[:2]
	}

	filtered := []models.ContactRecord{}
	for _, contact := range contacts {
		title := strings.ToLower(contact.Title)

		if company != "" {
			contactCompany := strings.ToLower(contact.Company)
			match := strings.Contains(contactCompany, company) || strings.Contains(title, company)
			for _, word := range companyWords {
				if match {
					break
				}
				match = contactCompany != "" && strings.Contains(contactCompany, word)
			}
			if !match {
				continue
			}
		}

		if len(keywords) > 0 {
			match := false
			for _, kw := range keywords {
				if strings.Contains(title, kw) {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}

		filtered = append(filtered, contact)
	}
	return filtered
}

// Dedupe drops repeated contacts, keyed by profile URL else name, keeping first occurrences
func Dedupe(contacts []models.ContactRecord) []models.ContactRecord {
	seen := make(map[string]struct{}, len(contacts))
	unique := make([]models.ContactRecord, 0, len(contacts))
	for _, contact := range contacts {
		key := contact.DedupKey()
		if key != "" {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		unique = append(unique, contact)
	}
	return unique
}
