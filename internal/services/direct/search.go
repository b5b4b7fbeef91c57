package direct

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
)

const (
	graphQLQueryID   = "voyagerSearchDashClusters.2268f03bb249beb14d05fcf85fbf8b25"
	dashDecorationID = "com.linkedin.voyager.dash.deco.search.SearchClusterCollection-175"
	htmlPageSize     = 10
)

// searchStrategy fetches up to fetch raw contacts for the query
type searchStrategy struct {
	name  string
	fetch func(ctx context.Context, query string, fetch int) ([]models.ContactRecord, error)
}

func (c *Client) strategies(csrf string) []searchStrategy {
	return []searchStrategy{
		{name: "graphql", fetch: func(ctx context.Context, query string, fetch int) ([]models.ContactRecord, error) {
			return c.searchGraphQL(ctx, csrf, query, fetch)
		}},
		{name: "dash", fetch: func(ctx context.Context, query string, fetch int) ([]models.ContactRecord, error) {
			return c.searchDash(ctx, csrf, query, fetch)
		}},
		{name: "html", fetch: c.searchHTML},
	}
}

// escape encodes a query value with %20 for spaces
func escape(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// SearchPeople runs a people search, trying each strategy in turn until one
// yields contacts that survive the filters
func (c *Client) SearchPeople(ctx context.Context, query string, opts interfaces.PeopleSearchOptions) ([]models.ContactRecord, error) {
	if !c.HasSessionToken() {
		return nil, fmt.Errorf("%w: no session token set", models.ErrNotConfigured)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	csrf := c.ensureCSRF(ctx)
	if csrf == "" {
		c.logger.Warn().Msg("Searching without CSRF token - API calls will likely fail")
	}

	searchQuery := strings.TrimSpace(query)
	if opts.CompanyFilter != "" && !strings.Contains(searchQuery, opts.CompanyFilter) {
		searchQuery = strings.TrimSpace(searchQuery + " " + opts.CompanyFilter)
	}

	var lastErr error
	failures := 0
	strategies := c.strategies(csrf)
	for i, strategy := range strategies {
		contacts, err := strategy.fetch(ctx, searchQuery, limit*3)
		if err != nil {
			failures++
			lastErr = err
			c.logger.Warn().Err(err).Str("strategy", strategy.name).Msg("Search strategy failed")
			continue
		}

		contacts = FilterContacts(contacts, opts.CompanyFilter, opts.KeywordFilter)
		contacts = Dedupe(contacts)
		// the last strategy's answer stands even when empty
		if len(contacts) == 0 && i < len(strategies)-1 {
			continue
		}

		if len(contacts) > limit {
			contacts = contacts[:limit]
		}
		c.logger.Info().
			Str("strategy", strategy.name).
			Int("contacts", len(contacts)).
			Msg("Direct search completed")
		return contacts, nil
	}

	if failures == len(strategies) {
		return nil, fmt.Errorf("%w: search: %v", models.ErrConnection, lastErr)
	}
	return []models.ContactRecord{}, nil
}

// apiGet fetches a voyager endpoint, mapping auth failures to ErrAuthentication
func (c *Client) apiGet(ctx context.Context, csrf, target string) ([]byte, error) {
	httpClient, _, _ := c.clients()
	resp, err := c.get(ctx, httpClient, target, c.apiHeaders(csrf))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", models.ErrAuthentication, resp.status)
	case resp.status != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.status)
	}
	return resp.body, nil
}

func (c *Client) searchGraphQL(ctx context.Context, csrf, query string, fetch int) ([]models.ContactRecord, error) {
	target := c.baseURL + "/voyager/api/graphql" +
		"?variables=(start:0,origin:GLOBAL_SEARCH_HEADER,query:(keywords:" + escape(query) +
		",flagshipSearchIntent:SEARCH_SRP,queryParameters:List((key:resultType,value:List(PEOPLE))),includeFiltersInResponse:false))" +
		"&queryId=" + graphQLQueryID

	body, err := c.apiGet(ctx, csrf, target)
	if err != nil {
		return nil, err
	}
	return ParseGraphQL(body, fetch)
}

func (c *Client) searchDash(ctx context.Context, csrf, query string, fetch int) ([]models.ContactRecord, error) {
	target := c.baseURL + "/voyager/api/search/dash/clusters" +
		"?decorationId=" + dashDecorationID +
		"&origin=GLOBAL_SEARCH_HEADER&q=all" +
		"&query=(keywords:" + escape(query) + ",flagshipSearchIntent:SEARCH_SRP,queryParameters:(resultType:List(PEOPLE)))" +
		"&start=0&count=" + strconv.Itoa(fetch)

	body, err := c.apiGet(ctx, csrf, target)
	if err != nil {
		return nil, err
	}
	return ParseDash(body, fetch)
}

// searchHTML pages through the rendered search results
func (c *Client) searchHTML(ctx context.Context, query string, fetch int) ([]models.ContactRecord, error) {
	httpClient, noRedirect, _ := c.clients()
	headers := c.pageHeaders(c.baseURL + "/feed/")

	var contacts []models.ContactRecord
	for page := 1; len(contacts) < fetch && page <= c.maxHTMLPages; page++ {
		target := c.baseURL + "/search/results/people/?keywords=" + escape(query)
		if page > 1 {
			target += "&page=" + strconv.Itoa(page)
		}

		resp, err := c.get(ctx, noRedirect, target, headers)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}

		if isRedirect(resp.status) {
			location := resp.header.Get("Location")
			// stay on the desktop site
			location = strings.Replace(location, "/m/", "/", 1)
			next, err := resp.finalURL.Parse(location)
			if err != nil {
				break
			}
			c.logger.Debug().Str("location", next.String()).Msg("Following search redirect")
			resp, err = c.get(ctx, httpClient, next.String(), headers)
			if err != nil {
				if page == 1 {
					return nil, err
				}
				break
			}
		}

		pageContacts, err := ParseSearchHTML(resp.body, htmlPageSize*2)
		if err != nil {
			return nil, err
		}
		if len(pageContacts) == 0 {
			break
		}
		contacts = append(contacts, pageContacts...)
	}

	return Dedupe(contacts), nil
}
