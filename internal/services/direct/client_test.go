package direct

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const goodToken = "good-token"

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// fakeSite serves the feed and a configurable set of search endpoints
type fakeSite struct {
	graphQL   http.HandlerFunc
	dash      http.HandlerFunc
	html      http.HandlerFunc
	htmlPages atomic.Int32
}

func (f *fakeSite) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed/", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("li_at")
		if err != nil || cookie.Value != goodToken {
			http.Redirect(w, r, "/uas/login?session_redirect=feed", http.StatusFound)
			return
		}
		w.Header().Add("Set-Cookie", `JSESSIONID="ajax:123"; Path=/`)
		fmt.Fprint(w, "<html><body>feed</body></html>")
	})
	mux.HandleFunc("/voyager/api/graphql", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ajax:123", r.Header.Get("Csrf-Token"))
		if cookie, err := r.Cookie("JSESSIONID"); err != nil || cookie.Value != r.Header.Get("Csrf-Token") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, graphQLQueryID, r.URL.Query().Get("queryId"))
		f.graphQL(w, r)
	})
	mux.HandleFunc("/voyager/api/search/dash/clusters", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, dashDecorationID, r.URL.Query().Get("decorationId"))
		f.dash(w, r)
	})
	mux.HandleFunc("/search/results/people/", func(w http.ResponseWriter, r *http.Request) {
		f.htmlPages.Add(1)
		f.html(w, r)
	})
	return mux
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

func body(payload string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}
}

func newTestClient(serverURL string, kv interfaces.KeyValueStorage) *Client {
	opts := []ClientOption{
		WithBaseURL(serverURL),
		WithLogger(arbor.NewLogger()),
		WithRateLimit(0),
		WithRetryPolicy(&RetryPolicy{MaxAttempts: 1}),
	}
	if kv != nil {
		opts = append(opts, WithCSRFCache(kv, time.Hour))
	}
	return NewClient(opts...)
}

func TestClient_ValidateSession(t *testing.T) {
	site := &fakeSite{}
	server := httptest.NewServer(site.handler(t))
	defer server.Close()
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		client := newTestClient(server.URL, nil)
		valid, err := client.ValidateSession(ctx)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("valid token captures csrf", func(t *testing.T) {
		kv := newMemoryKV()
		client := newTestClient(server.URL, kv)
		client.SetSessionToken("  " + goodToken + "\n")
		require.True(t, client.HasSessionToken())

		valid, err := client.ValidateSession(ctx)
		require.NoError(t, err)
		assert.True(t, valid)

		cached, err := kv.Get(ctx, csrfCacheKey(goodToken))
		require.NoError(t, err)
		assert.Equal(t, "ajax:123", cached)
	})

	t.Run("login redirect is invalid", func(t *testing.T) {
		client := newTestClient(server.URL, nil)
		client.SetSessionToken("expired-token")

		valid, err := client.ValidateSession(ctx)
		require.NoError(t, err)
		assert.False(t, valid)
	})
}

func TestClient_ValidateSessionFollowsOtherRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("trk") == "" {
			http.Redirect(w, r, "/feed/?trk=guest", http.StatusFound)
			return
		}
		fmt.Fprint(w, `<html><head><meta name="csrf-token" content="meta-token"></head></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	kv := newMemoryKV()
	client := newTestClient(server.URL, kv)
	client.SetSessionToken(goodToken)

	valid, err := client.ValidateSession(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)

	cached, err := kv.Get(context.Background(), csrfCacheKey(goodToken))
	require.NoError(t, err)
	assert.Equal(t, "meta-token", cached)
}

func TestClient_SearchPeopleRequiresToken(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", nil)
	_, err := client.SearchPeople(context.Background(), "Acme", interfaces.PeopleSearchOptions{Limit: 5})
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}

const graphQLPayload = `{"included":[
	{"$type":"com.linkedin.voyager.dash.identity.profile.Profile","firstName":"Jane","lastName":"Doe","publicIdentifier":"jane-doe","headline":"Head of Sales at Acme"},
	{"$type":"com.linkedin.voyager.dash.identity.profile.Profile","firstName":"John","lastName":"Roe","publicIdentifier":"john-roe","headline":"Engineer at Acme"},
	{"$type":"com.linkedin.voyager.dash.identity.profile.Profile","firstName":"Jane","lastName":"Doe","publicIdentifier":"jane-doe","headline":"Head of Sales at Acme"},
	{"$type":"com.linkedin.common.Other","title":"plain string"}
]}`

func TestClient_SearchPeopleGraphQL(t *testing.T) {
	site := &fakeSite{graphQL: body(graphQLPayload), dash: status(500), html: status(500)}
	server := httptest.NewServer(site.handler(t))
	defer server.Close()

	client := newTestClient(server.URL, newMemoryKV())
	client.SetSessionToken(goodToken)

	contacts, err := client.SearchPeople(context.Background(), "Acme", interfaces.PeopleSearchOptions{Limit: 5, KeywordFilter: "sales"})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Jane Doe", contacts[0].Name)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe", contacts[0].ProfileURL)
	assert.Equal(t, "Head of Sales at Acme", contacts[0].Title)
	assert.Zero(t, site.htmlPages.Load())
}

func TestClient_SearchPeopleFallsBackToDash(t *testing.T) {
	dashPayload := `{"included":[
		{"$type":"com.linkedin.voyager.dash.search.EntityResultViewModel","title":{"text":"Alice Martin"},"primarySubtitle":{"text":"CFO"},"secondarySubtitle":{"text":"Paris"},"navigationUrl":"https://www.linkedin.com/in/alice?miniProfileUrn=x"},
		{"$type":"com.linkedin.voyager.dash.search.EntityResultViewModel","title":{"text":"A"}}
	]}`
	site := &fakeSite{graphQL: body(`{"included":[]}`), dash: body(dashPayload), html: status(500)}
	server := httptest.NewServer(site.handler(t))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	client.SetSessionToken(goodToken)

	contacts, err := client.SearchPeople(context.Background(), "Acme", interfaces.PeopleSearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, models.ContactRecord{
		Name:       "Alice Martin",
		Title:      "CFO",
		Location:   "Paris",
		ProfileURL: "https://www.linkedin.com/in/alice",
	}, contacts[0])
}

const searchPage = `<html><body><ul>
	<li><div><a data-view-name="search-result-lockup-title" href="/in/bob-smith?trk=x">Bob Smith</a></div>
		<div><span>Message</span><span>Directeur commercial chez Acme</span></div></li>
	<li><div><a data-view-name="search-result-lockup-title" href="https://www.linkedin.com/in/eve">Eve Stone</a></div></li>
</ul></body></html>`

func TestClient_SearchPeopleFallsBackToHTML(t *testing.T) {
	site := &fakeSite{
		graphQL: status(500),
		dash:    status(500),
		html: func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "" {
				fmt.Fprint(w, searchPage)
				return
			}
			fmt.Fprint(w, "<html><body></body></html>")
		},
	}
	server := httptest.NewServer(site.handler(t))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	client.SetSessionToken(goodToken)

	contacts, err := client.SearchPeople(context.Background(), "Acme", interfaces.PeopleSearchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Bob Smith", contacts[0].Name)
	assert.Equal(t, "https://www.linkedin.com/in/bob-smith", contacts[0].ProfileURL)
	assert.Equal(t, "Directeur commercial chez Acme", contacts[0].Title)
	assert.Equal(t, "Eve Stone", contacts[1].Name)
	assert.Equal(t, int32(2), site.htmlPages.Load(), "stops at the first empty page")
}

func TestClient_SearchPeopleUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	serverURL := server.URL
	server.Close()

	client := newTestClient(serverURL, nil)
	client.SetSessionToken(goodToken)

	_, err := client.SearchPeople(context.Background(), "Acme", interfaces.PeopleSearchOptions{Limit: 5})
	assert.ErrorIs(t, err, models.ErrConnection)
}

func TestClient_SetSessionTokenResetsCSRF(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", nil)
	client.SetSessionToken("first")
	client.csrf = "old"

	client.SetSessionToken("first")
	assert.Equal(t, "old", client.csrf, "same token keeps state")

	client.SetSessionToken("second")
	assert.Empty(t, client.csrf)
	assert.NotEqual(t, csrfCacheKey("first"), csrfCacheKey("second"))
	assert.True(t, strings.HasPrefix(csrfCacheKey("first"), csrfKeyPrefix))
}

func TestClient_CachedCSRFRestoresCookie(t *testing.T) {
	var feedHits atomic.Int32
	site := &fakeSite{graphQL: body(graphQLPayload), dash: status(500), html: status(500)}
	mux := http.NewServeMux()
	mux.Handle("/", site.handler(t))
	mux.HandleFunc("/feed/", func(w http.ResponseWriter, r *http.Request) {
		feedHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	ctx := context.Background()

	// A previous process captured the token and cached it
	kv := newMemoryKV()
	require.NoError(t, kv.Set(ctx, csrfCacheKey(goodToken), "ajax:123", time.Hour))

	client := newTestClient(server.URL, kv)
	client.SetSessionToken(goodToken)

	contacts, err := client.SearchPeople(ctx, "Acme", interfaces.PeopleSearchOptions{Limit: 5, KeywordFilter: "sales"})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Jane Doe", contacts[0].Name)
	assert.Zero(t, feedHits.Load(), "cached token must not refetch the feed")
	assert.Zero(t, site.htmlPages.Load())
}
