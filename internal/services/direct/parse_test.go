package direct

import (
	"testing"

	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterContacts(t *testing.T) {
	contacts := []models.ContactRecord{
		{Name: "A", Title: "Head of Sales", Company: "Acme Industries"},
		{Name: "B", Title: "Engineer at Globex"},
		{Name: "C", Title: "Sales Director at Globex"},
		{Name: "D", Title: "Buyer", Company: "Acme"},
	}

	tests := []struct {
		name     string
		company  string
		keywords string
		want     []string
	}{
		{name: "no filters", want: []string{"A", "B", "C", "D"}},
		{name: "company in company field", company: "acme", want: []string{"A", "D"}},
		{name: "company in title", company: "Globex", want: []string{"B", "C"}},
		{name: "first words of company", company: "Acme Holdings Group", want: []string{"A", "D"}},
		{name: "keyword in title", keywords: "sales", want: []string{"A", "C"}},
		{name: "any keyword", keywords: "buyer engineer", want: []string{"B", "D"}},
		{name: "both", company: "globex", keywords: "sales", want: []string{"C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			for _, c := range FilterContacts(contacts, tt.company, tt.keywords) {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestDedupe(t *testing.T) {
	contacts := Dedupe([]models.ContactRecord{
		{Name: "Jane", ProfileURL: "https://www.linkedin.com/in/jane"},
		{Name: "Jane D.", ProfileURL: "https://www.linkedin.com/in/jane"},
		{Name: "John"},
		{Name: "john "},
		{},
		{},
	})

	require.Len(t, contacts, 4)
	assert.Equal(t, "Jane", contacts[0].Name)
	assert.Equal(t, "John", contacts[1].Name)
}

func TestParseSearchHTML_ProfileLinkFallback(t *testing.T) {
	page := `<html><body>
		<a href="https://www.linkedin.com/in/carol?trk=a">Carol White</a>
		<a href="/in/dave">Dave Black</a>
		<a href="/company/acme">Acme</a>
		<a href="/in/x">X</a>
	</body></html>`

	contacts, err := ParseSearchHTML([]byte(page), 20)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "https://www.linkedin.com/in/carol", contacts[0].ProfileURL)
	assert.Equal(t, "https://www.linkedin.com/in/dave", contacts[1].ProfileURL)
}

func TestParseGraphQL_InvalidPayload(t *testing.T) {
	_, err := ParseGraphQL([]byte("not json"), 10)
	assert.Error(t, err)
}

func TestCSRFFromHTML(t *testing.T) {
	assert.Equal(t, "abc", csrfFromHTML([]byte(`<script>{"csrfToken":"abc"}</script>`)))
	assert.Equal(t, "meta", csrfFromHTML([]byte(`<meta name="csrf-token" content="meta">`)))
	assert.Empty(t, csrfFromHTML(nil))
}
