package connection

import "strings"

// trimCookie accepts either the bare li_at value or a pasted "li_at=..." pair
func trimCookie(cookie string) string {
	cookie = strings.TrimSpace(cookie)
	cookie = strings.TrimPrefix(cookie, "li_at=")
	if i := strings.Index(cookie, ";"); i >= 0 {
		cookie = cookie[:i]
	}
	return strings.Trim(cookie, `"`)
}
