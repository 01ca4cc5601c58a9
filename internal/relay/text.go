package relay

import (
	"fmt"
	"html"
	"strings"

	"github.com/mymmrac/telego"
)

// SenderTag builds the trailing identification line appended to every
// message relayed into the master chat, e.g. "#ID555 | John Doe | @john".
func SenderTag(user *telego.User) string {
	parts := []string{fmt.Sprintf("#ID%d", user.ID)}
	if name := strings.TrimSpace(user.FirstName + " " + user.LastName); name != "" {
		parts = append(parts, html.EscapeString(name))
	}
	if user.Username != "" {
		parts = append(parts, "@"+user.Username)
	}
	return strings.Join(parts, " | ")
}

// EscapeHTML escapes user-supplied text for HTML parse mode.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}
