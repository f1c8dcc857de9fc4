package mysql

import "strings"

// stringOrDash normalizes empty tenant values to "-" so the tenant_id
// column stays non-empty and indexable.
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
