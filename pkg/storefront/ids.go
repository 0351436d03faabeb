package storefront

import (
	"strings"
)

const gidScheme = "gid://"

// NormalizeID turns a global id such as "gid://shopify/Order/123" into the
// bare numeric id "123". Bare ids are returned trimmed and otherwise unchanged.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, gidScheme) {
		return id
	}
	id = strings.TrimPrefix(id, gidScheme)
	if i := strings.IndexByte(id, '?'); i >= 0 {
		id = id[:i]
	}
	id = strings.TrimRight(id, "/")
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}
