package listfilter

import (
	"net/url"
	"strings"
)

// ChangeList is the request-scoped view of the query parameters a changelist
// page was rendered with. Filters use it to build the links of their choices.
type ChangeList struct {
	Params map[string]string
}

// NewChangeList keeps the first value of every query parameter.
func NewChangeList(q url.Values) *ChangeList {
	params := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return &ChangeList{Params: params}
}

// QueryString returns the current params without any key starting with one of
// removePrefixes, overlaid with newParams. Keys are sorted. The result always
// starts with "?", even when empty.
func (cl *ChangeList) QueryString(newParams map[string]string, removePrefixes ...string) string {
	q := url.Values{}
	if cl != nil {
		for k, v := range cl.Params {
			if hasAnyPrefix(k, removePrefixes) {
				continue
			}
			q.Set(k, v)
		}
	}
	for k, v := range newParams {
		q.Set(k, v)
	}
	return "?" + q.Encode()
}

// Without returns a copy of the params minus the given keys. The changelist
// uses it to strip non-lookup params such as pagination before filtering.
func (cl *ChangeList) Without(keys ...string) map[string]string {
	out := make(map[string]string, len(cl.Params))
	for k, v := range cl.Params {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
