package util

import (
	"net/url"
)

// RedirectMatches reports whether candidate is acceptable for a client
// that registered the given redirect URI.
//
// Scheme, host and path must be identical. Query parameters follow an
// asymmetric subset rule: every key/value pair present on the registered
// URI must also appear on the candidate, while the candidate may carry
// extra parameters. Clients can therefore register a base callback URI
// and append request-time parameters such as state.
func RedirectMatches(registered, candidate string) bool {
	reg, err := url.Parse(registered)
	if err != nil {
		return false
	}
	cand, err := url.Parse(candidate)
	if err != nil {
		return false
	}

	if reg.Scheme != cand.Scheme || reg.Host != cand.Host || reg.Path != cand.Path {
		return false
	}

	return querySubset(reg.Query(), cand.Query())
}

// querySubset reports whether every key/value pair in want occurs in got.
func querySubset(want, got url.Values) bool {
	for key, values := range want {
		for _, v := range values {
			if !containsValue(got[key], v) {
				return false
			}
		}
	}
	return true
}

func containsValue(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
