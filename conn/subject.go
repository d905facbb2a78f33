package conn

import "strings"

// SubjectMatches reports whether a concrete subject matches a subscription
// pattern under NATS wildcard rules: "*" matches exactly one token and ">"
// matches one or more trailing tokens. Tokens are separated by ".".
func SubjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, pt := range pTokens {
		if pt == ">" {
			// ">" must match at least one token
			return i < len(sTokens)
		}
		if i >= len(sTokens) {
			return false
		}
		if pt != "*" && pt != sTokens[i] {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}

// HasWildcard reports whether a subject pattern contains wildcard tokens.
func HasWildcard(pattern string) bool {
	for _, token := range strings.Split(pattern, ".") {
		if token == "*" || token == ">" {
			return true
		}
	}
	return false
}
