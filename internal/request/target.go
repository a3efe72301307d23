package request

import "strings"

// splitTarget separates the raw request target into path and raw query
// on the first '?', per spec.md §4.3.
func splitTarget(target string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}

// decodePath URL-decodes %20 into a space, passes other percent-encodings
// through literally (spec.md deliberately does not require strict
// percent-decoding here), then collapses consecutive slashes and ensures
// a leading slash.
func decodePath(raw string) string {
	decoded := decodePercent(raw)
	decoded = collapseSlashes(decoded)
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}
	return decoded
}

// decodePercent only recognizes %20; any other percent sequence (malformed
// or otherwise) is copied through byte-for-byte, matching spec.md's
// "other percent-encodings may be passed through literally".
func decodePercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && s[i+1] == '2' && s[i+2] == '0' {
			sb.WriteByte(' ')
			i += 2
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func collapseSlashes(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	prevSlash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// parseQuery splits the raw query string into a key/value map,
// '&'-separated pairs, '='-split, URL-decoded the same way as the path.
func parseQuery(raw string) map[string]string {
	params := map[string]string{}
	if raw == "" {
		return params
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, hasEq := strings.Cut(pair, "=")
		k = decodePercent(k)
		if hasEq {
			v = decodePercent(v)
		}
		params[k] = v
	}
	return params
}

// ContainsDotDot reports whether the decoded path contains a ".." path
// segment, the guardrail spec.md §4.4 requires the GET handler to apply.
func ContainsDotDot(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
