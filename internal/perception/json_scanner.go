package perception

// findJSONCandidates scans prose for top-level JSON values (objects or
// arrays) and returns each candidate substring. Nesting is tracked with a
// delimiter stack so mixed structures ({"a": [1, {"b": 2}]}) come back as a
// single candidate; a mismatched closer abandons the current candidate.
// String contents are skipped, including escaped quotes.
//
// Note: it is safe to iterate bytes for ASCII delimiters because UTF-8
// guarantees ASCII bytes never appear inside a multi-byte sequence.
func findJSONCandidates(s string) []string {
	var candidates []string
	var stack []byte
	start := -1
	var inString bool
	var escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}

		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			// Quotes in prose outside any candidate are not JSON strings.
			if len(stack) > 0 {
				inString = true
			}
		case '{', '[':
			if len(stack) == 0 {
				start = i
			}
			stack = append(stack, b)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			if (b == '}' && open != '{') || (b == ']' && open != '[') {
				stack = stack[:0]
				start = -1
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				candidates = append(candidates, s[start:i+1])
				start = -1
			}
		}
	}

	return candidates
}
