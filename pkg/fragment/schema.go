package fragment

import (
	"encoding/json"
	"strings"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// Parse decodes a possibly-incomplete fragment JSON document. During
// streaming the raw text grows monotonically but is rarely valid JSON at
// any given instant; Parse repairs the tail (unterminated strings, open
// objects and arrays, dangling keys) and decodes the result.
//
// Every successful Parse yields a full fragment snapshot. Callers replace
// their previous fragment wholesale; field values are never merged or
// diffed against earlier snapshots.
func Parse(raw string) (*api.Fragment, bool) {
	raw = strings.TrimSpace(raw)

	// Tolerate markdown fences and leading prose around the JSON document.
	if i := strings.IndexByte(raw, '{'); i > 0 {
		raw = raw[i:]
	} else if i < 0 {
		return nil, false
	}

	for raw != "" {
		if frag, ok := tryDecode(raw); ok {
			return frag, true
		}
		raw = backtrack(raw)
	}
	return nil, false
}

// ParseComplete decodes a fragment from text that must already be valid
// JSON, used once the stream has finished.
func ParseComplete(raw string) (*api.Fragment, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '{'); i > 0 {
		raw = raw[i:]
	}
	if j := strings.LastIndexByte(raw, '}'); j >= 0 {
		raw = raw[:j+1]
	}

	var frag api.Fragment
	if err := json.Unmarshal([]byte(raw), &frag); err != nil {
		return nil, api.NewStreamError(api.StreamErrorGeneric,
			"model output is not a valid fragment: "+err.Error())
	}
	return &frag, nil
}

func tryDecode(raw string) (*api.Fragment, bool) {
	var frag api.Fragment
	if err := json.Unmarshal([]byte(closeOpen(raw)), &frag); err != nil {
		return nil, false
	}
	return &frag, true
}

// closeOpen appends the closers for every unterminated string, object, and
// array in raw. A trailing lone backslash is dropped so the closing quote
// cannot be escaped away.
func closeOpen(raw string) string {
	var stack []byte
	inString, escaped := false, false

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.Grow(len(raw) + len(stack) + 1)
	if escaped {
		b.WriteString(raw[:len(raw)-1])
	} else {
		b.WriteString(raw)
	}
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// backtrack drops the trailing partial token (typically a dangling key or
// half-written literal) by cutting at the previous structural comma or
// opening bracket.
func backtrack(raw string) string {
	cut := strings.LastIndexAny(raw[:len(raw)-1], ",{[")
	if cut < 0 {
		return ""
	}
	if raw[cut] == ',' {
		return raw[:cut]
	}
	return raw[:cut+1]
}
