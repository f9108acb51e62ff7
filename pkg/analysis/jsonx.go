package analysis

import "strings"

// The multimodal models wrap their JSON in prose, code fences, or emit
// it twice; occasionally the tail is cut off at the token limit. The
// helpers below recover the first complete object where possible.

// firstJSONObject returns the first balanced {...} span in text, or ""
// if no opening brace exists. An unbalanced span is returned from the
// first brace to the end so the caller can attempt repair.
func firstJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return text[start:]
}

// stripCodeFence unwraps ```json ... ``` (or bare ```) blocks.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}

	start := strings.Index(text, "```")
	rest := text[start+3:]
	// Skip an optional language tag up to the first newline.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		if !strings.ContainsAny(rest[:nl], "{}") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

type jsonBalance struct {
	braces   int
	brackets int
	oddQuote bool
}

func (b jsonBalance) balanced() bool {
	return b.braces == 0 && b.brackets == 0 && !b.oddQuote
}

func countBalance(text string) jsonBalance {
	var bal jsonBalance
	escaped := false
	inString := false

	for _, c := range text {
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			bal.oddQuote = !bal.oddQuote
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			bal.braces++
		case '}':
			bal.braces--
		case '[':
			bal.brackets++
		case ']':
			bal.brackets--
		}
	}
	return bal
}

// repairTruncated closes open strings, arrays, and objects in JSON that
// was cut off mid-stream. Balanced input is returned unchanged.
func repairTruncated(text string) string {
	text = strings.TrimSpace(text)

	bal := countBalance(text)
	if bal.balanced() {
		return text
	}

	// An array cut mid-element usually breaks after a comma; drop the
	// incomplete last item before closing up, then recount.
	if bal.brackets > 0 {
		if comma := strings.LastIndex(text, ","); comma > 0 {
			text = text[:comma]
			bal = countBalance(text)
		}
	}

	if bal.oddQuote {
		text += `"`
	}
	for i := 0; i < bal.brackets; i++ {
		text += "]"
	}
	for i := 0; i < bal.braces; i++ {
		text += "}"
	}
	return text
}
