package citations

import "strings"

// Normalize collapses runs of whitespace to single spaces, trims the result
// and removes one trailing "." or ",".
//
// A trailing run holding two or more of those characters (an ellipsis, ".,")
// is left alone so that Normalize stays idempotent.
func Normalize(text string) string {
	text = strings.Join(strings.Fields(text), " ")

	tail := len(text)
	punct := 0
	for tail > 0 {
		c := text[tail-1]
		if c == '.' || c == ',' {
			punct++
		} else if c != ' ' {
			break
		}
		tail--
	}

	if punct == 1 {
		return text[:tail]
	}
	return text
}
