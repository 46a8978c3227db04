package textcheck

import "unicode"

// cjkPunctuation covers the full-width punctuation marks that count as one
// unit each.
const cjkPunctuation = "，。！？；：“”‘’【】（）《》、…—～·"

func isCJKIdeograph(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fff
}

func isCJKPunct(r rune) bool {
	for _, p := range cjkPunctuation {
		if r == p {
			return true
		}
	}
	return false
}

// isWordLetter covers alphabetic scripts whose consecutive letters form
// a single word unit. CJK ideographs count one unit each and are
// excluded.
func isWordLetter(r rune) bool {
	return unicode.IsLetter(r) && !isCJKIdeograph(r)
}

// CountUnits counts countable units in text.
//
// Rules: 1 per CJK ideograph, 1 per CJK punctuation mark, 1 per maximal
// run of alphabetic letters, 1 per maximal run of digits, 1 per any
// other non-space character. All whitespace is stripped before counting.
func CountUnits(text string) int {
	if text == "" {
		return 0
	}

	runes := make([]rune, 0, len(text))
	for _, r := range text {
		if !unicode.IsSpace(r) {
			runes = append(runes, r)
		}
	}

	count := 0
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case isCJKIdeograph(r):
			count++
			i++
		case isCJKPunct(r):
			count++
			i++
		case isWordLetter(r):
			for i < len(runes) && isWordLetter(runes[i]) {
				i++
			}
			count++
		case unicode.IsDigit(r):
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			count++
		default:
			count++
			i++
		}
	}

	return count
}
