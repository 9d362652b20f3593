package access

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// CodePrefix derives the three-letter code prefix from an institution name:
// the first three alphabetic characters, uppercased. Names with fewer than
// three letters are padded with 'X'.
func CodePrefix(institutionName string) string {
	var letters []rune
	for _, r := range institutionName {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
			if len(letters) == 3 {
				break
			}
		}
	}
	for len(letters) < 3 {
		letters = append(letters, 'X')
	}
	return string(letters)
}

// NextCode picks the next user code for a prefix: the smallest positive
// sequence number not already taken, zero-padded to three digits. Codes that
// do not parse as prefix+digits are ignored rather than treated as taken.
func NextCode(existing []string, prefix string) string {
	taken := make(map[int]bool, len(existing))
	for _, code := range existing {
		if !strings.HasPrefix(code, prefix) {
			continue
		}
		n, err := strconv.Atoi(code[len(prefix):])
		if err != nil || n <= 0 {
			continue
		}
		taken[n] = true
	}

	n := 1
	for taken[n] {
		n++
	}
	return fmt.Sprintf("%s%03d", prefix, n)
}
