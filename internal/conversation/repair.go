package conversation

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// UnknownEmoji replaces private-use emoji that have no modern equivalent.
const UnknownEmoji = "UNKNOWN EMOJI"

// legacyEmoji maps non-standard code points found in old exports to modern emoji.
var legacyEmoji = map[rune]string{
	'\U000FE32A': "\U0001F61D", // face with stuck-out tongue and tightly-closed eyes
	'\U000FE332': "\U0001F606", // smiling face with open mouth and tightly-closed eyes
	'\U000FE334': "\U0001F602", // face with tears of joy
	'\U000FE335': "\U0001F60A", // smiling face with smiling eyes
	'\U000FE343': "\U0001F60F", // smirking face
	'\U000FE516': "\U0001F388", // balloon
	'\u2661':     "\U0001F90D", // white heart suit
	'\U000FEC00': UnknownEmoji,
}

// Repair fixes text that was UTF-8 encoded and then escaped byte by byte as
// Latin-1 code points, which is how the export stores every string.
// Text that is already correct is returned unchanged.
func Repair(s string) string {
	if s == "" {
		return s
	}
	for _, r := range s {
		if r > 0xFF {
			return s
		}
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(raw) {
		return s
	}
	return raw
}

// RepairEmoji rewrites legacy emoji code points. It must run once per field,
// after Repair.
func RepairEmoji(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { _, ok := legacyEmoji[r]; return ok }) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if rep, ok := legacyEmoji[r]; ok {
			sb.WriteString(rep)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func normalizeName(s string) string {
	s = Repair(s)
	if s == "" {
		return UnknownParticipant
	}
	return s
}
