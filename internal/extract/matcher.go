// Package extract finds onion service addresses in free text.
package extract

import (
	"regexp"

	"OnionHarvester/internal/domain"
)

// onionPattern matches an optional http(s) scheme, a 16 to 56 character base32
// label, the .onion suffix and an optional path. The label must not be
// preceded by another label character so longer labels never match partially.
var onionPattern = regexp.MustCompile(`(?:^|[^a-zA-Z2-7])((?i:https?://)?[a-zA-Z2-7]{16,56}(?i:\.onion)(?:/\S*)?)`)

// Extract returns every onion address in text in order of appearance.
// Repeated occurrences are kept. Addresses without a scheme get http://.
func Extract(text string) []domain.Address {
	matches := onionPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]domain.Address, 0, len(matches))
	for _, m := range matches {
		out = append(out, domain.NormalizeAddress(text[m[2]:m[3]]))
	}
	return out
}

// ExtractUnique is Extract with duplicates removed, first occurrence kept.
func ExtractUnique(text string) []domain.Address {
	return domain.DedupeAddresses(Extract(text))
}
