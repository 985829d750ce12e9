package domain

import (
	"strings"
)

const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
)

// Address is a normalized onion link of the form scheme://host[/path].
// Two addresses are equal iff their strings are identical.
type Address string

// NormalizeAddress prepends http:// when the link carries no http(s) scheme.
// The scheme check is case-insensitive and an explicit scheme is kept verbatim.
func NormalizeAddress(raw string) Address {
	raw = strings.TrimSpace(raw)
	if HasScheme(raw) {
		return Address(raw)
	}
	return Address(schemeHTTP + raw)
}

// HasScheme reports whether raw starts with http:// or https:// in any case.
func HasScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, schemeHTTP) || strings.HasPrefix(lower, schemeHTTPS)
}

func (a Address) String() string {
	return string(a)
}

// Category enumerates the purposes an address can be classified into.
type Category string

const (
	CategoryMarketplace      Category = "marketplace"
	CategoryForum            Category = "forum"
	CategoryBlog             Category = "blog"
	CategorySearchEngine     Category = "search_engine"
	CategoryEmail            Category = "email"
	CategoryCryptocurrency   Category = "cryptocurrency"
	CategoryHosting          Category = "hosting"
	CategorySocialNetwork    Category = "social_network"
	CategoryLibrary          Category = "library"
	CategoryTechnicalService Category = "technical_service"
	CategoryUnknown          Category = "unknown"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryMarketplace,
	CategoryForum,
	CategoryBlog,
	CategorySearchEngine,
	CategoryEmail,
	CategoryCryptocurrency,
	CategoryHosting,
	CategorySocialNetwork,
	CategoryLibrary,
	CategoryTechnicalService,
	CategoryUnknown,
}

// ParseCategory folds free text into a known category, defaulting to unknown.
func ParseCategory(raw string) Category {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	for _, c := range Categories {
		if string(c) == normalized {
			return c
		}
	}
	return CategoryUnknown
}

// Classification is a best-effort judgment about an address's purpose.
type Classification struct {
	Category    Category `json:"category"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
}

// UnknownClassification is the sentinel substituted whenever classification fails.
func UnknownClassification(reason string) Classification {
	return Classification{
		Category:    CategoryUnknown,
		Confidence:  0,
		Description: reason,
	}
}

// AnnotatedAddress couples an address with its optional classification.
type AnnotatedAddress struct {
	Address        Address         `json:"onionLink"`
	Classification *Classification `json:"classification,omitempty"`
}

// Annotate wraps plain addresses without classification.
func Annotate(addresses []Address) []AnnotatedAddress {
	out := make([]AnnotatedAddress, 0, len(addresses))
	for _, addr := range addresses {
		out = append(out, AnnotatedAddress{Address: addr})
	}
	return out
}

// DedupeAddresses keeps the first occurrence of every address, preserving order.
func DedupeAddresses(addresses []Address) []Address {
	seen := make(map[Address]struct{}, len(addresses))
	out := make([]Address, 0, len(addresses))
	for _, addr := range addresses {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
