package domain

import "testing"

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Address
	}{
		{"abcdefghijklmnop.onion", "http://abcdefghijklmnop.onion"},
		{"http://abcdefghijklmnop.onion/x", "http://abcdefghijklmnop.onion/x"},
		{"https://abcdefghijklmnop.onion", "https://abcdefghijklmnop.onion"},
		{"HTTPS://abcdefghijklmnop.onion", "HTTPS://abcdefghijklmnop.onion"},
		{"  abcdefghijklmnop.onion\n", "http://abcdefghijklmnop.onion"},
	}
	for _, tt := range tests {
		if got := NormalizeAddress(tt.in); got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := map[string]Category{
		"marketplace":       CategoryMarketplace,
		" Search Engine ":   CategorySearchEngine,
		"technical-service": CategoryTechnicalService,
		"SOCIAL_NETWORK":    CategorySocialNetwork,
		"casino":            CategoryUnknown,
		"":                  CategoryUnknown,
	}
	for in, want := range tests {
		if got := ParseCategory(in); got != want {
			t.Errorf("ParseCategory(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestComputeStats(t *testing.T) {
	t.Parallel()

	records := []PasteRecord{
		{SourceURL: "a", Addresses: []AnnotatedAddress{
			{Address: addrA, Classification: &Classification{Category: CategoryForum}},
			{Address: addrB},
		}},
		{SourceURL: "b", Addresses: []AnnotatedAddress{
			{Address: addrA, Classification: &Classification{Category: CategoryBlog}},
			{Address: addrC, Classification: &Classification{Category: "weird"}},
		}},
	}

	stats := ComputeStats(records)
	if stats.TotalPastes != 2 || stats.TotalLinks != 4 || stats.UniqueLinks != 3 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.Classified != 2 {
		t.Fatalf("expected 2 classified, got %d", stats.Classified)
	}
	if stats.ByCategory[CategoryForum] != 1 || stats.ByCategory[CategoryBlog] != 0 || stats.ByCategory[CategoryUnknown] != 1 {
		t.Fatalf("unexpected categories: %v", stats.ByCategory)
	}
}
