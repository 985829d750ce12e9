package extract

import (
	"testing"

	"OnionHarvester/internal/domain"
)

func TestInspect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr     domain.Address
		host     string
		version  OnionVersion
		checksum bool
	}{
		{"http://3g2upl4pq6kufc4m.onion/search", "3g2upl4pq6kufc4m.onion", VersionV2, false},
		{"https://aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion", VersionV3, true},
		{"http://aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion", VersionV3, false},
		{"http://abcdefghijklmnopqrst.onion", "abcdefghijklmnopqrst.onion", VersionUnknown, false},
	}
	for _, tt := range tests {
		info := Inspect(tt.addr)
		if info.Host != tt.host {
			t.Errorf("%s: host = %q, want %q", tt.addr, info.Host, tt.host)
		}
		if info.Version != tt.version {
			t.Errorf("%s: version = %s, want %s", tt.addr, info.Version, tt.version)
		}
		if info.ChecksumValid != tt.checksum {
			t.Errorf("%s: checksum = %v, want %v", tt.addr, info.ChecksumValid, tt.checksum)
		}
	}
}
