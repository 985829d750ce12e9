package extract

import (
	"encoding/base32"
	"net/url"
	"strings"

	"golang.org/x/crypto/sha3"

	"OnionHarvester/internal/domain"
)

// OnionVersion is the onion service protocol version implied by the label length.
type OnionVersion string

const (
	VersionV2      OnionVersion = "v2"
	VersionV3      OnionVersion = "v3"
	VersionUnknown OnionVersion = "unknown"
)

const (
	v2LabelLength = 16
	v3LabelLength = 56
	v3Version     = 0x03
	onionSuffix   = ".onion"
)

var checksumPrefix = []byte(".onion checksum")

// OnionInfo describes the host part of an address.
type OnionInfo struct {
	Host          string
	Version       OnionVersion
	ChecksumValid bool
}

// Inspect reports the onion host, its version and, for v3 hosts, whether the
// embedded checksum is valid. It never rejects an address.
func Inspect(addr domain.Address) OnionInfo {
	host := hostOf(string(addr))
	info := OnionInfo{Host: host, Version: VersionUnknown}

	label := strings.TrimSuffix(strings.ToLower(host), onionSuffix)
	if idx := strings.LastIndexByte(label, '.'); idx >= 0 {
		label = label[idx+1:]
	}
	switch len(label) {
	case v2LabelLength:
		info.Version = VersionV2
	case v3LabelLength:
		info.Version = VersionV3
		info.ChecksumValid = validV3Checksum(label)
	}
	return info
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Hostname()
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "http://"), "https://")
	if idx := strings.IndexByte(raw, '/'); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}

// validV3Checksum decodes the 35 byte payload (public key, checksum, version)
// and compares the checksum with SHA3-256(".onion checksum" || pubkey || version).
func validV3Checksum(label string) bool {
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(label))
	if err != nil || len(decoded) != 35 {
		return false
	}
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != v3Version {
		return false
	}

	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return checksum[0] == sum[0] && checksum[1] == sum[1]
}
