package post

import "strings"

// Platform is a supported social network.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformLinkedIn Platform = "linkedin"
)

// DefaultPlatform is used when a request names none.
const DefaultPlatform = PlatformTwitter

// Platforms lists every supported platform in display order.
func Platforms() []Platform {
	return []Platform{PlatformTwitter, PlatformLinkedIn}
}

// ParsePlatform normalizes s. An empty string yields DefaultPlatform.
func ParsePlatform(s string) (Platform, bool) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPlatform, true
	case PlatformTwitter, PlatformLinkedIn:
		return p, true
	default:
		return p, false
	}
}

// Valid reports whether p is supported.
func (p Platform) Valid() bool {
	return p == PlatformTwitter || p == PlatformLinkedIn
}

// DisplayName is the human label shown in pages and CLI output.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformTwitter:
		return "X (Twitter)"
	case PlatformLinkedIn:
		return "LinkedIn"
	default:
		return string(p)
	}
}
