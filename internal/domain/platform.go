package domain

// Platform identifies a supported social platform. The set is fixed; adding
// a platform is a code change, not configuration.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformPinterest Platform = "pinterest"
)

// Platforms returns all supported platforms in display order.
func Platforms() []Platform {
	return []Platform{
		PlatformFacebook,
		PlatformInstagram,
		PlatformTwitter,
		PlatformLinkedIn,
		PlatformYouTube,
		PlatformTikTok,
		PlatformPinterest,
	}
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformFacebook, PlatformInstagram, PlatformTwitter,
		PlatformLinkedIn, PlatformYouTube, PlatformTikTok, PlatformPinterest:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}
