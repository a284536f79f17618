package oauth

import (
	"fmt"
	"net/url"

	"github.com/oauthhub/oauthhub/internal/domain"
)

// Endpoints holds the provider-side URLs and default scope for a platform.
// The set is fixed at compile time; only credentials come from configuration.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	Scope       string
}

var platformEndpoints = map[domain.Platform]Endpoints{
	domain.PlatformFacebook: {
		AuthURL:     "https://www.facebook.com/v18.0/dialog/oauth",
		TokenURL:    "https://graph.facebook.com/v18.0/oauth/access_token",
		UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
		Scope:       "email,public_profile,pages_show_list,pages_read_engagement,pages_manage_posts",
	},
	domain.PlatformInstagram: {
		AuthURL:     "https://api.instagram.com/oauth/authorize",
		TokenURL:    "https://api.instagram.com/oauth/access_token",
		UserInfoURL: "https://graph.instagram.com/me?fields=id,username",
		Scope:       "user_profile,user_media",
	},
	domain.PlatformTwitter: {
		AuthURL:     "https://twitter.com/i/oauth2/authorize",
		TokenURL:    "https://api.twitter.com/2/oauth2/token",
		UserInfoURL: "https://api.twitter.com/2/users/me",
		Scope:       "tweet.read tweet.write users.read offline.access",
	},
	domain.PlatformLinkedIn: {
		AuthURL:     "https://www.linkedin.com/oauth/v2/authorization",
		TokenURL:    "https://www.linkedin.com/oauth/v2/accessToken",
		UserInfoURL: "https://api.linkedin.com/v2/userinfo",
		Scope:       "profile email w_member_social",
	},
	domain.PlatformYouTube: {
		AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:    "https://oauth2.googleapis.com/token",
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		Scope:       "https://www.googleapis.com/auth/youtube https://www.googleapis.com/auth/userinfo.profile",
	},
	domain.PlatformTikTok: {
		AuthURL:     "https://www.tiktok.com/v2/auth/authorize/",
		TokenURL:    "https://open.tiktokapis.com/v2/oauth/token/",
		UserInfoURL: "https://open.tiktokapis.com/v2/user/info/",
		Scope:       "user.info.basic video.list",
	},
	domain.PlatformPinterest: {
		AuthURL:     "https://www.pinterest.com/oauth/",
		TokenURL:    "https://api.pinterest.com/v5/oauth/token",
		UserInfoURL: "https://api.pinterest.com/v5/user_account",
		Scope:       "user_accounts:read boards:read pins:read",
	},
}

// Credentials are the per-platform OAuth client credentials.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// UsesPKCE reports whether the platform's token exchange requires a PKCE
// code verifier.
func UsesPKCE(platform domain.Platform) bool {
	return platform == domain.PlatformTwitter
}

// Registry combines the static endpoint table with configured credentials.
type Registry struct {
	creds     map[domain.Platform]Credentials
	endpoints map[domain.Platform]Endpoints
}

func NewRegistry(creds map[domain.Platform]Credentials) *Registry {
	if creds == nil {
		creds = map[domain.Platform]Credentials{}
	}
	return &Registry{creds: creds, endpoints: platformEndpoints}
}

// Configured reports whether the platform has a client ID set. Platforms
// without credentials are visible but cannot start a flow.
func (r *Registry) Configured(platform domain.Platform) bool {
	return r.creds[platform].ClientID != ""
}

// Credentials returns the configured credentials for the platform.
func (r *Registry) Credentials(platform domain.Platform) (Credentials, error) {
	c, ok := r.creds[platform]
	if !ok || c.ClientID == "" {
		return Credentials{}, fmt.Errorf("%w: %s", domain.ErrNotConfigured, platform)
	}
	return c, nil
}

// Endpoints returns the static endpoint set for the platform.
func (r *Registry) Endpoints(platform domain.Platform) (Endpoints, error) {
	e, ok := r.endpoints[platform]
	if !ok {
		return Endpoints{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, platform)
	}
	return e, nil
}

// AuthorizeURL builds the provider authorization URL for a new flow.
// codeChallenge is included only for platforms using PKCE.
func (r *Registry) AuthorizeURL(platform domain.Platform, redirectURI, state, codeChallenge string) (string, error) {
	endpoints, err := r.Endpoints(platform)
	if err != nil {
		return "", err
	}
	creds, err := r.Credentials(platform)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("client_id", creds.ClientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("scope", endpoints.Scope)
	params.Set("state", state)
	params.Set("response_type", "code")

	// Platform-specific authorization parameters
	switch {
	case platform == domain.PlatformFacebook:
		params.Set("display", "popup")
	case UsesPKCE(platform):
		params.Set("code_challenge_method", "plain")
		params.Set("code_challenge", codeChallenge)
	}

	return endpoints.AuthURL + "?" + params.Encode(), nil
}
