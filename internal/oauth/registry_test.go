package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oauthhub/oauthhub/internal/domain"
)

func testRegistry() *Registry {
	return NewRegistry(map[domain.Platform]Credentials{
		domain.PlatformFacebook: {ClientID: "fb-client", ClientSecret: "fb-secret"},
		domain.PlatformTwitter:  {ClientID: "tw-client", ClientSecret: "tw-secret"},
		domain.PlatformYouTube:  {ClientID: "yt-client", ClientSecret: "yt-secret"},
	})
}

func TestRegistry_EndpointsCoverAllPlatforms(t *testing.T) {
	registry := testRegistry()

	for _, platform := range domain.Platforms() {
		endpoints, err := registry.Endpoints(platform)
		require.NoError(t, err, platform)
		assert.NotEmpty(t, endpoints.AuthURL, platform)
		assert.NotEmpty(t, endpoints.TokenURL, platform)
		assert.NotEmpty(t, endpoints.UserInfoURL, platform)
		assert.NotEmpty(t, endpoints.Scope, platform)
	}
}

func TestRegistry_EndpointsUnsupportedPlatform(t *testing.T) {
	registry := testRegistry()

	_, err := registry.Endpoints("myspace")
	assert.ErrorIs(t, err, domain.ErrUnsupportedPlatform)
}

func TestRegistry_Configured(t *testing.T) {
	registry := testRegistry()

	assert.True(t, registry.Configured(domain.PlatformFacebook))
	assert.False(t, registry.Configured(domain.PlatformPinterest))
}

func TestRegistry_CredentialsNotConfigured(t *testing.T) {
	registry := testRegistry()

	_, err := registry.Credentials(domain.PlatformLinkedIn)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestRegistry_AuthorizeURL(t *testing.T) {
	registry := testRegistry()

	rawURL, err := registry.AuthorizeURL(domain.PlatformYouTube, "https://hub.example/callback/youtube", "state-123", "")
	require.NoError(t, err)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", parsed.Host)

	params := parsed.Query()
	assert.Equal(t, "yt-client", params.Get("client_id"))
	assert.Equal(t, "https://hub.example/callback/youtube", params.Get("redirect_uri"))
	assert.Equal(t, "state-123", params.Get("state"))
	assert.Equal(t, "code", params.Get("response_type"))
	assert.NotEmpty(t, params.Get("scope"))
	assert.Empty(t, params.Get("display"))
	assert.Empty(t, params.Get("code_challenge"))
}

func TestRegistry_AuthorizeURL_FacebookPopup(t *testing.T) {
	registry := testRegistry()

	rawURL, err := registry.AuthorizeURL(domain.PlatformFacebook, "https://hub.example/callback/facebook", "state-123", "")
	require.NoError(t, err)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.Equal(t, "popup", parsed.Query().Get("display"))
}

func TestRegistry_AuthorizeURL_TwitterPKCE(t *testing.T) {
	registry := testRegistry()

	rawURL, err := registry.AuthorizeURL(domain.PlatformTwitter, "https://hub.example/callback/twitter", "state-123", "verifier-abc")
	require.NoError(t, err)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	params := parsed.Query()
	assert.Equal(t, "plain", params.Get("code_challenge_method"))
	assert.Equal(t, "verifier-abc", params.Get("code_challenge"))
	assert.NotEqual(t, params.Get("state"), params.Get("code_challenge"))
}

func TestRegistry_AuthorizeURL_NotConfigured(t *testing.T) {
	registry := testRegistry()

	_, err := registry.AuthorizeURL(domain.PlatformTikTok, "https://hub.example/callback/tiktok", "state-123", "")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestUsesPKCE(t *testing.T) {
	assert.True(t, UsesPKCE(domain.PlatformTwitter))
	for _, platform := range domain.Platforms() {
		if platform == domain.PlatformTwitter {
			continue
		}
		assert.False(t, UsesPKCE(platform), platform)
	}
}
