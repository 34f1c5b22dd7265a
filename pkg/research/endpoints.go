package research

import (
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the base URL of the TikTok Open API
	DefaultBaseURL = "https://open.tiktokapis.com"

	// TokenEndpoint issues client-credentials access tokens
	TokenEndpoint = "/v2/oauth/token/"

	// UserInfoEndpoint returns the public profile of one user
	UserInfoEndpoint = "/v2/research/user/info/"

	// FollowersEndpoint lists the followers of one user
	FollowersEndpoint = "/v2/research/user/followers/"

	// FollowingEndpoint lists the accounts one user follows
	FollowingEndpoint = "/v2/research/user/following/"

	// DefaultPageSize is the number of relations requested per page
	DefaultPageSize = 100

	// MaxPageSize is the largest page the API serves
	MaxPageSize = 100
)

// UserInfoFields are the profile fields requested from UserInfoEndpoint
var UserInfoFields = []string{
	"display_name",
	"bio_description",
	"avatar_url",
	"is_verified",
	"follower_count",
	"following_count",
	"likes_count",
	"video_count",
}

// TokenURL returns the token endpoint under baseURL
func TokenURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + TokenEndpoint
}

// UserInfoURL returns the user info endpoint under baseURL with the field list
func UserInfoURL(baseURL string) string {
	params := url.Values{}
	params.Set("fields", strings.Join(UserInfoFields, ","))
	return strings.TrimRight(baseURL, "/") + UserInfoEndpoint + "?" + params.Encode()
}

// FollowersURL returns the followers endpoint under baseURL
func FollowersURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + FollowersEndpoint
}

// FollowingURL returns the following endpoint under baseURL
func FollowingURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + FollowingEndpoint
}

// clampPageSize keeps n within 1..MaxPageSize
func clampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// IsValidHandle checks if a handle only uses characters TikTok allows
func IsValidHandle(handle string) bool {
	if handle == "" || len(handle) > 24 {
		return false
	}

	// letters, numbers, periods, and underscores
	for _, char := range handle {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return !strings.HasSuffix(handle, ".")
}

// SanitizeHandle strips a leading @ and surrounding whitespace or slashes
func SanitizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.TrimRight(handle, "/ ")
}
