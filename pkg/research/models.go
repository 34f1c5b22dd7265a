package research

import "tiktokgraph/pkg/graph"

// UserInfo is the public profile returned by the user info endpoint
type UserInfo struct {
	// Username is the handle the profile was requested for; not part of the payload
	Username       string `json:"-"`
	DisplayName    string `json:"display_name"`
	BioDescription string `json:"bio_description"`
	AvatarURL      string `json:"avatar_url"`
	IsVerified     bool   `json:"is_verified"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	LikesCount     int64  `json:"likes_count"`
	VideoCount     int64  `json:"video_count"`
}

// Node converts the profile into a node table row
func (u *UserInfo) Node() graph.Node {
	return graph.Node{
		Name:           u.Username,
		DisplayName:    u.DisplayName,
		BioDescription: u.BioDescription,
		AvatarURL:      u.AvatarURL,
		IsVerified:     u.IsVerified,
		FollowerCount:  u.FollowerCount,
		FollowingCount: u.FollowingCount,
		LikesCount:     u.LikesCount,
		VideoCount:     u.VideoCount,
	}
}

// Relation is one account in a followers or following page
type Relation struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
}

// RelationPage is one page of followers or followed accounts
type RelationPage struct {
	Users   []Relation
	Cursor  int64
	HasMore bool
}

// apiError is the error object every response carries; Code is "ok" on success
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

type followersData struct {
	UserFollowers []Relation `json:"user_followers"`
	Cursor        int64      `json:"cursor"`
	HasMore       bool       `json:"has_more"`
}

type followingData struct {
	UserFollowing []Relation `json:"user_following"`
	Cursor        int64      `json:"cursor"`
	HasMore       bool       `json:"has_more"`
}

type userInfoRequest struct {
	Username string `json:"username"`
}

type relationRequest struct {
	Username string `json:"username"`
	MaxCount int    `json:"max_count"`
	Cursor   int64  `json:"cursor,omitempty"`
}
