// Package auth authenticates console admins through GitHub OAuth and
// tracks their sessions in Redis. The bearer token handed to the browser
// is advisory: it only names the session, and the backend re-checks every
// privileged call on its side.
package auth

import "time"

// GitHubUser is the subset of the GitHub user profile the console needs.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Valid reports whether the profile has the shape the console requires:
// a positive numeric id, a login, and an avatar URL.
func (u *GitHubUser) Valid() bool {
	return u != nil && u.ID > 0 && u.Login != "" && u.AvatarURL != ""
}

// Session is one admin's authenticated state, stored in Redis under the
// login with a rolling TTL.
type Session struct {
	UserID    int64     `json:"userId"`
	Login     string    `json:"login"`
	AvatarURL string    `json:"avatarUrl"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

// tokenClaims is the decoded form of the advisory bearer token.
type tokenClaims struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Timestamp int64  `json:"timestamp"`
}
