// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole controls access to administrative operations such as adminForce deletes.
type UserRole string

const (
	// RoleUser is the default role for registered accounts.
	RoleUser UserRole = "user"
	// RoleAdmin may force-delete any post.
	RoleAdmin UserRole = "admin"
)

// User represents an account in the Loom application.
type User struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	Username     string   `gorm:"unique;not null" json:"username"`
	Email        string   `gorm:"unique;not null" json:"email"`
	Password     string   `gorm:"not null" json:"-"`
	DisplayName  string   `gorm:"size:50" json:"display_name"`
	Bio          string   `gorm:"size:160" json:"bio"`
	Website      string   `json:"website"`
	AvatarURL    string   `json:"avatar_url"`
	AvatarBlobID string   `json:"-"`
	Role         UserRole `gorm:"type:varchar(16);default:'user'" json:"role"`
	IsVerified   bool     `gorm:"default:false" json:"is_verified"`
	ProfileViews int      `gorm:"default:0" json:"profile_views"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`

	// FollowersCount and FollowingCount are not persisted; computed at query time.
	FollowersCount int `gorm:"-" json:"followers_count"`
	FollowingCount int `gorm:"-" json:"following_count"`
	// ProfileLikes is not persisted; computed at query time.
	ProfileLikes int `gorm:"-" json:"profile_likes"`
	// IsFollowed: the requesting viewer follows this user (computed).
	IsFollowed bool `gorm:"-" json:"is_followed"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Posts []Post `gorm:"foreignKey:AuthorID" json:"posts,omitempty"`
}

// Session is one logged-in device: a stored, HMAC-hashed refresh token record.
// The raw refresh token is never persisted.
type Session struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	TokenHash  string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	IP         string    `gorm:"size:45" json:"ip"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
}

// Follow is a directed follow edge. A single row carries both directions of
// the relation (B is in A's following iff A is in B's followers), so the
// symmetry invariant cannot be broken by a partial write.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_edge" json:"follower_id"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_follow_edge;index" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`

	Follower User `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Followee User `gorm:"foreignKey:FolloweeID" json:"followee,omitempty"`
}

// ProfileLike is a like on a user's profile (not on a post).
type ProfileLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LikerID   uint      `gorm:"not null;uniqueIndex:idx_profile_like_edge" json:"liker_id"`
	LikeeID   uint      `gorm:"not null;uniqueIndex:idx_profile_like_edge;index" json:"likee_id"`
	CreatedAt time.Time `json:"created_at"`
}
