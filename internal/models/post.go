package models

import (
	"time"

	"gorm.io/gorm"
)

// PostKind discriminates the tagged Post variant.
type PostKind string

const (
	// PostKindOriginal is a top-level post.
	PostKindOriginal PostKind = "original"
	// PostKindReply is a reply to a parent post.
	PostKindReply PostKind = "reply"
	// PostKindRepost re-shares an original post, optionally with a quote.
	PostKindRepost PostKind = "repost"
)

// Valid reports whether k is one of the known kinds.
func (k PostKind) Valid() bool {
	switch k {
	case PostKindOriginal, PostKindReply, PostKindRepost:
		return true
	}
	return false
}

// PostVisibility controls who can see a post in public feeds.
type PostVisibility string

const (
	VisibilityPublic  PostVisibility = "public"
	VisibilityPrivate PostVisibility = "private"
)

// Post is the unified entity for an original post, a reply, or a repost.
// Kind-specific required fields are enforced by the service layer at
// construction time; the schema keeps them nullable.
//
// A user may repost a given original at most once; the partial unique index
// on (kind, original_id, author_id) enforces that at the store.
type Post struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	AuthorID uint     `gorm:"not null;index;index:idx_unique_repost,unique,where:kind = 'repost'" json:"author_id"`
	Author   User     `gorm:"foreignKey:AuthorID" json:"author"`
	Kind     PostKind `gorm:"type:varchar(16);not null;default:'original';index;index:idx_unique_repost,unique,where:kind = 'repost'" json:"kind"`

	// Content is nullable: required for originals and replies, always null for
	// plain reposts, and cleared to null by soft delete.
	Content      *string `gorm:"type:text" json:"content"`
	QuoteContent *string `gorm:"size:300" json:"quote_content,omitempty"`

	ParentID   *uint `gorm:"index;index:idx_posts_parent" json:"parent_id,omitempty"`
	Parent     *Post `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	OriginalID *uint `gorm:"index;index:idx_unique_repost,unique,where:kind = 'repost'" json:"original_id,omitempty"`
	Original   *Post `gorm:"foreignKey:OriginalID" json:"original,omitempty"`

	// Denormalized counters; maintained by single-statement atomic updates.
	LikeCount   int `gorm:"not null;default:0" json:"like_count"`
	RepostCount int `gorm:"not null;default:0" json:"repost_count"`
	ReplyCount  int `gorm:"not null;default:0" json:"reply_count"`

	Visibility PostVisibility `gorm:"type:varchar(16);not null;default:'public'" json:"visibility"`

	// Tombstone flag: soft-deleted posts remain as placeholders and are
	// filtered out of public feeds at read time.
	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	Media []MediaItem `gorm:"foreignKey:PostID" json:"media,omitempty"`

	// Replies are direct children only; the tree is navigated one level at a time.
	Replies []Post `gorm:"foreignKey:ParentID" json:"replies,omitempty"`

	// Liked indicates whether the requesting user liked this post (computed).
	Liked bool `gorm:"-" json:"liked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostLike is a user's like on a post. The (user, post) pair is unique.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_like_edge" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_like_edge;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostHide records a viewer hiding a post from their own view only
// (the "selfOnly" delete mode). It never affects other viewers.
type PostHide struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_hide_edge" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_hide_edge;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaItem is an ordered blob reference attached to a post (at most 4).
type MediaItem struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PostID   uint   `gorm:"not null;index" json:"post_id"`
	Position int    `gorm:"not null;default:0" json:"position"`
	URL      string `gorm:"not null" json:"url"`
	BlobID   string `gorm:"not null" json:"-"`
}
