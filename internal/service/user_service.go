package service

import (
	"context"
	"log/slog"
	"strings"

	"loom/internal/media"
	"loom/internal/middleware"
	"loom/internal/models"
	"loom/internal/repository"
	"loom/internal/validation"
)

const mutualPreviewLimit = 3

// Profile is a user enriched with relationship data for the viewer.
type Profile struct {
	User          *models.User  `json:"user"`
	YouFollowThem bool          `json:"you_follow_them"`
	TheyFollowYou bool          `json:"they_follow_you"`
	IsMutual      bool          `json:"is_mutual"`
	MutualPreview []models.User `json:"mutual_preview,omitempty"`
	LikedByYou    bool          `json:"liked_by_you"`
}

// FollowListEntry is one row of a followers or following list.
type FollowListEntry struct {
	User models.User `json:"user"`
	// LikedByMe: the viewer liked this user's profile.
	LikedByMe bool `json:"liked_by_me"`
	// LikedMe: this user liked the viewer's profile.
	LikedMe bool `json:"liked_me"`
}

// UpdateProfileRequest carries the editable profile fields. Nil pointers
// leave the field untouched.
type UpdateProfileRequest struct {
	DisplayName *string
	Bio         *string
	Website     *string
	Avatar      []byte
}

// UserService handles profiles and the user-to-user edges around them.
type UserService interface {
	GetProfile(ctx context.Context, targetID, viewerID uint) (*Profile, error)
	GetProfileByUsername(ctx context.Context, username string, viewerID uint) (*Profile, error)
	UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*models.User, error)
	// ToggleFollow flips the follow edge and returns the new state.
	ToggleFollow(ctx context.Context, followerID, followeeID uint) (following bool, err error)
	ToggleProfileLike(ctx context.Context, likerID, likeeID uint) (liked bool, err error)
	SearchProfiles(ctx context.Context, query string, viewerID uint, limit int) ([]models.User, error)
	Followers(ctx context.Context, targetID, viewerID uint) ([]FollowListEntry, error)
	Following(ctx context.Context, targetID, viewerID uint) ([]FollowListEntry, error)
}

type userService struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	blobs   media.Store
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, follows repository.FollowRepository, blobs media.Store) UserService {
	return &userService{users: users, follows: follows, blobs: blobs}
}

func (s *userService) GetProfile(ctx context.Context, targetID, viewerID uint) (*Profile, error) {
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return s.buildProfile(ctx, user, viewerID)
}

func (s *userService) GetProfileByUsername(ctx context.Context, username string, viewerID uint) (*Profile, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return s.buildProfile(ctx, user, viewerID)
}

func (s *userService) buildProfile(ctx context.Context, user *models.User, viewerID uint) (*Profile, error) {
	followers, following, err := s.follows.Counts(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.FollowersCount = int(followers)
	user.FollowingCount = int(following)

	likes, err := s.follows.ProfileLikeCount(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.ProfileLikes = int(likes)

	profile := &Profile{User: user}
	if viewerID == 0 || viewerID == user.ID {
		return profile, nil
	}

	profile.YouFollowThem, err = s.follows.Exists(ctx, viewerID, user.ID)
	if err != nil {
		return nil, err
	}
	profile.TheyFollowYou, err = s.follows.Exists(ctx, user.ID, viewerID)
	if err != nil {
		return nil, err
	}
	profile.IsMutual = profile.YouFollowThem && profile.TheyFollowYou

	profile.LikedByYou, err = s.follows.ProfileLikeExists(ctx, viewerID, user.ID)
	if err != nil {
		return nil, err
	}

	preview, err := s.mutualPreview(ctx, viewerID, user.ID)
	if err != nil {
		return nil, err
	}
	profile.MutualPreview = preview

	return profile, nil
}

// mutualPreview returns up to a few accounts the viewer follows that also
// follow the target.
func (s *userService) mutualPreview(ctx context.Context, viewerID, targetID uint) ([]models.User, error) {
	viewerFollowing, err := s.follows.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	targetFollowers, err := s.follows.FollowerIDs(ctx, targetID)
	if err != nil {
		return nil, err
	}

	followerSet := make(map[uint]struct{}, len(targetFollowers))
	for _, id := range targetFollowers {
		followerSet[id] = struct{}{}
	}

	var mutual []uint
	for _, id := range viewerFollowing {
		if _, ok := followerSet[id]; ok && id != targetID {
			mutual = append(mutual, id)
			if len(mutual) == mutualPreviewLimit {
				break
			}
		}
	}
	return s.follows.UsersByIDs(ctx, mutual)
}

func (s *userService) UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name != "" {
			if err := validation.ValidateDisplayName(name); err != nil {
				return nil, models.NewValidationError(err.Error())
			}
		}
		user.DisplayName = name
	}
	if req.Bio != nil {
		if err := validation.ValidateBio(*req.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Bio = *req.Bio
	}
	if req.Website != nil {
		if err := validation.ValidateWebsite(*req.Website); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Website = *req.Website
	}

	if len(req.Avatar) > 0 {
		blob, err := s.blobs.Store(ctx, req.Avatar, media.AvatarFolder)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if user.AvatarBlobID != "" {
			if err := s.blobs.Delete(ctx, user.AvatarBlobID); err != nil {
				middleware.Logger.WarnContext(ctx, "old avatar purge failed",
					slog.String("blob_id", user.AvatarBlobID),
					slog.String("error", err.Error()),
				)
			}
		}
		user.AvatarURL = blob.URL
		user.AvatarBlobID = blob.ID
	}

	// Completing the profile marks the account verified.
	user.IsVerified = true

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) ToggleFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	if followerID == followeeID {
		return false, models.NewValidationError("Cannot follow yourself")
	}
	if _, err := s.users.GetByID(ctx, followeeID); err != nil {
		return false, err
	}

	exists, err := s.follows.Exists(ctx, followerID, followeeID)
	if err != nil {
		return false, err
	}
	if exists {
		if err := s.follows.Delete(ctx, followerID, followeeID); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.follows.Create(ctx, followerID, followeeID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *userService) ToggleProfileLike(ctx context.Context, likerID, likeeID uint) (bool, error) {
	if likerID == likeeID {
		return false, models.NewValidationError("Cannot like your own profile")
	}
	if _, err := s.users.GetByID(ctx, likeeID); err != nil {
		return false, err
	}

	exists, err := s.follows.ProfileLikeExists(ctx, likerID, likeeID)
	if err != nil {
		return false, err
	}
	if exists {
		if err := s.follows.ProfileLikeDelete(ctx, likerID, likeeID); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.follows.ProfileLikeCreate(ctx, likerID, likeeID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *userService) SearchProfiles(ctx context.Context, query string, viewerID uint, limit int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	users, err := s.users.Search(ctx, query, viewerID, limit)
	if err != nil {
		return nil, err
	}

	var followingSet map[uint]struct{}
	if viewerID != 0 {
		following, err := s.follows.FollowingIDs(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		followingSet = make(map[uint]struct{}, len(following))
		for _, id := range following {
			followingSet[id] = struct{}{}
		}
	}

	for i := range users {
		followers, _, err := s.follows.Counts(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].FollowersCount = int(followers)
		if followingSet != nil {
			_, users[i].IsFollowed = followingSet[users[i].ID]
		}
	}
	return users, nil
}

func (s *userService) Followers(ctx context.Context, targetID, viewerID uint) ([]FollowListEntry, error) {
	ids, err := s.follows.FollowerIDs(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return s.followList(ctx, ids, viewerID)
}

func (s *userService) Following(ctx context.Context, targetID, viewerID uint) ([]FollowListEntry, error) {
	ids, err := s.follows.FollowingIDs(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return s.followList(ctx, ids, viewerID)
}

func (s *userService) followList(ctx context.Context, ids []uint, viewerID uint) ([]FollowListEntry, error) {
	users, err := s.follows.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	likedByMe := map[uint]struct{}{}
	likedMe := map[uint]struct{}{}
	if viewerID != 0 && len(ids) > 0 {
		mine, err := s.follows.LikedProfileIDs(ctx, viewerID, ids)
		if err != nil {
			return nil, err
		}
		for _, id := range mine {
			likedByMe[id] = struct{}{}
		}
		theirs, err := s.follows.LikerIDsOf(ctx, viewerID, ids)
		if err != nil {
			return nil, err
		}
		for _, id := range theirs {
			likedMe[id] = struct{}{}
		}
	}

	// Preserve the edge ordering, which UsersByIDs does not guarantee.
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	entries := make([]FollowListEntry, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			continue
		}
		_, mine := likedByMe[id]
		_, theirs := likedMe[id]
		entries = append(entries, FollowListEntry{User: u, LikedByMe: mine, LikedMe: theirs})
	}
	return entries, nil
}
