package repository

import (
	"context"

	"loom/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository manages the follow graph and profile-like edges.
// Each relation is a single row, so both "directions" of a follow are
// views over the same edge and can never disagree.
type FollowRepository interface {
	Exists(ctx context.Context, followerID, followeeID uint) (bool, error)
	Create(ctx context.Context, followerID, followeeID uint) error
	Delete(ctx context.Context, followerID, followeeID uint) error
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	Counts(ctx context.Context, userID uint) (followers int64, following int64, err error)

	ProfileLikeExists(ctx context.Context, likerID, likeeID uint) (bool, error)
	ProfileLikeCreate(ctx context.Context, likerID, likeeID uint) error
	ProfileLikeDelete(ctx context.Context, likerID, likeeID uint) error
	ProfileLikeCount(ctx context.Context, likeeID uint) (int64, error)
	// LikedProfileIDs filters candidateIDs down to those whose profile likerID liked.
	LikedProfileIDs(ctx context.Context, likerID uint, candidateIDs []uint) ([]uint, error)
	// LikerIDsOf filters candidateIDs down to those who liked likeeID's profile.
	LikerIDsOf(ctx context.Context, likeeID uint, candidateIDs []uint) ([]uint, error)

	UsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Exists(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) Create(ctx context.Context, followerID, followeeID uint) error {
	edge := models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edge).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followeeID uint) error {
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *followRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).
		Order("created_at DESC").
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *followRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Order("created_at DESC").
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *followRepository) Counts(ctx context.Context, userID uint) (int64, int64, error) {
	var followers, following int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).Count(&following).Error; err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	return followers, following, nil
}

func (r *followRepository) ProfileLikeExists(ctx context.Context, likerID, likeeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProfileLike{}).
		Where("liker_id = ? AND likee_id = ?", likerID, likeeID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) ProfileLikeCreate(ctx context.Context, likerID, likeeID uint) error {
	edge := models.ProfileLike{LikerID: likerID, LikeeID: likeeID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edge).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *followRepository) ProfileLikeDelete(ctx context.Context, likerID, likeeID uint) error {
	err := r.db.WithContext(ctx).
		Where("liker_id = ? AND likee_id = ?", likerID, likeeID).
		Delete(&models.ProfileLike{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *followRepository) ProfileLikeCount(ctx context.Context, likeeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProfileLike{}).
		Where("likee_id = ?", likeeID).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *followRepository) LikedProfileIDs(ctx context.Context, likerID uint, candidateIDs []uint) ([]uint, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ProfileLike{}).
		Where("liker_id = ? AND likee_id IN ?", likerID, candidateIDs).
		Pluck("likee_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *followRepository) LikerIDsOf(ctx context.Context, likeeID uint, candidateIDs []uint) ([]uint, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ProfileLike{}).
		Where("likee_id = ? AND liker_id IN ?", likeeID, candidateIDs).
		Pluck("liker_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *followRepository) UsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
