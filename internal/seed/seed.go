// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"loom/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options configures the seeder.
type Options struct {
	NumUsers    int `yaml:"users"`
	NumPosts    int `yaml:"posts"`
	ShouldClean bool `yaml:"clean"`
	// FollowDensity is the average number of accounts each user follows.
	FollowDensity int `yaml:"follow_density"`
	// ReplyRatio and RepostRatio are per-post probabilities in percent.
	ReplyRatio  int `yaml:"reply_ratio"`
	RepostRatio int `yaml:"repost_ratio"`
	// MaxDays spreads created_at timestamps over the past N days.
	MaxDays int `yaml:"max_days"`
}

// DefaultOptions are tuned for a small but lively development dataset.
func DefaultOptions() Options {
	return Options{
		NumUsers:      50,
		NumPosts:      200,
		ShouldClean:   true,
		FollowDensity: 8,
		ReplyRatio:    40,
		RepostRatio:   15,
		MaxDays:       90,
	}
}

// LoadProfile reads seeder options from a YAML file, filling unset fields
// from the defaults.
func LoadProfile(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read seed profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse seed profile: %w", err)
	}
	return opts, nil
}

// Seeder populates the database with fake but plausible data.
type Seeder struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided DB.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:   db,
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the full seed pipeline.
func (s *Seeder) Run() error {
	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
	}

	users, err := s.SeedUsers(s.opts.NumUsers)
	if err != nil {
		return fmt.Errorf("user seeding failed: %w", err)
	}
	log.Printf("seeded %d users", len(users))

	if err := s.SeedGraph(users); err != nil {
		return fmt.Errorf("graph seeding failed: %w", err)
	}

	posts, err := s.SeedPosts(users, s.opts.NumPosts)
	if err != nil {
		return fmt.Errorf("post seeding failed: %w", err)
	}
	log.Printf("seeded %d posts", len(posts))

	if err := s.SeedEngagement(users, posts); err != nil {
		return fmt.Errorf("engagement seeding failed: %w", err)
	}
	return nil
}

// ClearAll removes all seeded data. Order respects foreign keys.
func (s *Seeder) ClearAll() error {
	log.Println("clearing existing data...")
	for _, model := range []any{
		&models.MediaItem{},
		&models.PostHide{},
		&models.PostLike{},
		&models.Post{},
		&models.ProfileLike{},
		&models.Follow{},
		&models.Session{},
		&models.User{},
	} {
		if err := s.db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedUsers creates n accounts. Every seeded account shares the password
// "password123" for easy manual testing.
func (s *Seeder) SeedUsers(n int) ([]models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, n)
	seen := map[string]struct{}{}
	for len(users) < n {
		username := strings.ToLower(gofakeit.Username())
		username = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
				return r
			}
			return '_'
		}, username)
		if len(username) < 3 {
			continue
		}
		if len(username) > 30 {
			username = username[:30]
		}
		if _, dup := seen[username]; dup {
			continue
		}
		seen[username] = struct{}{}

		users = append(users, models.User{
			Username:    username,
			Email:       fmt.Sprintf("%s@%s", username, gofakeit.DomainName()),
			Password:    string(hashed),
			DisplayName: gofakeit.Name(),
			Bio:         truncate(gofakeit.Quote(), 160),
			Website:     gofakeit.URL(),
			Role:        models.RoleUser,
			IsVerified:  s.rng.Intn(10) == 0,
			CreatedAt:   s.pastTime(),
		})
	}
	// One predictable admin account on top of the requested count.
	users = append(users, models.User{
		Username: "admin",
		Email:    "admin@loom.dev",
		Password: string(hashed),
		Role:     models.RoleAdmin,
	})

	if err := s.db.CreateInBatches(&users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SeedGraph creates follow and profile-like edges between the users.
func (s *Seeder) SeedGraph(users []models.User) error {
	if len(users) < 2 {
		return nil
	}
	var follows []models.Follow
	var likes []models.ProfileLike
	for _, u := range users {
		for i := 0; i < s.opts.FollowDensity; i++ {
			target := users[s.rng.Intn(len(users))]
			if target.ID == u.ID {
				continue
			}
			follows = append(follows, models.Follow{FollowerID: u.ID, FolloweeID: target.ID})
			if s.rng.Intn(4) == 0 {
				likes = append(likes, models.ProfileLike{LikerID: u.ID, LikeeID: target.ID})
			}
		}
	}
	if len(follows) > 0 {
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(&follows, 200).Error; err != nil {
			return err
		}
	}
	if len(likes) > 0 {
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(&likes, 200).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedPosts creates originals plus replies and reposts referencing them,
// keeping the denormalized counters consistent with the created rows.
func (s *Seeder) SeedPosts(users []models.User, n int) ([]models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}

	originals := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := users[s.rng.Intn(len(users))]
		content := truncate(gofakeit.HipsterSentence(12), 500)
		originals = append(originals, models.Post{
			AuthorID:   author.ID,
			Kind:       models.PostKindOriginal,
			Content:    &content,
			Visibility: models.VisibilityPublic,
			CreatedAt:  s.pastTime(),
		})
	}
	if err := s.db.CreateInBatches(&originals, 100).Error; err != nil {
		return nil, err
	}

	for i := range originals {
		original := &originals[i]

		if s.rng.Intn(100) < s.opts.ReplyRatio {
			author := users[s.rng.Intn(len(users))]
			content := truncate(gofakeit.HipsterSentence(8), 500)
			reply := models.Post{
				AuthorID:   author.ID,
				Kind:       models.PostKindReply,
				Content:    &content,
				ParentID:   &original.ID,
				Visibility: models.VisibilityPublic,
				CreatedAt:  original.CreatedAt.Add(time.Duration(1+s.rng.Intn(120)) * time.Minute),
			}
			if err := s.db.Create(&reply).Error; err != nil {
				return nil, err
			}
			if err := s.bump(original.ID, "reply_count"); err != nil {
				return nil, err
			}
		}

		if s.rng.Intn(100) < s.opts.RepostRatio {
			author := users[s.rng.Intn(len(users))]
			if author.ID == original.AuthorID {
				continue
			}
			repost := models.Post{
				AuthorID:   author.ID,
				Kind:       models.PostKindRepost,
				OriginalID: &original.ID,
				Visibility: models.VisibilityPublic,
				CreatedAt:  original.CreatedAt.Add(time.Duration(1+s.rng.Intn(240)) * time.Minute),
			}
			res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&repost)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected > 0 {
				if err := s.bump(original.ID, "repost_count"); err != nil {
					return nil, err
				}
			}
		}
	}
	return originals, nil
}

// SeedEngagement sprinkles likes over the posts.
func (s *Seeder) SeedEngagement(users []models.User, posts []models.Post) error {
	for _, p := range posts {
		likers := s.rng.Intn(6)
		for i := 0; i < likers; i++ {
			user := users[s.rng.Intn(len(users))]
			res := s.db.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.PostLike{UserID: user.ID, PostID: p.ID})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				if err := s.bump(p.ID, "like_count"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Seeder) bump(postID uint, column string) error {
	return s.db.Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

func (s *Seeder) pastTime() time.Time {
	maxDays := s.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(s.rng.Intn(maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
