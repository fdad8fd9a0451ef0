// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ynetwork/internal/database"
	"ynetwork/internal/models"
	"ynetwork/internal/repository"

	"gorm.io/gorm"
)

// Options controls how much data the seeder creates.
type Options struct {
	Users           int
	FollowsPerUser  int
	PostsPerUser    int
	CommentsPerPost int
	LikesPerPost    int
	Groups          int
	Events          int
	DirectChats     int
	MessagesPerChat int

	// Seed makes runs reproducible. Zero picks a random seed.
	Seed int64
	// FastHash hashes the shared password with bcrypt.MinCost.
	FastHash bool
	// MaxDays is how far back post timestamps are spread.
	MaxDays     int
	EmailDomain string
}

func (o Options) emailDomain() string {
	if o.EmailDomain == "" {
		return "ynetwork.edu"
	}
	return o.EmailDomain
}

// DefaultOptions is a small campus suitable for local development.
func DefaultOptions() Options {
	return Options{
		Users:           50,
		FollowsPerUser:  8,
		PostsPerUser:    4,
		CommentsPerPost: 2,
		LikesPerPost:    5,
		Groups:          6,
		Events:          8,
		DirectChats:     30,
		MessagesPerChat: 6,
		MaxDays:         60,
	}
}

var presets = map[string]Options{
	"small": {
		Users: 10, FollowsPerUser: 3, PostsPerUser: 2, CommentsPerPost: 1, LikesPerPost: 2,
		Groups: 2, Events: 2, DirectChats: 5, MessagesPerChat: 4, MaxDays: 14,
	},
	"default": DefaultOptions(),
	"campus": {
		Users: 400, FollowsPerUser: 25, PostsPerUser: 6, CommentsPerPost: 3, LikesPerPost: 12,
		Groups: 20, Events: 30, DirectChats: 300, MessagesPerChat: 12, MaxDays: 120,
	},
}

// Presets lists the available preset names.
func Presets() []string {
	return []string{"small", "default", "campus"}
}

// Summary reports what a run created.
type Summary struct {
	Users         int
	Follows       int
	Posts         int
	Comments      int
	Likes         int
	Groups        int
	Events        int
	Conversations int
	Messages      int
	Duration      time.Duration
}

// Seeder populates a database through the repository layer.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	follows repository.FollowRepository
	groups  repository.GroupRepository
	events  repository.EventRepository
	logger  *slog.Logger
}

// NewSeeder creates a Seeder for db.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	f, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{
		db:      db,
		opts:    opts,
		factory: f,
		follows: repository.NewFollowRepository(db),
		groups:  repository.NewGroupRepository(db),
		events:  repository.NewEventRepository(db),
		logger:  slog.Default().With(slog.String("component", "seed")),
	}, nil
}

// ApplyPreset replaces the seeder's counts with a named preset, keeping Seed, FastHash and EmailDomain.
func (s *Seeder) ApplyPreset(name string) error {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(Presets(), ", "))
	}
	p.Seed, p.FastHash, p.EmailDomain = s.opts.Seed, s.opts.FastHash, s.opts.EmailDomain
	s.opts = p
	s.factory.opts = p
	return nil
}

// Run creates users, the follow graph, groups, posts with engagement, events and direct chats.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	sum := &Summary{}
	s.logger.Info("seeding started", slog.Int("users", s.opts.Users))

	users, err := s.seedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	sum.Users = len(users)
	if len(users) == 0 {
		sum.Duration = time.Since(start)
		return sum, nil
	}

	if sum.Follows, err = s.seedFollows(ctx, users); err != nil {
		return nil, fmt.Errorf("seed follows: %w", err)
	}

	groups, err := s.seedGroups(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("seed groups: %w", err)
	}
	sum.Groups = len(groups)

	posts, err := s.seedPosts(ctx, users, groups)
	if err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	sum.Posts = len(posts)

	if sum.Likes, sum.Comments, err = s.seedEngagement(ctx, users, posts); err != nil {
		return nil, fmt.Errorf("seed engagement: %w", err)
	}

	if sum.Events, err = s.seedEvents(ctx, users); err != nil {
		return nil, fmt.Errorf("seed events: %w", err)
	}

	if sum.Conversations, sum.Messages, err = s.seedChats(ctx, users); err != nil {
		return nil, fmt.Errorf("seed chats: %w", err)
	}

	sum.Duration = time.Since(start)
	s.logger.Info("seeding completed",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("groups", sum.Groups),
		slog.Int("events", sum.Events),
		slog.Int("conversations", sum.Conversations),
		slog.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		var override func(*models.User)
		if i == 0 {
			override = func(u *models.User) {
				u.Username = "admin"
				u.UniversityEmail = "admin@" + s.opts.emailDomain()
				u.Role = models.RoleAdmin
			}
		} else if s.factory.fake.Number(1, 100) <= 10 {
			override = func(u *models.User) { u.AccountPrivacy = models.PrivacyPrivate }
		}

		var (
			u   *models.User
			err error
		)
		if override != nil {
			u, err = s.factory.CreateUser(ctx, i, override)
		} else {
			u, err = s.factory.CreateUser(ctx, i)
		}
		if err != nil {
			return nil, err
		}
		users = append(users, u)
		if (i+1)%100 == 0 {
			s.logger.Info("users created", slog.Int("count", i+1))
		}
	}
	return users, nil
}

func (s *Seeder) seedFollows(ctx context.Context, users []*models.User) (int, error) {
	if len(users) < 2 {
		return 0, nil
	}
	total := 0
	for _, u := range users {
		for i := 0; i < s.opts.FollowsPerUser; i++ {
			target := users[s.factory.fake.Number(0, len(users)-1)]
			if target.ID == u.ID {
				continue
			}
			created, err := s.follows.Follow(ctx, u.ID, target.ID)
			if err != nil {
				return total, err
			}
			if created {
				total++
			}
		}
	}
	return total, nil
}

func (s *Seeder) seedGroups(ctx context.Context, users []*models.User) ([]*models.Group, error) {
	groups := make([]*models.Group, 0, s.opts.Groups)
	for i := 0; i < s.opts.Groups; i++ {
		creator := users[s.factory.fake.Number(0, len(users)-1)]
		g, err := s.factory.CreateGroup(ctx, creator, i+1)
		if err != nil {
			return nil, err
		}
		joins := s.factory.fake.Number(0, len(users)/2)
		for j := 0; j < joins; j++ {
			member := users[s.factory.fake.Number(0, len(users)-1)]
			if _, err := s.groups.Join(ctx, g, member.ID); err != nil {
				return nil, err
			}
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *Seeder) seedPosts(ctx context.Context, users []*models.User, groups []*models.Group) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, len(users)*s.opts.PostsPerUser)
	for _, u := range users {
		for i := 0; i < s.opts.PostsPerUser; i++ {
			var groupID *uint
			if len(groups) > 0 && s.factory.fake.Number(1, 100) <= 15 {
				g := groups[s.factory.fake.Number(0, len(groups)-1)]
				// Group posts come from members only.
				if _, err := s.groups.Join(ctx, g, u.ID); err != nil {
					return nil, err
				}
				groupID = &g.ID
			}
			p, err := s.factory.CreatePost(ctx, u, groupID)
			if err != nil {
				return nil, err
			}
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (s *Seeder) seedEngagement(ctx context.Context, users []*models.User, posts []*models.Post) (likes, comments int, err error) {
	for _, p := range posts {
		if p.Visibility == models.VisibilityPrivate {
			continue
		}
		liked := make(map[uint]bool, s.opts.LikesPerPost)
		for i := 0; i < s.opts.LikesPerPost; i++ {
			u := users[s.factory.fake.Number(0, len(users)-1)]
			if liked[u.ID] {
				continue
			}
			if err := s.factory.Like(ctx, u, p); err != nil {
				return likes, comments, err
			}
			liked[u.ID] = true
			likes++
		}
		for i := 0; i < s.opts.CommentsPerPost; i++ {
			u := users[s.factory.fake.Number(0, len(users)-1)]
			if _, err := s.factory.CreateComment(ctx, u, p); err != nil {
				return likes, comments, err
			}
			comments++
		}
	}
	return likes, comments, nil
}

func (s *Seeder) seedEvents(ctx context.Context, users []*models.User) (int, error) {
	for i := 0; i < s.opts.Events; i++ {
		creator := users[s.factory.fake.Number(0, len(users)-1)]
		e, err := s.factory.CreateEvent(ctx, creator)
		if err != nil {
			return i, err
		}
		joins := s.factory.fake.Number(0, len(users)/2)
		for j := 0; j < joins; j++ {
			u := users[s.factory.fake.Number(0, len(users)-1)]
			if _, err := s.events.Join(ctx, e.ID, u.ID); err != nil {
				if models.IsCode(err, models.CodeValidation) {
					break
				}
				return i, err
			}
		}
	}
	return s.opts.Events, nil
}

func (s *Seeder) seedChats(ctx context.Context, users []*models.User) (convs, messages int, err error) {
	if len(users) < 2 {
		return 0, 0, nil
	}
	seen := make(map[string]bool, s.opts.DirectChats)
	for i := 0; i < s.opts.DirectChats; i++ {
		a := users[s.factory.fake.Number(0, len(users)-1)]
		b := users[s.factory.fake.Number(0, len(users)-1)]
		key := models.DirectPairKey(a.ID, b.ID)
		if a.ID == b.ID || seen[key] {
			continue
		}
		seen[key] = true

		conv, err := s.factory.CreateDirectConversation(ctx, a, b)
		if err != nil {
			return convs, messages, err
		}
		convs++

		at := s.factory.pastTime()
		for m := 0; m < s.opts.MessagesPerChat; m++ {
			sender := a
			if s.factory.fake.Bool() {
				sender = b
			}
			at = at.Add(time.Duration(s.factory.fake.Number(1, 240)) * time.Minute)
			if _, err := s.factory.CreateMessage(ctx, conv.ID, sender, at); err != nil {
				return convs, messages, err
			}
			messages++
		}
	}
	return convs, messages, nil
}

// ClearAll removes every row from the application tables.
func (s *Seeder) ClearAll(ctx context.Context) error {
	s.logger.Info("clearing existing data")
	tables, err := tableNames(s.db)
	if err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for i := len(tables) - 1; i >= 0; i-- {
			if err := tx.Exec("DELETE FROM " + tables[i]).Error; err != nil {
				return fmt.Errorf("clear %s: %w", tables[i], err)
			}
		}
		return nil
	})
}

func tableNames(db *gorm.DB) ([]string, error) {
	all := database.PersistentModels()
	names := make([]string, 0, len(all))
	for _, m := range all {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("resolve table for %T: %w", m, err)
		}
		names = append(names, stmt.Schema.Table)
	}
	return names, nil
}
