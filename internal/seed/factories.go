package seed

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ynetwork/internal/models"
	"ynetwork/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Password123!"

var (
	nonHandleChars = regexp.MustCompile(`[^a-z0-9]`)

	hashtagPool = []string{
		"golang", "exams", "thesis", "hackathon", "internship", "library", "coffee",
		"studygroup", "ai", "webdev", "security", "datascience", "gamedev", "campuslife",
	}

	eventSubjects = []string{
		"Distributed Systems", "Interview Prep", "Capture the Flag", "Machine Learning",
		"Open Source", "Cloud Deployments", "Game Jams", "Accessibility", "Career Paths",
	}
)

// Factory builds domain entities with fake content and persists them through the repositories,
// so counters, hashtags and conversation membership stay consistent.
type Factory struct {
	fake  *gofakeit.Faker
	opts  Options
	users repository.UserRepository
	posts repository.PostRepository
	notes repository.CommentRepository
	group repository.GroupRepository
	event repository.EventRepository
	chats repository.ChatRepository

	passwordHash string
	now          func() time.Time
}

// NewFactory creates a Factory bound to db. A zero opts.Seed picks a random seed.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	cost := bcrypt.DefaultCost
	if opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		fake:         gofakeit.New(seed),
		opts:         opts,
		users:        repository.NewUserRepository(db),
		posts:        repository.NewPostRepository(db),
		notes:        repository.NewCommentRepository(db),
		group:        repository.NewGroupRepository(db),
		event:        repository.NewEventRepository(db),
		chats:        repository.NewChatRepository(db),
		passwordHash: string(hash),
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// handle turns a fake name into a username that passes signup validation.
func handle(first, last string, n int) string {
	base := nonHandleChars.ReplaceAllString(strings.ToLower(first), "")
	if base == "" {
		base = "student"
	}
	if len(base) > 20 {
		base = base[:20]
	}
	initial := nonHandleChars.ReplaceAllString(strings.ToLower(last), "")
	if initial != "" {
		initial = initial[:1]
	}
	return fmt.Sprintf("%s_%s%d", base, initial, n)
}

// CreateUser persists the n-th seeded student.
func (f *Factory) CreateUser(ctx context.Context, n int, overrides ...func(*models.User)) (*models.User, error) {
	first, last := f.fake.FirstName(), f.fake.LastName()
	username := handle(first, last, n)
	user := &models.User{
		Username:          username,
		UniversityEmail:   username + "@" + f.opts.emailDomain(),
		Password:          f.passwordHash,
		FirstName:         first,
		LastName:          last,
		Bio:               truncate(f.fake.HipsterSentence(8), 160),
		ProfilePictureURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		Role:              models.RoleStudent,
		AccountPrivacy:    models.PrivacyPublic,
		NotifyLikes:       true,
		NotifyComments:    true,
		NotifyFollows:     true,
		NotifyMessages:    true,
	}
	for _, o := range overrides {
		o(user)
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved post with hashtags and a created_at spread over MaxDays.
func (f *Factory) BuildPost(author *models.User, groupID *uint) *models.Post {
	tags := make([]string, 0, 3)
	for i := f.fake.Number(0, 3); i > 0; i-- {
		tags = append(tags, f.fake.RandomString(hashtagPool))
	}

	content := f.fake.Paragraph(1, f.fake.Number(1, 4), 12, " ")
	if len(tags) > 0 {
		content += " #" + strings.Join(tags, " #")
	}

	post := &models.Post{
		AuthorID:   author.ID,
		Content:    truncate(content, 2000),
		Visibility: f.visibility(),
		GroupID:    groupID,
		Hashtags:   dedupe(tags),
		CreatedAt:  f.pastTime(),
	}
	if f.fake.Number(1, 100) <= 30 {
		post.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.fake.UUID())
	}
	if groupID != nil {
		post.Visibility = models.VisibilityPublic
	}
	return post
}

func (f *Factory) visibility() models.Visibility {
	switch n := f.fake.Number(1, 100); {
	case n <= 75:
		return models.VisibilityPublic
	case n <= 95:
		return models.VisibilityFollowersOnly
	default:
		return models.VisibilityPrivate
	}
}

func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 60
	}
	back := time.Duration(f.fake.Number(0, maxDays*24*60)) * time.Minute
	return f.now().Add(-back)
}

// CreatePost persists a post for author, optionally inside a group.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, groupID *uint) (*models.Post, error) {
	post := f.BuildPost(author, groupID)
	if err := f.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a short reply by author on post.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, post *models.Post) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Content:  truncate(f.fake.Sentence(f.fake.Number(4, 14)), 1000),
	}
	if err := f.notes.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Like makes user like post. Liking twice is a no-op.
func (f *Factory) Like(ctx context.Context, user *models.User, post *models.Post) error {
	liked, _, err := f.posts.ToggleLike(ctx, user.ID, post.ID)
	if err != nil {
		return err
	}
	if !liked {
		_, _, err = f.posts.ToggleLike(ctx, user.ID, post.ID)
	}
	return err
}

// CreateGroup persists a public study group created by creator.
func (f *Factory) CreateGroup(ctx context.Context, creator *models.User, n int) (*models.Group, error) {
	topic := f.fake.RandomString(models.GroupTopics)
	g := &models.Group{
		Name:        truncate(fmt.Sprintf("%s %s %d", topic, f.fake.RandomString([]string{"Circle", "Club", "Lab", "Society", "Crew"}), n), 100),
		Description: truncate(f.fake.Sentence(12), 500),
		Topic:       topic,
		IsPublic:    f.fake.Number(1, 100) <= 85,
		CreatorID:   creator.ID,
	}
	if err := f.group.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// CreateEvent persists an upcoming event created by creator.
func (f *Factory) CreateEvent(ctx context.Context, creator *models.User) (*models.Event, error) {
	start := f.now().Add(time.Duration(f.fake.Number(1, 45*24)) * time.Hour).Truncate(time.Hour)
	kind := f.fake.RandomString(models.EventTypes)
	e := &models.Event{
		Title:            truncate(fmt.Sprintf("%s on %s", kind, f.fake.RandomString(eventSubjects)), 150),
		Description:      truncate(f.fake.Paragraph(1, 3, 10, " "), 2000),
		EventType:        kind,
		Location:         fmt.Sprintf("%s Building, room %d", f.fake.LastName(), f.fake.Number(100, 499)),
		StartDate:        start,
		EndDate:          start.Add(time.Duration(f.fake.Number(1, 6)) * time.Hour),
		CreatorID:        creator.ID,
		ParticipantLimit: f.fake.RandomInt([]int{0, 0, 20, 50, 100}),
	}
	if err := f.event.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateDirectConversation returns the one_to_one conversation of a and b, creating it if needed.
func (f *Factory) CreateDirectConversation(ctx context.Context, a, b *models.User) (*models.Conversation, error) {
	existing, err := f.chats.FindDirectConversation(ctx, a.ID, b.ID)
	if err != nil || existing != nil {
		return existing, err
	}
	key := models.DirectPairKey(a.ID, b.ID)
	conv := &models.Conversation{Type: models.ConversationOneToOne, PairKey: &key}
	if err := f.chats.CreateConversation(ctx, conv, []uint{a.ID, b.ID}); err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateMessage persists a message from sender at the given time.
func (f *Factory) CreateMessage(ctx context.Context, convID uint, sender *models.User, at time.Time) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: convID,
		SenderID:       sender.ID,
		Content:        truncate(f.fake.Sentence(f.fake.Number(2, 16)), models.MaxMessageLength),
		CreatedAt:      at,
	}
	if err := f.chats.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
