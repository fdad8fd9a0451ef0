package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ynetwork/internal/cache"
	"ynetwork/internal/models"
	"ynetwork/internal/notifications"
	"ynetwork/internal/observability"
	"ynetwork/internal/repository"

	"golang.org/x/sync/errgroup"
)

const (
	defaultNotifyWorkers   = 4
	defaultNotifyQueueSize = 1024
	notifyJobTimeout       = 5 * time.Second
	defaultNotificationsPP = 20
)

// NotifyInput describes what happened. ActorID 0 means a system notification.
type NotifyInput struct {
	ActorID uint
	Type    string
	Content string
	Target  *models.NotificationTarget
}

// NotificationServiceConfig sizes the fan-out queue.
type NotificationServiceConfig struct {
	Workers   int
	QueueSize int
	// RetainRead is how long read notifications are kept. Zero disables pruning.
	RetainRead time.Duration
}

type notifyJob struct {
	ctx         context.Context
	recipientID uint
	in          NotifyInput
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Notifications []*models.Notification `json:"notifications"`
	Page          int                    `json:"page"`
	Limit         int                    `json:"limit"`
	TotalPages    int                    `json:"totalPages"`
	TotalCount    int64                  `json:"totalCount"`
	UnreadCount   int64                  `json:"unreadCount"`
}

// ListNotificationsInput selects a page of notifications.
type ListNotificationsInput struct {
	Pagination
	Filter repository.NotificationFilter
}

// NotificationService persists notifications and pushes them to online recipients.
// Notify hands work to a bounded queue drained by a fixed set of workers.
type NotificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	realtime Realtime
	cfg      NotificationServiceConfig

	mu      sync.RWMutex
	queue   chan notifyJob
	stopped bool
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewNotificationService returns a service; call Start before Notify has any effect.
func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	realtime Realtime,
	cfg NotificationServiceConfig,
) *NotificationService {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultNotifyWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultNotifyQueueSize
	}
	if realtime == nil {
		realtime = noopRealtime{}
	}
	return &NotificationService{
		repo:     repo,
		userRepo: userRepo,
		realtime: realtime,
		cfg:      cfg,
		queue:    make(chan notifyJob, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the workers and, when configured, the pruning loop.
func (s *NotificationService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	if s.cfg.RetainRead > 0 {
		s.wg.Add(1)
		go s.pruneLoop()
	}
}

// Stop refuses new jobs and waits for queued ones to drain or ctx to expire.
func (s *NotificationService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.queue)
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify queues a notification for recipientID. It never blocks and never fails;
// self notifications are skipped and a full queue drops the job.
func (s *NotificationService) Notify(ctx context.Context, recipientID uint, in NotifyInput) {
	if recipientID == 0 || (in.ActorID != 0 && in.ActorID == recipientID) {
		return
	}
	job := notifyJob{ctx: context.WithoutCancel(ctx), recipientID: recipientID, in: in}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		observability.NotificationDispatchTotal.WithLabelValues("dropped").Inc()
		return
	}

	select {
	case s.queue <- job:
		observability.NotificationQueueDepth.Set(float64(len(s.queue)))
	default:
		observability.NotificationDispatchTotal.WithLabelValues("dropped").Inc()
		observability.AsyncDropped(ctx, "notify", "queue_full",
			slog.Uint64("recipient_id", uint64(recipientID)), slog.String("type", in.Type))
	}
}

func (s *NotificationService) worker() {
	defer s.wg.Done()
	for job := range s.queue {
		observability.NotificationQueueDepth.Set(float64(len(s.queue)))
		s.dispatch(job)
	}
}

func (s *NotificationService) dispatch(job notifyJob) {
	ctx, cancel := context.WithTimeout(job.ctx, notifyJobTimeout)
	defer cancel()

	span, ctx := observability.NewSpan(ctx, "notification.dispatch",
		observability.AttrNotification.String(job.in.Type),
		observability.AttrUserID.Int64(int64(job.recipientID)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			observability.NotificationDispatchTotal.WithLabelValues("failed").Inc()
			observability.GlobalLogger.ErrorContext(ctx, "panic in notification worker", slog.Any("panic", r))
		}
	}()

	n, err := s.deliver(ctx, job)
	switch {
	case err != nil:
		span.SetError(err)
		observability.NotificationDispatchTotal.WithLabelValues("failed").Inc()
		observability.AsyncFailed(ctx, "notify", err,
			slog.Uint64("recipient_id", uint64(job.recipientID)), slog.String("type", job.in.Type))
	case n == nil:
		observability.NotificationDispatchTotal.WithLabelValues("skipped").Inc()
	default:
		observability.NotificationDispatchTotal.WithLabelValues("sent").Inc()
	}
}

// deliver persists the notification and pushes it. A nil notification means the
// recipient opted out of this type.
func (s *NotificationService) deliver(ctx context.Context, job notifyJob) (*models.Notification, error) {
	recipient, err := s.userRepo.GetByID(ctx, job.recipientID)
	if err != nil {
		return nil, err
	}
	if !wantsNotification(recipient, job.in.Type) {
		return nil, nil
	}

	n := &models.Notification{
		RecipientID: job.recipientID,
		Type:        job.in.Type,
		Content:     job.in.Content,
	}
	if job.in.ActorID != 0 {
		actorID := job.in.ActorID
		n.ActorID = &actorID
	}
	n.SetTarget(job.in.Target)

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	cache.InvalidateUnreadCount(ctx, job.recipientID)

	if n.ActorID != nil {
		// a failed lookup still pushes, without the actor
		summaries, err := s.userRepo.GetSummaries(ctx, []uint{*n.ActorID})
		if err != nil {
			observability.AsyncFailed(ctx, "notify_actor_summary", err,
				slog.Uint64("notification_id", uint64(n.ID)))
		} else if actor, ok := summaries[*n.ActorID]; ok {
			n.ActorSummary = &actor
		}
	}
	n.Hydrate()

	s.realtime.Emit(ctx, job.recipientID, notifications.EventNewNotification, n)
	return n, nil
}

func wantsNotification(u *models.User, notificationType string) bool {
	switch notificationType {
	case models.NotificationLike:
		return u.NotifyLikes
	case models.NotificationNewComment:
		return u.NotifyComments
	case models.NotificationNewFollower:
		return u.NotifyFollows
	case models.NotificationNewMessage:
		return u.NotifyMessages
	default:
		return true
	}
}

func (s *NotificationService) pruneLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			removed, err := s.repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-s.cfg.RetainRead))
			cancel()
			if err != nil {
				observability.AsyncFailed(ctx, "notification_prune", err)
				continue
			}
			if removed > 0 {
				observability.GlobalLogger.Info("pruned read notifications", slog.Int64("removed", removed))
			}
		}
	}
}

// List returns a page of the user's notifications, newest first, along with the unread total.
func (s *NotificationService) List(ctx context.Context, userID uint, in ListNotificationsInput) (*NotificationPage, error) {
	p := in.Pagination.normalize(defaultNotificationsPP)
	filter := in.Filter
	switch filter {
	case "":
		filter = repository.NotificationFilterAll
	case repository.NotificationFilterAll, repository.NotificationFilterUnread:
	default:
		return nil, models.NewFieldValidationError(map[string]string{"filter": "must be one of: all, unread"})
	}

	page := &NotificationPage{Page: p.Page, Limit: p.Limit}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, total, err := s.repo.List(gctx, userID, filter, p.Limit, p.offset())
		if err != nil {
			return err
		}
		page.Notifications = items
		page.TotalCount = total
		return nil
	})
	g.Go(func() error {
		unread, err := s.UnreadCount(gctx, userID)
		if err != nil {
			return err
		}
		page.UnreadCount = unread
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if page.Notifications == nil {
		page.Notifications = []*models.Notification{}
	}
	page.TotalPages = totalPages(page.TotalCount, p.Limit)
	return page, nil
}

// UnreadCount returns how many unread notifications the user has.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := cache.Aside(ctx, cache.UnreadCountKey(userID), &count, cache.UnreadCountTTL, func() error {
		var err error
		count, err = s.repo.UnreadCount(ctx, userID)
		return err
	})
	return count, err
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error) {
	n, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	cache.InvalidateUnreadCount(ctx, userID)
	return n, nil
}

// MarkAllRead marks every unread notification of the user as read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	cache.InvalidateUnreadCount(ctx, userID)
	return updated, nil
}

// Delete removes one of the user's notifications. Another user's notification is NotFound.
func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	cache.InvalidateUnreadCount(ctx, userID)
	return nil
}
