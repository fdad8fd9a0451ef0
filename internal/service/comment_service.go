package service

import (
	"context"
	"strings"

	"ynetwork/internal/models"
	"ynetwork/internal/repository"
	"ynetwork/internal/validation"
)

const (
	defaultCommentsPP = 20
	commentPreviewLen = 50
)

type CommentService struct {
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	posts       *PostService
	notifier    Notifier
}

type CreateCommentInput struct {
	UserID  uint   `json:"-"`
	PostID  uint   `json:"-"`
	Content string `json:"content" validate:"required,notblank,max=1000"`
}

type UpdateCommentInput struct {
	UserID    uint   `json:"-"`
	CommentID uint   `json:"-"`
	Content   string `json:"content" validate:"required,notblank,max=1000"`
}

// CommentPage is one page of a post's comments, newest first.
type CommentPage struct {
	Comments   []*models.Comment `json:"comments"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
	TotalCount int64             `json:"totalCount"`
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	posts *PostService,
	notifier Notifier,
) *CommentService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &CommentService{
		commentRepo: commentRepo,
		userRepo:    userRepo,
		posts:       posts,
		notifier:    notifier,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	post, err := s.posts.GetPost(ctx, in.UserID, in.PostID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(in.Content)
	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: in.UserID,
		Content:  content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, post.AuthorID, NotifyInput{
		ActorID: in.UserID,
		Type:    models.NotificationNewComment,
		Content: preview(content, commentPreviewLen),
		Target:  &models.NotificationTarget{Kind: models.TargetPost, ID: post.ID},
	})

	return s.commentRepo.GetByID(ctx, comment.ID)
}

func (s *CommentService) ListComments(ctx context.Context, viewerID, postID uint, p Pagination) (*CommentPage, error) {
	if _, err := s.posts.GetPost(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	p = p.normalize(defaultCommentsPP)
	comments, total, err := s.commentRepo.ListByPost(ctx, postID, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return &CommentPage{
		Comments:   comments,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages(total, p.Limit),
		TotalCount: total,
	}, nil
}

// UpdateComment edits a comment's text. Only the author may edit.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}
	if err := s.commentRepo.UpdateContent(ctx, comment.ID, strings.TrimSpace(in.Content)); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// DeleteComment removes a comment. The comment author, the post author and admins may delete.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != userID {
		allowed, err := s.canModerate(ctx, userID, comment)
		if err != nil {
			return err
		}
		if !allowed {
			return models.NewForbiddenError("You can only delete your own comments")
		}
	}
	return s.commentRepo.Delete(ctx, comment)
}

func (s *CommentService) canModerate(ctx context.Context, userID uint, comment *models.Comment) (bool, error) {
	post, err := s.posts.postRepo.GetByID(ctx, comment.PostID)
	if err == nil && post.AuthorID == userID {
		return true, nil
	}
	if err != nil && !models.IsCode(err, models.CodeNotFound) {
		return false, err
	}
	return isAdmin(ctx, s.userRepo, userID)
}

// preview cuts s to at most n runes.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
