package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
)

var ErrNoticeNotFound = errors.New("notice not found")

// NoticeView is a notice with its markdown body rendered.
type NoticeView struct {
	domain.Notice
	HTML string `json:"html"`
}

// NoticeInput carries the editable fields of a notice.
type NoticeInput struct {
	Title        string
	Body         string
	Audience     domain.Audience
	Pinned       bool
	VisibleFrom  *time.Time
	VisibleUntil *time.Time
}

type NoticeService interface {
	CreateNotice(ctx context.Context, adminID primitive.ObjectID, in NoticeInput) (*NoticeView, error)
	UpdateNotice(ctx context.Context, noticeID primitive.ObjectID, in NoticeInput) (*NoticeView, error)
	DeleteNotice(ctx context.Context, noticeID primitive.ObjectID) error
	// ListNotices returns the notices role can see right now.
	ListNotices(ctx context.Context, role domain.Role) ([]NoticeView, error)
	// ListAllNotices includes scheduled and expired notices, for admins.
	ListAllNotices(ctx context.Context) ([]NoticeView, error)
}

type noticeService struct {
	noticeRepo repository.NoticeRepository
	markdown   goldmark.Markdown
}

func NewNoticeService(noticeRepo repository.NoticeRepository) NoticeService {
	return &noticeService{
		noticeRepo: noticeRepo,
		// Raw HTML in notice bodies is dropped, not passed through.
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
		),
	}
}

func (s *noticeService) render(n domain.Notice) (NoticeView, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(n.Body), &buf); err != nil {
		return NoticeView{}, err
	}
	return NoticeView{Notice: n, HTML: buf.String()}, nil
}

func validateNotice(in *NoticeInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if in.Audience == "" {
		in.Audience = domain.AudienceAll
	}
	switch {
	case in.Title == "":
		return invalid("title is required")
	case len(in.Title) > 200:
		return invalid("title is too long")
	case in.Body == "":
		return invalid("body is required")
	case !in.Audience.Valid():
		return invalid("audience must be all, trainers or users")
	case in.VisibleFrom != nil && in.VisibleUntil != nil && !in.VisibleUntil.After(*in.VisibleFrom):
		return invalid("visibleUntil must be after visibleFrom")
	}
	return nil
}

func (s *noticeService) CreateNotice(ctx context.Context, adminID primitive.ObjectID, in NoticeInput) (*NoticeView, error) {
	if err := validateNotice(&in); err != nil {
		return nil, err
	}
	n := &domain.Notice{
		Title:        in.Title,
		Body:         in.Body,
		Audience:     in.Audience,
		Pinned:       in.Pinned,
		VisibleFrom:  in.VisibleFrom,
		VisibleUntil: in.VisibleUntil,
		CreatedBy:    adminID,
	}
	if _, err := s.noticeRepo.Create(ctx, n); err != nil {
		return nil, err
	}
	view, err := s.render(*n)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *noticeService) UpdateNotice(ctx context.Context, noticeID primitive.ObjectID, in NoticeInput) (*NoticeView, error) {
	if err := validateNotice(&in); err != nil {
		return nil, err
	}
	n, err := s.noticeRepo.GetByID(ctx, noticeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoticeNotFound
		}
		return nil, err
	}
	n.Title = in.Title
	n.Body = in.Body
	n.Audience = in.Audience
	n.Pinned = in.Pinned
	n.VisibleFrom = in.VisibleFrom
	n.VisibleUntil = in.VisibleUntil
	if err := s.noticeRepo.Update(ctx, n); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoticeNotFound
		}
		return nil, err
	}
	view, err := s.render(*n)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *noticeService) DeleteNotice(ctx context.Context, noticeID primitive.ObjectID) error {
	err := s.noticeRepo.Delete(ctx, noticeID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoticeNotFound
	}
	return err
}

func (s *noticeService) ListNotices(ctx context.Context, role domain.Role) ([]NoticeView, error) {
	notices, err := s.noticeRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	now := timeNow()
	views := make([]NoticeView, 0, len(notices))
	for _, n := range notices {
		if !n.Audience.Includes(role) || !n.VisibleAt(now) {
			continue
		}
		view, err := s.render(n)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *noticeService) ListAllNotices(ctx context.Context) ([]NoticeView, error) {
	notices, err := s.noticeRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]NoticeView, 0, len(notices))
	for _, n := range notices {
		view, err := s.render(n)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}
