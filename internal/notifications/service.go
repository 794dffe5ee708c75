package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/pagination"
)

// Service is the inbox a buyer or producer reads order, penalty, dispute and
// gift notices from.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Unread(ctx context.Context, userID uuid.UUID) (*UnreadSummary, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ServiceParams struct {
	Repository Repository
	Clock      func() time.Time
}

type service struct {
	repo  Repository
	clock func() time.Time
}

// ListParams filters one page of a user's inbox. An empty Category lists
// every category.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
	Category   enums.NotificationCategory
}

type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// UnreadSummary backs the inbox badge.
type UnreadSummary struct {
	Total      int64                                `json:"total"`
	ByCategory map[enums.NotificationCategory]int64 `json:"by_category"`
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{repo: params.Repository, clock: clock}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.Category != "" && !params.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown notification category").
			WithDetails(map[string]string{"category": string(params.Category)})
	}

	query := listParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
		Category:   params.Category,
	}
	if params.Cursor != "" {
		cursor, err := pagination.Decode(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	out := &ListResult{Items: rows}
	if next != nil {
		out.Cursor = next.Encode()
	}
	return out, nil
}

func (s *service) Unread(ctx context.Context, userID uuid.UUID) (*UnreadSummary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	counts, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	summary := &UnreadSummary{ByCategory: counts}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}

// MarkRead is idempotent; reading an already-read notice succeeds. A
// notification owned by someone else reads as not found.
func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil || notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and notification id required")
	}
	res, err := s.repo.MarkRead(ctx, userID, notificationID, s.clock().UTC())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !res.Found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	n, err := s.repo.MarkAllRead(ctx, userID, s.clock().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
