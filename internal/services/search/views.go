package search

import (
	"context"
	"fmt"

	"github.com/davidR-jmd/fb-leads/internal/models"
)

func toStatusView(s *models.SearchSession) models.SessionStatusView {
	return models.SessionStatusView{
		SessionID:        s.ID,
		Status:           s.Status,
		EntitiesSearched: s.EntitiesSearched,
		TotalSearches:    s.TotalSearches,
		TotalResults:     len(s.Results),
		Keywords:         s.KeywordLabel(),
		ErrorMessage:     s.ErrorMessage,
		CreatedAt:        s.CreatedAt,
	}
}

func totalPages(total, pageSize int) int {
	if total == 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// pageBounds applies defaults and rejects out-of-range pages
func pageBounds(page, pageSize, defaultSize, maxSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultSize
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("%w: page must be at least 1", ErrInvalidRequest)
	}
	if pageSize < 1 || (maxSize > 0 && pageSize > maxSize) {
		return 0, 0, fmt.Errorf("%w: page_size must be between 1 and %d", ErrInvalidRequest, maxSize)
	}
	return page, pageSize, nil
}

// owned loads a session, hiding sessions of other owners. An empty ownerID
// skips the check.
func (o *Orchestrator) owned(ctx context.Context, ownerID, sessionID string) (*models.SearchSession, error) {
	session, err := o.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && session.OwnerID != ownerID {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// GetSessionStatus returns progress without the results
func (o *Orchestrator) GetSessionStatus(ctx context.Context, ownerID, sessionID string) (*models.SessionStatusView, error) {
	session, err := o.owned(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	view := toStatusView(session)
	return &view, nil
}

// GetSessionResults slices one page of the session's results
func (o *Orchestrator) GetSessionResults(ctx context.Context, ownerID, sessionID string, page, pageSize int) (*models.ResultsPage, error) {
	page, pageSize, err := pageBounds(page, pageSize, o.config.DefaultResultsPage, o.config.MaxResultsPageSize)
	if err != nil {
		return nil, err
	}

	session, err := o.owned(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	total := len(session.Results)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &models.ResultsPage{
		Results:          append([]models.ContactRecord{}, session.Results[start:end]...),
		Total:            total,
		Page:             page,
		PageSize:         pageSize,
		TotalPages:       totalPages(total, pageSize),
		EntitiesSearched: session.EntitiesSearched,
		TotalSearches:    session.TotalSearches,
		Status:           session.Status,
	}, nil
}

// ListSessions returns the owner's sessions, newest first
func (o *Orchestrator) ListSessions(ctx context.Context, ownerID string, page, pageSize int) (*models.SessionHistoryPage, error) {
	page, pageSize, err := pageBounds(page, pageSize, o.config.DefaultHistoryPage, o.config.MaxHistoryPageSize)
	if err != nil {
		return nil, err
	}

	sessions, total, err := o.storage.ListByOwner(ctx, ownerID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	views := make([]models.SessionStatusView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, toStatusView(s))
	}

	return &models.SessionHistoryPage{
		Sessions:   views,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}
