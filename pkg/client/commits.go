package client

import (
	"context"
	"fmt"
)

// CommitService exposes the commit operation endpoints
type CommitService struct {
	client *Client
}

// Trigger produces a single manual commit for the user right now
func (s *CommitService) Trigger(ctx context.Context, req TriggerRequest) (*CommitResult, error) {
	var result CommitResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/commits/trigger", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Backfill generates one backdated commit per day across a date range
func (s *CommitService) Backfill(ctx context.Context, req BackfillRequest) (*CommitResult, error) {
	var result CommitResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/commits/backfill", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Streak generates backdated commits for an explicit list of dates
func (s *CommitService) Streak(ctx context.Context, req StreakRequest) (*CommitResult, error) {
	var result CommitResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/commits/streak", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Pattern renders text onto the contribution graph as backdated commits
func (s *CommitService) Pattern(ctx context.Context, req PatternRequest) (*CommitResult, error) {
	var result CommitResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/commits/pattern", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns a page of the user's commit history, newest first
func (s *CommitService) List(ctx context.Context, userID int64, page, pageSize int) (*CommitPage, error) {
	path := fmt.Sprintf("/api/v1/commits?user_id=%d&page=%d&page_size=%d", userID, page, pageSize)
	var result CommitPage
	if err := s.client.doRequest(ctx, "GET", path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
