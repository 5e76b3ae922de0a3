package client

import "context"

// SchedulerService exposes the scheduler inspection endpoints
type SchedulerService struct {
	client *Client
}

// Status returns the dispatcher's current state and registered cadences
func (s *SchedulerService) Status(ctx context.Context) (*SchedulerStatus, error) {
	var status SchedulerStatus
	if err := s.client.doRequest(ctx, "GET", "/api/v1/scheduler/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
