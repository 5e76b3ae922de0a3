package services

import (
	"context"

	"github.com/nikhilbhatia/commitcanvas/internal/domain/commit"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
	"github.com/nikhilbhatia/commitcanvas/internal/github"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/logger"
)

// Notifier delivers best-effort commit notifications. Failures must never
// fail the commit operation itself.
type Notifier interface {
	SendCommitNotification(ctx context.Context, u *user.User, rec *commit.Record, remote *github.CommitResult) error
}

// LogNotifier is the default Notifier: it only logs. The real email
// transport lives outside this service.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a logging notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

// SendCommitNotification logs the notification instead of sending it.
func (n *LogNotifier) SendCommitNotification(_ context.Context, u *user.User, rec *commit.Record, remote *github.CommitResult) error {
	n.logger.WithFields(map[string]interface{}{
		"user_id":   u.ID,
		"record_id": rec.ID,
		"sha":       remote.SHA,
	}).Debug("Commit notification")
	return nil
}
