package notifier

import (
	"log/slog"

	"github.com/amishk599/statejobs/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes new postings to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each posting via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each posting with id, title, grade, county, deadline and link.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(jobs []model.JobRecord) error {
	for _, j := range jobs {
		n.logger.Info("new job",
			"job_id", j.ID,
			"title", j.Title,
			"grade", j.Grade,
			"county", j.County,
			"deadline", j.Deadline.Format(dateLayout),
			"link", j.Link,
		)
	}
	return nil
}
