package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/statejobs/internal/model"
)

const dateLayout = "2006-01-02"

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends posting alerts to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	pause      time.Duration // gap between messages
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each job to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		pause:      500 * time.Millisecond,
		logger:     logger,
	}
}

// Notify sends each posting as a separate Slack message using Block Kit.
// Returns an error only if ALL messages fail. Individual failures are logged.
func (s *SlackNotifier) Notify(jobs []model.JobRecord) error {
	if len(jobs) == 0 {
		return nil
	}

	failures := 0
	for i, j := range jobs {
		if i > 0 {
			time.Sleep(s.pause)
		}

		if err := s.sendMessage(j); err != nil {
			s.logger.Error("slack notification failed", "job_id", j.ID, "title", j.Title, "error", err)
			failures++
		}
	}

	sent := len(jobs) - failures
	if failures == len(jobs) {
		return fmt.Errorf("all %d slack notifications failed", failures)
	}
	s.logger.Info("slack notifications complete", "sent", sent, "failed", failures)
	return nil
}

func (s *SlackNotifier) sendMessage(j model.JobRecord) error {
	body, err := json.Marshal(buildPayload(j))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		time.Sleep(time.Duration(secs) * time.Second)

		status, _, err = s.post(body)
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack message sent", "job_id", j.ID, "title", j.Title, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack message sent", "job_id", j.ID, "title", j.Title)
	return nil
}

func (s *SlackNotifier) post(body []byte) (int, string, error) {
	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

// SendTestMessage sends a dummy posting to verify the integration works.
func SendTestMessage(n model.Notifier) error {
	now := time.Now()
	testJob := model.JobRecord{
		Summary: model.Summary{
			ID:          1,
			Link:        "https://statejobs.ny.gov/public/vacancyTable.cfm",
			Title:       "Test Notification (integration verified)",
			PublishDate: now,
			Deadline:    now.AddDate(0, 0, 14),
			Grade:       "NS",
			County:      "Albany",
		},
		HumanReadableAgency: "statejobs",
	}
	return n.Notify([]model.JobRecord{testJob})
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func buildPayload(j model.JobRecord) slackPayload {
	agency := j.HumanReadableAgency
	if agency == "" && j.Detail.Agency != nil {
		agency = *j.Detail.Agency
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🏛️ " + j.Title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Agency:*\n" + orDash(agency)},
				{Type: "mrkdwn", Text: "*County:*\n" + orDash(j.County)},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Grade:*\n" + orDash(j.Grade)},
				{Type: "mrkdwn", Text: "*Apply by:*\n" + j.Deadline.Format(dateLayout)},
			},
		},
	}

	if j.Extraction != nil && len(j.Extraction.BulletPoints) > 0 {
		var b strings.Builder
		if j.Extraction.SemanticJobTitle != "" {
			fmt.Fprintf(&b, "*Role:* %s\n", j.Extraction.SemanticJobTitle)
		}
		for _, p := range j.Extraction.BulletPoints {
			fmt.Fprintf(&b, "• %s\n", p)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: strings.TrimSuffix(b.String(), "\n")},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "View Posting"},
					URL:   j.Link,
					Style: "primary",
				},
			},
		},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Blocks: blocks}
}
