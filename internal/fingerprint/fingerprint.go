// Package fingerprint computes the content hashes used to detect changes
// between feed runs.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/amishk599/statejobs/internal/model"
)

// summaryFields fixes the order and normalization of the hashed summary.
type summaryFields struct {
	ID          int64  `json:"id"`
	Link        string `json:"link"`
	Title       string `json:"title"`
	PublishDate string `json:"publishDate"`
	Deadline    string `json:"deadline"`
	Grade       string `json:"grade"`
	County      string `json:"county"`
}

// Summary returns the hex SHA-256 of a summary's identifying fields.
// The stored hash field itself is not part of the input.
func Summary(s model.Summary) string {
	// Strings and an int always marshal.
	sum, _ := digest(summaryFields{
		ID:          s.ID,
		Link:        strings.TrimSpace(s.Link),
		Title:       strings.TrimSpace(s.Title),
		PublishDate: timestamp(s.PublishDate),
		Deadline:    timestamp(s.Deadline),
		Grade:       strings.TrimSpace(s.Grade),
		County:      strings.TrimSpace(s.County),
	})
	return sum
}

// Detail returns the hex SHA-256 of every scraped detail attribute. It fails
// when a value has no JSON form, such as a NaN or infinite percentage.
func Detail(d model.Detail) (string, error) {
	return digest(d)
}

func timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func digest(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
