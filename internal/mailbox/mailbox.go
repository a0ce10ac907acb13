package mailbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is one raw RFC 822 message pulled from a mailbox.
type Message struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt time.Time
	Raw        []byte
}

type Connector interface {
	Fetch(ctx context.Context, label string, max int) ([]Message, error)
}

// DefaultSubjectFilter matches the subject line ISM uses for both reports.
const DefaultSubjectFilter = "report on business"

type FetchResult struct {
	Fetched int
	Skipped int
	Stored  []StoredMessage
}

type StoredMessage struct {
	Message
	Path string
}

// FetchService pulls report emails and keeps their raw bytes on disk, named
// by content hash so a re-fetch never duplicates a file.
type FetchService struct {
	connector Connector
	rawDir    string
	filter    string
}

func NewFetchService(connector Connector, rawDir, subjectFilter string) *FetchService {
	if strings.TrimSpace(subjectFilter) == "" {
		subjectFilter = DefaultSubjectFilter
	}
	return &FetchService{connector: connector, rawDir: rawDir, filter: strings.ToLower(subjectFilter)}
}

func (s *FetchService) FetchReports(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.Fetch(ctx, label, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", label, err)
	}

	result := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		if !s.IsReport(msg.Subject) {
			log.Debug().Str("subject", msg.Subject).Str("provider", msg.Provider).Msg("mailbox.skipped")
			result.Skipped++
			continue
		}
		path, err := s.store(msg)
		if err != nil {
			return result, err
		}
		result.Stored = append(result.Stored, StoredMessage{Message: msg, Path: path})
	}
	log.Info().Int("fetched", result.Fetched).Int("stored", len(result.Stored)).Int("skipped", result.Skipped).Msg("mailbox.fetched")
	return result, nil
}

func (s *FetchService) IsReport(subject string) bool {
	return strings.Contains(strings.ToLower(subject), s.filter)
}

func (s *FetchService) store(msg Message) (string, error) {
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.rawDir, 0o755); err != nil {
		return "", err
	}
	rawPath := filepath.Join(s.rawDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return "", err
		}
	}
	return rawPath, nil
}

// ParseDate reads the Date header layouts seen in the wild.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC850, time.ANSIC, "Mon, 2 Jan 2006 15:04:05 -0700"}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", value)
}
