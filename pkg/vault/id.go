package vault

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

// IDVersion tags the ID scheme. Bumping it invalidates every stored mapping.
const IDVersion = 2

const (
	fieldSep = "\x1f"
	tagSep   = ","
)

// GenerateTaskID derives the source ID from task content: file, title,
// due/start/scheduled dates, sorted tags and priority rank. Position and
// completion state do not take part.
func GenerateTaskID(t model.Task) string {
	fields := []string{
		t.Origin.File,
		t.Title,
		model.FormatDate(t.Due),
		model.FormatDate(t.Start),
		model.FormatDate(t.Scheduled),
		strings.Join(t.SortedTags(), tagSep),
		strconv.Itoa(int(t.Priority)),
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(fields, fieldSep)))
}

// IDFields is a decoded source ID.
type IDFields struct {
	File      string
	Title     string
	Due       string
	Start     string
	Scheduled string
	Tags      []string
	Priority  model.Priority
}

// DescribeTaskID decodes an ID produced by GenerateTaskID.
func DescribeTaskID(id string) (IDFields, error) {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return IDFields{}, fmt.Errorf("decode task id: %w", err)
	}
	parts := strings.Split(string(raw), fieldSep)
	if len(parts) != 7 {
		return IDFields{}, fmt.Errorf("decode task id: want 7 fields, got %d", len(parts))
	}
	rank, err := strconv.Atoi(parts[6])
	if err != nil {
		return IDFields{}, fmt.Errorf("decode task id: priority: %w", err)
	}
	var tags []string
	if parts[5] != "" {
		tags = strings.Split(parts[5], tagSep)
	}
	return IDFields{
		File:      parts[0],
		Title:     parts[1],
		Due:       parts[2],
		Start:     parts[3],
		Scheduled: parts[4],
		Tags:      tags,
		Priority:  model.Priority(rank),
	}, nil
}
