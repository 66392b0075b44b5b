package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/harrisonrobin/vaultsync/pkg/audit"
	"github.com/harrisonrobin/vaultsync/pkg/markdown"
	"github.com/harrisonrobin/vaultsync/pkg/model"
)

const (
	ActionComplete   = "complete"
	ActionUncomplete = "uncomplete"
	ActionMetadata   = "metadata"
	ActionAppend     = "append"
)

// MarkTaskComplete closes the checkbox of t's line and adds a done date. It
// returns how many lines were inserted into the file, which is always zero
// here: recurring tasks are not expanded into new occurrences.
func (s *Source) MarkTaskComplete(t model.Task, on time.Time) (int, error) {
	_, err := s.edit(t, ActionComplete, func(line string) (string, error) {
		return markdown.MarkComplete(line, on)
	})
	return 0, err
}

// MarkTaskIncomplete reopens t's line and drops its done date.
func (s *Source) MarkTaskIncomplete(t model.Task) (int, error) {
	_, err := s.edit(t, ActionUncomplete, markdown.MarkIncomplete)
	return 0, err
}

// UpdateTaskMetadata applies every field of ch in a single write.
func (s *Source) UpdateTaskMetadata(t model.Task, ch model.MetadataChanges) error {
	if ch.Empty() {
		return nil
	}
	_, err := s.edit(t, ActionMetadata, func(line string) (string, error) {
		return markdown.Apply(line, ch)
	})
	return err
}

// RewriteTask would rebuild a line from parsed fields and drop whatever the
// model does not carry. It always fails.
func (s *Source) RewriteTask(model.Task) error {
	return fmt.Errorf("rewrite task line: %w", model.ErrOperationDisabled)
}

// edit runs the verified write of one line: re-read, compare with the line
// captured at scan, transform, back up, write, audit.
func (s *Source) edit(t model.Task, action string, transform func(string) (string, error)) (string, error) {
	if t.Origin.Kind != model.OriginSource {
		return "", fmt.Errorf("%s: task has no source origin", action)
	}
	rel := t.Origin.File
	path := s.abs(rel)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s no longer exists", model.ErrStale, rel)
		}
		return "", fmt.Errorf("%s: %w", action, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: read %s: %w", action, rel, err)
	}
	lines := splitLines(string(data))
	idx := t.Origin.Line - 1
	if idx < 0 || idx >= len(lines) {
		return "", fmt.Errorf("%w: %s:%d is past the end of the file", model.ErrStale, rel, t.Origin.Line)
	}
	current := body(lines[idx])
	if current != t.Origin.Text {
		return "", fmt.Errorf("%w: %s:%d", model.ErrStale, rel, t.Origin.Line)
	}

	updated, err := transform(current)
	if err != nil {
		return "", fmt.Errorf("%s: %w", action, err)
	}
	if updated == current {
		return current, nil
	}
	if strings.ContainsAny(updated, "\r\n") {
		return "", fmt.Errorf("%s: transform produced a line break", action)
	}

	lines[idx] = updated + terminator(lines[idx])
	if err := s.write(path, rel, info.Mode().Perm(), strings.Join(lines, "")); err != nil {
		return "", fmt.Errorf("%s: %w", action, err)
	}

	s.log.Info().Str("action", action).Str("file", rel).Int("line", t.Origin.Line).Msg("task line edited")
	if err := s.record(action, rel, t.Origin.Line, current, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// AppendNewTask adds a new incomplete task line at the end of rel, creating
// the file when missing, and returns the origin of the new line.
func (s *Source) AppendNewTask(rel string, t model.Task) (model.Origin, error) {
	title := strings.TrimSpace(t.Title)
	if title == "" || strings.ContainsAny(title, "\r\n") {
		return model.Origin{}, errors.New("append task: title must be a single non-empty line")
	}
	line, err := newTaskLine(title, t)
	if err != nil {
		return model.Origin{}, fmt.Errorf("append task: %w", err)
	}

	rel = filepath.ToSlash(filepath.Clean(rel))
	path := s.abs(rel)
	var content string
	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return model.Origin{}, fmt.Errorf("append task: read %s: %w", rel, err)
		}
		content = string(data)
		perm = info.Mode().Perm()
	} else if !os.IsNotExist(err) {
		return model.Origin{}, fmt.Errorf("append task: %w", err)
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return model.Origin{}, fmt.Errorf("append task: %w", err)
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	lineNo := len(splitLines(content)) + 1
	if err := s.write(path, rel, perm, content+line+"\n"); err != nil {
		return model.Origin{}, fmt.Errorf("append task: %w", err)
	}

	s.log.Info().Str("file", rel).Int("line", lineNo).Msg("task appended")
	origin := model.SourceOrigin(rel, lineNo, line)
	if err := s.record(ActionAppend, rel, lineNo, "", line); err != nil {
		return origin, err
	}
	return origin, nil
}

// newTaskLine starts from a bare checkbox line and adds each field through
// the same token transforms used for edits.
func newTaskLine(title string, t model.Task) (string, error) {
	ch := model.MetadataChanges{}
	if t.Due != nil {
		ch.Due = model.SetTo(*t.Due)
	}
	if t.Start != nil {
		ch.Start = model.SetTo(*t.Start)
	}
	if t.Scheduled != nil {
		ch.Scheduled = model.SetTo(*t.Scheduled)
	}
	if t.Priority != model.PriorityNone {
		ch.Priority = model.SetTo(t.Priority)
	}
	line, err := markdown.Apply("- [ ] "+title, ch)
	if err != nil {
		return "", err
	}
	for _, tag := range t.SortedTags() {
		line += " #" + tag
	}
	return line, nil
}

// write snapshots the current file (when it exists) and replaces it.
func (s *Source) write(path, rel string, perm os.FileMode, content string) error {
	if s.backups != nil {
		if _, err := os.Stat(path); err == nil {
			if _, err := s.backups.Snapshot(path, rel); err != nil {
				return fmt.Errorf("backup before write: %w", err)
			}
		}
	}
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", rel, err)
	}

	s.mu.Lock()
	s.digests[rel] = digest([]byte(content))
	s.mu.Unlock()
	return nil
}

func (s *Source) record(action, rel string, line int, before, after string) error {
	if s.audit == nil {
		return nil
	}
	err := s.audit.Append(audit.Entry{
		Time:   s.now(),
		Action: action,
		File:   rel,
		Line:   line,
		Before: before,
		After:  after,
	})
	if err != nil {
		s.log.Error().Err(err).Str("file", rel).Int("line", line).Msg("audit append failed after write")
		return fmt.Errorf("%s written but not audited: %w", rel, err)
	}
	return nil
}
