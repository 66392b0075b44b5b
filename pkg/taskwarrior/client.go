// Package taskwarrior is the destination adapter for a local Taskwarrior
// database, driven through the task command. Lists are projects.
package taskwarrior

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

// Runner executes the task binary.
type Runner interface {
	Run(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
}

type execRunner struct{ bin string }

func (r execRunner) Run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.bin, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return output, nil
}

// base arguments for every call: no hooks, no prompts.
var rc = []string{"rc.hooks=0", "rc.confirmation=off", "rc.verbose=nothing"}

type Client struct {
	run  Runner
	log  zerolog.Logger
	now  func() time.Time
	uuid func() string
}

type Option func(*Client)

func WithRunner(r Runner) Option { return func(c *Client) { c.run = r } }

func WithLogger(log zerolog.Logger) Option { return func(c *Client) { c.log = log } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func NewClient(opts ...Option) *Client {
	c := &Client{
		run:  execRunner{bin: "task"},
		log:  zerolog.Nop(),
		now:  time.Now,
		uuid: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "taskwarrior" }

func (c *Client) task(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	return c.run.Run(ctx, stdin, append(append([]string{}, rc...), args...)...)
}

// RequestAccess checks that the task binary runs.
func (c *Client) RequestAccess(ctx context.Context) error {
	if _, err := c.task(ctx, nil, "--version"); err != nil {
		return fmt.Errorf("taskwarrior unavailable: %w", err)
	}
	return nil
}

// Refresh is a no-op: every call reads the database directly.
func (c *Client) Refresh(context.Context) error { return nil }

// AvailableLists returns no names. Projects come into existence on first
// use, so any routed list is acceptable.
func (c *Client) AvailableLists(context.Context) ([]string, error) { return nil, nil }

func (c *Client) GetTasks(ctx context.Context, filter []string) ([]Task, error) {
	args := append(append([]string{}, filter...), "export")
	output, err := c.task(ctx, nil, args...)
	if err != nil {
		return nil, err
	}
	return ParseTasks(bytes.NewReader(output))
}

func (c *Client) FetchAllTasks(ctx context.Context) ([]model.Task, error) {
	tasks, err := c.GetTasks(ctx, []string{"status.not:deleted"})
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, FromTaskwarrior(t))
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, t model.Task, list string) (string, error) {
	tw := Task{UUID: c.uuid(), Entry: NewTime(c.now()), Project: list}
	apply(&tw, t, c.now())
	if err := c.importTask(ctx, tw); err != nil {
		return "", fmt.Errorf("create task %q: %w", t.Title, err)
	}
	c.log.Info().Str("destination_id", tw.UUID).Str("project", list).Str("title", t.Title).Msg("created Taskwarrior task")
	return tw.UUID, nil
}

// UpdateTask re-imports the exported task with t's fields laid over it, so
// the project and attributes the model lacks survive.
func (c *Client) UpdateTask(ctx context.Context, id string, t model.Task) error {
	current, err := c.get(ctx, id)
	if err != nil {
		return err
	}
	apply(&current, t, c.now())
	if err := c.importTask(ctx, current); err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	c.log.Info().Str("destination_id", id).Str("title", t.Title).Msg("updated Taskwarrior task")
	return nil
}

func (c *Client) MoveTask(ctx context.Context, id, list string) error {
	if _, err := c.task(ctx, nil, id, "modify", "project:"+list); err != nil {
		return fmt.Errorf("move task %s to %q: %w", id, list, err)
	}
	c.log.Info().Str("destination_id", id).Str("project", list).Msg("moved Taskwarrior task")
	return nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if _, err := c.task(ctx, nil, id, "delete"); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	c.log.Info().Str("destination_id", id).Msg("deleted Taskwarrior task")
	return nil
}

func (c *Client) get(ctx context.Context, id string) (Task, error) {
	tasks, err := c.GetTasks(ctx, []string{"uuid:" + id})
	if err != nil {
		return Task{}, err
	}
	if len(tasks) != 1 {
		return Task{}, fmt.Errorf("task %s not found", id)
	}
	return tasks[0], nil
}

func (c *Client) importTask(ctx context.Context, t Task) error {
	data, err := json.Marshal([]Task{t})
	if err != nil {
		return err
	}
	_, err = c.task(ctx, data, "import", "-")
	return err
}

// ParseTasks decodes export output, either one JSON array or a stream of
// objects (rc.json.array=off).
func ParseTasks(r io.Reader) ([]Task, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(br)
	if first == '[' {
		var tasks []Task
		if err := decoder.Decode(&tasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal taskwarrior output: %w", err)
		}
		return tasks, nil
	}

	var tasks []Task
	for {
		var task Task
		if err := decoder.Decode(&task); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !strings.ContainsRune(" \t\r\n", rune(b)) {
			return b, br.UnreadByte()
		}
	}
}
