// Package google is the destination adapter for Google Tasks.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"github.com/harrisonrobin/vaultsync/pkg/auth"
	"github.com/harrisonrobin/vaultsync/pkg/model"
)

const pageSize = 100

// Client implements the sync destination over the Tasks API. Task lists are
// addressed by title; the list each task lives in is remembered from the
// last fetch because every task call needs it.
type Client struct {
	srv        *tasks.Service
	log        zerolog.Logger
	newBackOff func() backoff.BackOff

	mu       sync.Mutex
	lists    map[string]string // title -> id
	titles   map[string]string // id -> title
	taskList map[string]string // task id -> list id
}

type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithBackOff replaces the retry schedule, mostly for tests.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

// NewClient wraps an existing service.
func NewClient(srv *tasks.Service, opts ...Option) *Client {
	c := &Client{
		srv:        srv,
		log:        zerolog.Nop(),
		newBackOff: defaultBackOff,
		taskList:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New builds a client from the token cached in configDir. A missing token is
// not an error here; RequestAccess reports it.
func New(ctx context.Context, configDir string, opts ...Option) (*Client, error) {
	c := NewClient(nil, opts...)
	httpClient, err := auth.Client(ctx, configDir, c.log)
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			return c, nil
		}
		return nil, err
	}
	return NewWithHTTPClient(ctx, httpClient, opts)
}

// NewWithHTTPClient builds a client over an authorized HTTP client. Extra
// service options such as option.WithEndpoint may follow.
func NewWithHTTPClient(ctx context.Context, hc *http.Client, opts []Option, svcOpts ...option.ClientOption) (*Client, error) {
	srv, err := tasks.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(hc)}, svcOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Tasks client: %w", err)
	}
	return NewClient(srv, opts...), nil
}

func (c *Client) Name() string { return "google" }

// RequestAccess checks that a token exists and that the API accepts it.
func (c *Client) RequestAccess(ctx context.Context) error {
	if c.srv == nil {
		return auth.ErrNoToken
	}
	return c.loadLists(ctx)
}

// Refresh forgets the cached lists and task locations.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.lists, c.titles = nil, nil
	c.taskList = make(map[string]string)
	c.mu.Unlock()
	return c.loadLists(ctx)
}

func (c *Client) loadLists(ctx context.Context) error {
	lists := make(map[string]string)
	titles := make(map[string]string)
	pageToken := ""
	for {
		var page *tasks.TaskLists
		err := c.retry(ctx, "tasklists.list", func() error {
			var err error
			page, err = c.srv.Tasklists.List().MaxResults(pageSize).PageToken(pageToken).Context(ctx).Do()
			return err
		})
		if err != nil {
			return fmt.Errorf("unable to retrieve task lists: %w", err)
		}
		for _, l := range page.Items {
			if _, dup := lists[l.Title]; !dup {
				lists[l.Title] = l.Id
			}
			titles[l.Id] = l.Title
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.mu.Lock()
	c.lists, c.titles = lists, titles
	c.mu.Unlock()
	return nil
}

func (c *Client) AvailableLists(ctx context.Context) ([]string, error) {
	if err := c.ensureLists(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.lists))
	for title := range c.lists {
		out = append(out, title)
	}
	sort.Strings(out)
	return out, nil
}

// FetchAllTasks walks every list, including completed and hidden tasks.
func (c *Client) FetchAllTasks(ctx context.Context) ([]model.Task, error) {
	if err := c.ensureLists(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	titles := make(map[string]string, len(c.titles))
	for id, title := range c.titles {
		titles[id] = title
	}
	c.mu.Unlock()

	listIDs := make([]string, 0, len(titles))
	for id := range titles {
		listIDs = append(listIDs, id)
	}
	sort.Strings(listIDs)

	var out []model.Task
	located := make(map[string]string)
	for _, listID := range listIDs {
		pageToken := ""
		for {
			var page *tasks.Tasks
			err := c.retry(ctx, "tasks.list", func() error {
				var err error
				page, err = c.srv.Tasks.List(listID).
					ShowCompleted(true).
					ShowHidden(true).
					MaxResults(pageSize).
					PageToken(pageToken).
					Context(ctx).Do()
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("unable to retrieve tasks of %q: %w", titles[listID], err)
			}
			for _, gt := range page.Items {
				if gt.Deleted {
					continue
				}
				located[gt.Id] = listID
				out = append(out, FromGoogle(gt, titles[listID]))
			}
			if page.NextPageToken == "" {
				break
			}
			pageToken = page.NextPageToken
		}
	}

	c.mu.Lock()
	c.taskList = located
	c.mu.Unlock()
	c.log.Debug().Int("tasks", len(out)).Int("lists", len(listIDs)).Msg("fetched Google tasks")
	return out, nil
}

// CreateTask inserts t into list, creating the list when it does not exist.
func (c *Client) CreateTask(ctx context.Context, t model.Task, list string) (string, error) {
	listID, err := c.listID(ctx, list)
	if err != nil {
		return "", err
	}
	var created *tasks.Task
	err = c.retry(ctx, "tasks.insert", func() error {
		var err error
		created, err = c.srv.Tasks.Insert(listID, ToGoogle(t)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create task %q: %w", t.Title, err)
	}

	c.mu.Lock()
	c.taskList[created.Id] = listID
	c.mu.Unlock()
	c.log.Info().Str("destination_id", created.Id).Str("list", list).Str("title", t.Title).Msg("created Google task")
	return created.Id, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, t model.Task) error {
	listID, err := c.locate(id)
	if err != nil {
		return err
	}
	err = c.retry(ctx, "tasks.patch", func() error {
		_, err := c.srv.Tasks.Patch(listID, id, ToGoogle(t)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	c.log.Info().Str("destination_id", id).Str("title", t.Title).Msg("updated Google task")
	return nil
}

func (c *Client) MoveTask(ctx context.Context, id, list string) error {
	from, err := c.locate(id)
	if err != nil {
		return err
	}
	to, err := c.listID(ctx, list)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	err = c.retry(ctx, "tasks.move", func() error {
		_, err := c.srv.Tasks.Move(from, id).DestinationTasklist(to).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("move task %s to %q: %w", id, list, err)
	}

	c.mu.Lock()
	c.taskList[id] = to
	c.mu.Unlock()
	c.log.Info().Str("destination_id", id).Str("list", list).Msg("moved Google task")
	return nil
}

// DeleteTask treats an already missing task as deleted.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	listID, err := c.locate(id)
	if err != nil {
		return err
	}
	err = c.retry(ctx, "tasks.delete", func() error {
		return c.srv.Tasks.Delete(listID, id).Context(ctx).Do()
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete task %s: %w", id, err)
	}

	c.mu.Lock()
	delete(c.taskList, id)
	c.mu.Unlock()
	c.log.Info().Str("destination_id", id).Msg("deleted Google task")
	return nil
}

func (c *Client) ensureLists(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.lists != nil
	c.mu.Unlock()
	if loaded {
		return nil
	}
	return c.loadLists(ctx)
}

func (c *Client) locate(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	listID, ok := c.taskList[id]
	if !ok {
		return "", fmt.Errorf("task %s is not in any fetched list", id)
	}
	return listID, nil
}

func (c *Client) listID(ctx context.Context, title string) (string, error) {
	if err := c.ensureLists(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	id, ok := c.lists[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var created *tasks.TaskList
	err := c.retry(ctx, "tasklists.insert", func() error {
		var err error
		created, err = c.srv.Tasklists.Insert(&tasks.TaskList{Title: title}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create task list %q: %w", title, err)
	}

	c.mu.Lock()
	c.lists[title] = created.Id
	c.titles[created.Id] = title
	c.mu.Unlock()
	c.log.Info().Str("list", title).Msg("created Google task list")
	return created.Id, nil
}
