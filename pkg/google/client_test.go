package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"github.com/harrisonrobin/vaultsync/pkg/auth"
	"github.com/harrisonrobin/vaultsync/pkg/model"
)

// fakeTasks serves the subset of the Tasks API the client uses.
type fakeTasks struct {
	mu       sync.Mutex
	lists    []*tasks.TaskList
	items    map[string][]*tasks.Task // list id -> tasks
	seq      int
	failures map[string]int // route -> remaining 503 responses
	calls    map[string]int
	patches  []map[string]any
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{
		items:    make(map[string][]*tasks.Task),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (f *fakeTasks) addList(id, title string) {
	f.lists = append(f.lists, &tasks.TaskList{Id: id, Title: title})
}

func (f *fakeTasks) handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h func(w http.ResponseWriter, r *http.Request)) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.calls[pattern]++
			if f.failures[pattern] > 0 {
				f.failures[pattern]--
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"error":{"code":503,"message":"backend unavailable"}}`)
				return
			}
			h(w, r)
		})
	}

	route("GET /tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &tasks.TaskLists{Items: f.lists})
	})
	route("POST /tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		var l tasks.TaskList
		_ = json.NewDecoder(r.Body).Decode(&l)
		f.seq++
		l.Id = fmt.Sprintf("list-%d", f.seq)
		f.lists = append(f.lists, &l)
		writeJSON(w, &l)
	})
	route("GET /tasks/v1/lists/{list}/tasks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &tasks.Tasks{Items: f.items[r.PathValue("list")]})
	})
	route("POST /tasks/v1/lists/{list}/tasks", func(w http.ResponseWriter, r *http.Request) {
		var t tasks.Task
		_ = json.NewDecoder(r.Body).Decode(&t)
		f.seq++
		t.Id = fmt.Sprintf("task-%d", f.seq)
		list := r.PathValue("list")
		f.items[list] = append(f.items[list], &t)
		writeJSON(w, &t)
	})
	route("PATCH /tasks/v1/lists/{list}/tasks/{task}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.patches = append(f.patches, body)
		t := f.find(r.PathValue("list"), r.PathValue("task"))
		if t == nil {
			http.NotFound(w, r)
			return
		}
		if title, ok := body["title"].(string); ok {
			t.Title = title
		}
		if status, ok := body["status"].(string); ok {
			t.Status = status
		}
		writeJSON(w, t)
	})
	route("DELETE /tasks/v1/lists/{list}/tasks/{task}", func(w http.ResponseWriter, r *http.Request) {
		list, id := r.PathValue("list"), r.PathValue("task")
		if f.find(list, id) == nil {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":404,"message":"not found"}}`)
			return
		}
		f.remove(list, id)
		w.WriteHeader(http.StatusNoContent)
	})
	route("POST /tasks/v1/lists/{list}/tasks/{task}/move", func(w http.ResponseWriter, r *http.Request) {
		list, id := r.PathValue("list"), r.PathValue("task")
		t := f.find(list, id)
		if t == nil {
			http.NotFound(w, r)
			return
		}
		f.remove(list, id)
		dest := r.URL.Query().Get("destinationTasklist")
		f.items[dest] = append(f.items[dest], t)
		writeJSON(w, t)
	})
	return mux
}

func (f *fakeTasks) find(list, id string) *tasks.Task {
	for _, t := range f.items[list] {
		if t.Id == id {
			return t
		}
	}
	return nil
}

func (f *fakeTasks) remove(list, id string) {
	kept := f.items[list][:0]
	for _, t := range f.items[list] {
		if t.Id != id {
			kept = append(kept, t)
		}
	}
	f.items[list] = kept
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fake *fakeTasks) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	c, err := NewWithHTTPClient(context.Background(), server.Client(),
		[]Option{WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })},
		option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)
	return c
}

func TestRequestAccessWithoutToken(t *testing.T) {
	c := NewClient(nil)
	assert.ErrorIs(t, c.RequestAccess(context.Background()), auth.ErrNoToken)
}

func TestFetchAllTasks(t *testing.T) {
	fake := newFakeTasks()
	fake.addList("l1", "Tasks")
	fake.addList("l2", "Errands")
	fake.items["l1"] = []*tasks.Task{
		{Id: "a", Title: "Write report", Status: statusNeedsAction, Due: "2024-01-20T00:00:00.000Z"},
		{Id: "gone", Title: "Deleted", Deleted: true},
	}
	fake.items["l2"] = []*tasks.Task{
		{Id: "b", Title: "Buy milk", Status: statusCompleted, Completed: strPtr("2024-01-21T08:15:00.000Z")},
	}
	c := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.RequestAccess(ctx))
	lists, err := c.AvailableLists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Errands", "Tasks"}, lists)

	all, err := c.FetchAllTasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byID := map[string]model.Task{}
	for _, task := range all {
		byID[task.Origin.DestinationID] = task
	}
	assert.Equal(t, "Tasks", byID["a"].List)
	assert.Equal(t, "2024-01-20", model.FormatDate(byID["a"].Due))
	assert.False(t, byID["a"].Completed)
	assert.Equal(t, "Errands", byID["b"].List)
	assert.True(t, byID["b"].Completed)
	assert.Equal(t, "2024-01-21", model.FormatDate(byID["b"].Done))
}

func TestCreateUpdateMoveDelete(t *testing.T) {
	fake := newFakeTasks()
	fake.addList("l1", "Tasks")
	c := newTestClient(t, fake)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	due := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	id, err := c.CreateTask(ctx, model.Task{Title: "Buy milk", Due: &due, Tags: []string{"errand"}}, "Errands")
	require.NoError(t, err)

	lists, err := c.AvailableLists(ctx)
	require.NoError(t, err)
	assert.Contains(t, lists, "Errands")
	errandsID := c.lists["Errands"]
	created := fake.find(errandsID, id)
	require.NotNil(t, created)
	assert.Equal(t, "#errand", created.Notes)

	require.NoError(t, c.UpdateTask(ctx, id, model.Task{Title: "Buy oat milk", Completed: true}))
	assert.Equal(t, "Buy oat milk", created.Title)
	assert.Equal(t, statusCompleted, created.Status)
	last := fake.patches[len(fake.patches)-1]
	assert.Contains(t, last, "due")
	assert.Nil(t, last["due"])

	require.NoError(t, c.MoveTask(ctx, id, "Tasks"))
	assert.NotNil(t, fake.find("l1", id))
	assert.Nil(t, fake.find(errandsID, id))

	require.NoError(t, c.DeleteTask(ctx, id))
	assert.Nil(t, fake.find("l1", id))
}

func TestDeleteMissingTaskSucceeds(t *testing.T) {
	fake := newFakeTasks()
	fake.addList("l1", "Tasks")
	fake.items["l1"] = []*tasks.Task{{Id: "a", Title: "Once"}}
	c := newTestClient(t, fake)
	ctx := context.Background()
	_, err := c.FetchAllTasks(ctx)
	require.NoError(t, err)

	fake.items["l1"] = nil
	assert.NoError(t, c.DeleteTask(ctx, "a"))
}

func TestUpdateUnknownTask(t *testing.T) {
	fake := newFakeTasks()
	c := newTestClient(t, fake)
	assert.Error(t, c.UpdateTask(context.Background(), "nope", model.Task{Title: "x"}))
}

func TestRetriesTransientErrors(t *testing.T) {
	fake := newFakeTasks()
	fake.addList("l1", "Tasks")
	fake.failures["GET /tasks/v1/users/@me/lists"] = 2
	c := newTestClient(t, fake)

	require.NoError(t, c.RequestAccess(context.Background()))
	assert.Equal(t, 3, fake.calls["GET /tasks/v1/users/@me/lists"])
}

func TestGivesUpAfterRetryBudget(t *testing.T) {
	fake := newFakeTasks()
	fake.failures["GET /tasks/v1/users/@me/lists"] = 100
	c := newTestClient(t, fake)

	require.Error(t, c.RequestAccess(context.Background()))
	assert.Equal(t, maxRetries+1, fake.calls["GET /tasks/v1/users/@me/lists"])
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	fake := newFakeTasks()
	fake.addList("l1", "Tasks")
	c := newTestClient(t, fake)
	ctx := context.Background()
	_, err := c.FetchAllTasks(ctx)
	require.NoError(t, err)
	c.taskList["ghost"] = "l1"

	err = c.UpdateTask(ctx, "ghost", model.Task{Title: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls["PATCH /tasks/v1/lists/{list}/tasks/{task}"])
}
