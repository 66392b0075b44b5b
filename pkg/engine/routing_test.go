package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

func TestRouterRoute(t *testing.T) {
	r := Router{
		TagLists:    map[string]string{"#Work": "Work", "errand": "Errands", "zeta": "Zeta"},
		DefaultList: "Tasks",
	}

	tests := []struct {
		name string
		tags []string
		want string
	}{
		{"no tags", nil, "Tasks"},
		{"unmapped tag", []string{"misc"}, "Tasks"},
		{"mapped tag", []string{"errand"}, "Errands"},
		{"case and hash insensitive", []string{"#WORK"}, "Work"},
		{"first sorted tag wins", []string{"zeta", "errand"}, "Errands"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Route(model.Task{Tags: tt.tags}))
		})
	}
}

func TestRouterWithinAvailableLists(t *testing.T) {
	r := Router{TagLists: map[string]string{"errand": "Errands", "work": "Work"}, DefaultList: "tasks"}
	route := r.within([]string{"Tasks", "errands"})

	assert.Equal(t, "errands", route(model.Task{Tags: []string{"errand"}}), "existing list keeps its spelling")
	assert.Equal(t, "Tasks", route(model.Task{}))
	assert.Equal(t, "Work", route(model.Task{Tags: []string{"work"}}), "missing mapped list is passed through")

	open := r.within(nil)
	assert.Equal(t, "Work", open(model.Task{Tags: []string{"work"}}))
}
