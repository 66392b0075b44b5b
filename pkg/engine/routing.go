package engine

import (
	"strings"

	"github.com/harrisonrobin/vaultsync/pkg/model"
)

// Router picks the destination list of a task from its tags.
type Router struct {
	TagLists    map[string]string
	DefaultList string
}

// Route returns the list of the first tag (in sorted order) that has a
// mapping, or DefaultList.
func (r Router) Route(t model.Task) string {
	if len(r.TagLists) > 0 {
		normalized := make(map[string]string, len(r.TagLists))
		for tag, list := range r.TagLists {
			normalized[model.NormalizeTag(tag)] = list
		}
		for _, tag := range t.SortedTags() {
			if list, ok := normalized[tag]; ok {
				return list
			}
		}
	}
	return r.DefaultList
}

// within matches routed names case-insensitively against the lists that
// exist, so an existing list is reused under its own spelling. A name with
// no match is passed through and the destination creates the list.
func (r Router) within(available []string) func(model.Task) string {
	known := make(map[string]string, len(available))
	for _, name := range available {
		known[strings.ToLower(name)] = name
	}
	return func(t model.Task) string {
		list := r.Route(t)
		if name, ok := known[strings.ToLower(list)]; ok {
			return name
		}
		return list
	}
}
