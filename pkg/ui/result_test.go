package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harrisonrobin/vaultsync/pkg/engine"
)

func TestSummary(t *testing.T) {
	r := &engine.Result{Created: 2, Updated: 1, Skipped: 1, DryRun: true}
	assert.Equal(t, "[dry run] 2 created, 1 updated, 0 deleted, 0 written back, 1 skipped", Summary(r))
}

func TestWriteResult(t *testing.T) {
	r := &engine.Result{
		StartedAt: time.Date(2024, 1, 21, 9, 0, 0, 0, time.UTC),
		Created:   1,
		Skipped:   1,
		Actions: []engine.Action{
			{Kind: engine.ActionCreate, Title: "Buy milk", File: "todo.md", Line: 1, List: "Errands"},
			{Kind: engine.ActionSkip, Op: engine.ActionComplete, Title: "Call mum", File: "todo.md", Line: 2, Err: "task line changed since scan"},
		},
	}

	var quiet bytes.Buffer
	WriteResult(&quiet, r, false)
	assert.Contains(t, quiet.String(), "1 created")
	assert.Contains(t, quiet.String(), "Call mum")
	assert.Contains(t, quiet.String(), "task line changed since scan")
	assert.NotContains(t, quiet.String(), "Buy milk")

	var verbose bytes.Buffer
	WriteResult(&verbose, r, true)
	assert.Contains(t, verbose.String(), "Buy milk")
	assert.Contains(t, verbose.String(), "todo.md:1")
	assert.Contains(t, verbose.String(), "Errands")
}
