// Package engine reconciles a TaskSource with a TaskDestination. The source
// always wins for content; completion state may optionally flow back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/vaultsync/pkg/model"
	"github.com/harrisonrobin/vaultsync/pkg/state"
)

type Options struct {
	// StoreRoot must be a directory containing SentinelDir.
	StoreRoot   string
	SentinelDir string
	StatePath   string

	Router           Router
	Writeback        bool
	DryRun           bool
	IncludeCompleted bool

	Guard    *Guard
	Recorder Recorder
	Logger   zerolog.Logger
	Now      func() time.Time
}

// RunOptions are per-run settings. DryRun here is OR-ed with Options.DryRun.
type RunOptions struct {
	DryRun  bool
	Trigger string
}

type Engine struct {
	src  TaskSource
	dst  TaskDestination
	opts Options
	log  zerolog.Logger
	now  func() time.Time
}

func New(src TaskSource, dst TaskDestination, opts Options) *Engine {
	if opts.Guard == nil {
		opts.Guard = NewGuard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{src: src, dst: dst, opts: opts, log: opts.Logger, now: opts.Now}
}

// Guard exposes the run guard so triggers can check for an active run.
func (e *Engine) Guard() *Guard { return e.opts.Guard }

// Run performs one pass. ErrConfig, ErrBusy and failures to take the run
// lock return before anything is touched and record nothing. Every other outcome,
// including ErrAccess, yields a Result that is handed to the Recorder.
// Per-task failures do not abort the pass; they show up as actions.
func (e *Engine) Run(ctx context.Context, ro RunOptions) (*Result, error) {
	if err := e.checkStore(); err != nil {
		return nil, err
	}
	if err := e.opts.Guard.TryAcquire(); err != nil {
		return nil, err
	}
	defer e.opts.Guard.Release()

	dry := e.opts.DryRun || ro.DryRun
	res := newResult(ro.Trigger, e.now(), dry)
	log := e.log.With().Str("run_id", res.ID).Bool("dry_run", dry).Logger()
	log.Info().Str("trigger", ro.Trigger).Str("destination", e.dst.Name()).Msg("sync started")

	p := &pass{Engine: e, res: res, dry: dry, log: log, offsets: make(map[string][]insertion)}
	err := p.run(ctx)
	res.finish(e.now(), err)

	if e.opts.Recorder != nil {
		if rerr := e.opts.Recorder.Record(res); rerr != nil {
			log.Warn().Err(rerr).Msg("failed to record sync result")
		}
	}
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Int("created", res.Created).
		Int("updated", res.Updated).
		Int("moved", res.Moved).
		Int("deleted", res.Deleted).
		Int("writebacks", res.Writebacks).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("sync finished")
	return res, err
}

func (e *Engine) checkStore() error {
	root := e.opts.StoreRoot
	if root == "" {
		return fmt.Errorf("%w: store root not set", ErrConfig)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: store root %s is not a directory", ErrConfig, root)
	}
	if e.opts.SentinelDir != "" {
		if info, err := os.Stat(filepath.Join(root, e.opts.SentinelDir)); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s has no %s directory", ErrConfig, root, e.opts.SentinelDir)
		}
	}
	return nil
}

type insertion struct {
	line  int
	count int
}

// pass holds the working set of a single run.
type pass struct {
	*Engine
	res *Result
	dry bool
	log zerolog.Logger

	st      *state.Store
	sources map[string]model.Task
	order   []string
	dests   map[string]model.Task
	route   func(model.Task) string
	pushed  map[string]bool
	offsets map[string][]insertion
}

func (p *pass) run(ctx context.Context) error {
	if err := p.dst.RequestAccess(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrAccess, err)
	}

	st, err := state.Load(p.opts.StatePath, p.src.IDVersion())
	if err != nil {
		return err
	}
	if st.Cleared() {
		p.log.Info().Int("version", p.src.IDVersion()).Msg("sync state cleared after ID scheme change")
	}
	p.st = st

	if err := p.scan(ctx); err != nil {
		return err
	}
	if err := p.fetch(ctx); err != nil {
		return err
	}

	p.reconcileMapped(ctx)
	if p.opts.Writeback {
		p.writeback()
	}
	p.createUnmapped(ctx)

	if p.dry {
		return nil
	}
	if err := p.st.Save(p.now()); err != nil {
		return err
	}
	return nil
}

func (p *pass) scan(ctx context.Context) error {
	tasks, err := p.src.ScanTasks(ctx)
	if err != nil {
		return fmt.Errorf("scan source: %w", err)
	}
	p.sources = make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		id := p.src.GenerateTaskID(t)
		if first, dup := p.sources[id]; dup {
			p.res.add(Action{
				Kind:     ActionSkip,
				Op:       ActionCreate,
				SourceID: id,
				Title:    t.Title,
				File:     t.Origin.File,
				Line:     t.Origin.Line,
				Err:      fmt.Sprintf("duplicate of line %d", first.Origin.Line),
			})
			continue
		}
		p.sources[id] = t
		p.order = append(p.order, id)
	}
	p.log.Debug().Int("tasks", len(p.sources)).Msg("source scanned")
	return nil
}

func (p *pass) fetch(ctx context.Context) error {
	if err := p.dst.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh %s: %w", p.dst.Name(), err)
	}
	tasks, err := p.dst.FetchAllTasks(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s tasks: %w", p.dst.Name(), err)
	}
	p.dests = make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		p.dests[t.Origin.DestinationID] = t
	}
	lists, err := p.dst.AvailableLists(ctx)
	if err != nil {
		return fmt.Errorf("list %s lists: %w", p.dst.Name(), err)
	}
	p.route = p.opts.Router.within(lists)
	p.pushed = make(map[string]bool)
	return nil
}

// reconcileMapped handles every pair already present in the sync state.
func (p *pass) reconcileMapped(ctx context.Context) {
	for _, entry := range p.st.List() {
		src, srcOK := p.sources[entry.SourceID]
		dst, dstOK := p.dests[entry.DestinationID]
		base := Action{SourceID: entry.SourceID, DestinationID: entry.DestinationID, Title: dst.Title}

		switch {
		case !srcOK && dstOK:
			if err := p.mutate(func() error { return p.dst.DeleteTask(ctx, entry.DestinationID) }); err != nil {
				p.fail(base, ActionDelete, err)
				continue
			}
			p.st.Remove(entry.SourceID)
			base.Kind = ActionDelete
			base.List = dst.List
			p.res.add(base)

		case !dstOK:
			// The destination side is gone; the source task will be
			// created again as unmapped.
			p.st.Remove(entry.SourceID)
			base.Kind = ActionUnlink
			if srcOK {
				base.Title, base.File, base.Line = src.Title, src.Origin.File, src.Origin.Line
			}
			p.res.add(base)

		default:
			p.update(ctx, entry, src, dst)
		}
	}
}

// update pushes changed content and re-files the task when its routed list
// differs from the one it sits in.
func (p *pass) update(ctx context.Context, entry state.Entry, src, dst model.Task) {
	base := Action{
		SourceID:      entry.SourceID,
		DestinationID: entry.DestinationID,
		Title:         src.Title,
		File:          src.Origin.File,
		Line:          src.Origin.Line,
	}

	if hash := src.ContentHash(); hash != entry.Hash {
		if err := p.mutate(func() error { return p.dst.UpdateTask(ctx, entry.DestinationID, src) }); err != nil {
			p.fail(base, ActionUpdate, err)
			return
		}
		p.pushed[entry.SourceID] = true
		entry.Hash = hash
		p.st.Set(entry)
		upd := base
		upd.Kind = ActionUpdate
		upd.List = dst.List
		p.res.add(upd)
	}

	list := p.route(src)
	if dst.List == "" || list == dst.List {
		return
	}
	if err := p.mutate(func() error { return p.dst.MoveTask(ctx, entry.DestinationID, list) }); err != nil {
		p.fail(base, ActionMove, err)
		return
	}
	mv := base
	mv.Kind = ActionMove
	mv.List = list
	p.res.add(mv)
}

// writeback copies destination completion state into the source for pairs
// whose source content did not change this run.
func (p *pass) writeback() {
	today := model.Day(p.now())
	var pending []state.Entry
	for _, entry := range p.st.List() {
		if p.pushed[entry.SourceID] {
			continue
		}
		src, srcOK := p.sources[entry.SourceID]
		dst, dstOK := p.dests[entry.DestinationID]
		if srcOK && dstOK && src.Completed != dst.Completed {
			pending = append(pending, entry)
		}
	}
	// Edits run top to bottom per file so inserted lines shift later tasks.
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := p.sources[pending[i].SourceID].Origin, p.sources[pending[j].SourceID].Origin
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})

	for _, entry := range pending {
		src := p.shifted(p.sources[entry.SourceID])
		dst := p.dests[entry.DestinationID]
		base := Action{
			SourceID:      entry.SourceID,
			DestinationID: entry.DestinationID,
			Title:         src.Title,
			File:          src.Origin.File,
			Line:          src.Origin.Line,
		}

		kind := ActionUncomplete
		if dst.Completed {
			kind = ActionComplete
		}
		inserted, err := p.toggle(src, dst.Completed, today)
		if err != nil {
			if errors.Is(err, model.ErrStale) {
				p.log.Warn().Str("file", src.Origin.File).Int("line", src.Origin.Line).Msg("line changed since scan, writeback skipped")
				base.Kind = ActionSkip
				base.Op = kind
				base.Err = err.Error()
				p.res.add(base)
				continue
			}
			p.fail(base, kind, err)
			continue
		}
		if inserted > 0 {
			p.offsets[src.Origin.File] = append(p.offsets[src.Origin.File], insertion{line: src.Origin.Line, count: inserted})
		}

		entry.Hash = src.WithCompletion(dst.Completed, today).ContentHash()
		p.st.Set(entry)
		base.Kind = kind
		p.res.add(base)
	}
}

func (p *pass) toggle(src model.Task, complete bool, on time.Time) (int, error) {
	if p.dry {
		return 0, nil
	}
	if complete {
		return p.src.MarkTaskComplete(src, on)
	}
	return p.src.MarkTaskIncomplete(src)
}

// shifted moves t's recorded line past lines inserted earlier in this run.
func (p *pass) shifted(t model.Task) model.Task {
	for _, ins := range p.offsets[t.Origin.File] {
		if ins.line < t.Origin.Line {
			t.Origin.Line += ins.count
		}
	}
	return t
}

func (p *pass) createUnmapped(ctx context.Context) {
	for _, id := range p.order {
		if _, mapped := p.st.Get(id); mapped {
			continue
		}
		src := p.sources[id]
		if src.Completed && !p.opts.IncludeCompleted {
			continue
		}
		list := p.route(src)
		base := Action{SourceID: id, Title: src.Title, File: src.Origin.File, Line: src.Origin.Line, List: list}

		if p.dry {
			base.Kind = ActionCreate
			p.res.add(base)
			continue
		}
		destID, err := p.dst.CreateTask(ctx, src, list)
		if err != nil {
			p.fail(base, ActionCreate, err)
			continue
		}
		p.st.Set(state.Entry{SourceID: id, DestinationID: destID, Hash: src.ContentHash()})
		base.Kind = ActionCreate
		base.DestinationID = destID
		p.res.add(base)
	}
}

// mutate runs fn unless this is a dry run.
func (p *pass) mutate(fn func() error) error {
	if p.dry {
		return nil
	}
	return fn()
}

func (p *pass) fail(a Action, op ActionKind, err error) {
	p.log.Error().Err(err).
		Str("op", string(op)).
		Str("source_id", a.SourceID).
		Str("destination_id", a.DestinationID).
		Msg("task sync failed")
	a.Kind = ActionFail
	a.Op = op
	a.Err = err.Error()
	p.res.add(a)
}
