// Package scheduler runs the recipe lifecycle across a dependency graph.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/lifecycle"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// NodeStatus represents the status of a recipe node.
type NodeStatus string

const (
	// StatusPending indicates the node has not started.
	StatusPending NodeStatus = "Pending"
	// StatusRunning indicates the node is executing one of its phases.
	StatusRunning NodeStatus = "Running"
	// StatusCompleted indicates the node published its artifact.
	StatusCompleted NodeStatus = "Completed"
	// StatusFailed indicates one of the node's phases failed.
	StatusFailed NodeStatus = "Failed"
	// StatusBlocked indicates a dependency of the node failed.
	StatusBlocked NodeStatus = "Blocked"
)

// Report is the outcome of a graph run.
type Report struct {
	// Order lists the scheduled recipes in execution order.
	Order     []string
	Status    map[string]NodeStatus
	Artifacts map[string]domain.Artifact
	// Errors holds the failure of every failed node. Blocked nodes have none.
	Errors map[string]error
}

// Err joins the node errors in execution order, or returns nil when every
// node completed.
func (r *Report) Err() error {
	var errs []error
	for _, name := range r.Order {
		if err := r.Errors[name]; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Blocked returns the blocked recipes in execution order.
func (r *Report) Blocked() []string {
	var out []string
	for _, name := range r.Order {
		if r.Status[name] == StatusBlocked {
			out = append(out, name)
		}
	}
	return out
}

// Scheduler manages the execution of recipes in the dependency graph.
type Scheduler struct {
	deps   lifecycle.Deps
	tracer ports.Tracer

	mu         sync.RWMutex
	nodeStatus map[string]NodeStatus
}

// NewScheduler creates a new Scheduler that builds instances from deps and
// reports through tracer.
func NewScheduler(deps lifecycle.Deps, tracer ports.Tracer) *Scheduler {
	return &Scheduler{
		deps:       deps,
		tracer:     tracer,
		nodeStatus: make(map[string]NodeStatus),
	}
}

func (s *Scheduler) updateStatus(name string, status NodeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeStatus[name] = status
}

func (s *Scheduler) getStatus(name string) NodeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeStatus[name]
}

// Run builds targets and their workspace dependencies. The target "all"
// selects every recipe of the workspace. At most parallelism phases run at
// once; zero or less selects the number of CPUs.
//
// Every node runs in its own goroutine. Source starts immediately, Configure
// waits until all dependencies have published their artifacts. A failed node
// blocks its dependents while unrelated nodes continue. The returned error
// joins the node failures; the Report is returned in every case once the
// graph has been scheduled.
func (s *Scheduler) Run(
	ctx context.Context,
	ws *domain.Workspace,
	targets []string,
	parallelism int,
) (*Report, error) {
	if slices.Contains(targets, domain.ReservedRecipeName) {
		targets = ws.Graph.Names()
	}
	order, err := ws.Graph.Closure(targets)
	if err != nil {
		return nil, err
	}

	settings, err := ws.Settings()
	if err != nil {
		return nil, err
	}

	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	state := &runState{
		s:         s,
		ws:        ws,
		settings:  settings,
		sem:       semaphore.NewWeighted(int64(parallelism)),
		gates:     make(map[string]chan struct{}, len(order)),
		artifacts: make(map[string]domain.Artifact, len(order)),
		prefixes:  make(map[string][]string, len(order)),
		errs:      make(map[string]error),
	}

	depMap := make(map[string][]string, len(order))
	for _, name := range order {
		depMap[name] = ws.Graph.Dependencies(name)
		state.gates[name] = make(chan struct{})
		s.updateStatus(name, StatusPending)
	}

	s.tracer.EmitPlan(ctx, order, depMap, targets)

	var g errgroup.Group
	for _, name := range order {
		g.Go(func() error {
			defer close(state.gates[name])
			state.runNode(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Order:     order,
		Status:    make(map[string]NodeStatus, len(order)),
		Artifacts: state.artifacts,
		Errors:    state.errs,
	}
	for _, name := range order {
		report.Status[name] = s.getStatus(name)
	}
	return report, report.Err()
}

type runState struct {
	s        *Scheduler
	ws       *domain.Workspace
	settings domain.Settings
	sem      *semaphore.Weighted
	gates    map[string]chan struct{}

	mu        sync.Mutex
	artifacts map[string]domain.Artifact
	// prefixes holds the install roots a node and its linked dependencies
	// were published to, in dependency order.
	prefixes map[string][]string
	errs     map[string]error
}

func (state *runState) runNode(ctx context.Context, name string) {
	s := state.s
	r, _ := state.ws.Graph.Recipe(name)

	ctx, span := s.tracer.Start(ctx, name, ports.WithAttribute(ports.AttrRecipe, name))
	defer span.End()

	fail := func(err error) {
		span.RecordError(err)
		state.mu.Lock()
		state.errs[name] = err
		state.mu.Unlock()
		s.updateStatus(name, StatusFailed)
	}

	inst, err := state.newInstance(r)
	if err != nil {
		fail(err)
		return
	}

	s.updateStatus(name, StatusRunning)

	if err := state.phase(ctx, inst, domain.PhaseSource, func(out io.Writer) error {
		return inst.Source(ctx, out)
	}); err != nil {
		fail(err)
		return
	}

	if failed := state.awaitDependencies(name); failed != "" {
		s.deps.Logger.Debug(fmt.Sprintf("%s is blocked by failed dependency %s", name, failed))
		span.SetAttribute(ports.AttrBlocked, true)
		s.updateStatus(name, StatusBlocked)
		return
	}

	prefixPaths := state.prefixPaths(r)
	steps := []struct {
		phase domain.Phase
		run   func(out io.Writer) error
	}{
		{domain.PhaseConfigure, func(out io.Writer) error { return inst.Configure(ctx, prefixPaths, out) }},
		{domain.PhaseBuild, func(out io.Writer) error { return inst.Build(ctx, state.toolPaths(r), out) }},
		{domain.PhasePackage, func(out io.Writer) error { return inst.Package(ctx, out) }},
		{domain.PhasePackageInfo, func(io.Writer) error {
			_, err := inst.PackageInfo(ctx)
			return err
		}},
	}
	for _, step := range steps {
		if err := state.phase(ctx, inst, step.phase, step.run); err != nil {
			fail(err)
			return
		}
	}

	state.mu.Lock()
	state.artifacts[name] = *inst.Artifact()
	state.prefixes[name] = append(prefixPaths, inst.Artifact().Root)
	state.mu.Unlock()
	s.updateStatus(name, StatusCompleted)
}

func (state *runState) newInstance(r *domain.Recipe) (*lifecycle.Instance, error) {
	overrides, err := state.ws.Overrides(r.Name)
	if err != nil {
		return nil, domain.Attribute(err, r.Name, domain.PhaseConfigure)
	}
	return lifecycle.New(state.s.deps, lifecycle.Config{
		Root:      state.ws.Root,
		Recipe:    r,
		Settings:  state.settings,
		Overrides: overrides,
		Preset:    state.ws.EffectivePreset(r),
	})
}

// phase runs one lifecycle phase in its own span while holding a slot of
// the semaphore.
func (state *runState) phase(
	ctx context.Context,
	inst *lifecycle.Instance,
	phase domain.Phase,
	run func(out io.Writer) error,
) error {
	if err := state.sem.Acquire(ctx, 1); err != nil {
		err = zerr.With(zerr.Wrap(err, "phase not started"), "recipe", inst.Recipe().Name)
		return zerr.With(err, "phase", phase.String())
	}
	defer state.sem.Release(1)

	_, span := state.s.tracer.Start(ctx, phase.String(),
		ports.WithAttribute(ports.AttrRecipe, inst.Recipe().Name),
		ports.WithAttribute(ports.AttrPhase, phase.String()),
	)
	defer span.End()

	if err := run(span); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// awaitDependencies blocks until every dependency of name has finished and
// returns the first one that did not complete.
func (state *runState) awaitDependencies(name string) string {
	for _, dep := range state.ws.Graph.Dependencies(name) {
		<-state.gates[dep]
		if state.s.getStatus(dep) != StatusCompleted {
			return dep
		}
	}
	return ""
}

// prefixPaths returns the install roots of the linked workspace dependencies
// of r, including their own linked dependencies.
func (state *runState) prefixPaths(r *domain.Recipe) []string {
	state.mu.Lock()
	defer state.mu.Unlock()

	var out []string
	for _, req := range r.LinkedRequirements() {
		for _, p := range state.prefixes[req.Ref.Name] {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// toolPaths returns the bin directories of the tool dependencies of r that
// are built in the workspace.
func (state *runState) toolPaths(r *domain.Recipe) []string {
	state.mu.Lock()
	defer state.mu.Unlock()

	var out []string
	for _, req := range r.ToolRequirements() {
		if artifact, ok := state.artifacts[req.Ref.Name]; ok {
			out = append(out, filepath.Join(artifact.Root, "bin"))
		}
	}
	return out
}
