package board

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"taskboard/internal/model"
	"taskboard/internal/realtime"

	"github.com/google/uuid"
)

// ProjectSelector lists projects and tracks the active one.
type ProjectSelector struct {
	remote   Remote
	session  Identities
	notifier Notifier
	log      *slog.Logger

	mu       sync.Mutex
	projects []model.Project
	active   uuid.UUID
	seq      uint64
	version  uint64
	follower *follower

	listObservers   emitter[[]model.Project]
	activeObservers emitter[uuid.UUID]
}

func NewProjectSelector(remote Remote, session Identities, notifier Notifier, log *slog.Logger) *ProjectSelector {
	return &ProjectSelector{
		remote:   remote,
		session:  session,
		notifier: orDiscard(notifier),
		log:      orDefaultLogger(log),
	}
}

// Load replaces the list with the gateway's, newest first. On failure the
// old list stays.
func (p *ProjectSelector) Load(ctx context.Context) error {
	p.mu.Lock()
	p.seq++
	n := p.seq
	p.mu.Unlock()

	projects, err := p.remote.ListProjects(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		p.mu.Lock()
		stale := n != p.seq
		p.mu.Unlock()
		if stale {
			p.log.Debug("dropping failed stale project list", "seq", n, "error", err)
			return nil
		}
		failure(p.notifier, err, "Could not load projects")
		return err
	}

	p.mu.Lock()
	if n != p.seq {
		p.mu.Unlock()
		p.log.Debug("discarding stale project list", "seq", n)
		return nil
	}
	p.projects = projects
	p.version++
	version, list := p.version, p.copyLocked()
	p.mu.Unlock()

	p.listObservers.emit(version, list)
	return nil
}

// Watch reloads the list whenever a project is created elsewhere, until ctx
// is done or Close is called.
func (p *ProjectSelector) Watch(ctx context.Context) error {
	f, err := follow(ctx, p.remote, realtime.Projects(),
		func(ctx context.Context) { _ = p.Load(ctx) },
		func() { failure(p.notifier, nil, "Live project updates stopped") },
	)
	if err != nil {
		failure(p.notifier, err, "Could not subscribe to project changes")
		return err
	}

	p.mu.Lock()
	old := p.follower
	p.follower = f
	p.mu.Unlock()
	old.stop()
	return nil
}

// Create adds a project and puts it first. It becomes active if none was.
func (p *ProjectSelector) Create(ctx context.Context, name, description string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if p.session.Current() == nil {
		return nil, ErrNotSignedIn
	}

	project, err := p.remote.CreateProject(ctx, name, strings.TrimSpace(description))
	if err != nil {
		failure(p.notifier, err, "Could not create project %q", name)
		return nil, err
	}

	p.mu.Lock()
	next := make([]model.Project, 0, len(p.projects)+1)
	next = append(next, *project)
	for _, existing := range p.projects {
		if existing.ID != project.ID {
			next = append(next, existing)
		}
	}
	p.projects = next
	// a Load already in flight predates the project
	p.seq++
	p.version++
	version, list := p.version, p.copyLocked()
	selected := false
	if p.active == uuid.Nil {
		p.active = project.ID
		selected = true
	}
	p.mu.Unlock()

	p.listObservers.emit(version, list)
	if selected {
		p.activeObservers.emit(version, project.ID)
	}
	return project, nil
}

// Select makes a listed project active.
func (p *ProjectSelector) Select(id uuid.UUID) error {
	p.mu.Lock()
	if p.indexLocked(id) < 0 {
		p.mu.Unlock()
		return ErrUnknownProject
	}
	if p.active == id {
		p.mu.Unlock()
		return nil
	}
	p.active = id
	p.version++
	version := p.version
	p.mu.Unlock()

	p.activeObservers.emit(version, id)
	return nil
}

func (p *ProjectSelector) Active() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// ActiveProject returns the active project if it is in the list.
func (p *ProjectSelector) ActiveProject() (model.Project, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := p.indexLocked(p.active); i >= 0 {
		return p.projects[i], true
	}
	return model.Project{}, false
}

func (p *ProjectSelector) Projects() []model.Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyLocked()
}

// Find resolves a project by id or by exact name.
func (p *ProjectSelector) Find(ref string) (model.Project, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, err := uuid.Parse(ref); err == nil {
		if i := p.indexLocked(id); i >= 0 {
			return p.projects[i], true
		}
	}
	for _, project := range p.projects {
		if project.Name == ref {
			return project, true
		}
	}
	return model.Project{}, false
}

func (p *ProjectSelector) OnChange(fn func([]model.Project)) (cancel func()) {
	return p.listObservers.add(fn)
}

func (p *ProjectSelector) OnActiveChange(fn func(uuid.UUID)) (cancel func()) {
	return p.activeObservers.add(fn)
}

// Close stops watching.
func (p *ProjectSelector) Close() {
	p.mu.Lock()
	f := p.follower
	p.follower = nil
	p.mu.Unlock()
	f.stop()
}

func (p *ProjectSelector) indexLocked(id uuid.UUID) int {
	for i, project := range p.projects {
		if project.ID == id {
			return i
		}
	}
	return -1
}

func (p *ProjectSelector) copyLocked() []model.Project {
	return append([]model.Project(nil), p.projects...)
}
