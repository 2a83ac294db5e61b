package project

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

const DefaultProjectName = "default"

var ErrProjectNotFound = errors.New("project not found")

// Registry hands out projects by name. It is created once per process and passed to the
// components that need it.
type Registry struct {
	mu                     sync.RWMutex
	projects               map[string]*Project
	defaultName            string
	sketchRelativeAccuracy float64
	logger                 *zap.Logger
}

func NewRegistry(defaultName string, sketchRelativeAccuracy float64, logger *zap.Logger) *Registry {
	if defaultName == "" {
		defaultName = DefaultProjectName
	}
	r := &Registry{
		projects:               make(map[string]*Project),
		defaultName:            defaultName,
		sketchRelativeAccuracy: sketchRelativeAccuracy,
		logger:                 logger,
	}
	r.GetOrCreate(defaultName)
	return r
}

// GetOrCreate returns the named project, creating it on first use. An empty name refers
// to the default project.
func (r *Registry) GetOrCreate(name string) *Project {
	if name == "" {
		name = r.defaultName
	}
	r.mu.RLock()
	p, ok := r.projects[name]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.projects[name]; ok {
		return p
	}
	p = NewProject(name, r.sketchRelativeAccuracy, r.logger)
	r.projects[name] = p
	r.logger.Info("Created project", zap.String("project", name), zap.String("project_id", p.ID.String()))
	return p
}

func (r *Registry) Get(name string) (*Project, error) {
	if name == "" {
		name = r.defaultName
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[name]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (r *Registry) Default() *Project {
	return r.GetOrCreate(r.defaultName)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.projects))
	for name := range r.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Projects() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	projects := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects
}
