package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TemplateRepository is the narrow read/write surface the editor needs for
// form templates. The full Store satisfies it; MemoryTemplates provides an
// ephemeral implementation for tests and form previews.
type TemplateRepository interface {
	StoreTemplate(ctx context.Context, tpl *FormTemplate) error
	GetTemplate(ctx context.Context, id string) (*FormTemplate, error)
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]*FormTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// MemoryTemplates is an in-memory TemplateRepository. Safe for concurrent use.
type MemoryTemplates struct {
	mu        sync.RWMutex
	templates map[string]*FormTemplate
}

// NewMemoryTemplates creates an empty in-memory template repository.
func NewMemoryTemplates() *MemoryTemplates {
	return &MemoryTemplates{templates: make(map[string]*FormTemplate)}
}

func (m *MemoryTemplates) StoreTemplate(_ context.Context, tpl *FormTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tpl
	now := time.Now().UTC()
	if existing, ok := m.templates[tpl.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.templates[tpl.ID] = &cp
	return nil
}

func (m *MemoryTemplates) GetTemplate(_ context.Context, id string) (*FormTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tpl, ok := m.templates[id]
	if !ok {
		return nil, storeNotFound("form_template", id)
	}
	cp := *tpl
	return &cp, nil
}

func (m *MemoryTemplates) ListTemplates(_ context.Context, filter TemplateFilter) ([]*FormTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var templates []*FormTemplate
	for _, tpl := range m.templates {
		if filter.Name != "" && tpl.Name != filter.Name {
			continue
		}
		cp := *tpl
		templates = append(templates, &cp)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	if filter.Limit > 0 && len(templates) > filter.Limit {
		templates = templates[:filter.Limit]
	}
	return templates, nil
}

func (m *MemoryTemplates) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[id]; !ok {
		return storeNotFound("form_template", id)
	}
	delete(m.templates, id)
	return nil
}

var _ TemplateRepository = (*MemoryTemplates)(nil)
var _ TemplateRepository = (*LibSQLStore)(nil)
