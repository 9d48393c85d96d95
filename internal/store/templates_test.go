package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credativa/procflow/pkg/schema"
)

func TestMemoryTemplatesCRUD(t *testing.T) {
	m := NewMemoryTemplates()
	ctx := context.Background()

	tpl := &FormTemplate{
		ID:          "tpl-dados-pessoais",
		Name:        "Dados Pessoais",
		Description: "Dados básicos do profissional",
		Fields: []schema.FormField{
			{Name: "cpf", Type: "string", Required: true},
			{Name: "crm", Type: "string", Required: true},
		},
		FormSchema: json.RawMessage(`{"type":"object","required":["cpf"]}`),
	}
	require.NoError(t, m.StoreTemplate(ctx, tpl))

	got, err := m.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dados Pessoais", got.Name)
	assert.Len(t, got.Fields, 2)
	assert.False(t, got.CreatedAt.IsZero())

	// Update keeps CreatedAt, bumps UpdatedAt.
	created := got.CreatedAt
	tpl.Description = "atualizado"
	require.NoError(t, m.StoreTemplate(ctx, tpl))
	got, err = m.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "atualizado", got.Description)
	assert.Equal(t, created, got.CreatedAt)

	require.NoError(t, m.DeleteTemplate(ctx, tpl.ID))
	_, err = m.GetTemplate(ctx, tpl.ID)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestMemoryTemplatesNotFound(t *testing.T) {
	m := NewMemoryTemplates()
	ctx := context.Background()

	_, err := m.GetTemplate(ctx, "ghost")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))

	err = m.DeleteTemplate(ctx, "ghost")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestMemoryTemplatesListSortedAndFiltered(t *testing.T) {
	m := NewMemoryTemplates()
	ctx := context.Background()

	for _, name := range []string{"Endereço", "Dados Pessoais", "Formação"} {
		require.NoError(t, m.StoreTemplate(ctx, &FormTemplate{ID: "tpl-" + name, Name: name}))
	}

	all, err := m.ListTemplates(ctx, TemplateFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Dados Pessoais", all[0].Name)
	assert.Equal(t, "Endereço", all[1].Name)
	assert.Equal(t, "Formação", all[2].Name)

	filtered, err := m.ListTemplates(ctx, TemplateFilter{Name: "Formação"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Formação", filtered[0].Name)

	limited, err := m.ListTemplates(ctx, TemplateFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryTemplatesReturnsCopies(t *testing.T) {
	m := NewMemoryTemplates()
	ctx := context.Background()

	require.NoError(t, m.StoreTemplate(ctx, &FormTemplate{ID: "tpl-1", Name: "Original"}))

	got, err := m.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := m.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Name)
}
