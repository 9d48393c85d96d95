package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	cfg := map[string]any{
		"url":     "https://portal.cfm.org.br/api",
		"method":  "GET",
		"extract": ".data.situacao",
		"ignored": true,
	}

	var hc HTTPConfig
	require.NoError(t, DecodeConfig(cfg, &hc))
	assert.Equal(t, "https://portal.cfm.org.br/api", hc.URL)
	assert.Equal(t, "GET", hc.Method)
	assert.Equal(t, ".data.situacao", hc.Extract)
}

func TestDecodeConfigNil(t *testing.T) {
	var fc FormConfig
	require.NoError(t, DecodeConfig(nil, &fc))
	assert.Empty(t, fc.TemplateID)
	assert.Empty(t, fc.Fields)
}

func TestDecodeConfigTypeMismatch(t *testing.T) {
	var lc LoopConfig
	err := DecodeConfig(map[string]any{"max_iter": "dez"}, &lc)
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidation, CodeOf(err))
}

func TestDecodeTrigger(t *testing.T) {
	tc, err := DecodeTrigger(map[string]any{
		"trigger": map[string]any{
			"type":  "storage_event",
			"table": "solicitacoes",
			"event": "insert",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Equal(t, TriggerStorageEvent, tc.Type)
	assert.Equal(t, "solicitacoes", tc.Table)
	assert.Equal(t, "insert", tc.Event)
}

func TestDecodeTriggerAbsent(t *testing.T) {
	tc, err := DecodeTrigger(map[string]any{"label": "Início"})
	require.NoError(t, err)
	assert.Nil(t, tc)

	tc, err = DecodeTrigger(map[string]any{"trigger": nil})
	require.NoError(t, err)
	assert.Nil(t, tc)
}

func TestDecodeTriggerMalformed(t *testing.T) {
	_, err := DecodeTrigger(map[string]any{"trigger": map[string]any{"type": 42}})
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidation, CodeOf(err))
}
