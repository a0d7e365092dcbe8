package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArkProvider_RequiresKeyAndModel(t *testing.T) {
	_, err := NewArkProvider(context.Background(), ArkConfig{Model: "ep-123"})
	require.Error(t, err)

	_, err = NewArkProvider(context.Background(), ArkConfig{APIKey: "ak"})
	require.Error(t, err)
}

func TestBuildArkMessages(t *testing.T) {
	msgs := buildArkMessages(Request{
		System: "protocolo",
		Messages: []Message{
			{Role: RoleUser, Content: "oi"},
			{Role: RoleAssistant, Content: "Qual o porte da empresa?"},
			{Role: RoleUser, Content: "200 pessoas"},
		},
		Schema: testSchema(),
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "protocolo"))
	assert.Contains(t, msgs[0].Content, "JSON Schema")
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, "200 pessoas", msgs[3].Content)
}
