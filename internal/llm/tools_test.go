package llm

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToolSet struct {
	tools  []mcp.Tool
	called []string
	args   []map[string]any
}

func (f *fakeToolSet) Tools() []mcp.Tool { return f.tools }

func (f *fakeToolSet) Call(_ context.Context, name string, args map[string]any) (string, error) {
	f.called = append(f.called, name)
	f.args = append(f.args, args)
	return "result of " + name, nil
}

func TestFromToolSet(t *testing.T) {
	ts := &fakeToolSet{tools: []mcp.Tool{
		mcp.NewTool("GOOGLECALENDAR_EVENTS_LIST",
			mcp.WithDescription("List calendar events"),
			mcp.WithString("calendarId", mcp.Required()),
		),
		mcp.NewTool("GOOGLECALENDAR_FIND_FREE_SLOTS"),
	}}

	tools, err := FromToolSet(ts)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	assert.Equal(t, "GOOGLECALENDAR_EVENTS_LIST", tools[0].Name)
	assert.Equal(t, "List calendar events", tools[0].Description)
	assert.Contains(t, string(tools[0].Parameters), `"calendarId"`)

	// Each handler is bound to its own tool name.
	out, err := tools[1].Call(context.Background(), map[string]any{"timeMin": "2025-03-10T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, "result of GOOGLECALENDAR_FIND_FREE_SLOTS", out)
	_, err = tools[0].Call(context.Background(), map[string]any{"calendarId": "primary"})
	require.NoError(t, err)

	assert.Equal(t, []string{"GOOGLECALENDAR_FIND_FREE_SLOTS", "GOOGLECALENDAR_EVENTS_LIST"}, ts.called)
	assert.Equal(t, "primary", ts.args[1]["calendarId"])
}
