package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type plainTool struct{ name string }

func (p plainTool) Name() string               { return p.name }
func (p plainTool) JSONSchema() map[string]any { return nil }
func (p plainTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	return "ok", nil
}

type ctxTool struct {
	name  string
	bound bool
	call  CallCtx
}

func (c ctxTool) Name() string               { return c.name }
func (c ctxTool) JSONSchema() map[string]any { return nil }
func (c ctxTool) BindCtx(call CallCtx) Tool  { return ctxTool{name: c.name, bound: true, call: call} }
func (c ctxTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	if err := RequireCtx(c.bound, c.name); err != nil {
		return nil, err
	}
	return c.call.ThreadID, nil
}

func TestBindPassesPlainToolsThroughUnmodified(t *testing.T) {
	t.Parallel()
	in := []Tool{plainTool{name: "search"}}
	out := Bind(in, CallCtx{ThreadID: "t1"})
	require.Equal(t, in[0], out[0])
}

func TestBindInjectsCtxAndFailsUnbound(t *testing.T) {
	t.Parallel()

	unbound := ctxTool{name: "mutate"}
	_, err := unbound.Call(context.Background(), nil)
	require.Error(t, err)

	bound := Bind([]Tool{unbound}, CallCtx{ThreadID: "t1"})[0]
	result, err := bound.Call(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "t1", result)
}

func TestPickSourcePriority(t *testing.T) {
	t.Parallel()
	callSite := []Tool{plainTool{name: "a"}}
	threadDefault := []Tool{plainTool{name: "b"}}
	agentDefault := []Tool{plainTool{name: "c"}}

	require.Equal(t, callSite, PickSource(callSite, threadDefault, agentDefault))
	require.Equal(t, threadDefault, PickSource(nil, threadDefault, agentDefault))
	require.Equal(t, agentDefault, PickSource(nil, nil, agentDefault))
}
