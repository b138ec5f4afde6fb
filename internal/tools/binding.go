package tools

import (
	"context"

	"github.com/intelligencedev/agentcore/internal/apperr"
)

// CallCtx is the call-site state injected into ctx-accepting tools at bind
// time (§4.5, §9): "done by wrapping at bind time rather than threading a
// parameter through the provider — the provider never sees it."
type CallCtx struct {
	HostCtx   context.Context
	UserID    string
	ThreadID  string
	MessageID string
}

// CtxAccepting is implemented by tools whose Call needs the call-site
// CallCtx (user/thread/message identity) rather than just the raw args.
// Plain tools do not implement this and pass through Bind unmodified.
type CtxAccepting interface {
	Tool
	BindCtx(c CallCtx) Tool
}

// Bind wraps each ctx-accepting tool in toolsIn with call so its Call
// implementation can assert ctx was injected; plain tools are returned as-is.
func Bind(toolsIn []Tool, call CallCtx) []Tool {
	out := make([]Tool, len(toolsIn))
	for i, t := range toolsIn {
		if ca, ok := t.(CtxAccepting); ok {
			out[i] = ca.BindCtx(call)
		} else {
			out[i] = t
		}
	}
	return out
}

// RequireCtx is called by a ctx-accepting tool's Call implementation to
// assert its CallCtx was actually injected by Bind (§7 MisuseError).
func RequireCtx(bound bool, toolName string) error {
	if !bound {
		return apperr.Misusef("tools.Bind", "ctx-accepting tool %q invoked without injected ctx", toolName)
	}
	return nil
}

// PickSource selects the tool list to use for one call per §4.5's strict
// priority: call-site, then thread-default, then agent-default. Only the
// highest-priority non-nil source is used — sources are never merged.
func PickSource(callSite, threadDefault, agentDefault []Tool) []Tool {
	if callSite != nil {
		return callSite
	}
	if threadDefault != nil {
		return threadDefault
	}
	return agentDefault
}
