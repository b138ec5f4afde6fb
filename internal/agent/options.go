package agent

import (
	"github.com/intelligencedev/agentcore/internal/retrieval"
	"github.com/intelligencedev/agentcore/internal/tools"
)

// mergedOptions is the result of applying §4.5/§9's precedence: call-site
// overrides thread-default overrides agent-default, wholesale, except
// SearchOptions which is shallow-merged field by field.
type mergedOptions struct {
	tools               []tools.Tool
	search              *retrieval.SearchOptions
	excludeToolMessages *bool
	recentMessages      *int
	saveAnyInput        *bool
	saveAllInput        *bool
	saveOutput          *bool
}

func mergeOptions(call CallArgs, agentDefaults Defaults) mergedOptions {
	var threadDefaults Defaults
	if call.ThreadDefaults != nil {
		threadDefaults = *call.ThreadDefaults
	}

	out := mergedOptions{
		tools: tools.PickSource(call.Tools, threadDefaults.Tools, agentDefaults.Tools),
		excludeToolMessages: firstNonNilBool(call.ExcludeToolMessages, threadDefaults.ExcludeToolMessages, agentDefaults.ExcludeToolMessages),
		recentMessages:      firstNonNilInt(call.RecentMessages, threadDefaults.RecentMessages, agentDefaults.RecentMessages),
		saveAnyInput:        firstNonNilBool(call.SaveAnyInputMessages, threadDefaults.SaveAnyInputMessages, agentDefaults.SaveAnyInputMessages),
		saveAllInput:        firstNonNilBool(call.SaveAllInputMessages, threadDefaults.SaveAllInputMessages, agentDefaults.SaveAllInputMessages),
		saveOutput:          firstNonNilBool(call.SaveOutputMessages, threadDefaults.SaveOutputMessages, agentDefaults.SaveOutputMessages),
	}
	out.search = mergeSearchOptions(call.ContextOptions, threadDefaults.ContextOptions, agentDefaults.ContextOptions)
	return out
}

// mergeSearchOptions shallow-merges field by field from the lowest to the
// highest priority layer, then drops the result entirely if no Limit was
// ever set by any layer (§4.3: "result is dropped if no limit").
func mergeSearchOptions(call, thread, agentDefault *retrieval.SearchOptions) *retrieval.SearchOptions {
	var merged retrieval.SearchOptions
	hasLimit := false
	apply := func(o *retrieval.SearchOptions) {
		if o == nil {
			return
		}
		if o.TextSearch {
			merged.TextSearch = true
		}
		if o.VectorSearch {
			merged.VectorSearch = true
		}
		if o.Limit != 0 {
			merged.Limit = o.Limit
			hasLimit = true
		}
		if o.MessageRange.Before != 0 || o.MessageRange.After != 0 {
			merged.MessageRange = o.MessageRange
		}
		if o.SearchOtherThreads {
			merged.SearchOtherThreads = true
		}
	}
	apply(agentDefault)
	apply(thread)
	apply(call)
	if !hasLimit {
		return nil
	}
	return &merged
}

func firstNonNilBool(vals ...*bool) *bool {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonNilInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
