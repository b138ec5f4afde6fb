package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/intelligencedev/agentcore/internal/apperr"
	"github.com/intelligencedev/agentcore/internal/llm"
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/observability"
	"github.com/intelligencedev/agentcore/internal/retrieval"
	"github.com/intelligencedev/agentcore/internal/storage"
	"github.com/intelligencedev/agentcore/internal/tools"
)

// preambleResult is what _saveMessagesAndFetchContext produces (§4.6).
type preambleResult struct {
	model      string
	system     string
	maxRetries int
	messages   []message.CoreMessage // context ++ input, ready for the provider
	messageID  string                // the saved prompt's id, "" if nothing was saved
	opts       mergedOptions
}

// preamble implements §4.6's shared preamble: merge options, normalize the
// input, fetch context (C3), and optionally save the prompt pending (C4).
func (a *Agent) preamble(ctx context.Context, call CallArgs) (preambleResult, error) {
	opts := mergeOptions(call, a.Defaults)

	if call.PromptMessageID != "" && (call.Prompt != nil || len(call.Messages) > 0) {
		return preambleResult{}, apperr.InvalidArgumentf("agent.preamble", "promptMessageId is exclusive with prompt/messages")
	}

	var inputMsgs []message.CoreMessage
	if call.PromptMessageID == "" {
		in, err := message.PromptOrMessagesToCoreMessages(message.PromptOrMessagesInput{
			Prompt: call.Prompt, Messages: call.Messages, System: call.System,
		})
		if err != nil {
			return preambleResult{}, err
		}
		inputMsgs = in
	}

	recentDefault := opts.recentMessages
	contextDocs, err := a.Retriever.Fetch(ctx, retrieval.Input{
		UserID:                    call.UserID,
		ThreadID:                  call.ThreadID,
		Messages:                  inputMsgs,
		UpToAndIncludingMessageID: call.PromptMessageID,
		RecentMessages:            recentDefault,
		ExcludeToolMessages:       opts.excludeToolMessages,
		Search:                    opts.search,
		Scope:                     call.Scope,
	})
	if err != nil {
		return preambleResult{}, err
	}
	contextMsgs := make([]message.CoreMessage, len(contextDocs))
	for i, d := range contextDocs {
		contextMsgs[i] = d.Message
	}

	messageID := call.PromptMessageID
	if call.ThreadID != "" && len(inputMsgs) > 0 && boolOr(opts.saveAnyInput, true) {
		toSave := inputMsgs
		if !boolOr(opts.saveAllInput, false) {
			toSave = inputMsgs[len(inputMsgs)-1:]
		}
		emb, err := a.embedFor(ctx, toSave)
		if err != nil {
			return preambleResult{}, err
		}
		res, err := a.Store.AddMessages(ctx, storage.AddMessagesInput{
			ThreadID:         call.ThreadID,
			UserID:           call.UserID,
			AgentName:        call.AgentName,
			Embeddings:       emb,
			Messages:         toSave,
			Pending:          true,
			FailPendingSteps: true,
		})
		if err != nil {
			return preambleResult{}, apperr.Storage("agent.preamble", err)
		}
		messageID = res.LastMessageID
		a.indexEmbeddings(ctx, res.MessageIDs, emb)
	}

	model := call.Model
	if model == "" {
		model = a.Chat
	}
	system := a.Instructions
	if call.System != nil {
		system = *call.System
	}
	maxRetries := call.MaxRetries
	if maxRetries == 0 {
		maxRetries = a.MaxRetries
	}

	return preambleResult{
		model:      model,
		system:     system,
		maxRetries: maxRetries,
		messages:   append(contextMsgs, inputMsgs...),
		messageID:  messageID,
		opts:       opts,
	}, nil
}

// indexEmbeddings best-effort upserts the input messages' vectors into the
// retriever's vector index (§11 domain stack). Step output isn't indexed
// here: AddStep doesn't return the ids it assigned, only input messages
// saved by preamble get a known id to key the upsert on.
func (a *Agent) indexEmbeddings(ctx context.Context, ids []string, emb *storage.Embedding) {
	if a.Retriever == nil || emb == nil {
		return
	}
	log := observability.LoggerWithTrace(ctx)
	for i, id := range ids {
		if i >= len(emb.Vectors) || emb.Vectors[i] == nil {
			continue
		}
		if err := a.Retriever.IndexMessage(ctx, id, *emb.Vectors[i]); err != nil {
			log.Warn().Err(err).Str("message_id", id).Msg("vector_index_upsert_failed")
		}
	}
}

func (a *Agent) embedFor(ctx context.Context, msgs []message.CoreMessage) (*storage.Embedding, error) {
	if a.Embedder == nil {
		return nil, nil
	}
	emb, err := a.Embedder.EmbedMessages(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

// rollbackOnce guards I5's "rollback fires at most once per prompt message"
// across every error return of a call (provider, embedding, step save and
// object extraction failures all route through do) (§9).
type rollbackOnce struct {
	once      sync.Once
	store     storage.Store
	messageID string
}

func (r *rollbackOnce) do(cause error) {
	if r.messageID == "" || cause == nil {
		return
	}
	r.once.Do(func() {
		_ = r.store.RollbackMessage(context.Background(), r.messageID, cause.Error())
	})
}

type namedProvider interface{ ProviderName() string }

func providerName(p llm.Provider) string {
	if np, ok := p.(namedProvider); ok {
		return np.ProviderName()
	}
	return ""
}

func finishReasonFor(out llm.Message) string {
	if len(out.ToolCalls) > 0 {
		return "tool-calls"
	}
	return "stop"
}

// toMessageUsage carries a provider's token accounting onto the step record
// consumed by the usage handler (§4.6, I5).
func toMessageUsage(u llm.Usage) message.Usage {
	return message.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

// registryFor builds the per-call tool registry from the merged tool source
// (§4.5), binding ctx-accepting tools to the call's identity.
func (a *Agent) registryFor(picked []tools.Tool, call CallArgs, messageID string) tools.Registry {
	reg := tools.NewRegistry()
	bound := tools.Bind(picked, tools.CallCtx{
		HostCtx:   context.Background(),
		UserID:    call.UserID,
		ThreadID:  call.ThreadID,
		MessageID: messageID,
	})
	for _, t := range bound {
		reg.Register(t)
	}
	return reg
}

// dispatchTools executes every tool call in parallel (bounded by the number
// of calls; there's no cross-call resource to protect, unlike persistence)
// and returns one CoreMessage per result, in call order.
func (a *Agent) dispatchTools(ctx context.Context, reg tools.Registry, calls []llm.ToolCall) []message.CoreMessage {
	out := make([]message.CoreMessage, len(calls))
	var wg sync.WaitGroup
	for i, tc := range calls {
		i, tc := i, tc
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := reg.Dispatch(ctx, tc.Name, tc.Args)
			if err != nil {
				payload, _ = json.Marshal(map[string]any{"ok": false, "error": err.Error()})
			}
			out[i] = message.CoreMessage{Role: message.RoleTool, Parts: []message.Part{
				{Type: message.PartToolResult, ToolCallID: tc.ID, ToolName: tc.Name, Result: payload},
			}}
		}()
	}
	wg.Wait()
	return out
}

// GenerateText implements §4.6's generateText: preamble, step loop with
// per-step persistence and usage metering, then commit or roll back.
func (a *Agent) GenerateText(ctx context.Context, call CallArgs) (*GenerateTextResult, error) {
	log := observability.LoggerWithTrace(ctx)

	pre, err := a.preamble(ctx, call)
	if err != nil {
		return nil, err
	}
	rb := &rollbackOnce{store: a.Store, messageID: pre.messageID}

	maxSteps := call.MaxSteps
	if maxSteps == 0 {
		maxSteps = a.MaxSteps
	}
	if maxSteps == 0 {
		maxSteps = 1
	}

	registry := a.registryFor(pre.opts.tools, call, pre.messageID)
	llmMsgs := toLLMMessages(pre.system, pre.messages)

	var allSteps []message.Step
	var finalText, finishReason string

	for step := 0; step < maxSteps; step++ {
		out, err := a.Provider.Chat(ctx, llmMsgs, registry.Schemas(), pre.model)
		if err != nil {
			perr := apperr.Provider("agent.GenerateText", err)
			rb.do(perr)
			return nil, perr
		}
		llmMsgs = append(llmMsgs, out)

		stepMsgs := []message.CoreMessage{fromLLMMessage(out)}
		if len(out.ToolCalls) > 0 {
			toolMsgs := a.dispatchTools(ctx, registry, out.ToolCalls)
			for _, tm := range toolMsgs {
				llmMsgs = append(llmMsgs, toLLMMessage(tm)...)
			}
			stepMsgs = append(stepMsgs, toolMsgs...)
		} else {
			finalText = out.Content
			finishReason = "stop"
		}

		stepRecord := message.Step{FinishReason: finishReasonFor(out), NewMessages: stepMsgs, Usage: toMessageUsage(out.Usage)}
		allSteps = append(allSteps, stepRecord)

		if call.ThreadID != "" && pre.messageID != "" && boolOr(pre.opts.saveOutput, true) {
			emb, err := a.embedFor(ctx, stepMsgs)
			if err != nil {
				rb.do(err)
				return nil, err
			}
			if err := a.Store.AddStep(ctx, storage.AddStepInput{
				ThreadID: call.ThreadID, UserID: call.UserID, PromptMessageID: pre.messageID,
				Step:     storage.StepRecord{FinishReason: stepRecord.FinishReason, Messages: stepMsgs, Embeddings: emb},
				Provider: providerName(a.Provider), Model: pre.model,
			}); err != nil {
				serr := apperr.Storage("agent.GenerateText", err)
				rb.do(serr)
				return nil, serr
			}
		}
		if a.OnUsage != nil && stepRecord.Usage.TotalTokens > 0 {
			a.OnUsage(ctx, providerName(a.Provider), pre.model, stepRecord.Usage)
		}
		if len(out.ToolCalls) == 0 {
			break
		}
	}

	if call.ThreadID != "" && pre.messageID != "" {
		if err := a.Store.CommitMessage(ctx, pre.messageID); err != nil {
			return nil, apperr.Storage("agent.GenerateText", err)
		}
	}

	log.Debug().Str("message_id", pre.messageID).Int("steps", len(allSteps)).Msg("generate_text_complete")
	return &GenerateTextResult{MessageID: pre.messageID, Text: finalText, Steps: allSteps, FinishReason: finishReason}, nil
}

// StreamText implements §4.6's streamText: same preamble/step loop as
// GenerateText, but each step is driven through ChatStream with OnChunk
// passthrough and an onError path that rolls back at most once (I5, §9).
func (a *Agent) StreamText(ctx context.Context, call CallArgs, h StreamHandlers) (*GenerateTextResult, error) {
	pre, err := a.preamble(ctx, call)
	if err != nil {
		return nil, err
	}
	rb := &rollbackOnce{store: a.Store, messageID: pre.messageID}

	maxSteps := call.MaxSteps
	if maxSteps == 0 {
		maxSteps = a.MaxSteps
	}
	if maxSteps == 0 {
		maxSteps = 1
	}

	registry := a.registryFor(pre.opts.tools, call, pre.messageID)
	llmMsgs := toLLMMessages(pre.system, pre.messages)

	var allSteps []message.Step
	var finalText, finishReason string

	for step := 0; step < maxSteps; step++ {
		var content string
		var calls []llm.ToolCall
		handler := &streamCollector{
			onDelta: func(d string) {
				content += d
				if h.OnChunk != nil {
					h.OnChunk(d)
				}
			},
			onToolCall: func(tc llm.ToolCall) { calls = append(calls, tc) },
		}

		if err := a.Provider.ChatStream(ctx, llmMsgs, registry.Schemas(), pre.model, handler); err != nil {
			perr := apperr.Provider("agent.StreamText", err)
			if h.OnError != nil {
				h.OnError(perr)
			}
			rb.do(perr)
			return nil, perr
		}

		out := llm.Message{Role: "assistant", Content: content, ToolCalls: calls, Usage: handler.usage}
		llmMsgs = append(llmMsgs, out)

		stepMsgs := []message.CoreMessage{fromLLMMessage(out)}
		if len(calls) > 0 {
			toolMsgs := a.dispatchTools(ctx, registry, calls)
			for _, tm := range toolMsgs {
				llmMsgs = append(llmMsgs, toLLMMessage(tm)...)
			}
			stepMsgs = append(stepMsgs, toolMsgs...)
		} else {
			finalText = content
			finishReason = "stop"
		}

		stepRecord := message.Step{FinishReason: finishReasonFor(out), NewMessages: stepMsgs, Usage: toMessageUsage(out.Usage)}
		allSteps = append(allSteps, stepRecord)

		if call.ThreadID != "" && pre.messageID != "" && boolOr(pre.opts.saveOutput, true) {
			emb, err := a.embedFor(ctx, stepMsgs)
			if err != nil {
				rb.do(err)
				return nil, err
			}
			if err := a.Store.AddStep(ctx, storage.AddStepInput{
				ThreadID: call.ThreadID, UserID: call.UserID, PromptMessageID: pre.messageID,
				Step:     storage.StepRecord{FinishReason: stepRecord.FinishReason, Messages: stepMsgs, Embeddings: emb},
				Provider: providerName(a.Provider), Model: pre.model,
			}); err != nil {
				serr := apperr.Storage("agent.StreamText", err)
				rb.do(serr)
				return nil, serr
			}
		}
		if a.OnUsage != nil && stepRecord.Usage.TotalTokens > 0 {
			a.OnUsage(ctx, providerName(a.Provider), pre.model, stepRecord.Usage)
		}
		if len(calls) == 0 {
			break
		}
	}

	if call.ThreadID != "" && pre.messageID != "" {
		if err := a.Store.CommitMessage(ctx, pre.messageID); err != nil {
			return nil, apperr.Storage("agent.StreamText", err)
		}
	}

	return &GenerateTextResult{MessageID: pre.messageID, Text: finalText, Steps: allSteps, FinishReason: finishReason}, nil
}

const objectToolName = "__emit_result"

// GenerateObject implements §4.6's generateObject by forcing the provider to
// call a synthetic single-purpose tool shaped like the target schema — the
// same mechanism real providers use for JSON-schema-constrained output —
// then lifting its arguments out as the result object (§4.1 serializeObjectResult).
func (a *Agent) GenerateObject(ctx context.Context, call CallArgs) (*ObjectGenerateResult, error) {
	pre, err := a.preamble(ctx, call)
	if err != nil {
		return nil, err
	}
	rb := &rollbackOnce{store: a.Store, messageID: pre.messageID}

	schemaTool := llm.ToolSchema{Name: objectToolName, Description: "Emit the final structured result.", Parameters: call.ObjectSchema}
	llmMsgs := toLLMMessages(pre.system, pre.messages)

	out, err := a.Provider.Chat(ctx, llmMsgs, []llm.ToolSchema{schemaTool}, pre.model)
	if err != nil {
		perr := apperr.Provider("agent.GenerateObject", err)
		rb.do(perr)
		return nil, perr
	}

	object, err := extractObject(out)
	if err != nil {
		rb.do(err)
		return nil, err
	}

	step := message.SerializeObjectResult(message.ObjectResult{Object: object, Usage: toMessageUsage(out.Usage)}, message.StepAttribution{Provider: providerName(a.Provider), Model: pre.model})
	if call.ThreadID != "" && pre.messageID != "" && boolOr(pre.opts.saveOutput, true) {
		emb, err := a.embedFor(ctx, step.NewMessages)
		if err != nil {
			rb.do(err)
			return nil, err
		}
		if err := a.Store.AddStep(ctx, storage.AddStepInput{
			ThreadID: call.ThreadID, UserID: call.UserID, PromptMessageID: pre.messageID,
			Step:     storage.StepRecord{FinishReason: step.FinishReason, Messages: step.NewMessages, Embeddings: emb},
			Provider: providerName(a.Provider), Model: pre.model,
		}); err != nil {
			serr := apperr.Storage("agent.GenerateObject", err)
			rb.do(serr)
			return nil, serr
		}
	}
	if a.OnUsage != nil && step.Usage.TotalTokens > 0 {
		a.OnUsage(ctx, providerName(a.Provider), pre.model, step.Usage)
	}
	if call.ThreadID != "" && pre.messageID != "" {
		if err := a.Store.CommitMessage(ctx, pre.messageID); err != nil {
			return nil, apperr.Storage("agent.GenerateObject", err)
		}
	}

	return &ObjectGenerateResult{MessageID: pre.messageID, Object: object}, nil
}

// StreamObject implements §4.6's streamObject: stream until the model emits
// the synthetic result tool call, then persist and meter exactly once on
// finish (onFinish), mirroring StreamText's onError rollback guard.
func (a *Agent) StreamObject(ctx context.Context, call CallArgs, h StreamHandlers) (*ObjectGenerateResult, error) {
	pre, err := a.preamble(ctx, call)
	if err != nil {
		return nil, err
	}
	rb := &rollbackOnce{store: a.Store, messageID: pre.messageID}

	schemaTool := llm.ToolSchema{Name: objectToolName, Description: "Emit the final structured result.", Parameters: call.ObjectSchema}
	llmMsgs := toLLMMessages(pre.system, pre.messages)

	var content string
	var calls []llm.ToolCall
	handler := &streamCollector{
		onDelta: func(d string) {
			content += d
			if h.OnChunk != nil {
				h.OnChunk(d)
			}
		},
		onToolCall: func(tc llm.ToolCall) { calls = append(calls, tc) },
	}

	if err := a.Provider.ChatStream(ctx, llmMsgs, []llm.ToolSchema{schemaTool}, pre.model, handler); err != nil {
		perr := apperr.Provider("agent.StreamObject", err)
		if h.OnError != nil {
			h.OnError(perr)
		}
		rb.do(perr)
		return nil, perr
	}

	object, err := extractObject(llm.Message{Content: content, ToolCalls: calls})
	if err != nil {
		rb.do(err)
		return nil, err
	}

	step := message.SerializeObjectResult(message.ObjectResult{Object: object, Usage: toMessageUsage(handler.usage)}, message.StepAttribution{Provider: providerName(a.Provider), Model: pre.model})
	if call.ThreadID != "" && pre.messageID != "" && boolOr(pre.opts.saveOutput, true) {
		emb, err := a.embedFor(ctx, step.NewMessages)
		if err != nil {
			rb.do(err)
			return nil, err
		}
		if err := a.Store.AddStep(ctx, storage.AddStepInput{
			ThreadID: call.ThreadID, UserID: call.UserID, PromptMessageID: pre.messageID,
			Step:     storage.StepRecord{FinishReason: step.FinishReason, Messages: step.NewMessages, Embeddings: emb},
			Provider: providerName(a.Provider), Model: pre.model,
		}); err != nil {
			serr := apperr.Storage("agent.StreamObject", err)
			rb.do(serr)
			return nil, serr
		}
	}
	if a.OnUsage != nil && step.Usage.TotalTokens > 0 {
		a.OnUsage(ctx, providerName(a.Provider), pre.model, step.Usage)
	}
	if call.ThreadID != "" && pre.messageID != "" {
		if err := a.Store.CommitMessage(ctx, pre.messageID); err != nil {
			return nil, apperr.Storage("agent.StreamObject", err)
		}
	}

	return &ObjectGenerateResult{MessageID: pre.messageID, Object: object}, nil
}

func extractObject(out llm.Message) (json.RawMessage, error) {
	for _, tc := range out.ToolCalls {
		if tc.Name == objectToolName {
			return json.RawMessage(tc.Args), nil
		}
	}
	if json.Valid([]byte(out.Content)) {
		return json.RawMessage(out.Content), nil
	}
	return nil, apperr.Provider("agent.GenerateObject", fmt.Errorf("provider did not emit a structured result"))
}

// streamCollector implements llm.StreamHandler, forwarding deltas and tool
// calls to closures. Thought summaries/signatures are accepted but not
// surfaced — the orchestration core has no notion of extended thinking.
type streamCollector struct {
	onDelta    func(string)
	onToolCall func(llm.ToolCall)
	usage      llm.Usage
}

func (s *streamCollector) OnDelta(content string)         { s.onDelta(content) }
func (s *streamCollector) OnToolCall(tc llm.ToolCall)      { s.onToolCall(tc) }
func (s *streamCollector) OnImage(img llm.GeneratedImage)  {}
func (s *streamCollector) OnThoughtSummary(summary string) {}
func (s *streamCollector) OnThoughtSignature(sig string)   {}
func (s *streamCollector) OnUsage(u llm.Usage)             { s.usage = u }
