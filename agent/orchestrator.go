// Copyright 2025 Solenne Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/tools"

	"github.com/solenne/docent/ai"
	"github.com/solenne/docent/cache"
	"github.com/solenne/docent/core"
)

// Default loop bounds.
const (
	// DefaultMaxIterations caps reasoning steps per question.
	DefaultMaxIterations = 5
	// DefaultMaxDuration caps wall-clock time per question.
	DefaultMaxDuration = 30 * time.Second
)

// ModelUsed values for answers that bypassed the completion model.
const (
	ModelConversational = "conversational"
	ModelCache          = "cache"
)

// cacheWriteTimeout bounds the detached cache write that follows a
// computed answer.
const cacheWriteTimeout = 10 * time.Second

// DegradedAnswerNotice is returned when the loop exhausts its budget
// without a final answer or any usable observation.
const DegradedAnswerNotice = "I could not complete the reasoning for this question within the allotted budget. Try rephrasing or asking something more specific."

// AnswerCache is the slice of the semantic cache the orchestrator uses.
// *cache.Cache satisfies it.
type AnswerCache interface {
	Get(ctx context.Context, query string) (*cache.Hit, error)
	Set(ctx context.Context, query, answer string, metadata map[string]string) error
}

// Answer is the result of one Ask call.
type Answer struct {
	// Answer is the final answer text. Never empty.
	Answer string
	// CacheHit reports whether the answer came from the semantic cache.
	CacheHit bool
	// ProcessingTime is how long the call took end to end, excluding the
	// detached cache write.
	ProcessingTime time.Duration
	// ModelUsed names what produced the answer: the configured model
	// name for computed answers, ModelCache for cache hits, and
	// ModelConversational for greeting replies.
	ModelUsed string
	// Steps is the reasoning transcript for computed answers. Empty for
	// cache hits and greetings.
	Steps []core.AgentStep
}

// Orchestrator drives the bounded reasoning loop. One instance serves
// concurrent Ask calls; each call owns its own loop state.
type Orchestrator struct {
	completer ai.Completer
	cache     AnswerCache
	tools     []tools.Tool
	toolIndex map[string]tools.Tool

	maxIterations int
	maxDuration   time.Duration
	greetings     []string
	greetingReply string
	modelName     string
	logger        *slog.Logger

	writePool *ants.Pool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithCache sets the semantic answer cache consulted before the loop
// and written after it. Without one every question runs the loop.
func WithCache(answerCache AnswerCache) Option {
	return func(o *Orchestrator) error {
		o.cache = answerCache
		return nil
	}
}

// WithMaxIterations caps reasoning steps per question.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("maxIterations must be positive, got %d", n)
		}
		o.maxIterations = n
		return nil
	}
}

// WithMaxDuration caps wall-clock time per question.
func WithMaxDuration(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d <= 0 {
			return fmt.Errorf("maxDuration must be positive, got %v", d)
		}
		o.maxDuration = d
		return nil
	}
}

// WithGreetings replaces the phrases answered by the canned reply.
func WithGreetings(phrases ...string) Option {
	return func(o *Orchestrator) error {
		greetings := make([]string, 0, len(phrases))
		for _, phrase := range phrases {
			phrase = strings.ToLower(strings.TrimSpace(phrase))
			if phrase != "" {
				greetings = append(greetings, phrase)
			}
		}
		o.greetings = greetings
		return nil
	}
}

// WithGreetingReply sets the canned reply for conversational inputs.
func WithGreetingReply(reply string) Option {
	return func(o *Orchestrator) error {
		if reply == "" {
			return fmt.Errorf("greeting reply must not be empty")
		}
		o.greetingReply = reply
		return nil
	}
}

// WithModelName sets the name reported in Answer.ModelUsed for computed
// answers and recorded in cache entry metadata.
func WithModelName(name string) Option {
	return func(o *Orchestrator) error {
		o.modelName = name
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// New creates an orchestrator over a completion model and its tools.
// Tool order in toolset is the order presented to the model, so put the
// retrieval tool first.
func New(completer ai.Completer, toolset []tools.Tool, opts ...Option) (*Orchestrator, error) {
	if completer == nil {
		return nil, ErrNoCompleter
	}

	o := &Orchestrator{
		completer:     completer,
		tools:         toolset,
		maxIterations: DefaultMaxIterations,
		maxDuration:   DefaultMaxDuration,
		greetings:     slices.Clone(defaultGreetings),
		greetingReply: DefaultGreetingReply,
		logger:        slog.Default().With("component", "orchestrator"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	o.toolIndex = make(map[string]tools.Tool, len(toolset))
	for _, tool := range toolset {
		o.toolIndex[tool.Name()] = tool
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	writePool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create write pool: %w", err)
	}
	o.writePool = writePool

	return o, nil
}

// Ask answers one question. Pipeline: greeting shortcut, cache check,
// reasoning loop, detached cache write. The loop's failure modes all
// degrade to answer strings, so after validation Ask only fails when the
// caller's context is already unusable at the cache boundary.
func (o *Orchestrator) Ask(ctx context.Context, question string, history []core.ConversationTurn) (*Answer, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if isConversational(question, o.greetings) {
		o.logger.Debug("conversational shortcut", "question", question)
		return &Answer{
			Answer:         o.greetingReply,
			ProcessingTime: time.Since(start),
			ModelUsed:      ModelConversational,
		}, nil
	}

	if o.cache != nil {
		hit, err := o.cache.Get(ctx, question)
		if err != nil {
			o.logger.Warn("cache lookup failed, continuing without it", "err", err)
		} else if hit != nil {
			return &Answer{
				Answer:         hit.Answer,
				CacheHit:       true,
				ProcessingTime: time.Since(start),
				ModelUsed:      ModelCache,
			}, nil
		}
	}

	answer, steps := o.runLoop(ctx, question, history)

	if o.cache != nil {
		o.writeBack(question, answer)
	}

	return &Answer{
		Answer:         answer,
		ProcessingTime: time.Since(start),
		ModelUsed:      o.modelName,
		Steps:          steps,
	}, nil
}

// runLoop drives Thought/Action/Observation iterations until the model
// produces a final answer or a cap forces one. It never fails: model
// errors, parse errors, and exhaustion all end in an answer string.
func (o *Orchestrator) runLoop(ctx context.Context, question string, history []core.ConversationTurn) (string, []core.AgentStep) {
	deadline := time.Now().Add(o.maxDuration)
	loopCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	systemPrompt := buildSystemPrompt(o.tools)
	transcript := formatHistory(history)

	var steps []core.AgentStep
	var lastObservation string

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		if time.Now().After(deadline) {
			o.logger.Warn("wall clock budget exhausted", "iteration", iteration)
			return o.degradedAnswer(lastObservation), steps
		}

		prompt := buildUserPrompt(transcript, question, steps)
		o.logger.Debug("reasoning step",
			"iteration", iteration,
			"promptTokens", core.CountTokens(prompt))

		output, err := o.completer.Complete(loopCtx, systemPrompt, prompt)
		if err != nil {
			o.logger.Error("completion failed", "iteration", iteration, "err", err)
			return o.degradedAnswer(lastObservation), steps
		}

		parsedReply, err := parseReply(output)
		if err != nil {
			o.logger.Warn("unparseable model output", "iteration", iteration, "err", err)
			steps = append(steps, core.AgentStep{Observation: correctiveObservation})
			continue
		}

		if parsedReply.isFinal {
			if parsedReply.thought != "" {
				steps = append(steps, core.AgentStep{Thought: parsedReply.thought})
			}
			o.logger.Info("final answer produced", "iterations", iteration)
			return parsedReply.finalAnswer, steps
		}

		observation := o.invokeTool(loopCtx, parsedReply.action, parsedReply.actionInput)
		lastObservation = observation
		steps = append(steps, core.AgentStep{
			Thought:     parsedReply.thought,
			Action:      parsedReply.action,
			ActionInput: parsedReply.actionInput,
			Observation: observation,
		})
	}

	o.logger.Warn("iteration budget exhausted", "maxIterations", o.maxIterations)
	return o.degradedAnswer(lastObservation), steps
}

// invokeTool runs one tool, converting unknown names and failures into
// observations so the loop keeps moving.
func (o *Orchestrator) invokeTool(ctx context.Context, name, input string) string {
	tool, ok := o.toolIndex[name]
	if !ok {
		o.logger.Warn("unknown tool requested", "tool", name)
		return fmt.Sprintf("Unknown tool %q. Available tools: %s.",
			name, strings.Join(o.toolNames(), ", "))
	}

	observation, err := tool.Call(ctx, input)
	if err != nil {
		o.logger.Warn("tool call failed", "tool", name, "err", err)
		return fmt.Sprintf("Tool %s failed: %v", name, err)
	}
	if strings.TrimSpace(observation) == "" {
		return "The tool returned no output."
	}
	return observation
}

// degradedAnswer builds the forced answer for an exhausted loop from the
// last tool observation, or the fixed notice when there is none.
func (o *Orchestrator) degradedAnswer(lastObservation string) string {
	if strings.TrimSpace(lastObservation) == "" {
		return DegradedAnswerNotice
	}
	return "I ran out of reasoning budget before reaching a final answer. The most relevant information found was:\n\n" + lastObservation
}

// writeBack schedules a detached cache write for a computed answer. The
// response path never waits on it; scheduling and write failures are
// visible only in logs.
func (o *Orchestrator) writeBack(question, answer string) {
	var metadata map[string]string
	if o.modelName != "" {
		metadata = map[string]string{"model": o.modelName}
	}

	err := o.writePool.Submit(func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		if err := o.cache.Set(writeCtx, question, answer, metadata); err != nil {
			o.logger.Warn("detached cache write failed", "err", err)
		}
	})
	if err != nil {
		o.logger.Warn("cache write not scheduled", "err", err)
	}
}

func (o *Orchestrator) toolNames() []string {
	names := make([]string, 0, len(o.tools))
	for _, tool := range o.tools {
		names = append(names, tool.Name())
	}
	return names
}

// Close releases the background write pool. Pending cache writes may be
// dropped.
func (o *Orchestrator) Close() error {
	o.writePool.Release()
	return nil
}
