package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/pelicandev/pelican/internal/schema"
)

// fakeProvider is a scripted schema.LLMProvider. Stream pops streamScript in
// order; Chat pops chatScript. An exhausted script is an error so tests catch
// unexpected LLM calls.
type fakeProvider struct {
	mu sync.Mutex

	streamScript []streamStep
	chatScript   []chatStep

	streamCalls   int
	chatCalls     int
	streamPrompts []string
}

type streamStep struct {
	text string
	err  error
}

type chatStep struct {
	resp *schema.LLMResponse
	err  error
}

func (f *fakeProvider) DefaultModel() string { return "fake-model" }

func (f *fakeProvider) Stream(_ context.Context, msgs *schema.Messages, _ schema.ChatOptions, onDelta schema.StreamHandler) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamCalls++
	if len(msgs.Items) > 0 {
		f.streamPrompts = append(f.streamPrompts, msgs.Items[len(msgs.Items)-1].Content)
	}
	if len(f.streamScript) == 0 {
		return "", errors.New("fakeProvider: unexpected Stream call")
	}
	step := f.streamScript[0]
	f.streamScript = f.streamScript[1:]
	if step.err != nil {
		return "", step.err
	}
	if onDelta != nil {
		onDelta(step.text)
	}
	return step.text, nil
}

func (f *fakeProvider) Chat(_ context.Context, _ *schema.Messages, _ []schema.ToolDefinition, _ schema.ChatOptions) (*schema.LLMResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	if len(f.chatScript) == 0 {
		return nil, errors.New("fakeProvider: unexpected Chat call")
	}
	step := f.chatScript[0]
	f.chatScript = f.chatScript[1:]
	return step.resp, step.err
}
