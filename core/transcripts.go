package orchestration

import (
	"strings"
	"sync"
)

// transcripts holds the append-only text accumulators for one conversation:
// the in-flight model response, everything the user said, and everything the
// assistant said. They reset on conversation start and are never truncated
// mid-conversation except through Clear.
type transcripts struct {
	mu sync.Mutex

	currentResponse strings.Builder
	user            strings.Builder
	assistant       strings.Builder
}

func (t *transcripts) AppendResponseDelta(delta string) {
	t.mu.Lock()
	t.currentResponse.WriteString(delta)
	t.mu.Unlock()
}

// FinishResponse moves the current response into the assistant accumulator
// and returns it.
func (t *transcripts) FinishResponse() string {
	t.mu.Lock()
	response := t.currentResponse.String()
	t.currentResponse.Reset()
	if response != "" {
		if t.assistant.Len() > 0 {
			t.assistant.WriteString("\n")
		}
		t.assistant.WriteString(response)
	}
	t.mu.Unlock()
	return response
}

// DropResponse discards the in-flight response, used on interruption.
func (t *transcripts) DropResponse() {
	t.mu.Lock()
	t.currentResponse.Reset()
	t.mu.Unlock()
}

func (t *transcripts) AppendUser(text string) {
	t.mu.Lock()
	if t.user.Len() > 0 {
		t.user.WriteString("\n")
	}
	t.user.WriteString(text)
	t.mu.Unlock()
}

func (t *transcripts) CurrentResponse() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentResponse.String()
}

func (t *transcripts) User() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.user.String()
}

func (t *transcripts) Assistant() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.assistant.String()
}

func (t *transcripts) Clear() {
	t.mu.Lock()
	t.currentResponse.Reset()
	t.user.Reset()
	t.assistant.Reset()
	t.mu.Unlock()
}
