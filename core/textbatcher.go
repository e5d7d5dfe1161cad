package orchestration

import (
	"strings"
	"sync"
	"time"
)

const defaultDebounceInterval = 250 * time.Millisecond

// textBatcher coalesces streaming response tokens into debounced utterances
// so the embodiment is not asked to synthesize speech for single-word
// fragments. Every delta restarts the debounce timer; the buffer flushes
// once the timer elapses with no new delta.
type textBatcher struct {
	mu sync.Mutex

	debounce time.Duration
	onFlush  func(text string)

	buffer strings.Builder
	timer  *time.Timer
}

func newTextBatcher(debounce time.Duration, onFlush func(text string)) *textBatcher {
	if debounce <= 0 {
		debounce = defaultDebounceInterval
	}
	return &textBatcher{debounce: debounce, onFlush: onFlush}
}

func (b *textBatcher) AddDelta(text string) {
	b.mu.Lock()
	b.buffer.WriteString(text)
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.debounce, b.flushFromTimer)
	b.mu.Unlock()
}

// ForceFlush flushes immediately regardless of timer state. Called when the
// model signals response completion.
func (b *textBatcher) ForceFlush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	text := b.buffer.String()
	b.buffer.Reset()
	onFlush := b.onFlush
	b.mu.Unlock()

	if text != "" && onFlush != nil {
		onFlush(text)
	}
}

// Interrupt discards buffered text without flushing. The timer is stopped
// before the buffer is cleared; a timer callback that already fired observes
// an empty buffer and flushes nothing.
func (b *textBatcher) Interrupt() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.buffer.Reset()
	b.mu.Unlock()
}

func (b *textBatcher) Buffered() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func (b *textBatcher) flushFromTimer() {
	b.mu.Lock()
	text := b.buffer.String()
	b.buffer.Reset()
	b.timer = nil
	onFlush := b.onFlush
	b.mu.Unlock()

	if text != "" && onFlush != nil {
		onFlush(text)
	}
}
