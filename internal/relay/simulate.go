package relay

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

var mockTemplates = map[string]string{
	"general":   `This is a general response to "%s". Currently using the general assistant mode.`,
	"creative":  `🎨 Creative mode response to "%s": Let me answer this question in an imaginative way...`,
	"technical": `⚙️ Technical mode response to "%s": Analyzing this question from a technical perspective...`,
	"deepseek":  `🤔 DeepSeek analysis of "%s": Let me answer this with logical reasoning...`,
}

// MockResponse is the canned answer for mode; modes without a template use
// the general one.
func MockResponse(mode, prompt string) string {
	tmpl, ok := mockTemplates[mode]
	if !ok {
		tmpl = mockTemplates["general"]
	}
	return fmt.Sprintf(tmpl, prompt)
}

// newPacer yields one token per delay. The initial burst token is spent up
// front so the first rune waits like every other one.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	l := rate.NewLimiter(rate.Every(delay), 1)
	l.Allow()
	return l
}

// simulate emits the canned answer rune by rune, then Done. It stops as soon
// as ctx ends or the consumer stops reading.
func (s *service) simulate(ctx context.Context, mode, prompt string, send func(Event) bool) {
	pacer := newPacer(s.opts.MockCharDelay)

	for _, r := range MockResponse(mode, prompt) {
		if err := pacer.Wait(ctx); err != nil {
			return
		}
		if !send(contentEvent(string(r))) {
			return
		}
	}

	send(doneEvent(mode, s.opts.Now()))
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
