package usecase

import (
	"context"
	"strings"

	"tambourine/internal/domain"
	"tambourine/internal/ports"
)

type resultFinalizer struct {
	clipboard ports.Clipboard
	events    ports.EventSink
}

func newResultFinalizer(clipboard ports.Clipboard, events ports.EventSink) resultFinalizer {
	return resultFinalizer{clipboard: clipboard, events: events}
}

// Finalize copies the cleaned text and reports it. A clipboard failure still delivers the text.
func (f resultFinalizer) Finalize(ctx context.Context, text string) domain.DictationResult {
	result := domain.DictationResult{Text: text}
	if strings.TrimSpace(text) == "" {
		f.events.FinalTranscript(result)
		return result
	}

	if f.clipboard != nil {
		if err := f.clipboard.SetText(ctx, text); err != nil {
			f.events.SessionError(domain.ErrorCodeClipboard, "text ready but clipboard write failed")
		} else {
			result.Copied = true
		}
	}

	f.events.FinalTranscript(result)
	return result
}
