package usecase

import (
	"context"
	"errors"
	"testing"

	"tambourine/internal/domain"
)

func TestResultFinalizerCopiesText(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	clipboard := &fakeClipboard{}
	f := newResultFinalizer(clipboard, events)

	result := f.Finalize(context.Background(), "Ship it.")
	if !result.Copied || clipboard.lastText != "Ship it." {
		t.Fatalf("expected text copied, got %+v (clipboard %q)", result, clipboard.lastText)
	}
	if finals := events.snapshotFinals(); len(finals) != 1 || finals[0] != result {
		t.Fatalf("unexpected final events: %+v", finals)
	}
}

func TestResultFinalizerClipboardFailure(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	f := newResultFinalizer(&fakeClipboard{err: errors.New("clipboard")}, events)

	result := f.Finalize(context.Background(), "text")
	if result.Copied {
		t.Fatalf("expected copied=false")
	}
	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeClipboard {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestResultFinalizerSkipsClipboardForBlankText(t *testing.T) {
	t.Parallel()

	clipboard := &fakeClipboard{lastText: "previous"}
	events := &fakeEventSink{}
	f := newResultFinalizer(clipboard, events)

	result := f.Finalize(context.Background(), "   ")
	if result.Copied || clipboard.lastText != "previous" {
		t.Fatalf("blank text must not overwrite the clipboard")
	}
	if len(events.snapshotFinals()) != 1 {
		t.Fatalf("expected the blank result to be reported")
	}
}
