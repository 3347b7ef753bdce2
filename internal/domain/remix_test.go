package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNormalizedResultsRebuildsMismatchedSlots(t *testing.T) {
	job := &RemixJob{Prompts: []string{"beach", "forest"}}
	slots := job.NormalizedResults()
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	for i, slot := range slots {
		if slot.Prompt != job.Prompts[i] || slot.Status != SlotStatusQueued {
			t.Fatalf("slot %d = %+v", i, slot)
		}
	}

	job.Results = []RemixSlot{{Prompt: "forest", Status: SlotStatusSucceeded}, {Prompt: "beach", Status: SlotStatusQueued}}
	slots = job.NormalizedResults()
	if slots[0].Prompt != "beach" || slots[0].Status != SlotStatusQueued {
		t.Fatalf("expected skeleton after prompt mismatch, got %+v", slots[0])
	}
}

func TestNormalizedResultsKeepsAlignedSlots(t *testing.T) {
	url := "https://cdn.example.com/a.png"
	job := &RemixJob{
		Prompts: []string{"beach", "forest"},
		Results: []RemixSlot{{Prompt: "beach", Status: SlotStatusSucceeded, ImageURL: &url}, {Prompt: "forest", Status: SlotStatusFailed}},
	}
	slots := job.NormalizedResults()
	if slots[0].Status != SlotStatusSucceeded || slots[0].ImageURL == nil || *slots[0].ImageURL != url {
		t.Fatalf("succeeded slot not preserved: %+v", slots[0])
	}
	*slots[0].ImageURL = "mutated"
	if *job.Results[0].ImageURL != url {
		t.Fatal("NormalizedResults must not alias job results")
	}
}

func TestSlotRestartTakesFreshStart(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	retry := first.Add(time.Minute)
	var slot RemixSlot
	slot.Start(first)
	slot.Fail("boom", first.Add(time.Second))
	slot.Start(retry)
	if !slot.StartedAt.Equal(retry) {
		t.Fatalf("StartedAt = %s, want %s", slot.StartedAt, retry)
	}
	if slot.Error != nil || slot.CompletedAt != nil {
		t.Fatalf("restart should clear error and completion: %+v", slot)
	}
	slot.Succeed("https://x/y.png", first.Add(2*time.Minute))
	if slot.Status != SlotStatusSucceeded || *slot.ImageURL != "https://x/y.png" {
		t.Fatalf("unexpected slot: %+v", slot)
	}
}

func TestFailureSummaryOneLinePerFailedSlot(t *testing.T) {
	msg := "rate limited"
	job := &RemixJob{Results: []RemixSlot{
		{Prompt: "beach", Status: SlotStatusSucceeded},
		{Prompt: "forest", Status: SlotStatusFailed, Error: &msg},
		{Prompt: "space", Status: SlotStatusFailed},
	}}
	got := job.FailureSummary()
	want := "forest: rate limited\nspace: unknown error"
	if got != want {
		t.Fatalf("FailureSummary() = %q, want %q", got, want)
	}
	succeeded, failed := job.Counts()
	if succeeded != 1 || failed != 2 {
		t.Fatalf("Counts() = %d, %d", succeeded, failed)
	}
}

func TestVariantsAppendDeduplicatesByURL(t *testing.T) {
	var v Variants
	if !v.Append("a", "beach") {
		t.Fatal("first append should be accepted")
	}
	if v.Append("a", "forest") {
		t.Fatal("duplicate url should be ignored")
	}
	v.Append("b", "forest")
	if strings.Join(v.URLs, ",") != "a,b" || strings.Join(v.Prompts, ",") != "beach,forest" {
		t.Fatalf("unexpected variants: %+v", v)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	verr := NewValidationError("prompts", "at least one prompt is required")
	verr.Add("imageUrl", "is required")
	verr.Add("prompts", "ignored second reason")
	if !errors.Is(verr, ErrValidation) {
		t.Fatal("ValidationError should match ErrValidation")
	}
	if verr.Error() != "validation failed: imageUrl: is required; prompts: at least one prompt is required" {
		t.Fatalf("unexpected message: %s", verr.Error())
	}
	if (&ValidationError{}).OrNil() != nil {
		t.Fatal("empty ValidationError should be nil")
	}

	upstream := fmt.Errorf("slot 1: %w", &UpstreamError{Provider: "openai", Err: errors.New("503")})
	if !errors.Is(upstream, ErrUpstreamGeneration) {
		t.Fatal("UpstreamError should match ErrUpstreamGeneration")
	}

	cause := errors.New("conn reset")
	perr := &PersistenceError{Op: "finish remix job", Err: cause}
	if !errors.Is(perr, ErrPersistence) || !errors.Is(perr, cause) {
		t.Fatal("PersistenceError should match sentinel and cause")
	}
}

func TestIsStale(t *testing.T) {
	now := time.Now()
	if !IsStale(JobStatusProcessing, now.Add(-time.Hour), now.Add(-time.Minute)) {
		t.Fatal("expected stale processing job")
	}
	if IsStale(JobStatusQueued, now.Add(-time.Hour), now) {
		t.Fatal("queued jobs are never stale")
	}
	if IsStale(JobStatusProcessing, now, time.Time{}) {
		t.Fatal("zero threshold disables staleness")
	}
}
