package domain

import (
	"strings"
	"time"
)

// MaxRemixPrompts caps the number of scene prompts per remix job.
const MaxRemixPrompts = 10

// SlotStatus is the state of a single remix result slot.
type SlotStatus string

const (
	SlotStatusQueued     SlotStatus = "queued"
	SlotStatusProcessing SlotStatus = "processing"
	SlotStatusSucceeded  SlotStatus = "succeeded"
	SlotStatusFailed     SlotStatus = "failed"
)

// RemixSlot is the outcome of one prompt. Slot order matches prompt order.
type RemixSlot struct {
	Prompt      string     `json:"prompt"`
	Status      SlotStatus `json:"status"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Start marks the slot as processing for a new attempt.
func (s *RemixSlot) Start(now time.Time) {
	s.Status = SlotStatusProcessing
	s.Error = nil
	s.CompletedAt = nil
	s.StartedAt = timePtr(now)
}

// Succeed records the generated image url.
func (s *RemixSlot) Succeed(url string, now time.Time) {
	s.Status = SlotStatusSucceeded
	s.ImageURL = stringPtr(url)
	s.Error = nil
	s.CompletedAt = timePtr(now)
}

// Fail records the failure message.
func (s *RemixSlot) Fail(msg string, now time.Time) {
	s.Status = SlotStatusFailed
	s.ImageURL = nil
	s.Error = stringPtr(msg)
	s.CompletedAt = timePtr(now)
}

func (s RemixSlot) clone() RemixSlot {
	return RemixSlot{
		Prompt:      s.Prompt,
		Status:      s.Status,
		ImageURL:    cloneString(s.ImageURL),
		Error:       cloneString(s.Error),
		StartedAt:   cloneTime(s.StartedAt),
		CompletedAt: cloneTime(s.CompletedAt),
	}
}

// RemixJob regenerates one source coloring page under several scene prompts.
type RemixJob struct {
	ID           string
	UserID       string
	ImageID      *string
	ImageURL     string
	Prompts      []string
	Provider     string
	Status       JobStatus
	Results      []RemixSlot
	ErrorMessage *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	UpdatedAt    time.Time
}

// SkeletonSlots builds one queued slot per prompt.
func SkeletonSlots(prompts []string) []RemixSlot {
	slots := make([]RemixSlot, len(prompts))
	for i, p := range prompts {
		slots[i] = RemixSlot{Prompt: p, Status: SlotStatusQueued}
	}
	return slots
}

// NormalizedResults returns the stored slots when they line up with the
// prompts, and a fresh skeleton otherwise.
func (j *RemixJob) NormalizedResults() []RemixSlot {
	if len(j.Results) != len(j.Prompts) {
		return SkeletonSlots(j.Prompts)
	}
	out := make([]RemixSlot, len(j.Results))
	for i, slot := range j.Results {
		if slot.Prompt != j.Prompts[i] {
			return SkeletonSlots(j.Prompts)
		}
		out[i] = slot.clone()
	}
	return out
}

// Counts returns the number of succeeded and failed slots.
func (j *RemixJob) Counts() (succeeded, failed int) {
	for _, slot := range j.Results {
		switch slot.Status {
		case SlotStatusSucceeded:
			succeeded++
		case SlotStatusFailed:
			failed++
		}
	}
	return succeeded, failed
}

// FailureSummary joins "prompt: message" lines for every failed slot.
func (j *RemixJob) FailureSummary() string {
	var lines []string
	for _, slot := range j.Results {
		if slot.Status != SlotStatusFailed {
			continue
		}
		msg := "unknown error"
		if slot.Error != nil && *slot.Error != "" {
			msg = *slot.Error
		}
		lines = append(lines, slot.Prompt+": "+msg)
	}
	return strings.Join(lines, "\n")
}

// Clone returns a deep copy.
func (j *RemixJob) Clone() *RemixJob {
	if j == nil {
		return nil
	}
	out := *j
	out.ImageID = cloneString(j.ImageID)
	out.Prompts = append([]string(nil), j.Prompts...)
	out.ErrorMessage = cloneString(j.ErrorMessage)
	out.StartedAt = cloneTime(j.StartedAt)
	out.CompletedAt = cloneTime(j.CompletedAt)
	if j.Results != nil {
		out.Results = make([]RemixSlot, len(j.Results))
		for i, slot := range j.Results {
			out.Results[i] = slot.clone()
		}
	}
	return &out
}

// Variants is the list of remix outputs attached to a source image.
type Variants struct {
	URLs    []string `json:"urls"`
	Prompts []string `json:"prompts"`
}

// Append adds url with its prompt unless the url is already present.
func (v *Variants) Append(url, prompt string) bool {
	for _, existing := range v.URLs {
		if existing == url {
			return false
		}
	}
	v.URLs = append(v.URLs, url)
	v.Prompts = append(v.Prompts, prompt)
	return true
}
