package story

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaVersion is written to every story document.
const SchemaVersion = "1.0"

// Status represents the lifecycle of a story.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusInReview       Status = "in_review"
	StatusDefinitive     Status = "definitive"
	StatusTextReviewed   Status = "text_reviewed"
	StatusTextBlocked    Status = "text_blocked"
	StatusPromptReviewed Status = "prompt_reviewed"
	StatusPromptBlocked  Status = "prompt_blocked"
	StatusReady          Status = "ready"
)

var allStatuses = []Status{
	StatusDraft,
	StatusInReview,
	StatusDefinitive,
	StatusTextReviewed,
	StatusTextBlocked,
	StatusPromptReviewed,
	StatusPromptBlocked,
	StatusReady,
}

// ParseStatus normalizes a status string, reporting whether it is known.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// Slot names.
const (
	SlotMain      = "main"
	SlotSecondary = "secondary"
)

// Field paths addressable by findings.
const (
	FieldText            = "text.current"
	FieldMainPrompt      = "images.main.prompt.current"
	FieldSecondaryPrompt = "images.secondary.prompt.current"
)

const (
	defaultAlternativeStatus = "candidate"
	defaultSlotStatus        = "draft"
	defaultPageStatus        = "draft"
	promptFieldPrefix        = "images."
	promptFieldSuffix        = ".prompt.current"
)

// PromptField returns the field path of a slot's current prompt.
func PromptField(slot string) string {
	return promptFieldPrefix + slot + promptFieldSuffix
}

// Versioned holds an ingested original value and its editable current value.
// Legacy documents store a bare string, which decodes into both.
type Versioned struct {
	Original string `json:"original"`
	Current  string `json:"current"`
}

// UnmarshalJSON accepts either an object or a bare string.
func (v *Versioned) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		v.Original = plain
		v.Current = plain
		return nil
	}
	type raw Versioned
	var decoded raw
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*v = Versioned(decoded)
	return nil
}

// Alternative is one generated illustration candidate for a slot.
type Alternative struct {
	ID           string `json:"id"`
	AssetRelPath string `json:"asset_rel_path"`
	MimeType     string `json:"mime_type,omitempty"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// ImageSlot holds the prompt and illustration candidates of one image position.
type ImageSlot struct {
	Status       string        `json:"status"`
	Prompt       Versioned     `json:"prompt"`
	ReferenceIDs []string      `json:"reference_ids,omitempty"`
	ActiveID     string        `json:"active_id"`
	Alternatives []Alternative `json:"alternatives"`
}

// Images groups the slots of a page. Main always exists after normalization.
type Images struct {
	Main      *ImageSlot `json:"main"`
	Secondary *ImageSlot `json:"secondary,omitempty"`
}

// Page is one page of a story.
type Page struct {
	PageNumber int       `json:"page_number"`
	Status     string    `json:"status,omitempty"`
	Text       Versioned `json:"text"`
	Images     Images    `json:"images"`
}

// Slot returns the named image slot, or nil when the page has none.
func (p *Page) Slot(name string) *ImageSlot {
	switch name {
	case SlotMain:
		return p.Images.Main
	case SlotSecondary:
		return p.Images.Secondary
	default:
		return nil
	}
}

// SlotNames lists the slots present on the page, main first.
func (p *Page) SlotNames() []string {
	names := make([]string, 0, 2)
	if p.Images.Main != nil {
		names = append(names, SlotMain)
	}
	if p.Images.Secondary != nil {
		names = append(names, SlotSecondary)
	}
	return names
}

// Story is the unit of review.
type Story struct {
	SchemaVersion string     `json:"schema_version"`
	StoryID       string     `json:"story_id"`
	Title         string     `json:"title"`
	Status        Status     `json:"status"`
	BookRelPath   string     `json:"book_rel_path"`
	CreatedAt     string     `json:"created_at"`
	UpdatedAt     string     `json:"updated_at"`
	Cover         *ImageSlot `json:"cover,omitempty"`
	Pages         []Page     `json:"pages"`
}

// Page returns the page with the given number, or nil.
func (s *Story) Page(number int) *Page {
	for i := range s.Pages {
		if s.Pages[i].PageNumber == number {
			return &s.Pages[i]
		}
	}
	return nil
}

// FieldValue reads the current value addressed by field on the given page.
func (s *Story) FieldValue(pageNumber int, field string) (string, error) {
	target, err := s.field(pageNumber, field)
	if err != nil {
		return "", err
	}
	return *target, nil
}

// SetFieldValue writes the current value addressed by field on the given page.
func (s *Story) SetFieldValue(pageNumber int, field, value string) error {
	target, err := s.field(pageNumber, field)
	if err != nil {
		return err
	}
	*target = value
	return nil
}

func (s *Story) field(pageNumber int, field string) (*string, error) {
	page := s.Page(pageNumber)
	if page == nil {
		return nil, fmt.Errorf("page %d not found", pageNumber)
	}
	if field == FieldText {
		return &page.Text.Current, nil
	}
	if strings.HasPrefix(field, promptFieldPrefix) && strings.HasSuffix(field, promptFieldSuffix) {
		name := strings.TrimSuffix(strings.TrimPrefix(field, promptFieldPrefix), promptFieldSuffix)
		slot := page.Slot(name)
		if slot == nil {
			return nil, fmt.Errorf("page %d has no %s image slot", pageNumber, name)
		}
		return &slot.Prompt.Current, nil
	}
	return nil, fmt.Errorf("unsupported field %q", field)
}

// Clone returns a deep copy of the story.
func (s *Story) Clone() *Story {
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("story: clone: %v", err))
	}
	var out Story
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("story: clone: %v", err))
	}
	return &out
}
