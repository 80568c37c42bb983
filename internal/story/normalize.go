package story

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var storyIDPattern = regexp.MustCompile(`^\d{2}$`)

// ValidateStoryID checks the two-digit story identifier format.
func ValidateStoryID(id string) error {
	if !storyIDPattern.MatchString(id) {
		return fmt.Errorf("story id %q must be two digits", id)
	}
	return nil
}

// ValidateBookRelPath checks that a book path is relative and stays inside
// the library.
func ValidateBookRelPath(path string) (string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(strings.TrimSpace(path), "\\", "/"), "/")
	if cleaned == "" {
		return "", fmt.Errorf("book path is required")
	}
	for _, part := range strings.Split(cleaned, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("book path %q contains invalid segment %q", path, part)
		}
	}
	return cleaned, nil
}

// normalize fills defaults and enforces the content model invariants. The
// hints come from the file location and win over malformed document values.
func (s *Story) normalize(idHint, bookHint string, now time.Time) error {
	if s.SchemaVersion == "" {
		s.SchemaVersion = SchemaVersion
	}
	if major(s.SchemaVersion) != major(SchemaVersion) {
		return fmt.Errorf("%w %q", errSchema, s.SchemaVersion)
	}
	s.StoryID = strings.TrimSpace(s.StoryID)
	if !storyIDPattern.MatchString(s.StoryID) {
		s.StoryID = idHint
	}
	if err := ValidateStoryID(s.StoryID); err != nil {
		return err
	}
	if strings.TrimSpace(s.Title) == "" {
		s.Title = "Story " + s.StoryID
	}
	if status, ok := ParseStatus(string(s.Status)); ok {
		s.Status = status
	} else {
		s.Status = StatusDraft
	}
	if s.BookRelPath == "" {
		s.BookRelPath = bookHint
	}
	stamp := now.UTC().Format(time.RFC3339)
	if s.CreatedAt == "" {
		s.CreatedAt = stamp
	}
	if s.UpdatedAt == "" {
		s.UpdatedAt = s.CreatedAt
	}
	if s.Cover != nil {
		normalizeSlot(s.Cover)
	}

	seen := make(map[int]struct{}, len(s.Pages))
	for i := range s.Pages {
		page := &s.Pages[i]
		if page.PageNumber <= 0 {
			return fmt.Errorf("page at index %d has non-positive page_number %d", i, page.PageNumber)
		}
		if _, dup := seen[page.PageNumber]; dup {
			return fmt.Errorf("duplicate page_number %d", page.PageNumber)
		}
		seen[page.PageNumber] = struct{}{}
		if page.Status == "" {
			page.Status = defaultPageStatus
		}
		if page.Images.Main == nil {
			page.Images.Main = &ImageSlot{}
		}
		normalizeSlot(page.Images.Main)
		if page.Images.Secondary != nil {
			normalizeSlot(page.Images.Secondary)
		}
	}
	sort.SliceStable(s.Pages, func(i, j int) bool { return s.Pages[i].PageNumber < s.Pages[j].PageNumber })
	return nil
}

func normalizeSlot(slot *ImageSlot) {
	if slot.Status == "" {
		slot.Status = defaultSlotStatus
	}
	kept := slot.Alternatives[:0]
	for _, alt := range slot.Alternatives {
		alt.ID = strings.TrimSpace(alt.ID)
		if alt.ID == "" {
			continue
		}
		alt.AssetRelPath = strings.ReplaceAll(strings.TrimSpace(alt.AssetRelPath), "\\", "/")
		if alt.Status == "" {
			alt.Status = defaultAlternativeStatus
		}
		kept = append(kept, alt)
	}
	slot.Alternatives = kept
	if slot.Alternatives == nil {
		slot.Alternatives = []Alternative{}
	}
	if slot.ActiveID != "" && !slot.hasAlternative(slot.ActiveID) {
		slot.ActiveID = ""
	}
	if slot.ActiveID == "" && len(slot.Alternatives) > 0 {
		slot.ActiveID = slot.Alternatives[0].ID
	}
}

func (s *ImageSlot) hasAlternative(id string) bool {
	for _, alt := range s.Alternatives {
		if alt.ID == id {
			return true
		}
	}
	return false
}

func major(version string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	value, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return value
}
