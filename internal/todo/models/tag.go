package models

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
)

const MaxTagNameLength = 50

var colorCodePattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Tag is a colored label a user attaches to their todos.
//
// Invariants:
//   - Name is trimmed, 1..50 characters, unique per owner ignoring case
//   - ColorCode is a #RRGGBB hex triplet
type Tag struct {
	ID        id.TagID  `json:"id"`
	UserID    id.UserID `json:"user_id"`
	Name      string    `json:"name"`
	ColorCode string    `json:"color_code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTag validates and builds a tag owned by userID.
func NewTag(tagID id.TagID, userID id.UserID, name, colorCode string, now time.Time) (*Tag, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tag requires an owner")
	}
	name = strings.TrimSpace(name)
	if err := ValidateTagName(name); err != nil {
		return nil, err
	}
	colorCode = strings.TrimSpace(colorCode)
	if err := ValidateColorCode(colorCode); err != nil {
		return nil, err
	}
	return &Tag{
		ID:        tagID,
		UserID:    userID,
		Name:      name,
		ColorCode: colorCode,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyUpdate changes the provided fields. The tag is left untouched when
// any of them is invalid.
func (t *Tag) ApplyUpdate(name, colorCode *string, now time.Time) error {
	updated := *t
	if name != nil {
		updated.Name = strings.TrimSpace(*name)
		if err := ValidateTagName(updated.Name); err != nil {
			return err
		}
	}
	if colorCode != nil {
		updated.ColorCode = strings.TrimSpace(*colorCode)
		if err := ValidateColorCode(updated.ColorCode); err != nil {
			return err
		}
	}
	updated.UpdatedAt = now
	*t = updated
	return nil
}

// NameKey is the form used for the per-owner uniqueness check.
func (t *Tag) NameKey() string {
	return strings.ToLower(t.Name)
}

func ValidateTagName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "name is required")
	}
	if utf8.RuneCountInString(name) > MaxTagNameLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "name must be 50 characters or less")
	}
	return nil
}

func ValidateColorCode(colorCode string) error {
	if !colorCodePattern.MatchString(colorCode) {
		return dErrors.New(dErrors.CodeInvariantViolation, "color_code must be a hex color like #FF5733")
	}
	return nil
}

// SortTagsByName orders tags case-insensitively, falling back to the raw name.
func SortTagsByName(tags []*Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		if ki, kj := tags[i].NameKey(), tags[j].NameKey(); ki != kj {
			return ki < kj
		}
		return tags[i].Name < tags[j].Name
	})
}
