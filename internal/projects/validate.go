package projects

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/lib/pq"
)

const (
	maxTags       = 10
	maxTagLength  = 30
	maxComment    = 2000
	maxTitle      = 160
	maxDescLength = 5000
)

var (
	errTitleRequired = errors.New("Title must be between 3 and 160 characters")
	errDescTooLong   = errors.New("Description must be at most 5000 characters")
	errBadStatus     = errors.New("Status must be planning, active or completed")
	errBadCategory   = errors.New("Category must be at most 60 characters")
	errTooManyTags   = errors.New("At most 10 tags of up to 30 characters each")
	errCommentBody   = errors.New("Comment must be between 1 and 2000 characters")
)

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < 3 || n > maxTitle {
		return errTitleRequired
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > maxDescLength {
		return errDescTooLong
	}
	return nil
}

func validateCategory(category string) error {
	if utf8.RuneCountInString(category) > 60 {
		return errBadCategory
	}
	return nil
}

// normalizeTags trims, lowercases and de-duplicates tags, dropping empties.
func normalizeTags(tags []string) (pq.StringArray, error) {
	out := pq.StringArray{}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLength {
			return nil, errTooManyTags
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, errTooManyTags
	}
	return out, nil
}

func validateComment(body string) error {
	n := utf8.RuneCountInString(body)
	if n == 0 || n > maxComment {
		return errCommentBody
	}
	return nil
}
