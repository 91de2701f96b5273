package models

import (
	"strings"

	dErrors "hearth/pkg/domain-errors"
)

// Status is the lifecycle state of a listing. Draft -> Published -> Archived is
// the only path; Archived is terminal.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// CanPublish reports whether a first publish is allowed from s.
func (s Status) CanPublish() bool { return s == StatusDraft }

// CanArchive reports whether archival is allowed from s.
func (s Status) CanArchive() bool { return s == StatusPublished }

// IsPubliclyVisible reports whether callers without management rights may see
// a listing in this status.
func (s Status) IsPubliclyVisible() bool { return s == StatusPublished }

// ParseStatus parses a persisted status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "unknown listing status: "+raw)
	}
	return s, nil
}
