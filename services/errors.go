package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Dosada05/badminton-platform/models"
)

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("account is not entitled to act on this match")
	ErrNotFound         = errors.New("requested resource not found")
	ErrMatchNotFound    = fmt.Errorf("match not found: %w", ErrNotFound)
	ErrAccountNotFound  = fmt.Errorf("account not found: %w", ErrNotFound)
	ErrAlreadyResolved  = errors.New("match is already resolved")
	ErrConflict         = errors.New("concurrent rating update, retry later")
)

// ValidationError lists the offending submission fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// AlreadyResolvedError carries the record as it was resolved, so callers can
// show the winning outcome.
type AlreadyResolvedError struct {
	Match *models.MatchRecord
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("%s: match %s is %s", ErrAlreadyResolved, e.Match.ID, e.Match.Status)
}

func (e *AlreadyResolvedError) Is(target error) bool {
	return target == ErrAlreadyResolved
}
