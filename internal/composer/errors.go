package composer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFinalized is returned when registering into a finalized composer.
var ErrFinalized = errors.New("composer is finalized")

// DuplicateKeyError is returned when a key is registered twice in the same
// category.
type DuplicateKeyError struct {
	Category string
	Key      string
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s key %q", e.Category, e.Key)
}

// UnknownFieldError is returned when a badge or sort refers to a field that
// is not registered.
type UnknownFieldError struct {
	Category string
	Key      string
	Field    string
}

func (e UnknownFieldError) Error() string {
	return fmt.Sprintf("%s %q refers to unknown field %q", e.Category, e.Key, e.Field)
}

// DuplicateFilterKeyError is returned when active facets share a filter key.
type DuplicateFilterKeyError struct {
	FilterKey string
	Facets    []string
}

func (e DuplicateFilterKeyError) Error() string {
	return fmt.Sprintf("filter key %q used by facets %s", e.FilterKey, strings.Join(e.Facets, ", "))
}

// SortSpecError is returned for malformed sort specs.
type SortSpecError struct {
	Key    string
	Reason string
}

func (e SortSpecError) Error() string {
	return fmt.Sprintf("sort %q: %s", e.Key, e.Reason)
}
