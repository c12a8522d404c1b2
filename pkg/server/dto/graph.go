package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/minerva/pkg/corpus"
)

// Form fields of the graph routes. The names are those of the browser front-end.
const (
	FieldInputZip         = "input zip"
	FieldAnnotationFilter = "annotation filter"
	FieldAuthorXPath      = "author xpath"
	FieldPOSFilter        = "POS filter"
	FieldNEFilter         = "NE filter"
	FieldTargetProperty   = "target property"
	FieldMaxDegree        = "max degree"
)

// Validation errors
var (
	ErrFilterTooLong   = errors.New("filter exceeds maximum length (1024)")
	ErrInvalidDegree   = errors.New("max degree must be a positive integer")
	ErrPropertyInvalid = errors.New("target property must look like P123")
)

// MaxFilterLength bounds every free-text form field.
const MaxFilterLength = 1024

// OpinionRequest holds the form fields of POST /process_zip.
type OpinionRequest struct {
	AnnotationFilter string `form:"annotation filter"`
	AuthorXPath      string `form:"author xpath"`
}

// Validate performs validation on OpinionRequest
func (r *OpinionRequest) Validate() error {
	if len(r.AnnotationFilter) > MaxFilterLength || len(r.AuthorXPath) > MaxFilterLength {
		return ErrFilterTooLong
	}
	if _, err := corpus.ParseAuthorPath(r.AuthorXPath); err != nil {
		return err
	}
	return nil
}

// CoocRequest holds the form fields of POST /process_zip_cooc.
type CoocRequest struct {
	// POSFilter is a comma-separated tag list, e.g. "NOUN,ADJ".
	POSFilter      string `form:"POS filter"`
	NEFilter       string `form:"NE filter"`
	TargetProperty string `form:"target property"`
	MaxDegree      int    `form:"max degree"`
}

// Validate performs validation on CoocRequest. It trims the target property
// in place.
func (r *CoocRequest) Validate() error {
	if len(r.POSFilter) > MaxFilterLength || len(r.NEFilter) > MaxFilterLength {
		return ErrFilterTooLong
	}
	if r.MaxDegree <= 0 {
		return ErrInvalidDegree
	}
	r.TargetProperty = strings.TrimSpace(r.TargetProperty)
	if r.TargetProperty != "" && !isProperty(r.TargetProperty) {
		return ErrPropertyInvalid
	}
	return nil
}

// POSTags splits the POS filter. An empty filter yields an empty, non-nil
// list, which keeps every tag instead of falling back to the configured one.
func (r *CoocRequest) POSTags() []string {
	tags := []string{}
	for _, tag := range strings.Split(r.POSFilter, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func isProperty(s string) bool {
	if len(s) < 2 || s[0] != 'P' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
