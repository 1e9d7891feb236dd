package post

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Topic length bounds used when Rules leaves them unset.
const (
	DefaultMinTopicLength = 3
	DefaultMaxTopicLength = 1000
)

// DefaultForbiddenWords is the content filter applied to topics.
var DefaultForbiddenWords = []string{"spam", "scam", "hack", "illegal"}

// GenerationRequest is the caller input for one generation.
type GenerationRequest struct {
	Topic    string   `json:"topic" validate:"required,topic_min,topic_max,topic_clean"`
	Platform Platform `json:"platform" validate:"platform"`
	// ClientKey identifies the caller in logs. It is never serialised.
	ClientKey string `json:"-"`
}

// Normalize trims the topic and defaults the platform.
func (r GenerationRequest) Normalize() GenerationRequest {
	r.Topic = strings.TrimSpace(r.Topic)
	if p, ok := ParsePlatform(string(r.Platform)); ok {
		r.Platform = p
	} else {
		r.Platform = Platform(strings.ToLower(strings.TrimSpace(string(r.Platform))))
	}
	return r
}

// Rules configures request validation.
type Rules struct {
	MinTopicLength int
	MaxTopicLength int
	ForbiddenWords []string
}

func (r Rules) withDefaults() Rules {
	if r.MinTopicLength <= 0 {
		r.MinTopicLength = DefaultMinTopicLength
	}
	if r.MaxTopicLength <= 0 {
		r.MaxTopicLength = DefaultMaxTopicLength
	}
	if r.ForbiddenWords == nil {
		r.ForbiddenWords = DefaultForbiddenWords
	}
	return r
}

// ValidationError lists the rejected fields and why, keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "invalid request"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, e.Fields[name])
	}
	return strings.Join(parts, "; ")
}

// Validator checks GenerationRequests against Rules.
type Validator struct {
	rules    Rules
	validate *validator.Validate
}

// NewValidator builds a validator with the topic and platform rules registered.
func NewValidator(rules Rules) *Validator {
	rules = rules.withDefaults()

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("topic_min", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) >= rules.MinTopicLength
	})
	_ = v.RegisterValidation("topic_max", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= rules.MaxTopicLength
	})
	_ = v.RegisterValidation("topic_clean", func(fl validator.FieldLevel) bool {
		return !containsForbidden(fl.Field().String(), rules.ForbiddenWords)
	})
	_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		return Platform(fl.Field().String()).Valid()
	})

	return &Validator{rules: rules, validate: v}
}

// Rules returns the effective rules.
func (v *Validator) Rules() Rules {
	return v.rules
}

// Validate normalizes req and checks it. The normalized request is returned
// even when validation fails so callers can echo it back.
func (v *Validator) Validate(req GenerationRequest) (GenerationRequest, error) {
	req = req.Normalize()

	err := v.validate.Struct(req)
	if err == nil {
		return req, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return req, fmt.Errorf("validate request: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = v.message(fe)
	}
	return req, &ValidationError{Fields: fields}
}

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Please provide a topic"
	case "topic_min":
		return fmt.Sprintf("Topic must be at least %d characters long", v.rules.MinTopicLength)
	case "topic_max":
		return fmt.Sprintf("Topic must be no more than %d characters long", v.rules.MaxTopicLength)
	case "topic_clean":
		return "Topic contains inappropriate content"
	case "platform":
		return "Platform must be one of: twitter, linkedin"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func containsForbidden(topic string, words []string) bool {
	lower := strings.ToLower(topic)
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
