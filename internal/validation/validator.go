package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/GianDevelops/corex-portal/internal/models"
)

const (
	// MaxCaptionLength is the longest caption any supported platform accepts
	MaxCaptionLength = 2200
	// MaxHashtags is the most hashtags a post may carry
	MaxHashtags = 30
	// MaxNotesLength bounds designer internal notes
	MaxNotesLength = 5000
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error joins the field and message
func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validator checks post payloads. One instance per import tracks duplicates.
type Validator struct {
	captionCache map[string]bool
	clientIDs    map[string]bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		captionCache: make(map[string]bool),
		clientIDs:    make(map[string]bool),
	}
}

// SetClientIDCache sets the known clients for reference validation
func (v *Validator) SetClientIDCache(ids []string) {
	for _, id := range ids {
		v.clientIDs[id] = true
	}
}

// AddCaption records an accepted caption so repeats are reported
func (v *Validator) AddCaption(caption string) {
	v.captionCache[captionKey(caption)] = true
}

func captionKey(caption string) string {
	return strings.ToLower(strings.Join(strings.Fields(caption), " "))
}

// ValidateDraft validates a post or idea creation request
func (v *Validator) ValidateDraft(req *models.CreatePostRequest, role models.Role) []ValidationError {
	var errors []ValidationError

	errors = append(errors, validateCaption(req.Caption, true)...)
	errors = append(errors, validateHashtags(req.Hashtags)...)
	errors = append(errors, validatePlatforms(req.Platforms)...)

	if role == models.RoleDesigner && strings.TrimSpace(req.ClientID) == "" {
		errors = append(errors, ValidationError{Field: "client_id", Message: "client_id is required"})
	}
	if req.ClientID != "" && len(v.clientIDs) > 0 && !v.clientIDs[req.ClientID] {
		errors = append(errors, ValidationError{Field: "client_id", Message: "referenced client does not exist", Value: req.ClientID})
	}
	if utf8.RuneCountInString(req.InternalNotes) > MaxNotesLength {
		errors = append(errors, ValidationError{Field: "internal_notes", Message: fmt.Sprintf("internal_notes exceeds %d characters", MaxNotesLength)})
	}
	return errors
}

// ValidateEdit validates a designer edit; only supplied fields are checked
func (v *Validator) ValidateEdit(req *models.UpdatePostRequest) []ValidationError {
	var errors []ValidationError

	if req.Caption == nil && req.Hashtags == nil && req.Platforms == nil && req.InternalNotes == nil {
		return []ValidationError{{Field: "body", Message: "nothing to update"}}
	}
	if req.Caption != nil {
		errors = append(errors, validateCaption(*req.Caption, true)...)
	}
	if req.Hashtags != nil {
		errors = append(errors, validateHashtags(*req.Hashtags)...)
	}
	if req.Platforms != nil {
		errors = append(errors, validatePlatforms(req.Platforms)...)
	}
	if req.InternalNotes != nil && utf8.RuneCountInString(*req.InternalNotes) > MaxNotesLength {
		errors = append(errors, ValidationError{Field: "internal_notes", Message: fmt.Sprintf("internal_notes exceeds %d characters", MaxNotesLength)})
	}
	return errors
}

// ValidateIdea validates one line of a bulk idea import
func (v *Validator) ValidateIdea(idea *models.IdeaNDJSON, role models.Role) []ValidationError {
	var errors []ValidationError

	captionErrs := validateCaption(idea.Caption, true)
	errors = append(errors, captionErrs...)
	if len(captionErrs) == 0 && v.captionCache[captionKey(idea.Caption)] {
		errors = append(errors, ValidationError{Field: "caption", Message: "duplicate idea in this import", Value: idea.Caption})
	}
	errors = append(errors, validateHashtags(idea.Hashtags)...)
	errors = append(errors, validatePlatforms(idea.Platforms)...)

	switch role {
	case models.RoleDesigner:
		if idea.ClientID == "" {
			errors = append(errors, ValidationError{Field: "client_id", Message: "client_id is required"})
		} else if len(v.clientIDs) > 0 && !v.clientIDs[idea.ClientID] {
			errors = append(errors, ValidationError{Field: "client_id", Message: "referenced client does not exist", Value: idea.ClientID})
		}
	case models.RoleClient:
		if idea.ClientID != "" {
			errors = append(errors, ValidationError{Field: "client_id", Message: "clients cannot import ideas for someone else", Value: idea.ClientID})
		}
	}
	return errors
}

func validateCaption(caption string, required bool) []ValidationError {
	trimmed := strings.TrimSpace(caption)
	if trimmed == "" {
		if required {
			return []ValidationError{{Field: "caption", Message: "caption is required"}}
		}
		return nil
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxCaptionLength {
		return []ValidationError{{
			Field:   "caption",
			Message: fmt.Sprintf("caption exceeds maximum of %d characters (has %d)", MaxCaptionLength, n),
		}}
	}
	return nil
}

func validateHashtags(hashtags string) []ValidationError {
	count := 0
	for _, word := range strings.Fields(hashtags) {
		if strings.HasPrefix(word, "#") {
			count++
		}
	}
	if count > MaxHashtags {
		return []ValidationError{{
			Field:   "hashtags",
			Message: fmt.Sprintf("hashtags exceed maximum of %d (has %d)", MaxHashtags, count),
		}}
	}
	return nil
}

func validatePlatforms(platforms []string) []ValidationError {
	var errors []ValidationError
	for _, p := range platforms {
		name := strings.ToLower(strings.TrimSpace(p))
		if !models.ValidPlatforms[name] {
			errors = append(errors, ValidationError{
				Field:   "platforms",
				Message: "unsupported platform, must be one of: " + strings.Join(platformNames(), ", "),
				Value:   p,
			})
		}
	}
	return errors
}

func platformNames() []string {
	return []string{"facebook", "instagram", "linkedin", "pinterest", "tiktok", "x", "youtube"}
}
