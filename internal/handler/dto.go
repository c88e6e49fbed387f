package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

// maxJSONBody caps API request bodies.
const maxJSONBody = 1 << 20

// =============================================================================
// Request DTOs
// =============================================================================

type DetectPlatformRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

type CreateSiteRequest struct {
	ChannelURL string `json:"channelUrl" validate:"required,max=2048"`
}

type AddSourceRequest struct {
	ChannelURL string `json:"channelUrl" validate:"required,max=2048"`
}

type VerifySiteRequest struct {
	Method string `json:"method" validate:"omitempty,oneof=bio description oauth"`
}

type UpdateThemeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=minimal magazine bold portfolio"`
}

type SetDomainRequest struct {
	Domain string `json:"domain" validate:"required,fqdn,max=253"`
}

type CreatePostRequest struct {
	SiteID         string `json:"siteId" validate:"required,uuid"`
	Title          string `json:"title" validate:"required,max=200"`
	Excerpt        string `json:"excerpt" validate:"max=500"`
	Content        string `json:"content" validate:"max=100000"`
	SourceVideoURL string `json:"sourceVideoUrl" validate:"omitempty,url"`
}

type UpdatePostRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=200"`
	Excerpt *string `json:"excerpt" validate:"omitempty,max=500"`
	Content *string `json:"content" validate:"omitempty,max=100000"`
}

type DraftPostRequest struct {
	Topic    string `json:"topic" validate:"required_without=VideoURL,max=500"`
	VideoURL string `json:"videoUrl" validate:"omitempty,url"`
	Tone     string `json:"tone" validate:"omitempty,oneof=casual professional enthusiastic"`
}

type CheckoutRequest struct {
	Plan   string `json:"plan" validate:"required"`
	Period string `json:"period" validate:"omitempty,oneof=month year"`
}

// =============================================================================
// Decoding
// =============================================================================

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads the request body into dst and validates it. An empty
// body decodes as an empty object.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, op string, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Errorf(domain.ETOOLARGE, op, "Request body is too large.")
		}
		return domain.Wrap(err, domain.EINVALID, op, "Request body must be valid JSON.")
	}
	return validateStruct(v, op, dst)
}

func validateStruct(v *validator.Validate, op string, dst any) error {
	err := v.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Wrap(err, domain.EINVALID, op, "Invalid request.")
	}
	ve := &domain.ValidationError{Op: op, Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		ve.Fields[fe.Field()] = fieldMessage(fe)
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid ID"
	case "fqdn":
		return "must be a domain name like blog.example.com"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
