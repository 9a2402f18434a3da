package http

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"graytone/internal/renderer"
)

// TransformRequest holds the validated query parameters of /process
type TransformRequest struct {
	URL    string `validate:"required"`
	Levels int    `validate:"min=2,max=256"`
	Width  int    `validate:"min=1,max=1000"`
	Height int    `validate:"min=1,max=1000"`
}

// Params converts the request into renderer parameters
func (r *TransformRequest) Params() renderer.Params {
	return renderer.Params{
		URL:    r.URL,
		Levels: r.Levels,
		Width:  r.Width,
		Height: r.Height,
	}
}

// Defaults apply when a numeric parameter is absent from the query
type Defaults struct {
	Levels int
	Width  int
	Height int
}

// ValidationError is a client error; Message is sent as the response body
type ValidationError struct {
	Param   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParseTransformRequest parses and validates the query, checking url,
// levels, width and height in that order and reporting the first failure.
func ParseTransformRequest(validate *validator.Validate, query url.Values, defaults Defaults) (*TransformRequest, error) {
	req := &TransformRequest{URL: query.Get("url")}
	if err := validate.StructPartial(req, "URL"); err != nil {
		return nil, &ValidationError{Param: "url", Message: "missing url", Err: err}
	}

	fields := []struct {
		param    string
		field    string
		dest     *int
		fallback int
	}{
		{"levels", "Levels", &req.Levels, defaults.Levels},
		{"width", "Width", &req.Width, defaults.Width},
		{"height", "Height", &req.Height, defaults.Height},
	}

	for _, f := range fields {
		invalid := &ValidationError{Param: f.param, Message: "invalid " + f.param}

		*f.dest = f.fallback
		if query.Has(f.param) {
			value, err := strconv.Atoi(strings.TrimSpace(query.Get(f.param)))
			if err != nil {
				invalid.Err = err
				return nil, invalid
			}
			*f.dest = value
		}

		if err := validate.StructPartial(req, f.field); err != nil {
			invalid.Err = err
			return nil, invalid
		}
	}

	return req, nil
}
