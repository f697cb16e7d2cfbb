package llmprovider

import "errors"

var (
	errMissingAPIKey   = errors.New("API key is required")
	errEmptyChoices    = errors.New("no choices in response")
	errEmptyContent    = errors.New("no content in response")
	errMissingModel    = errors.New("model must be specified")
)
