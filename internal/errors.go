package internal

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks errors that retrying cannot fix. Workers cancel jobs
// that fail with an error wrapping it.
var ErrConfiguration = errors.New("configuration error")

var (
	ErrMissingRole       = fmt.Errorf("%w: mediaconvert role ARN not set", ErrConfiguration)
	ErrMissingSigningKey = fmt.Errorf("%w: CloudFront signing key or key id not set", ErrConfiguration)
)
