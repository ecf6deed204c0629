package bot

import "errors"

var (
	ErrDisabled      = errors.New("assistant is disabled")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrCompletion    = errors.New("completion failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrEmptyPrompt   = errors.New("empty prompt")
)
