package chat

import "errors"

var (
	ErrStreamInFlight = errors.New("a response is already streaming for this archive")
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrUpstream       = errors.New("assistant api error")
	ErrStreamFailed   = errors.New("assistant stream failed")
)
