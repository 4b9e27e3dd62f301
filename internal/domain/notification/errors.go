package notification

import "errors"

var (
	ErrMalformedEnvelope = errors.New("malformed notification envelope")
	ErrDuplicateDelivery = errors.New("notification already delivered")
)
