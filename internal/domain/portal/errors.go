package portal

import "errors"

var ErrSessionNotFound = errors.New("no portal session for this user")
