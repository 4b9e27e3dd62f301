package draft

import "errors"

var (
	ErrNoDraft             = errors.New("no draft is open")
	ErrMalformedTrigger    = errors.New("malformed trigger payload")
	ErrMissingApprovalType = errors.New("approval trigger has no approval type")
	ErrSubmitRejected      = errors.New("leave api rejected the draft")
)
