package status

import "errors"

var (
	ErrTicketNotFound    = errors.New("ticket: ticket not found")
	ErrTicketUnavailable = errors.New("ticket: ticket not available")
	ErrNotFound          = errors.New("negotiation: negotiation not found")
	ErrInvalidState      = errors.New("negotiation: negotiation not open")
	ErrRoleMismatch      = errors.New("negotiation: party id does not match role")
)
