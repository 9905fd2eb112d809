// Package apperrors defines the error taxonomy shared by the router,
// the stores and the presentation layer. All of these are expected,
// locally handled conditions; persistence failures are wrapped with %w
// by the store that hit them and propagate up unchanged.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrBlockedSender is returned when a blocked user tries to send
	// or reply to anything.
	ErrBlockedSender = errors.New("sender is blocked")

	// ErrBlockedTarget is returned when the counterpart of a directed
	// reply is blocked.
	ErrBlockedTarget = errors.New("reply target is blocked")

	// ErrUnknownTarget is returned when an operator sends a message
	// with no reply target set.
	ErrUnknownTarget = errors.New("no reply target set")

	// ErrInvalidBlockTarget is returned on an attempt to block an
	// administrator.
	ErrInvalidBlockTarget = errors.New("cannot block an administrator")

	// ErrInvalidReplyTarget is returned when a user tries to reply to
	// an ID that is not an administrator.
	ErrInvalidReplyTarget = errors.New("users may only reply to administrators")

	// ErrAlreadyBlocked is returned on a block attempt for a user that
	// already has a block record.
	ErrAlreadyBlocked = errors.New("user is already blocked")

	// ErrNotBlocked is returned on an unblock attempt for a user with
	// no block record.
	ErrNotBlocked = errors.New("user is not blocked")

	// ErrMalformedInput is returned when a numeric ID was expected but
	// could not be parsed.
	ErrMalformedInput = errors.New("malformed numeric ID")
)

// DeliveryError wraps a transport failure for a single recipient.
type DeliveryError struct {
	To  int64
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %d failed: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsDeliveryError checks if an error is a DeliveryError.
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}
