package notifications

import "errors"

var (
	ErrNotificationNotFound = errors.New("notifications: not found")
	ErrInvalidNotification  = errors.New("notifications: invalid notification")
	ErrNoDeliverer          = errors.New("notifications: no deliverer for channel")
	ErrFailedToStore        = errors.New("notifications: failed to store")
)
