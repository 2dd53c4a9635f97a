// Package notifications stores tenant-scoped notifications for clinic staff
// and delivers them through per-channel deliverers.
//
// Notifications are persisted first and delivered second. Send attempts
// delivery when the notification is due; anything left unsent (scheduled
// for later or failed) is picked up by DispatchPending, which a background
// worker calls periodically:
//
//	router := notifications.NewChannelRouter().
//		Route(notifications.ChannelEmail, notifications.NewEmailDeliverer(sender, users.EmailOf))
//	mgr := notifications.NewManager(store, router)
//
//	n, err := mgr.Send(ctx, notifications.Notification{
//		RecipientID: userID,
//		Title:       "New appointment",
//		Channel:     notifications.ChannelEmail,
//	})
//
// MarkAsRead returns the number of notifications it changed and only
// touches unread ones.
package notifications
