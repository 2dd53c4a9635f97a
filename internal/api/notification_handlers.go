package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/notifications"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

type notificationRequest struct {
	RecipientID  uuid.UUID             `json:"recipient_id"`
	Title        string                `json:"title"`
	Message      string                `json:"message"`
	Type         notifications.Type    `json:"type,omitempty"`
	Channel      notifications.Channel `json:"channel,omitempty"`
	Data         map[string]any        `json:"data,omitempty"`
	ScheduledFor *time.Time            `json:"scheduled_for,omitempty"`
}

// listNotifications accepts ?recipient_id=, ?read= and ?channel=.
func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	f := notifications.Filter{
		Channel: notifications.Channel(r.URL.Query().Get("channel")),
		Limit:   limit,
		Offset:  offset,
	}
	if f.Read, err = boolQuery(r, "read"); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if v := r.URL.Query().Get("recipient_id"); v != "" {
		if f.RecipientID, err = uuid.Parse(v); err != nil {
			h.errs.write(w, r, fmt.Errorf("%w: invalid recipient_id", ErrBadRequest))
			return
		}
	}
	list, err := h.Notifications.List(r.Context(), f)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeDataMeta(w, list, map[string]any{"limit": limit, "offset": offset})
}

func (h *handlers) sendNotification(w http.ResponseWriter, r *http.Request) {
	var in notificationRequest
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	n, err := h.Notifications.Send(r.Context(), notifications.Notification{
		RecipientID:  in.RecipientID,
		Title:        in.Title,
		Message:      in.Message,
		Type:         in.Type,
		Channel:      in.Channel,
		Data:         in.Data,
		ScheduledFor: in.ScheduledFor,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	created(w, n)
}

func (h *handlers) getNotification(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	n, err := h.Notifications.Get(r.Context(), id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, n)
}

func (h *handlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("recipient_id"))
	if err != nil {
		h.errs.write(w, r, fmt.Errorf("%w: recipient_id is required", ErrBadRequest))
		return
	}
	n, err := h.Notifications.CountUnread(r.Context(), userID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, map[string]int64{"unread": n})
}

// markRead flags notifications as read. Without ids every unread
// notification of the recipient (or of the tenant) is covered.
func (h *handlers) markRead(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RecipientID *uuid.UUID  `json:"recipient_id,omitempty"`
		IDs         []uuid.UUID `json:"ids,omitempty"`
	}
	if err := decode(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	n, err := h.Notifications.MarkAsRead(r.Context(), in.RecipientID, in.IDs...)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeData(w, map[string]int64{"updated": n})
}

// tenantLogs lists the current tenant's system log entries.
func (h *handlers) tenantLogs(w http.ResponseWriter, r *http.Request) {
	c, err := logCriteria(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	id, _ := tenant.IDFromContext(r.Context())
	c.TenantID = &id
	h.findLogs(w, r, c)
}

// logCriteria parses ?level= (repeatable), ?action=, ?since= (RFC 3339)
// and paging.
func logCriteria(r *http.Request) (audit.Criteria, error) {
	limit, offset, err := page(r)
	if err != nil {
		return audit.Criteria{}, err
	}
	q := r.URL.Query()
	c := audit.Criteria{Action: q.Get("action"), Limit: limit, Offset: offset}
	for _, l := range q["level"] {
		lvl := audit.Level(l)
		if !lvl.Valid() {
			return c, fmt.Errorf("%w: unknown level %q", ErrBadRequest, l)
		}
		c.Levels = append(c.Levels, lvl)
	}
	if v := q.Get("since"); v != "" {
		if c.Since, err = time.Parse(time.RFC3339, v); err != nil {
			return c, fmt.Errorf("%w: since must be RFC 3339", ErrBadRequest)
		}
	}
	return c, nil
}
