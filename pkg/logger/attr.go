package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". A nil error yields an empty Attr, which
// slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TenantID records the tenant identifier under "tenant_id".
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// TenantSlug returns a "tenant_slug" attribute.
func TenantSlug(slug string) slog.Attr {
	if slug == "" {
		return slog.Attr{}
	}
	return slog.String("tenant_slug", slug)
}

// UserID records the user identifier under "user_id".
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// RequestID records the request identifier under "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Host returns a "host" attribute.
func Host(host string) slog.Attr {
	return slog.String("host", host)
}

// Resource returns a "resource" attribute.
func Resource(name string) slog.Attr {
	return slog.String("resource", name)
}

// Component returns a "component" attribute.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration returns a "duration" attribute.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
