package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Extractors pull request metadata out of the context. Any of them may be
// nil.
type Extractors struct {
	TenantID  func(context.Context) (uuid.UUID, bool)
	UserID    func(context.Context) (uuid.UUID, bool)
	RequestID func(context.Context) (string, bool)
	IP        func(context.Context) (string, bool)
	UserAgent func(context.Context) (string, bool)
}

// Logger records system log entries.
type Logger struct {
	writer     Writer
	extractors Extractors
	filter     *MetadataFilter
	minLevel   Level
	now        func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithExtractors fills entry fields from the request context.
func WithExtractors(x Extractors) Option {
	return func(l *Logger) { l.extractors = x }
}

// WithMetadataFilter replaces the default filter applied to Extra.
func WithMetadataFilter(f *MetadataFilter) Option {
	return func(l *Logger) { l.filter = f }
}

// WithMinLevel drops entries below lvl.
func WithMinLevel(lvl Level) Option {
	return func(l *Logger) { l.minLevel = lvl }
}

// WithClock overrides time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// NewLogger creates a Logger writing to w. It panics on a nil writer.
func NewLogger(w Writer, opts ...Option) *Logger {
	if w == nil {
		panic("audit: writer cannot be nil")
	}
	l := &Logger{
		writer:   w,
		filter:   NewMetadataFilter(),
		minLevel: LevelDebug,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log stores an entry enriched with tenant, user, request id, IP and user
// agent found in ctx. Options run after extraction and win.
func (l *Logger) Log(ctx context.Context, level Level, action, description string, opts ...EntryOption) error {
	if rank(level) < rank(l.minLevel) {
		return nil
	}

	e := l.fromContext(ctx)
	e.ID = uuid.New()
	e.Level = level
	e.Action = action
	e.Description = description
	e.CreatedAt = l.now().UTC()
	for _, opt := range opts {
		opt(&e)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if l.filter != nil {
		e.Extra = l.filter.Filter(e.Extra)
	}
	return l.writer.Store(ctx, e)
}

// Info records an info entry.
func (l *Logger) Info(ctx context.Context, action, description string, opts ...EntryOption) error {
	return l.Log(ctx, LevelInfo, action, description, opts...)
}

// Warning records a warning entry.
func (l *Logger) Warning(ctx context.Context, action, description string, opts ...EntryOption) error {
	return l.Log(ctx, LevelWarning, action, description, opts...)
}

// Error logs err at error level with its message in extra_data.error.
func (l *Logger) Error(ctx context.Context, action string, err error, opts ...EntryOption) error {
	opts = append([]EntryOption{WithExtra("error", err.Error())}, opts...)
	return l.Log(ctx, LevelError, action, err.Error(), opts...)
}

func (l *Logger) fromContext(ctx context.Context) Entry {
	var e Entry
	x := l.extractors
	if x.TenantID != nil {
		if id, ok := x.TenantID(ctx); ok {
			e.TenantID = &id
		}
	}
	if x.UserID != nil {
		if id, ok := x.UserID(ctx); ok {
			e.UserID = &id
		}
	}
	if x.RequestID != nil {
		e.RequestID, _ = x.RequestID(ctx)
	}
	if x.IP != nil {
		e.IP, _ = x.IP(ctx)
	}
	if x.UserAgent != nil {
		e.UserAgent, _ = x.UserAgent(ctx)
	}
	return e
}

func rank(l Level) int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	case LevelCritical:
		return 4
	}
	return -1
}
