package tui

import "time"

// MsgPlan initializes the recipe list.
type MsgPlan struct {
	Recipes      []string
	Dependencies map[string][]string
	Targets      []string
}

// MsgSpanStart reports a started recipe or phase span.
type MsgSpanStart struct {
	SpanID    string
	ParentID  string
	Name      string
	StartTime time.Time
}

// MsgSpanLog carries tool output of a phase span.
type MsgSpanLog struct {
	SpanID string
	Data   []byte
}

// MsgSpanComplete reports a finished recipe or phase span.
type MsgSpanComplete struct {
	SpanID  string
	EndTime time.Time
	Err     error
}
