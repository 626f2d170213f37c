package domain

import (
	"errors"
	"strings"
	"time"
)

type LegStatus string

const (
	LegOK     LegStatus = "OK"
	LegFailed LegStatus = "FAILED"
)

// LegResult is the outcome of one broker call made for a command.
type LegResult struct {
	Action string    `json:"action"`
	Target string    `json:"target"`
	Status LegStatus `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// Report summarises the handling of one inbound message.
type Report struct {
	ID        string      `json:"id"`
	MessageID int64       `json:"message_id"`
	Intent    string      `json:"intent"`
	Lines     []string    `json:"lines"`
	Legs      []LegResult `json:"legs,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (r *Report) Add(line string) {
	r.Lines = append(r.Lines, line)
}

func (r *Report) OK(action, target, detail string) {
	r.Legs = append(r.Legs, LegResult{Action: action, Target: target, Status: LegOK, Detail: detail})
}

func (r *Report) Fail(action, target string, err error) {
	r.Legs = append(r.Legs, LegResult{Action: action, Target: target, Status: LegFailed, Detail: err.Error()})
}

// Succeeded lists the targets of the successful legs for an action.
func (r *Report) Succeeded(action string) []string {
	var ids []string
	for _, l := range r.Legs {
		if l.Action == action && l.Status == LegOK {
			ids = append(ids, l.Target)
		}
	}
	return ids
}

// Failures counts failed legs.
func (r *Report) Failures() int {
	n := 0
	for _, l := range r.Legs {
		if l.Status == LegFailed {
			n++
		}
	}
	return n
}

// Text renders the report for the chat.
func (r *Report) Text() string {
	return strings.Join(r.Lines, "\n")
}

// SetError records a command level failure.
func (r *Report) SetError(err error) {
	r.Error = err.Error()
	var pe *ParseError
	var ce *ConnectionError
	var le *LookupError
	switch {
	case errors.As(err, &pe):
		r.Add("There was an error parsing this signal: " + err.Error())
	case errors.As(err, &ce):
		r.Add("There was an issue with the connection: " + err.Error())
	case errors.As(err, &le):
		r.Add("Nothing to do: " + err.Error())
	default:
		r.Add("Command failed: " + err.Error())
	}
}
