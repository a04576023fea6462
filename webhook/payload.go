// Package webhook accepts inbound ticketing-platform events, normalizes
// the historically inconsistent payload shapes and drives the assistant
// orchestrator asynchronously.
package webhook

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Shape identifies which payload variant matched during normalization.
type Shape string

const (
	ShapeFlat        Shape = "flat"
	ShapeNested      Shape = "nested"
	ShapePassthrough Shape = "passthrough"
)

// Event is the normalized form every variant converges to.
type Event struct {
	Shape            Shape
	SenderIdentifier string
	MessageBody      string
	MessageID        string
	TicketID         string
	DisplayName      string
	FromMe           bool
	Action           string
	Raw              json.RawMessage
}

// UnrecognizedError reports a payload with no recognizable key, carrying
// the received keys to aid debugging the flaky upstream format.
type UnrecognizedError struct {
	Keys []string
}

func (e *UnrecognizedError) Error() string {
	return fmt.Sprintf("unrecognized webhook payload, received keys: %v", e.Keys)
}

// recognizedKeys is the union of keys any supported variant may carry.
var recognizedKeys = []string{
	"sender", "telefone", "from", "number",
	"mensagem", "message", "body", "text",
	"chamado", "ticketId", "ticket",
	"queue", "queueId", "fila",
	"name", "nome", "fromMe", "messageId", "id",
	"action", "event",
}

// flexString tolerates ids arriving as either JSON strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexString(s)
	return nil
}

type flatPayload struct {
	Sender    string     `json:"sender"`
	Telefone  string     `json:"telefone"`
	Mensagem  string     `json:"mensagem"`
	Message   string     `json:"message"`
	Body      string     `json:"body"`
	Chamado   flexString `json:"chamado"`
	TicketID  flexString `json:"ticketId"`
	Queue     string     `json:"queue"`
	QueueID   flexString `json:"queueId"`
	Name      string     `json:"name"`
	Nome      string     `json:"nome"`
	FromMe    bool       `json:"fromMe"`
	MessageID flexString `json:"messageId"`
	ID        flexString `json:"id"`
	Action    string     `json:"action"`
	Event     string     `json:"event"`
}

type nestedPayload struct {
	Message *struct {
		Body   string     `json:"body"`
		FromMe bool       `json:"fromMe"`
		ID     flexString `json:"id"`
	} `json:"message"`
	Ticket *struct {
		ID      flexString `json:"id"`
		Contact struct {
			Number string `json:"number"`
			Name   string `json:"name"`
		} `json:"contact"`
		Whatsapp struct {
			ID flexString `json:"id"`
		} `json:"whatsapp"`
	} `json:"ticket"`
	Action string `json:"action"`
	Event  string `json:"event"`
}

// Normalize parses the raw body by attempting each known variant in fixed
// priority order: flat, nested, last-resort passthrough. A payload with no
// recognizable key at all yields an UnrecognizedError.
func Normalize(raw []byte) (*Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &UnrecognizedError{Keys: []string{}}
	}

	if !hasRecognizedKey(fields) {
		return nil, &UnrecognizedError{Keys: sortedKeys(fields)}
	}

	if ev, ok := tryFlat(raw, fields); ok {
		return ev, nil
	}
	if ev, ok := tryNested(raw, fields); ok {
		return ev, nil
	}

	return passthrough(raw, fields), nil
}

func hasRecognizedKey(fields map[string]json.RawMessage) bool {
	for _, key := range recognizedKeys {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

func sortedKeys(fields map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}

func tryFlat(raw []byte, fields map[string]json.RawMessage) (*Event, bool) {
	// The flat shape carries scalars only; a structured "message" or
	// "ticket" field means this is the nested shape.
	if m, ok := fields["message"]; ok && isObject(m) {
		return nil, false
	}
	if t, ok := fields["ticket"]; ok && isObject(t) {
		return nil, false
	}

	var p flatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}

	sender := firstNonEmpty(p.Sender, p.Telefone)
	body := firstNonEmpty(p.Mensagem, p.Message, p.Body)
	ticketID := string(firstNonEmpty(flexToStr(p.Chamado), flexToStr(p.TicketID)))
	if sender == "" && body == "" && ticketID == "" {
		return nil, false
	}

	return &Event{
		Shape:            ShapeFlat,
		SenderIdentifier: sender,
		MessageBody:      body,
		MessageID:        firstNonEmpty(flexToStr(p.MessageID), flexToStr(p.ID)),
		TicketID:         ticketID,
		DisplayName:      firstNonEmpty(p.Name, p.Nome),
		FromMe:           p.FromMe,
		Action:           firstNonEmpty(p.Action, p.Event),
		Raw:              json.RawMessage(raw),
	}, true
}

func tryNested(raw []byte, fields map[string]json.RawMessage) (*Event, bool) {
	var p nestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	if p.Message == nil && p.Ticket == nil {
		return nil, false
	}

	ev := &Event{
		Shape:  ShapeNested,
		Action: firstNonEmpty(p.Action, p.Event),
		Raw:    json.RawMessage(raw),
	}
	if p.Message != nil {
		ev.MessageBody = p.Message.Body
		ev.FromMe = p.Message.FromMe
		ev.MessageID = flexToStr(p.Message.ID)
	}
	if p.Ticket != nil {
		ev.SenderIdentifier = p.Ticket.Contact.Number
		ev.DisplayName = p.Ticket.Contact.Name
		ev.TicketID = firstNonEmpty(flexToStr(p.Ticket.ID), flexToStr(p.Ticket.Whatsapp.ID))
	}
	return ev, true
}

// passthrough scrapes whatever recognizable scalar fields are present.
func passthrough(raw []byte, fields map[string]json.RawMessage) *Event {
	ev := &Event{
		Shape: ShapePassthrough,
		Raw:   json.RawMessage(raw),
	}
	ev.SenderIdentifier = firstString(fields, "sender", "telefone", "from", "number")
	ev.MessageBody = firstString(fields, "mensagem", "body", "text", "message")
	ev.MessageID = firstString(fields, "messageId", "id")
	ev.TicketID = firstString(fields, "chamado", "ticketId")
	ev.DisplayName = firstString(fields, "name", "nome")
	ev.Action = firstString(fields, "action", "event")

	if v, ok := fields["fromMe"]; ok {
		_ = json.Unmarshal(v, &ev.FromMe)
	}
	return ev
}

func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isObject(raw) {
			continue
		}
		var f flexString
		if err := json.Unmarshal(raw, &f); err == nil && f != "" {
			return string(f)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func flexToStr(f flexString) string { return string(f) }

// messageReceivedActions are the system event keywords that count as a
// customer message even when no text body is present.
var messageReceivedActions = map[string]struct{}{
	"message":          {},
	"message-received": {},
	"messageReceived":  {},
	"appMessage":       {},
	"mensagem":         {},
}

// Relevant reports whether the event should reach the assistant: non-empty
// free text not sent by the bot itself, or a recognized message-received
// action keyword.
func (e *Event) Relevant() bool {
	if e.FromMe {
		return false
	}
	if strings.TrimSpace(e.MessageBody) != "" {
		return true
	}
	_, ok := messageReceivedActions[e.Action]
	return ok
}

// UserID derives a stable conversation key: sender phone digits, else the
// ticket id. Empty means the caller must fall back to a random id.
func (e *Event) UserID() string {
	if digits := PhoneDigits(e.SenderIdentifier); digits != "" {
		return digits
	}
	return strings.TrimSpace(e.TicketID)
}

// PhoneDigits strips formatting from a phone number. Fewer than 8 digits is
// not a phone and yields empty.
func PhoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < 8 {
		return ""
	}
	return b.String()
}
