package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService   = "service"
	FieldSource    = "source"
	FieldEventType = "event_type"
	FieldMsgID     = "msg_id"
	FieldSignature = "signature"
	FieldQueue     = "queue"
	FieldSubject   = "subject"
	FieldError     = "error"
	FieldPayload   = "json_payload"
	FieldIP        = "ip"
	FieldStatus    = "status"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Source returns a slog attribute for the webhook source name.
func Source(name string) slog.Attr {
	return slog.String(FieldSource, name)
}

// EventType returns a slog attribute for the event sub-type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// MsgID returns a slog attribute for the broker message ID.
func MsgID(id uint64) slog.Attr {
	return slog.Uint64(FieldMsgID, id)
}

// Queue returns a slog attribute for the consumer queue name.
func Queue(name string) slog.Attr {
	return slog.String(FieldQueue, name)
}

// Subject returns a slog attribute for the broker subject.
func Subject(s string) slog.Attr {
	return slog.String(FieldSubject, s)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Payload returns a slog attribute carrying the offending message payload.
// Used on parse/persist failures so the dropped event is recoverable from logs.
func Payload(raw []byte) slog.Attr {
	return slog.String(FieldPayload, string(raw))
}

// IP returns a slog attribute for the client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}
