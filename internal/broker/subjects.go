package broker

import "strings"

// The bus uses one stream capturing all per-source subjects. A source's
// routing key is its subject suffix; its worker queue is the durable
// consumer bound to that subject.
const (
	// StreamName is the durable stream backing the event bus.
	StreamName = "EVENTS"

	// SubjectPrefix is the first token of every event subject.
	SubjectPrefix = "events"

	// SubjectWildcard captures every source's subject for the stream.
	SubjectWildcard = SubjectPrefix + ".>"

	queuePrefix = "work-"
)

// Subject returns the routing subject for a source, e.g. "events.github".
func Subject(source string) string {
	return SubjectPrefix + "." + source
}

// Queue returns the durable consumer name for a source's worker pool,
// e.g. "work-github". Worker instances sharing the queue split deliveries.
func Queue(source string) string {
	return queuePrefix + source
}

// SourceFromSubject extracts the source name from a routing subject.
// Returns "" for subjects outside the event namespace.
func SourceFromSubject(subject string) string {
	rest, ok := strings.CutPrefix(subject, SubjectPrefix+".")
	if !ok {
		return ""
	}
	return rest
}
