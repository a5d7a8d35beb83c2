package questionsvc

// Keyspace (event-scoped):
// - event/{eventId}/questions

var (
	eventPrefix     = []byte("event/")
	questionsSuffix = []byte("/questions")
)

// ListKey builds the question-list key for an event. Exported so event
// creation can seed the empty list.
func ListKey(eventID string) []byte {
	b := make([]byte, 0, len(eventPrefix)+len(eventID)+len(questionsSuffix))
	b = append(b, eventPrefix...)
	b = append(b, eventID...)
	b = append(b, questionsSuffix...)
	return b
}
