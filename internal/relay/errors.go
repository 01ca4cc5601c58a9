package relay

import "strings"

// isReplyNotFound reports whether the API rejected a send because the
// message it replied to no longer exists. Such sends are retried once
// without the reply reference.
func isReplyNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "message to be replied not found") ||
		strings.Contains(msg, "message to reply not found") ||
		strings.Contains(msg, "replied message not found")
}

// isNotModified reports the benign "message is not modified" rejection
// returned when an edit or reaction changes nothing.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
