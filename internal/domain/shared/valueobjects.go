package shared

import (
	"strings"
	"unicode/utf8"
)

// MaxNameLength bounds user ids, subjects and topics.
const MaxNameLength = 200

// DefaultSubject is used when a topic arrives without a subject.
const DefaultSubject = "General"

// UserID identifies the authenticated owner of all progress data.
type UserID string

// IsValid checks if the user ID is usable.
func (u UserID) IsValid() bool {
	s := strings.TrimSpace(string(u))
	return s != "" && utf8.RuneCountInString(s) <= MaxNameLength
}

// String returns the string representation of UserID.
func (u UserID) String() string {
	return string(u)
}

// NewUserID validates and normalizes a user id.
func NewUserID(id string) (UserID, error) {
	u := UserID(strings.TrimSpace(id))
	if !u.IsValid() {
		return "", ValidationError("shared", "NewUserID", "user id is required")
	}
	return u, nil
}

// TopicKey is the (subject, topic) pair a mastery record is kept for.
type TopicKey struct {
	Subject string
	Topic   string
}

// String renders the key as "subject/topic".
func (k TopicKey) String() string {
	return k.Subject + "/" + k.Topic
}

// NewTopicKey trims both parts, defaults an empty subject and rejects an
// empty or oversized topic.
func NewTopicKey(subject, topic string) (TopicKey, error) {
	subject = strings.TrimSpace(subject)
	topic = strings.TrimSpace(topic)
	if subject == "" {
		subject = DefaultSubject
	}
	if topic == "" {
		return TopicKey{}, ValidationError("shared", "NewTopicKey", "topic is required")
	}
	if utf8.RuneCountInString(subject) > MaxNameLength || utf8.RuneCountInString(topic) > MaxNameLength {
		return TopicKey{}, ValidationError("shared", "NewTopicKey", "subject and topic must be at most 200 characters")
	}
	return TopicKey{Subject: subject, Topic: topic}, nil
}
