package pubsub

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelKeys(t *testing.T) {
	assert.Equal(t, Channel("inbox:alice%40example.com"), Inbox("alice@example.com"))
	assert.Equal(t, Channel("outbox:visitor-1"), Outbox("visitor-1"))
	assert.Equal(t, Channel("document_progress:d-1"), DocumentProgress("d-1"))
}

func TestChannelKeysCannotCollide(t *testing.T) {
	// A key holding the separator must not land on another namespace.
	assert.NotEqual(t, Outbox("x"), Inbox("x:outbox"))
	assert.NotContains(t, Inbox("a:b").String()[len(inboxPrefix):], ":")

	// Glob characters are escaped, so a subscription built from a key never
	// widens into a pattern.
	wild := Inbox("*")
	ok, _ := path.Match(wild.String(), Inbox("alice").String())
	assert.False(t, ok)
}

func TestSessionKeyRoundTrip(t *testing.T) {
	for _, key := range []string{"alice@example.com", "a:b*c?", "visitor 42", "日本"} {
		got, ok := Inbox(key).SessionKey()
		assert.True(t, ok)
		assert.Equal(t, key, got)

		got, ok = Outbox(key).SessionKey()
		assert.True(t, ok)
		assert.Equal(t, key, got)
	}

	_, ok := DocumentProgress("d-1").SessionKey()
	assert.False(t, ok)
	_, ok = Channel("inbox:").SessionKey()
	assert.False(t, ok)
}
