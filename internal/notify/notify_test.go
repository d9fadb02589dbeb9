package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifierWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier("market@example.com", slog.New(slog.NewTextHandler(&buf, nil)))

	err := n.Send(context.Background(), Message{To: "s@example.com", Subject: "Product updated", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "to=s@example.com")
	assert.Contains(t, out, `subject="Product updated"`)
	assert.Contains(t, out, "from=market@example.com")
}

func TestLogNotifierRequiresRecipient(t *testing.T) {
	n := NewLogNotifier("", slog.New(slog.DiscardHandler))
	assert.ErrorIs(t, n.Send(context.Background(), Message{}), ErrNoRecipient)
}

func TestFunc(t *testing.T) {
	boom := errors.New("boom")
	var got Message
	n := Func(func(_ context.Context, msg Message) error {
		got = msg
		return boom
	})

	err := n.Send(context.Background(), Message{To: "a"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a", got.To)
	assert.NoError(t, Discard.Send(context.Background(), Message{}))
}
