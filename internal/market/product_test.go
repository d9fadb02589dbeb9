package market

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/jsonstore"
	"github.com/roach88/marketdb/internal/notify"
	"github.com/roach88/marketdb/internal/record"
	"github.com/roach88/marketdb/internal/schema"
	"github.com/roach88/marketdb/internal/testutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

type fixture struct {
	client  *jsonstore.Store
	svc     *ProductService
	mail    *recordingNotifier
	logs    *bytes.Buffer
	product record.Record
	seller  record.Record
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	client, err := jsonstore.Open(jsonstore.Options{
		Path:   filepath.Join(t.TempDir(), "store.json"),
		Schema: schema.MustLoad(),
		Clock:  testutil.NewDeterministicClock(),
		IDs:    data.NewSequenceGenerator("id"),
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	users, err := client.Model("user")
	require.NoError(t, err)
	seller, err := users.Create(ctx, map[string]any{"id": "seller-1", "email": "seller@example.com", "role": "MARKETPLACE_SELLER"})
	require.NoError(t, err)

	products, err := client.Model("product")
	require.NoError(t, err)
	product, err := products.Create(ctx, map[string]any{"id": "p1", "title": "Lamp", "price": 10, "sellerId": "seller-1"})
	require.NoError(t, err)

	mail := &recordingNotifier{}
	var logs bytes.Buffer
	svc, err := NewProductService(client, mail, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)

	return &fixture{client: client, svc: svc, mail: mail, logs: &logs, product: product, seller: seller}
}

func TestGet(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, f.product, got)

	_, err = f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestNewProductServiceWithoutNotifier(t *testing.T) {
	f := newFixture(t)

	svc, err := NewProductService(f.client, nil, nil)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), Actor{ID: "seller-1"}, "p1", map[string]any{"price": 11})
	require.NoError(t, err)
	assert.EqualValues(t, 11, updated["price"])
}

func TestUpdateBySellerNotifies(t *testing.T) {
	f := newFixture(t)

	updated, err := f.svc.Update(context.Background(), Actor{ID: "seller-1", Role: "MARKETPLACE_SELLER"}, "p1", map[string]any{"title": "Desk Lamp"})
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", updated["title"])
	assert.Equal(t, f.product["createdAt"], updated["createdAt"])
	assert.NotEqual(t, f.product["updatedAt"], updated["updatedAt"])

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, notify.Message{
		To:      "seller@example.com",
		Subject: "Product updated",
		HTML:    `<p>Your product "Desk Lamp" was updated.</p>`,
	}, f.mail.sent[0])
}

func TestUpdateBySuperAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Update(context.Background(), Actor{ID: "admin", Role: "SUPER_ADMIN"}, "p1", map[string]any{"price": 12})
	require.NoError(t, err)
}

func TestUpdateAuthorization(t *testing.T) {
	testCases := []struct {
		name  string
		actor Actor
		id    string
		want  error
	}{
		{"anonymous", Actor{}, "p1", ErrUnauthenticated},
		{"other seller", Actor{ID: "seller-2", Role: "MARKETPLACE_SELLER"}, "p1", ErrForbidden},
		{"customer", Actor{ID: "c1", Role: "CUSTOMER"}, "p1", ErrForbidden},
		{"missing product", Actor{ID: "seller-1"}, "nope", data.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Update(context.Background(), tc.actor, tc.id, map[string]any{"title": "x"})
			assert.ErrorIs(t, err, tc.want)

			err = f.svc.Delete(context.Background(), tc.actor, tc.id)
			assert.ErrorIs(t, err, tc.want)

			got, err := f.svc.Get(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, "Lamp", got["title"])
			assert.Empty(t, f.mail.sent)
		})
	}
}

func TestUpdateSucceedsWhenNotifierFails(t *testing.T) {
	f := newFixture(t)
	f.mail.err = errors.New("smtp down")

	updated, err := f.svc.Update(context.Background(), Actor{ID: "seller-1"}, "p1", map[string]any{"title": "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated["title"])
	assert.Contains(t, f.logs.String(), "mail error")
	assert.Contains(t, f.logs.String(), "smtp down")
}

func TestUpdateWithoutSellerSkipsMail(t *testing.T) {
	f := newFixture(t)
	products, err := f.client.Model("product")
	require.NoError(t, err)
	_, err = products.Create(context.Background(), map[string]any{"id": "p2", "title": "Orphan", "sellerId": "gone"})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), Actor{ID: "a", Role: "SUPER_ADMIN"}, "p2", map[string]any{"title": "Still orphan"})
	require.NoError(t, err)
	assert.Empty(t, f.mail.sent)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.Delete(context.Background(), Actor{ID: "seller-1"}, "p1"))
	_, err := f.svc.Get(context.Background(), "p1")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestTitleIsEscapedInMail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Update(context.Background(), Actor{ID: "seller-1"}, "p1", map[string]any{"title": "<b>Lamp</b>"})
	require.NoError(t, err)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, `<p>Your product "&lt;b&gt;Lamp&lt;/b&gt;" was updated.</p>`, f.mail.sent[0].HTML)
}
