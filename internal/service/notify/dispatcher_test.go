package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/push"
	"farmnook-dispatch/internal/store"
	"farmnook-dispatch/internal/store/memstore"
	testlog "farmnook-dispatch/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func newCtrl(t *testing.T) *gomock.Controller {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return ctrl
}

func newTestDispatcher(st documentStore, sender pushSender, rec *testlog.Recorder) (*Dispatcher, prometheus.Counter) {
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "push_failures_total"})
	d := NewDispatcher(st, sender, Options{OperationTimeout: time.Second, PushTimeout: time.Second}, failures, rec.Logger())
	d.now = func() time.Time { return fixedNow }
	return d, failures
}

func seedUser(t *testing.T, st *memstore.Store, id string, tokens []any) {
	t.Helper()
	require.NoError(t, st.Set(context.Background(), domain.CollectionUsers, id, store.Fields{
		"userType":  "farmer",
		"firstName": "Juan",
		"lastName":  "Dela Cruz",
		"playerIds": tokens,
	}, false))
}

func TestNotify_PushesToValidTokens(t *testing.T) {
	t.Parallel()

	ctrl := newCtrl(t)
	st := memstore.New()
	seedUser(t, st, "F1", []any{"abc", "validtoken123", 42, nil})
	sender := NewMockpushSender(ctrl)
	rec := testlog.New()
	d, failures := newTestDispatcher(st, sender, rec)

	hint := domain.RoutingHint{"openTarget": "FarmerDashboardFragment", "requestId": "R1"}
	sender.EXPECT().
		Send(gomock.Any(), push.Message{
			Tokens: []string{"validtoken123"},
			Title:  "Delivery Accepted",
			Body:   "Acme accepted your delivery request",
			Data:   map[string]any(hint),
		}).
		Return(nil)

	res, err := d.Notify(context.Background(), "F1", "Delivery Accepted", "Acme accepted your delivery request", hint)
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, 1, res.Tokens)
	assert.Equal(t, float64(0), promtest.ToFloat64(failures))

	docs, err := st.Query(context.Background(), store.Query{Collection: domain.CollectionNotifications})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, res.NotificationID, docs[0].ID)

	var n domain.Notification
	require.NoError(t, store.Decode(docs[0], &n))
	assert.Equal(t, "F1", n.RecipientID)
	assert.False(t, n.IsRead)
	assert.True(t, n.Timestamp.Equal(fixedNow))
	assert.Equal(t, "FarmerDashboardFragment", n.Data["openTarget"])
}

func TestNotify_NoTokensWritesDocumentWithoutPush(t *testing.T) {
	t.Parallel()

	ctrl := newCtrl(t)
	st := memstore.New()
	seedUser(t, st, "F1", []any{"short", 7})
	sender := NewMockpushSender(ctrl)
	rec := testlog.New()
	d, _ := newTestDispatcher(st, sender, rec)

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	res, err := d.Notify(context.Background(), "F1", "Delivery Declined", "Your request was declined", nil)
	require.NoError(t, err)
	assert.False(t, res.Pushed)
	assert.Equal(t, 1, st.Len(domain.CollectionNotifications))

	_, ok := rec.Find("warn", "recipient has no valid device tokens, push skipped")
	assert.True(t, ok)
}

func TestNotify_UnknownRecipientStillWritesDocument(t *testing.T) {
	t.Parallel()

	ctrl := newCtrl(t)
	st := memstore.New()
	sender := NewMockpushSender(ctrl)
	d, _ := newTestDispatcher(st, sender, testlog.New())

	res, err := d.Notify(context.Background(), "ghost", "t", "m", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.NotificationID)
	assert.Equal(t, 1, st.Len(domain.CollectionNotifications))
}

func TestNotify_PushFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	ctrl := newCtrl(t)
	st := memstore.New()
	seedUser(t, st, "H1", []any{"validtoken123", "othertoken456"})
	sender := NewMockpushSender(ctrl)
	rec := testlog.New()
	d, failures := newTestDispatcher(st, sender, rec)

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("provider 502"))

	res, err := d.Notify(context.Background(), "H1", "New Delivery Assigned", "You have been assigned a new delivery", nil)
	require.NoError(t, err)
	assert.False(t, res.Pushed)
	assert.Equal(t, 2, res.Tokens)
	assert.Equal(t, float64(1), promtest.ToFloat64(failures))

	e, ok := rec.Find("error", "push delivery failed")
	require.True(t, ok)
	v, _ := e.Field("err")
	assert.Equal(t, "provider 502", v)
}

func TestNotify_WriteFailureIsReturned(t *testing.T) {
	t.Parallel()

	ctrl := newCtrl(t)
	st := NewMockdocumentStore(ctrl)
	sender := NewMockpushSender(ctrl)
	d, _ := newTestDispatcher(st, sender, testlog.New())

	boom := errors.New("unavailable")
	st.EXPECT().Add(gomock.Any(), domain.CollectionNotifications, gomock.Any()).Return("", boom)
	st.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	_, err := d.Notify(context.Background(), "F1", "t", "m", nil)
	require.ErrorIs(t, err, boom)
}

func TestNotify_LookupFailureSkipsPush(t *testing.T) {
	t.Parallel()

	ctrl := newCtrl(t)
	st := NewMockdocumentStore(ctrl)
	sender := NewMockpushSender(ctrl)
	rec := testlog.New()
	d, _ := newTestDispatcher(st, sender, rec)

	st.EXPECT().Add(gomock.Any(), domain.CollectionNotifications, gomock.Any()).Return("N1", nil)
	st.EXPECT().Get(gomock.Any(), domain.CollectionUsers, "F1").Return(store.Document{}, errors.New("deadline exceeded"))

	res, err := d.Notify(context.Background(), "F1", "t", "m", nil)
	require.NoError(t, err)
	assert.Equal(t, "N1", res.NotificationID)
	assert.Equal(t, 1, rec.Count("warn"))
}

func TestNotify_InvalidInput(t *testing.T) {
	t.Parallel()

	ctrl := newCtrl(t)
	st := NewMockdocumentStore(ctrl)
	sender := NewMockpushSender(ctrl)
	d, _ := newTestDispatcher(st, sender, testlog.New())

	cases := []struct {
		name                      string
		recipient, title, message string
	}{
		{"no recipient", " ", "t", "m"},
		{"no title", "F1", "", "m"},
		{"no message", "F1", "t", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Notify(context.Background(), tc.recipient, tc.title, tc.message, nil)
			require.ErrorIs(t, err, apperr.ErrInvalid)
		})
	}
}
