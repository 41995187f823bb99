package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubUsers map[int64]*model.User

func (u stubUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	return u[id], nil
}

type recordingChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Notification
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(ctx context.Context, _ *model.User, n Notification) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return c.err
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type blockingChannel struct{}

func (blockingChannel) Name() string { return "slow" }

func (blockingChannel) Send(ctx context.Context, _ *model.User, _ Notification) error {
	<-ctx.Done()
	return ctx.Err()
}

type memNotifications struct {
	mu    sync.Mutex
	items []*model.Notification
}

func (m *memNotifications) Create(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, n)
	return nil
}

func (m *memNotifications) ListByUser(_ context.Context, userID int64, _ int) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range m.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func TestDispatcherFansOutToEveryChannel(t *testing.T) {
	users := stubUsers{1: {ID: 1, FirstName: "Ana", Email: "ana@example.com"}}
	first := &recordingChannel{name: "first"}
	failing := &recordingChannel{name: "failing", err: errors.New("smtp down")}
	inbox := &memNotifications{}

	d := NewDispatcher(users, zap.NewNop(), time.Second, first, failing, NewInAppChannel(inbox))
	d.Notify(context.Background(), Notification{UserID: 1, Kind: KindBookingConfirmed, Title: "Reserva confirmada", Body: "..."})
	d.Wait()

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, failing.count())

	stored, err := inbox.ListByUser(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, string(KindBookingConfirmed), stored[0].Kind)
	assert.Equal(t, "Reserva confirmada", stored[0].Title)
}

func TestDispatcherSkipsUnknownUser(t *testing.T) {
	ch := &recordingChannel{name: "first"}

	d := NewDispatcher(stubUsers{}, zap.NewNop(), time.Second, ch)
	d.Notify(context.Background(), Notification{UserID: 99, Kind: KindNewBooking})
	d.Wait()

	assert.Zero(t, ch.count())
}

func TestDispatcherOutlivesRequestContext(t *testing.T) {
	users := stubUsers{1: {ID: 1}}
	ch := &recordingChannel{name: "first"}

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(users, zap.NewNop(), time.Second, ch)
	d.Notify(ctx, Notification{UserID: 1, Kind: KindRefundProcessed})
	cancel()
	d.Wait()

	assert.Equal(t, 1, ch.count())
}

func TestDispatcherChannelTimeout(t *testing.T) {
	users := stubUsers{1: {ID: 1}}
	fast := &recordingChannel{name: "fast"}

	d := NewDispatcher(users, zap.NewNop(), 20*time.Millisecond, blockingChannel{}, fast)

	start := time.Now()
	d.Notify(context.Background(), Notification{UserID: 1, Kind: KindPayoutTransferred})
	d.Wait()

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, fast.count())
}
