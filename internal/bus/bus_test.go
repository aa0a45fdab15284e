package bus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishDeliversToOtherSessions(t *testing.T) {
	b := New(zap.NewNop())
	origin := uuid.New()
	other := uuid.New()

	var got []string
	b.Subscribe(&Subscriber{
		SessionID: other,
		Kind:      KindChannel,
		Receive: func(m Message) {
			got = append(got, m.(ChannelMessage).Text)
		},
	})

	b.Publish(ChannelMessage{SessionID: origin, ChannelID: 1, Text: "hello"})

	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0])
}

func TestPublishSuppressesOriginSession(t *testing.T) {
	b := New(zap.NewNop())
	origin := uuid.New()

	delivered := false
	b.Subscribe(&Subscriber{
		SessionID: origin,
		Kind:      KindChannel,
		Receive:   func(Message) { delivered = true },
	})

	b.Publish(ChannelMessage{SessionID: origin, ChannelID: 1, Text: "self"})

	assert.False(t, delivered, "publisher's own subscriber must not receive the message")
}

func TestPublishHonorsFilter(t *testing.T) {
	b := New(zap.NewNop())
	origin := uuid.New()

	var got []int
	sub := func(channelID int) {
		b.Subscribe(&Subscriber{
			SessionID: uuid.New(),
			Kind:      KindChannel,
			Filter: func(m Message) bool {
				return m.(ChannelMessage).ChannelID == channelID
			},
			Receive: func(Message) { got = append(got, channelID) },
		})
	}
	sub(1)
	sub(2)

	b.Publish(ChannelMessage{SessionID: origin, ChannelID: 2, Text: "scoped"})

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0])
}

func TestPublishIsolatesPanickingSubscriber(t *testing.T) {
	b := New(zap.NewNop())
	origin := uuid.New()

	delivered := false
	b.Subscribe(&Subscriber{
		SessionID: uuid.New(),
		Kind:      KindGlobal,
		Receive:   func(Message) { panic("boom") },
	})
	b.Subscribe(&Subscriber{
		SessionID: uuid.New(),
		Kind:      KindGlobal,
		Receive:   func(Message) { delivered = true },
	})

	require.NotPanics(t, func() {
		b.Publish(GlobalMessage{SessionID: origin, Text: "announce"})
	})
	assert.True(t, delivered, "subscribers after a panicking one must still be delivered")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(zap.NewNop())
	origin := uuid.New()

	count := 0
	sub := &Subscriber{
		SessionID: uuid.New(),
		Kind:      KindUserLoginOrOut,
		Receive:   func(Message) { count++ },
	}
	b.Subscribe(sub)

	b.Publish(UserLoginOrOutMessage{SessionID: origin, UserID: 1, UserName: "alice", LoggedIn: true})
	b.Unsubscribe(sub)
	b.Publish(UserLoginOrOutMessage{SessionID: origin, UserID: 1, UserName: "alice", LoggedIn: false})

	assert.Equal(t, 1, count)
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	b := New(zap.NewNop())

	assert.NotPanics(t, func() {
		b.Unsubscribe(&Subscriber{Kind: KindEmote})
		b.Unsubscribe(nil)
	})
}

func TestPublishOnlyReachesMatchingKind(t *testing.T) {
	b := New(zap.NewNop())
	origin := uuid.New()

	var kinds []Kind
	for _, k := range []Kind{KindChannel, KindGlobal, KindEmote} {
		k := k
		b.Subscribe(&Subscriber{
			SessionID: uuid.New(),
			Kind:      k,
			Receive:   func(Message) { kinds = append(kinds, k) },
		})
	}

	b.Publish(EmoteMessage{SessionID: origin, ChannelID: 3, Text: "waves"})

	require.Len(t, kinds, 1)
	assert.Equal(t, KindEmote, kinds[0])
}
