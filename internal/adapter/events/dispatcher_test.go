package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeSink fails the first failures writes, then records messages.
type fakeSink struct {
	mu       sync.Mutex
	failures int
	writes   int
	got      []Message
	closed   bool
}

func (s *fakeSink) Write(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.got = append(s.got, msg)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.got...)
}

type nopMetrics struct{}

func (nopMetrics) PayoutRecorded(domain.BillableEventKind, string, int64) {}
func (nopMetrics) WalletOperation(string, string)                         {}
func (nopMetrics) WithdrawalTransition(domain.WithdrawalStatus)           {}
func (nopMetrics) EventDropped()                                          {}

func testEventsConfig() config.EventsConfig {
	return config.EventsConfig{
		Driver:       "log",
		TopicPrefix:  "ledger.",
		BufferSize:   8,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	}
}

func sampleEvent() domain.EarningsCredited {
	return domain.EarningsCredited{
		CampaignID:  uuid.New(),
		CreatorID:   uuid.New(),
		EventID:     uuid.New(),
		EntryType:   domain.LedgerViewPayout,
		PayoutCents: 10,
		FeeCents:    1,
		NetCents:    9,
		OccurredAt:  time.Now().UTC(),
	}
}

func TestDispatcher_DeliversEnvelope(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, testEventsConfig(), nopMetrics{}, zerolog.Nop())
	go d.Run(context.Background())

	ev := sampleEvent()
	require.NoError(t, d.Publish(context.Background(), ev))
	require.NoError(t, d.Close(context.Background()))

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ledger.creator.earnings_credited", msgs[0].Topic)
	assert.Equal(t, []byte(ev.CreatorID.String()), msgs[0].Key)
	assert.True(t, sink.closed)

	var env Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Value, &env))
	assert.Equal(t, domain.EventEarningsCredited, env.Type)
	assert.Equal(t, ev.CreatorID.String(), env.Key)

	var payload domain.EarningsCredited
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, ev.NetCents, payload.NetCents)
	assert.Equal(t, ev.EventID, payload.EventID)
}

func TestDispatcher_RetriesUntilDelivered(t *testing.T) {
	sink := &fakeSink{failures: 2}
	d := NewDispatcher(sink, testEventsConfig(), nopMetrics{}, zerolog.Nop())
	go d.Run(context.Background())

	require.NoError(t, d.Publish(context.Background(), sampleEvent()))
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, sink.messages(), 1)
	assert.Equal(t, 3, sink.writes)
}

func TestDispatcher_DropsAfterMaxAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := mocks.NewMockLedgerMetrics(ctrl)
	metrics.EXPECT().EventDropped().Times(1)

	sink := &fakeSink{failures: 10}
	var logs bytes.Buffer
	d := NewDispatcher(sink, testEventsConfig(), metrics, zerolog.New(&logs))
	go d.Run(context.Background())

	require.NoError(t, d.Publish(context.Background(), sampleEvent()))
	require.NoError(t, d.Close(context.Background()))

	assert.Empty(t, sink.messages())
	assert.Equal(t, 3, sink.writes)
	assert.Contains(t, logs.String(), "event delivery attempts exhausted")
}

func TestDispatcher_FullBufferDropsWithoutBlocking(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := mocks.NewMockLedgerMetrics(ctrl)
	metrics.EXPECT().EventDropped().Times(1)

	cfg := testEventsConfig()
	cfg.BufferSize = 1
	d := NewDispatcher(&fakeSink{}, cfg, metrics, zerolog.Nop())

	// Run is not started, so the queue never drains.
	require.NoError(t, d.Publish(context.Background(), sampleEvent()))
	err := d.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, ErrBufferFull)
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, testEventsConfig(), nopMetrics{}, zerolog.Nop())
	go d.Run(context.Background())
	require.NoError(t, d.Close(context.Background()))

	err := d.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, d.Close(context.Background()), "second close is harmless")
}

func TestDispatcher_CloseTimesOutWithoutRunner(t *testing.T) {
	d := NewDispatcher(&fakeSink{}, testEventsConfig(), nopMetrics{}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher_PreservesOrderPerDispatcher(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, testEventsConfig(), nopMetrics{}, zerolog.Nop())
	go d.Run(context.Background())

	creator := uuid.New()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, d.Publish(context.Background(), domain.WithdrawalRequested{
			WithdrawalID: uuid.New(),
			CreatorID:    creator,
			GrossCents:   i * 1000,
		}))
	}
	require.NoError(t, d.Close(context.Background()))

	msgs := sink.messages()
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		var env Envelope
		require.NoError(t, json.Unmarshal(m.Value, &env))
		var p domain.WithdrawalRequested
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		assert.Equal(t, int64(i+1)*1000, p.GrossCents)
	}
}

func TestNewSink(t *testing.T) {
	sink, err := NewSink(config.EventsConfig{Driver: "log"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogSink{}, sink)

	_, err = NewSink(config.EventsConfig{Driver: "kafka"}, zerolog.Nop())
	assert.Error(t, err, "kafka without brokers")

	sink, err = NewSink(config.EventsConfig{Driver: "kafka", Brokers: []string{"localhost:9092"}}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &KafkaSink{}, sink)
	assert.NoError(t, sink.Close())

	_, err = NewSink(config.EventsConfig{Driver: "nats"}, zerolog.Nop())
	assert.Error(t, err)
}
