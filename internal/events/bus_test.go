package events_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-confero/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
	event       events.DomainEvent
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	s.lastTopic = topic
	s.lastPayload = payload
	s.event = events.DomainEvent{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	return s.event, nil
}

type captureNotifier struct {
	events []events.DomainEvent
}

func (c *captureNotifier) Notify(_ context.Context, event events.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	aggregate := uuid.New()
	payload := map[string]any{"registrationId": "123"}
	event, err := bus.Emit(context.Background(), events.TopicRegistrationCreated, aggregate, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicRegistrationCreated, store.lastTopic)
	require.JSONEq(t, `{"registrationId":"123"}`, string(store.lastPayload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)
}

func TestEmitRejectsMissingTopicAndAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "  ", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicPricingUpdated, uuid.Nil, nil)
	require.Error(t, err)
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), events.TopicPricingUpdated, uuid.New(), []byte("{not json"))
	require.Error(t, err)
}

func TestWebhookSignatureAndHeaders(t *testing.T) {
	type recorded struct {
		req  *http.Request
		body []byte
	}
	received := make(chan recorded, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- recorded{req: r, body: body}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	notifier := &events.WebhookNotifier{
		URL:     srv.URL,
		Secret:  "secret",
		Client:  srv.Client(),
		Enabled: true,
	}
	event := events.DomainEvent{
		ID:          uuid.New(),
		Topic:       events.TopicRegistrationCreated,
		AggregateID: uuid.New(),
		Payload:     json.RawMessage(`{"registrationId":"123"}`),
		OccurredAt:  time.Now(),
	}
	require.NoError(t, notifier.Notify(context.Background(), event))

	rec := <-received
	require.Equal(t, event.ID.String(), rec.req.Header.Get("X-Event-ID"))
	tsHeader := rec.req.Header.Get("X-Timestamp")
	require.NotEmpty(t, tsHeader)
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	require.NoError(t, err)
	want := events.ComputeSignature("secret", ts, event.ID.String(), rec.body)
	require.Equal(t, want, rec.req.Header.Get("X-Signature"))

	var envelope struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.body, &envelope))
	require.Equal(t, events.TopicRegistrationCreated, envelope.Topic)
	require.JSONEq(t, `{"registrationId":"123"}`, string(envelope.Data))
}

func TestWebhookRejectsNonLocalPlainHTTP(t *testing.T) {
	notifier := &events.WebhookNotifier{
		URL:     "http://example.com/hook",
		Secret:  "secret",
		Enabled: true,
	}
	err := notifier.Notify(context.Background(), events.DomainEvent{
		ID:    uuid.New(),
		Topic: events.TopicReminderSent,
	})
	require.Error(t, err)
}
