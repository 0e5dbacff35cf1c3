package pubsub

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/pkg/logger"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/redis"
)

// Broker publishes progress events onto the broadcast channels. Events
// are fire-and-forget: there is no persistence or replay, subscribers
// that are offline at publish time never see the event.
type Broker struct {
	adapter redis.RedisAdapter
}

func NewBroker(adapter redis.RedisAdapter) *Broker {
	return &Broker{adapter: adapter}
}

func (b *Broker) publish(ctx context.Context, channel, key, status string, data interface{}) error {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = encoded
	}

	payload, err := json.Marshal(Event{
		Key:       key,
		Status:    status,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return b.adapter.Publish(ctx, channel, payload)
}

// PublishCampaignUpdate emits a campaign-progress event keyed by
// campaign id.
func (b *Broker) PublishCampaignUpdate(ctx context.Context, campaignID int64, status string, data interface{}) error {
	return b.publish(ctx, ChannelCampaignUpdates, strconv.FormatInt(campaignID, 10), status, data)
}

// PublishDeliveryStatus emits a recipient-status event keyed by
// communication log id.
func (b *Broker) PublishDeliveryStatus(ctx context.Context, logID int64, status string, data interface{}) error {
	return b.publish(ctx, ChannelDeliveryStatus, strconv.FormatInt(logID, 10), status, data)
}

// Subscriber owns one Redis subscription per process and fans incoming
// events out to registered callbacks. The registry is concurrency-safe;
// registration and deregistration may happen while events are being
// dispatched.
type Subscriber struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]func(Event)
	seq    atomic.Uint64
	ps     *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber subscribes to both broadcast channels and starts the
// dispatch loop. Call Close on shutdown.
func NewSubscriber(adapter redis.RedisAdapter) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscriber{
		subs:   make(map[string]map[uint64]func(Event)),
		ps:     adapter.Subscribe(ctx, ChannelCampaignUpdates, ChannelDeliveryStatus),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.dispatchLoop(ctx)
	return s
}

func (s *Subscriber) dispatchLoop(ctx context.Context) {
	defer close(s.done)
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn("dropping malformed broadcast event", "channel", msg.Channel, "error", err)
				continue
			}
			s.notify(channelName(msg.Channel), event)
		}
	}
}

// channelName strips any adapter key prefix from an incoming channel.
func channelName(raw string) string {
	for _, known := range []string{ChannelCampaignUpdates, ChannelDeliveryStatus} {
		if strings.HasSuffix(raw, known) {
			return known
		}
	}
	return raw
}

func (s *Subscriber) notify(channel string, event Event) {
	s.mu.RLock()
	callbacks := make([]func(Event), 0, len(s.subs[channel]))
	for _, cb := range s.subs[channel] {
		callbacks = append(callbacks, cb)
	}
	s.mu.RUnlock()

	for _, cb := range callbacks {
		// A panicking callback must not starve the others.
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("broadcast callback panicked", "channel", channel, "panic", r)
				}
			}()
			cb(event)
		}()
	}
}

// Subscribe registers a callback for every event on a channel. The
// returned function deregisters it; calling it more than once is safe.
func (s *Subscriber) Subscribe(channel string, cb func(Event)) func() {
	id := s.seq.Add(1)

	s.mu.Lock()
	if s.subs[channel] == nil {
		s.subs[channel] = make(map[uint64]func(Event))
	}
	s.subs[channel][id] = cb
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[channel], id)
			if len(s.subs[channel]) == 0 {
				delete(s.subs, channel)
			}
			s.mu.Unlock()
		})
	}
}

// SubscribeCampaign registers a callback that only sees
// campaign-updates events keyed by the given campaign.
func (s *Subscriber) SubscribeCampaign(campaignID int64, cb func(Event)) func() {
	key := strconv.FormatInt(campaignID, 10)
	return s.Subscribe(ChannelCampaignUpdates, func(e Event) {
		if e.Key == key {
			cb(e)
		}
	})
}

// SubscribeDelivery registers a callback that only sees
// delivery-status events keyed by the given communication log.
func (s *Subscriber) SubscribeDelivery(logID int64, cb func(Event)) func() {
	key := strconv.FormatInt(logID, 10)
	return s.Subscribe(ChannelDeliveryStatus, func(e Event) {
		if e.Key == key {
			cb(e)
		}
	})
}

// Close tears down the Redis subscription and stops dispatching.
func (s *Subscriber) Close() error {
	s.cancel()
	err := s.ps.Close()
	<-s.done

	s.mu.Lock()
	s.subs = make(map[string]map[uint64]func(Event))
	s.mu.Unlock()
	return err
}
