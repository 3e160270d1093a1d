package livesync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jakeliukayak/queue/internal/models"
	"github.com/jakeliukayak/queue/internal/store"
)

// Feed watches the ticket store's change stream and pushes refreshed view
// state to subscribers. No diffing: any change event means "refetch now",
// never a delta. Callback order across events is not guaranteed to match
// store write order.
type Feed struct {
	store     store.TicketStore
	interval  time.Duration
	batchSize int

	mu          sync.Mutex
	cursor      store.ChangeCursor
	nextID      int
	waitingSubs map[int]func([]models.Ticket)
	calledSubs  map[int]func(*models.Ticket)
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// Subscription is the cancel handle for one subscriber. Callers must Cancel
// on teardown; the feed keeps delivering until they do.
type Subscription struct {
	cancel func()
	once   sync.Once
}

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

func NewFeed(st store.TicketStore, cfg Config) *Feed {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Feed{
		store:     st,
		interval:  interval,
		batchSize: batch,
		// Changes from before this process started are stale; views get
		// their initial state from a direct fetch, not the feed.
		cursor:      store.ChangeCursor{LastEventTime: time.Now().UTC()},
		waitingSubs: make(map[int]func([]models.Ticket)),
		calledSubs:  make(map[int]func(*models.Ticket)),
	}
}

// SubscribeWaiting registers fn to receive the refreshed waiting list after
// every store change. Subscriptions are independent; any number may be
// active at once. fn runs with the feed lock held and must not call
// Subscribe* or Cancel on this feed.
func (f *Feed) SubscribeWaiting(fn func([]models.Ticket)) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.waitingSubs[id] = fn
	return &Subscription{cancel: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.waitingSubs, id)
	}}
}

// SubscribeCalled registers fn to receive the currently called ticket (nil
// when none) after every store change. The same locking constraint as
// SubscribeWaiting applies to fn.
func (f *Feed) SubscribeCalled(fn func(*models.Ticket)) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.calledSubs[id] = fn
	return &Subscription{cancel: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.calledSubs, id)
	}}
}

// Run polls the change stream until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

func (f *Feed) poll(ctx context.Context) {
	f.mu.Lock()
	cursor := f.cursor
	f.mu.Unlock()

	events, err := f.store.ListChangeEvents(ctx, cursor, f.batchSize)
	if err != nil {
		log.Printf("livesync: list change events: %v", err)
		return
	}
	if len(events) == 0 {
		return
	}

	last := events[len(events)-1]
	f.mu.Lock()
	f.cursor = store.ChangeCursor{LastEventTime: last.CreatedAt, LastEventID: last.EventID}
	f.mu.Unlock()

	f.refresh(ctx)
}

// refresh refetches each active view once and fans it out. Delivery holds
// the feed mutex so a cancelled subscription never sees another callback;
// the mutex is not reentrant, so callbacks must not touch the feed.
func (f *Feed) refresh(ctx context.Context) {
	f.mu.Lock()
	hasWaiting := len(f.waitingSubs) > 0
	hasCalled := len(f.calledSubs) > 0
	f.mu.Unlock()

	if hasWaiting {
		waiting, err := f.store.ListWaiting(ctx)
		if err != nil {
			log.Printf("livesync: refresh waiting list: %v", err)
		} else {
			f.mu.Lock()
			for _, fn := range f.waitingSubs {
				fn(waiting)
			}
			f.mu.Unlock()
		}
	}

	if hasCalled {
		ticket, found, err := f.store.GetCalledTicket(ctx)
		if err != nil {
			log.Printf("livesync: refresh called ticket: %v", err)
			return
		}
		var current *models.Ticket
		if found {
			current = &ticket
		}
		f.mu.Lock()
		for _, fn := range f.calledSubs {
			fn(current)
		}
		f.mu.Unlock()
	}
}
