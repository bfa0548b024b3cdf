package mailer

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// Dispatcher delivers messages on a background goroutine so a slow or
// failing transport never blocks or fails the request that produced the
// mail. Send failures are logged and dropped; nothing is retried.
type Dispatcher struct {
	mailer    Mailer
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

func NewDispatcher(m Mailer, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	d := &Dispatcher{
		mailer: m,
		ch:     make(chan Message, buffer),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			// Drain whatever was enqueued before Close.
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	if err := d.mailer.Send(context.Background(), msg); err != nil {
		log.Printf("mailer: send failed id=%s to=%v: %v", msg.ID, msg.To, err)
	}
}

// Enqueue hands off a message without blocking the caller. When the
// buffer is full the message is dropped and counted; the request that
// produced it already succeeded.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.ch <- msg:
	case <-d.done:
	default:
		d.dropped.Add(1)
		log.Printf("mailer: buffer full, dropped id=%s to=%v", msg.ID, msg.To)
	}
}

// Dropped reports how many messages were discarded on a full buffer.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Close stops the dispatcher after draining the queue.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}
