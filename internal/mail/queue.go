package mail

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const sendTimeout = 30 * time.Second

// Queue delivers messages in the background so requests never wait on the
// mail provider.
type Queue struct {
	mailer Mailer
	log    logrus.FieldLogger
	jobs   chan Message
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewQueue(m Mailer, workers, size int, log logrus.FieldLogger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 100
	}
	q := &Queue{mailer: m, log: log, jobs: make(chan Message, size)}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for msg := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := q.mailer.Send(ctx, msg); err != nil {
			q.log.WithError(err).WithField("to", msg.To).Error("mail delivery failed")
		}
		cancel()
	}
}

// Enqueue schedules msg and reports whether it was accepted. A full or
// closed queue drops the message.
func (q *Queue) Enqueue(msg Message) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.log.WithField("to", msg.To).Warn("mail queue closed, message dropped")
		return false
	}
	select {
	case q.jobs <- msg:
		return true
	default:
		q.log.WithField("to", msg.To).Error("mail queue full, message dropped")
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be sent.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
