package refund

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"calendar-booking-backend/internal/store"
)

// Request is one outbound refund toward the payment collaborator.
type Request struct {
	BookingID        int64   `json:"booking_id"`
	BookingReference string  `json:"booking_reference"`
	Amount           float64 `json:"amount"`
}

// Sender delivers a refund request to the payment provider. Delivery is
// at-least-once; the provider's handler is idempotent on booking reference.
type Sender interface {
	Send(ctx context.Context, req Request) error
}

// HTTPSender posts refund requests to the payment collaborator's endpoint.
type HTTPSender struct {
	URL    string
	Client *http.Client
}

// Send submits one refund request and treats any 2xx as accepted.
func (s *HTTPSender) Send(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal refund request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build refund request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send refund request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("refund request rejected with status %d", resp.StatusCode)
	}
	return nil
}

// WorkerPool manages a pool of workers delivering refund requests. The
// booking service dispatches into it fire-and-forget; refund completion
// flows back later through the payment-status callback.
type WorkerPool struct {
	size        int
	jobs        chan Request
	store       store.Store
	sender      Sender
	maxAttempts int
	backoff     time.Duration
}

// NewWorkerPool creates a new refund worker pool.
func NewWorkerPool(size int, st store.Store, sender Sender) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:        size,
		jobs:        make(chan Request, size*16),
		store:       st,
		sender:      sender,
		maxAttempts: 3,
		backoff:     2 * time.Second,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// Dispatch queues a refund request. It satisfies booking.RefundDispatcher.
func (wp *WorkerPool) Dispatch(bookingID int64, bookingReference string, amount float64) {
	req := Request{BookingID: bookingID, BookingReference: bookingReference, Amount: amount}
	select {
	case wp.jobs <- req:
	default:
		// Queue full; the admin can re-trigger the refund manually.
		log.Printf("refund queue full, dropping request for booking %s", bookingReference)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Request {
	return wp.jobs
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Refund worker %d started", id)
	for {
		select {
		case req := <-wp.jobs:
			wp.process(ctx, req)
		case <-ctx.Done():
			log.Printf("Refund worker %d shutting down", id)
			return
		}
	}
}

// process retries delivery with a flat backoff, then records the accepted
// request in the booking's history.
func (wp *WorkerPool) process(ctx context.Context, req Request) {
	var err error
	for attempt := 1; attempt <= wp.maxAttempts; attempt++ {
		if err = wp.sender.Send(ctx, req); err == nil {
			break
		}
		log.Printf("refund request for booking %s failed (attempt %d/%d): %v",
			req.BookingReference, attempt, wp.maxAttempts, err)
		select {
		case <-time.After(wp.backoff):
		case <-ctx.Done():
			return
		}
	}
	if err != nil {
		log.Printf("giving up on refund request for booking %s after %d attempts",
			req.BookingReference, wp.maxAttempts)
		return
	}

	if err := wp.store.RecordRefundRequested(ctx, req.BookingID, req.Amount); err != nil {
		log.Printf("failed to record refund request for booking %s: %v", req.BookingReference, err)
	}
}
