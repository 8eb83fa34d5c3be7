package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"activity-booking-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush
// library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool notifies subscribed browsers when a booking gets
// promoted from blocked to accepted. It implements the matching
// engine's Dispatcher interface.
type WorkerPool struct {
	size    int
	jobs    chan uint
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan uint, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case bookingID := <-wp.jobs:
			wp.notifyPromotion(ctx, bookingID)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a promoted booking for notification.
func (wp *WorkerPool) Dispatch(bookingID uint) {
	wp.jobs <- bookingID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan uint {
	return wp.jobs
}

// notifyPromotion fetches the subscriptions of the booking's attendee
// and tells them that a spot opened up.
func (wp *WorkerPool) notifyPromotion(ctx context.Context, bookingID uint) {
	var booking model.Booking
	err := wp.db.WithContext(ctx).
		Preload("Occasion.Activity").
		First(&booking, bookingID).Error
	if err != nil {
		log.Printf("Error fetching booking %d: %v", bookingID, err)
		return
	}

	var subscriptions []model.PushSubscription
	err = wp.db.WithContext(ctx).
		Joins("JOIN subscription_attendee_mapping sam ON sam.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sam.attendee_id = ?", booking.AttendeeID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for attendee %d: %v", booking.AttendeeID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for booking %d", len(subscriptions), bookingID)

	message := fmt.Sprintf(
		"A spot opened up: the booking for %q was accepted.",
		booking.Occasion.Activity.Title,
	)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// expired subscriptions are removed on the spot
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
