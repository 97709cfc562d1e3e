package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"milk-herd-backend/internal/metrics"
	"milk-herd-backend/internal/model"
)

// queueFactor sizes the job buffer relative to the number of workers.
const queueFactor = 16

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool tells subscribers following a sire or dam about newly
// registered offspring.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*queueFactor),
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
		case calfID := <-wp.jobs:
			log.Printf("Worker %d processing offspring %d", id, calfID)
			wp.notifyOffspring(ctx, calfID)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a newly registered animal. It never blocks the caller;
// false means the queue was full and the event was dropped.
func (wp *WorkerPool) Dispatch(calfID int64) bool {
	select {
	case wp.jobs <- calfID:
		return true
	default:
		log.Printf("Notification queue full, dropping offspring %d", calfID)
		return false
	}
}

// Message is the push payload announcing calf to followers of parent.
func Message(calf, parent *model.Animal) string {
	return fmt.Sprintf("New offspring %s recorded for %s", calf.DisplayName(), parent.DisplayName())
}

func (wp *WorkerPool) notifyOffspring(ctx context.Context, calfID int64) {
	var calf model.Animal
	if err := wp.db.WithContext(ctx).First(&calf, calfID).Error; err != nil {
		log.Printf("Error fetching offspring %d: %v", calfID, err)
		return
	}

	var parentIDs []int64
	for _, id := range []*int64{calf.SireID, calf.DamID} {
		if id != nil {
			parentIDs = append(parentIDs, *id)
		}
	}
	if len(parentIDs) == 0 {
		return
	}

	var parents []model.Animal
	if err := wp.db.WithContext(ctx).Order("id").Find(&parents, parentIDs).Error; err != nil {
		log.Printf("Error fetching parents of %d: %v", calfID, err)
		return
	}

	// A subscriber following both parents hears about the calf once.
	notified := make(map[string]bool)
	for i := range parents {
		parent := &parents[i]
		var subscriptions []model.PushSubscription
		err := wp.db.WithContext(ctx).
			Joins("JOIN subscription_animal_mapping sam ON sam.push_subscription_endpoint = push_subscriptions.endpoint").
			Where("sam.animal_id = ?", parent.ID).
			Find(&subscriptions).Error
		if err != nil {
			log.Printf("Error fetching subscriptions for animal %d: %v", parent.ID, err)
			continue
		}
		if len(subscriptions) == 0 {
			continue
		}

		log.Printf("Sending %d notifications for offspring %d of %d", len(subscriptions), calf.ID, parent.ID)
		payload := []byte(Message(&calf, parent))
		for _, sub := range subscriptions {
			if notified[sub.Endpoint] {
				continue
			}
			notified[sub.Endpoint] = true
			wp.sendNotification(ctx, sub, payload)
		}
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
		metrics.ObserveNotification(metrics.NotificationFailed)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		metrics.ObserveNotification(metrics.NotificationExpired)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	case resp.StatusCode >= 400:
		log.Printf("Push service rejected notification to %s: %s", sub.Endpoint, resp.Status)
		metrics.ObserveNotification(metrics.NotificationFailed)
	default:
		metrics.ObserveNotification(metrics.NotificationSent)
	}
}
