package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"fieldops-backend/internal/model"
)

// Audience selects which push subscriptions a job fans out to.
type Audience string

const (
	// AudienceOperators targets every operator subscription.
	AudienceOperators Audience = "operators"
	// AudienceTechnician targets the subscriptions of a single technician.
	AudienceTechnician Audience = "technician"
)

// Job is a single alert to deliver.
type Job struct {
	Audience    Audience
	UserID      string // technician id when Audience is AudienceTechnician
	OperationID string
	Message     string
}

// payload is the JSON body pushed to the browser. Sound mirrors the
// subscription's audible-cue preference so the client knows whether to play
// the chime.
type payload struct {
	Message     string `json:"message"`
	OperationID string `json:"operation_id"`
	Sound       bool   `json:"sound"`
}

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

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size),
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

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.deliver(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(job Job) {
	wp.jobs <- job
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// deliver fetches the matching subscriptions and sends the alert to each.
func (wp *WorkerPool) deliver(ctx context.Context, job Job) {
	var subscriptions []model.PushSubscription
	q := wp.db.WithContext(ctx)
	switch job.Audience {
	case AudienceOperators:
		q = q.Where("role = ?", "operator")
	case AudienceTechnician:
		q = q.Where("role = ? AND user_id = ?", "technician", job.UserID)
	default:
		log.Printf("Unknown notification audience %q, dropping job", job.Audience)
		return
	}
	if err := q.Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions for job %+v: %v", job, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for operation %s", len(subscriptions), job.OperationID)
	for _, sub := range subscriptions {
		body, err := json.Marshal(payload{
			Message:     job.Message,
			OperationID: job.OperationID,
			Sound:       sub.Sound,
		})
		if err != nil {
			log.Printf("Error marshalling notification payload: %v", err)
			return
		}
		wp.sendNotification(ctx, sub, body)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, body []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(body, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
