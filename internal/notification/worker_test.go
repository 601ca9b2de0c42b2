package notification

import (
	"testing"
	"time"
)

func TestWorkerDrainDispatchesQueuedJobs(t *testing.T) {
	store := &fakeStore{}
	service := NewNotificationServiceWith(store, &fakeEmailSender{})
	worker := NewDispatchWorker(service)

	worker.Enqueue(Job{
		Type:        TypeApplicationReceived,
		RecipientID: "student-1",
		Data:        map[string]string{"projectTitle": "Brand Audit"},
	})
	worker.Enqueue(Job{
		Type:        TypeNewApplication,
		RecipientID: "partner-1",
		Data:        map[string]string{"projectTitle": "Brand Audit"},
	})

	worker.drain()

	if len(store.notifications) != 2 {
		t.Fatalf("expected 2 dispatched notifications, got %d", len(store.notifications))
	}
}

func TestWorkerEnqueueNeverBlocks(t *testing.T) {
	store := &fakeStore{}
	service := NewNotificationServiceWith(store, &fakeEmailSender{})
	worker := NewDispatchWorker(service)

	// Overfill the buffer; the overflow must fall back to inline dispatch
	// instead of blocking or dropping.
	done := make(chan bool)
	go func() {
		for i := 0; i < 300; i++ {
			worker.Enqueue(Job{Type: TypeNewMessage, RecipientID: "student-1", Data: map[string]string{"message": "hi"}})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
}
