package queue_test

import (
	"testing"

	"github.com/jonwraymond/offlinekit/queue"
	"github.com/jonwraymond/offlinekit/queue/queuetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	queuetest.Run(t, func(t *testing.T) queue.Store {
		return queue.NewMemoryStore()
	})
}
