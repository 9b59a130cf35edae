package feed

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"

	"github.com/CesarCrz/cEatsv2-sub000/internal/common/logger"
)

func TestRoutingKeyPerBranch(t *testing.T) {
	assert.Equal(t, "order.b1", routingKey("b1"))
}

func TestWatchCloseSurfacesBrokerError(t *testing.T) {
	sub := &rabbitSubscription{status: make(chan Status, 8), lg: logger.New("order-feed")}
	closed := make(chan *amqp.Error, 1)
	done := make(chan struct{})
	go func() { sub.watchClose(closed); close(done) }()

	closed <- &amqp.Error{Code: amqp.ChannelError, Reason: "server shutdown", Server: true}
	select {
	case st := <-sub.status:
		assert.Equal(t, StatusDisconnected, st)
	case <-time.After(time.Second):
		t.Fatal("broker error never surfaced as a disconnect")
	}
	<-done
}

func TestWatchCloseGracefulIsSilent(t *testing.T) {
	sub := &rabbitSubscription{status: make(chan Status, 8), lg: logger.New("order-feed")}
	closed := make(chan *amqp.Error)
	done := make(chan struct{})
	go func() { sub.watchClose(closed); close(done) }()

	// Client-side Close: the notify channel closes without an error.
	close(closed)
	<-done
	select {
	case st := <-sub.status:
		t.Fatalf("graceful close must push no status, got %s", st)
	default:
	}
}

func TestPushStatusNeverBlocks(t *testing.T) {
	sub := &rabbitSubscription{status: make(chan Status, 1)}
	sub.pushStatus(StatusConnecting)
	sub.pushStatus(StatusConnected)
	sub.pushStatus(StatusDisconnected)
	assert.Equal(t, StatusConnecting, <-sub.status)
}
