package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dm-service/internal/mocks"
)

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewEventEmitter(publisher, "dm-service", "test")

	publisher.On("Publish", mock.Anything, KeyMessageCreated, mock.MatchedBy(func(event any) bool {
		env, ok := event.(EventEnvelope)
		if !ok {
			return false
		}
		return env.SchemaVersion == 1 &&
			env.EventType == "message_created" &&
			env.Service == "dm-service" &&
			env.Environment == "test" &&
			env.OccurredAt != "" &&
			env.Payload != nil
	})).Return(nil).Once()

	emitter.Emit(context.Background(), KeyMessageCreated, "message_created", map[string]any{"id": 7})

	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewEventEmitter(publisher, "dm-service", "test")

	publisher.On("Publish", mock.Anything, KeyChatDeleted, mock.Anything).Return(assert.AnError).Once()

	// best-effort: a broken publisher must not reach the caller
	emitter.Emit(context.Background(), KeyChatDeleted, "chat_deleted", map[string]any{"chat_id": 5})

	publisher.AssertExpectations(t)
}

func TestEmitIsNilSafe(t *testing.T) {
	var emitter *EventEmitter
	emitter.Emit(context.Background(), KeyStatusUpdated, "message_status_updated", nil)

	disabled := NewEventEmitter(nil, "dm-service", "test")
	disabled.Emit(context.Background(), KeyStatusUpdated, "message_status_updated", nil)
}
