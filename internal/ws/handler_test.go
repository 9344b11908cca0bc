package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/models"
	"dm-service/internal/presence"
)

type captureConn struct {
	payloads [][]byte
}

func (c *captureConn) Send(payload []byte) bool {
	c.payloads = append(c.payloads, payload)
	return true
}

func newFrameHandler() (*Handler, *presence.Registry) {
	registry := presence.NewRegistry()
	router := presence.NewRouter(registry)
	return NewHandler(registry, router, nil), registry
}

func TestHandleFrameRoutesToOnlineReceiver(t *testing.T) {
	handler, registry := newFrameHandler()

	receiver := &captureConn{}
	registry.Register(2, receiver)
	receiver.payloads = nil // drop the presence broadcast

	frame := []byte(`{"event":"send_message","receiver_id":2,"message":{"text":"hi"}}`)
	handler.handleFrame(nil, frame)

	require.Len(t, receiver.payloads, 1)

	var event models.ChatEvent
	require.NoError(t, json.Unmarshal(receiver.payloads[0], &event))
	assert.Equal(t, models.EventReceiveMessage, event.Type)
	assert.JSONEq(t, `{"text":"hi"}`, string(event.Message))
}

func TestHandleFrameOfflineReceiverIsDropped(t *testing.T) {
	handler, _ := newFrameHandler()

	// must not panic or block when nobody is registered
	handler.handleFrame(nil, []byte(`{"event":"send_message","receiver_id":9,"message":{"text":"hi"}}`))
}

func TestHandleFrameIgnoresMalformedInput(t *testing.T) {
	handler, registry := newFrameHandler()

	receiver := &captureConn{}
	registry.Register(2, receiver)
	receiver.payloads = nil

	handler.handleFrame(nil, []byte(`not json`))
	handler.handleFrame(nil, []byte(`{"event":"send_message","receiver_id":2}`))
	handler.handleFrame(nil, []byte(`{"event":"unknown","receiver_id":2,"message":{}}`))

	assert.Empty(t, receiver.payloads)
}
