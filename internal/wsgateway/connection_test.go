package wsgateway

import (
	"testing"
)

func TestConnection_ListSubscriptions(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", nil)

	if !conn.SubscribeList("trending") {
		t.Error("Expected first subscribe to succeed")
	}
	if conn.SubscribeList("trending") {
		t.Error("Expected repeat subscribe to be a no-op")
	}
	if !conn.IsSubscribed("trending") {
		t.Error("Expected connection subscribed to trending")
	}
	if conn.IsSubscribed("explore") {
		t.Error("Expected connection not subscribed to explore")
	}

	if !conn.UnsubscribeList("trending") {
		t.Error("Expected unsubscribe to succeed")
	}
	if conn.UnsubscribeList("trending") {
		t.Error("Expected repeat unsubscribe to be a no-op")
	}
	if len(conn.Lists()) != 0 {
		t.Errorf("Expected no subscriptions, got %v", conn.Lists())
	}
}

func TestConnection_RoomMembership(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", nil)

	if !conn.JoinRoom("room-1") {
		t.Error("Expected first join to succeed")
	}
	if conn.JoinRoom("room-1") {
		t.Error("Expected repeat join to be a no-op")
	}
	if !conn.InRoom("room-1") {
		t.Error("Expected connection in room")
	}

	if !conn.LeaveRoom("room-1") {
		t.Error("Expected leave to succeed")
	}
	if conn.LeaveRoom("room-1") {
		t.Error("Expected repeat leave to be a no-op")
	}
	if conn.InRoom("room-1") {
		t.Error("Expected connection out of room")
	}
}

func TestConnection_SendMessage(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", nil)

	msg := &ServerMessage{Type: MessageTypePong}
	if err := conn.SendMessage(msg); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	select {
	case data := <-conn.Send:
		if len(data) == 0 {
			t.Error("Expected serialized message on send channel")
		}
	default:
		t.Fatal("Expected message queued on send channel")
	}
}

func TestConnection_SendErrorNeverBlocks(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", nil)

	// fill the channel; further errors are dropped instead of blocking
	for i := 0; i < cap(conn.Send); i++ {
		conn.Send <- []byte("{}")
	}
	if err := conn.SendError("list_unknown", "no such list"); err != nil {
		t.Fatalf("SendError failed: %v", err)
	}
}
