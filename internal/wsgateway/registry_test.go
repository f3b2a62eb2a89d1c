package wsgateway

import (
	"testing"
)

func TestConnectionRegistry_AddRemove(t *testing.T) {
	registry := NewConnectionRegistry()

	conn := &Connection{ID: "conn-1", UserID: "user-1"}
	registry.Add(conn)

	retrieved, exists := registry.Get("conn-1")
	if !exists {
		t.Error("Expected connection to exist")
	}
	if retrieved.ID != "conn-1" {
		t.Errorf("Expected connection ID conn-1, got %s", retrieved.ID)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", registry.Count())
	}

	registry.Remove("conn-1")

	if _, exists = registry.Get("conn-1"); exists {
		t.Error("Expected connection to be removed")
	}
	if registry.Count() != 0 {
		t.Errorf("Expected 0 connections, got %d", registry.Count())
	}

	// removing an unknown connection is a no-op
	registry.Remove("conn-1")
}

func TestConnectionRegistry_ListIndex(t *testing.T) {
	registry := NewConnectionRegistry()

	conn1 := &Connection{ID: "conn-1"}
	conn2 := &Connection{ID: "conn-2"}
	registry.Add(conn1)
	registry.Add(conn2)

	registry.IndexList("trending", conn1)
	registry.IndexList("trending", conn2)
	registry.IndexList("streams", conn1)

	if registry.CountByList("trending") != 2 {
		t.Errorf("Expected 2 trending subscribers, got %d", registry.CountByList("trending"))
	}
	if registry.CountByList("streams") != 1 {
		t.Errorf("Expected 1 streams subscriber, got %d", registry.CountByList("streams"))
	}
	if len(registry.GetByList("explore")) != 0 {
		t.Error("Expected no explore subscribers")
	}

	registry.UnindexList("trending", "conn-1")
	if registry.CountByList("trending") != 1 {
		t.Errorf("Expected 1 trending subscriber after unindex, got %d", registry.CountByList("trending"))
	}

	subs := registry.GetByList("trending")
	if len(subs) != 1 || subs[0].ID != "conn-2" {
		t.Errorf("Expected only conn-2 subscribed, got %v", subs)
	}
}

func TestConnectionRegistry_RoomIndex(t *testing.T) {
	registry := NewConnectionRegistry()

	conn := &Connection{ID: "conn-1"}
	registry.Add(conn)
	registry.IndexRoom("room-1", conn)

	if registry.CountByRoom("room-1") != 1 {
		t.Errorf("Expected 1 room member, got %d", registry.CountByRoom("room-1"))
	}

	registry.UnindexRoom("room-1", "conn-1")
	if registry.CountByRoom("room-1") != 0 {
		t.Errorf("Expected empty room, got %d", registry.CountByRoom("room-1"))
	}
}

func TestConnectionRegistry_RemoveSweepsIndexes(t *testing.T) {
	registry := NewConnectionRegistry()

	conn := &Connection{ID: "conn-1"}
	registry.Add(conn)
	registry.IndexList("trending", conn)
	registry.IndexRoom("room-1", conn)

	registry.Remove("conn-1")

	if registry.CountByList("trending") != 0 {
		t.Error("Expected list index swept on remove")
	}
	if registry.CountByRoom("room-1") != 0 {
		t.Error("Expected room index swept on remove")
	}
}

func TestConnectionRegistry_GetAll(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Add(&Connection{ID: "conn-1"})
	registry.Add(&Connection{ID: "conn-2"})

	all := registry.GetAll()
	if len(all) != 2 {
		t.Errorf("Expected 2 connections, got %d", len(all))
	}
}
