package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestRegistry spins up an httptest server emulating the registry API.
func newTestRegistry(t *testing.T) (*HTTPClient, *registryState) {
	t.Helper()
	state := &registryState{names: make(map[string]int64)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /listings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OwnerID  string `json:"owner_id"`
			FileName string `json:"file_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, exists := state.names[req.FileName]; exists {
			http.Error(w, "duplicate name", http.StatusConflict)
			return
		}
		state.nextID++
		state.names[req.FileName] = state.nextID
		json.NewEncoder(w).Encode(map[string]int64{"id": state.nextID})
	})
	mux.HandleFunc("DELETE /listings/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /listings", func(w http.ResponseWriter, r *http.Request) {
		out := []Listing{}
		for name, id := range state.names {
			out = append(out, Listing{ID: id, Name: name})
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("GET /listings/{id}/owner", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Owner{Name: "a.txt", Address: "10.0.0.7", Port: 9092})
	})
	mux.HandleFunc("GET /lease", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"seconds": 120})
	})
	mux.HandleFunc("POST /heartbeat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"alive": state.alive})
	})
	mux.HandleFunc("POST /disconnect", func(w http.ResponseWriter, r *http.Request) {
		state.names = make(map[string]int64)
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewHTTPClient(HTTPConfig{BaseURL: srv.URL}), state
}

type registryState struct {
	nextID int64
	names  map[string]int64
	alive  bool
}

func TestRegisterAssignsListingID(t *testing.T) {
	client, _ := newTestRegistry(t)

	id, err := client.Register(context.Background(), "owner-1", "a.txt", "10.0.0.7", 9092)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected listing id 1, got %d", id)
	}
}

func TestRegisterDuplicateNameIsConflict(t *testing.T) {
	client, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := client.Register(ctx, "owner-1", "a.txt", "10.0.0.7", 9092); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := client.Register(ctx, "owner-1", "a.txt", "10.0.0.7", 9092)
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}
}

func TestSearchReturnsListings(t *testing.T) {
	client, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := client.Register(ctx, "owner-1", "notes.txt", "10.0.0.7", 9092); err != nil {
		t.Fatalf("Register: %v", err)
	}
	listings, err := client.Search(ctx, "notes")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(listings) != 1 || listings[0].Name != "notes.txt" {
		t.Fatalf("unexpected search result: %+v", listings)
	}
}

func TestOwnerLookup(t *testing.T) {
	client, _ := newTestRegistry(t)

	owner, err := client.Owner(context.Background(), 1)
	if err != nil {
		t.Fatalf("Owner: %v", err)
	}
	if owner.Address != "10.0.0.7" || owner.Port != 9092 || owner.Name != "a.txt" {
		t.Fatalf("unexpected owner: %+v", owner)
	}
}

func TestLeaseSeconds(t *testing.T) {
	client, _ := newTestRegistry(t)

	lease, err := client.LeaseSeconds(context.Background())
	if err != nil {
		t.Fatalf("LeaseSeconds: %v", err)
	}
	if lease != 120 {
		t.Fatalf("expected lease 120, got %d", lease)
	}
}

func TestHeartbeatReportsListingLoss(t *testing.T) {
	client, state := newTestRegistry(t)
	ctx := context.Background()

	state.alive = true
	alive, err := client.Heartbeat(ctx, "owner-1")
	if err != nil || !alive {
		t.Fatalf("expected alive heartbeat, got %v, %v", alive, err)
	}

	state.alive = false
	alive, err = client.Heartbeat(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if alive {
		t.Fatal("expected heartbeat to report listing loss")
	}
}

func TestHeartbeatUnreachableRegistryIsError(t *testing.T) {
	client := NewHTTPClient(HTTPConfig{BaseURL: "http://127.0.0.1:1"})

	if _, err := client.Heartbeat(context.Background(), "owner-1"); err == nil {
		t.Fatal("expected error for unreachable registry")
	}
}

func TestUnregisterNotFoundIsIdempotent(t *testing.T) {
	client, _ := newTestRegistry(t)

	// The test mux returns 204 for any delete; exercise the 404 path with a
	// dedicated server.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	gone := NewHTTPClient(HTTPConfig{BaseURL: srv.URL})

	if err := gone.Unregister(context.Background(), 42, "owner-1"); err != nil {
		t.Fatalf("Unregister of an absent listing must be a no-op, got %v", err)
	}
	if err := client.Unregister(context.Background(), 1, "owner-1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
}

func TestDisconnectClearsListings(t *testing.T) {
	client, state := newTestRegistry(t)
	ctx := context.Background()

	if _, err := client.Register(ctx, "owner-1", "a.txt", "10.0.0.7", 9092); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := client.Disconnect(ctx, "owner-1"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if len(state.names) != 0 {
		t.Fatalf("expected all listings removed, got %v", state.names)
	}
}
