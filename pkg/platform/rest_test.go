package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestREST(t *testing.T, h http.HandlerFunc) *REST {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewREST(srv.URL, "test-token", 1000, 1000)
}

func TestFetchMessage(t *testing.T) {
	var gotAuth string
	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		if req.URL.Path != "/channels/chan-1/messages/msg-1" {
			t.Errorf("path = %s", req.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Message{ID: "msg-1"})
	})

	m, err := r.FetchMessage(context.Background(), "chan-1", "msg-1")
	if err != nil {
		t.Fatalf("FetchMessage: %v", err)
	}
	if m.ID != "msg-1" || m.ChannelID != "chan-1" {
		t.Fatalf("message = %+v", m)
	}
	if gotAuth != "Bot test-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestFetchMessage404(t *testing.T) {
	r := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if _, err := r.FetchMessage(context.Background(), "c", "m"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FetchMessage = %v, want ErrNotFound", err)
	}
}

// TestFetchMessageCaches verifies a refetch of the same message skips the
// wire.
func TestFetchMessageCaches(t *testing.T) {
	hits := 0
	r := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(Message{ID: "msg-1"})
	})
	for i := 0; i < 3; i++ {
		if _, err := r.FetchMessage(context.Background(), "c", "msg-1"); err != nil {
			t.Fatalf("FetchMessage %d: %v", i, err)
		}
	}
	if hits != 1 {
		t.Fatalf("server hit %d times, want 1", hits)
	}
}

func TestSendMessage(t *testing.T) {
	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost || req.URL.Path != "/channels/chan-1/messages" {
			t.Errorf("%s %s", req.Method, req.URL.Path)
		}
		var p ControlPayload
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(p.Buttons) != 1 || p.Buttons[0].CustomID != "press:classic:chan-1" {
			t.Errorf("payload = %+v", p)
		}
		_ = json.NewEncoder(w).Encode(Message{ID: "new-msg"})
	})

	m, err := r.SendMessage(context.Background(), "chan-1", ControlPayload{
		Buttons: []Button{{CustomID: "press:classic:chan-1", Label: "Press", Style: "primary"}},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if m.ID != "new-msg" {
		t.Fatalf("message = %+v", m)
	}
}

// TestSendMessageDoesNotPrimeCache verifies a control deleted out-of-band
// right after sending is observed as a 404, not served from cache; the
// reconcile sweep depends on it.
func TestSendMessageDoesNotPrimeCache(t *testing.T) {
	deleted := false
	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			_ = json.NewEncoder(w).Encode(Message{ID: "m1"})
		case http.MethodGet:
			if deleted {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(Message{ID: "m1"})
		}
	})

	m, err := r.SendMessage(context.Background(), "chan", ControlPayload{})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	deleted = true
	if _, err := r.FetchMessage(context.Background(), "chan", m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FetchMessage after out-of-band delete = %v, want ErrNotFound", err)
	}
}

func TestDeleteMessage404(t *testing.T) {
	r := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if err := r.DeleteMessage(context.Background(), "c", "m"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteMessage = %v, want ErrNotFound", err)
	}
}

func TestExecuteEndpoint(t *testing.T) {
	asset := filepath.Join(t.TempDir(), "classic.png")
	if err := os.WriteFile(asset, []byte("png-bytes"), 0o600); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	r := newTestREST(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/endpoints/ep-1/tok-1" {
			t.Errorf("path = %s", req.URL.Path)
		}
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := req.FormValue("display_name"); got != "alex" {
			t.Errorf("display_name = %q", got)
		}
		if got := req.FormValue("avatar_url"); got != "https://cdn.example/a.png" {
			t.Errorf("avatar_url = %q", got)
		}
		f, hdr, err := req.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		if hdr.Filename != "classic.png" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	err := r.ExecuteEndpoint(context.Background(), "ep-1", "tok-1", Delivery{
		FilePath:    asset,
		DisplayName: "alex",
		AvatarURL:   "https://cdn.example/a.png",
	})
	if err != nil {
		t.Fatalf("ExecuteEndpoint: %v", err)
	}
}

func TestExecuteEndpointFailureWraps(t *testing.T) {
	asset := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(asset, []byte("x"), 0o600); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	r := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := r.ExecuteEndpoint(context.Background(), "ep", "tok", Delivery{FilePath: asset})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("ExecuteEndpoint = %v, want ErrDeliveryFailed", err)
	}
}

func TestExecuteEndpointMissingAsset(t *testing.T) {
	r := NewREST("http://unused", "tok", 1000, 1000)
	err := r.ExecuteEndpoint(context.Background(), "ep", "tok", Delivery{FilePath: "/no/such/file.png"})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("ExecuteEndpoint = %v, want ErrDeliveryFailed", err)
	}
}
