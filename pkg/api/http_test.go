package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pressbot/pkg/bindings"
	"pressbot/pkg/config"
	"pressbot/pkg/control"
	"pressbot/pkg/models"
	"pressbot/pkg/platform"
	"pressbot/pkg/service"
	"pressbot/pkg/stats"
	"pressbot/pkg/store"
)

var testAssets = []config.AssetConfig{
	{Name: "classic", Label: "Press", Style: "primary", File: "assets/classic.png"},
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	client := platform.NewMemory()
	bs := bindings.NewStore()
	counter := stats.New([]string{"classic"})
	lc := control.NewLifecycle(bs, counter, client, testAssets)
	srv := httptest.NewServer(Handler(service.New(bs, counter, lc, client)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestBindingLifecycleOverHTTP(t *testing.T) {
	srv := setupServer(t)
	base := srv.URL + "/v1/communities/guild/bindings"

	// create
	resp := postJSON(t, base, map[string]string{"channel_id": "chan-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created models.ChannelBinding
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	resp.Body.Close()
	if created.ChannelID != "chan-1" || !created.HasControl() {
		t.Fatalf("created = %+v", created)
	}

	// get
	resp, err := http.Get(base + "/chan-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	// list
	resp, err = http.Get(base)
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	var listed []models.ChannelBinding
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	resp.Body.Close()
	if len(listed) != 1 {
		t.Fatalf("list = %v, want 1 binding", listed)
	}

	// delete
	req, _ := http.NewRequest(http.MethodDelete, base+"/chan-1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp.Body.Close()

	// gone now
	resp, _ = http.Get(base + "/chan-1")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateBindingConflictStatus(t *testing.T) {
	srv := setupServer(t)
	base := srv.URL + "/v1/communities/guild/bindings"

	resp := postJSON(t, base, map[string]string{"channel_id": "chan-1"})
	resp.Body.Close()
	resp = postJSON(t, base, map[string]string{"channel_id": "chan-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create = %d, want 409", resp.StatusCode)
	}
}

func TestCreateBindingRequiresChannelID(t *testing.T) {
	srv := setupServer(t)
	resp := postJSON(t, srv.URL+"/v1/communities/guild/bindings", map[string]string{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty body create = %d, want 400", resp.StatusCode)
	}
}

func TestListBindingsEmptyIsArray(t *testing.T) {
	srv := setupServer(t)
	resp, err := http.Get(srv.URL + "/v1/communities/empty/bindings")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var listed []models.ChannelBinding
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listed == nil || len(listed) != 0 {
		t.Fatalf("empty list = %#v, want []", listed)
	}
}

func TestDeleteUnknownBindingIs404(t *testing.T) {
	srv := setupServer(t)
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/communities/guild/bindings/never", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete unknown = %d, want 404", resp.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := setupServer(t)

	resp, err := http.Get(srv.URL + "/v1/stats?community=guild")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", resp.StatusCode)
	}
	var st models.ScopeStats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.Counts["classic"] != 0 || st.Rates["classic"] != 0 {
		t.Fatalf("fresh scope stats = %+v, want zeros", st)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := setupServer(t)
	resp, err := http.Get(srv.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("response missing X-Request-ID")
	}
}
