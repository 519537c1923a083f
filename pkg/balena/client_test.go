package balena

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewSupervisorClientUnavailable(t *testing.T) {
	t.Setenv("BALENA_SUPERVISOR_ADDRESS", "")
	t.Setenv("BALENA_SUPERVISOR_API_KEY", "")

	if _, err := NewSupervisorClient("", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewSupervisorClientFromEnv(t *testing.T) {
	t.Setenv("BALENA_SUPERVISOR_ADDRESS", "http://127.0.0.1:48484")
	t.Setenv("BALENA_SUPERVISOR_API_KEY", "key")

	c, err := NewSupervisorClient("", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Address != "http://127.0.0.1:48484" || c.APIKey != "key" {
		t.Errorf("unexpected client %+v", c)
	}
}

func TestGetState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/state/status" || r.URL.Query().Get("apikey") != "secret" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"status":"success","appState":"applied","os_version":"balenaOS 6.0.0"}`))
	}))
	defer srv.Close()

	c, err := NewSupervisorClient(srv.URL, "secret")
	if err != nil {
		t.Fatal(err)
	}
	state, err := c.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Status != "success" || state.AppState != "applied" || state.OSVersion != "balenaOS 6.0.0" {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestReboot(t *testing.T) {
	var got struct {
		Force bool `json:"force"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/reboot" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := NewSupervisorClient(srv.URL, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Reboot(context.Background(), true); err != nil {
		t.Fatalf("Reboot failed: %v", err)
	}
	if !got.Force {
		t.Error("force flag not sent")
	}
}

func TestRebootRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusLocked)
	}))
	defer srv.Close()

	c, err := NewSupervisorClient(srv.URL, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Reboot(context.Background(), false); err == nil {
		t.Error("expected error for locked device")
	}
}
