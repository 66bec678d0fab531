package loki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// captureServer records the last push body.
func captureServer(t *testing.T, status int) (*httptest.Server, *PushRequest) {
	t.Helper()
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestPushEventJSON_LabelsAndTimestamp(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c := NewClient(srv.URL+"/", nil)

	raw := []byte(`{"eventType":"otp.verify_failed","source":"auth-api","accountId":"acct-1","purpose":"verification","reason":"invalid_code","createdAt":"2026-03-01T09:00:00.5Z"}`)
	if err := c.PushEventJSON(context.Background(), raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d", len(got.Streams))
	}
	s := got.Streams[0]
	want := map[string]string{
		"job":        "otp",
		"event_type": "otp.verify_failed",
		"source":     "auth-api",
		"purpose":    "verification",
		"reason":     "invalid_code",
	}
	for k, v := range want {
		if s.Stream[k] != v {
			t.Errorf("label %s = %q, want %q", k, s.Stream[k], v)
		}
	}
	if _, ok := s.Stream["account_id"]; ok {
		t.Error("account id must not become a label")
	}
	wantTS := time.Date(2026, 3, 1, 9, 0, 0, 500_000_000, time.UTC).UnixNano()
	if s.Values[0][0] != jsonInt(wantTS) {
		t.Errorf("ts = %s, want %d", s.Values[0][0], wantTS)
	}
	if s.Values[0][1] != string(raw) {
		t.Errorf("line = %s", s.Values[0][1])
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestPushEventJSON_UnparseableUsesNow(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c := NewClient(srv.URL, nil)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	if err := c.PushEventJSON(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	s := got.Streams[0]
	if len(s.Stream) != 1 || s.Stream["job"] != "otp" {
		t.Errorf("labels = %v, want only job", s.Stream)
	}
	if s.Values[0][0] != jsonInt(fixed.UnixNano()) {
		t.Errorf("ts = %s", s.Values[0][0])
	}
}

func TestPushEvent_Errors(t *testing.T) {
	if err := NewClient("", nil).PushEvent(context.Background(), time.Now(), "x", nil); !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("empty URL err = %v, want ErrNoBaseURL", err)
	}
	srv, _ := captureServer(t, http.StatusBadRequest)
	if err := NewClient(srv.URL, nil).PushEvent(context.Background(), time.Now(), "x", nil); err == nil {
		t.Error("non-2xx should error")
	}
}

func TestPushEvent_SanitizesLabels(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	err := NewClient(srv.URL, nil).PushEvent(context.Background(), time.Now(), "x", map[string]string{
		"reason": "bad value/with\"quotes",
		"empty":  "  ",
	})
	if err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	s := got.Streams[0]
	if s.Stream["reason"] != "bad_value_with_quotes" {
		t.Errorf("reason = %q", s.Stream["reason"])
	}
	if _, ok := s.Stream["empty"]; ok {
		t.Error("blank label should be dropped")
	}
}
