package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"modwatch/pkg/logx"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, AssetsURL: "https://assets.example"}, logx.Nop())
}

func TestPageSkipsEntriesWithoutRelease(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sort"); got != "updated_at" {
			t.Errorf("sort = %q, want updated_at", got)
		}
		if got := r.URL.Query().Get("sort_order"); got != "desc" {
			t.Errorf("sort_order = %q, want desc", got)
		}
		w.Write([]byte(`{"results":[
			{"name":"alpha","title":"Alpha","owner":"ana","latest_release":{"released_at":"2026-08-01T00:00:00Z","version":"1.2.0"}},
			{"name":"ghost","title":"Ghost","owner":"gil"},
			{"name":"beta","title":"Beta","owner":"bob","latest_release":{"released_at":"2026-07-01T00:00:00Z","version":"0.1.0"}}
		]}`))
	}))

	got, err := c.Page(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Page error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2 (markerless entry must be skipped)", len(got))
	}
	if got[0].Name != "alpha" || got[0].ReleasedAt != "2026-08-01T00:00:00Z" || got[0].Version != "1.2.0" {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[1].Name != "beta" || got[1].Owner != "bob" {
		t.Fatalf("unexpected second record: %+v", got[1])
	}
}

func TestPageUnavailable(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	_, err := c.Page(context.Background(), 1, 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestDetailNotFound(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.Detail(context.Background(), "no-such-mod")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestThumbnail(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "present", body: `{"name":"alpha","thumbnail":"/assets/abc.png"}`, want: "https://assets.example/assets/abc.png"},
		{name: "placeholder", body: `{"name":"alpha","thumbnail":"/assets/.thumb.png"}`, want: ""},
		{name: "absent", body: `{"name":"alpha"}`, want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			got, err := c.Thumbnail(context.Background(), "alpha")
			if err != nil {
				t.Fatalf("Thumbnail error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Thumbnail = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllUsesMaxPageSize(t *testing.T) {
	t.Parallel()
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page_size"); got != "max" {
			t.Errorf("page_size = %q, want max", got)
		}
		w.Write([]byte(`{"results":[{"name":"alpha","title":"Alpha","owner":"ana","latest_release":{"released_at":"2026-08-01T00:00:00Z","version":"1.0.0"}}]}`))
	}))

	got, err := c.All(context.Background())
	if err != nil {
		t.Fatalf("All error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
}
