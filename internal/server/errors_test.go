package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"onboard/internal/repo"
)

// TestStaleWriteMapsToConflictOverHTTP pins the wire shape of a lost
// concurrent write: a 409 with the {error:{code:"conflict"}} envelope.
func TestStaleWriteMapsToConflictOverHTTP(t *testing.T) {
	router, api, _ := newService("test", "/api/test", AuthConfig{JWTSecret: "secret"}, zerolog.Nop())
	// Registered outside the base path so no token is needed; the mapping
	// under test is handleError's, not the middleware's.
	huma.Register(api, huma.Operation{
		OperationID: "stale",
		Method:      http.MethodGet,
		Path:        "/stale",
	}, func(_ context.Context, _ *struct{}) (*struct{}, error) {
		return nil, handleError(fmt.Errorf("update instance: %w", repo.ErrStaleWrite))
	})

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: router}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
	})

	res, err := http.Get("http://" + ln.Addr().String() + "/stale")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode envelope: %v body %s", err, data)
	}
	if out.Error.Code != "conflict" {
		t.Fatalf("code = %q body %s", out.Error.Code, data)
	}
	if out.Error.Message == "" {
		t.Fatalf("empty message: %s", data)
	}
}
