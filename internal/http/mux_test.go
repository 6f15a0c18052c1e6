package http

import (
	"fmt"
	"testing"

	"github.com/valyala/fasthttp"
)

type stubService struct {
	ready error
	body  string
}

func (s *stubService) Ready() error {
	return s.ready
}

func (s *stubService) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(s.body)
	}
}

func TestProtocolMuxDispatch(t *testing.T) {
	mux := NewProtocolMux(&stubService{body: "rest"}, &stubService{body: "grpc-web"})
	handler := mux.Handler()

	tests := []struct {
		contentType string
		want        string
	}{
		{"application/json", "rest"},
		{"", "rest"},
		{"application/grpc-web", "grpc-web"},
		{"application/grpc-web+proto", "grpc-web"},
		{"application/grpc-web-text+json", "grpc-web"},
		{"APPLICATION/GRPC-WEB", "grpc-web"},
	}
	for _, tt := range tests {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.SetMethod(fasthttp.MethodPost)
		ctx.Request.SetRequestURI("/anything")
		if tt.contentType != "" {
			ctx.Request.Header.SetContentType(tt.contentType)
		}
		handler(ctx)
		if got := string(ctx.Response.Body()); got != tt.want {
			t.Fatalf("content type %q dispatched to %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestProtocolMuxReadiness(t *testing.T) {
	healthy := &stubService{}
	broken := &stubService{ready: fmt.Errorf("not wired")}

	if err := NewProtocolMux(healthy, healthy).Ready(); err != nil {
		t.Fatalf("Ready() error = %v, want nil", err)
	}
	if err := NewProtocolMux(broken, healthy).Ready(); err == nil {
		t.Fatal("expected rest stack failure to propagate")
	}
	if err := NewProtocolMux(healthy, broken).Ready(); err == nil {
		t.Fatal("expected grpc-web stack failure to propagate")
	}
}
