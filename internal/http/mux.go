package http

import (
	"fmt"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// Service is the uniform contract both protocol stacks satisfy so the mux
// can treat them interchangeably.
type Service interface {
	Ready() error
	Handler() fasthttp.RequestHandler
}

// RESTStack wraps the fiber application behind the Service contract.
type RESTStack struct {
	app *fiber.App
}

func NewRESTStack(app *fiber.App) *RESTStack {
	return &RESTStack{app: app}
}

func (s *RESTStack) Ready() error {
	if s.app == nil {
		return fmt.Errorf("rest stack is not wired")
	}
	return nil
}

func (s *RESTStack) Handler() fasthttp.RequestHandler {
	return s.app.Handler()
}

// ProtocolMux serves both stacks from one listening socket, choosing per
// request by content type. Both stacks are built once at startup.
type ProtocolMux struct {
	rest    Service
	grpcWeb Service
	server  *fasthttp.Server
}

func NewProtocolMux(rest Service, grpcWeb Service) *ProtocolMux {
	m := &ProtocolMux{
		rest:    rest,
		grpcWeb: grpcWeb,
	}
	m.server = &fasthttp.Server{
		Handler:            m.Handler(),
		StreamRequestBody:  true,
		MaxRequestBodySize: 128 * 1024 * 1024,
	}
	return m
}

// Ready reports ready only when both inner stacks do.
func (m *ProtocolMux) Ready() error {
	if err := m.rest.Ready(); err != nil {
		return fmt.Errorf("rest stack: %w", err)
	}
	if err := m.grpcWeb.Ready(); err != nil {
		return fmt.Errorf("grpc-web stack: %w", err)
	}
	return nil
}

func (m *ProtocolMux) Handler() fasthttp.RequestHandler {
	restHandler := m.rest.Handler()
	grpcWebHandler := m.grpcWeb.Handler()
	return func(ctx *fasthttp.RequestCtx) {
		if isGRPCWebRequest(ctx) {
			grpcWebHandler(ctx)
			return
		}
		restHandler(ctx)
	}
}

func (m *ProtocolMux) Listen(addr string) error {
	if err := m.Ready(); err != nil {
		return err
	}
	return m.server.ListenAndServe(addr)
}

func (m *ProtocolMux) Serve(ln net.Listener) error {
	if err := m.Ready(); err != nil {
		return err
	}
	return m.server.Serve(ln)
}

func (m *ProtocolMux) Shutdown() error {
	return m.server.Shutdown()
}

func isGRPCWebRequest(ctx *fasthttp.RequestCtx) bool {
	contentType := strings.ToLower(strings.TrimSpace(string(ctx.Request.Header.ContentType())))
	return strings.HasPrefix(contentType, grpcWebContentTypePrefix)
}
