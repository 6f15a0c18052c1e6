package http

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"memoir/internal/filter"
	"memoir/internal/models"
	"memoir/internal/service"
	"memoir/internal/store"
)

// gRPC-Web wire framing: every message is prefixed with one flag byte and a
// big-endian uint32 length. The trailer frame sets the MSB of the flags.
const (
	grpcWebContentTypePrefix = "application/grpc-web"

	frameFlagData    byte = 0x00
	frameFlagTrailer byte = 0x80
)

const (
	grpcCodeOK               = 0
	grpcCodeInvalidArgument  = 3
	grpcCodeNotFound         = 5
	grpcCodePermissionDenied = 7
	grpcCodeInternal         = 13
	grpcCodeUnauthenticated  = 16
	grpcCodeUnimplemented    = 12
)

type grpcStatusError struct {
	code    int
	message string
}

func (e *grpcStatusError) Error() string {
	return fmt.Sprintf("grpc status %d: %s", e.code, e.message)
}

type grpcMethod struct {
	requiresAuth bool
	handle       func(ctx context.Context, user *models.User, message []byte) ([]byte, error)
}

// GRPCWebStack serves the memo service over the gRPC-Web framing, with JSON
// message bodies.
type GRPCWebStack struct {
	userService *service.UserService
	memoService *service.MemoService
	methods     map[string]grpcMethod
}

func NewGRPCWebStack(userService *service.UserService, memoService *service.MemoService) *GRPCWebStack {
	s := &GRPCWebStack{
		userService: userService,
		memoService: memoService,
	}
	s.methods = map[string]grpcMethod{
		"/memoir.api.v1.MemoService/ListMemos":  {handle: s.listMemos},
		"/memoir.api.v1.MemoService/GetMemo":    {handle: s.getMemo},
		"/memoir.api.v1.MemoService/CreateMemo": {requiresAuth: true, handle: s.createMemo},
		"/memoir.api.v1.MemoService/UpdateMemo": {requiresAuth: true, handle: s.updateMemo},
		"/memoir.api.v1.MemoService/DeleteMemo": {requiresAuth: true, handle: s.deleteMemo},
	}
	return s
}

func (s *GRPCWebStack) Ready() error {
	if s.userService == nil || s.memoService == nil {
		return fmt.Errorf("grpc-web stack is not wired")
	}
	return nil
}

func (s *GRPCWebStack) Handler() fasthttp.RequestHandler {
	return func(reqCtx *fasthttp.RequestCtx) {
		contentType := string(reqCtx.Request.Header.ContentType())
		isText := strings.Contains(contentType, "-text")

		// RequestCtx only behaves as a context.Context while fasthttp
		// itself is serving it; service calls get their own context.
		ctx := context.Background()

		method, ok := s.methods[string(reqCtx.Path())]
		if !ok {
			writeGRPCWebError(reqCtx, contentType, isText, &grpcStatusError{
				code:    grpcCodeUnimplemented,
				message: "unknown method " + string(reqCtx.Path()),
			})
			return
		}

		message, err := decodeGRPCWebRequest(reqCtx.PostBody(), isText)
		if err != nil {
			writeGRPCWebError(reqCtx, contentType, isText, &grpcStatusError{
				code:    grpcCodeInvalidArgument,
				message: err.Error(),
			})
			return
		}

		user, err := s.resolveUser(ctx, reqCtx)
		if err != nil {
			writeGRPCWebError(reqCtx, contentType, isText, &grpcStatusError{
				code:    grpcCodeUnauthenticated,
				message: "invalid access token",
			})
			return
		}
		if method.requiresAuth && user == nil {
			writeGRPCWebError(reqCtx, contentType, isText, &grpcStatusError{
				code:    grpcCodeUnauthenticated,
				message: "authentication required",
			})
			return
		}

		response, err := method.handle(ctx, user, message)
		if err != nil {
			writeGRPCWebError(reqCtx, contentType, isText, err)
			return
		}
		writeGRPCWebResponse(reqCtx, contentType, isText, response)
	}
}

func (s *GRPCWebStack) resolveUser(ctx context.Context, reqCtx *fasthttp.RequestCtx) (*models.User, error) {
	authz := strings.TrimSpace(string(reqCtx.Request.Header.Peek(fasthttp.HeaderAuthorization)))
	if authz == "" {
		return nil, nil
	}
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return nil, fmt.Errorf("malformed authorization header")
	}
	user, err := s.userService.AuthenticateToken(ctx, strings.TrimSpace(authz[len("Bearer "):]))
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type grpcListMemosRequest struct {
	Filter    string `json:"filter"`
	PageSize  int    `json:"pageSize"`
	PageToken string `json:"pageToken"`
}

type grpcMemoNameRequest struct {
	Name string `json:"name"`
}

type grpcCreateMemoRequest struct {
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
	Pinned     bool   `json:"pinned"`
}

type grpcUpdateMemoRequest struct {
	Name       string  `json:"name"`
	Content    *string `json:"content"`
	Visibility *string `json:"visibility"`
	State      *string `json:"state"`
	Pinned     *bool   `json:"pinned"`
}

func (s *GRPCWebStack) listMemos(ctx context.Context, user *models.User, message []byte) ([]byte, error) {
	var req grpcListMemosRequest
	if err := unmarshalGRPCMessage(message, &req); err != nil {
		return nil, err
	}
	memos, nextToken, err := s.memoService.ListMemos(ctx, userIDOf(user), req.Filter, req.PageSize, req.PageToken)
	if err != nil {
		return nil, mapGRPCError(err)
	}
	return json.Marshal(listMemosResponse{
		Memos:         toAPIMemos(memos),
		NextPageToken: nextToken,
	})
}

func (s *GRPCWebStack) getMemo(ctx context.Context, user *models.User, message []byte) ([]byte, error) {
	var req grpcMemoNameRequest
	if err := unmarshalGRPCMessage(message, &req); err != nil {
		return nil, err
	}
	memoID, err := parseMemoName(req.Name)
	if err != nil {
		return nil, &grpcStatusError{code: grpcCodeInvalidArgument, message: err.Error()}
	}
	memo, err := s.memoService.GetMemo(ctx, userIDOf(user), memoID)
	if err != nil {
		return nil, mapGRPCError(err)
	}
	return json.Marshal(toAPIMemo(memo))
}

func (s *GRPCWebStack) createMemo(ctx context.Context, user *models.User, message []byte) ([]byte, error) {
	var req grpcCreateMemoRequest
	if err := unmarshalGRPCMessage(message, &req); err != nil {
		return nil, err
	}
	visibility := models.VisibilityFromString(req.Visibility)
	if req.Visibility == "" {
		visibility = user.DefaultVisibility
	}
	memo, err := s.memoService.CreateMemo(ctx, user.ID, service.CreateMemoInput{
		Content:    req.Content,
		Visibility: visibility,
		Pinned:     req.Pinned,
	})
	if err != nil {
		return nil, mapGRPCError(err)
	}
	return json.Marshal(toAPIMemo(memo))
}

func (s *GRPCWebStack) updateMemo(ctx context.Context, user *models.User, message []byte) ([]byte, error) {
	var req grpcUpdateMemoRequest
	if err := unmarshalGRPCMessage(message, &req); err != nil {
		return nil, err
	}
	memoID, err := parseMemoName(req.Name)
	if err != nil {
		return nil, &grpcStatusError{code: grpcCodeInvalidArgument, message: err.Error()}
	}
	input := service.UpdateMemoInput{
		Content: req.Content,
		Pinned:  req.Pinned,
	}
	if req.Visibility != nil {
		v := models.VisibilityFromString(*req.Visibility)
		input.Visibility = &v
	}
	if req.State != nil {
		rs := models.RowStatusFromString(*req.State)
		input.RowStatus = &rs
	}
	memo, err := s.memoService.UpdateMemo(ctx, user.ID, memoID, input)
	if err != nil {
		return nil, mapGRPCError(err)
	}
	return json.Marshal(toAPIMemo(memo))
}

func (s *GRPCWebStack) deleteMemo(ctx context.Context, user *models.User, message []byte) ([]byte, error) {
	var req grpcMemoNameRequest
	if err := unmarshalGRPCMessage(message, &req); err != nil {
		return nil, err
	}
	memoID, err := parseMemoName(req.Name)
	if err != nil {
		return nil, &grpcStatusError{code: grpcCodeInvalidArgument, message: err.Error()}
	}
	if err := s.memoService.DeleteMemo(ctx, user.ID, memoID); err != nil {
		return nil, mapGRPCError(err)
	}
	return []byte("{}"), nil
}

func userIDOf(user *models.User) *int64 {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}

func unmarshalGRPCMessage(message []byte, out any) error {
	if len(message) == 0 {
		return nil
	}
	if err := json.Unmarshal(message, out); err != nil {
		return &grpcStatusError{code: grpcCodeInvalidArgument, message: "invalid request message"}
	}
	return nil
}

// mapGRPCError classifies service errors into gRPC statuses. Anything not
// recognized as a caller mistake is an internal failure and its text is not
// exposed.
func mapGRPCError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &grpcStatusError{code: grpcCodeNotFound, message: "not found"}
	case errors.Is(err, service.ErrPermissionDenied):
		return &grpcStatusError{code: grpcCodePermissionDenied, message: "permission denied"}
	case errors.Is(err, filter.ErrInvalidFilter),
		errors.Is(err, store.ErrMalformedPageToken),
		errors.Is(err, service.ErrNestedComment),
		errors.Is(err, service.ErrInvalidInput):
		return &grpcStatusError{code: grpcCodeInvalidArgument, message: err.Error()}
	default:
		return &grpcStatusError{code: grpcCodeInternal, message: "internal error"}
	}
}

// decodeGRPCWebRequest returns the first data frame's payload. An empty body
// decodes to an empty message.
func decodeGRPCWebRequest(body []byte, isText bool) ([]byte, error) {
	if isText {
		decoded, err := decodeBase64Body(body)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 request body")
		}
		body = decoded
	}
	if len(body) == 0 {
		return nil, nil
	}
	for len(body) > 0 {
		if len(body) < 5 {
			return nil, fmt.Errorf("truncated frame header")
		}
		flags := body[0]
		length := binary.BigEndian.Uint32(body[1:5])
		if uint32(len(body)-5) < length {
			return nil, fmt.Errorf("truncated frame payload")
		}
		payload := body[5 : 5+length]
		if flags&frameFlagTrailer == 0 {
			return payload, nil
		}
		body = body[5+length:]
	}
	return nil, nil
}

func decodeBase64Body(body []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(trimmed)
}

func encodeGRPCWebFrame(flags byte, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = flags
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[5:], payload)
	return frame
}

func encodeGRPCWebTrailer(code int, message string) []byte {
	trailer := fmt.Sprintf("grpc-status: %d\r\ngrpc-message: %s\r\n", code, message)
	return encodeGRPCWebFrame(frameFlagTrailer, []byte(trailer))
}

func writeGRPCWebResponse(ctx *fasthttp.RequestCtx, contentType string, isText bool, message []byte) {
	body := append(encodeGRPCWebFrame(frameFlagData, message), encodeGRPCWebTrailer(grpcCodeOK, "")...)
	writeGRPCWebBody(ctx, contentType, isText, body)
}

// writeGRPCWebError sends a trailers-only response. The HTTP status stays
// 200; the gRPC status rides in the trailer frame.
func writeGRPCWebError(ctx *fasthttp.RequestCtx, contentType string, isText bool, err error) {
	var statusErr *grpcStatusError
	if !errors.As(err, &statusErr) {
		statusErr = &grpcStatusError{code: grpcCodeInternal, message: "internal error"}
	}
	writeGRPCWebBody(ctx, contentType, isText, encodeGRPCWebTrailer(statusErr.code, statusErr.message))
}

func writeGRPCWebBody(ctx *fasthttp.RequestCtx, contentType string, isText bool, body []byte) {
	if isText {
		body = []byte(base64.StdEncoding.EncodeToString(body))
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = grpcWebContentTypePrefix
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType(contentType)
	ctx.SetBody(body)
}
