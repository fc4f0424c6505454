package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/tbxark/formfiller/extract"
	"github.com/tbxark/formfiller/flow"
	"github.com/tbxark/formfiller/session"
	"github.com/tbxark/formfiller/types"
)

const contactForm = `[
	{"field_id":"name","label":"Name","type":"text","required":true},
	{"field_id":"email","label":"Email","type":"email","required":true},
	{"field_id":"phone","label":"Phone","type":"phone"}
]`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := session.NewMemoryStore()
	controller := flow.NewController(store,
		extract.NewExtractor(extract.NewLocalInferer()),
		nil,
		flow.WithLogger(zerolog.Nop()),
	)
	return NewRouter(Deps{Controller: controller})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTurn(t *testing.T, rec *httptest.ResponseRecorder) turnResponse {
	t.Helper()
	var out turnResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var out errorBody
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStartAndContinue(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/formfiller/start",
		`{"utterance":"My name is John Smith","form_fields":`+contactForm+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeTurn(t, rec)
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, types.StatusAwaitingInfo, first.Status)
	assert.Equal(t, []string{"email"}, first.MissingRequired)
	assert.Equal(t, "email", first.PendingFocus)
	assert.Equal(t, "What is your email?", first.QuestionText)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec = do(t, h, http.MethodPost, "/formfiller/continue",
		`{"session_id":"`+first.SessionID+`","utterance":"john@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decodeTurn(t, rec)
	assert.Equal(t, types.StatusComplete, second.Status)
	assert.Empty(t, second.MissingRequired)
	assert.Empty(t, second.QuestionText)
	assert.Equal(t, map[string]string{"name": "John Smith", "email": "john@example.com"}, second.Filled)

	rec = do(t, h, http.MethodPost, "/formfiller/continue",
		`{"session_id":"`+first.SessionID+`","utterance":"one more thing"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "session_complete", decodeError(t, rec).Error)
}

func TestStart_PrefilledValues(t *testing.T) {
	h := newTestRouter(t)
	form := `[
		{"field_id":"name","label":"Name","required":true,"value":"Jane Doe"},
		{"field_id":"email","label":"Email","type":"email","required":true}
	]`
	rec := do(t, h, http.MethodPost, "/formfiller/start",
		`{"utterance":"my email is jane@example.com","form_fields":`+form+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeTurn(t, rec)
	assert.Equal(t, types.StatusComplete, res.Status)
	assert.Equal(t, "Jane Doe", res.Filled["name"])
	assert.Equal(t, "jane@example.com", res.Filled["email"])
}

func TestStart_Rejections(t *testing.T) {
	h := newTestRouter(t)
	cases := []struct {
		name string
		body string
		code string
	}{
		{"bad json", `{"utterance":`, "bad_request"},
		{"empty utterance", `{"utterance":"  ","form_fields":` + contactForm + `}`, "empty_utterance"},
		{"duplicate ids", `{"utterance":"hi","form_fields":[{"field_id":"a"},{"field_id":"a"}]}`, "schema_invalid"},
		{"blank id", `{"utterance":"hi","form_fields":[{"field_id":"  "}]}`, "schema_invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/formfiller/start", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Error)
		})
	}
	rec := do(t, h, http.MethodGet, "/formfiller/sessions", "")
	assert.JSONEq(t, `{"session_ids":[]}`, rec.Body.String())
}

func TestContinue_UnknownSession(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/formfiller/continue", `{"session_id":"nope","utterance":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session_not_found", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPost, "/formfiller/continue", `{"utterance":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionsEndpoints(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/formfiller/start",
		`{"utterance":"My name is John Smith","form_fields":`+contactForm+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeTurn(t, rec).SessionID

	rec = do(t, h, http.MethodGet, "/formfiller/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_ids":["`+id+`"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/formfiller/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state types.SessionState
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, id, state.SessionID)
	require.Len(t, state.History, 2)
	assert.Equal(t, types.SpeakerUser, state.History[0].Speaker)
	assert.Equal(t, "What is your email?", state.History[1].Text)

	rec = do(t, h, http.MethodDelete, "/formfiller/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/formfiller/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, "/formfiller/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchemaAndMetrics(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/formfiller/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var docs map[string]any
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &docs))
	assert.Contains(t, docs, "start_request")
	assert.Contains(t, docs, "continue_request")

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "formfiller_http_requests_total")
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	h := NewRouter(Deps{Controller: &stubController{}, Health: fakePinger{}})
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h = NewRouter(Deps{Controller: &stubController{}, Health: fakePinger{err: errors.New("dial tcp: refused")}})
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", decodeError(t, rec).Error)
}

// stubController fails every call with err, or panics when panicking is set.
type stubController struct {
	err       error
	panicking bool
}

func (s *stubController) fail() error {
	if s.panicking {
		panic("boom")
	}
	return s.err
}

func (s *stubController) Start(context.Context, flow.StartRequest) (*flow.Result, error) {
	return nil, s.fail()
}

func (s *stubController) Continue(context.Context, flow.ContinueRequest) (*flow.Result, error) {
	return nil, s.fail()
}

func (s *stubController) Get(context.Context, string) (*types.SessionState, error) {
	return nil, s.fail()
}

func (s *stubController) Delete(context.Context, string) error { return s.fail() }

func (s *stubController) List(context.Context) ([]string, error) { return nil, s.fail() }

func TestErrorMapping(t *testing.T) {
	storeDown := &stubController{err: fmt.Errorf("%w: connection reset", types.ErrStoreUnavailable)}
	h := NewRouter(Deps{Controller: storeDown})
	rec := do(t, h, http.MethodPost, "/formfiller/continue", `{"session_id":"s","utterance":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = NewRouter(Deps{Controller: &stubController{err: errors.New("unexpected")}})
	rec = do(t, h, http.MethodGet, "/formfiller/sessions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Error)
}

func TestRecoverer(t *testing.T) {
	h := NewRouter(Deps{Controller: &stubController{panicking: true}})
	req := httptest.NewRequest(http.MethodGet, "/formfiller/sessions", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal_error", body.Error)
	assert.Equal(t, "req-42", body.RequestID)
}

func TestRateLimit(t *testing.T) {
	h := NewRouter(Deps{Controller: &stubController{}, RateLimit: 2})
	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodGet, "/formfiller/schema", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/formfiller/schema", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", decodeError(t, rec).Error)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaxBodyBytes(t *testing.T) {
	h := NewRouter(Deps{Controller: &stubController{}, MaxBodyBytes: 16})
	rec := do(t, h, http.MethodPost, "/formfiller/continue",
		`{"session_id":"s","utterance":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Error)
}

func TestServe_GracefulShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: newTestRouter(t), ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, ln, 2*time.Second) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	client.CloseIdleConnections()
}

func TestRouter_TracesFormRoutes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	h := NewRouter(Deps{Controller: &stubController{}})
	do(t, h, http.MethodGet, "/formfiller/schema", "")
	do(t, h, http.MethodGet, "/health", "")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /formfiller/schema", spans[0].Name())
}
