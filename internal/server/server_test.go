package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

type fakeAgent struct {
	ingestErr error
	queryErr  error
	ingested  []byte
	filename  string
	panicOn   string
}

func (a *fakeAgent) Mode() string { return "command" }

func (a *fakeAgent) Ingest(_ context.Context, data []byte, filename string) (domain.IngestResult, error) {
	a.ingested, a.filename = data, filename
	if a.ingestErr != nil {
		return domain.IngestResult{}, a.ingestErr
	}
	return domain.IngestResult{Chunks: 2, Message: fmt.Sprintf("Successfully processed 2 chunks from %s.", filename)}, nil
}

func (a *fakeAgent) Clear(context.Context) (string, error) { return "Cleared 2 chunks.", nil }

func (a *fakeAgent) Query(_ context.Context, question string) (domain.QueryResponse, error) {
	if question == a.panicOn {
		panic("boom")
	}
	if a.queryErr != nil {
		return domain.QueryResponse{}, a.queryErr
	}
	return domain.QueryResponse{Explanation: "Lists users.", GeneratedCode: ""}, nil
}

func (a *fakeAgent) Stream(ctx context.Context, question string, emit func(domain.StreamEvent) error) error {
	resp, err := a.Query(ctx, question)
	if err != nil {
		if err := emit(domain.StreamEvent{Type: domain.EventError, Content: err.Error()}); err != nil {
			return err
		}
		return emit(domain.StreamEvent{Type: domain.EventDone})
	}
	for _, ev := range []domain.StreamEvent{
		{Type: domain.EventToken, Content: "Lists "},
		{Type: domain.EventToken, Content: "users. "},
		{Type: domain.EventComplete, Data: &resp},
		{Type: domain.EventDone},
	} {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

func (a *fakeAgent) Execute(_ context.Context, code string) domain.ExecutionOutcome {
	return domain.ExecutionOutcome{Status: domain.ExecutionRejected, Message: `{"error": "This sandbox only executes curl commands."}`}
}

func newTestServer(t *testing.T, agent *fakeAgent) *httptest.Server {
	t.Helper()
	s := New(agent, "127.0.0.1:0", arbor.NewNoOpLogger())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func uploadRequest(t *testing.T, url, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	body := decode(t, resp)
	assert.Equal(t, "Agent is running", body["status"])
	assert.Equal(t, "command", body["mode"])
}

func TestIngest(t *testing.T) {
	agent := &fakeAgent{}
	srv := newTestServer(t, agent)

	resp, err := http.DefaultClient.Do(uploadRequest(t, srv.URL+"/ingest", "api.pdf", []byte("GET /users")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Successfully processed 2 chunks from api.pdf.", body["message"])
	assert.EqualValues(t, 2, body["chunks"])
	assert.Equal(t, "GET /users", string(agent.ingested))
	assert.Equal(t, "api.pdf", agent.filename)
}

func TestIngest_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrEmptyDocument, http.StatusBadRequest},
		{fmt.Errorf("%w: bad pdf", domain.ErrUnreadableDocument), http.StatusBadRequest},
		{fmt.Errorf("%w: 503", domain.ErrEmbeddingService), http.StatusBadGateway},
		{errors.Join(domain.ErrCorpusCorrupted, errors.New("disk")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		srv := newTestServer(t, &fakeAgent{ingestErr: tt.err})
		resp, err := http.DefaultClient.Do(uploadRequest(t, srv.URL+"/ingest", "a.txt", []byte("x")))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.code, resp.StatusCode, tt.err.Error())
	}
}

func TestIngest_MissingFile(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{})

	resp := postJSON(t, srv.URL+"/ingest", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuery(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{})

	resp := postJSON(t, srv.URL+"/query", `{"question":"List users"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Lists users.", body["explanation"])
	assert.Equal(t, "", body["generated_code"])
	v, present := body["execution_result"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestQuery_Validation(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{})

	for _, body := range []string{`{}`, `{"question":"   "}`, `not json`} {
		resp := postJSON(t, srv.URL+"/query", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestQuery_GenerationFailure(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{queryErr: fmt.Errorf("%w: timeout", domain.ErrGeneration)})

	resp := postJSON(t, srv.URL+"/query", `{"question":"List users"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "error", decode(t, resp)["status"])
}

func TestQuery_PanicRecovered(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{panicOn: "explode"})

	resp := postJSON(t, srv.URL+"/query", `{"question":"explode"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestQueryStream(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{})

	resp := postJSON(t, srv.URL+"/query/stream", `{"question":"List users"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var lines []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, 4)
	assert.Equal(t, `data: {"type":"token","content":"Lists "}`, lines[0])
	assert.True(t, strings.HasPrefix(lines[2], `data: {"type":"complete","data":{`))
	assert.Equal(t, "data: [DONE]", lines[3])
}

func TestQueryStream_Error(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{queryErr: errors.New("store down")})

	resp := postJSON(t, srv.URL+"/query/stream", `{"question":"List users"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lines []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, []string{`data: {"type":"error","content":"store down"}`, "data: [DONE]"}, lines)
}

func TestQueryWebSocket(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/query/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"question": "List users"}))
	var types []domain.StreamEventType
	for {
		var ev domain.StreamEvent
		require.NoError(t, conn.ReadJSON(&ev))
		types = append(types, ev.Type)
		if ev.Type == domain.EventDone {
			break
		}
	}
	assert.Equal(t, []domain.StreamEventType{domain.EventToken, domain.EventToken, domain.EventComplete, domain.EventDone}, types)

	require.NoError(t, conn.WriteJSON(map[string]string{"question": ""}))
	var ev domain.StreamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.EventError, ev.Type)
}

func TestClear(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/documents", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Cleared 2 chunks.", decode(t, resp)["message"])
}

func TestExecute(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{})

	resp := postJSON(t, srv.URL+"/execute", `{"code":"rm -rf /"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"error": "This sandbox only executes curl commands."}`, decode(t, resp)["output"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeAgent{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/query", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
