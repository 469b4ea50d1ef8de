package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"apiagent/internal/domain"
)

type queryRequest struct {
	Question string `json:"question" validate:"required,notblank"`
}

type executeRequest struct {
	Code string `json:"code" validate:"required"`
}

type executeResponse struct {
	Output string `json:"output"`
}

type messageResponse struct {
	Message string `json:"message"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // same policy as the CORS middleware
	},
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "Agent is running",
		"mode":   s.agent.Mode(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	res, err := s.agent.Ingest(r.Context(), data, header.Filename)
	if err != nil {
		s.requestLogger(r).Warn().Err(err).Str("file", header.Filename).Msg("Ingest failed")
		WriteError(w, statusFor(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := s.decodeAndValidate(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.agent.Query(r.Context(), req.Question)
	if err != nil {
		s.requestLogger(r).Error().Err(err).Msg("Query failed")
		WriteError(w, statusFor(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// handleQueryStream sends each event as an SSE data line and ends with
// "data: [DONE]".
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := s.decodeAndValidate(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := s.agent.Stream(r.Context(), req.Question, func(ev domain.StreamEvent) error {
		if ev.Type == domain.EventDone {
			_, err := io.WriteString(w, "data: [DONE]\n\n")
			flusher.Flush()
			return err
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		s.requestLogger(r).Warn().Err(err).Msg("SSE client went away")
	}
}

// handleQueryWebSocket reads one {question} message per query and answers
// with JSON events, the last one of type "done". The connection stays open
// for further questions until the client closes it.
func (s *Server) handleQueryWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.requestLogger(r).Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	for {
		var req queryRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.requestLogger(r).Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
		if err := s.validate.Struct(&req); err != nil {
			if err := writeEvent(conn, domain.StreamEvent{Type: domain.EventError, Content: "question is required"}); err != nil {
				return
			}
			if err := writeEvent(conn, domain.StreamEvent{Type: domain.EventDone}); err != nil {
				return
			}
			continue
		}

		err := s.agent.Stream(r.Context(), req.Question, func(ev domain.StreamEvent) error {
			return writeEvent(conn, ev)
		})
		if err != nil {
			s.requestLogger(r).Warn().Err(err).Msg("WebSocket client went away")
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev domain.StreamEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	msg, err := s.agent.Clear(r.Context())
	if err != nil {
		s.requestLogger(r).Error().Err(err).Msg("Clear failed")
		WriteError(w, statusFor(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := s.decodeAndValidate(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	out := s.agent.Execute(r.Context(), req.Code)
	WriteJSON(w, http.StatusOK, executeResponse{Output: out.Output()})
}
