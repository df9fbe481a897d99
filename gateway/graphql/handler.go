package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/songlinshu/vector/engine"
)

// maxRequestBody bounds one-shot POST bodies. Operation documents are small;
// anything larger is a client defect.
const maxRequestBody = 1 << 20

// operationRequest is the standard GraphQL-over-HTTP request body.
type operationRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// handleOperations dispatches requests on the operations path: WebSocket
// upgrades go to the streaming handler, POST bodies run as one-shot
// operations.
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		s.writeEnvelope(w, http.StatusMethodNotAllowed,
			engine.ErrorEnvelope(errHTTPMethod))
		return
	}

	var req operationRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		s.writeEnvelope(w, http.StatusBadRequest, engine.ErrorEnvelope(err))
		return
	}

	op, err := engine.Parse(req.Query, req.OperationName, req.Variables, s.config.MaxDepth)
	if err != nil {
		metrics := s.registry.CoreMetrics()
		metrics.ValidationFailures.WithLabelValues(failureReason(err)).Inc()
		s.writeEnvelope(w, statusFor(err), engine.ErrorEnvelope(err))
		return
	}

	if op.Kind == ast.Subscription {
		s.writeEnvelope(w, http.StatusBadRequest,
			engine.ErrorEnvelope(errSubscriptionOverPost))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Timeout())
	defer cancel()

	start := time.Now()
	env := s.exec.Execute(ctx, op, nil)
	s.observeOperation(op, env, time.Since(start))

	s.writeEnvelope(w, http.StatusOK, env)
}

// observeOperation records the outcome of one executed operation.
func (s *Server) observeOperation(op *engine.Operation, env *engine.Envelope, elapsed time.Duration) {
	metrics := s.registry.CoreMetrics()
	kind := string(op.Kind)

	status := "ok"
	switch {
	case env.Data == nil:
		status = "failed"
	case env.HasErrors():
		status = "partial"
	}

	metrics.OperationsTotal.WithLabelValues(kind, status).Inc()
	metrics.OperationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if n := len(env.Errors); n > 0 {
		metrics.FieldErrorsTotal.Add(float64(n))
	}

	if env.HasErrors() {
		s.logger.Debug("operation completed with errors",
			"kind", kind,
			"name", op.Name,
			"errors", len(env.Errors),
			"duration", elapsed)
	}
}

// writeEnvelope serializes a response envelope as JSON.
func (s *Server) writeEnvelope(w http.ResponseWriter, status int, env *engine.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
