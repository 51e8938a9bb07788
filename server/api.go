package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/docmesh/agent"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/ingest"
	"github.com/hupe1980/docmesh/runner"
	"github.com/hupe1980/docmesh/tool"
)

const maxBodyBytes = 4 << 20

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, map[string]string{"message": ServiceMessage})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"})
}

// --- documents ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		jsonError(w, "ingestion is not configured", http.StatusServiceUnavailable)
		return
	}

	report, err := s.pipeline.IndexBucket(r.Context())
	if err != nil {
		s.logger.Warn("server.index.error", "error", err.Error())
		resultResponse(w, tool.FromError(err))
		return
	}

	resultResponse(w, tool.Success("Indexing complete", report))
}

type queryRequest struct {
	Query      string         `json:"query"`
	Class      string         `json:"class,omitempty"`
	Properties []string       `json:"properties,omitempty"`
	Where      map[string]any `json:"where,omitempty"`
	Limit      int            `json:"limit,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q := r.URL.Query().Get("query"); q != "" {
		req.Query = q
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			req.Limit = n
		}
	}

	params := map[string]any{"class": s.classOr(req.Class)}
	if req.Query != "" {
		params["near_text"] = req.Query
	}
	if len(req.Properties) > 0 {
		props := make([]any, len(req.Properties))
		for i, p := range req.Properties {
			props[i] = p
		}
		params["properties"] = props
	}
	if len(req.Where) > 0 {
		params["where"] = req.Where
	}
	if req.Limit > 0 {
		params["limit"] = req.Limit
	}

	resultResponse(w, s.invoker.Invoke(r.Context(), s.opts.VectorTool, "get", params))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Accept both {"properties": {...}} and the bare property map.
	props := body
	class := ""
	if inner, ok := body["properties"].(map[string]any); ok {
		props = inner
		class, _ = body["class"].(string)
	}
	if len(props) == 0 {
		jsonError(w, "properties are required", http.StatusBadRequest)
		return
	}

	resultResponse(w, s.invoker.Invoke(r.Context(), s.opts.VectorTool, "update", map[string]any{
		"class":      s.classOr(class),
		"id":         r.PathValue("id"),
		"properties": props,
	}))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	resultResponse(w, s.invoker.Invoke(r.Context(), s.opts.VectorTool, "delete", map[string]any{
		"class": s.classOr(r.URL.Query().Get("class")),
		"id":    r.PathValue("id"),
	}))
}

type eventOutcome struct {
	EventName string `json:"event_name"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Action    string `json:"action,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleMinioEvent(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		jsonError(w, "ingestion is not configured", http.StatusServiceUnavailable)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		jsonError(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	notifications, err := ingest.ParseNotifications(data)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcomes := make([]eventOutcome, 0, len(notifications))
	for _, n := range notifications {
		o := eventOutcome{EventName: n.EventName, Bucket: n.Bucket, Key: n.Key}
		action, err := s.pipeline.HandleNotification(r.Context(), n)
		if err != nil {
			o.Error = err.Error()
			s.logger.Warn("server.minio_event.error", "event", n.EventName, "key", n.Key, "error", err.Error())
		}
		o.Action = action
		outcomes = append(outcomes, o)
	}

	jsonResponse(w, map[string]any{
		"message": "Event processed successfully",
		"events":  outcomes,
	})
}

// --- runs ---

type createRunRequest struct {
	Task  string `json:"task"`
	Async bool   `json:"async,omitempty"`
}

// runPayload is the wire shape of a run.
type runPayload struct {
	RunID      string         `json:"run_id"`
	Status     string         `json:"status"`
	Task       string         `json:"task,omitempty"`
	Turns      int            `json:"turns"`
	Messages   []core.Message `json:"messages,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		jsonError(w, "task is required", http.StatusBadRequest)
		return
	}

	if req.Async {
		runID, _ := s.runner.Start(s.baseCtx, req.Task)
		status := runner.StateQueued
		if st, ok := s.runner.Status(runID); ok {
			status = st.State
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(runPayload{RunID: runID, Status: status, Task: req.Task})
		return
	}

	res, err := s.runner.Run(r.Context(), req.Task)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	payload := runPayload{
		RunID:    res.RunID,
		Status:   string(res.Outcome),
		Task:     req.Task,
		Turns:    res.Turns,
		Messages: res.Messages,
	}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(runStatusCode(res))
	_ = json.NewEncoder(w).Encode(payload)
}

// runStatusCode maps a run result onto an HTTP status: success and
// inconclusive are 200, contract violations 502, other failures 500.
func runStatusCode(res agent.Result) int {
	switch {
	case res.Outcome == core.OutcomeSuccess, res.Outcome == core.OutcomeInconclusive:
		return http.StatusOK
	case res.IsContractViolation():
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if st, ok := s.runner.Status(id); ok {
		started := st.StartedAt
		jsonResponse(w, runPayload{
			RunID:     id,
			Status:    st.State,
			Task:      st.Task,
			Messages:  st.Messages,
			StartedAt: &started,
		})
		return
	}

	if s.runs == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := string(run.Outcome)
	if run.Running() {
		status = "running"
	}
	started := run.StartedAt
	jsonResponse(w, runPayload{
		RunID:      run.ID,
		Status:     status,
		Task:       run.Task,
		Turns:      run.Turns,
		Error:      run.Error,
		StartedAt:  &started,
		FinishedAt: run.FinishedAt,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	active := s.runner.Active()
	if s.runs == nil {
		jsonResponse(w, map[string]any{"active": active, "recent": []any{}})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recent, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]any{"active": active, "recent": recent})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runner.Cancel(id); err != nil {
		if errors.Is(err, runner.ErrRunNotFound) {
			jsonError(w, "run not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"run_id": id, "status": "cancelling"})
}

// --- helpers ---

func (s *Server) classOr(class string) string {
	if class != "" {
		return class
	}
	return s.opts.Class
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// decodeOptionalJSON is decodeJSON tolerating an empty body.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// resultResponse writes a tool result with a status derived from its code.
func resultResponse(w http.ResponseWriter, res tool.Result) {
	code := http.StatusOK
	if !res.OK() {
		switch res.Code {
		case tool.CodeNotFound:
			code = http.StatusNotFound
		case tool.CodeValidation:
			code = http.StatusBadRequest
		default:
			code = http.StatusBadGateway
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(res)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": msg})
}
