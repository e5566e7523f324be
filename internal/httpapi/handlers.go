package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/ingestion"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ingestRequest mirrors spec §6's POST /ingest contract: multipart with an
// optional file, optional text, and a required metadata JSON blob.
type ingestRequest struct {
	ChatID             string `json:"chat_id"`
	UserID             string `json:"user_id"`
	UserName           string `json:"user_name"`
	UserNick           string `json:"user_nick"`
	MessageID          string `json:"message_id"`
	ReplyToMessageID   string `json:"reply_to_message_id"`
	MediaType          string `json:"media_type"`
	MediaURL           string `json:"media_url"`
	IsForward          bool   `json:"is_forward"`
	OriginalAuthorID   string `json:"original_author_id"`
	OriginalAuthorName string `json:"original_author_name"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion pipeline not configured")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	var meta ingestRequest
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			writeError(w, http.StatusBadRequest, "invalid metadata JSON: "+err.Error())
			return
		}
	} else {
		writeError(w, http.StatusBadRequest, "metadata is required")
		return
	}
	if meta.ChatID == "" {
		writeError(w, http.StatusBadRequest, "metadata.chat_id is required")
		return
	}
	if meta.MessageID == "" {
		meta.MessageID = uuid.NewString()
	}

	msg := ingestion.Message{
		ChatID:             meta.ChatID,
		UserID:             meta.UserID,
		UserName:           meta.UserName,
		UserNick:           meta.UserNick,
		Text:               r.FormValue("text"),
		MessageID:          meta.MessageID,
		ReplyToMessageID:   meta.ReplyToMessageID,
		MediaType:          ingestion.MediaType(meta.MediaType),
		MediaURL:           meta.MediaURL,
		IsForward:          meta.IsForward,
		OriginalAuthorID:   meta.OriginalAuthorID,
		OriginalAuthorName: meta.OriginalAuthorName,
	}
	if msg.MediaType == "" {
		msg.MediaType = ingestion.MediaText
	}

	result, err := s.pipeline.Ingest(r.Context(), msg)
	if err != nil {
		s.metrics.recordIngest(string(msg.MediaType), "error")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.metrics.recordIngest(string(msg.MediaType), "ok")

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"id":     result.ElementID,
		"text":   result.Reply,
	})
}

type summarizeRequest struct {
	ChatID        string   `json:"chat_id"`
	Limit         int      `json:"limit"`
	Scope         string   `json:"scope"`
	Tags          []string `json:"tags"`
	SinceDatetime string   `json:"since_datetime"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ChatID == "" {
		writeError(w, http.StatusBadRequest, "chat_id is required")
		return
	}

	prompt := buildSummarizePrompt(req)
	reply, ok := s.runOrchestrator(w, r, req.ChatID, prompt)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": reply})
}

func buildSummarizePrompt(req summarizeRequest) string {
	var b strings.Builder
	b.WriteString("Summarize this chat")
	if req.Scope != "" {
		b.WriteString(" (scope: " + req.Scope + ")")
	}
	if req.Limit > 0 {
		b.WriteString(", limit " + strconv.Itoa(req.Limit) + " items")
	}
	if len(req.Tags) > 0 {
		b.WriteString(", tags: " + strings.Join(req.Tags, ", "))
	}
	if req.SinceDatetime != "" {
		b.WriteString(", since " + req.SinceDatetime)
	}
	b.WriteString(".")
	return b.String()
}

type askRequest struct {
	Query   string   `json:"query"`
	ChatID  string   `json:"chat_id"`
	History []string `json:"history"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	chatID := req.ChatID
	if chatID == "" {
		chatID = "ask:" + uuid.NewString()
	}

	var sources []string
	if s.knowledge != nil {
		results, err := s.knowledge.SearchKnowledgeBase(r.Context(), chatID, req.Query, 5)
		if err != nil {
			s.logger.Warn("knowledge base search failed", "error", err)
		} else {
			for _, res := range results {
				sources = append(sources, res.Document.Title)
			}
		}
	}

	reply, ok := s.runOrchestrator(w, r, chatID, req.Query)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answer": reply, "sources": sources})
}

type chatMessageRequest struct {
	ChatID           string `json:"chat_id"`
	UserID           string `json:"user_id"`
	UserName         string `json:"user_name"`
	UserNick         string `json:"user_nick"`
	Text             string `json:"text"`
	MessageID        string `json:"message_id"`
	ReplyToMessageID string `json:"reply_to_message_id"`
	SkipSave         bool   `json:"skip_save"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ChatID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "chat_id and text are required")
		return
	}

	// skip_save bypasses Canvas element creation entirely — the caller
	// wants an orchestrator reply without persisting the turn as an
	// element, e.g. an ephemeral preview. The pipeline always persists, so
	// this path talks to the Runner directly instead.
	if req.SkipSave {
		reply, ok := s.runOrchestrator(w, r, req.ChatID, req.Text)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
		return
	}

	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion pipeline not configured")
		return
	}
	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}
	result, err := s.pipeline.Ingest(r.Context(), ingestion.Message{
		ChatID:           req.ChatID,
		UserID:           req.UserID,
		UserName:         req.UserName,
		UserNick:         req.UserNick,
		Text:             req.Text,
		MessageID:        messageID,
		ReplyToMessageID: req.ReplyToMessageID,
		MediaType:        ingestion.MediaText,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": result.Reply})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// runOrchestrator invokes the Runner directly for handlers that don't go
// through the ingestion pipeline (no Canvas Element is created for the
// query itself). It records the quota-exhaustion counter spec.md §7/§8
// requires be observable.
func (s *Server) runOrchestrator(w http.ResponseWriter, r *http.Request, chatID, text string) (string, bool) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator not configured")
		return "", false
	}
	reply, err := s.runner.Run(r.Context(), s.defaultAgent, chatID, text)
	if err != nil {
		if agent.IsKind(err, agent.KindQuota) {
			s.metrics.recordQuotaExhausted()
		}
		s.metrics.recordTurn("error")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return "", false
	}
	s.metrics.recordTurn("ok")
	return ingestion.SafeSend(reply), true
}
