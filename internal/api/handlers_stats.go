package api

import (
	"net/http"

	"github.com/dgallion1/coursemd/internal/config"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.llmStats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	model := s.cfg.AnthropicModel
	if s.cfg.LLMProvider == config.ProviderOpenAI {
		model = s.cfg.OpenAIModel
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": s.cfg.LLMProvider,
		"model":    model,
		"stats":    s.llmStats.Snapshot(),
	})
}
