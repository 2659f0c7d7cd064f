package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/bridge"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/llm"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/models"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/security"
	"github.com/rs/zerolog"
)

const version = "1.0.0"

type Bridge interface {
	Ask(ctx context.Context, provider llm.Provider, req models.AskRequest) (*models.AskResponse, error)
	Compare(ctx context.Context, req models.AskRequest) (*models.CompareResponse, error)
	Providers() []llm.Provider
}

type SecurityAdmin interface {
	Status() security.Status
	ResetCache()
}

type HealthResponse struct {
	Status    string   `json:"status" description:"Service status"`
	Version   string   `json:"version" description:"API version"`
	Providers []string `json:"providers" description:"Configured model providers"`
}

type Handler struct {
	bridge   Bridge
	security SecurityAdmin
	logger   *zerolog.Logger
}

func NewHandler(bridge Bridge, security SecurityAdmin, logger *zerolog.Logger) *Handler {
	return &Handler{
		bridge:   bridge,
		security: security,
		logger:   logger,
	}
}

// Health handler GET API /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	providers := []string{}
	for _, p := range h.bridge.Providers() {
		providers = append(providers, string(p))
	}

	resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   version,
		Providers: providers,
	})
}

// POST /api/v1/ask/{provider}
// Body: AskRequest
// Returns: AskResponse
func (h *Handler) Ask(req *restful.Request, resp *restful.Response) {
	provider := llm.Provider(req.PathParameter("provider"))

	var askRequest models.AskRequest
	if err := req.ReadEntity(&askRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	result, err := h.bridge.Ask(req.Request.Context(), provider, askRequest)
	if err != nil {
		h.writeError(resp, err)
		return
	}

	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// POST /api/v1/compare
func (h *Handler) Compare(req *restful.Request, resp *restful.Response) {
	var askRequest models.AskRequest
	if err := req.ReadEntity(&askRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	result, err := h.bridge.Compare(req.Request.Context(), askRequest)
	if err != nil {
		h.writeError(resp, err)
		return
	}

	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// GET /api/v1/security/status
func (h *Handler) SecurityStatus(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, h.security.Status())
}

// POST /api/v1/security/cache/reset
func (h *Handler) ResetCache(req *restful.Request, resp *restful.Response) {
	h.security.ResetCache()
	h.logger.Info().Msg("Pattern cache reset")
	resp.WriteHeaderAndEntity(http.StatusOK, h.security.Status())
}

func (h *Handler) writeError(resp *restful.Response, err error) {
	status := statusFor(err)

	var rejection *security.RejectionError
	if errors.As(err, &rejection) {
		categories := make([]string, 0, len(rejection.Reasons))
		for _, r := range rejection.Reasons {
			categories = append(categories, r.Category)
		}
		middleware.HandleError(resp, err, status, categories...)
		return
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	middleware.HandleError(resp, err, status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, security.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, security.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bridge.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
