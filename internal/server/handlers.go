package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/beacon/internal/auth"
	"github.com/ashita-ai/beacon/internal/ctxutil"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/registry"
	"github.com/ashita-ai/beacon/internal/service/detection"
	"github.com/ashita-ai/beacon/internal/situation"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	detection   *detection.Service
	registry    *registry.Loader
	jwtMgr      *auth.JWTManager
	clients     *auth.Clients
	logger      *slog.Logger
	storage     string
	version     string
	maxBodySize int64
	startedAt   time.Time
}

// HandleAuthToken exchanges a client id and API key for a bearer token.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := decodeJSON(w, r, &req, h.maxBodySize); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if h.clients == nil {
		auth.DummyVerify()
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}
	client, ok := h.clients.Authenticate(req.ClientID, req.APIKey)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}
	token, expiresAt, err := h.jwtMgr.IssueToken(client)
	if err != nil {
		h.logger.Error("issue token failed", "client_id", client.ClientID, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to issue token")
		return
	}
	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{Token: token, ExpiresAt: expiresAt})
}

// HandleResolve handles GET /v1/principals/resolve?identifier=.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	identifier := strings.TrimSpace(r.URL.Query().Get("identifier"))
	if len(identifier) > model.MaxIdentifierLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "identifier too long")
		return
	}
	res := h.detection.Resolve(identifier)
	writeJSON(w, r, http.StatusOK, model.ResolveResponse{
		Context:  res.Context,
		Strategy: string(res.Strategy),
		Fallback: res.Fallback,
	})
}

// HandleSelectKPIs handles POST /v1/kpis/select.
func (h *Handlers) HandleSelectKPIs(w http.ResponseWriter, r *http.Request) {
	var req model.SelectRequest
	if err := decodeJSON(w, r, &req, h.maxBodySize); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if len(req.PrincipalID) > model.MaxIdentifierLen || len(req.BusinessProcesses) > model.MaxProcesses {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "principal_id or business_processes exceed limits")
		return
	}
	res, sel := h.detection.Select(req.PrincipalID, req.BusinessProcesses)
	kpis := sel.KPIs
	if kpis == nil {
		kpis = []model.KPIDefinition{}
	}
	writeJSON(w, r, http.StatusOK, model.SelectResponse{
		PrincipalID: res.Context.PrincipalID,
		KPIs:        kpis,
		Examined:    sel.Examined,
	})
}

// HandleRegistryStatus reports where the current registry data came from.
func (h *Handlers) HandleRegistryStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.registry.Status())
}

// HandleRegistryReload re-reads the registry provider.
func (h *Handlers) HandleRegistryReload(w http.ResponseWriter, r *http.Request) {
	st := h.registry.Refresh(r.Context())
	h.logger.Info("registry reload requested",
		"client_id", ctxutil.ClientID(r.Context()),
		"source", st.Source,
		"fallback", st.Fallback)
	writeJSON(w, r, http.StatusOK, st)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := h.registry.Status()
	status := "healthy"
	if st.Fallback {
		status = "degraded"
	}
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:         status,
		Version:        h.version,
		Storage:        h.storage,
		RegistrySource: string(st.Source),
		Profiles:       st.Profiles,
		KPIs:           st.KPIs,
		Uptime:         int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleDetect handles POST /v1/situations/detect.
func (h *Handlers) HandleDetect(w http.ResponseWriter, r *http.Request) {
	var req model.DetectRequest
	if err := decodeJSON(w, r, &req, h.maxBodySize); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	res, err := h.detection.DetectSituations(r.Context(), req)
	if err != nil {
		if errors.Is(err, detection.ErrInvalidRequest) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
			return
		}
		h.logger.Error("detect situations failed", "principal_id", req.PrincipalID, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to detect situations")
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// HandleListSituations handles GET /v1/situations.
func (h *Handlers) HandleListSituations(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	sits, total, err := h.detection.Situations().List(r.Context(), f)
	if err != nil {
		h.logger.Error("list situations failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to list situations")
		return
	}
	if sits == nil {
		sits = []model.Situation{}
	}
	writeList(w, r, sits, total, f.EffectiveLimit())
}

// HandleGetSituation handles GET /v1/situations/{id}.
func (h *Handlers) HandleGetSituation(w http.ResponseWriter, r *http.Request) {
	s, err := h.detection.Situations().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeSituationError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s)
}

// HandleDecision handles POST /v1/situations/{id}/decisions. The decider is
// the authenticated client.
func (h *Handlers) HandleDecision(w http.ResponseWriter, r *http.Request) {
	var req model.DecisionRequest
	if err := decodeJSON(w, r, &req, h.maxBodySize); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if len(req.Comment) > model.MaxCommentLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "comment too long")
		return
	}
	s, err := h.detection.ApplyDecision(r.Context(), r.PathValue("id"), req, ctxutil.ClientID(r.Context()))
	if err != nil {
		h.writeSituationError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s)
}

func (h *Handlers) writeSituationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, situation.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "situation not found")
	case errors.Is(err, situation.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
	case errors.Is(err, situation.ErrInvalidDecision):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	default:
		h.logger.Error("situation request failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	}
}

// parseFilter reads principal_id, kpi, status (comma list), min_severity,
// limit and offset.
func parseFilter(r *http.Request) (situation.Filter, error) {
	q := r.URL.Query()
	f := situation.Filter{
		PrincipalID: strings.TrimSpace(q.Get("principal_id")),
		KPIName:     strings.TrimSpace(q.Get("kpi")),
	}
	if v := q.Get("status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			st, err := model.ParseStatus(strings.TrimSpace(raw))
			if err != nil {
				return situation.Filter{}, err
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if v := q.Get("min_severity"); v != "" {
		sev, err := model.ParseSeverity(v)
		if err != nil {
			return situation.Filter{}, err
		}
		f.MinSeverity = sev
	}
	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return situation.Filter{}, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return situation.Filter{}, err
	}
	return f, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}
