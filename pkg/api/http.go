// Package api exposes the admin HTTP surface: binding management, stats
// display payloads, and store introspection.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"pressbot/pkg/bindings"
	"pressbot/pkg/logger"
	"pressbot/pkg/models"
	"pressbot/pkg/service"
	"pressbot/pkg/store"
	"pressbot/pkg/utils"
)

// Handler returns the admin API router:
//   - POST   /v1/communities/{community}/bindings        bind a channel
//   - GET    /v1/communities/{community}/bindings        list bindings
//   - GET    /v1/communities/{community}/bindings/{channel}
//   - DELETE /v1/communities/{community}/bindings/{channel}
//   - GET    /v1/stats[?community=<id>]                  counts and rates
//   - GET    /v1/store                                   store metrics
func Handler(svc *service.Service) http.Handler {
	r := mux.NewRouter()
	h := &handlers{svc: svc}

	r.HandleFunc("/v1/communities/{community}/bindings", h.createBinding).Methods(http.MethodPost)
	r.HandleFunc("/v1/communities/{community}/bindings", h.listBindings).Methods(http.MethodGet)
	r.HandleFunc("/v1/communities/{community}/bindings/{channel}", h.getBinding).Methods(http.MethodGet)
	r.HandleFunc("/v1/communities/{community}/bindings/{channel}", h.deleteBinding).Methods(http.MethodDelete)
	r.HandleFunc("/v1/stats", h.getStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/store", h.getStore).Methods(http.MethodGet)

	r.Use(requestIDMiddleware)
	return r
}

type handlers struct {
	svc *service.Service
}

// requestIDMiddleware tags each request so admin actions can be correlated
// across log lines.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		logger.Debug("admin_request", "id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

type createBindingRequest struct {
	ChannelID string `json:"channel_id"`
}

func (h *handlers) createBinding(w http.ResponseWriter, r *http.Request) {
	community := mux.Vars(r)["community"]
	var req createBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == "" {
		utils.JSONError(w, http.StatusBadRequest, "channel_id is required")
		return
	}
	b, err := h.svc.CreateBinding(r.Context(), community, req.ChannelID)
	if err != nil {
		if errors.Is(err, bindings.ErrAlreadyBound) {
			utils.JSONError(w, http.StatusConflict, err.Error())
			return
		}
		if errors.Is(err, bindings.ErrInvalidID) {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("create_binding_failed", "community", community, "channel", req.ChannelID, "error", err)
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, b)
}

func (h *handlers) listBindings(w http.ResponseWriter, r *http.Request) {
	community := mux.Vars(r)["community"]
	bs, err := h.svc.ListBindings(community)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bs == nil {
		bs = []models.ChannelBinding{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, bs)
}

func (h *handlers) getBinding(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b, err := h.svc.Bindings.Get(vars["community"], vars["channel"])
	if err != nil {
		if errors.Is(err, bindings.ErrUnknownBinding) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, b)
}

func (h *handlers) deleteBinding(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.svc.DeleteBinding(r.Context(), vars["community"], vars["channel"])
	if err != nil {
		if errors.Is(err, bindings.ErrUnknownBinding) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.Error("delete_binding_failed", "community", vars["community"], "channel", vars["channel"], "error", err)
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getStats(w http.ResponseWriter, r *http.Request) {
	community := r.URL.Query().Get("community")
	st, err := h.svc.Stats(community)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, st)
}

func (h *handlers) getStore(w http.ResponseWriter, r *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, store.GetMetrics())
}
