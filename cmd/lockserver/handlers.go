package main

import (
	"net/http"

	"github.com/sage-x-project/lockaudit/apperr"
	"github.com/sage-x-project/lockaudit/config"
	"github.com/sage-x-project/lockaudit/internal/httpapi"
	"github.com/sage-x-project/lockaudit/lock"
)

func handleListEntities(entities map[string]config.Entity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := make([]config.Entity, 0, len(entities))
		for _, e := range entities {
			list = append(list, e)
		}
		httpapi.WriteJSON(w, http.StatusOK, list)
	}
}

func handleGetChallenge(ctrl *lock.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := ctrl.GetPairingChallenge()
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, resp)
	}
}

func handlePairInitialStart(ctrl *lock.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := ctrl.PairInitialStart()
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}

type pairInitialFinishRequest struct {
	FinishPayload []byte `json:"finishPayload"`
	Mac           []byte `json:"mac"`
}

func handlePairInitialFinish(ctrl *lock.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pairInitialFinishRequest
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		if err := ctrl.PairInitialFinish(r.Context(), req.FinishPayload, req.Mac); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, nil)
	}
}

func handlePairDelegatedUploadPayload(ctrl *lock.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid := r.PathValue("cid")
		body, err := httpapi.ReadBody(r)
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		if err := ctrl.PairDelegatedUploadPayload(cid, body); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, nil)
	}
}

func handlePairDelegatedGetPayload(ctrl *lock.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid := r.PathValue("cid")
		payload, err := ctrl.PairDelegatedGetPayload(cid)
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}

func handlePairDelegatedFinish(ctrl *lock.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid := r.PathValue("cid")
		var env lock.SignedRequestEnvelope
		if err := httpapi.DecodeJSON(r, &env); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		if err := ctrl.PairDelegatedFinish(r.Context(), cid, env, httpapi.ClientIP(r)); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, nil)
	}
}

type unlockStartRequest struct {
	EntityID string `json:"entityId"`
}

func handleUnlockStart(ctrl *lock.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req unlockStartRequest
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		resp, err := ctrl.StartUnlock(req.EntityID)
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, resp)
	}
}

func handleUnlockFinish(ctrl *lock.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid := r.PathValue("cid")
		if cid == "" {
			httpapi.WriteError(w, apperr.BadRequest("missing challenge id"))
			return
		}
		var env lock.SignedRequestEnvelope
		if err := httpapi.DecodeJSON(r, &env); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		if err := ctrl.UnlockFinish(r.Context(), cid, env, httpapi.ClientIP(r)); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, nil)
	}
}
