package main

import (
	"net/http"
	"strings"

	"github.com/sage-x-project/lockaudit/apperr"
	"github.com/sage-x-project/lockaudit/audit"
	"github.com/sage-x-project/lockaudit/internal/httpapi"
)

type registerRequest struct {
	ClientMacKey []byte `json:"clientMacKey"`
}

type registerResponse struct {
	ClientID  string `json:"clientId"`
	ServerPK  string `json:"serverPublicKey"`
	ReadToken string `json:"readToken"`
}

func handleRegister(srv *audit.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		res, err := srv.Register(r.Context(), req.ClientMacKey)
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, registerResponse{
			ClientID:  res.ClientID,
			ServerPK:  res.ServerPK,
			ReadToken: res.ReadToken,
		})
	}
}

type signRequest struct {
	ClientID  string `json:"clientId"`
	Envelope  []byte `json:"envelope"`
	ClientMac []byte `json:"clientMac"`
}

type signResponse struct {
	Stamp           signStampJSON `json:"stamp"`
	ServerSignature string        `json:"serverSignature"`
}

// signStampJSON carries the raw stamp bytes through without re-marshaling
// them, so the response body's stamp object is byte-identical to what the
// signature covers.
type signStampJSON struct {
	raw []byte
}

func (s signStampJSON) MarshalJSON() ([]byte, error) { return s.raw, nil }

func handleSign(srv *audit.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signRequest
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			httpapi.WriteError(w, err)
			return
		}
		res, err := srv.Sign(r.Context(), req.ClientID, req.Envelope, req.ClientMac, httpapi.ClientIP(r))
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, signResponse{
			Stamp:           signStampJSON{raw: res.StampJSON},
			ServerSignature: res.ServerSig,
		})
	}
}

func handleLogs(srv *audit.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/device/"), "/logs")
		if clientID == "" {
			httpapi.WriteError(w, apperr.BadRequest("missing client id"))
			return
		}

		authz := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(authz, "Bearer ")
		if tokenString == "" || tokenString == authz {
			httpapi.WriteError(w, apperr.BadRequest("missing bearer token"))
			return
		}
		sub, err := srv.VerifyReadToken(tokenString)
		if err != nil || sub != clientID {
			httpapi.WriteError(w, apperr.BadRequest("read token does not authorize this device"))
			return
		}

		httpapi.WriteJSON(w, http.StatusOK, srv.Logs(clientID))
	}
}
