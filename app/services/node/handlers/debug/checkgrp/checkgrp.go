// Package checkgrp provides the readiness/liveness endpoints an
// orchestrator polls to decide whether to route traffic to, or restart,
// this node. Reconstructed from the call-site in the node service's
// debug mux (app/services/node/handlers/handlers.go), which the
// retrieved pack references but whose own source file was absent.
package checkgrp

import (
	"encoding/json"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// Handlers groups the debug check endpoints.
type Handlers struct {
	Build string
	Log   *zap.SugaredLogger
}

// Readiness reports whether this node is ready to serve requests. It is
// a static 200 for now; a future revision could gate this on the chain
// manager having finished replaying its header store at startup.
func (h Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Status string `json:"status"`
	}{
		Status: "OK",
	}

	if err := respond(w, status, http.StatusOK); err != nil {
		h.Log.Errorw("readiness", "ERROR", err)
	}
}

// Liveness reports basic process information so an orchestrator can
// confirm this node hasn't wedged.
func (h Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	host, err := os.Hostname()
	if err != nil {
		host = "unavailable"
	}

	info := struct {
		Status    string `json:"status"`
		Build     string `json:"build"`
		Host      string `json:"host"`
		Pod       string `json:"pod"`
		PodIP     string `json:"podIP"`
		Node      string `json:"node"`
		Namespace string `json:"namespace"`
	}{
		Status: "up",
		Build:  h.Build,
		Host:   host,
		Pod:    os.Getenv("KUBERNETES_PODNAME"),
		PodIP:  os.Getenv("KUBERNETES_NAMESPACE_POD_IP"),
		Node:   os.Getenv("KUBERNETES_NODENAME"),
	}

	if err := respond(w, info, http.StatusOK); err != nil {
		h.Log.Errorw("liveness", "ERROR", err)
	}
}

func respond(w http.ResponseWriter, v any, statusCode int) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, err = w.Write(data)
	return err
}
