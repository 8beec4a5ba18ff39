// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/inversion_meter/internal/meter"
	"github.com/relabs-tech/inversion_meter/internal/session"
)

const requestTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the meter is served on the local network only
	},
}

// WSMessage is a client command on the websocket.
type WSMessage struct {
	Action string `json:"action"` // permission, calibrate, toggle
}

// WSResponse is a server push on the websocket.
type WSResponse struct {
	Type     string          `json:"type"` // snapshot, record, error
	Snapshot *meter.Snapshot `json:"snapshot,omitempty"`
	Record   *session.Record `json:"record,omitempty"`
	Message  string          `json:"message,omitempty"`
}

type webServer struct {
	ctx context.Context
	m   Meter
}

// NewWebHandler serves the meter's JSON API, the websocket stream and the
// static files under staticDir. ctx bounds websocket sessions.
func NewWebHandler(ctx context.Context, m Meter, staticDir string) http.Handler {
	s := &webServer{ctx: ctx, m: m}

	// API routes stay on the root router: a wrong method is a 405, never a
	// fall-through to the file server.
	r := mux.NewRouter()
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/permission", s.handlePermission).Methods(http.MethodPost)
	r.HandleFunc("/api/calibrate", s.handleCalibrate).Methods(http.MethodPost)
	r.HandleFunc("/api/recording/toggle", s.handleToggle).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWS)

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

func (s *webServer) handleState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := s.m.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *webServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := s.m.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	history := snap.History
	if history == nil {
		history = []session.Record{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *webServer) handlePermission(w http.ResponseWriter, r *http.Request) {
	// The request outlives the HTTP call, so it runs on the server context.
	ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
	defer cancel()

	snap, err := s.m.RequestPermission(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *webServer) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, ActionCalibrate)
}

func (s *webServer) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, ActionToggle)
}

func (s *webServer) runAction(w http.ResponseWriter, r *http.Request, action string) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, rec, err := Dispatch(ctx, s.m, action)
	switch {
	case errors.Is(err, meter.ErrNotPermitted):
		writeError(w, http.StatusForbidden, err)
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeJSON(w, http.StatusOK, struct {
			Snapshot meter.Snapshot  `json:"snapshot"`
			Record   *session.Record `json:"record,omitempty"`
		}{snap, rec})
	}
}

// handleWS pushes every snapshot to the client and executes the commands it
// sends. All writes happen on this goroutine.
func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.m.Subscribe()
	defer unsubscribe()

	responses := make(chan WSResponse, 4)
	readDone := make(chan struct{})
	connDone := make(chan struct{})
	defer close(connDone)
	go s.readWS(conn, responses, readDone, connDone)

	ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
	snap, err := s.m.Snapshot(ctx)
	cancel()
	if err != nil {
		conn.WriteJSON(WSResponse{Type: "error", Message: err.Error()})
		return
	}
	if err := conn.WriteJSON(WSResponse{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}

	for {
		var msg WSResponse
		select {
		case <-s.ctx.Done():
			return
		case <-readDone:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			msg = WSResponse{Type: "snapshot", Snapshot: &snap}
		case msg = <-responses:
		}

		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}
}

// readWS executes client commands and queues their replies for the writer.
// connDone closes when the writer has gone away.
func (s *webServer) readWS(conn *websocket.Conn, responses chan<- WSResponse, done chan<- struct{}, connDone <-chan struct{}) {
	defer close(done)
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("web: websocket read error: %v", err)
			}
			return
		}

		ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
		_, rec, err := Dispatch(ctx, s.m, msg.Action)
		cancel()

		var resp WSResponse
		switch {
		case err != nil:
			resp = WSResponse{Type: "error", Message: err.Error()}
		case rec != nil:
			resp = WSResponse{Type: "record", Record: rec}
		default:
			continue
		}
		select {
		case responses <- resp:
		case <-connDone:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
