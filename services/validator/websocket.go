// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validator

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/veloxar/arxval/services/validator/pipeline"
)

// WSValidateRequest is one script submitted over the websocket.
type WSValidateRequest struct {
	// Script is the Python source to validate.
	Script string `json:"script"`

	// Name labels the script in findings. Default: "script.py".
	Name string `json:"name,omitempty"`
}

// WSEvent is one server-to-client websocket message.
//
// Event is "ready" once after connect, "stage" as the pass advances,
// "result" with the completed pass, or "error".
type WSEvent struct {
	Event     string               `json:"event"`
	SessionID string               `json:"session_id,omitempty"`
	Script    string               `json:"script,omitempty"`
	Stage     string               `json:"stage,omitempty"`
	Error     string               `json:"error,omitempty"`
	Pass      *pipeline.PassResult `json:"pass,omitempty"`
}

// Scripts cap at 2MB; frames buffer in chunks beyond this.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024 * 1024,
	WriteBufferSize: 4 * 1024 * 1024,
}

func sendEvent(ws *websocket.Conn, ev WSEvent) error {
	err := ws.WriteJSON(ev)
	if err != nil {
		slog.Warn("Failed to write websocket JSON", "error", err)
	}
	return err
}

// HandleValidateWS handles GET /v1/ws/validate.
//
// Description:
//
//	Upgrades the connection and validates scripts as the client sends
//	them. Each script produces "stage" events while the pass runs and
//	one "result" event when it completes. Scripts run sequentially per
//	connection; every websocket write happens on the read loop's
//	goroutine, including the ones from the stage hook.
func (h *Handlers) HandleValidateWS(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleValidateWS")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	sessionID := uuid.NewString()
	logger.Info("Websocket client connected", "session_id", sessionID)

	if err := sendEvent(ws, WSEvent{Event: "ready", SessionID: sessionID}); err != nil {
		return
	}

	var current string
	p := h.svc.streamPipeline(func(s pipeline.Stage) {
		_ = sendEvent(ws, WSEvent{Event: "stage", Script: current, Stage: string(s)})
	})

	for {
		var req WSValidateRequest
		if err := ws.ReadJSON(&req); err != nil {
			logger.Info("Websocket client disconnected", "error", err.Error())
			return
		}

		if req.Script == "" {
			if sendEvent(ws, WSEvent{Event: "error", Error: "script is required"}) != nil {
				return
			}
			continue
		}
		if len(req.Script) > h.svc.Config().MaxScriptBytes {
			if sendEvent(ws, WSEvent{Event: "error", Script: req.Name, Error: "script exceeds maximum size"}) != nil {
				return
			}
			continue
		}

		name := req.Name
		if name == "" {
			name = DefaultScriptName
		}
		current = name

		pr, err := p.Run(c.Request.Context(), []byte(req.Script), name)
		if err != nil {
			logger.Error("Websocket pass failed", "script", name, "error", err)
			if sendEvent(ws, WSEvent{Event: "error", Script: name, Error: err.Error()}) != nil {
				return
			}
			continue
		}

		if sendEvent(ws, WSEvent{Event: "result", Script: name, Pass: pr}) != nil {
			return
		}
	}
}
