/*
Package handler provides the HTTP surface of the car-sharing server.

This file contains the HandleWebSocket function, responsible for rate
limiting, upgrading the HTTP connection to WebSocket, and starting the
client session pumps. Riders and vehicle telematics units connect through
the same endpoint; the first envelope a session sends identifies it.
*/
package handler

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"carshare/internal/app/session"
	"carshare/internal/pkg/errs"
	"carshare/internal/pkg/limiter"
	"carshare/internal/pkg/logx"
	"carshare/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket
// connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote an HTTP error response.
			logx.Error(err, "Failed to upgrade connection to WebSocket", "ip", ip)
			return
		}

		client := session.NewClient(conn, deps.Orchestrator, deps.Store)

		// The request context dies when this handler returns, while the
		// session outlives it. Pumps run against the background context.
		go client.WritePump()
		go client.ReadPump(context.Background())
	}
}
