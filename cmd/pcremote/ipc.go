package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The IPC server lets pcremote-ctl and scripts inspect and steer the daemon.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "request_name", "data": {...}}
//   - Server responds: {"status": "ok", "data": ...} or {"status": "error", "error": "msg"}
//
// Requests:
//   press_code         {"code": "0x..."}  queue a code as if received
//   get_status         -                  Status
//   list_binds         -                  []Bind
//   add_bind           Bind (id optional) created Bind
//   update_bind        Bind               -
//   remove_bind        {"id": "..."}      -
//   reload_config      -                  -
//   toggle_mouse_mode  -                  {"on": bool}
//   refresh_media      -                  MediaSnapshot
// ============================================================================

const (
	ReqPressCode       = "press_code"
	ReqGetStatus       = "get_status"
	ReqListBinds       = "list_binds"
	ReqAddBind         = "add_bind"
	ReqUpdateBind      = "update_bind"
	ReqRemoveBind      = "remove_bind"
	ReqReloadConfig    = "reload_config"
	ReqToggleMouseMode = "toggle_mouse_mode"
	ReqRefreshMedia    = "refresh_media"
)

// IPCRequest is one request line.
type IPCRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`
}

type pressCodeData struct {
	Code string `json:"code"`
}

type removeBindData struct {
	ID string `json:"id"`
}

type mouseModeData struct {
	On bool `json:"on"`
}

// ipcHandler executes requests against the running daemon.
type ipcHandler struct {
	listener   *Listener
	dispatcher *Dispatcher
	media      *Media
	store      *ConfigStore
	status     *StatusReporter
	pub        Publisher
	logger     *slog.Logger
}

// handle runs one request and returns its result payload.
func (h *ipcHandler) handle(req IPCRequest) (any, error) {
	switch req.Type {
	case ReqPressCode:
		var d pressCodeData
		if err := decodeData(req.Data, &d); err != nil {
			return nil, err
		}
		return nil, h.listener.Inject(d.Code)

	case ReqGetStatus:
		return h.status.Status(true), nil

	case ReqListBinds:
		return h.store.Binds(), nil

	case ReqAddBind:
		var b Bind
		if err := decodeData(req.Data, &b); err != nil {
			return nil, err
		}
		return h.store.AddBind(b)

	case ReqUpdateBind:
		var b Bind
		if err := decodeData(req.Data, &b); err != nil {
			return nil, err
		}
		return nil, h.store.UpdateBind(b)

	case ReqRemoveBind:
		var d removeBindData
		if err := decodeData(req.Data, &d); err != nil {
			return nil, err
		}
		return nil, h.store.RemoveBind(d.ID)

	case ReqReloadConfig:
		return nil, h.store.Reload()

	case ReqToggleMouseMode:
		return mouseModeData{On: h.dispatcher.ToggleMouseMode()}, nil

	case ReqRefreshMedia:
		if err := h.media.UpdateInfo(); err != nil {
			return nil, err
		}
		snap := h.media.Snapshot()
		h.pub.Publish(BroadcastMediaRefreshed{Media: snap, At: time.Now()})
		return snap, nil

	default:
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, h *ipcHandler, logger *slog.Logger) error {
	// Remove a stale socket left by a previous run.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// Owner only: the socket can add binds and power the machine off.
	if err := os.Chmod(socketPath, 0600); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, h, logger)
	}
}

// handleIPCConnection serves requests from one client until it disconnects.
func handleIPCConnection(conn net.Conn, h *ipcHandler, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		var resp IPCResponse
		var req IPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			resp = IPCResponse{Status: "error", Error: fmt.Sprintf("parse request: %v", err)}
		} else {
			resp = respond(h.handle(req))
			if resp.Status == "error" {
				logger.Warn("IPC request failed", "type", req.Type, "error", resp.Error)
			}
		}

		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

func respond(data any, err error) IPCResponse {
	if err != nil {
		return IPCResponse{Status: "error", Error: err.Error()}
	}
	resp := IPCResponse{Status: "ok"}
	if data != nil {
		b, mErr := json.Marshal(data)
		if mErr != nil {
			return IPCResponse{Status: "error", Error: fmt.Sprintf("encode result: %v", mErr)}
		}
		resp.Data = b
	}
	return resp
}
