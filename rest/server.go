// Package rest exposes the command bridge over HTTP. Handlers run on
// their own goroutines, construct commands, push them onto the bridge
// queue, and wait on each command's result slot with a timeout; the
// engine tick drains the queue independently. The error taxonomy maps to
// HTTP status codes in statusFor.
package rest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/ezrec/nesbridge/bridge"
	"github.com/ezrec/nesbridge/ops"
)

// HEX_PREVIEW_LIMIT bounds the inline hex preview of range reads.
const HEX_PREVIEW_LIMIT = 64

// InfoSource supplies system description pairs for /api/system/info.
type InfoSource func() iter.Seq2[string, string]

// Server is the HTTP front-end over one bridge queue.
type Server struct {
	cfg   Config
	queue *bridge.Queue
	plan  *ops.ReleasePlan
	info  InfoSource

	mux *http.ServeMux
}

// NewServer creates a server; plan may be nil to disable timed joypad
// releases, info may be nil to serve an empty system description.
func NewServer(cfg Config, queue *bridge.Queue, plan *ops.ReleasePlan, info InfoSource) (srv *Server) {
	srv = &Server{
		cfg:   cfg,
		queue: queue,
		plan:  plan,
		info:  info,
		mux:   http.NewServeMux(),
	}

	srv.mux.HandleFunc("GET /api/system/ping", srv.handlePing)
	srv.mux.HandleFunc("GET /api/system/info", srv.handleSystemInfo)
	srv.mux.HandleFunc("GET /api/system/capabilities", srv.handleCapabilities)
	srv.mux.HandleFunc("GET /api/rom/info", srv.handleROMInfo)

	srv.mux.HandleFunc("GET /api/memory/range/{addr}", srv.handleRangeRead)
	srv.mux.HandleFunc("POST /api/memory/range/{addr}", srv.handleRangeWrite)
	srv.mux.HandleFunc("POST /api/memory/batch", srv.handleBatch)
	srv.mux.HandleFunc("GET /api/memory/{addr}", srv.handleByteRead)
	srv.mux.HandleFunc("POST /api/memory/{addr}", srv.handleByteWrite)

	srv.mux.HandleFunc("POST /api/emulation/pause", srv.handlePause)
	srv.mux.HandleFunc("POST /api/emulation/resume", srv.handleResume)
	srv.mux.HandleFunc("GET /api/emulation/status", srv.handleStatus)

	srv.mux.HandleFunc("POST /api/input/joypad", srv.handleJoypad)
	srv.mux.HandleFunc("DELETE /api/input/joypad", srv.handleJoypadClear)
	srv.mux.HandleFunc("GET /api/input/status", srv.handleInputStatus)

	return
}

// Handler returns the route handler, for embedding or tests.
func (srv *Server) Handler() http.Handler {
	return srv.mux
}

// HTTPServer returns a configured http.Server bound to the configured
// port.
func (srv *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.cfg.Port),
		Handler:      srv.mux,
		ReadTimeout:  srv.cfg.ReadTimeout,
		WriteTimeout: srv.cfg.WriteTimeout,
	}
}

// submit pushes a command and waits on its slot. A rejected push reports
// ErrQueueFull synchronously without waiting.
func submit[T any](queue *bridge.Queue, cmd bridge.Command, slot *bridge.Slot[T], timeout time.Duration) (value T, err error) {
	if !queue.Push(cmd) {
		err = bridge.ErrQueueFull
		return
	}

	return slot.Wait(timeout)
}

func (srv *Server) handlePing(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *Server) handleSystemInfo(w http.ResponseWriter, req *http.Request) {
	info := map[string]string{}
	if srv.info != nil {
		for key, value := range srv.info() {
			info[key] = value
		}
	}

	writeJSON(w, http.StatusOK, info)
}

func (srv *Server) handleCapabilities(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": []string{
			"memory.read", "memory.write", "memory.batch",
			"emulation.pause", "emulation.resume", "emulation.status",
			"input.joypad", "input.clear", "input.status",
			"rom.info",
		},
		"limits": map[string]int{
			"max_range_length": ops.MAX_RANGE_LENGTH,
			"max_batch_ops":    ops.MAX_BATCH_OPS,
			"queue_capacity":   srv.cfg.QueueCapacity,
		},
	})
}

type romInfoResponse struct {
	Loaded     bool   `json:"loaded"`
	Name       string `json:"name,omitempty"`
	Size       int    `json:"size,omitempty"`
	Mapper     int    `json:"mapper"`
	Mirroring  string `json:"mirroring,omitempty"`
	HasBattery bool   `json:"has_battery"`
	MD5        string `json:"md5,omitempty"`
}

func (srv *Server) handleROMInfo(w http.ResponseWriter, req *http.Request) {
	cmd := ops.NewROMInfoCommand()
	info, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, romInfoResponse{
		Loaded:     info.Loaded,
		Name:       info.Name,
		Size:       info.Size,
		Mapper:     info.Mapper,
		Mirroring:  info.Mirroring,
		HasBattery: info.Battery,
		MD5:        info.MD5,
	})
}

type byteReadResponse struct {
	Address string `json:"address"`
	Value   uint8  `json:"value"`
	Hex     string `json:"hex"`
}

func (srv *Server) handleByteRead(w http.ResponseWriter, req *http.Request) {
	addr, err := ParseAddress(req.PathValue("addr"))
	if err != nil {
		writeError(w, err)
		return
	}

	cmd := ops.NewReadCommand(addr, 1)
	res, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, byteReadResponse{
		Address: fmt.Sprintf("0x%04x", addr),
		Value:   res.Data[0],
		Hex:     fmt.Sprintf("0x%02x", res.Data[0]),
	})
}

type byteWriteRequest struct {
	Value *uint8 `json:"value"`
}

type writeResponse struct {
	Success      bool   `json:"success"`
	Start        string `json:"start"`
	BytesWritten int    `json:"bytes_written"`
}

func (srv *Server) handleByteWrite(w http.ResponseWriter, req *http.Request) {
	addr, err := ParseAddress(req.PathValue("addr"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body byteWriteRequest
	err = json.NewDecoder(req.Body).Decode(&body)
	if err != nil || body.Value == nil {
		writeError(w, fmt.Errorf("%w: body must carry a value", bridge.ErrInvalidArgument))
		return
	}

	cmd := ops.NewWriteCommand(addr, []uint8{*body.Value})
	res, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, writeResponse{
		Success:      true,
		Start:        fmt.Sprintf("0x%04x", res.Start),
		BytesWritten: res.BytesWritten,
	})
}

type rangeReadResponse struct {
	Start    string `json:"start"`
	Length   int    `json:"length"`
	Data     string `json:"data"`
	Hex      string `json:"hex"`
	Checksum string `json:"checksum"`
}

func hexPreview(data []uint8) (preview string) {
	limit := min(len(data), HEX_PREVIEW_LIMIT)
	for _, value := range data[:limit] {
		preview += fmt.Sprintf("%02x", value)
	}
	if len(data) > HEX_PREVIEW_LIMIT {
		preview += "..."
	}
	return
}

func (srv *Server) handleRangeRead(w http.ResponseWriter, req *http.Request) {
	addr, err := ParseAddress(req.PathValue("addr"))
	if err != nil {
		writeError(w, err)
		return
	}

	length := 1
	if arg := req.URL.Query().Get("length"); arg != "" {
		length, err = strconv.Atoi(arg)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid length %q", bridge.ErrInvalidArgument, arg))
			return
		}
	}

	cmd := ops.NewReadCommand(addr, length)
	res, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rangeReadResponse{
		Start:    fmt.Sprintf("0x%04x", res.Start),
		Length:   len(res.Data),
		Data:     base64.StdEncoding.EncodeToString(res.Data),
		Hex:      hexPreview(res.Data),
		Checksum: fmt.Sprintf("0x%02x", res.Checksum()),
	})
}

type rangeWriteRequest struct {
	Data string `json:"data"` // base64
}

func (srv *Server) handleRangeWrite(w http.ResponseWriter, req *http.Request) {
	addr, err := ParseAddress(req.PathValue("addr"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body rangeWriteRequest
	err = json.NewDecoder(req.Body).Decode(&body)
	if err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", bridge.ErrInvalidArgument))
		return
	}

	data, err := base64.StdEncoding.DecodeString(body.Data)
	if err != nil {
		writeError(w, fmt.Errorf("%w: data is not valid base64", bridge.ErrInvalidArgument))
		return
	}

	cmd := ops.NewWriteCommand(addr, data)
	res, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, writeResponse{
		Success:      true,
		Start:        fmt.Sprintf("0x%04x", res.Start),
		BytesWritten: res.BytesWritten,
	})
}

type batchOpRequest struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Length  int    `json:"length,omitempty"`
	Data    string `json:"data,omitempty"` // base64
}

type batchRequest struct {
	Operations []batchOpRequest `json:"operations"`
}

type batchOpResponse struct {
	Type         string `json:"type"`
	Success      bool   `json:"success"`
	Address      string `json:"address"`
	Data         string `json:"data,omitempty"`
	BytesWritten int    `json:"bytes_written,omitempty"`
	Error        string `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchOpResponse `json:"results"`
}

func (srv *Server) handleBatch(w http.ResponseWriter, req *http.Request) {
	var body batchRequest
	err := json.NewDecoder(req.Body).Decode(&body)
	if err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", bridge.ErrInvalidArgument))
		return
	}

	batchOps := make([]ops.BatchOp, 0, len(body.Operations))
	for _, op := range body.Operations {
		addr, err := ParseAddress(op.Address)
		if err != nil {
			writeError(w, err)
			return
		}

		switch op.Type {
		case "read":
			batchOps = append(batchOps, ops.BatchOp{Kind: ops.OpRead, Addr: addr, Length: op.Length})
		case "write":
			data, err := base64.StdEncoding.DecodeString(op.Data)
			if err != nil {
				writeError(w, fmt.Errorf("%w: data is not valid base64", bridge.ErrInvalidArgument))
				return
			}
			batchOps = append(batchOps, ops.BatchOp{Kind: ops.OpWrite, Addr: addr, Data: data})
		default:
			writeError(w, fmt.Errorf("%w: unknown operation type %q", bridge.ErrInvalidArgument, op.Type))
			return
		}
	}

	cmd := ops.NewBatchCommand(batchOps)
	res, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.BatchTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	out := batchResponse{Results: make([]batchOpResponse, 0, len(res.Results))}
	for _, opRes := range res.Results {
		entry := batchOpResponse{
			Type:    opRes.Kind.String(),
			Success: opRes.Err == nil,
			Address: fmt.Sprintf("0x%04x", opRes.Addr),
		}
		if opRes.Err != nil {
			entry.Error = opRes.Err.Error()
		} else if opRes.Kind == ops.OpRead {
			entry.Data = base64.StdEncoding.EncodeToString(opRes.Data)
		} else {
			entry.BytesWritten = opRes.BytesWritten
		}
		out.Results = append(out.Results, entry)
	}

	writeJSON(w, http.StatusOK, out)
}

type controlResponse struct {
	Success bool   `json:"success"`
	State   string `json:"state"`
	Changed bool   `json:"changed"`
}

func (srv *Server) handlePause(w http.ResponseWriter, req *http.Request) {
	cmd := ops.NewPauseCommand()
	changed, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, controlResponse{Success: true, State: "paused", Changed: changed})
}

func (srv *Server) handleResume(w http.ResponseWriter, req *http.Request) {
	cmd := ops.NewResumeCommand()
	changed, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, controlResponse{Success: true, State: "resumed", Changed: changed})
}

type statusResponse struct {
	Running    bool    `json:"running"`
	Paused     bool    `json:"paused"`
	ROMLoaded  bool    `json:"rom_loaded"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
}

func (srv *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	cmd := ops.NewStatusCommand()
	status, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Running:    status.Running,
		Paused:     status.Paused,
		ROMLoaded:  status.Loaded,
		FPS:        status.FPS,
		FrameCount: status.FrameCount,
	})
}

type joypadRequest struct {
	Port           int      `json:"port"`
	Buttons        []string `json:"buttons"`
	DurationFrames int      `json:"duration_frames"`
}

type joypadResponse struct {
	Success      bool   `json:"success"`
	Port         int    `json:"port"`
	Buttons      uint8  `json:"buttons"`
	ReleaseFrame int    `json:"release_frame,omitempty"`
	State        string `json:"state"`
}

func (srv *Server) handleJoypad(w http.ResponseWriter, req *http.Request) {
	var body joypadRequest
	err := json.NewDecoder(req.Body).Decode(&body)
	if err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", bridge.ErrInvalidArgument))
		return
	}

	var buttons uint8
	for _, name := range body.Buttons {
		bit, ok := ops.ButtonBit(name)
		if !ok {
			writeError(w, fmt.Errorf("%w: unknown button %q", bridge.ErrInvalidArgument, name))
			return
		}
		buttons |= bit
	}

	cmd := ops.NewJoypadCommand(body.Port, buttons, body.DurationFrames, srv.plan)
	res, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, joypadResponse{
		Success:      true,
		Port:         res.Port,
		Buttons:      res.Buttons,
		ReleaseFrame: res.ReleaseFrame,
		State:        "pressed",
	})
}

type inputPortResponse struct {
	Port    int      `json:"port"`
	Mask    uint8    `json:"mask"`
	Buttons []string `json:"buttons"`
}

func (srv *Server) handleInputStatus(w http.ResponseWriter, req *http.Request) {
	cmd := ops.NewInputStatusCommand()
	status, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	ports := make([]inputPortResponse, 0, len(status.Ports))
	for _, port := range status.Ports {
		ports = append(ports, inputPortResponse{
			Port:    port.Port,
			Mask:    port.Buttons,
			Buttons: ops.ButtonNames(port.Buttons),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"ports": ports})
}

func (srv *Server) handleJoypadClear(w http.ResponseWriter, req *http.Request) {
	port := -1
	if arg := req.URL.Query().Get("port"); arg != "" {
		var err error
		port, err = strconv.Atoi(arg)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid port %q", bridge.ErrInvalidArgument, arg))
			return
		}
	}

	cmd := ops.NewClearJoypadCommand(port)
	_, err := submit(srv.queue, cmd, cmd.Result(), srv.cfg.CommandTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "state": "cleared"})
}
