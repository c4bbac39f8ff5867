package rest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/nesbridge/bridge"
	"github.com/ezrec/nesbridge/engine"
	"github.com/ezrec/nesbridge/ops"
)

func buildROM(flags6 uint8) []byte {
	image := &bytes.Buffer{}
	header := make([]byte, engine.INES_HEADER_SIZE)
	copy(header, []byte{'N', 'E', 'S', 0x1a})
	header[4] = 1
	header[5] = 1
	header[6] = flags6
	image.Write(header)
	image.Write(make([]byte, engine.PRG_BANK_SIZE))
	image.Write(make([]byte, engine.CHR_BANK_SIZE))

	return image.Bytes()
}

type testServer struct {
	machine *engine.Machine
	queue   *bridge.Queue
	plan    *ops.ReleasePlan
	http    *httptest.Server
	done    chan struct{}
}

// newTestServer stands up a server over a real machine, with a drain
// goroutine playing the engine tick.
func newTestServer(t *testing.T, flags6 uint8) (ts *testServer) {
	assert := assert.New(t)

	m := engine.NewMachine()
	if flags6 != 0xff { // 0xff means start with no rom
		rom, err := engine.LoadROM("test.nes", bytes.NewReader(buildROM(flags6)))
		assert.NoError(err)
		m.Insert(rom)
	}

	cfg, err := ConfigFromEnv()
	assert.NoError(err)

	queue := bridge.NewQueue(cfg.QueueCapacity)
	ex := &bridge.Executor{Queue: queue, Engine: m, MaxPerDrain: cfg.MaxPerDrain}

	ts = &testServer{
		machine: m,
		queue:   queue,
		plan:    &ops.ReleasePlan{},
		done:    make(chan struct{}),
	}

	srv := NewServer(cfg, queue, ts.plan, m.Info)
	ts.http = httptest.NewServer(srv.Handler())

	done := ts.done
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				ex.Drain()
				time.Sleep(time.Millisecond)
			}
		}
	}()

	t.Cleanup(func() {
		close(ts.done)
		ts.http.Close()
		queue.Close()
	})

	return
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, map[string]any) {
	return ts.do(t, http.MethodGet, path, nil)
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (resp *http.Response, decoded map[string]any) {
	assert := assert.New(t)

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		assert.NoError(err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.http.URL+path, reader)
	assert.NoError(err)

	resp, err = http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()

	decoded = map[string]any{}
	assert.NoError(json.NewDecoder(resp.Body).Decode(&decoded))

	return
}

func TestPing(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, body := ts.get(t, "/api/system/ping")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("ok", body["status"])
}

func TestSystemInfo(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, body := ts.get(t, "/api/system/info")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.NotEmpty(body)
}

func TestCapabilities(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, body := ts.get(t, "/api/system/capabilities")
	assert.Equal(http.StatusOK, resp.StatusCode)

	commands := body["commands"].([]any)
	assert.Contains(commands, "memory.read")
	assert.Contains(commands, "input.status")

	limits := body["limits"].(map[string]any)
	assert.Equal(float64(ops.MAX_RANGE_LENGTH), limits["max_range_length"])
	assert.Equal(float64(ops.MAX_BATCH_OPS), limits["max_batch_ops"])
}

func TestROMInfo(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, engine.INES_BATTERY)

	resp, body := ts.get(t, "/api/rom/info")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(true, body["loaded"])
	assert.Equal("test.nes", body["name"])
	assert.Equal(true, body["has_battery"])
}

func TestByteReadWrite(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, body := ts.do(t, http.MethodPost, "/api/memory/0x0010",
		map[string]any{"value": 0xab})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(true, body["success"])
	assert.Equal(float64(1), body["bytes_written"])

	resp, body = ts.get(t, "/api/memory/0x0010")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("0x0010", body["address"])
	assert.Equal(float64(0xab), body["value"])
	assert.Equal("0xab", body["hex"])
}

func TestByteWrite_Rejected(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	// Ram mirror: readable but not writable.
	resp, _ := ts.do(t, http.MethodPost, "/api/memory/0x0800",
		map[string]any{"value": 1})
	assert.Equal(http.StatusForbidden, resp.StatusCode)

	// Missing value.
	resp, _ = ts.do(t, http.MethodPost, "/api/memory/0x0010", map[string]any{})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	// Unparseable address.
	resp, _ = ts.do(t, http.MethodPost, "/api/memory/zork",
		map[string]any{"value": 1})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestRangeReadWrite(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	data := []byte{0x01, 0x02, 0x03, 0x04}
	resp, body := ts.do(t, http.MethodPost, "/api/memory/range/0x0200",
		map[string]any{"data": base64.StdEncoding.EncodeToString(data)})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("0x0200", body["start"])
	assert.Equal(float64(4), body["bytes_written"])

	resp, body = ts.get(t, "/api/memory/range/0x0200?length=4")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("0x0200", body["start"])
	assert.Equal(float64(4), body["length"])
	assert.Equal("01020304", body["hex"])
	assert.Equal("0x04", body["checksum"]) // 1^2^3^4

	raw, err := base64.StdEncoding.DecodeString(body["data"].(string))
	assert.NoError(err)
	assert.Equal(data, raw)
}

func TestRangeRead_HexPreviewTruncates(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, body := ts.get(t, fmt.Sprintf("/api/memory/range/0x0000?length=%d", HEX_PREVIEW_LIMIT+16))
	assert.Equal(http.StatusOK, resp.StatusCode)

	preview := body["hex"].(string)
	assert.True(strings.HasSuffix(preview, "..."))
	assert.Len(preview, 2*HEX_PREVIEW_LIMIT+3)
}

func TestRangeRead_Rejected(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, _ := ts.get(t, "/api/memory/range/0x0000?length=0")
	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.get(t, "/api/memory/range/0x0000?length=4097")
	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.get(t, "/api/memory/range/0xffff?length=2")
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestRangeWrite_UnsafeRegion(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	payload := map[string]any{"data": base64.StdEncoding.EncodeToString([]byte{1})}

	resp, _ := ts.do(t, http.MethodPost, "/api/memory/range/0x8000", payload)
	assert.Equal(http.StatusForbidden, resp.StatusCode)

	// Save ram without battery backing.
	resp, _ = ts.do(t, http.MethodPost, "/api/memory/range/0x6000", payload)
	assert.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestRangeWrite_SaveRAMWithBattery(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, engine.INES_BATTERY)

	payload := map[string]any{"data": base64.StdEncoding.EncodeToString([]byte{0x5a})}
	resp, body := ts.do(t, http.MethodPost, "/api/memory/range/0x6000", payload)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(true, body["success"])
}

func TestBatch(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, body := ts.do(t, http.MethodPost, "/api/memory/batch", map[string]any{
		"operations": []map[string]any{
			{"type": "write", "address": "0x0100",
				"data": base64.StdEncoding.EncodeToString([]byte{0x11, 0x22})},
			{"type": "write", "address": "0x8000",
				"data": base64.StdEncoding.EncodeToString([]byte{0x33})},
			{"type": "read", "address": "0x0100", "length": 2},
		},
	})
	assert.Equal(http.StatusOK, resp.StatusCode)

	results := body["results"].([]any)
	assert.Len(results, 3)

	first := results[0].(map[string]any)
	assert.Equal(true, first["success"])
	assert.Equal(float64(2), first["bytes_written"])

	second := results[1].(map[string]any)
	assert.Equal(false, second["success"])
	assert.NotEmpty(second["error"])

	third := results[2].(map[string]any)
	assert.Equal(true, third["success"])
	raw, err := base64.StdEncoding.DecodeString(third["data"].(string))
	assert.NoError(err)
	assert.Equal([]byte{0x11, 0x22}, raw)
}

func TestBatch_Rejected(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, _ := ts.do(t, http.MethodPost, "/api/memory/batch",
		map[string]any{"operations": []map[string]any{}})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/memory/batch", map[string]any{
		"operations": []map[string]any{
			{"type": "poke", "address": "0x0100"},
		},
	})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestPauseResumeStatus(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, body := ts.do(t, http.MethodPost, "/api/emulation/pause", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("paused", body["state"])
	assert.Equal(true, body["changed"])

	resp, body = ts.get(t, "/api/emulation/status")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(true, body["paused"])
	assert.Equal(true, body["rom_loaded"])
	assert.Equal(false, body["running"])

	resp, body = ts.do(t, http.MethodPost, "/api/emulation/resume", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("resumed", body["state"])

	// Second resume changes nothing.
	resp, body = ts.do(t, http.MethodPost, "/api/emulation/resume", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(false, body["changed"])
}

func TestStatus_NoROM(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0xff)

	resp, body := ts.get(t, "/api/emulation/status")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(false, body["rom_loaded"])
}

func TestJoypad(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, body := ts.do(t, http.MethodPost, "/api/input/joypad", map[string]any{
		"port":            0,
		"buttons":         []string{"A", "START"},
		"duration_frames": 10,
	})
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal(true, body["success"])
	assert.Equal(float64(ops.JOY_A|ops.JOY_START), body["buttons"])
	assert.Equal(float64(10), body["release_frame"])
	assert.Equal(1, ts.plan.Pending())

	ts.machine.Lock()
	pressed := ts.machine.Joypad(0)
	ts.machine.Unlock()
	assert.Equal(uint8(ops.JOY_A|ops.JOY_START), pressed)

	resp, _ = ts.do(t, http.MethodDelete, "/api/input/joypad?port=0", nil)
	assert.Equal(http.StatusOK, resp.StatusCode)

	ts.machine.Lock()
	cleared := ts.machine.Joypad(0)
	ts.machine.Unlock()
	assert.Equal(uint8(0), cleared)
}

func TestInputStatus(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, _ := ts.do(t, http.MethodPost, "/api/input/joypad", map[string]any{
		"port":    1,
		"buttons": []string{"A", "START"},
	})
	assert.Equal(http.StatusOK, resp.StatusCode)

	resp, body := ts.get(t, "/api/input/status")
	assert.Equal(http.StatusOK, resp.StatusCode)

	ports := body["ports"].([]any)
	assert.Len(ports, ops.JOYPAD_PORTS)

	first := ports[0].(map[string]any)
	assert.Equal(float64(0), first["mask"])

	second := ports[1].(map[string]any)
	assert.Equal(float64(1), second["port"])
	assert.Equal(float64(ops.JOY_A|ops.JOY_START), second["mask"])
	assert.Equal([]any{"A", "START"}, second["buttons"])
}

func TestJoypad_Rejected(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0)

	resp, _ := ts.do(t, http.MethodPost, "/api/input/joypad", map[string]any{
		"port":    9,
		"buttons": []string{"A"},
	})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/input/joypad", map[string]any{
		"port":    0,
		"buttons": []string{"TURBO"},
	})
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestEngineUnavailable(t *testing.T) {
	assert := assert.New(t)
	ts := newTestServer(t, 0xff)

	resp, _ := ts.get(t, "/api/memory/0x0000")
	assert.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func TestQueueFull(t *testing.T) {
	assert := assert.New(t)

	// Tiny queue, no drain goroutine: pushes stack up until rejected.
	cfg, err := ConfigFromEnv()
	assert.NoError(err)

	queue := bridge.NewQueue(2)
	t.Cleanup(func() { queue.Close() })

	srv := NewServer(cfg, queue, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	assert.True(queue.Push(ops.NewStatusCommand()))
	assert.True(queue.Push(ops.NewStatusCommand()))

	resp, err := http.Get(ts.URL + "/api/emulation/status")
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusTooManyRequests, resp.StatusCode)
}
