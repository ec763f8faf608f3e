// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/AnujJha88/Clove/internal/audit"
	"github.com/AnujJha88/Clove/internal/chaos"
	"github.com/AnujJha88/Clove/internal/netmock"
	"github.com/AnujJha88/Clove/internal/wire"
)

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

type readRequest struct {
	Path string `json:"path"`
}

func (kc *Context) handleRead(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req readRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	if w, ok := kc.Worlds.WorldOf(agentID); ok && w.VFS.Intercepts(req.Path) {
		decision := w.Chaos.Evaluate(chaos.OpDisk, req.Path)
		if decision.Latency > 0 {
			kc.Clock.Sleep(decision.Latency)
		}
		w.RecordSyscall()
		if decision.Fail {
			return wire.Fail("read failed: chaos-injected disk error")
		}
		content, found := w.VFS.Read(req.Path)
		if !found {
			data, _ := json.Marshal(struct {
				Success bool `json:"success"`
				Found bool `json:"found"`
			}{true, false})
			return data
		}
		data, _ := json.Marshal(struct {
			Success bool `json:"success"`
			Content string `json:"content"`
			Virtual bool `json:"virtual"`
			World string `json:"world"`
		}{true, string(content), true, w.ID})
		return data
	}

	if !kc.Permissions.Get(agentID).CanReadPath(req.Path) {
		return kc.blockSyscall(agentID, "read", "path not permitted: "+req.Path)
	}

	content, err := os.ReadFile(req.Path)
	if err != nil {
		if os.IsNotExist(err) {
			data, _ := json.Marshal(struct {
				Success bool `json:"success"`
				Found bool `json:"found"`
			}{true, false})
			return data
		}
		return wire.Fail("read failed: " + err.Error())
	}

	data, _ := json.Marshal(struct {
		Success bool `json:"success"`
		Content string `json:"content"`
		Virtual bool `json:"virtual"`
	}{true, string(content), false})
	return data
}

type writeRequest struct {
	Path string `json:"path"`
	Content string `json:"content"`
}

func (kc *Context) handleWrite(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req writeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	if w, ok := kc.Worlds.WorldOf(agentID); ok && w.VFS.Intercepts(req.Path) {
		decision := w.Chaos.Evaluate(chaos.OpDisk, req.Path)
		if decision.Latency > 0 {
			kc.Clock.Sleep(decision.Latency)
		}
		w.RecordSyscall()
		if decision.Fail {
			return wire.Fail("write failed: chaos-injected disk error")
		}
		if err := w.VFS.Write(req.Path, []byte(req.Content)); err != nil {
			return wire.Fail("write failed: " + err.Error())
		}
		data, _ := json.Marshal(struct {
			Success bool `json:"success"`
			Virtual bool `json:"virtual"`
			World string `json:"world"`
		}{true, true, w.ID})
		return data
	}

	if !kc.Permissions.Get(agentID).CanWritePath(req.Path) {
		return kc.blockSyscall(agentID, "write", "path not permitted: "+req.Path)
	}

	if err := os.WriteFile(req.Path, []byte(req.Content), 0o644); err != nil {
		id := agentID
		detail, _ := json.Marshal(map[string]string{"path": req.Path, "error": err.Error()})
		kc.Audit.Record(audit.CategoryResource, &id, "write", detail, false)
		return wire.Fail("write failed: " + err.Error())
	}

	data, _ := json.Marshal(struct {
		Success bool `json:"success"`
		Virtual bool `json:"virtual"`
	}{true, false})
	return data
}

type execRequest struct {
	Command string `json:"command"`
	TimeoutMs int64 `json:"timeout_ms,omitempty"`
}

type execResult struct {
	Success bool `json:"success"`
	ExitCode int `json:"exit_code"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Error string `json:"error,omitempty"`
}

// DefaultExecTimeout bounds a command's runtime when the caller does
// not supply one.
const DefaultExecTimeout = 30 * time.Second

func (kc *Context) handleExec(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req execRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	if !kc.Permissions.Get(agentID).CanExec(req.Command) {
		return kc.blockSyscall(agentID, "exec", "command not permitted: "+req.Command)
	}

	timeout := DefaultExecTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	requestID := kc.Async.NextRequestID()
	command := req.Command
	kc.Async.Submit(agentID, wire.OpExec, requestID, func() []byte {
		runCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		result := execResult{Stdout: stdout.String(), Stderr: stderr.String()}
		if runCtx.Err() == context.DeadlineExceeded {
			data, _ := json.Marshal(wire.Envelope{Success: false, Error: "timeout"})
			return data
		}
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				result.ExitCode = exitErr.ExitCode()
				result.Success = true
			} else {
				result.Success = false
				result.Error = err.Error()
			}
		} else {
			result.Success = true
		}
		data, _ := json.Marshal(result)
		return data
	})

	return wire.MarshalAsyncAck(requestID)
}

type httpRequest struct {
	URL string `json:"url"`
	Method string `json:"method,omitempty"`
	Body string `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type httpResult struct {
	Success bool `json:"success"`
	Status int `json:"status,omitempty"`
	Body string `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Error string `json:"error,omitempty"`
}

func (kc *Context) handleHTTP(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req httpRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	if !kc.Permissions.Get(agentID).CanNetwork(req.URL) {
		return kc.blockSyscall(agentID, "http", "domain not permitted: "+req.URL)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	requestID := kc.Async.NextRequestID()
	world, inWorld := kc.Worlds.WorldOf(agentID)

	kc.Async.Submit(agentID, wire.OpHTTP, requestID, func() []byte {
		if inWorld {
			decision := world.Chaos.Evaluate(chaos.OpNetwork, req.URL)
			world.RecordSyscall()
			if decision.Fail {
				data, _ := json.Marshal(httpResult{Success: false, Error: "chaos-injected network error"})
				return data
			}

			host := hostOf(req.URL)
			resp, err := world.Network.Lookup(req.URL, host)
			switch err {
			case nil:
				if resp.Latency > 0 {
					kc.Clock.Sleep(resp.Latency)
				} else if decision.Latency > 0 {
					kc.Clock.Sleep(decision.Latency)
				}
				data, _ := json.Marshal(httpResult{Success: true, Status: resp.Status, Body: resp.Body, Headers: resp.Headers})
				return data
			case netmock.ErrUnmatched:
				data, _ := json.Marshal(httpResult{Success: false, Status: resp.Status, Body: resp.Body, Error: "no matching mock response"})
				return data
			case netmock.ErrPassthrough:
				result := performHTTP(method, req.URL, req.Body, req.Headers)
				if world.Network.Mode() == netmock.ModeRecord && result.Success {
					world.Network.Record(req.URL, netmock.Response{Status: result.Status, Body: result.Body, Headers: result.Headers})
				}
				data, _ := json.Marshal(result)
				return data
			}
		}

		result := performHTTP(method, req.URL, req.Body, req.Headers)
		data, _ := json.Marshal(result)
		return data
	})

	return wire.MarshalAsyncAck(requestID)
}

func performHTTP(method, url, body string, headers map[string]string) httpResult {
	client := &http.Client{Timeout: 30 * time.Second}
	httpReq, err := http.NewRequest(method, url, bytes.NewReader([]byte(body)))
	if err != nil {
		return httpResult{Success: false, Error: err.Error()}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return httpResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpResult{Success: false, Error: err.Error()}
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return httpResult{Success: true, Status: resp.StatusCode, Body: string(respBody), Headers: respHeaders}
}

type thinkRequest struct {
	Prompt string `json:"prompt"`
}

type thinkResult struct {
	Success bool `json:"success"`
	Completion string `json:"completion,omitempty"`
	Error string `json:"error,omitempty"`
}

func (kc *Context) handleThink(ctx context.Context, agentID uint32, payload []byte) []byte {
	var req thinkRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Fail("invalid request: " + err.Error())
	}

	if !kc.Permissions.Get(agentID).Think {
		return kc.blockSyscall(agentID, "think", "agent lacks think capability")
	}

	if kc.Config.ThinkCommand == "" {
		return wire.Fail("think: no think_command configured")
	}

	timeout := kc.Config.ThinkTimeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}

	requestID := kc.Async.NextRequestID()
	command := kc.Config.ThinkCommand
	prompt := req.Prompt
	kc.Async.Submit(agentID, wire.OpThink, requestID, func() []byte {
		runCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
		cmd.Stdin = bytes.NewReader([]byte(prompt))
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if runCtx.Err() == context.DeadlineExceeded {
			data, _ := json.Marshal(wire.Envelope{Success: false, Error: "timeout"})
			return data
		}
		if err != nil {
			data, _ := json.Marshal(thinkResult{Success: false, Error: stderr.String() + err.Error()})
			return data
		}
		data, _ := json.Marshal(thinkResult{Success: true, Completion: stdout.String()})
		return data
	})

	return wire.MarshalAsyncAck(requestID)
}
