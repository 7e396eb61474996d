package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"nhooyr.io/websocket"

	"github.com/battlewithbytes/lxd-console/internal/lxd"
)

// consoleCommand builds the process attached to a console session.
type consoleCommand func(ctx context.Context, project string, inst *lxd.Instance) *exec.Cmd

// lxcConsoleCommand opens a login shell in containers and the serial console
// of virtual machines.
func lxcConsoleCommand(ctx context.Context, project string, inst *lxd.Instance) *exec.Cmd {
	if inst.Type == lxd.TypeVirtualMachine {
		return exec.CommandContext(ctx, "lxc", "console", inst.Name, "--project", project)
	}
	return exec.CommandContext(ctx, "lxc", "exec", inst.Name, "--project", project, "--", "/bin/sh", "-l")
}

// terminalResize is sent by the frontend to resize the terminal.
type terminalResize struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	project := s.project(r)
	name := r.PathValue("name")

	inst, err := s.daemon.GetInstance(r.Context(), project, name)
	if err != nil {
		writeDaemonError(w, err)
		return
	}
	if inst.StatusCode != lxd.Running {
		writeError(w, http.StatusConflict, fmt.Sprintf("instance %q is not running", name))
		return
	}

	clearDeadlines(w)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOriginPatterns(r),
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Cancelling ctx kills the console process once the browser is gone.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := s.console(ctx, project, inst)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.Start(cmd)
	if err != nil {
		conn.Close(websocket.StatusInternalError, fmt.Sprintf("failed to start console: %v", err))
		return
	}
	defer ptmx.Close()

	pty.Setsize(ptmx, &pty.Winsize{Rows: 24, Cols: 80})

	var wg sync.WaitGroup

	// PTY -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				if writeErr := conn.Write(ctx, websocket.MessageBinary, buf[:n]); writeErr != nil {
					break
				}
			}
			if err != nil {
				break
			}
		}
	}()

	// WebSocket -> PTY
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			msgType, data, err := conn.Read(ctx)
			if err != nil {
				break
			}
			if msgType == websocket.MessageText {
				var resize terminalResize
				if json.Unmarshal(data, &resize) == nil && resize.Type == "resize" {
					pty.Setsize(ptmx, &pty.Winsize{
						Rows: uint16(resize.Rows),
						Cols: uint16(resize.Cols),
					})
					continue
				}
			}
			if _, err := ptmx.Write(data); err != nil {
				break
			}
		}
		// Ctrl-D so the shell exits when the browser goes away
		ptmx.Write([]byte{4})
		cancel()
	}()

	cmd.Wait()
	// Close PTY read side so the reader goroutine exits
	ptmx.Close()

	conn.Close(websocket.StatusNormalClosure, "console exited")
	wg.Wait()
}
