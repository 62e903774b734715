package tflexport

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

//go:embed bridge.py
var bridgeScript []byte

// bridgeScriptName is the file the bridge is written to inside the workspace.
const bridgeScriptName = ".yolo_tflite_bridge.py"

// maxReplySize bounds a single reply line from the bridge.
const maxReplySize = 16 << 20

// bridgeWaitDelay bounds how long Close waits for the bridge's output pipes
// after the process has exited or been killed. Processes the library spawned
// can hold the stderr pipe open long after the bridge itself is gone.
var bridgeWaitDelay = 5 * time.Second

// ultralyticsCollaborator implements Collaborator by running the embedded
// bridge script under a Python interpreter.
type ultralyticsCollaborator struct {
	// pythonBin is the interpreter the bridge runs under.
	pythonBin string

	// launch builds the bridge command for a workspace.
	launch func(ctx context.Context, workDir string) (*exec.Cmd, error)

	// stderr receives the library's console output. May be nil.
	stderr io.Writer

	// logger receives diagnostic messages.
	logger Logger
}

// Ensure ultralyticsCollaborator implements Collaborator.
var _ Collaborator = (*ultralyticsCollaborator)(nil)

// newUltralyticsCollaborator returns a Collaborator that runs the bridge with
// pythonBin.
func newUltralyticsCollaborator(pythonBin string, stderr io.Writer, logger Logger) *ultralyticsCollaborator {
	return &ultralyticsCollaborator{
		pythonBin: pythonBin,
		launch: func(ctx context.Context, workDir string) (*exec.Cmd, error) {
			script := filepath.Join(workDir, bridgeScriptName)
			if err := os.WriteFile(script, bridgeScript, 0644); err != nil {
				return nil, fmt.Errorf("%w: writing bridge script: %v", ErrStorage, err)
			}
			return exec.CommandContext(ctx, pythonBin, "-u", script), nil
		},
		stderr: stderr,
		logger: logger,
	}
}

// Load starts a bridge process in workDir and loads model in it.
func (u *ultralyticsCollaborator) Load(ctx context.Context, workDir, model string) (Model, error) {
	cmd, err := u.launch(ctx, workDir)
	if err != nil {
		return nil, err
	}

	client, err := startBridge(ctx, cmd, workDir, u.stderr, u.logger)
	if err != nil {
		return nil, err
	}

	reply, err := client.call(ctx, bridgeRequest{Op: "load", Model: model})
	if err != nil {
		client.Close()
		return nil, err
	}

	return &bridgeModel{client: client, names: reply.Names}, nil
}

// bridgeRequest is one request line sent to the bridge.
type bridgeRequest struct {
	ID    string         `json:"id"`
	Op    string         `json:"op"`
	Model string         `json:"model,omitempty"`
	Args  map[string]any `json:"args,omitempty"`
}

// bridgeReply is one reply line received from the bridge.
type bridgeReply struct {
	ID       string          `json:"id"`
	OK       bool            `json:"ok"`
	Kind     string          `json:"kind"`
	Error    string          `json:"error"`
	Names    json.RawMessage `json:"names"`
	Exported json.RawMessage `json:"exported"`
}

// err converts a failed reply into the matching sentinel error.
func (r bridgeReply) err() error {
	switch r.Kind {
	case "dependency":
		return fmt.Errorf("%w: %s", ErrDependencyMissing, r.Error)
	case "load":
		return fmt.Errorf("%w: %s", ErrLoad, r.Error)
	case "export":
		return fmt.Errorf("%w: %s", ErrExport, r.Error)
	default:
		return fmt.Errorf("%w: %s", ErrBridge, r.Error)
	}
}

// bridgeClient owns one running bridge process.
type bridgeClient struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	replies *bufio.Scanner
	logger  Logger
	closed  bool
}

// startBridge starts cmd in workDir and waits for the bridge to report that
// the export library imported successfully.
func startBridge(ctx context.Context, cmd *exec.Cmd, workDir string, stderr io.Writer, logger Logger) (*bridgeClient, error) {
	cmd.Dir = workDir
	cmd.WaitDelay = bridgeWaitDelay
	if stderr != nil {
		cmd.Stderr = stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBridge, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBridge, err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: python interpreter %q not found", ErrDependencyMissing, cmd.Path)
		}
		return nil, fmt.Errorf("%w: starting bridge: %v", ErrBridge, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplySize)

	client := &bridgeClient{
		cmd:     cmd,
		stdin:   stdin,
		replies: scanner,
		logger:  logger,
	}

	logger.Debug("bridge started", "pid", cmd.Process.Pid, "dir", workDir)

	hello, err := client.read(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	if !hello.OK {
		client.Close()
		return nil, hello.err()
	}

	return client, nil
}

// call sends req and waits for its reply. A failed reply is returned as an error.
func (b *bridgeClient) call(ctx context.Context, req bridgeRequest) (bridgeReply, error) {
	req.ID = uuid.NewString()

	line, err := json.Marshal(req)
	if err != nil {
		return bridgeReply{}, fmt.Errorf("%w: encoding %s request: %v", ErrBridge, req.Op, err)
	}
	line = append(line, '\n')

	b.logger.Debug("bridge request", "op", req.Op, "id", req.ID)
	if _, err := b.stdin.Write(line); err != nil {
		if ctx.Err() != nil {
			return bridgeReply{}, ctx.Err()
		}
		return bridgeReply{}, fmt.Errorf("%w: sending %s request: %v", ErrBridge, req.Op, err)
	}

	reply, err := b.read(ctx)
	if err != nil {
		return bridgeReply{}, err
	}
	if reply.ID != req.ID {
		return bridgeReply{}, fmt.Errorf("%w: reply id %q does not match request %q", ErrBridge, reply.ID, req.ID)
	}
	if !reply.OK {
		return bridgeReply{}, reply.err()
	}
	return reply, nil
}

// read blocks for the next reply line.
func (b *bridgeClient) read(ctx context.Context) (bridgeReply, error) {
	if !b.replies.Scan() {
		if ctx.Err() != nil {
			return bridgeReply{}, ctx.Err()
		}
		if err := b.replies.Err(); err != nil {
			return bridgeReply{}, fmt.Errorf("%w: reading reply: %v", ErrBridge, err)
		}
		return bridgeReply{}, fmt.Errorf("%w: bridge exited without replying", ErrBridge)
	}

	var reply bridgeReply
	if err := json.Unmarshal(b.replies.Bytes(), &reply); err != nil {
		return bridgeReply{}, fmt.Errorf("%w: malformed reply: %v", ErrBridge, err)
	}
	return reply, nil
}

// Close asks the bridge to exit and waits for it. Safe to call multiple times.
func (b *bridgeClient) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	// Closing stdin ends the bridge's request loop.
	b.stdin.Close()
	if err := b.cmd.Wait(); err != nil {
		b.logger.Debug("bridge exited", "error", err)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) {
			return nil
		}
		return fmt.Errorf("%w: waiting for bridge: %v", ErrBridge, err)
	}
	return nil
}

// bridgeModel is a Model loaded inside a bridge process.
type bridgeModel struct {
	client *bridgeClient
	names  json.RawMessage
}

// Names returns the label attribute reported at load time.
func (m *bridgeModel) Names() json.RawMessage {
	return m.names
}

// Export runs the export in the bridge process.
func (m *bridgeModel) Export(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	reply, err := m.client.call(ctx, bridgeRequest{Op: "export", Args: args})
	if err != nil {
		return nil, err
	}
	return reply.Exported, nil
}

// Close stops the bridge process.
func (m *bridgeModel) Close() error {
	return m.client.Close()
}
