// Package proc launches and supervises one agent child process. The
// restart policy lives with the caller; Process only knows how to start,
// wait, and stop one incarnation at a time.
package proc

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process lifecycle states.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateCrashed  State = "crashed"
)

// DefaultStopGrace is how long Stop waits between the polite signal and
// the forcible kill.
const DefaultStopGrace = 5 * time.Second

// Status is the typed view the supervisor aggregates into its status
// response.
type Status struct {
	Name     string `json:"name"`
	State    State  `json:"state"`
	PID      int    `json:"pid,omitempty"`
	Restarts int    `json:"restart_count"`
	ExitCode int    `json:"exit_code"`
}

// Process wraps one agent child. Safe for concurrent Status/Stop against
// a running Monitor.
type Process struct {
	name      string
	binary    string
	args      []string
	stopGrace time.Duration

	mu       sync.Mutex
	cmd      *exec.Cmd
	state    State
	restarts int
	exitCode int
	stopping bool
	waitCh   chan struct{}
}

// New prepares a child running binary with args. Nothing is spawned
// until Start.
func New(name, binary string, args []string, stopGrace time.Duration) *Process {
	if stopGrace <= 0 {
		stopGrace = DefaultStopGrace
	}
	return &Process{
		name:      name,
		binary:    binary,
		args:      args,
		stopGrace: stopGrace,
		state:     StateStopped,
	}
}

// Name returns the agent identity this process runs.
func (p *Process) Name() string { return p.name }

// Start spawns the child. Success means the OS reports it alive, nothing
// more.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateStarting || p.state == StateRunning {
		return fmt.Errorf("proc: %s already running", p.name)
	}
	p.state = StateStarting
	p.stopping = false

	cmd := exec.Command(p.binary, p.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		p.state = StateCrashed
		return fmt.Errorf("proc: start %s: %w", p.name, err)
	}

	p.cmd = cmd
	p.state = StateRunning
	p.waitCh = make(chan struct{})
	slog.Info("agent process started", "name", p.name, "pid", cmd.Process.Pid)
	return nil
}

// Monitor blocks until the child exits and returns its exit code. The
// state lands on Stopped after an orderly exit or requested stop, and on
// Crashed otherwise.
func (p *Process) Monitor() int {
	p.mu.Lock()
	cmd := p.cmd
	waitCh := p.waitCh
	p.mu.Unlock()
	if cmd == nil {
		return 0
	}

	err := cmd.Wait()
	close(waitCh)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.exitCode = cmd.ProcessState.ExitCode()
	switch {
	case p.stopping, err == nil && p.exitCode == 0:
		p.state = StateStopped
	default:
		p.state = StateCrashed
	}
	slog.Info("agent process exited", "name", p.name, "exit_code", p.exitCode, "state", p.state)
	return p.exitCode
}

// Stop asks the child to terminate, waits up to the grace period, then
// kills it. Stopped processes are left alone. A stop never counts as a
// crash.
func (p *Process) Stop() {
	p.mu.Lock()
	if p.state != StateRunning && p.state != StateStarting {
		p.mu.Unlock()
		return
	}
	p.state = StateStopping
	p.stopping = true
	cmd := p.cmd
	waitCh := p.waitCh
	p.mu.Unlock()

	if cmd.Process != nil {
		cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-waitCh:
	case <-time.After(p.stopGrace):
		slog.Warn("agent process did not stop in time, killing", "name", p.name)
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-waitCh
	}
}

// NoteRestart bumps the restart counter and returns the new count.
func (p *Process) NoteRestart() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts++
	return p.restarts
}

// Status snapshots the process state for the supervisor's status reply.
func (p *Process) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		Name:     p.name,
		State:    p.state,
		Restarts: p.restarts,
		ExitCode: p.exitCode,
	}
	if p.cmd != nil && p.cmd.Process != nil && p.state == StateRunning {
		st.PID = p.cmd.Process.Pid
	}
	return st
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
