package remote

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/vk/sweepbench/internal/cluster"
	"github.com/vk/sweepbench/internal/command"
	"github.com/vk/sweepbench/internal/ctxlog"
)

// SSH executes commands over ssh against the machines described by the
// cluster context. Every command runs with the cluster checkout as its
// working directory.
type SSH struct {
	Cluster cluster.Context
}

// NewSSH creates an ssh-backed executor.
func NewSSH(c cluster.Context) *SSH {
	return &SSH{Cluster: c}
}

// remoteCommand wraps the command so it runs inside the cluster checkout.
func (s *SSH) remoteCommand(cmd string) string {
	return fmt.Sprintf("cd %s && %s", command.Quote(s.Cluster.SrcPath), cmd)
}

// Run executes the command on the given machine and waits for it. The
// command's output is passed through to the coordinator's own stdout/stderr.
func (s *SSH) Run(ctx context.Context, machineID int, cmd string) error {
	target := s.Cluster.SSHTarget(machineID)
	ctxlog.FromContext(ctx).Info("running remote command", "target", target, "command", cmd)

	ssh := exec.CommandContext(ctx, "ssh", target, s.remoteCommand(cmd))
	ssh.Stdout = os.Stdout
	ssh.Stderr = os.Stderr
	if err := ssh.Run(); err != nil {
		return fmt.Errorf("remote command on %s failed: %w", target, err)
	}
	return nil
}

// Start launches the command on the given machine in the background and
// captures its output in the sink files.
func (s *SSH) Start(ctx context.Context, machineID int, cmd string, sinks Sinks) (Handle, error) {
	target := s.Cluster.SSHTarget(machineID)
	ctxlog.FromContext(ctx).Info("starting remote command", "target", target, "command", cmd,
		"stdout", sinks.Stdout, "stderr", sinks.Stderr)

	stdout, err := os.Create(sinks.Stdout)
	if err != nil {
		return nil, fmt.Errorf("opening stdout sink: %w", err)
	}
	stderr, err := os.Create(sinks.Stderr)
	if err != nil {
		stdout.Close()
		return nil, fmt.Errorf("opening stderr sink: %w", err)
	}

	ssh := exec.CommandContext(ctx, "ssh", target, s.remoteCommand(cmd))
	ssh.Stdout = stdout
	ssh.Stderr = stderr
	if err := ssh.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("starting remote command on %s: %w", target, err)
	}
	return &sshHandle{cmd: ssh, target: target, files: []*os.File{stdout, stderr}}, nil
}

type sshHandle struct {
	cmd    *exec.Cmd
	target string
	files  []*os.File
}

func (h *sshHandle) Wait() error {
	err := h.cmd.Wait()
	for _, f := range h.files {
		f.Close()
	}
	if err != nil {
		return fmt.Errorf("remote command on %s failed: %w", h.target, err)
	}
	return nil
}
