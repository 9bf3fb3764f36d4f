package sysinfo

import (
	"context"
	"os/exec"

	"go.uber.org/zap"
)

type CommandExecutor interface {
	Execute(ctx context.Context, command string, args ...string) ([]byte, error)

	// System metrics methods
	GetCPUUsage(ctx context.Context) ([]byte, error)
	GetMemoryUsage(ctx context.Context) ([]byte, error)
	GetCPUCount(ctx context.Context) ([]byte, error)
}

type SystemCommandExecutor struct {
	logger *zap.Logger
}

func NewSystemCommandExecutor(logger *zap.Logger) *SystemCommandExecutor {
	return &SystemCommandExecutor{
		logger: logger,
	}
}

// Execute executes a command and returns the output
// Args:
// - ctx: context.Context
// - command: string
// - args: []string
// Returns:
// - []byte: output of the command
// - error: error if the command fails
func (e *SystemCommandExecutor) Execute(ctx context.Context, command string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	e.logger.Debug("Executing command",
		zap.String("command", command),
		zap.Strings("args", args),
	)

	output, err := cmd.Output()
	if err != nil {
		e.logger.Error("Command execution failed",
			zap.String("command", command),
			zap.Strings("args", args),
			zap.Error(err),
		)
		return nil, err
	}

	return output, nil
}

// Helper functions for common system commands

// GetCPUUsage gets CPU usage on Linux
// The command it runs is:
// - top -bn1
func (e *SystemCommandExecutor) GetCPUUsage(ctx context.Context) ([]byte, error) {
	// Use top command to get CPU usage on Linux
	return e.Execute(ctx, "top", "-bn1")
}

// GetMemoryUsage gets memory usage on Linux
// The command it runs is:
// - free -b
func (e *SystemCommandExecutor) GetMemoryUsage(ctx context.Context) ([]byte, error) {
	// Use free command on Linux
	return e.Execute(ctx, "free", "-b")
}

// GetCPUCount gets the number of online CPUs
// The command it runs is:
// - nproc
func (e *SystemCommandExecutor) GetCPUCount(ctx context.Context) ([]byte, error) {
	return e.Execute(ctx, "nproc")
}
