package rsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that SSHRunner implements outbound.RemoteRunner
var _ outbound.RemoteRunner = (*SSHRunner)(nil)

// SSHConfig holds ssh configuration.
type SSHConfig struct {
	// Binary is the ssh executable.
	Binary string

	// Options are passed before the destination, e.g. "-o", "BatchMode=yes".
	Options []string

	// RateLimit caps new connections per second. Login hosts throttle
	// bursts of connections from one user.
	RateLimit rate.Limit
	RateBurst int

	// Output receives the remote command's stdout.
	Output io.Writer
	Logger *slog.Logger
}

// SSHConfigDefaults returns sensible defaults for ssh configuration.
func SSHConfigDefaults() SSHConfig {
	return SSHConfig{
		Binary:    "ssh",
		Options:   []string{"-o", "BatchMode=yes"},
		RateLimit: rate.Limit(2),
		RateBurst: 1,
		Output:    io.Discard,
	}
}

// SSHRunner executes commands on the remote host with ssh.
type SSHRunner struct {
	config  SSHConfig
	run     CommandFunc
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSSHRunner creates an ssh runner. A nil run uses ExecCommand.
func NewSSHRunner(config SSHConfig, run CommandFunc) *SSHRunner {
	defaults := SSHConfigDefaults()
	if config.Binary == "" {
		config.Binary = defaults.Binary
	}
	if config.Options == nil {
		config.Options = defaults.Options
	}
	if config.RateLimit == 0 {
		config.RateLimit = defaults.RateLimit
	}
	if config.RateBurst <= 0 {
		config.RateBurst = defaults.RateBurst
	}
	if config.Output == nil {
		config.Output = defaults.Output
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if run == nil {
		run = ExecCommand
	}

	return &SSHRunner{
		config:  config,
		run:     run,
		limiter: rate.NewLimiter(config.RateLimit, config.RateBurst),
		logger:  config.Logger.With("component", "ssh-runner"),
	}
}

// Run implements outbound.RemoteRunner. The command is interpreted by the
// remote login shell.
func (r *SSHRunner) Run(ctx context.Context, target entity.RemoteTarget, command string) error {
	if err := target.Validate(); err != nil {
		return err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	args := make([]string, 0, len(r.config.Options)+2)
	args = append(args, r.config.Options...)
	args = append(args, target.Address(), command)

	r.logger.Debug("running remote command", "host", target.Host, "command", command)
	if err := r.run(ctx, r.config.Output, r.config.Binary, args...); err != nil {
		return fmt.Errorf("ssh %s %q failed: %w", target.Address(), command, err)
	}
	return nil
}

// List writes the listing of the remote web root to the configured output.
func (r *SSHRunner) List(ctx context.Context, target entity.RemoteTarget) error {
	return r.Run(ctx, target, "ls -l "+target.WebRoot())
}
