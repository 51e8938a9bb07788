// Package sandbox runs untrusted Python snippets in throwaway Docker
// containers with networking disabled, a memory ceiling and a timeout.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/hupe1980/docmesh/logging"
)

const labelManaged = "docmesh.managed"

// Options configures the Docker runner.
type Options struct {
	Image     string
	Memory    int64 // bytes
	Timeout   time.Duration
	MaxOutput int // bytes of combined output kept
	Logger    logging.Logger
}

// DefaultOptions returns the runner defaults.
func DefaultOptions() Options {
	return Options{
		Image:     "python:3.12-slim",
		Memory:    256 << 20,
		Timeout:   30 * time.Second,
		MaxOutput: 16 << 10,
		Logger:    logging.NoOpLogger{},
	}
}

// Docker executes code with `python -c` in a fresh container per call.
type Docker struct {
	docker *client.Client
	opts   Options
}

// NewDocker connects to the Docker daemon configured by the environment.
func NewDocker(optFns ...func(o *Options)) (*Docker, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	return &Docker{docker: docker, opts: opts}, nil
}

// EnsureImage pulls the configured image.
func (d *Docker) EnsureImage(ctx context.Context) error {
	rc, err := d.docker.ImagePull(ctx, d.opts.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", d.opts.Image, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull %s: %w", d.opts.Image, err)
	}

	return nil
}

// Run executes code and returns its combined stdout and stderr. A non-zero
// exit status is returned as an error that carries the output.
func (d *Docker) Run(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	start := time.Now()

	resp, err := d.docker.ContainerCreate(ctx,
		&dockercontainer.Config{
			Image:           d.opts.Image,
			Cmd:             []string{"python", "-c", code},
			Labels:          map[string]string{labelManaged: "true"},
			NetworkDisabled: true,
		},
		&dockercontainer.HostConfig{
			NetworkMode: "none",
			Resources:   dockercontainer.Resources{Memory: d.opts.Memory},
		},
		nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	defer func() {
		// The run context may already be expired.
		_ = d.docker.ContainerRemove(context.Background(), resp.ID, dockercontainer.RemoveOptions{Force: true})
	}()

	if err := d.docker.ContainerStart(ctx, resp.ID, dockercontainer.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	var exitCode int64
	statusCh, errCh := d.docker.ContainerWait(ctx, resp.ID, dockercontainer.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("wait container: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	logs, err := d.docker.ContainerLogs(ctx, resp.ID, dockercontainer.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", fmt.Errorf("container logs: %w", err)
	}
	defer logs.Close()

	out := newCappedBuffer(d.opts.MaxOutput)
	if _, err := stdcopy.StdCopy(out, out, logs); err != nil {
		return "", fmt.Errorf("read logs: %w", err)
	}

	d.opts.Logger.Debug("sandbox.run.completed",
		"container", shortID(resp.ID),
		"exit_code", exitCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if exitCode != 0 {
		return out.String(), fmt.Errorf("exit status %d: %s", exitCode, out.String())
	}

	return out.String(), nil
}

// Close releases the Docker client.
func (d *Docker) Close() error { return d.docker.Close() }

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// cappedBuffer keeps the first max bytes written and drops the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.max - c.buf.Len(); room < len(p) {
		if room > 0 {
			c.buf.Write(p[:room])
		}
		c.truncated = true
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) String() string {
	if c.truncated {
		return c.buf.String() + "\n... output truncated"
	}
	return c.buf.String()
}
