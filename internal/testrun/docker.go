package testrun

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/pitabwire/util"
	"github.com/rs/xid"
)

// languageImage contains the container configuration for a language.
type languageImage struct {
	Image       string
	TestCommand []string
	WorkDir     string
	Env         []string
}

//nolint:gochecknoglobals // package-level config map needed for language lookup
var languageImages = map[string]languageImage{
	"go": {
		Image:       "golang:1.22-alpine",
		TestCommand: []string{"go", "test", "-v", "./..."},
		WorkDir:     "/app",
		Env:         []string{"CGO_ENABLED=0"},
	},
	"python": {
		Image:       "python:3.12-slim",
		TestCommand: []string{"python", "-m", "pytest", "-v", "--tb=short"},
		WorkDir:     "/app",
		Env:         []string{"PYTHONDONTWRITEBYTECODE=1"},
	},
	"javascript": {
		Image:       "node:20-slim",
		TestCommand: []string{"npm", "test"},
		WorkDir:     "/app",
		Env:         []string{"CI=true"},
	},
}

// DockerRunnerConfig controls container resource limits.
type DockerRunnerConfig struct {
	TimeoutSeconds int
	MemoryLimitMB  int
	CPULimit       float64
	NetworkEnabled bool
}

// DockerRunner runs tests inside a language-specific container with the
// submission bind-mounted into the work directory.
type DockerRunner struct {
	cfg    DockerRunnerConfig
	client *client.Client
}

// NewDockerRunner creates a Docker-backed test runner.
func NewDockerRunner(cfg DockerRunnerConfig) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = int(defaultRunTimeout / time.Second)
	}

	return &DockerRunner{
		cfg:    cfg,
		client: cli,
	}, nil
}

// Close closes the Docker client.
func (r *DockerRunner) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Run implements Runner.
func (r *DockerRunner) Run(ctx context.Context, code, language, filePath string) (*Result, error) {
	log := util.Log(ctx)
	start := time.Now()

	img, ok := languageImages[strings.ToLower(language)]
	if !ok {
		log.Debug("no container image for language", "language", language)
		return &Result{}, nil
	}

	workDir, err := os.MkdirTemp("", "testrun-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	target := filepath.Join(workDir, filepath.Base(filePath))
	if writeErr := os.WriteFile(target, []byte(code), 0o600); writeErr != nil {
		return nil, fmt.Errorf("write submission: %w", writeErr)
	}

	containerID, err := r.createContainer(ctx, img, workDir)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer r.cleanupContainer(ctx, containerID)

	if startErr := r.client.ContainerStart(ctx, containerID, container.StartOptions{}); startErr != nil {
		return nil, fmt.Errorf("start container: %w", startErr)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	statusCh, errCh := r.client.ContainerWait(timeoutCtx, containerID, container.WaitConditionNotRunning)

	var exitCode int64
	select {
	case waitErr := <-errCh:
		if waitErr != nil {
			log.Warn("container wait error, killing container", "error", waitErr)
			_ = r.client.ContainerKill(ctx, containerID, "KILL")
			return &Result{
				Executed:   true,
				TimedOut:   true,
				ExitCode:   -1,
				Output:     fmt.Sprintf("execution error: %v", waitErr),
				DurationMS: time.Since(start).Milliseconds(),
			}, nil
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	case <-timeoutCtx.Done():
		log.Warn("container execution timeout, killing container")
		_ = r.client.ContainerKill(ctx, containerID, "KILL")
		return &Result{
			Executed:   true,
			TimedOut:   true,
			ExitCode:   -1,
			Output:     "execution timed out",
			DurationMS: time.Since(start).Milliseconds(),
		}, nil
	}

	output, err := r.containerLogs(ctx, containerID)
	if err != nil {
		log.WithError(err).Warn("failed to get container logs")
		output = ""
	}

	result := ParseOutput(language, output, int(exitCode))
	result.DurationMS = time.Since(start).Milliseconds()

	log.Info("container test run completed",
		"language", language,
		"exit_code", exitCode,
		"duration_ms", result.DurationMS,
	)
	return result, nil
}

func (r *DockerRunner) createContainer(
	ctx context.Context,
	img languageImage,
	workDir string,
) (string, error) {
	config := &container.Config{
		Image:      img.Image,
		Cmd:        img.TestCommand,
		WorkingDir: img.WorkDir,
		Env:        img.Env,
		Tty:        false,
		Labels: map[string]string{
			"codecraft.managed": "true",
		},
	}

	memoryLimit := int64(r.cfg.MemoryLimitMB) * 1024 * 1024
	cpuQuota := int64(r.cfg.CPULimit * 100000)

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: workDir,
				Target: img.WorkDir,
			},
		},
		Resources: container.Resources{
			Memory:   memoryLimit,
			CPUQuota: cpuQuota,
		},
	}
	if !r.cfg.NetworkEnabled {
		hostConfig.NetworkMode = "none"
	}

	containerName := "codecraft-test-" + xid.New().String()
	resp, err := r.client.ContainerCreate(ctx, config, hostConfig, nil, nil, containerName)
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}
	return resp.ID, nil
}

func (r *DockerRunner) containerLogs(ctx context.Context, containerID string) (string, error) {
	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "all",
	}

	reader, err := r.client.ContainerLogs(ctx, containerID, options)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err = io.Copy(&buf, reader); err != nil {
		return "", err
	}
	return stripDockerLogHeaders(buf.Bytes()), nil
}

// stripDockerLogHeaders removes the 8-byte multiplex header from each log
// frame.
func stripDockerLogHeaders(data []byte) string {
	var result bytes.Buffer
	for len(data) >= 8 {
		frameSize := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])

		data = data[8:]
		if frameSize > len(data) {
			frameSize = len(data)
		}

		result.Write(data[:frameSize])
		data = data[frameSize:]
	}

	if len(data) > 0 {
		result.Write(data)
	}
	return result.String()
}

func (r *DockerRunner) cleanupContainer(ctx context.Context, containerID string) {
	log := util.Log(ctx)

	stopTimeout := 5
	_ = r.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &stopTimeout})

	err := r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if err != nil {
		log.WithError(err).Warn("failed to remove container", "container_id", containerID)
	}
}
