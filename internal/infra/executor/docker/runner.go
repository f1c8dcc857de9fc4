package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

// Container mount points the extraction engine expects.
const (
	containerApp     = "/app"
	containerResults = "/results"
	containerScripts = "/joern_scripts"
)

// Output files the engine contract requires in the results mount.
const (
	functionsFile = "functions.json"
	callGraphFile = "call_graph.json"
)

// Config for the Joern engine container.
type Config struct {
	Image      string        // e.g. ghcr.io/joernio/joern:nightly
	Platform   string        // e.g. linux/amd64
	JavaOpts   []string      // passed as JAVA_OPTS and -J flags
	ScriptsDir string        // host dir holding analysis.sc
	Timeout    time.Duration // per-command execution budget
	DockerBin  string        // docker executable, "docker" when empty
}

func (c Config) withDefaults() Config {
	if c.Image == "" {
		c.Image = "ghcr.io/joernio/joern:nightly"
	}
	if c.Platform == "" {
		c.Platform = "linux/amd64"
	}
	if len(c.JavaOpts) == 0 {
		c.JavaOpts = []string{"-Xmx8g", "-Dfile.encoding=UTF-8"}
	}
	if c.Timeout <= 0 {
		c.Timeout = 300 * time.Second
	}
	if c.DockerBin == "" {
		c.DockerBin = "docker"
	}
	return c
}

// Runner invokes the Joern engine through the Docker CLI. One Run is one
// container: started detached, driven via exec, always stopped on return.
type Runner struct {
	cfg Config
}

func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg.withDefaults()}
}

// Run launches the engine against the staged source tree, bounded by the
// configured timeout, and parses the two fixed-schema output files. The
// container is released on success, failure, timeout and cancellation alike.
func (r *Runner) Run(ctx context.Context, req domain.RunRequest) (domain.RunResult, error) {
	start := time.Now()

	containerID, err := r.startContainer(ctx, req)
	if err != nil {
		return domain.RunResult{}, err
	}
	defer r.stopContainer(containerID)

	c2cpg := append([]string{"/opt/joern/joern-cli/c2cpg.sh"}, javaFlags(r.cfg.JavaOpts)...)
	c2cpg = append(c2cpg, containerApp, "--output", containerResults+"/cpg.bin")
	if err := r.execInContainer(ctx, containerID, c2cpg); err != nil {
		return domain.RunResult{}, err
	}

	script := fmt.Sprintf("cd %s && /opt/joern/joern-cli/joern --script %s/analysis.sc",
		containerResults, containerScripts)
	if err := r.execInContainer(ctx, containerID, []string{"sh", "-c", script}); err != nil {
		return domain.RunResult{}, err
	}

	funcs, calls, err := readOutputs(req.ResultsPath)
	if err != nil {
		return domain.RunResult{}, err
	}

	return domain.RunResult{
		Functions: funcs,
		Calls:     calls,
		Meta: domain.RunMeta{
			ExitCode:   0,
			DurationMS: time.Since(start).Milliseconds(),
		},
	}, nil
}

func (r *Runner) startContainer(ctx context.Context, req domain.RunRequest) (string, error) {
	args := []string{
		"run", "--rm", "-d",
		"--platform", r.cfg.Platform,
		"-w", containerResults,
		"-e", "JAVA_OPTS=" + strings.Join(r.cfg.JavaOpts, " "),
		"-v", fmt.Sprintf("%s:%s:ro", req.SourcePath, containerApp),
		"-v", fmt.Sprintf("%s:%s:rw", req.ResultsPath, containerResults),
	}
	if r.cfg.ScriptsDir != "" {
		args = append(args, "-v", fmt.Sprintf("%s:%s:ro", r.cfg.ScriptsDir, containerScripts))
	}
	// keep the container alive between exec steps
	args = append(args, r.cfg.Image, "tail", "-f", "/dev/null")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.DockerBin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", runErr(ctx, "starting engine container", err, stderr.String())
	}
	id := strings.TrimSpace(stdout.String())
	if id == "" {
		return "", domain.NewError(domain.KindEngineFailure, "engine container id missing from docker output")
	}
	return id, nil
}

// stopContainer uses its own context: the run context may already be
// cancelled and the container must still go away.
func (r *Runner) stopContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, r.cfg.DockerBin, "stop", containerID).Run()
}

func (r *Runner) execInContainer(ctx context.Context, containerID string, command []string) error {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := append([]string{"exec", containerID}, command...)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(cctx, r.cfg.DockerBin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return runErr(cctx, fmt.Sprintf("engine command %q", command[0]), err, stderr.String())
	}
	return nil
}

func readOutputs(resultsPath string) ([]domain.RawFunction, []domain.RawCall, error) {
	fdata, err := os.ReadFile(filepath.Join(resultsPath, functionsFile))
	if err != nil {
		return nil, nil, domain.WrapError(domain.KindEngineFailure, "engine produced no "+functionsFile, err)
	}
	cdata, err := os.ReadFile(filepath.Join(resultsPath, callGraphFile))
	if err != nil {
		return nil, nil, domain.WrapError(domain.KindEngineFailure, "engine produced no "+callGraphFile, err)
	}
	funcs, err := domain.ParseRawFunctions(fdata)
	if err != nil {
		return nil, nil, err
	}
	calls, err := domain.ParseRawCalls(cdata)
	if err != nil {
		return nil, nil, err
	}
	return funcs, calls, nil
}

func runErr(ctx context.Context, what string, err error, stderr string) error {
	kind := domain.KindEngineFailure
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = domain.KindEngineTimeout
	}
	msg := fmt.Sprintf("%s: %v", what, err)
	if s := strings.TrimSpace(stderr); s != "" {
		msg = fmt.Sprintf("%s, stderr=%s", msg, s)
	}
	return domain.NewError(kind, msg)
}

func javaFlags(opts []string) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, "-J"+o)
	}
	return out
}
