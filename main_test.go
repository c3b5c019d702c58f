package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeProbe reports 15s for clips and 46s for anything named out*.
const fakeProbe = `for a; do last=$a; done
case "$(basename "$last")" in
  out*) d=46.000 ;;
  *) d=15.000 ;;
esac
printf '{"streams":[{"codec_type":"video","width":640,"height":360,"r_frame_rate":"30/1","duration":"%s"},' "$d"
printf '{"codec_type":"audio","sample_rate":"48000","channels":2}],'
printf '"format":{"duration":"%s","size":"2048"}}\n' "$d"
`

// fakeFFmpeg writes its last argument and logs each invocation.
const fakeFFmpeg = `for a; do out=$a; done
echo "$out" >> "$FAKE_FFMPEG_LOG"
printf data > "$out"
`

type cliEnv struct {
	dir     string
	ffprobe string
	ffmpeg  string
	log     string
	history string
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-ins require a POSIX shell")
	}

	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Chdir(dir)

	env := &cliEnv{
		dir:     dir,
		ffprobe: writeScript(t, dir, "fake-ffprobe", fakeProbe),
		ffmpeg:  writeScript(t, dir, "fake-ffmpeg", fakeFFmpeg),
		log:     filepath.Join(dir, "ffmpeg.log"),
		history: filepath.Join(dir, "history.db"),
	}
	t.Setenv("FAKE_FFMPEG_LOG", env.log)

	for _, clip := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, clip), []byte("clip"), 0o644); err != nil {
			t.Fatalf("write clip: %v", err)
		}
	}
	return env
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func (e *cliEnv) run(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	full := append(append([]string(nil), args...),
		"--ffprobe", e.ffprobe,
		"--ffmpeg", e.ffmpeg,
		"--history-db", e.history,
		"--log-level", "warn",
	)
	var stdout, stderr bytes.Buffer
	code := run(ctx, full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// renders lists the outputs the stand-in ffmpeg was asked to write.
func (e *cliEnv) renders(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(e.log)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read ffmpeg log: %v", err)
	}
	return strings.Fields(string(data))
}

func TestEffectsCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"effects"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"fade", "dissolve", "diagtr", "no_increase", "default"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestPlanCommand(t *testing.T) {
	env := setupCLI(t)

	code, stdout, stderr := env.run(t, context.Background(), "plan",
		"-x", "1:no_increase,1:increase:dissolve",
		"-o", "final.mp4",
		"a.mp4", "b.mp4", "c.mp4")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	for _, want := range []string{
		"00:00:14.00", // first crossfade offset
		"00:00:30.00", // second crossfade offset
		"Expected duration: 00:00:46.00",
		"xfade=transition=dissolve",
		"acrossfade",
		"-filter_complex",
		"final.mp4",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected %q in plan:\n%s", want, stdout)
		}
	}
	if got := env.renders(t); len(got) != 0 {
		t.Errorf("plan must not run ffmpeg, ran %v", got)
	}
}

func TestRenderCommand(t *testing.T) {
	env := setupCLI(t)

	code, stdout, stderr := env.run(t, context.Background(), "render", "--quiet",
		"-x", "1:no_increase,1:increase:dissolve",
		"-o", "out.mp4",
		"a.mp4", "b.mp4", "c.mp4")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Wrote") || !strings.Contains(stdout, "46.000s") {
		t.Errorf("Unexpected output: %s", stdout)
	}
	if strings.Contains(stdout, "drift") {
		t.Errorf("Expected no drift: %s", stdout)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "out.mp4")); err != nil {
		t.Errorf("Expected output file: %v", err)
	}
	if got := env.renders(t); len(got) != 1 {
		t.Errorf("Expected exactly one ffmpeg run, got %v", got)
	}

	code, stdout, stderr = env.run(t, context.Background(), "history")
	if code != exitOK {
		t.Fatalf("history exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "out.mp4") || !strings.Contains(stdout, " ok ") {
		t.Errorf("Expected recorded render in history:\n%s", stdout)
	}
}

func TestRenderCommand_DryRun(t *testing.T) {
	env := setupCLI(t)

	code, stdout, stderr := env.run(t, context.Background(), "render", "--dry-run",
		"-o", "out.mp4", "a.mp4", "b.mp4")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "-filter_complex") || !strings.Contains(stdout, "concat=n=2") {
		t.Errorf("Expected command line, got: %s", stdout)
	}
	if got := env.renders(t); len(got) != 0 {
		t.Errorf("dry run must not run ffmpeg, ran %v", got)
	}
}

func TestRenderCommand_DefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"transition longer than clip", []string{"-x", "20", "a.mp4", "b.mp4"}},
		{"single clip", []string{"a.mp4"}},
		{"unknown effect", []string{"-x", "1:increase:sparkle", "a.mp4", "b.mp4"}},
		{"too many transitions", []string{"-x", "1,1", "a.mp4", "b.mp4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupCLI(t)
			args := append([]string{"render", "-o", "out.mp4"}, tt.args...)
			code, _, stderr := env.run(t, context.Background(), args...)
			if code != exitDefinition {
				t.Fatalf("Expected exit %d, got %d: %s", exitDefinition, code, stderr)
			}
			if got := env.renders(t); len(got) != 0 {
				t.Errorf("ffmpeg must not run for an invalid sequence, ran %v", got)
			}
		})
	}
}

func TestRenderCommand_MissingClip(t *testing.T) {
	env := setupCLI(t)
	code, _, stderr := env.run(t, context.Background(), "render", "-o", "out.mp4", "a.mp4", "missing.mp4")
	if code != exitFailure {
		t.Fatalf("Expected exit %d, got %d: %s", exitFailure, code, stderr)
	}
	if !strings.Contains(stderr, "missing.mp4") {
		t.Errorf("Expected missing path in error: %s", stderr)
	}
}

func TestRenderCommand_RequiresOutput(t *testing.T) {
	env := setupCLI(t)
	code, _, stderr := env.run(t, context.Background(), "render", "a.mp4", "b.mp4")
	if code != exitFailure || !strings.Contains(stderr, "--output") {
		t.Errorf("Expected output error, got %d: %s", code, stderr)
	}
}

func TestCancelledRun(t *testing.T) {
	env := setupCLI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _, _ := env.run(t, ctx, "render", "-o", "out.mp4", "a.mp4", "b.mp4")
	if code != exitCancelled {
		t.Errorf("Expected exit %d, got %d", exitCancelled, code)
	}
	if got := env.renders(t); len(got) != 0 {
		t.Errorf("cancelled run must not render, ran %v", got)
	}
}

const manifest = `jobs:
  - name: intro
    output: out_intro.mp4
    transition: {duration: 1, mode: no_increase}
    clips:
      - path: a.mp4
      - path: b.mp4
  - name: full
    output: out_full.mp4
    depends_on: [intro]
    clips:
      - path: a.mp4
      - path: b.mp4
        transition: {duration: 1, mode: no_increase}
      - path: c.mp4
        transition: {duration: 1, mode: increase, effect: dissolve}
`

func writeManifest(t *testing.T, env *cliEnv) string {
	t.Helper()
	path := filepath.Join(env.dir, "jobs.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchCommand(t *testing.T) {
	env := setupCLI(t)
	path := writeManifest(t, env)

	code, stdout, stderr := env.run(t, context.Background(), "batch", path, "--workers", "2", "--quiet")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}

	renders := env.renders(t)
	if len(renders) != 2 {
		t.Fatalf("Expected two renders, got %v", renders)
	}
	// full depends on intro
	if !strings.Contains(renders[0], "out_intro") || !strings.Contains(renders[1], "out_full") {
		t.Errorf("Unexpected render order %v", renders)
	}

	// intro is predicted at 30s but the stand-in probe measures 46s
	for _, want := range []string{"intro", "full", "completed", "drift +16.000s"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected %q in summary:\n%s", want, stdout)
		}
	}
}

func TestBatchCommand_StrictDriftFailsDependents(t *testing.T) {
	env := setupCLI(t)
	path := writeManifest(t, env)

	code, stdout, _ := env.run(t, context.Background(), "batch", path, "--strict", "--quiet")
	if code != exitFailure {
		t.Fatalf("Expected exit %d, got %d", exitFailure, code)
	}
	if got := env.renders(t); len(got) != 1 {
		t.Errorf("Expected only intro to render, got %v", got)
	}
	if !strings.Contains(stdout, "dependency intro failed") {
		t.Errorf("Expected dependency failure in summary:\n%s", stdout)
	}
}

func TestBatchCommand_DryRunAndOnly(t *testing.T) {
	env := setupCLI(t)
	path := writeManifest(t, env)

	code, stdout, stderr := env.run(t, context.Background(), "batch", path, "--dry-run", "--only", "intro")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "# intro") || strings.Contains(stdout, "# full") {
		t.Errorf("Expected only intro, got:\n%s", stdout)
	}
	if got := env.renders(t); len(got) != 0 {
		t.Errorf("dry run must not render, ran %v", got)
	}

	code, _, stderr = env.run(t, context.Background(), "batch", path, "--only", "outro")
	if code != exitFailure || !strings.Contains(stderr, "unknown job") {
		t.Errorf("Expected unknown job error, got %d: %s", code, stderr)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLI(t)
	target := filepath.Join(env.dir, "conf", "clipjoin.yaml")

	code, stdout, stderr := env.run(t, context.Background(), "config", "init", "--path", target)
	if code != exitOK {
		t.Fatalf("init exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, target) {
		t.Errorf("Expected path in output: %s", stdout)
	}

	code, _, stderr = env.run(t, context.Background(), "config", "init", "--path", target)
	if code != exitFailure || !strings.Contains(stderr, "already exists") {
		t.Errorf("Expected refusal to overwrite, got %d: %s", code, stderr)
	}

	code, stdout, stderr = env.run(t, context.Background(), "config", "show", "--yaml", "--config", target, "--video-crf", "18")
	if code != exitOK {
		t.Fatalf("show exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "codec: libx264") || !strings.Contains(stdout, "crf: 18") {
		t.Errorf("Unexpected config:\n%s", stdout)
	}
}

func TestSelectJobs(t *testing.T) {
	env := setupCLI(t)
	path := writeManifest(t, env)

	code, stdout, stderr := env.run(t, context.Background(), "batch", path, "--dry-run", "--only", "full")
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	// full pulls in intro
	if !strings.Contains(stdout, "# intro") || !strings.Contains(stdout, "# full") {
		t.Errorf("Expected both jobs, got:\n%s", stdout)
	}
}
