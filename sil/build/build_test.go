package build_test

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nickng/swanspm/manifest"
	"github.com/nickng/swanspm/sil"
	"github.com/nickng/swanspm/sil/build"
	"github.com/nickng/swanspm/stage"
	"github.com/nickng/swanspm/toolchain"
	"github.com/pkg/errors"
)

var (
	configuredManifest = `// swift-tools-version:5.1
import PackageDescription

let package = Package(
    name: "test",
    targets: [
        .target(
            name: "test",
            path: "Sources/test",
            swiftSettings: [
              .unsafeFlags(["-Xfrontend", "-gsil", "-Xllvm", "-sil-print-debuginfo"])
            ])
    ]
)
`
	mainSwift = "func foo() -> Int { return 1 }\nprint(foo())\n"

	buildLog = "[1/2] Compiling test main.swift\n" +
		"sil_stage canonical\n\nimport Builtin\n\nsil @main : $@convention(c) () -> Int32 {\n}\n\n\n" +
		"[2/2] Linking test\n"
	wantSIL = "sil_stage canonical\n\nimport Builtin\n\nsil @main : $@convention(c) () -> Int32 {\n}\n\n\n"
)

type fakeRunner struct {
	stdout string
	stderr string
	status int
	err    error
	hang   bool // Block until ctx is done.

	calls []string
}

func (r *fakeRunner) Run(ctx context.Context, dir string, stdout, stderr io.Writer, cmd string, args ...string) (int, error) {
	r.calls = append(r.calls, strings.Join(append([]string{cmd}, args...), " "))
	io.WriteString(stdout, r.stdout)
	io.WriteString(stderr, r.stderr)
	if r.hang {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	return r.status, r.err
}

// newPackage creates a Swift package with the given manifest and source
// files (relative to Sources/) in a temporary directory.
func newPackage(t *testing.T, pkgManifest string, sources ...string) string {
	t.Helper()
	dir := t.TempDir()
	if err := ioutil.WriteFile(filepath.Join(dir, manifest.DefaultPath), []byte(pkgManifest), 0644); err != nil {
		t.Fatalf("cannot write manifest: %v", err)
	}
	for _, src := range sources {
		path := filepath.Join(dir, build.DefaultSources, src)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(path, []byte(mainSwift), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func linuxToolchain() *toolchain.Toolchain {
	tc := toolchain.Default(nil)
	tc.Platform = "linux"
	return tc
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatalf("cannot read %s: %v", path, err)
	}
	return string(b)
}

func TestBuild(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift")
	runner := &fakeRunner{stdout: buildLog, stderr: "warning: unsafe flags\n"}
	conf := build.FromDir(dir).WithToolchain(linuxToolchain()).WithRunner(runner)
	info, err := conf.Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if want, got := []string{"swift build --use-integrated-swift-driver"}, runner.calls; len(got) != 1 || got[0] != want[0] {
		t.Errorf("unexpected commands\nwant: %v\ngot: %v\n", want, got)
	}
	wantStaged := filepath.Join(dir, "swan-dir", "src", "Sources", "test", "main.swift")
	if want, got := wantStaged, info.Staged; want != got {
		t.Errorf("unexpected staged file\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := mainSwift, readFile(t, wantStaged); want != got {
		t.Errorf("staged file is not a copy\nwant: %q\ngot: %q\n", want, got)
	}
	if want, got := buildLog, readFile(t, filepath.Join(dir, "swan-dir", "spm.log")); want != got {
		t.Errorf("unexpected build log\nwant: %q\ngot: %q\n", want, got)
	}
	outPath := filepath.Join(dir, "swan-dir", "test.sil")
	if want, got := outPath, info.OutputPath; want != got {
		t.Errorf("unexpected output path\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := wantSIL, readFile(t, outPath); want != got {
		t.Errorf("unexpected SIL\nwant: %q\ngot: %q\n", want, got)
	}
	if want, got := "warning: unsafe flags\n", info.Stderr; want != got {
		t.Errorf("stderr should be captured separately\nwant: %q\ngot: %q\n", want, got)
	}
}

func TestBuildConfigurationError(t *testing.T) {
	dir := newPackage(t, "let package = Package(name: \"test\")\n", "test/main.swift")
	runner := &fakeRunner{stdout: buildLog}
	_, err := build.FromDir(dir).WithRunner(runner).Build(context.Background())
	if _, ok := errors.Cause(err).(*manifest.ConfigurationError); !ok {
		t.Fatalf("expects *manifest.ConfigurationError, got %T (%v)", err, err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("build should not run, got %v", runner.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "swan-dir")); !os.IsNotExist(err) {
		t.Errorf("nothing should be staged before the manifest check")
	}
}

func TestBuildAmbiguousSource(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift", "test/util.swift")
	runner := &fakeRunner{stdout: buildLog}
	_, err := build.FromDir(dir).WithRunner(runner).WithCleanFirst(true).Build(context.Background())
	aerr, ok := errors.Cause(err).(*stage.AmbiguousSourceError)
	if !ok {
		t.Fatalf("expects *stage.AmbiguousSourceError, got %T (%v)", err, err)
	}
	if want, got := 2, len(aerr.Files); want != got {
		t.Errorf("unexpected number of sources\nwant: %d\ngot: %d\n", want, got)
	}
	if len(runner.calls) != 0 {
		t.Errorf("no process should run, got %v", runner.calls)
	}
}

func TestBuildNoSource(t *testing.T) {
	dir := newPackage(t, configuredManifest)
	runner := &fakeRunner{stdout: buildLog}
	info, err := build.FromDir(dir).WithRunner(runner).Build(context.Background())
	if err != nil {
		t.Fatalf("build without sources should proceed: %v", err)
	}
	if info.Staged != "" {
		t.Errorf("nothing should be staged, got %s", info.Staged)
	}
	if len(runner.calls) != 1 {
		t.Errorf("build should run once, got %v", runner.calls)
	}
	entries, err := ioutil.ReadDir(filepath.Join(dir, "swan-dir", "src"))
	if err != nil || len(entries) != 0 {
		t.Errorf("staged tree should be empty, got %d entries (%v)", len(entries), err)
	}
}

func TestBuildFailedStatus(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift")
	runner := &fakeRunner{stdout: buildLog, status: 1}
	info, err := build.FromDir(dir).WithRunner(runner).Build(context.Background())
	if err != nil {
		t.Fatalf("failed build status should not stop extraction: %v", err)
	}
	if !info.Failed() {
		t.Errorf("info should record failed build, status %d", info.ExitStatus)
	}
	if want, got := wantSIL, info.Block; want != got {
		t.Errorf("unexpected SIL\nwant: %q\ngot: %q\n", want, got)
	}
}

func TestBuildExtractionErrors(t *testing.T) {
	tests := []struct {
		name string
		log  string
		kind sil.ErrorKind
	}{
		{"Marker not found", "[1/1] Compiling test main.swift\nerror: no such module\n", sil.MarkerNotFound},
		{"Terminator not found", "[1/1] Compiling\nsil_stage canonical\nsil @main {\n}\n", sil.TerminatorNotFound},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := newPackage(t, configuredManifest, "test/main.swift")
			outPath := filepath.Join(dir, "swan-dir", "test.sil")
			if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
				t.Fatal(err)
			}
			if err := ioutil.WriteFile(outPath, []byte("previous"), 0644); err != nil {
				t.Fatal(err)
			}

			runner := &fakeRunner{stdout: test.log}
			info, err := build.FromDir(dir).WithRunner(runner).Build(context.Background())
			eerr, ok := errors.Cause(err).(*sil.ExtractionError)
			if !ok {
				t.Fatalf("expects *sil.ExtractionError, got %T (%v)", err, err)
			}
			if want, got := test.kind, eerr.Kind; want != got {
				t.Errorf("unexpected error kind\nwant: %s\ngot: %s\n", want, got)
			}
			if !strings.Contains(err.Error(), info.LogPath) {
				t.Errorf("error should point at the build log, got: %v", err)
			}
			if want, got := test.log, readFile(t, info.LogPath); want != got {
				t.Errorf("build log should be kept\nwant: %q\ngot: %q\n", want, got)
			}
			if want, got := "previous", readFile(t, outPath); want != got {
				t.Errorf("output should not be updated\nwant: %q\ngot: %q\n", want, got)
			}
		})
	}
}

func TestBuildTimeout(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift")
	runner := &fakeRunner{stdout: "[1/2] Compiling test main.swift\n", hang: true}
	info, err := build.FromDir(dir).WithRunner(runner).WithTimeout(10 * time.Millisecond).Build(context.Background())
	terr, ok := errors.Cause(err).(*build.TimeoutError)
	if !ok {
		t.Fatalf("expects *build.TimeoutError, got %T (%v)", err, err)
	}
	if want, got := 10*time.Millisecond, terr.Timeout; want != got {
		t.Errorf("unexpected timeout\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := runner.stdout, readFile(t, info.LogPath); want != got {
		t.Errorf("partial log should be written\nwant: %q\ngot: %q\n", want, got)
	}
}

func TestBuildCannotStart(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift")
	runner := &fakeRunner{err: exec.ErrNotFound}
	_, err := build.FromDir(dir).WithRunner(runner).Build(context.Background())
	if err == nil {
		t.Fatal("expects error when the build tool cannot be run")
	}
	if errors.Cause(err) != exec.ErrNotFound {
		t.Errorf("expects cause exec.ErrNotFound, got %v", errors.Cause(err))
	}
	if _, err := os.Stat(filepath.Join(dir, "swan-dir", "spm.log")); !os.IsNotExist(err) {
		t.Errorf("no log should be written when nothing ran")
	}
}

func TestBuildTwice(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift")
	stale := filepath.Join(dir, "swan-dir", "src", "Sources", "old", "old.swift")
	if err := os.MkdirAll(filepath.Dir(stale), 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	var outputs, logs []string
	for i := 0; i < 2; i++ {
		info, err := build.FromDir(dir).WithRunner(&fakeRunner{stdout: buildLog}).Build(context.Background())
		if err != nil {
			t.Fatalf("build %d failed: %v", i, err)
		}
		outputs = append(outputs, readFile(t, info.OutputPath))
		logs = append(logs, readFile(t, info.LogPath))
	}
	if outputs[0] != outputs[1] || logs[0] != logs[1] {
		t.Errorf("repeated runs should produce identical files")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale staged files should be removed")
	}
}

func TestBuildCleanFirst(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift")
	runner := &fakeRunner{stdout: buildLog}
	_, err := build.FromDir(dir).WithToolchain(linuxToolchain()).WithCleanFirst(true).WithRunner(runner).Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := []string{"swift package clean", "swift build --use-integrated-swift-driver"}
	if len(runner.calls) != len(want) {
		t.Fatalf("unexpected commands\nwant: %v\ngot: %v\n", want, runner.calls)
	}
	for i := range want {
		if want[i] != runner.calls[i] {
			t.Errorf("unexpected command %d\nwant: %s\ngot: %s\n", i, want[i], runner.calls[i])
		}
	}
}

func TestBuildCustomPaths(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift")
	runner := &fakeRunner{stdout: buildLog}
	info, err := build.FromDir(dir).
		WithStaging("scratch").
		WithLogPath("logs/build.log").
		WithOutputPath("out/main.sil").
		WithTool("/opt/swift/bin/swift").
		WithToolchain(linuxToolchain()).
		WithRunner(runner).
		Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if want, got := filepath.Join(dir, "scratch", "src", "Sources", "test", "main.swift"), info.Staged; want != got {
		t.Errorf("unexpected staged file\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := filepath.Join(dir, "logs", "build.log"), info.LogPath; want != got {
		t.Errorf("unexpected log path\nwant: %s\ngot: %s\n", want, got)
	}
	if want, got := filepath.Join(dir, "out", "main.sil"), info.OutputPath; want != got {
		t.Errorf("unexpected output path\nwant: %s\ngot: %s\n", want, got)
	}
}

func TestWithToolKeepsToolchain(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift")
	runner := &fakeRunner{stdout: buildLog}
	_, err := build.FromDir(dir).WithToolchain(linuxToolchain()).WithTool("/opt/swift/bin/swift").WithRunner(runner).Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if want, got := "/opt/swift/bin/swift build --use-integrated-swift-driver", runner.calls[0]; want != got {
		t.Errorf("unexpected command\nwant: %s\ngot: %s\n", want, got)
	}
}

func TestWithNilToolchain(t *testing.T) {
	dir := newPackage(t, configuredManifest, "test/main.swift")
	runner := &fakeRunner{stdout: buildLog}
	_, err := build.FromDir(dir).WithToolchain(nil).WithTool("swift-5.9").WithRunner(runner).Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if want, got := "swift-5.9 build", runner.calls[0]; want != got {
		t.Errorf("nil toolchain should fall back to the plain build command\nwant: %s\ngot: %s\n", want, got)
	}
}

func TestBuildSourcesOutsidePackage(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "pkg")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(dir, manifest.DefaultPath), []byte(configuredManifest), 0644); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(root, "shared", "test", "main.swift")
	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(src, []byte(mainSwift), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		sources string
	}{
		{"Relative", filepath.Join("..", "shared")},
		{"Absolute", filepath.Join(root, "shared")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			runner := &fakeRunner{stdout: buildLog}
			info, err := build.FromDir(dir).WithSources(test.sources, stage.DefaultExt).WithRunner(runner).Build(context.Background())
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}
			want := filepath.Join(dir, "swan-dir", "src", "shared", "test", "main.swift")
			if want != info.Staged {
				t.Errorf("staged file should stay inside the staged tree\nwant: %s\ngot: %s\n", want, info.Staged)
			}
		})
	}
}

func ExampleFromDir() {
	conf := build.FromDir("path/to/package").Default().WithTimeout(10 * time.Minute)
	_ = conf // Call conf.Build(ctx) here
	// output:
}
