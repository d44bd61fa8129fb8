//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	plstformLinux   = "linux"
	platformWindows = "windows"
	platformDarwin  = "darwin"

	archAmd64 = "amd64"
	archArm64 = "arm64"
	archArm   = "arm"
)

const (
	cgoEnable = "0"
)

const (
	armVersion7 = "7"
)

const (
	cmdDir    = "cmd"
	outDir    = "bin"
	outPrefix = ""
)

const (
	buildTagDebug = "debug"
	buildTagProd  = "prod"
)

var (
	freshInstall bool
	armVersion   string
	buildTag     string = buildTagDebug
	arch         string = runtime.GOARCH
	platform     string = runtime.GOOS
)

var Aliases = map[string]any{
	"prod":   Platform.Prod,
	"amd64":  Platform.Amd64,
	"arm64":  Platform.Arm64,
	"arm32":  Platform.Arm32,
	"linux":  Platform.Linux,
	"win":    Platform.Windows,
	"darwin": Platform.Darwin,
	"lint":   Lint.Lint,
	"lintcc": Lint.CleanLintCache,
	"test":   Coverage,
	"fi":     Dep.FreshInstall,
}

type Platform mg.Namespace

// Set build tag to debug
func (Platform) Prod() {
	buildTag = buildTagProd
}

// Set architecture to amd64
func (Platform) Amd64() {
	arch = archAmd64
}

// Set architecture to arm64
func (Platform) Arm64() {
	arch = archArm64
}

// Set architecture to arm32
func (Platform) Arm32() {
	arch = archArm
	armVersion = armVersion7
}

// Set platform to linux
func (Platform) Linux() {
	platform = plstformLinux
}

// Set platform to windows
func (Platform) Windows() {
	arch = archAmd64
	platform = platformWindows
}

// Set platform to darwin
func (Platform) Darwin() {
	platform = platformDarwin
}

type Dep mg.Namespace

func (Dep) FreshInstall() {
	freshInstall = true
}

func checkAndInstall(name, installCmd string, args ...string) error {
	err := sh.Run("which", name)
	if err != nil || freshInstall {
		fmt.Printf("Installing %s...\n", name)
		return sh.RunV(installCmd, args...)
	}
	return nil
}

// Install go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest
func (Dep) InstallGolangciLint() error {
	return checkAndInstall(
		"golangci-lint",
		"go",
		"install",
		"github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest",
	)
}

type Lint mg.Namespace

// Clean lint cache
func (Lint) CleanLintCache() error {
	fmt.Println("Cleaning lint cache...")
	return sh.RunV("golangci-lint", "cache", "clean")
}

// Run Lint project
func (Lint) Lint() error {
	mg.SerialDeps(Dep.InstallGolangciLint)
	fmt.Println("Linting...")
	return sh.RunV("golangci-lint", "run")
}

type Test mg.Namespace

// Install gotestsum
func (Test) InstallGotestsum() error {
	return checkAndInstall("gotestsum", "go", "install", "gotest.tools/gotestsum@latest")
}

// Test Run gotestsum --junitfile report.xml --format testname -- -coverprofile=coverage.txt ./...
func (Test) Run() error {
	mg.Deps(Test.InstallGotestsum)
	fmt.Println("Running tests...")
	return sh.RunV(
		"gotestsum",
		"--junitfile",
		"report.xml",
		"--format",
		"testname",
		"--",
		"-coverprofile=coverage.txt",
		"./...",
	)
}

// Check coverage
func Coverage() error {
	mg.SerialDeps(Lint.Lint, Test.Run)
	fmt.Println("Checking coverage...")
	return sh.RunV("go", "tool", "cover", "-func", "coverage.txt")
}

// Build -
func Build() error {
	paths, err := os.ReadDir(cmdDir)
	if err != nil {
		return err
	}
	envVar := map[string]string{
		"CGO_ENABLED": cgoEnable,
		"GOOS":        platform,
		"GOARCH":      arch,
		"GOARM":       armVersion,
	}

	var wg sync.WaitGroup
	// A channel to collect errors from goroutines.
	errCh := make(chan error, len(paths))

	for _, dir := range paths {
		if !dir.IsDir() {
			continue
		}
		wg.Add(1)
		go func(dirName string) {
			defer wg.Done()
			ldflags := "-s -w"
			input := fmt.Sprintf("./%s/%s", cmdDir, dirName)
			outputName := fmt.Sprintf("%s/%s%s", outDir, outPrefix, dirName)
			if platform == platformWindows {
				outputName = fmt.Sprintf("%s.exe", outputName)
			}
			fmt.Printf("Building %s %s for %s %s\n", buildTag, input, platform, arch)
			if err := sh.RunWithV(
				envVar, "go", "build", fmt.Sprintf("-ldflags=%s", ldflags), "-tags", buildTag, "-o", outputName, input,
			); err != nil {
				errCh <- err
			}
		}(dir.Name())
	}

	// Wait for all builds to complete and close the error channel.
	go func() {
		wg.Wait()
		close(errCh)
	}()

	// Check for any errors that occurred during the build.
	for err := range errCh {
		if err != nil {
			return err
		}
	}

	return nil
}

// Clean output directory
func Clean() error {
	fmt.Println("Cleaning...")
	return os.RemoveAll(outDir)
}
