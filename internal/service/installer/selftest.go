package installer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/oshokin/binstall/internal/domain/release"
	"github.com/oshokin/binstall/internal/logger"
)

// SelfTest runs `<binary> --version` and returns its output. A non-zero exit
// status, a failure to start or a timeout is a SelfTestFailedError.
func (i *Installer) SelfTest(ctx context.Context, name string) (string, error) {
	path := i.TargetPath(name)

	cmdCtx, cancel := context.WithTimeout(ctx, i.selfTestTimeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, path, "--version").CombinedOutput()
	if err != nil {
		exitCode := -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		if cmdCtx.Err() != nil {
			err = fmt.Errorf("%w: %w", err, cmdCtx.Err())
		}

		return "", &release.SelfTestFailedError{
			Path:     path,
			ExitCode: exitCode,
			Output:   string(output),
			Err:      err,
		}
	}

	versionOutput := strings.TrimSpace(string(output))
	logger.InfoKV(ctx, "Self test passed", "path", path, "output", versionOutput)

	return versionOutput, nil
}
