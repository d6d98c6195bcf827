package installer

import (
	"context"
	"os"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/binstall/internal/logger"
)

// linuxCommLength is the length the kernel truncates process names to.
const linuxCommLength = 15

// warnRunningTargets logs processes that currently run the executable about
// to be replaced. Replacement still goes ahead: the rename keeps running
// processes on the old inode.
func (i *Installer) warnRunningTargets(ctx context.Context, name string) {
	pids, err := runningProcesses(executableName(name))
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)

		return
	}

	if len(pids) > 0 {
		logger.WarnKV(ctx, "Executable is running, restart it to pick up the new version",
			"executable", executableName(name), "pids", pids)
	}
}

// runningProcesses returns the PIDs of other processes named executable.
func runningProcesses(executable string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	short := executable
	if len(short) > linuxCommLength {
		short = short[:linuxCommLength]
	}

	thisProcessID := os.Getpid()

	var pids []int

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if name := process.Executable(); name == executable || name == short {
			pids = append(pids, process.Pid())
		}
	}

	return pids, nil
}
