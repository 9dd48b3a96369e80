//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// FindProcesses returns the PIDs of running processes whose executable is name.
// The current process is never reported. Matching ignores case on Windows.
func FindProcesses(name string) ([]int, error) {
	if name == "" {
		return nil, nil
	}

	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	var (
		thisProcessID = os.Getpid()
		pids          []int
	)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if !sameExecutable(process.Executable(), name) {
			continue
		}

		pids = append(pids, process.Pid())
	}

	return pids, nil
}

func sameExecutable(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}

	return a == b
}
