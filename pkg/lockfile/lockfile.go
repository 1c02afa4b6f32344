// Package lockfile implements an exclusive lock on a path using O_EXCL
// file creation, usable across processes.
package lockfile

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

var PollInterval = 250 * time.Millisecond

// Take blocks until the lock at path is acquired or ctx is done. waiting,
// if non-nil, is called each time the lock is found held by a live
// process. Locks left behind by processes that no longer exist are
// broken. The returned function releases the lock.
func Take(ctx context.Context, path string, waiting func()) (func(), error) {
	tk := time.NewTicker(PollInterval)
	defer tk.Stop()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()

			break
		}

		if !os.IsExist(err) {
			return nil, err
		}

		if stale(path) {
			os.Remove(path)
			continue
		}

		if waiting != nil {
			waiting()
		}

		select {
		case <-tk.C:
			// ok
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return func() {
		os.Remove(path)
	}, nil
}

// stale reports whether the lock at path names a process that is gone. A
// lock whose owner can't be determined is never stale.
func stale(path string) bool {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil || pid <= 0 {
		return false
	}

	return unix.Kill(pid, 0) == unix.ESRCH
}
