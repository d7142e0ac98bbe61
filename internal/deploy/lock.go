package deploy

import (
	"fmt"
	"os"
	"time"
)

// staleLockAge is how old a lock file must be before another writer may take
// it over. Covers crashed processes that never released.
const staleLockAge = 5 * time.Minute

// acquireLock takes an advisory lock on the registry by exclusively creating
// a colocated lock file. The lock spans the backup-write-verify window; the
// caller must invoke the returned release function.
func acquireLock(registryPath string) (func(), error) {
	lockPath := registryPath + ".lock"

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		info, statErr := os.Stat(lockPath)
		if statErr != nil {
			// Holder released between our create and stat; retry.
			continue
		}
		if time.Since(info.ModTime()) > staleLockAge {
			os.Remove(lockPath)
			continue
		}
		return nil, fmt.Errorf("registry is locked by another operation (%s)", lockPath)
	}

	return nil, fmt.Errorf("registry is locked by another operation (%s)", lockPath)
}
