package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/siderolabs/go-blockdevice/blockdevice/filesystem"
	"github.com/siderolabs/go-blockdevice/blockdevice/probe"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"autoinst/internal/config"
	"autoinst/internal/waiter"
)

const (
	byLabelDir       = "/dev/disk/by-label"
	labelWaitTimeout = 10 * time.Second
)

// Seams for tests; the real implementations need a live system.
var (
	waitForPath = waiter.ForPath
	findByLabel = findDeviceByLabel
	probeFsType = superblockType
	mountDev    = unix.Mount
	unmountDev  = unix.Unmount
)

// FetchFromPartition mounts the filesystem labeled for answer delivery
// and reads the answer file from its root. The mount is read-only on a
// private mount point and is torn down whether or not the read succeeds.
func FetchFromPartition(cfg *config.Config) (string, error) {
	dev, err := findByLabel(config.PartitionLabel)
	if err != nil {
		return "", err
	}

	fsType, err := probeFsType(dev)
	if err != nil {
		return "", fmt.Errorf("probing '%s': %v", dev, err)
	}

	mnt, err := os.MkdirTemp("", "autoinst-ais-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(mnt)

	if err := mountDev(dev, mnt, fsType, unix.MS_RDONLY, ""); err != nil {
		return "", fmt.Errorf("mounting '%s' on '%s': %v", dev, mnt, err)
	}
	defer func() {
		if err := unmountDev(mnt, 0); err != nil {
			logrus.Warnf("unmounting '%s': %v", mnt, err)
		}
	}()

	data, err := os.ReadFile(filepath.Join(mnt, config.AnswerFile))
	if err != nil {
		return "", fmt.Errorf("reading '%s' from partition: %v", config.AnswerFile, err)
	}
	return string(data), nil
}

// findDeviceByLabel resolves the block device carrying the answer label.
// The by-label tree is scanned case-insensitively; when no symlink shows
// up the filesystems are probed directly.
func findDeviceByLabel(label string) (string, error) {
	// Give udev a moment to surface the symlink on slow media.
	_ = waitForPath(filepath.Join(byLabelDir, label), labelWaitTimeout)

	entries, err := os.ReadDir(byLabelDir)
	if err == nil {
		for _, entry := range entries {
			if !strings.EqualFold(entry.Name(), label) {
				continue
			}
			dev, err := filepath.EvalSymlinks(filepath.Join(byLabelDir, entry.Name()))
			if err != nil {
				return "", fmt.Errorf("resolving '%s': %v", entry.Name(), err)
			}
			return dev, nil
		}
	}

	if dev, err := probe.GetDevWithFileSystemLabel(label); err == nil {
		defer dev.Close()
		return dev.Path, nil
	}

	return "", fmt.Errorf("no partition with label '%s' found", label)
}

func superblockType(devPath string) (string, error) {
	sb, err := filesystem.Probe(devPath)
	if err != nil {
		return "", err
	}
	if sb == nil {
		return "", fmt.Errorf("unknown filesystem on '%s'", devPath)
	}
	return sb.Type(), nil
}
