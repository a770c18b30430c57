package answer

import (
	"fmt"
	"strings"
)

func unmarshalEnum(text []byte, what string, allowed []string) (string, error) {
	v := string(text)
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s '%s'", what, v)
}

// KeyboardLayout is one of the console keymaps the installer ships.
type KeyboardLayout string

var keyboardLayouts = []string{
	"de", "de-ch", "dk", "en-gb", "en-us", "es", "fi", "fr", "fr-be",
	"fr-ca", "fr-ch", "hu", "is", "it", "jp", "lt", "mk", "nl", "no",
	"pl", "pt", "pt-br", "se", "si", "tr",
}

func (k *KeyboardLayout) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "keyboard layout", keyboardLayouts)
	if err != nil {
		return err
	}
	*k = KeyboardLayout(v)
	return nil
}

// NetworkSource selects where the network configuration comes from.
type NetworkSource string

const (
	NetworkFromDHCP   NetworkSource = "from-dhcp"
	NetworkFromAnswer NetworkSource = "from-answer"
)

func (n *NetworkSource) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "network source", []string{
		string(NetworkFromDHCP), string(NetworkFromAnswer),
	})
	if err != nil {
		return err
	}
	*n = NetworkSource(v)
	return nil
}

// Filesystem is the root filesystem choice.
type Filesystem string

const (
	FilesystemExt4  Filesystem = "ext4"
	FilesystemXfs   Filesystem = "xfs"
	FilesystemZfs   Filesystem = "zfs"
	FilesystemBtrfs Filesystem = "btrfs"
)

func (f *Filesystem) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "filesystem", []string{
		string(FilesystemExt4), string(FilesystemXfs),
		string(FilesystemZfs), string(FilesystemBtrfs),
	})
	if err != nil {
		return err
	}
	*f = Filesystem(v)
	return nil
}

// FilterMatch selects whether one or all filter predicates must match.
type FilterMatch string

const (
	FilterMatchAny FilterMatch = "any"
	FilterMatchAll FilterMatch = "all"
)

func (f *FilterMatch) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "filter match", []string{
		string(FilterMatchAny), string(FilterMatchAll),
	})
	if err != nil {
		return err
	}
	*f = FilterMatch(v)
	return nil
}

// ZfsRaidLevel is the redundancy layout of a ZFS pool.
type ZfsRaidLevel string

const (
	ZfsRaid0  ZfsRaidLevel = "raid0"
	ZfsRaid1  ZfsRaidLevel = "raid1"
	ZfsRaid10 ZfsRaidLevel = "raid10"
	ZfsRaidZ1 ZfsRaidLevel = "raidz-1"
	ZfsRaidZ2 ZfsRaidLevel = "raidz-2"
	ZfsRaidZ3 ZfsRaidLevel = "raidz-3"
)

func (z *ZfsRaidLevel) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "zfs raid level", []string{
		string(ZfsRaid0), string(ZfsRaid1), string(ZfsRaid10),
		string(ZfsRaidZ1), string(ZfsRaidZ2), string(ZfsRaidZ3),
	})
	if err != nil {
		return err
	}
	*z = ZfsRaidLevel(v)
	return nil
}

// Display returns the uppercase form used in the install configuration.
func (z ZfsRaidLevel) Display() string {
	return strings.ToUpper(string(z))
}

// BtrfsRaidLevel is the redundancy layout of a Btrfs filesystem.
type BtrfsRaidLevel string

const (
	BtrfsRaid0  BtrfsRaidLevel = "raid0"
	BtrfsRaid1  BtrfsRaidLevel = "raid1"
	BtrfsRaid10 BtrfsRaidLevel = "raid10"
)

func (b *BtrfsRaidLevel) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "btrfs raid level", []string{
		string(BtrfsRaid0), string(BtrfsRaid1), string(BtrfsRaid10),
	})
	if err != nil {
		return err
	}
	*b = BtrfsRaidLevel(v)
	return nil
}

// Display returns the uppercase form used in the install configuration.
func (b BtrfsRaidLevel) Display() string {
	return strings.ToUpper(string(b))
}

// ZfsChecksum is the checksum algorithm for a ZFS pool.
type ZfsChecksum string

func (z *ZfsChecksum) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "zfs checksum option", []string{
		"on", "fletcher4", "sha256",
	})
	if err != nil {
		return err
	}
	*z = ZfsChecksum(v)
	return nil
}

// ZfsCompress is the compression setting for a ZFS pool.
type ZfsCompress string

func (z *ZfsCompress) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "zfs compression option", []string{
		"on", "off", "lzjb", "lz4", "zle", "gzip", "zstd",
	})
	if err != nil {
		return err
	}
	*z = ZfsCompress(v)
	return nil
}

// BtrfsCompress is the compression setting for a Btrfs filesystem.
type BtrfsCompress string

func (b *BtrfsCompress) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "btrfs compression option", []string{
		"on", "off", "zlib", "lzo", "zstd",
	})
	if err != nil {
		return err
	}
	*b = BtrfsCompress(v)
	return nil
}

// FirstBootSource selects where the first boot hook comes from.
type FirstBootSource string

const (
	FirstBootFromURL FirstBootSource = "from-url"
	FirstBootFromISO FirstBootSource = "from-iso"
)

func (f *FirstBootSource) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "first boot source", []string{
		string(FirstBootFromURL), string(FirstBootFromISO),
	})
	if err != nil {
		return err
	}
	*f = FirstBootSource(v)
	return nil
}

// FirstBootOrdering selects when the first boot hook runs relative to the
// rest of the boot process.
type FirstBootOrdering string

const (
	FirstBootBeforeNetwork FirstBootOrdering = "before-network"
	FirstBootNetworkOnline FirstBootOrdering = "network-online"
	FirstBootFullyUp       FirstBootOrdering = "fully-up"
)

func (f *FirstBootOrdering) UnmarshalText(text []byte) error {
	v, err := unmarshalEnum(text, "first boot ordering", []string{
		string(FirstBootBeforeNetwork), string(FirstBootNetworkOnline), string(FirstBootFullyUp),
	})
	if err != nil {
		return err
	}
	*f = FirstBootOrdering(v)
	return nil
}

// SystemdTarget maps the ordering to the systemd target the hook service
// hangs off, without the .target suffix.
func (f FirstBootOrdering) SystemdTarget() string {
	switch f {
	case FirstBootBeforeNetwork:
		return "network-pre"
	case FirstBootNetworkOnline:
		return "network-online"
	default:
		return "multi-user"
	}
}
