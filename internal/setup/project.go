package setup

import (
	"errors"
	"fmt"
	"net/netip"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"autoinst/internal/answer"
	"autoinst/internal/filter"
)

// InstallRootPassword carries exactly one form of the root password.
type InstallRootPassword struct {
	Plain  string `json:"plain,omitempty"`
	Hashed string `json:"hashed,omitempty"`
}

// InstallZfsOptions are the pool options sent to the low-level installer,
// with every field resolved to a concrete value.
type InstallZfsOptions struct {
	Ashift   int                `json:"ashift"`
	Compress answer.ZfsCompress `json:"compress"`
	Checksum answer.ZfsChecksum `json:"checksum"`
	Copies   int                `json:"copies"`
	ArcMax   int                `json:"arc_max"`
}

// InstallBtrfsOptions are the resolved Btrfs options.
type InstallBtrfsOptions struct {
	Compress answer.BtrfsCompress `json:"compress"`
}

// InstallFirstBoot tells the low-level installer whether to register the
// first boot hook service and which target to order it against.
type InstallFirstBoot struct {
	Enabled        IntBool `json:"enabled"`
	OrderingTarget string  `json:"ordering_target,omitempty"`
}

// InstallConfig is the flat configuration record the low-level installer
// reads as its first input line. Field names are its wire contract.
type InstallConfig struct {
	Autoreboot int      `json:"autoreboot"`
	Filesys    string   `json:"filesys"`
	Hdsize     float64  `json:"hdsize"`
	Swapsize   *float64 `json:"swapsize,omitempty"`
	Maxroot    *float64 `json:"maxroot,omitempty"`
	Minfree    *float64 `json:"minfree,omitempty"`
	Maxvz      *float64 `json:"maxvz,omitempty"`

	ZfsOpts   *InstallZfsOptions   `json:"zfs_opts,omitempty"`
	BtrfsOpts *InstallBtrfsOptions `json:"btrfs_opts,omitempty"`

	TargetHD      string            `json:"target_hd,omitempty"`
	DiskSelection map[string]string `json:"disk_selection,omitempty"`

	ExistingStorageAutoRename int `json:"existing_storage_auto_rename"`

	Country  string `json:"country"`
	Timezone string `json:"timezone"`
	Keymap   string `json:"keymap"`

	RootPassword InstallRootPassword `json:"root_password"`
	Mailto       string              `json:"mailto"`
	RootSSHKeys  []string            `json:"root_ssh_keys,omitempty"`

	MngmtNic string `json:"mngmt_nic"`

	Hostname string       `json:"hostname"`
	Domain   string       `json:"domain"`
	CIDR     netip.Prefix `json:"cidr"`
	Gateway  netip.Addr   `json:"gateway"`
	DNS      netip.Addr   `json:"dns"`

	FirstBoot InstallFirstBoot `json:"first_boot"`
}

// Project turns a validated answer into the install configuration. All
// checks that need the live environment happen here: locale identifiers,
// disk and interface resolution, and the root password requirement the
// schema alone does not enforce.
func Project(ans *answer.Answer, env *Environment) (*InstallConfig, error) {
	if err := checkLocale(&ans.Global, &env.Locale); err != nil {
		return nil, err
	}
	password, err := rootPassword(&ans.Global)
	if err != nil {
		return nil, err
	}

	cfg := &InstallConfig{
		Autoreboot:                1,
		ExistingStorageAutoRename: 1,
		Filesys:                   ans.Disks.FsType.String(),
		Country:                   ans.Global.Country,
		Timezone:                  ans.Global.Timezone,
		Keymap:                    string(ans.Global.Keyboard),
		RootPassword:              password,
		Mailto:                    ans.Global.Mailto,
		RootSSHKeys:               ans.Global.RootSSHKeys,
		Hostname:                  ans.Global.FQDN.Host,
		Domain:                    ans.Global.FQDN.Domain,
	}
	if err := projectDisks(ans, env, cfg); err != nil {
		return nil, err
	}
	if err := projectNetwork(ans, env, cfg); err != nil {
		return nil, err
	}

	cfg.FirstBoot.Enabled = ans.FirstBoot != nil
	if ans.FirstBoot != nil {
		cfg.FirstBoot.OrderingTarget = ans.FirstBoot.Ordering.SystemdTarget()
	}
	return cfg, nil
}

func checkLocale(global *answer.Global, locale *LocaleInfo) error {
	if _, ok := locale.Countries[global.Country]; !ok {
		return fmt.Errorf("country '%s' is not valid", global.Country)
	}
	// Any country's timezone is acceptable; operators may install a
	// machine in one country with another's clock.
	if global.Timezone != "UTC" && !timezoneKnown(locale, global.Timezone) {
		return fmt.Errorf("timezone '%s' is not valid", global.Timezone)
	}
	if _, ok := locale.Kmap[string(global.Keyboard)]; !ok {
		return fmt.Errorf("keyboard layout '%s' is not valid", global.Keyboard)
	}
	return nil
}

func timezoneKnown(locale *LocaleInfo, zone string) bool {
	for _, zones := range locale.CCZones {
		if _, ok := zones[zone]; ok {
			return true
		}
	}
	return false
}

func rootPassword(global *answer.Global) (InstallRootPassword, error) {
	switch {
	case global.RootPassword != "":
		return InstallRootPassword{Plain: global.RootPassword}, nil
	case global.RootPasswordHashed != "":
		return InstallRootPassword{Hashed: global.RootPasswordHashed}, nil
	}
	return InstallRootPassword{}, errors.New("either 'root_password' or 'root_password_hashed' must be set")
}

func projectDisks(ans *answer.Answer, env *Environment, cfg *InstallConfig) error {
	fs := ans.Disks.FsType.Filesystem
	if fs == answer.FilesystemBtrfs && !bool(env.Setup.Config.EnableBtrfs) {
		return errors.New("btrfs support is not enabled in this product")
	}

	selected, err := selectDisks(&ans.Disks, env)
	if err != nil {
		return err
	}

	switch fs {
	case answer.FilesystemExt4, answer.FilesystemXfs:
		cfg.TargetHD = selected[0].Path
		logrus.Infof("selected target disk %s", selected[0].Path)
	default:
		cfg.DiskSelection = make(map[string]string, len(selected))
		for _, disk := range selected {
			cfg.DiskSelection[disk.Index] = disk.Index
			logrus.Infof("selected disk %s", disk.Path)
		}
	}

	first := selected[0]
	opts := ans.Disks.FsOptions
	switch {
	case opts.Lvm != nil:
		cfg.Hdsize = orFloat(opts.Lvm.Hdsize, first.Size)
		cfg.Swapsize = opts.Lvm.Swapsize
		cfg.Maxroot = opts.Lvm.Maxroot
		cfg.Minfree = opts.Lvm.Minfree
		cfg.Maxvz = opts.Lvm.Maxvz
	case opts.Zfs != nil:
		cfg.Hdsize = orFloat(opts.Zfs.Hdsize, first.Size)
		cfg.ZfsOpts = &InstallZfsOptions{
			Ashift:   orInt(opts.Zfs.Ashift, 12),
			Compress: orZfsCompress(opts.Zfs.Compress),
			Checksum: orZfsChecksum(opts.Zfs.Checksum),
			Copies:   orInt(opts.Zfs.Copies, 1),
			// 0 lets the low-level installer pick the product default.
			ArcMax: orInt(opts.Zfs.ArcMax, 0),
		}
	case opts.Btrfs != nil:
		cfg.Hdsize = orFloat(opts.Btrfs.Hdsize, first.Size)
		compress := opts.Btrfs.Compress
		if compress == "" {
			compress = "off"
		}
		cfg.BtrfsOpts = &InstallBtrfsOptions{Compress: compress}
	}
	return nil
}

// selectDisks resolves the answer's disk selection against the system,
// preserving list order for explicit selections and index order for
// filter matches.
func selectDisks(disks *answer.Disks, env *Environment) ([]Disk, error) {
	if list := disks.DiskSelection.List; len(list) > 0 {
		selected := make([]Disk, 0, len(list))
		for _, name := range list {
			disk, ok := findDisk(env.Runtime.Disks, name)
			if !ok {
				return nil, fmt.Errorf("disk '%s' not found in the system", name)
			}
			selected = append(selected, disk)
		}
		return selected, nil
	}

	matchAll := disks.FilterMatch != nil && *disks.FilterMatch == answer.FilterMatchAll
	var selected []Disk
	for _, index := range filter.MatchedDevices(disks.DiskSelection.Filter, env.Udev.Disks, matchAll) {
		if disk, ok := diskByIndex(env.Runtime.Disks, index); ok {
			selected = append(selected, disk)
		}
	}
	if len(selected) == 0 {
		return nil, errors.New("no disks found matching the disk filter")
	}
	return selected, nil
}

// findDisk accepts both full device paths and bare names, so an answer
// may say "sda" as well as "/dev/sda".
func findDisk(disks []Disk, name string) (Disk, bool) {
	for _, disk := range disks {
		if disk.Path == name || filepath.Base(disk.Path) == name {
			return disk, true
		}
	}
	return Disk{}, false
}

func diskByIndex(disks []Disk, index string) (Disk, bool) {
	for _, disk := range disks {
		if disk.Index == index {
			return disk, true
		}
	}
	return Disk{}, false
}

func projectNetwork(ans *answer.Answer, env *Environment, cfg *InstallConfig) error {
	if manual := ans.Network.Manual; manual != nil {
		nic, ok := filter.MatchSingle(manual.Filter, env.Udev.Nics)
		if !ok {
			return errors.New("no network interface found matching the filter")
		}
		cfg.MngmtNic = nic
		cfg.CIDR = manual.CIDR
		cfg.Gateway = manual.Gateway
		cfg.DNS = manual.DNS
		logrus.Infof("selected management interface %s", nic)
		return nil
	}

	routes := env.Runtime.Network.Routes
	if routes == nil || routes.Gateway4 == nil {
		return errors.New("no default gateway found via DHCP")
	}
	gateway := routes.Gateway4
	iface, ok := env.Runtime.Network.Interfaces[gateway.Dev]
	if !ok {
		return fmt.Errorf("default route interface '%s' not found", gateway.Dev)
	}
	address, ok := firstIPv4(iface.Addresses)
	if !ok {
		return fmt.Errorf("no usable address on interface '%s'", iface.Name)
	}
	if len(env.Runtime.Network.DNS.Servers) == 0 {
		return errors.New("no DNS server found via DHCP")
	}

	cfg.MngmtNic = iface.Name
	cfg.CIDR = address
	cfg.Gateway = gateway.Gateway
	cfg.DNS = env.Runtime.Network.DNS.Servers[0]
	logrus.Infof("using DHCP configuration of interface %s", iface.Name)
	return nil
}

func firstIPv4(addresses []Address) (netip.Prefix, bool) {
	for _, address := range addresses {
		if address.Addr().Is4() {
			return address.Prefix, true
		}
	}
	return netip.Prefix{}, false
}

func orFloat(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func orInt(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

func orZfsCompress(v answer.ZfsCompress) answer.ZfsCompress {
	if v == "" {
		return "on"
	}
	return v
}

func orZfsChecksum(v answer.ZfsChecksum) answer.ZfsChecksum {
	if v == "" {
		return "on"
	}
	return v
}
