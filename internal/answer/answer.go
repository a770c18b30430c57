// Package answer parses and validates the answer document driving an
// unattended installation. Decoding is strict: any key the schema does not
// know is rejected, so a typo fails the run instead of silently installing
// with defaults. Cross-field rules are checked afterwards and their errors
// surface to the operator verbatim.
package answer

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/BurntSushi/toml"

	"autoinst/internal/netutil"
	"autoinst/internal/ssh"
)

// Answer is a fully validated answer document.
type Answer struct {
	Global    Global
	Network   Network
	Disks     Disks
	PostHook  *PostHookInfo
	FirstBoot *FirstBootHookInfo
}

// rawAnswer is the wire shape before cross-field validation. Sections are
// pointers so a missing table can be told apart from an empty one.
type rawAnswer struct {
	Global    *Global            `toml:"global"`
	Network   *networkInAnswer   `toml:"network"`
	DiskSetup *diskSetup         `toml:"disk-setup"`
	PostHook  *PostHookInfo      `toml:"post-installation-webhook"`
	FirstBoot *firstBootInAnswer `toml:"first-boot"`
}

// Parse decodes and validates an answer document.
func Parse(data []byte) (*Answer, error) {
	var raw rawAnswer
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("failed parsing answer file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("failed parsing answer file: unknown key '%s'", undecoded[0].String())
	}
	if raw.Global == nil {
		return nil, errors.New("failed parsing answer file: section '[global]' is missing")
	}
	if raw.Network == nil {
		return nil, errors.New("failed parsing answer file: section '[network]' is missing")
	}
	if raw.DiskSetup == nil {
		return nil, errors.New("failed parsing answer file: section '[disk-setup]' is missing")
	}

	if err := raw.Global.validate(); err != nil {
		return nil, err
	}
	network, err := raw.Network.validate()
	if err != nil {
		return nil, err
	}
	disks, err := raw.DiskSetup.validate()
	if err != nil {
		return nil, err
	}
	if raw.PostHook != nil && raw.PostHook.URL == "" {
		return nil, errors.New("Field 'url' must be set.")
	}
	var firstBoot *FirstBootHookInfo
	if raw.FirstBoot != nil {
		firstBoot, err = raw.FirstBoot.validate()
		if err != nil {
			return nil, err
		}
	}

	return &Answer{
		Global:    *raw.Global,
		Network:   *network,
		Disks:     *disks,
		PostHook:  raw.PostHook,
		FirstBoot: firstBoot,
	}, nil
}

// Global is the [global] section.
type Global struct {
	Country            string         `toml:"country"`
	FQDN               netutil.Fqdn   `toml:"fqdn"`
	Keyboard           KeyboardLayout `toml:"keyboard"`
	Mailto             string         `toml:"mailto"`
	Timezone           string         `toml:"timezone"`
	RootPassword       string         `toml:"root_password"`
	RootPasswordHashed string         `toml:"root_password_hashed"`
	RebootOnError      bool           `toml:"reboot_on_error"`
	RootSSHKeys        []string       `toml:"root_ssh_keys"`
}

func (g *Global) validate() error {
	required := []struct {
		field string
		ok    bool
	}{
		{"country", g.Country != ""},
		{"fqdn", g.FQDN.Host != ""},
		{"keyboard", g.Keyboard != ""},
		{"mailto", g.Mailto != ""},
		{"timezone", g.Timezone != ""},
	}
	for _, r := range required {
		if !r.ok {
			return fmt.Errorf("Field '%s' must be set.", r.field)
		}
	}
	if g.RootPassword != "" && g.RootPasswordHashed != "" {
		return errors.New("Either 'root_password' or 'root_password_hashed' must be set, not both.")
	}
	for _, key := range g.RootSSHKeys {
		if err := ssh.CheckAuthorizedKey(key); err != nil {
			return fmt.Errorf("invalid root_ssh_keys entry: %w", err)
		}
	}
	return nil
}

// networkInAnswer is the flat wire shape of [network]; which optional
// fields may appear depends on the source.
type networkInAnswer struct {
	Source  NetworkSource     `toml:"source"`
	CIDR    *netip.Prefix     `toml:"cidr"`
	DNS     *netip.Addr       `toml:"dns"`
	Gateway *netip.Addr       `toml:"gateway"`
	Filter  map[string]string `toml:"filter"`
}

// Network is the validated [network] section.
type Network struct {
	Source NetworkSource
	// Manual is set when Source is NetworkFromAnswer.
	Manual *NetworkManual
}

// NetworkManual is a complete static network configuration.
type NetworkManual struct {
	CIDR    netip.Prefix
	DNS     netip.Addr
	Gateway netip.Addr
	Filter  map[string]string
}

func (n *networkInAnswer) validate() (*Network, error) {
	source := n.Source
	if source == "" {
		source = NetworkFromDHCP
	}

	if source == NetworkFromAnswer {
		if n.CIDR == nil {
			return nil, errors.New("Field 'cidr' must be set.")
		}
		if n.DNS == nil {
			return nil, errors.New("Field 'dns' must be set.")
		}
		if n.Gateway == nil {
			return nil, errors.New("Field 'gateway' must be set.")
		}
		if n.Filter == nil {
			return nil, errors.New("Field 'filter' must be set.")
		}
		return &Network{
			Source: NetworkFromAnswer,
			Manual: &NetworkManual{
				CIDR:    *n.CIDR,
				DNS:     *n.DNS,
				Gateway: *n.Gateway,
				Filter:  n.Filter,
			},
		}, nil
	}

	if n.CIDR != nil {
		return nil, errors.New("Field 'cidr' not supported for 'from-dhcp' config.")
	}
	if n.DNS != nil {
		return nil, errors.New("Field 'dns' not supported for 'from-dhcp' config.")
	}
	if n.Gateway != nil {
		return nil, errors.New("Field 'gateway' not supported for 'from-dhcp' config.")
	}
	if n.Filter != nil {
		return nil, errors.New("Field 'filter' not supported for 'from-dhcp' config.")
	}
	return &Network{Source: NetworkFromDHCP}, nil
}

// diskSetup is the flat wire shape of [disk-setup]. The mutually exclusive
// selection and filesystem option fields are sorted out in validate.
type diskSetup struct {
	Filesystem  Filesystem        `toml:"filesystem"`
	DiskList    []string          `toml:"disk_list"`
	Filter      map[string]string `toml:"filter"`
	FilterMatch *FilterMatch      `toml:"filter_match"`
	Zfs         *ZfsOptions       `toml:"zfs"`
	Lvm         *LvmOptions       `toml:"lvm"`
	Btrfs       *BtrfsOptions     `toml:"btrfs"`
}

// Disks is the validated [disk-setup] section.
type Disks struct {
	FsType        FsType
	DiskSelection DiskSelection
	FilterMatch   *FilterMatch
	FsOptions     FsOptions
}

// FsType is the chosen filesystem, with the raid level where one applies.
type FsType struct {
	Filesystem Filesystem
	ZfsRaid    ZfsRaidLevel
	BtrfsRaid  BtrfsRaidLevel
}

func (t FsType) String() string {
	switch t.Filesystem {
	case FilesystemZfs:
		return fmt.Sprintf("zfs (%s)", t.ZfsRaid.Display())
	case FilesystemBtrfs:
		return fmt.Sprintf("btrfs (%s)", t.BtrfsRaid.Display())
	default:
		return string(t.Filesystem)
	}
}

// DiskSelection picks the target disks either by name or by udev property
// filter; exactly one of the two is set.
type DiskSelection struct {
	List   []string
	Filter map[string]string
}

// FsOptions carries the options of the chosen filesystem; exactly one
// field is set.
type FsOptions struct {
	Lvm   *LvmOptions
	Zfs   *ZfsOptions
	Btrfs *BtrfsOptions
}

// ZfsOptions are the tuning knobs for a ZFS root pool.
type ZfsOptions struct {
	Raid     ZfsRaidLevel `toml:"raid"`
	Ashift   *int         `toml:"ashift"`
	ArcMax   *int         `toml:"arc_max"`
	Checksum ZfsChecksum  `toml:"checksum"`
	Compress ZfsCompress  `toml:"compress"`
	Copies   *int         `toml:"copies"`
	Hdsize   *float64     `toml:"hdsize"`
}

// LvmOptions are the sizing knobs for LVM based installations.
type LvmOptions struct {
	Hdsize   *float64 `toml:"hdsize"`
	Swapsize *float64 `toml:"swapsize"`
	Maxroot  *float64 `toml:"maxroot"`
	Maxvz    *float64 `toml:"maxvz"`
	Minfree  *float64 `toml:"minfree"`
}

// BtrfsOptions are the knobs for Btrfs based installations.
type BtrfsOptions struct {
	Hdsize   *float64       `toml:"hdsize"`
	Raid     BtrfsRaidLevel `toml:"raid"`
	Compress BtrfsCompress  `toml:"compress"`
}

func (d *diskSetup) validate() (*Disks, error) {
	if d.Filesystem == "" {
		return nil, errors.New("Field 'filesystem' must be set.")
	}
	if len(d.DiskList) == 0 && d.Filter == nil {
		return nil, errors.New("Need either 'disk_list' or 'filter' set")
	}
	if len(d.DiskList) > 0 && d.Filter != nil {
		return nil, errors.New("Cannot use both, 'disk_list' and 'filter'")
	}

	lvmChecks := func() error {
		if d.Zfs != nil || d.Btrfs != nil {
			return errors.New("make sure only 'lvm' options are set")
		}
		if len(d.DiskList) > 1 {
			return errors.New("make sure to define only one disk for ext4 and xfs")
		}
		return nil
	}

	disks := &Disks{
		DiskSelection: DiskSelection{List: d.DiskList, Filter: d.Filter},
		FilterMatch:   d.FilterMatch,
	}

	switch d.Filesystem {
	case FilesystemExt4, FilesystemXfs:
		if err := lvmChecks(); err != nil {
			return nil, err
		}
		lvm := d.Lvm
		if lvm == nil {
			lvm = &LvmOptions{}
		}
		disks.FsType = FsType{Filesystem: d.Filesystem}
		disks.FsOptions = FsOptions{Lvm: lvm}
	case FilesystemZfs:
		if d.Lvm != nil || d.Btrfs != nil {
			return nil, errors.New("make sure only 'zfs' options are set")
		}
		if d.Zfs == nil || d.Zfs.Raid == "" {
			return nil, errors.New("ZFS raid level 'zfs.raid' must be set")
		}
		disks.FsType = FsType{Filesystem: FilesystemZfs, ZfsRaid: d.Zfs.Raid}
		disks.FsOptions = FsOptions{Zfs: d.Zfs}
	case FilesystemBtrfs:
		if d.Zfs != nil || d.Lvm != nil {
			return nil, errors.New("make sure only 'btrfs' options are set")
		}
		if d.Btrfs == nil || d.Btrfs.Raid == "" {
			return nil, errors.New("BTRFS raid level 'btrfs.raid' must be set")
		}
		disks.FsType = FsType{Filesystem: FilesystemBtrfs, BtrfsRaid: d.Btrfs.Raid}
		disks.FsOptions = FsOptions{Btrfs: d.Btrfs}
	}
	return disks, nil
}

// PostHookInfo configures the POST request sent after the installation
// finished.
type PostHookInfo struct {
	URL             string `toml:"url"`
	CertFingerprint string `toml:"cert_fingerprint"`
}

// firstBootInAnswer is the flat wire shape of [first-boot].
type firstBootInAnswer struct {
	Source          FirstBootSource   `toml:"source"`
	Ordering        FirstBootOrdering `toml:"ordering"`
	URL             string            `toml:"url"`
	CertFingerprint string            `toml:"cert-fingerprint"`
}

// FirstBootHookInfo is the validated [first-boot] section.
type FirstBootHookInfo struct {
	Source          FirstBootSource
	Ordering        FirstBootOrdering
	URL             string
	CertFingerprint string
}

func (f *firstBootInAnswer) validate() (*FirstBootHookInfo, error) {
	if f.Source == "" {
		return nil, errors.New("Field 'source' must be set.")
	}
	ordering := f.Ordering
	if ordering == "" {
		ordering = FirstBootFullyUp
	}
	if f.Source == FirstBootFromURL && f.URL == "" {
		return nil, errors.New("Field 'url' must be set when 'source' is set to 'from-url'.")
	}
	if f.Source == FirstBootFromISO {
		if f.URL != "" {
			return nil, errors.New("Field 'url' not supported for 'from-iso' source.")
		}
		if f.CertFingerprint != "" {
			return nil, errors.New("Field 'cert-fingerprint' not supported for 'from-iso' source.")
		}
	}
	return &FirstBootHookInfo{
		Source:          f.Source,
		Ordering:        ordering,
		URL:             f.URL,
		CertFingerprint: f.CertFingerprint,
	}, nil
}
