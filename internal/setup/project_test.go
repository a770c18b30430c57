package setup

import (
	"encoding/json"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoinst/internal/answer"
)

const (
	globalSection = `[global]
country = "at"
fqdn = "host.example.com"
keyboard = "de"
mailto = "ops@example.com"
timezone = "Europe/Vienna"
root_password = "secret"
`

	dhcpSection = `[network]
source = "from-dhcp"
`

	ext4Section = `[disk-setup]
filesystem = "ext4"
disk_list = ["sda"]
`
)

func parseAnswer(t *testing.T, doc string) *answer.Answer {
	t.Helper()
	ans, err := answer.Parse([]byte(doc))
	require.NoError(t, err)
	return ans
}

func testEnv() *Environment {
	return &Environment{
		Setup: SetupInfo{
			Config:  ProductConfig{FullName: "Autoinst Test", Product: "ai", EnableBtrfs: true},
			IsoInfo: IsoInfo{Release: "8.1", IsoRelease: "1"},
		},
		Locale: LocaleInfo{
			CCZones: map[string]map[string]int{
				"at": {"Europe/Vienna": 1},
				"de": {"Europe/Berlin": 1},
			},
			Countries: map[string]CountryInfo{
				"at": {Name: "Austria", Zone: "Europe/Vienna", Kmap: "de"},
				"de": {Name: "Germany", Zone: "Europe/Berlin", Kmap: "de"},
			},
			Kmap: map[string]KeyboardMapping{
				"de":    {Name: "German", ID: "de"},
				"en-us": {Name: "U.S. English", ID: "en-us"},
			},
		},
		Runtime: RuntimeInfo{
			BootType: BootEFI,
			Disks: []Disk{
				{Index: "0", Path: "/dev/sda", Model: "QEMU_HARDDISK", Size: 64},
				{Index: "1", Path: "/dev/sdb", Model: "QEMU_HARDDISK", Size: 128},
				{Index: "2", Path: "/dev/nvme0n1", Model: "SAMSUNG_SSD", Size: 256},
			},
			Network: NetworkInfo{
				DNS: DNSInfo{
					Domain:  "example.com",
					Servers: []netip.Addr{netip.MustParseAddr("192.168.1.1"), netip.MustParseAddr("192.168.1.2")},
				},
				Routes: &Routes{
					Gateway4: &Gateway{Dev: "eno1", Gateway: netip.MustParseAddr("192.168.1.1")},
				},
				Interfaces: map[string]Interface{
					"eno1": {
						Name: "eno1", Index: 2, Mac: "aa:bb:cc:dd:ee:ff", State: "UP",
						Addresses: []Address{{netip.MustParsePrefix("192.168.1.114/24")}},
					},
					"eno2": {Name: "eno2", Index: 3, Mac: "aa:bb:cc:dd:ee:00", State: "DOWN"},
				},
			},
			TotalMemory:  16384,
			HvmSupported: true,
		},
		Udev: UdevInfo{
			Disks: map[string]map[string]string{
				"0": {"ID_MODEL": "QEMU_HARDDISK", "ID_BUS": "scsi"},
				"1": {"ID_MODEL": "QEMU_HARDDISK", "ID_BUS": "scsi"},
				"2": {"ID_MODEL": "SAMSUNG_SSD", "ID_BUS": "nvme"},
			},
			Nics: map[string]map[string]string{
				"eno1": {"ID_NET_DRIVER": "virtio_net", "INTERFACE": "eno1"},
				"eno2": {"ID_NET_DRIVER": "e1000e", "INTERFACE": "eno2"},
			},
		},
	}
}

func TestProjectExt4DHCP(t *testing.T) {
	ans := parseAnswer(t, globalSection+dhcpSection+ext4Section)

	cfg, err := Project(ans, testEnv())
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Autoreboot)
	assert.Equal(t, 1, cfg.ExistingStorageAutoRename)
	assert.Equal(t, "ext4", cfg.Filesys)
	assert.Equal(t, "/dev/sda", cfg.TargetHD)
	assert.Empty(t, cfg.DiskSelection)
	assert.InDelta(t, 64.0, cfg.Hdsize, 0.001, "hdsize defaults to the disk size")
	assert.Equal(t, "at", cfg.Country)
	assert.Equal(t, "Europe/Vienna", cfg.Timezone)
	assert.Equal(t, "de", cfg.Keymap)
	assert.Equal(t, "secret", cfg.RootPassword.Plain)
	assert.Empty(t, cfg.RootPassword.Hashed)
	assert.Equal(t, "host", cfg.Hostname)
	assert.Equal(t, "example.com", cfg.Domain)
	assert.Equal(t, "eno1", cfg.MngmtNic)
	assert.Equal(t, "192.168.1.114/24", cfg.CIDR.String())
	assert.Equal(t, "192.168.1.1", cfg.Gateway.String())
	assert.Equal(t, "192.168.1.1", cfg.DNS.String())
	assert.False(t, bool(cfg.FirstBoot.Enabled))
}

// The marshaled shape is the wire contract of the low-level installer and
// must stay stable.
func TestProjectWireFormat(t *testing.T) {
	ans := parseAnswer(t, globalSection+dhcpSection+ext4Section)

	cfg, err := Project(ans, testEnv())
	require.NoError(t, err)

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
	  "autoreboot": 1,
	  "filesys": "ext4",
	  "hdsize": 64,
	  "target_hd": "/dev/sda",
	  "existing_storage_auto_rename": 1,
	  "country": "at",
	  "timezone": "Europe/Vienna",
	  "keymap": "de",
	  "root_password": {"plain": "secret"},
	  "mailto": "ops@example.com",
	  "mngmt_nic": "eno1",
	  "hostname": "host",
	  "domain": "example.com",
	  "cidr": "192.168.1.114/24",
	  "gateway": "192.168.1.1",
	  "dns": "192.168.1.1",
	  "first_boot": {"enabled": 0}
	}`, string(out))
}

func TestProjectZfsDefaults(t *testing.T) {
	ans := parseAnswer(t, globalSection+dhcpSection+`[disk-setup]
filesystem = "zfs"
zfs.raid = "raid1"

[disk-setup.filter]
ID_MODEL = "QEMU_HARDDISK"
`)

	cfg, err := Project(ans, testEnv())
	require.NoError(t, err)

	assert.Equal(t, "zfs (RAID1)", cfg.Filesys)
	assert.Empty(t, cfg.TargetHD)
	assert.Equal(t, map[string]string{"0": "0", "1": "1"}, cfg.DiskSelection)
	assert.InDelta(t, 64.0, cfg.Hdsize, 0.001, "hdsize defaults to the first matched disk")
	require.NotNil(t, cfg.ZfsOpts)
	assert.Equal(t, 12, cfg.ZfsOpts.Ashift)
	assert.Equal(t, answer.ZfsCompress("on"), cfg.ZfsOpts.Compress)
	assert.Equal(t, answer.ZfsChecksum("on"), cfg.ZfsOpts.Checksum)
	assert.Equal(t, 1, cfg.ZfsOpts.Copies)
	assert.Equal(t, 0, cfg.ZfsOpts.ArcMax)
}

func TestProjectZfsExplicitOptions(t *testing.T) {
	ans := parseAnswer(t, globalSection+dhcpSection+`[disk-setup]
filesystem = "zfs"
disk_list = ["sdb", "sda"]

[disk-setup.zfs]
raid = "raidz-1"
ashift = 13
compress = "zstd"
checksum = "sha256"
copies = 2
arc_max = 1024
hdsize = 100.5
`)

	cfg, err := Project(ans, testEnv())
	require.NoError(t, err)

	assert.Equal(t, "zfs (RAIDZ-1)", cfg.Filesys)
	assert.Equal(t, map[string]string{"0": "0", "1": "1"}, cfg.DiskSelection)
	assert.InDelta(t, 100.5, cfg.Hdsize, 0.001)
	require.NotNil(t, cfg.ZfsOpts)
	assert.Equal(t, 13, cfg.ZfsOpts.Ashift)
	assert.Equal(t, answer.ZfsCompress("zstd"), cfg.ZfsOpts.Compress)
	assert.Equal(t, answer.ZfsChecksum("sha256"), cfg.ZfsOpts.Checksum)
	assert.Equal(t, 2, cfg.ZfsOpts.Copies)
	assert.Equal(t, 1024, cfg.ZfsOpts.ArcMax)
}

func TestProjectZfsListOrder(t *testing.T) {
	// The first listed disk drives the hdsize default, even when it is
	// not the first disk in the system's order.
	ans := parseAnswer(t, globalSection+dhcpSection+`[disk-setup]
filesystem = "zfs"
disk_list = ["sdb", "sda"]
zfs.raid = "raid1"
`)

	cfg, err := Project(ans, testEnv())
	require.NoError(t, err)
	assert.InDelta(t, 128.0, cfg.Hdsize, 0.001)
}

func TestProjectBtrfs(t *testing.T) {
	doc := globalSection + dhcpSection + `[disk-setup]
filesystem = "btrfs"
disk_list = ["sda", "sdb"]
btrfs.raid = "raid10"
`
	ans := parseAnswer(t, doc)

	cfg, err := Project(ans, testEnv())
	require.NoError(t, err)
	assert.Equal(t, "btrfs (RAID10)", cfg.Filesys)
	require.NotNil(t, cfg.BtrfsOpts)
	assert.Equal(t, answer.BtrfsCompress("off"), cfg.BtrfsOpts.Compress)
	assert.Nil(t, cfg.ZfsOpts)

	env := testEnv()
	env.Setup.Config.EnableBtrfs = false
	_, err = Project(parseAnswer(t, doc), env)
	assert.EqualError(t, err, "btrfs support is not enabled in this product")
}

func TestProjectLvmSizing(t *testing.T) {
	ans := parseAnswer(t, globalSection+dhcpSection+`[disk-setup]
filesystem = "xfs"
disk_list = ["nvme0n1"]

[disk-setup.lvm]
hdsize = 200.0
swapsize = 8.0
maxroot = 50.0
`)

	cfg, err := Project(ans, testEnv())
	require.NoError(t, err)
	assert.Equal(t, "xfs", cfg.Filesys)
	assert.Equal(t, "/dev/nvme0n1", cfg.TargetHD)
	assert.InDelta(t, 200.0, cfg.Hdsize, 0.001)
	require.NotNil(t, cfg.Swapsize)
	assert.InDelta(t, 8.0, *cfg.Swapsize, 0.001)
	require.NotNil(t, cfg.Maxroot)
	assert.InDelta(t, 50.0, *cfg.Maxroot, 0.001)
	assert.Nil(t, cfg.Minfree)
	assert.Nil(t, cfg.Maxvz)
}

func TestProjectLocaleChecks(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		wantErr string
	}{
		{"unknown country", [2]string{`country = "at"`, `country = "xx"`}, "country 'xx' is not valid"},
		{"unknown timezone", [2]string{`timezone = "Europe/Vienna"`, `timezone = "Mars/Olympus"`}, "timezone 'Mars/Olympus' is not valid"},
		{"unknown keyboard", [2]string{`keyboard = "de"`, `keyboard = "en-us"`}, "keyboard layout 'en-us' is not valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testEnv()
			delete(env.Locale.Kmap, "en-us")
			doc := replaceLine(t, globalSection, tt.replace[0], tt.replace[1]) + dhcpSection + ext4Section
			_, err := Project(parseAnswer(t, doc), env)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestProjectTimezoneUTC(t *testing.T) {
	doc := replaceLine(t, globalSection, `timezone = "Europe/Vienna"`, `timezone = "UTC"`) + dhcpSection + ext4Section

	cfg, err := Project(parseAnswer(t, doc), testEnv())
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestProjectForeignTimezone(t *testing.T) {
	// Austrian machine with a German clock is fine.
	doc := replaceLine(t, globalSection, `timezone = "Europe/Vienna"`, `timezone = "Europe/Berlin"`) + dhcpSection + ext4Section

	_, err := Project(parseAnswer(t, doc), testEnv())
	assert.NoError(t, err)
}

func TestProjectPasswordRequired(t *testing.T) {
	doc := replaceLine(t, globalSection, `root_password = "secret"`, "") + dhcpSection + ext4Section

	_, err := Project(parseAnswer(t, doc), testEnv())
	assert.EqualError(t, err, "either 'root_password' or 'root_password_hashed' must be set")
}

func TestProjectHashedPassword(t *testing.T) {
	doc := replaceLine(t, globalSection, `root_password = "secret"`, `root_password_hashed = "$y$j9T$abc"`) + dhcpSection + ext4Section

	cfg, err := Project(parseAnswer(t, doc), testEnv())
	require.NoError(t, err)
	assert.Empty(t, cfg.RootPassword.Plain)
	assert.Equal(t, "$y$j9T$abc", cfg.RootPassword.Hashed)
}

func TestProjectDiskNotFound(t *testing.T) {
	doc := globalSection + dhcpSection + `[disk-setup]
filesystem = "ext4"
disk_list = ["nvme9n1"]
`
	_, err := Project(parseAnswer(t, doc), testEnv())
	assert.EqualError(t, err, "disk 'nvme9n1' not found in the system")
}

func TestProjectDiskFilterNoMatch(t *testing.T) {
	doc := globalSection + dhcpSection + `[disk-setup]
filesystem = "zfs"
zfs.raid = "raid0"

[disk-setup.filter]
ID_MODEL = "WDC*"
`
	_, err := Project(parseAnswer(t, doc), testEnv())
	assert.EqualError(t, err, "no disks found matching the disk filter")
}

func TestProjectDiskFilterMatchAll(t *testing.T) {
	doc := globalSection + dhcpSection + `[disk-setup]
filesystem = "zfs"
filter_match = "all"
zfs.raid = "raid0"

[disk-setup.filter]
ID_MODEL = "*"
ID_BUS = "nvme"
`
	cfg, err := Project(parseAnswer(t, doc), testEnv())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"2": "2"}, cfg.DiskSelection)
	assert.InDelta(t, 256.0, cfg.Hdsize, 0.001)
}

func TestProjectManualNetwork(t *testing.T) {
	doc := globalSection + `[network]
source = "from-answer"
cidr = "10.10.0.5/16"
dns = "10.10.0.1"
gateway = "10.10.0.254"

[network.filter]
ID_NET_DRIVER = "e1000e"
` + ext4Section

	cfg, err := Project(parseAnswer(t, doc), testEnv())
	require.NoError(t, err)
	assert.Equal(t, "eno2", cfg.MngmtNic)
	assert.Equal(t, "10.10.0.5/16", cfg.CIDR.String())
	assert.Equal(t, "10.10.0.254", cfg.Gateway.String())
	assert.Equal(t, "10.10.0.1", cfg.DNS.String())
}

func TestProjectManualNetworkNoMatch(t *testing.T) {
	doc := globalSection + `[network]
source = "from-answer"
cidr = "10.10.0.5/16"
dns = "10.10.0.1"
gateway = "10.10.0.254"

[network.filter]
ID_NET_DRIVER = "mlx5_core"
` + ext4Section

	_, err := Project(parseAnswer(t, doc), testEnv())
	assert.EqualError(t, err, "no network interface found matching the filter")
}

func TestProjectDHCPFailures(t *testing.T) {
	ans := parseAnswer(t, globalSection+dhcpSection+ext4Section)

	t.Run("no routes", func(t *testing.T) {
		env := testEnv()
		env.Runtime.Network.Routes = nil
		_, err := Project(ans, env)
		assert.EqualError(t, err, "no default gateway found via DHCP")
	})

	t.Run("no ipv4 gateway", func(t *testing.T) {
		env := testEnv()
		env.Runtime.Network.Routes.Gateway4 = nil
		_, err := Project(ans, env)
		assert.EqualError(t, err, "no default gateway found via DHCP")
	})

	t.Run("unknown route device", func(t *testing.T) {
		env := testEnv()
		env.Runtime.Network.Routes.Gateway4.Dev = "eno9"
		_, err := Project(ans, env)
		assert.EqualError(t, err, "default route interface 'eno9' not found")
	})

	t.Run("no usable address", func(t *testing.T) {
		env := testEnv()
		iface := env.Runtime.Network.Interfaces["eno1"]
		iface.Addresses = []Address{{netip.MustParsePrefix("fe80::1/64")}}
		env.Runtime.Network.Interfaces["eno1"] = iface
		_, err := Project(ans, env)
		assert.EqualError(t, err, "no usable address on interface 'eno1'")
	})

	t.Run("no dns server", func(t *testing.T) {
		env := testEnv()
		env.Runtime.Network.DNS.Servers = nil
		_, err := Project(ans, env)
		assert.EqualError(t, err, "no DNS server found via DHCP")
	})
}

func TestProjectFirstBoot(t *testing.T) {
	doc := globalSection + dhcpSection + ext4Section + `[first-boot]
source = "from-iso"
ordering = "before-network"
`
	cfg, err := Project(parseAnswer(t, doc), testEnv())
	require.NoError(t, err)
	assert.True(t, bool(cfg.FirstBoot.Enabled))
	assert.Equal(t, "network-pre", cfg.FirstBoot.OrderingTarget)

	out, err := json.Marshal(cfg.FirstBoot)
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled": 1, "ordering_target": "network-pre"}`, string(out))
}

func TestProjectSSHKeysCarriedOver(t *testing.T) {
	ans := parseAnswer(t, globalSection+dhcpSection+ext4Section)
	ans.Global.RootSSHKeys = []string{"ssh-ed25519 AAAATESTKEY root@ops"}

	cfg, err := Project(ans, testEnv())
	require.NoError(t, err)
	assert.Equal(t, []string{"ssh-ed25519 AAAATESTKEY root@ops"}, cfg.RootSSHKeys)
}

// replaceLine swaps one line of a fixture, failing the test if the line
// is not present.
func replaceLine(t *testing.T, doc, old, new string) string {
	t.Helper()
	require.Contains(t, doc, old)
	var out []string
	for _, line := range strings.Split(doc, "\n") {
		if line == old {
			if new == "" {
				continue
			}
			line = new
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
