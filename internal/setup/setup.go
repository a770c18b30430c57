// Package setup reads the description of the live install environment
// that the boot scripts deposit as JSON and projects a validated answer
// onto the flat configuration record the low-level installer consumes.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"autoinst/internal/config"
)

// Boot modes reported in run-env-info.json.
const (
	BootBIOS = "bios"
	BootEFI  = "efi"
)

// IntBool is a boolean the environment files write as 0 or 1.
type IntBool bool

func (b *IntBool) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = v != 0
	return nil
}

func (b IntBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// ProductConfig identifies the product an install medium carries.
type ProductConfig struct {
	FullName    string  `json:"fullname"`
	Product     string  `json:"product"`
	EnableBtrfs IntBool `json:"enable_btrfs"`
}

// IsoInfo carries the release identifiers baked into the medium.
type IsoInfo struct {
	Release    string `json:"release"`
	IsoRelease string `json:"isorelease"`
}

// IsoLocations names directories of the medium holding installer data.
type IsoLocations struct {
	Iso string `json:"iso"`
	Lib string `json:"lib"`
}

// SetupInfo is the content of iso-info.json.
type SetupInfo struct {
	Config    ProductConfig `json:"product-cfg"`
	IsoInfo   IsoInfo       `json:"iso-info"`
	Locations IsoLocations  `json:"locations"`
}

// CountryInfo describes one selectable country.
type CountryInfo struct {
	Name string `json:"name"`
	Zone string `json:"zone"`
	Kmap string `json:"kmap"`
}

// KeyboardMapping describes one selectable keyboard layout.
type KeyboardMapping struct {
	Name       string `json:"name"`
	ID         string `json:"kvm"`
	XkbLayout  string `json:"x11"`
	XkbVariant string `json:"x11var"`
}

// LocaleInfo is the content of locale-info.json. CCZones maps a country
// code to the timezones spoken for it; the inner value is meaningless.
type LocaleInfo struct {
	CCZones   map[string]map[string]int  `json:"cczones"`
	Countries map[string]CountryInfo     `json:"country"`
	Kmap      map[string]KeyboardMapping `json:"kmap"`
}

// Disk is one block device usable as an install target.
type Disk struct {
	Index string
	Path  string
	Model string
	// Size in GiB.
	Size float64
	// BlockSize is the logical block size, 0 when unknown.
	BlockSize int
}

// Disks arrive as positional arrays, one per device:
// [index, path, size in sectors, model, logical block size, syspath].
func (d *Disk) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 6 {
		return fmt.Errorf("disk entry has %d fields, expected 6", len(raw))
	}
	var index int
	if err := json.Unmarshal(raw[0], &index); err != nil {
		return fmt.Errorf("disk index: %w", err)
	}
	if err := json.Unmarshal(raw[1], &d.Path); err != nil {
		return fmt.Errorf("disk path: %w", err)
	}
	var sectors float64
	if err := json.Unmarshal(raw[2], &sectors); err != nil {
		return fmt.Errorf("disk size: %w", err)
	}
	if err := json.Unmarshal(raw[3], &d.Model); err != nil {
		return fmt.Errorf("disk model: %w", err)
	}
	var blockSize *int
	if err := json.Unmarshal(raw[4], &blockSize); err != nil {
		return fmt.Errorf("disk block size: %w", err)
	}
	d.Index = strconv.Itoa(index)
	// The kernel reports block device sizes in 512 byte sectors.
	d.Size = sectors * 512 / 1024 / 1024 / 1024
	if blockSize != nil {
		d.BlockSize = *blockSize
	}
	return nil
}

// Address is one configured address of a network interface, written by
// the boot scripts as an {address, prefix} object.
type Address struct {
	netip.Prefix
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var raw struct {
		Address string `json:"address"`
		Prefix  int    `json:"prefix"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ip, err := netip.ParseAddr(raw.Address)
	if err != nil {
		return fmt.Errorf("interface address: %w", err)
	}
	a.Prefix = netip.PrefixFrom(ip, raw.Prefix)
	return nil
}

// Interface is one network interface with a usable configuration.
type Interface struct {
	Name      string    `json:"name"`
	Index     int       `json:"index"`
	Mac       string    `json:"mac"`
	State     string    `json:"state"`
	Addresses []Address `json:"addresses"`
}

// Gateway is a default route.
type Gateway struct {
	Dev     string     `json:"dev"`
	Gateway netip.Addr `json:"gateway"`
}

// Routes are the default routes found at boot.
type Routes struct {
	Gateway4 *Gateway `json:"gateway4"`
	Gateway6 *Gateway `json:"gateway6"`
}

// DNSInfo is the resolver configuration obtained via DHCP.
type DNSInfo struct {
	Domain  string       `json:"domain"`
	Servers []netip.Addr `json:"dns"`
}

// NetworkInfo describes the network state of the live system.
type NetworkInfo struct {
	DNS        DNSInfo              `json:"dns"`
	Routes     *Routes              `json:"routes"`
	Interfaces map[string]Interface `json:"interfaces"`
	Hostname   string               `json:"hostname"`
}

// RuntimeInfo is the content of run-env-info.json.
type RuntimeInfo struct {
	BootType     string      `json:"boot_type"`
	Country      string      `json:"country"`
	Disks        []Disk      `json:"disks"`
	Network      NetworkInfo `json:"network"`
	TotalMemory  int         `json:"total_memory"`
	HvmSupported IntBool     `json:"hvm_supported"`
	SecureBoot   IntBool     `json:"secure_boot"`
}

// UdevInfo is the content of run-env-udev.json: udev property dumps for
// the filterable devices, disks keyed by index and NICs by name.
type UdevInfo struct {
	Disks map[string]map[string]string `json:"disks"`
	Nics  map[string]map[string]string `json:"nics"`
}

// Environment is everything the live system tells us about itself.
type Environment struct {
	Setup   SetupInfo
	Locale  LocaleInfo
	Runtime RuntimeInfo
	Udev    UdevInfo
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// LoadAll reads the environment description files. Unknown JSON keys pass
// silently; the probe scripts grow keys over time and older installers
// must keep reading newer dumps. It is a variable so tests can supply a
// canned environment.
var LoadAll = func(cfg *config.Config) (*Environment, error) {
	var env Environment
	if err := readJSON(cfg.SetupInfoPath(), &env.Setup); err != nil {
		return nil, fmt.Errorf("failed to read setup info: %s: %w", cfg.SetupInfoPath(), err)
	}
	localePath := filepath.Join(env.Setup.Locations.Lib, "locale-info.json")
	if err := readJSON(localePath, &env.Locale); err != nil {
		return nil, fmt.Errorf("failed to read locale info: %s: %w", localePath, err)
	}
	if err := readJSON(cfg.RuntimeInfoPath(), &env.Runtime); err != nil {
		return nil, fmt.Errorf("failed to read runtime environment info: %s: %w", cfg.RuntimeInfoPath(), err)
	}
	if err := readJSON(cfg.UdevInfoPath(), &env.Udev); err != nil {
		return nil, fmt.Errorf("failed to read udev info: %s: %w", cfg.UdevInfoPath(), err)
	}

	sort.Slice(env.Runtime.Disks, func(i, j int) bool {
		return env.Runtime.Disks[i].Path < env.Runtime.Disks[j].Path
	})
	if len(env.Runtime.Disks) == 0 {
		return nil, errors.New("no supported hard disks found")
	}
	if len(env.Runtime.Network.Interfaces) == 0 {
		return nil, errors.New("no supported network interface cards found")
	}
	return &env, nil
}
