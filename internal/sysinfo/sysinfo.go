// Package sysinfo describes the machine being installed, for the
// post-installation webhook and the assistant's system-info command.
package sysinfo

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"autoinst/internal/answer"
	"autoinst/internal/httpclient"
	"autoinst/internal/setup"
	"autoinst/internal/util"
)

var (
	dmiDir = "/sys/class/dmi/id"
	post   = httpclient.Post
)

// DMI is the SMBIOS identity of the machine, as far as the kernel
// exposes it. Attributes the firmware does not fill in stay empty.
type DMI struct {
	SysVendor     string `json:"sys_vendor,omitempty"`
	ProductName   string `json:"product_name,omitempty"`
	ProductSerial string `json:"product_serial,omitempty"`
	ProductUUID   string `json:"product_uuid,omitempty"`
	BoardVendor   string `json:"board_vendor,omitempty"`
	BoardName     string `json:"board_name,omitempty"`
	BoardSerial   string `json:"board_serial,omitempty"`
}

func readDMI() DMI {
	read := func(name string) string {
		return util.ReadTrimmed(filepath.Join(dmiDir, name))
	}
	return DMI{
		SysVendor:     read("sys_vendor"),
		ProductName:   read("product_name"),
		ProductSerial: read("product_serial"),
		ProductUUID:   read("product_uuid"),
		BoardVendor:   read("board_vendor"),
		BoardName:     read("board_name"),
		BoardSerial:   read("board_serial"),
	}
}

// DiskReport is one block device of the machine.
type DiskReport struct {
	Path    string  `json:"path"`
	Model   string  `json:"model,omitempty"`
	SizeGiB float64 `json:"size_gib"`
}

// NicReport is one network interface of the machine.
type NicReport struct {
	Name string `json:"name"`
	Mac  string `json:"mac"`
}

// InstallSummary is the outcome-relevant part of a finished install.
type InstallSummary struct {
	FQDN          string   `json:"fqdn"`
	Filesystem    string   `json:"filesystem"`
	TargetDisk    string   `json:"target_disk,omitempty"`
	SelectedDisks []string `json:"selected_disks,omitempty"`
	ManagementNic string   `json:"management_nic"`
	CIDR          string   `json:"cidr"`
}

// Report describes the machine. It carries hardware identity and, after
// an installation, a summary of what was installed where. Credentials
// are never part of it.
type Report struct {
	ID          string          `json:"id"`
	Product     string          `json:"product"`
	Release     string          `json:"release"`
	BootType    string          `json:"boot_type"`
	SecureBoot  bool            `json:"secure_boot"`
	TotalMemory int             `json:"total_memory"`
	DMI         DMI             `json:"dmi"`
	Disks       []DiskReport    `json:"disks"`
	Nics        []NicReport     `json:"nics"`
	Install     *InstallSummary `json:"install,omitempty"`
}

// Collect builds the machine report. The report id is the DMI product
// UUID when the firmware provides one, otherwise a random identifier, so
// receivers can correlate repeated installs of the same host.
func Collect(env *setup.Environment) *Report {
	report := &Report{
		Product:     env.Setup.Config.FullName,
		Release:     env.Setup.IsoInfo.Release,
		BootType:    env.Runtime.BootType,
		SecureBoot:  bool(env.Runtime.SecureBoot),
		TotalMemory: env.Runtime.TotalMemory,
		DMI:         readDMI(),
	}
	report.ID = report.DMI.ProductUUID
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	for _, disk := range env.Runtime.Disks {
		report.Disks = append(report.Disks, DiskReport{
			Path:    disk.Path,
			Model:   disk.Model,
			SizeGiB: disk.Size,
		})
	}
	for _, name := range sortedKeys(env.Runtime.Network.Interfaces) {
		iface := env.Runtime.Network.Interfaces[name]
		report.Nics = append(report.Nics, NicReport{Name: iface.Name, Mac: iface.Mac})
	}
	return report
}

// InstallReport extends the machine report with the install summary.
func InstallReport(env *setup.Environment, install *setup.InstallConfig) *Report {
	report := Collect(env)
	summary := &InstallSummary{
		FQDN:          install.Hostname + "." + install.Domain,
		Filesystem:    install.Filesys,
		TargetDisk:    install.TargetHD,
		ManagementNic: install.MngmtNic,
		CIDR:          install.CIDR.String(),
	}
	summary.SelectedDisks = sortedKeys(install.DiskSelection)
	report.Install = summary
	return report
}

// JSON renders the report for human eyes and the webhook alike.
func (r *Report) JSON() (string, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding system report: %w", err)
	}
	return string(out), nil
}

// Notify posts the report to the post-installation webhook. A webhook
// failure must not fail an otherwise successful installation, so it is
// only logged.
func Notify(hook *answer.PostHookInfo, report *Report) {
	if hook == nil {
		return
	}
	body, err := json.Marshal(report)
	if err != nil {
		logrus.Errorf("encoding installation report failed: %v", err)
		return
	}
	if _, err := post(hook.URL, hook.CertFingerprint, string(body)); err != nil {
		logrus.Errorf("posting installation report to %s failed: %v", hook.URL, err)
		return
	}
	logrus.Infof("posted installation report to %s", hook.URL)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
