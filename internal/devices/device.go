package devices

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Device describes one removable drive partition.
type Device struct {
	Node       string `json:"node"`
	Disk       string `json:"disk"`
	Label      string `json:"label,omitempty"`
	Vendor     string `json:"vendor,omitempty"`
	Model      string `json:"model,omitempty"`
	UUID       string `json:"uuid,omitempty"`
	Bus        string `json:"bus,omitempty"`
	MountPoint string `json:"mount_point,omitempty"`
	Alias      string `json:"alias,omitempty"`
}

// DisplayName returns the name used for the destination folder: alias, then
// filesystem label, then model (prefixed by vendor when known), then the
// device node name.
func (d Device) DisplayName() string {
	if name := strings.TrimSpace(d.Alias); name != "" {
		return name
	}
	if name := strings.TrimSpace(d.Label); name != "" {
		return name
	}
	model := strings.TrimSpace(d.Model)
	vendor := strings.TrimSpace(d.Vendor)
	switch {
	case model != "" && vendor != "" && !strings.HasPrefix(strings.ToLower(model), strings.ToLower(vendor)):
		return vendor + " " + model
	case model != "":
		return model
	case vendor != "":
		return vendor
	}
	if d.Node != "" {
		return filepath.Base(d.Node)
	}
	return d.Disk
}

// WithAliases fills Alias from aliases keyed by UUID, label, or model.
func (d Device) WithAliases(aliases map[string]string) Device {
	for _, key := range []string{d.UUID, d.Label, d.Model} {
		if key == "" {
			continue
		}
		if alias, ok := aliases[key]; ok {
			d.Alias = alias
			return d
		}
	}
	return d
}

// fromUdevEnv builds a Device from udev properties.
func fromUdevEnv(env map[string]string) Device {
	node := env["DEVNAME"]
	if node == "" {
		if devpath := env["DEVPATH"]; devpath != "" {
			node = "/dev/" + filepath.Base(devpath)
		}
	}
	label := decodeUdevString(env["ID_FS_LABEL_ENC"])
	if label == "" {
		label = env["ID_FS_LABEL"]
	}
	vendor := decodeUdevString(env["ID_VENDOR_ENC"])
	if vendor == "" {
		vendor = env["ID_VENDOR"]
	}
	model := decodeUdevString(env["ID_MODEL_ENC"])
	if model == "" {
		model = strings.ReplaceAll(env["ID_MODEL"], "_", " ")
	}
	return Device{
		Node:   node,
		Disk:   diskFromDevpath(env["DEVPATH"], env["DEVTYPE"]),
		Label:  strings.TrimSpace(label),
		Vendor: strings.TrimSpace(vendor),
		Model:  strings.TrimSpace(model),
		UUID:   env["ID_FS_UUID"],
		Bus:    env["ID_BUS"],
	}
}

// diskFromDevpath returns the kernel name of the whole disk a block device
// belongs to, e.g. /devices/.../block/sdb/sdb1 -> sdb.
func diskFromDevpath(devpath, devtype string) string {
	devpath = strings.TrimRight(devpath, "/")
	if devpath == "" {
		return ""
	}
	if devtype == "partition" {
		return filepath.Base(filepath.Dir(devpath))
	}
	return filepath.Base(devpath)
}

// decodeUdevString expands the \xNN escapes udev uses in *_ENC properties.
func decodeUdevString(value string) string {
	if !strings.Contains(value, `\x`) {
		return value
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' && i+3 < len(value) && value[i+1] == 'x' {
			if n, err := strconv.ParseUint(value[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(value[i])
	}
	return b.String()
}
