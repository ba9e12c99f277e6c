package arranger

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxNameBytes is the NAME_MAX of common Linux filesystems.
const maxNameBytes = 255

// SanitizeFolderName turns a drive name into a single safe path element. It
// returns "" when nothing usable remains.
func SanitizeFolderName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r == utf8.RuneError, unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ".")
	if name == "" || name == "." || name == ".." {
		return ""
	}
	if len(name) > maxNameBytes {
		cut := maxNameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimSpace(name[:cut])
	}
	return name
}

// Destination is where an entry is filed.
type Destination struct {
	Dir    string `json:"dir"`
	Folder string `json:"folder"`
	Device string `json:"device,omitempty"`
}

// Destination resolves the folder for the next entry: a folder named after
// the most recently connected drive while any drive is connected, otherwise
// the fallback folder. The chosen folder is registered as managed so its own
// creation is not arranged.
func (a *Arranger) Destination() Destination {
	folder := a.fallback
	device := ""
	if a.tracker != nil && a.tracker.Count() > 0 {
		if dev, ok := a.tracker.Current(); ok {
			if name := SanitizeFolderName(dev.DisplayName()); name != "" {
				folder = name
				device = dev.DisplayName()
			}
		}
	}
	if a.managed != nil {
		a.managed.Add(folder)
	}
	return Destination{Dir: filepath.Join(a.watchDir, folder), Folder: folder, Device: device}
}
