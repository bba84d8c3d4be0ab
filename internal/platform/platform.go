// Package platform identifies the host OS flavour for the places that shell
// out: opening images, clipboard tools and file watching.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Platform is a detected host OS flavour.
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

var displayNames = map[Platform]string{
	PlatformMacOS:   "macOS",
	PlatformLinux:   "Linux",
	PlatformWSL1:    "WSL1",
	PlatformWSL2:    "WSL2",
	PlatformWindows: "Windows",
}

func (p Platform) String() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return "Unknown"
}

// Host probes, swapped in tests.
var (
	readFile = os.ReadFile
	getenv   = os.Getenv
	exists   = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}
)

var (
	detectOnce sync.Once
	detected   Platform
)

// Detect returns the host platform. The probe runs once per process.
func Detect() Platform {
	detectOnce.Do(func() { detected = detect(runtime.GOOS) })
	return detected
}

// IsWSL reports whether the process runs under either WSL generation.
func IsWSL() bool {
	p := Detect()
	return p == PlatformWSL1 || p == PlatformWSL2
}

func detect(goos string) Platform {
	switch goos {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		return linuxFlavour()
	}
	return PlatformUnknown
}

// linuxFlavour tells native Linux from WSL. WSL2 kernels report
// "microsoft-standard" in /proc/version, WSL1 a capitalised "Microsoft".
func linuxFlavour() Platform {
	raw, _ := readFile("/proc/version")
	version := string(raw)
	if getenv("WSL_DISTRO_NAME") == "" && !strings.Contains(strings.ToLower(version), "microsoft") {
		return PlatformLinux
	}
	switch {
	case strings.Contains(version, "microsoft-standard"):
		return PlatformWSL2
	case strings.Contains(version, "Microsoft"):
		return PlatformWSL1
	case exists("/run/WSL"), exists("/dev/vsock"):
		return PlatformWSL2
	}
	return PlatformWSL1
}

var watchCaveats = map[string]string{
	"9p":    "archive is on a 9p mount (WSL2 Windows drive); change events are unreliable, reload manually",
	"nfs":   "archive is on an NFS mount; change events may be missed",
	"nfs4":  "archive is on an NFS mount; change events may be missed",
	"cifs":  "archive is on a CIFS/SMB mount; change events may be missed",
	"smbfs": "archive is on a CIFS/SMB mount; change events may be missed",
}

// WatchCaveat returns a warning when path lives on a filesystem whose change
// notifications fsnotify cannot rely on, or "" when watching should work.
func WatchCaveat(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := readFile("/proc/mounts")
	if err != nil {
		return ""
	}
	fs := mountFSType(abs, string(mounts))
	if strings.HasPrefix(fs, "fuse.sshfs") {
		return "archive is on an SSHFS mount; change events are unreliable, reload manually"
	}
	return watchCaveats[fs]
}

// mountFSType returns the filesystem type of the longest mount point in a
// /proc/mounts table that contains path.
func mountFSType(path, mounts string) string {
	best, fsType := "", ""
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mp := fields[1]
		within := mp == "/" || path == mp || strings.HasPrefix(path, mp+"/")
		if within && len(mp) > len(best) {
			best, fsType = mp, fields[2]
		}
	}
	return fsType
}
