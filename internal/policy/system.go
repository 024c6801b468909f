package policy

import (
	"runtime"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// System and launcher packages per platform. These are never enforced against,
// even if a user adds them to the blocked list.
var systemPackages = map[string][]string{
	"linux": {
		"systemd",
		"gnome-shell",
		"plasmashell",
		"kwin_x11",
		"kwin_wayland",
		"Xorg",
		"Xwayland",
		"gdm",
		"sddm",
		"lightdm",
		"xfce4-panel",
		"dbus-daemon",
	},
	"darwin": {
		"launchd",
		"loginwindow",
		"Finder",
		"Dock",
		"SystemUIServer",
		"WindowServer",
		"ControlCenter",
		"Spotlight",
	},
	"windows": {
		"explorer.exe",
		"dwm.exe",
		"winlogon.exe",
		"ShellExperienceHost.exe",
		"StartMenuExperienceHost.exe",
	},
}

// SystemPackages returns the exemption set for the running platform.
func SystemPackages() domain.PackageSet {
	return SystemPackagesFor(runtime.GOOS)
}

// SystemPackagesFor returns the exemption set for goos.
func SystemPackagesFor(goos string) domain.PackageSet {
	return domain.NewPackageSet(systemPackages[goos]...)
}
