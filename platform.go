package verible

import "github.com/rtl-tools/verible-format/cache"

// Platform selects the release asset and the executable layout inside it.
type Platform struct {
	// Suffix is appended to the asset name, e.g. "win64.zip".
	Suffix string
	Format cache.ArchiveFormat
	// Executable is the slash-separated path inside the installation directory.
	Executable string
}

var (
	// PlatformLinux is the statically linked build used on every non-Windows host.
	PlatformLinux = Platform{
		Suffix:     "linux-static-x86_64.tar.gz",
		Format:     cache.FormatTarGz,
		Executable: "bin/verible-verilog-format",
	}

	PlatformWindows = Platform{
		Suffix:     "win64.zip",
		Format:     cache.FormatZip,
		Executable: "verible-verilog-format.exe",
	}
)

// PlatformFor returns the platform for a GOOS value.
func PlatformFor(goos string) Platform {
	if goos == "windows" {
		return PlatformWindows
	}
	return PlatformLinux
}
