package cache

// ArchiveFormat identifies how a downloaded release archive is packed.
type ArchiveFormat string

const (
	FormatTarGz ArchiveFormat = "tar.gz"
	FormatZip   ArchiveFormat = "zip"
)

// ArtifactIdentifier uniquely identifies an installed artifact.
type ArtifactIdentifier struct {
	// Name is the installation directory name, relative to the cache root.
	Name string
	// Version is the release tag the installation came from.
	Version string
	// Format of the release archive.
	Format ArchiveFormat
	// Executable is the slash-separated path of the executable inside the
	// installation directory, e.g. "bin/verible-verilog-format".
	Executable string
	// MD5 is the expected hex digest of the executable. Empty means the
	// digest is unknown and an existing executable is trusted as is.
	MD5 string
}
