package version

var (
	// PackageName is the name of this daemon.
	PackageName = "luna-vmm"
	// Version is the release version, injected at build time.
	Version = "undefined"
	// CommitHash is the git hash the binary was built from.
	CommitHash = "undefined"
	// BuildDate is when the binary was built.
	BuildDate = "undefined"
)
