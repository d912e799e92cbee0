package version

const AppName = "lavaplay"

// Version is set at build time with -ldflags "-X .../internal/version.Version=...".
var Version = "dev"
