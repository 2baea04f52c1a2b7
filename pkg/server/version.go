package server

// Version is the server version string.
// Override at build time with: go build -ldflags "-X github.com/crystal-mush/swordsanddeath/pkg/server.Version=0.2.0"
var Version = "0.1.0"

// AcceptedClientVersion is the client version this build speaks to.
const AcceptedClientVersion = "0.1.0"

// VersionString returns the full version display string.
func VersionString() string {
	return "Swords and Death server " + Version
}
