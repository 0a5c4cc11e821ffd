// Package version reports the build identity of the agentflow binary.
//
// The release version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/agentflow/version.Version=1.4.0"
//
// Unset values fall back to the VCS stamps Go embeds in the binary.
package version
