package main

import "github.com/pointscan-io/pointscan/cmd"

var (
	Version    = "dev"
	CommitHash = "unknown"
)

func main() {
	cmd.SetVersion(Version, CommitHash)
	if err := cmd.NewRootCmd().Execute(); err != nil {
		panic(err)
	}
}
