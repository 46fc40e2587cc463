package main

import (
	"log/slog"
	"os"

	_ "time/tzdata" // CALSYNC_TIMEZONE must resolve without a system zoneinfo

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(version).Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}
