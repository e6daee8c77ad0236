package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/anoncommunity/internal/hashpw"
	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/dmitrijs2005/anoncommunity/internal/server/auth"
	"github.com/dmitrijs2005/anoncommunity/internal/server/config"
)

func main() {
	cfg, err := config.LoadHashingConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.NewJSON(os.Stderr, cfg.LogLevel, "hashpw")
	hasher, err := auth.NewArgon2Hasher(cfg.Argon2Params(), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := hashpw.Run(os.Stdout, os.Stderr, hasher); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
