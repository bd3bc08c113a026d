package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/trezcool/masomo-portal/apps/shared"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/portal"
	"github.com/trezcool/masomo-portal/services/logger"
)

func main() {
	conf := core.NewConfig()
	conf.Server.Host = "cli"
	if conf.Session.EphemeralPath == "" {
		conf.Session.EphemeralPath = terminalSessionPath()
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "MASOMO : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	if !conf.Debug {
		logger.SetLevel(logsvc.LevelWarn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stack, err := shared.NewAuthStack(ctx, conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up auth: %v", err), err)
	}

	p := portal.New(stack.Client, logger)
	p.Init(ctx)

	cli := commandLine{
		client: stack.Client,
		portal: p,
		out:    os.Stdout,
	}
	err = cli.run(ctx, os.Args)

	cancel()
	_ = stack.Close()
	logger.Close()

	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

// terminalSessionPath is where sessions without -remember are kept: one file
// per parent shell, in the per-login runtime directory when there is one.
func terminalSessionPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("masomo-session-%d.db", os.Getppid()))
}
