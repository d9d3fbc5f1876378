package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/buffalonetwork/custodyd/internal/config"
	"github.com/buffalonetwork/custodyd/internal/core/domain"
	"github.com/buffalonetwork/custodyd/internal/interface/web"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "custodyd",
		Usage: "asset custody tracking on an append-only ledger",
		Commands: []*cli.Command{
			serveCmd,
			keypairCmd,
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var serveCmd = &cli.Command{
	Name:   "serve",
	Usage:  "start the custody daemon (configured via CUSTODYD_* env vars)",
	Action: serve,
}

func serve(_ *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))
	log.Infof("custodyd config: %s", cfg)

	svc, err := web.NewService(web.Config{
		Port:      cfg.Port,
		AssetType: cfg.AssetType,
	}, cfg.CustodyService(), cfg.QueryService())
	if err != nil {
		return fmt.Errorf("failed to create service: %s", err)
	}

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %s", err)
	}
	log.Infof("custodyd listens on: %d", cfg.Port)

	log.RegisterExitHandler(svc.Stop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}

var keypairCmd = &cli.Command{
	Name:  "keypair",
	Usage: "derive the signing keypair for a seed and print it as JSON",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "seed",
			Usage: "seed string; omit for a fresh random keypair",
		},
	},
	Action: keypair,
}

func keypair(ctx *cli.Context) error {
	kp, err := domain.NewKeypair(ctx.String("seed"))
	if err != nil {
		return err
	}

	buf, err := json.MarshalIndent(kp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(buf))
	return nil
}
