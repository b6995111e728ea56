package main

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anfrih/mechsync/config"
	"github.com/anfrih/mechsync/console"
	"github.com/anfrih/mechsync/mlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	var withConsole bool

	cmd := &cobra.Command{
		Use:   "mechsync",
		Short: "Route live MIDI through a configured graph of instrument nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile, withConsole)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config-file", "c", "", "path to the graph configuration YAML (required)")
	cmd.Flags().BoolVar(&withConsole, "console", false, "run the read-only live-graph introspection console")
	cmd.MarkFlagRequired("config-file")

	return cmd
}

func run(configFile string, withConsole bool) error {
	log := mlog.New()

	raw, err := os.ReadFile(configFile)
	if err != nil {
		log.Error("could not read config file", "error", err)
		return err
	}

	doc, err := config.ParseDocument(raw)
	if err != nil {
		log.Error("could not parse config file", "error", err)
		return err
	}

	graph, closers, err := config.Build(doc, log)
	if err != nil {
		log.Error("could not build graph", "error", err)
		return err
	}
	defer func() {
		for _, c := range closers {
			if cerr := c.Close(); cerr != nil {
				log.Warn("error closing node", "error", cerr)
			}
		}
	}()

	log.Info("graph built", "nodes", len(graph))

	if withConsole && console.IsTerminal() {
		go func() {
			h := console.New(graph)
			if err := h.ReadLoop(os.Stdin, os.Stdout); err != nil {
				log.Warn("console exited", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	// Edges are weak, so the graph map must stay reachable until shutdown.
	runtime.KeepAlive(graph)
	log.Info("shutting down")
	return nil
}
