// Command specloomd is the thin daemon entrypoint for the spec runtime: it
// loads configuration, recovers every spec under SPECLOOM_HOME, starts each
// spec's persister and (when an LLM provider is configured) its agent
// swarm, and waits for a termination signal. It intentionally carries no
// HTTP server, CLI flag surface, or web UI -- those are out of scope for
// the core runtime this binary wires together.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/2389-research/specloom/runtime"
)

func main() {
	runtime.LoadDotEnv()

	cfg, err := runtime.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "specloomd: %v\n", err)
		os.Exit(1)
	}

	sup, err := runtime.NewSupervisor(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "specloomd: %v\n", err)
		os.Exit(1)
	}

	status := sup.ProviderStatus()
	if status.AnyAvailable {
		log.Printf("component=specloomd action=providers_detected default=%s model=%s", status.DefaultProvider, status.DefaultModel)
	} else {
		log.Printf("component=specloomd action=no_providers_detected msg=\"agent swarms will not start until an API key is configured\"")
	}

	if err := sup.RecoverAll(); err != nil {
		fmt.Fprintf(os.Stderr, "specloomd: recovering specs under %s: %v\n", cfg.Home, err)
		os.Exit(1)
	}

	for _, specID := range sup.ListSpecIDs() {
		if sup.TryStartSwarm(specID) {
			log.Printf("component=specloomd action=swarm_autostarted spec_id=%s", specID)
		}
	}

	log.Printf("component=specloomd action=started home=%s bind=%s allow_remote=%t specs=%d",
		cfg.Home, cfg.Bind, cfg.AllowRemote, len(sup.ListSpecIDs()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("component=specloomd action=shutting_down")
	sup.Shutdown()
}
