// Command orion-node is the Ansible binary module for declarative management
// of monitored nodes in SolarWinds Orion.
package main

import (
	"context"
	"io"
	"os"

	"solarium/internal/ansible"
	"solarium/internal/config"
	"solarium/internal/domain"
	"solarium/internal/orion"
	"solarium/internal/swis"
)

func main() {
	os.Exit(run(os.Args, os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	if len(args) < 2 {
		return ansible.FailJSON(stdout, "missing module args file path", nil)
	}

	moduleArgs, err := ansible.ReadArgs(args[1])
	if err != nil {
		return ansible.FailJSON(stdout, err.Error(), nil)
	}

	log := ansible.NewLogger("orion_node")
	runtime := ansible.StartRuntime()

	var spec domain.NodeSpec
	if err := moduleArgs.Decode(&spec); err != nil {
		return ansible.FailJSON(stdout, err.Error(), nil)
	}
	var connArgs struct {
		Connection swis.Connection `json:"solarwinds_connection"`
	}
	if err := moduleArgs.Decode(&connArgs); err != nil {
		return ansible.FailJSON(stdout, err.Error(), nil)
	}

	cfg, err := config.Load()
	if err != nil {
		return ansible.FailJSON(stdout, err.Error(), nil)
	}
	conn, err := cfg.ResolveConnection(connArgs.Connection)
	if err != nil {
		return ansible.FailJSON(stdout, err.Error(), nil)
	}

	ctx := context.Background()
	client := swis.NewClient(conn, log)
	if err := client.Connect(ctx); err != nil {
		return ansible.FailJSON(stdout, err.Error(), nil)
	}

	opts := []orion.Option{orion.WithCheckMode(moduleArgs.CheckMode)}
	if cfg.DiscoveryRetries > 0 && cfg.DiscoveryInterval() > 0 {
		opts = append(opts, orion.WithDiscoveryPoll(cfg.DiscoveryRetries, cfg.DiscoveryInterval()))
	}

	res, err := orion.NewReconciler(client, log, opts...).Reconcile(ctx, spec)
	if err != nil {
		log.Error().Err(err).Msg("reconcile failed")
		return ansible.FailJSON(stdout, err.Error(), map[string]any{
			"invocation": map[string]any{"module_args": ansible.Redact(moduleArgs.Raw)},
		})
	}

	extra := map[string]any{"elapsed": runtime.Elapsed()}
	if res.NodeID != 0 {
		extra["node_id"] = res.NodeID
		extra["caption"] = res.Caption
		extra["uri"] = res.URI
	}
	return ansible.ExitJSON(stdout, ansible.Response{
		Changed: res.Changed,
		Msg:     res.Msg,
		Extra:   extra,
	})
}
