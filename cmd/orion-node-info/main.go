// Command orion-node-info is the Ansible binary module for node-centric
// queries: friendly filters over Orion.Nodes with optional agent and custom
// property enrichment.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"solarium/internal/ansible"
	"solarium/internal/config"
	"solarium/internal/query"
	"solarium/internal/repository"
	"solarium/internal/repository/sqlite"
	"solarium/internal/swis"
)

func main() {
	os.Exit(run(os.Args, os.Stdout))
}

type moduleParams struct {
	query.NodeInfoSpec

	CacheMaxAgeSeconds int `json:"cache_max_age"`
}

func run(args []string, stdout io.Writer) int {
	if len(args) < 2 {
		return ansible.FailJSON(stdout, "missing module args file path", nil)
	}

	moduleArgs, err := ansible.ReadArgs(args[1])
	if err != nil {
		return ansible.FailJSON(stdout, err.Error(), nil)
	}

	log := ansible.NewLogger("orion_node_info")

	var params moduleParams
	if err := moduleArgs.Decode(&params); err != nil {
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
	maxAge := time.Duration(params.CacheMaxAgeSeconds) * time.Second

	specJSON, _ := json.Marshal(params.NodeInfoSpec)
	fingerprint := repository.Fingerprint(conn.BaseURL(), "orion_node_info", string(specJSON))

	var cache repository.QueryCache
	if maxAge > 0 {
		if cache, err = sqlite.Open(cfg.CachePath()); err != nil {
			log.Warn().Err(err).Msg("query cache unavailable")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	if cache != nil {
		if payload, hit, err := cache.Get(ctx, fingerprint, maxAge); err == nil && hit {
			var info query.Info
			if json.Unmarshal(payload, &info) == nil {
				return exitInfo(stdout, &info, true)
			}
		}
	}

	client := swis.NewClient(conn, log)
	if err := client.Connect(ctx); err != nil {
		return ansible.FailJSON(stdout, err.Error(), nil)
	}

	info, err := query.NewRunner(client, log).NodeInfo(ctx, params.NodeInfoSpec)
	if err != nil {
		return ansible.FailJSON(stdout, err.Error(), map[string]any{
			"invocation": map[string]any{"module_args": ansible.Redact(moduleArgs.Raw)},
		})
	}

	if cache != nil {
		if payload, err := json.Marshal(info); err == nil {
			if err := cache.Put(ctx, fingerprint, payload); err != nil {
				log.Warn().Err(err).Msg("query cache write failed")
			}
		}
	}
	return exitInfo(stdout, info, false)
}

func exitInfo(stdout io.Writer, info *query.Info, cached bool) int {
	return ansible.ExitJSON(stdout, ansible.Response{
		Changed: false,
		Extra: map[string]any{
			"nodes":   info.Data,
			"count":   info.Count,
			"queries": info.Queries,
			"cached":  cached,
		},
	})
}
