package orion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"solarium/internal/domain"
)

// Discovery job tuning, passed through to the Orion discovery profile.
const (
	discoveryJobTimeoutSecs   = 300
	discoverySearchTimeoutMS  = 20000
	discoverySNMPTimeoutMS    = 30000
	discoverySNMPRetries      = 2
	discoveryRepeatIntervalMS = 3000
	discoveryWMIRetries       = 2
	discoveryWMIRetryDelayMS  = 2000
)

// Discovery job statuses: 0 Unknown, 1 InProgress, 2 Finished, 3 Error,
// 4 NotScheduled, 5 Scheduled, 6 NotCompleted, 7 Canceling, 8 ReadyForImport.
const discoveryStatusFinished = 2

// discoveryFailureResults are the DiscoveryLogs Result values that indicate
// the job did not complete successfully.
var discoveryFailureResults = map[int]bool{0: true, 3: true, 6: true, 7: true}

// baselineInterfaceExpressions excludes interfaces without a description from
// auto-import. Operator-supplied discovery filters are appended to these.
var baselineInterfaceExpressions = []map[string]string{
	{"Prop": "Descr", "Op": "!Any", "Val": "null"},
	{"Prop": "Descr", "Op": "!Regex", "Val": "^$"},
}

// discoveryExpression normalizes a filter into the {Prop, Op, Val} shape the
// discovery job evaluates. The name and type shorthands become unanchored
// regex expressions over the corresponding properties.
func discoveryExpression(f domain.Filter) map[string]string {
	switch {
	case f.Prop != "":
		op := string(f.Op)
		if op == "" {
			op = string(domain.FilterOpEquals)
		}
		return map[string]string{"Prop": f.Prop, "Op": op, "Val": f.Val}
	case f.Name != "":
		return map[string]string{"Prop": "Name", "Op": string(domain.FilterOpRegex), "Val": f.Name}
	default:
		return map[string]string{"Prop": "Type", "Op": string(domain.FilterOpRegex), "Val": f.Type}
	}
}

// createViaDiscovery creates an SNMP or WMI node by running an Orion
// discovery job against the node's address and waiting for it to finish.
// When the discovery engine differs from the final polling engine, the node
// is moved after discovery completes.
func (r *Reconciler) createViaDiscovery(ctx context.Context, resolved *ResolvedNode) (*domain.Node, error) {
	spec := resolved.Spec

	credentials := make([]map[string]any, 0, len(resolved.CredentialIDs))
	for i, id := range resolved.CredentialIDs {
		credentials = append(credentials, map[string]any{
			"CredentialID": id,
			"Order":        i + 1,
		})
	}
	coreConfig, err := r.svc.Invoke(ctx, "Orion.Discovery", "CreateCorePluginConfiguration",
		map[string]any{
			"BulkList":                    []map[string]any{{"Address": spec.IPAddress}},
			"Credentials":                 credentials,
			"WmiRetriesCount":             discoveryWMIRetries,
			"WmiRetryIntervalMiliseconds": discoveryWMIRetryDelayMS,
		})
	if err != nil {
		return nil, fmt.Errorf("create core plugin configuration: %w", err)
	}

	expressions := make([]map[string]string, 0, len(baselineInterfaceExpressions)+len(spec.DiscoveryInterfaceFilters))
	expressions = append(expressions, baselineInterfaceExpressions...)
	for _, f := range spec.DiscoveryInterfaceFilters {
		expressions = append(expressions, discoveryExpression(f))
	}
	interfacesConfig, err := r.svc.Invoke(ctx, "Orion.NPM.Interfaces", "CreateInterfacesPluginConfiguration",
		map[string]any{
			"AutoImportStatus":           []string{"Up"},
			"AutoImportVlanPortTypes":    []string{"Trunk", "Access", "Unknown"},
			"AutoImportVirtualTypes":     []string{"Physical", "Virtual", "Unknown"},
			"AutoImportExpressionFilter": expressions,
		})
	if err != nil {
		return nil, fmt.Errorf("create interfaces plugin configuration: %w", err)
	}

	profileName := fmt.Sprintf("solarium.%s.%s", spec.NodeName, uuid.NewString())
	profile := map[string]any{
		"Name":                      profileName,
		"Description":               "Automated discovery, managed by solarium",
		"EngineID":                  resolved.DiscoveryEngineID,
		"JobTimeoutSeconds":         discoveryJobTimeoutSecs,
		"SearchTimeoutMiliseconds":  discoverySearchTimeoutMS,
		"SnmpTimeoutMiliseconds":    discoverySNMPTimeoutMS,
		"RepeatIntervalMiliseconds": discoveryRepeatIntervalMS,
		"SnmpRetries":               discoverySNMPRetries,
		"SnmpPort":                  spec.SNMPPort,
		"HopCount":                  0,
		"PreferredSnmpVersion":      "SNMP" + spec.SNMPVersion.Number(),
		"DisableIcmp":               false,
		"AllowDuplicateNodes":       false,
		"IsAutoImport":              true,
		"IsHidden":                  false,
		"PluginConfigurations": []map[string]any{
			{"PluginConfigurationItem": json.RawMessage(coreConfig)},
			{"PluginConfigurationItem": json.RawMessage(interfacesConfig)},
		},
	}

	raw, err := r.svc.Invoke(ctx, "Orion.Discovery", "StartDiscovery", profile)
	if err != nil {
		return nil, fmt.Errorf("start discovery: %w", err)
	}
	var profileID int
	if err := json.Unmarshal(raw, &profileID); err != nil {
		return nil, fmt.Errorf("decode discovery profile id: %w", err)
	}

	r.log.Info().Int("profile_id", profileID).Str("profile", profileName).Msg("discovery started")

	if err := r.awaitDiscovery(ctx, profileID); err != nil {
		return nil, err
	}
	if err := r.checkDiscoveryLogs(ctx, profileID); err != nil {
		return nil, err
	}

	node, err := r.discoveredNode(ctx, profileName, &spec)
	if err != nil {
		return nil, err
	}

	if resolved.DiscoveryEngineID != resolved.EngineID {
		if err := r.svc.Update(ctx, node.URI, map[string]any{"EngineID": resolved.EngineID}); err != nil {
			return nil, fmt.Errorf("move node to polling engine %q: %w", spec.PollingEngineName, err)
		}
		node.EngineID = resolved.EngineID
	}
	return node, nil
}

// awaitDiscovery polls the profile status within the bounded window. A
// profile that disappears from the status table is treated as finished.
func (r *Reconciler) awaitDiscovery(ctx context.Context, profileID int) error {
	for attempt := 0; attempt < r.discoveryRetries; attempt++ {
		rows, err := r.svc.Query(ctx,
			"SELECT Status FROM Orion.DiscoveryProfiles WHERE ProfileID = @profile_id",
			map[string]any{"profile_id": profileID})
		if err != nil {
			return fmt.Errorf("query discovery status: %w", err)
		}
		if len(rows) == 0 || rows[0].Int("Status") == discoveryStatusFinished {
			return nil
		}
		if err := r.sleep(ctx, r.discoveryInterval); err != nil {
			return err
		}
	}
	return &domain.DiscoveryTimeoutError{
		ProfileID: profileID,
		Waited:    time.Duration(r.discoveryRetries) * r.discoveryInterval,
	}
}

// checkDiscoveryLogs surfaces a discovery job that ran to completion but did
// not succeed.
func (r *Reconciler) checkDiscoveryLogs(ctx context.Context, profileID int) error {
	rows, err := r.svc.Query(ctx,
		"SELECT Result, ResultDescription, ErrorMessage, BatchID "+
			"FROM Orion.DiscoveryLogs WHERE ProfileID = @profile_id",
		map[string]any{"profile_id": profileID})
	if err != nil {
		return fmt.Errorf("query discovery logs: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	if result := rows[0].Int("Result"); discoveryFailureResults[result] {
		fault := rows[0].String("ErrorMessage")
		if fault == "" {
			fault = rows[0].String("ResultDescription")
		}
		return &domain.RemoteOperationError{
			Entity: "Orion.Discovery",
			Verb:   "StartDiscovery",
			Fault:  fmt.Sprintf("discovery result %d: %s", result, fault),
		}
	}
	return nil
}

// discoveredNode finds the node imported by the named discovery profile. The
// NodeID recorded in DiscoveredNodes does not correspond to the imported
// node, so the lookup joins through DNS and SysName instead.
func (r *Reconciler) discoveredNode(ctx context.Context, profileName string, spec *domain.NodeSpec) (*domain.Node, error) {
	rows, err := r.svc.Query(ctx,
		"SELECT n.NodeID FROM Orion.DiscoveryProfiles dp "+
			"INNER JOIN Orion.DiscoveredNodes dn ON dn.ProfileID = dp.ProfileID "+
			"INNER JOIN Orion.Nodes n ON n.DNS = dn.DNS OR n.Caption = dn.SysName "+
			"WHERE dp.Name = @discovery_name",
		map[string]any{"discovery_name": profileName})
	if err != nil {
		return nil, fmt.Errorf("query discovered nodes: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("node %q not found in discovery results", spec.DisplayName())
	}

	node, err := r.LookupNode(ctx, spec)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("node %q not found after discovery import", spec.DisplayName())
	}
	return node, nil
}
