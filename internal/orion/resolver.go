package orion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"solarium/internal/domain"
	"solarium/internal/swis"
)

// ResolvedNode is the normalized desired state for a node: validated
// parameters with credential and engine names resolved to opaque ids.
type ResolvedNode struct {
	Spec domain.NodeSpec

	// Props are the SWIS entity properties for the node itself.
	Props map[string]any

	CredentialIDs     []int
	EngineID          int
	DiscoveryEngineID int

	// DNS is set when the node name looks like a fully qualified name.
	DNS string

	// External nodes carry no agent/SNMP configuration of their own.
	External bool
}

// Validate checks the spec's cross-field constraints. It is called before
// any remote call is made, so a bad spec never mutates remote state.
func Validate(spec *domain.NodeSpec) error {
	if spec.Identity() == "" {
		return &domain.ValidationError{
			Field:  "node_id",
			Reason: "one of node_id, node_name, or ip_address is required",
		}
	}

	switch spec.State {
	case domain.NodeStatePresent,
		domain.NodeStateAbsent,
		domain.NodeStateRemanaged,
		domain.NodeStateUnmanaged,
		domain.NodeStateMuted,
		domain.NodeStateUnmuted:
	default:
		return &domain.ValidationError{
			Field:  "state",
			Reason: fmt.Sprintf("unknown state %q", spec.State),
		}
	}

	for field, ts := range map[string]string{
		"unmanage_from":  spec.UnmanageFrom,
		"unmanage_until": spec.UnmanageUntil,
	} {
		if ts == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			return &domain.ValidationError{
				Field:  field,
				Reason: fmt.Sprintf("not an ISO 8601 UTC timestamp: %q", ts),
			}
		}
	}

	for field, filters := range map[string][]domain.Filter{
		"discovery_interface_filters": spec.DiscoveryInterfaceFilters,
		"interface_filters":           spec.InterfaceFilters,
		"volume_filters":              spec.VolumeFilters,
	} {
		if err := domain.ValidateFilters(field, filters); err != nil {
			return err
		}
	}

	switch spec.PollingMethod {
	case "", domain.PollingMethodSNMP, domain.PollingMethodWMI,
		domain.PollingMethodICMP, domain.PollingMethodExternal:

	case domain.PollingMethodAgent:
		if spec.AgentMode == domain.AgentModeActive {
			return &domain.ValidationError{
				Field:  "agent_mode",
				Reason: "only passive agents (server-initiated communication) are supported",
			}
		}

	default:
		return &domain.ValidationError{
			Field:  "polling_method",
			Reason: fmt.Sprintf("unknown polling method %q", spec.PollingMethod),
		}
	}

	if len(spec.DiscoveryInterfaceFilters) > 0 &&
		spec.PollingMethod != "" && !spec.PollingMethod.UsesDiscovery() {
		return &domain.ValidationError{
			Field:  "discovery_interface_filters",
			Reason: fmt.Sprintf("not supported for polling method %q: agent registration performs no discovery", spec.PollingMethod),
		}
	}

	return nil
}

// validateCreate enforces the parameters required to bring a new node into
// monitoring. It only applies when the lookup found no existing node, so a
// node already present can be reconciled by name or id alone.
func validateCreate(spec *domain.NodeSpec) error {
	if spec.IPAddress == "" {
		return &domain.ValidationError{Field: "ip_address", Reason: "required to create a node"}
	}
	if spec.Caption == "" && spec.NodeName == "" {
		return &domain.ValidationError{Field: "node_name", Reason: "required to create a node"}
	}

	switch spec.PollingMethod {
	case "":
		return &domain.ValidationError{Field: "polling_method", Reason: "required to create a node"}

	case domain.PollingMethodSNMP, domain.PollingMethodWMI:
		if len(spec.CredentialNames) == 0 {
			return &domain.ValidationError{
				Field:  "credential_names",
				Reason: fmt.Sprintf("required for polling method %q", spec.PollingMethod),
			}
		}

	case domain.PollingMethodAgent:
		if spec.AgentMode == "" {
			return &domain.ValidationError{
				Field:  "agent_mode",
				Reason: "required for agent polling method",
			}
		}
		if spec.AgentSharedSecret == "" {
			return &domain.ValidationError{
				Field:  "agent_shared_secret",
				Reason: "required when agent_mode is passive",
			}
		}
	}

	return nil
}

// Resolver normalizes node specs against the remote catalogs.
type Resolver struct {
	svc swis.Service
}

// NewResolver returns a resolver backed by the given SWIS service.
func NewResolver(svc swis.Service) *Resolver {
	return &Resolver{svc: svc}
}

// Resolve validates the spec and produces the normalized desired state,
// looking up credential ids and polling engine ids remotely.
func (r *Resolver) Resolve(ctx context.Context, spec domain.NodeSpec) (*ResolvedNode, error) {
	spec.ApplyDefaults()
	if err := Validate(&spec); err != nil {
		return nil, err
	}

	resolved := &ResolvedNode{
		Spec:     spec,
		External: spec.PollingMethod == domain.PollingMethodExternal,
	}
	if strings.Contains(spec.NodeName, ".") {
		resolved.DNS = spec.NodeName
	}

	if spec.PollingMethod.UsesCredentials() {
		ids, err := r.Credentials(ctx, spec.CredentialNames)
		if err != nil {
			return nil, err
		}
		resolved.CredentialIDs = ids
	}

	resolved.EngineID = 1
	if spec.PollingEngineName != "" {
		engine, err := r.PollingEngine(ctx, spec.PollingEngineName)
		if err != nil {
			return nil, err
		}
		resolved.EngineID = engine.ID
	}

	resolved.DiscoveryEngineID = resolved.EngineID
	if spec.DiscoveryPollingEngineName != "" && spec.DiscoveryPollingEngineName != spec.PollingEngineName {
		engine, err := r.PollingEngine(ctx, spec.DiscoveryPollingEngineName)
		if err != nil {
			return nil, err
		}
		resolved.DiscoveryEngineID = engine.ID
	}

	props := map[string]any{
		"IPAddress":     spec.IPAddress,
		"ObjectSubType": spec.PollingMethod.ObjectSubType(),
		"External":      resolved.External,
		"Caption":       spec.Caption,
		"EngineID":      resolved.EngineID,
	}
	if spec.PollingMethod == domain.PollingMethodSNMP {
		props["SNMPVersion"] = spec.SNMPVersion.Number()
		props["SNMPPort"] = spec.SNMPPort
		props["Allow64BitCounters"] = spec.SNMPAllow64 == nil || *spec.SNMPAllow64
	}
	resolved.Props = props

	return resolved, nil
}

// Credentials resolves credential names to ids, preserving order.
func (r *Resolver) Credentials(ctx context.Context, names []string) ([]int, error) {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		rows, err := r.svc.Query(ctx,
			"SELECT ID FROM Orion.Credential WHERE Name = @credential_name",
			map[string]any{"credential_name": name})
		if err != nil {
			return nil, fmt.Errorf("credential lookup: %w", err)
		}
		if len(rows) == 0 {
			return nil, &domain.CredentialNotFoundError{Name: name}
		}
		ids = append(ids, rows[0].Int("ID"))
	}
	return ids, nil
}

// PollingEngine resolves a polling engine by server name.
func (r *Resolver) PollingEngine(ctx context.Context, serverName string) (*domain.PollingEngine, error) {
	rows, err := r.svc.Query(ctx,
		"SELECT EngineID, ServerName FROM Orion.Engines WHERE ServerName = @engine_name",
		map[string]any{"engine_name": serverName})
	if err != nil {
		return nil, fmt.Errorf("polling engine lookup: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ValidationError{
			Field:  "polling_engine_name",
			Reason: fmt.Sprintf("polling engine %q not found", serverName),
		}
	}
	return &domain.PollingEngine{
		ID:         rows[0].Int("EngineID"),
		ServerName: rows[0].String("ServerName"),
	}, nil
}
