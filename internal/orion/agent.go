package orion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"solarium/internal/domain"
)

// List-resources job statuses move Unknown -> InProgress -> ReadyForImport.
const (
	listResourcesStatusUnknown = "Unknown"
	listResourcesStatusReady   = "ReadyForImport"
)

// createViaAgent registers a passive agent for the node, waits for the node
// record to appear, then schedules and imports a list-resources job so the
// node's volumes and interfaces are populated.
func (r *Reconciler) createViaAgent(ctx context.Context, resolved *ResolvedNode) (*domain.Node, error) {
	spec := resolved.Spec

	hostname := resolved.DNS
	if hostname == "" {
		hostname = spec.NodeName
	}

	_, err := r.svc.Invoke(ctx, "Orion.AgentManagement.Agent", "AddPassiveAgent",
		spec.Caption,
		hostname,
		spec.IPAddress,
		spec.AgentPort,
		resolved.EngineID,
		spec.AgentSharedSecret,
		0, // no proxy
		spec.AgentAutoUpdate,
	)
	if err != nil {
		return nil, fmt.Errorf("add passive agent: %w", err)
	}

	node, err := r.awaitAgentNode(ctx, &spec)
	if err != nil {
		return nil, err
	}

	if err := r.importAgentResources(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// awaitAgentNode waits for the node record created by agent registration.
func (r *Reconciler) awaitAgentNode(ctx context.Context, spec *domain.NodeSpec) (*domain.Node, error) {
	for attempt := 0; attempt < r.agentRetries; attempt++ {
		node, err := r.LookupNode(ctx, spec)
		if err != nil {
			return nil, err
		}
		if node != nil {
			return node, nil
		}
		if err := r.sleep(ctx, r.agentInterval); err != nil {
			return nil, err
		}
	}
	return nil, &domain.DiscoveryTimeoutError{
		Waited: time.Duration(r.agentRetries) * r.agentInterval,
	}
}

// importAgentResources runs the list-resources cycle for an agent node:
// schedule the job, wait for it to be created, wait for it to be ready, then
// import its results.
func (r *Reconciler) importAgentResources(ctx context.Context, node *domain.Node) (err error) {
	raw, err := r.svc.Invoke(ctx, "Orion.Nodes", "ScheduleListResources", node.ID)
	if err != nil {
		return fmt.Errorf("schedule list resources: %w", err)
	}
	jobID := decodeJobID(raw)

	if err := r.awaitListResources(ctx, node, jobID,
		func(status string) bool { return status != listResourcesStatusUnknown },
		"waiting for creation of list resources job"); err != nil {
		return err
	}
	if err := r.awaitListResources(ctx, node, jobID,
		func(status string) bool { return status == listResourcesStatusReady },
		"waiting for list resources job to terminate"); err != nil {
		return err
	}

	if _, err := r.svc.Invoke(ctx, "Orion.Nodes", "ImportListResourcesResult", jobID, node.ID); err != nil {
		return fmt.Errorf("import list resources result: %w", err)
	}
	return nil
}

// awaitListResources polls a list-resources job. Resource enumeration can run
// much longer than agent registration, so it shares the discovery poll bound
// rather than the agent one.
func (r *Reconciler) awaitListResources(ctx context.Context, node *domain.Node, jobID string, done func(string) bool, what string) error {
	for attempt := 0; attempt < r.discoveryRetries; attempt++ {
		raw, err := r.svc.Invoke(ctx, "Orion.Nodes", "GetScheduledListResourcesStatus", jobID, node.ID)
		if err != nil {
			return fmt.Errorf("get list resources status: %w", err)
		}
		if done(decodeJobID(raw)) {
			return nil
		}
		if err := r.sleep(ctx, r.discoveryInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("timeout %s for node %d", what, node.ID)
}

// decodeJobID extracts the string payload of an Invoke response, tolerating
// both quoted JSON strings and bare text.
func decodeJobID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}
