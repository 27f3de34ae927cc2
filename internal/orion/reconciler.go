package orion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solarium/internal/domain"
	"solarium/internal/swis"
)

// Poll bounds for remote jobs, mirroring the discovery timeouts inside Orion
// itself. Total wait is retries multiplied by the interval.
const (
	DefaultDiscoveryRetries  = 60
	DefaultDiscoveryInterval = 3 * time.Second
	DefaultAgentRetries      = 10
	DefaultAgentInterval     = 3 * time.Second
)

// Result reports the outcome of a reconciliation.
type Result struct {
	Changed bool   `json:"changed"`
	Msg     string `json:"msg,omitempty"`
	NodeID  int    `json:"node_id,omitempty"`
	Caption string `json:"caption,omitempty"`
	URI     string `json:"uri,omitempty"`
}

// SleepFunc pauses between poll attempts. Injected in tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reconciler converges remote node state to a NodeSpec.
type Reconciler struct {
	svc      swis.Service
	resolver *Resolver
	log      zerolog.Logger
	sleep    SleepFunc

	checkMode bool

	discoveryRetries  int
	discoveryInterval time.Duration
	agentRetries      int
	agentInterval     time.Duration
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCheckMode makes the reconciler report would-be changes without
// performing any remote mutation.
func WithCheckMode(enabled bool) Option {
	return func(r *Reconciler) { r.checkMode = enabled }
}

// WithDiscoveryPoll tunes the bounded discovery-completion poll.
func WithDiscoveryPoll(retries int, interval time.Duration) Option {
	return func(r *Reconciler) {
		r.discoveryRetries = retries
		r.discoveryInterval = interval
	}
}

// WithAgentPoll tunes the bounded agent-registration poll.
func WithAgentPoll(retries int, interval time.Duration) Option {
	return func(r *Reconciler) {
		r.agentRetries = retries
		r.agentInterval = interval
	}
}

// WithSleep replaces the inter-poll sleep. Tests use this to avoid real
// delays.
func WithSleep(fn SleepFunc) Option {
	return func(r *Reconciler) { r.sleep = fn }
}

// NewReconciler builds a reconciler over the given SWIS service.
func NewReconciler(svc swis.Service, log zerolog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		svc:               svc,
		resolver:          NewResolver(svc),
		log:               log.With().Str("component", "reconciler").Logger(),
		sleep:             sleepCtx,
		discoveryRetries:  DefaultDiscoveryRetries,
		discoveryInterval: DefaultDiscoveryInterval,
		agentRetries:      DefaultAgentRetries,
		agentInterval:     DefaultAgentInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile computes and applies the minimal change set to move the remote
// node to the desired state. Callers must serialize concurrent reconciles
// against the same node identity; the reconciler provides no locking.
func (r *Reconciler) Reconcile(ctx context.Context, spec domain.NodeSpec) (*Result, error) {
	spec.ApplyDefaults()
	if err := Validate(&spec); err != nil {
		return nil, err
	}

	node, err := r.LookupNode(ctx, &spec)
	if err != nil {
		return nil, err
	}

	log := r.log.With().Str("node", spec.DisplayName()).Str("state", string(spec.State)).Logger()

	switch spec.State {
	case domain.NodeStatePresent:
		if node == nil {
			if err := validateCreate(&spec); err != nil {
				return nil, err
			}
			if r.checkMode {
				return &Result{Changed: true, Msg: "node would be created"}, nil
			}
			return r.create(ctx, spec)
		}
		return r.update(ctx, spec, node)

	case domain.NodeStateAbsent:
		if node == nil {
			return &Result{Changed: false, Msg: "node not present"}, nil
		}
		if r.checkMode {
			return resultFor(node, true, "node would be removed"), nil
		}
		if err := r.svc.Delete(ctx, node.URI); err != nil {
			return nil, fmt.Errorf("remove node: %w", err)
		}
		log.Info().Int("node_id", node.ID).Msg("node removed")
		return resultFor(node, true, "node has been removed"), nil

	default:
		if node == nil {
			return &Result{
				Changed: false,
				Msg:     fmt.Sprintf("node %q not found in Orion", spec.DisplayName()),
			}, nil
		}
		if r.checkMode {
			return resultFor(node, true, ""), nil
		}
		switch spec.State {
		case domain.NodeStateRemanaged:
			return r.remanage(ctx, node)
		case domain.NodeStateUnmanaged:
			return r.unmanage(ctx, &spec, node)
		case domain.NodeStateMuted:
			return r.mute(ctx, &spec, node)
		default: // NodeStateUnmuted, validated earlier
			return r.unmute(ctx, node)
		}
	}
}

func resultFor(node *domain.Node, changed bool, msg string) *Result {
	return &Result{
		Changed: changed,
		Msg:     msg,
		NodeID:  node.ID,
		Caption: node.Caption,
		URI:     node.URI,
	}
}

// mutate runs fn unless check mode is active.
func (r *Reconciler) mutate(fn func() error) error {
	if r.checkMode {
		return nil
	}
	return fn()
}

// create brings a new node into monitoring via the path appropriate for its
// polling method, then applies the shared post-create steps. A failure
// partway through is not rolled back: the module reports failure and a
// follow-up reconcile converges the partially configured node.
func (r *Reconciler) create(ctx context.Context, spec domain.NodeSpec) (*Result, error) {
	resolved, err := r.resolver.Resolve(ctx, spec)
	if err != nil {
		return nil, err
	}

	var node *domain.Node
	switch {
	case spec.PollingMethod.UsesDiscovery():
		node, err = r.createViaDiscovery(ctx, resolved)
	case spec.PollingMethod == domain.PollingMethodAgent:
		node, err = r.createViaAgent(ctx, resolved)
	default:
		node, err = r.createDirect(ctx, resolved)
	}
	if err != nil {
		return nil, err
	}

	if _, err := r.filterVolumes(ctx, &spec, node); err != nil {
		return nil, err
	}
	if _, err := r.filterInterfaces(ctx, &spec, node); err != nil {
		return nil, err
	}
	if spec.Caption != "" && node.Caption != spec.Caption {
		if err := r.svc.Update(ctx, node.URI, map[string]any{"Caption": spec.Caption}); err != nil {
			return nil, fmt.Errorf("set caption: %w", err)
		}
		node.Caption = spec.Caption
	}
	if resolved.DNS != "" && node.DNS != resolved.DNS {
		if err := r.svc.Update(ctx, node.URI, map[string]any{"DNS": resolved.DNS}); err != nil {
			return nil, fmt.Errorf("set dns name: %w", err)
		}
	}
	if !resolved.External {
		if _, err := r.syncCustomProperties(ctx, &spec, node); err != nil {
			return nil, err
		}
	}

	r.log.Info().Int("node_id", node.ID).Str("caption", node.Caption).Msg("node added")
	return resultFor(node, true, "node has been added"), nil
}

// createDirect registers an ICMP or external node without a discovery job.
func (r *Reconciler) createDirect(ctx context.Context, resolved *ResolvedNode) (*domain.Node, error) {
	if _, err := r.svc.Create(ctx, "Orion.Nodes", resolved.Props); err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}
	node, err := r.LookupNode(ctx, &resolved.Spec)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("node %q not found after creation", resolved.Spec.DisplayName())
	}
	return node, nil
}

// update reconciles an existing node in place: each divergent attribute is
// applied independently as a set-to-value operation.
func (r *Reconciler) update(ctx context.Context, spec domain.NodeSpec, node *domain.Node) (*Result, error) {
	resolved, err := r.resolver.Resolve(ctx, spec)
	if err != nil {
		return nil, err
	}

	changed := false

	if spec.Caption != "" && node.Caption != spec.Caption {
		changed = true
		if err := r.mutate(func() error {
			return r.svc.Update(ctx, node.URI, map[string]any{"Caption": spec.Caption})
		}); err != nil {
			return nil, fmt.Errorf("set caption: %w", err)
		}
	}

	if resolved.DNS != "" && node.DNS != resolved.DNS {
		changed = true
		if err := r.mutate(func() error {
			return r.svc.Update(ctx, node.URI, map[string]any{"DNS": resolved.DNS})
		}); err != nil {
			return nil, fmt.Errorf("set dns name: %w", err)
		}
	}

	if spec.PollingMethod != "" {
		if subType := spec.PollingMethod.ObjectSubType(); node.ObjectSubType != subType {
			changed = true
			if err := r.mutate(func() error {
				return r.svc.Update(ctx, node.URI, map[string]any{
					"ObjectSubType": subType,
					"External":      resolved.External,
				})
			}); err != nil {
				return nil, fmt.Errorf("set polling method: %w", err)
			}
		}
	}

	if spec.PollingMethod == domain.PollingMethodSNMP {
		if want := spec.SNMPVersion.Number(); node.SNMPVersion != 0 && fmt.Sprint(node.SNMPVersion) != want {
			changed = true
			if err := r.mutate(func() error {
				return r.svc.Update(ctx, node.URI, map[string]any{"SNMPVersion": want})
			}); err != nil {
				return nil, fmt.Errorf("set snmp version: %w", err)
			}
		}
	}

	if spec.PollingEngineName != "" && node.EngineID != resolved.EngineID {
		changed = true
		if err := r.mutate(func() error {
			return r.svc.Update(ctx, node.URI, map[string]any{"EngineID": resolved.EngineID})
		}); err != nil {
			return nil, fmt.Errorf("move node to polling engine: %w", err)
		}
	}

	if spec.PollingMethod.UsesCredentials() && len(resolved.CredentialIDs) > 0 {
		credChanged, err := r.syncCredential(ctx, &spec, node, resolved.CredentialIDs[0])
		if err != nil {
			return nil, err
		}
		changed = changed || credChanged
	}

	propsChanged, err := r.syncCustomProperties(ctx, &spec, node)
	if err != nil {
		return nil, err
	}
	changed = changed || propsChanged

	volumesRemoved, err := r.filterVolumes(ctx, &spec, node)
	if err != nil {
		return nil, err
	}
	interfacesRemoved, err := r.filterInterfaces(ctx, &spec, node)
	if err != nil {
		return nil, err
	}
	changed = changed || volumesRemoved > 0 || interfacesRemoved > 0

	msg := "node already matches desired state"
	if changed {
		msg = "node has been updated"
	}
	return resultFor(node, changed, msg), nil
}
