package orion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"solarium/internal/domain"
)

// swisTimestamp formats a time the way SWIS verbs expect.
func swisTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// unmanageWindow resolves the unmanage window from the spec, defaulting to
// now until now plus a day. Timestamps were validated earlier.
func unmanageWindow(spec *domain.NodeSpec) (from, until time.Time) {
	now := time.Now().UTC()
	from, until = now, now.Add(domain.DefaultUnmanageWindowLength)
	if spec.UnmanageFrom != "" {
		from, _ = time.Parse(time.RFC3339, spec.UnmanageFrom)
	}
	if spec.UnmanageUntil != "" {
		until, _ = time.Parse(time.RFC3339, spec.UnmanageUntil)
	}
	return from, until
}

// remanage returns an unmanaged node to active polling.
func (r *Reconciler) remanage(ctx context.Context, node *domain.Node) (*Result, error) {
	if !node.Unmanaged {
		return resultFor(node, false, "node is already managed"), nil
	}
	if _, err := r.svc.Invoke(ctx, "Orion.Nodes", "Remanage", node.NetObjectID()); err != nil {
		return nil, fmt.Errorf("remanage node: %w", err)
	}
	return resultFor(node, true, "node has been remanaged"), nil
}

// unmanage suspends polling for the node within the given window. Reapplying
// the same window is a no-op.
func (r *Reconciler) unmanage(ctx context.Context, spec *domain.NodeSpec, node *domain.Node) (*Result, error) {
	from, until := unmanageWindow(spec)

	if node.Unmanaged && node.UnmanageFrom.Equal(from) && node.UnmanageUntil.Equal(until) {
		return resultFor(node, false, "node is already unmanaged for this window"), nil
	}

	if _, err := r.svc.Invoke(ctx, "Orion.Nodes", "Unmanage",
		node.NetObjectID(), swisTimestamp(from), swisTimestamp(until),
		false, // absolute window, not relative
	); err != nil {
		return nil, fmt.Errorf("unmanage node: %w", err)
	}
	return resultFor(node, true,
		fmt.Sprintf("node will be unmanaged from %s until %s", swisTimestamp(from), swisTimestamp(until))), nil
}

// suppressionState is one element of a GetAlertSuppressionState response.
type suppressionState struct {
	SuppressionMode int    `json:"SuppressionMode"`
	SuppressedFrom  string `json:"SuppressedFrom"`
	SuppressedUntil string `json:"SuppressedUntil"`
}

func (r *Reconciler) alertSuppression(ctx context.Context, node *domain.Node) (*suppressionState, error) {
	raw, err := r.svc.Invoke(ctx, "Orion.AlertSuppression", "GetAlertSuppressionState", []string{node.URI})
	if err != nil {
		return nil, fmt.Errorf("get alert suppression state: %w", err)
	}
	var states []suppressionState
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, fmt.Errorf("decode alert suppression state: %w", err)
	}
	if len(states) == 0 {
		return &suppressionState{}, nil
	}
	return &states[0], nil
}

// mute suppresses alerts for the node within the given window while polling
// continues. Reapplying the same window is a no-op.
func (r *Reconciler) mute(ctx context.Context, spec *domain.NodeSpec, node *domain.Node) (*Result, error) {
	from, until := unmanageWindow(spec)

	state, err := r.alertSuppression(ctx, node)
	if err != nil {
		return nil, err
	}
	if state.SuppressionMode != 0 &&
		sameSuppressionTime(state.SuppressedFrom, from) &&
		sameSuppressionTime(state.SuppressedUntil, until) {
		return resultFor(node, false, "node is already muted for this window"), nil
	}

	if _, err := r.svc.Invoke(ctx, "Orion.AlertSuppression", "SuppressAlerts",
		[]string{node.URI}, swisTimestamp(from), swisTimestamp(until)); err != nil {
		return nil, fmt.Errorf("mute node: %w", err)
	}
	return resultFor(node, true,
		fmt.Sprintf("node will be muted from %s until %s", swisTimestamp(from), swisTimestamp(until))), nil
}

// unmute resumes alerting for the node.
func (r *Reconciler) unmute(ctx context.Context, node *domain.Node) (*Result, error) {
	state, err := r.alertSuppression(ctx, node)
	if err != nil {
		return nil, err
	}
	if state.SuppressionMode == 0 {
		return resultFor(node, false, "node is already unmuted"), nil
	}

	if _, err := r.svc.Invoke(ctx, "Orion.AlertSuppression", "ResumeAlerts", []string{node.URI}); err != nil {
		return nil, fmt.Errorf("unmute node: %w", err)
	}
	return resultFor(node, true, "node has been unmuted"), nil
}

// sameSuppressionTime compares a SWIS timestamp string against a time,
// tolerating the sub-second and zone variations SWIS emits.
func sameSuppressionTime(s string, t time.Time) bool {
	if s == "" {
		return false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC().Equal(t.UTC())
		}
	}
	return false
}
