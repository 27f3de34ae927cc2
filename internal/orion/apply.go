package orion

import (
	"context"
	"fmt"
	"sort"

	"solarium/internal/domain"
)

// Node setting names for the primary polling credential, by polling method.
const (
	settingSNMPCredential = "ROSNMPCredentialID"
	settingWMICredential  = "WMICredential"
)

// syncCredential ensures the node's polling credential setting points at the
// first resolved credential. Reports whether a change was applied.
func (r *Reconciler) syncCredential(ctx context.Context, spec *domain.NodeSpec, node *domain.Node, credentialID int) (bool, error) {
	settingName := settingSNMPCredential
	if spec.PollingMethod == domain.PollingMethodWMI {
		settingName = settingWMICredential
	}
	want := fmt.Sprint(credentialID)

	rows, err := r.svc.Query(ctx,
		"SELECT NodeSettingID, SettingValue, Uri FROM Orion.NodeSettings "+
			"WHERE NodeID = @node_id AND SettingName = @setting_name",
		map[string]any{"node_id": node.ID, "setting_name": settingName})
	if err != nil {
		return false, fmt.Errorf("node setting lookup: %w", err)
	}

	if len(rows) == 0 {
		if err := r.mutate(func() error {
			_, err := r.svc.Create(ctx, "Orion.NodeSettings", map[string]any{
				"NodeID":       node.ID,
				"SettingName":  settingName,
				"SettingValue": want,
			})
			return err
		}); err != nil {
			return false, fmt.Errorf("assign credential: %w", err)
		}
		return true, nil
	}

	if rows[0].String("SettingValue") == want {
		return false, nil
	}
	if err := r.mutate(func() error {
		return r.svc.Update(ctx, rows[0].String("Uri"), map[string]any{"SettingValue": want})
	}); err != nil {
		return false, fmt.Errorf("assign credential: %w", err)
	}
	return true, nil
}

// syncCustomProperties applies each desired custom property individually.
// Property keys must already exist as custom property fields in Orion; a
// write to an undefined key fails remotely and is surfaced as-is.
func (r *Reconciler) syncCustomProperties(ctx context.Context, spec *domain.NodeSpec, node *domain.Node) (bool, error) {
	if len(spec.CustomProperties) == 0 {
		return false, nil
	}

	uri := node.URI + "/CustomProperties"
	current, err := r.svc.Read(ctx, uri)
	if err != nil {
		return false, fmt.Errorf("read custom properties: %w", err)
	}

	keys := make([]string, 0, len(spec.CustomProperties))
	for k := range spec.CustomProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changed := false
	for _, key := range keys {
		want := spec.CustomProperties[key]
		if current.String(key) == want {
			continue
		}
		changed = true
		if err := r.mutate(func() error {
			return r.svc.Update(ctx, uri, map[string]any{key: want})
		}); err != nil {
			return changed, fmt.Errorf("set custom property %q: %w", key, err)
		}
	}
	return changed, nil
}

// filterVolumes removes monitored volumes matching the spec's volume filters.
// When the match count exceeds the cutoff the whole reconcile aborts; a broad
// filter removing most of a node's volumes is assumed to be a mistake.
func (r *Reconciler) filterVolumes(ctx context.Context, spec *domain.NodeSpec, node *domain.Node) (int, error) {
	if len(spec.VolumeFilters) == 0 {
		return 0, nil
	}

	volumes, err := r.Volumes(ctx, node.ID)
	if err != nil {
		return 0, err
	}

	var matched []domain.Volume
	for _, v := range volumes {
		if domain.AnyMatches(spec.VolumeFilters, v.FilterTarget()) {
			matched = append(matched, v)
		}
	}
	if len(matched) > spec.VolumeFilterCutoffMax {
		return 0, fmt.Errorf("volume filters match %d volumes, more than volume_filter_cutoff_max %d: refusing to remove them",
			len(matched), spec.VolumeFilterCutoffMax)
	}

	for _, v := range matched {
		if err := r.mutate(func() error {
			return r.svc.Delete(ctx, v.URI)
		}); err != nil {
			return 0, fmt.Errorf("remove volume %q: %w", v.DisplayName, err)
		}
		r.log.Debug().Int("node_id", node.ID).Str("volume", v.DisplayName).Msg("volume removed")
	}
	return len(matched), nil
}

// filterInterfaces removes monitored interfaces matching the spec's interface
// filters. This is the post-discovery removal pipeline; it is independent of
// the server-side discovery expression filters.
func (r *Reconciler) filterInterfaces(ctx context.Context, spec *domain.NodeSpec, node *domain.Node) (int, error) {
	if len(spec.InterfaceFilters) == 0 {
		return 0, nil
	}

	interfaces, err := r.Interfaces(ctx, node.ID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, iface := range interfaces {
		if !domain.AnyMatches(spec.InterfaceFilters, iface.FilterTarget()) {
			continue
		}
		if err := r.mutate(func() error {
			return r.svc.Delete(ctx, iface.URI)
		}); err != nil {
			return removed, fmt.Errorf("remove interface %q: %w", iface.Name, err)
		}
		removed++
		r.log.Debug().Int("node_id", node.ID).Str("interface", iface.Name).Msg("interface removed")
	}
	return removed, nil
}
