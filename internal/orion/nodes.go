package orion

import (
	"context"
	"fmt"

	"solarium/internal/domain"
	"solarium/internal/swis"
)

const nodeColumns = "NodeID, Caption, DNS, IPAddress, ObjectSubType, SNMPVersion, EngineID, Unmanaged, UnManageFrom, UnManageUntil, Uri"

// LookupNode finds a node by the spec's identity key: node id, then IP
// address, then name matched against both Caption and DNS. Returns nil when
// no node matches.
func (r *Reconciler) LookupNode(ctx context.Context, spec *domain.NodeSpec) (*domain.Node, error) {
	var (
		where  string
		params map[string]any
	)
	switch {
	case spec.NodeID != "":
		where = "NodeID = @node_id"
		params = map[string]any{"node_id": spec.NodeID}
	case spec.IPAddress != "":
		where = "IPAddress = @ip_address"
		params = map[string]any{"ip_address": spec.IPAddress}
	default:
		where = "Caption = @node_name OR DNS = @node_name"
		params = map[string]any{"node_name": spec.NodeName}
	}

	rows, err := r.svc.Query(ctx,
		fmt.Sprintf("SELECT %s FROM Orion.Nodes WHERE %s", nodeColumns, where),
		params)
	if err != nil {
		return nil, fmt.Errorf("node lookup: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return nodeFromRow(rows[0]), nil
}

func nodeFromRow(row swis.Row) *domain.Node {
	return &domain.Node{
		ID:            row.Int("NodeID"),
		Caption:       row.String("Caption"),
		DNS:           row.String("DNS"),
		IPAddress:     row.String("IPAddress"),
		ObjectSubType: row.String("ObjectSubType"),
		SNMPVersion:   row.Int("SNMPVersion"),
		EngineID:      row.Int("EngineID"),
		Unmanaged:     row.Bool("Unmanaged"),
		UnmanageFrom:  row.Time("UnManageFrom"),
		UnmanageUntil: row.Time("UnManageUntil"),
		URI:           row.String("Uri"),
	}
}

// Volumes lists the monitored volumes of a node.
func (r *Reconciler) Volumes(ctx context.Context, nodeID int) ([]domain.Volume, error) {
	rows, err := r.svc.Query(ctx,
		"SELECT VolumeID, Caption, DisplayName, VolumeType, VolumeDescription, Uri "+
			"FROM Orion.Volumes WHERE NodeID = @node_id",
		map[string]any{"node_id": nodeID})
	if err != nil {
		return nil, fmt.Errorf("volume lookup: %w", err)
	}
	volumes := make([]domain.Volume, 0, len(rows))
	for _, row := range rows {
		volumes = append(volumes, domain.Volume{
			ID:          row.Int("VolumeID"),
			Caption:     row.String("Caption"),
			DisplayName: row.String("DisplayName"),
			Type:        row.String("VolumeType"),
			Description: row.String("VolumeDescription"),
			URI:         row.String("Uri"),
		})
	}
	return volumes, nil
}

// Interfaces lists the monitored interfaces of a node.
func (r *Reconciler) Interfaces(ctx context.Context, nodeID int) ([]domain.Interface, error) {
	rows, err := r.svc.Query(ctx,
		"SELECT InterfaceID, Name, TypeName, Caption, Uri "+
			"FROM Orion.NPM.Interfaces WHERE NodeID = @node_id",
		map[string]any{"node_id": nodeID})
	if err != nil {
		return nil, fmt.Errorf("interface lookup: %w", err)
	}
	interfaces := make([]domain.Interface, 0, len(rows))
	for _, row := range rows {
		interfaces = append(interfaces, domain.Interface{
			ID:    row.Int("InterfaceID"),
			Name:  row.String("Name"),
			Type:  row.String("TypeName"),
			Descr: row.String("Caption"),
			URI:   row.String("Uri"),
		})
	}
	return interfaces, nil
}
