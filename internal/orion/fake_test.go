package orion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"solarium/internal/domain"
	"solarium/internal/swis"
)

const fakeNodeURIPrefix = "swis://fake/Orion/Orion.Nodes/NodeID="

// fakeNode is the remote-side record behind the fake SWIS service.
type fakeNode struct {
	id            int
	caption       string
	dns           string
	ip            string
	subType       string
	snmpVersion   int
	engineID      int
	unmanaged     bool
	unmanageFrom  time.Time
	unmanageUntil time.Time

	customProps map[string]any
	settings    map[string]string
	volumes     []domain.Volume
	interfaces  []domain.Interface

	suppressionMode int
	suppressedFrom  string
	suppressedUntil string
}

func (n *fakeNode) uri() string { return fakeNodeURIPrefix + strconv.Itoa(n.id) }

// fakeSWIS implements swis.Service in memory and records every mutating call
// so tests can assert idempotence.
type fakeSWIS struct {
	nodes       map[int]*fakeNode
	nextID      int
	credentials map[string]int
	engines     map[string]int

	// Resources a discovery job or agent resource import would find.
	discoverableInterfaces []domain.Interface
	discoverableVolumes    []domain.Volume

	// discoveryStuck keeps the discovery profile status at InProgress.
	discoveryStuck bool

	// listResourcesPolls is the number of status polls a list-resources job
	// reports InProgress before turning ReadyForImport.
	listResourcesPolls int

	pendingAddress    string
	pendingFilters    []domain.Filter
	lastDiscoveryName string
	lastDiscoveredID  int

	mutations []string
	queries   []string
}

var _ swis.Service = (*fakeSWIS)(nil)

func newFakeSWIS() *fakeSWIS {
	return &fakeSWIS{
		nodes:       map[int]*fakeNode{},
		nextID:      100,
		credentials: map[string]int{},
		engines:     map[string]int{},
	}
}

func (f *fakeSWIS) addNode(n *fakeNode) *fakeNode {
	f.nextID++
	n.id = f.nextID
	if n.customProps == nil {
		n.customProps = map[string]any{}
	}
	if n.settings == nil {
		n.settings = map[string]string{}
	}
	f.nodes[n.id] = n
	return n
}

func (f *fakeSWIS) record(op string) { f.mutations = append(f.mutations, op) }

func (f *fakeSWIS) nodeByURI(uri string) *fakeNode {
	trimmed := strings.TrimSuffix(uri, "/CustomProperties")
	id, err := strconv.Atoi(strings.TrimPrefix(trimmed, fakeNodeURIPrefix))
	if err != nil {
		return nil
	}
	return f.nodes[id]
}

func (f *fakeSWIS) sortedNodes() []*fakeNode {
	out := make([]*fakeNode, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func settingURI(nodeID int, name string) string {
	return fmt.Sprintf("swis://fake/Orion/Orion.NodeSettings/NodeID=%d,SettingName=%s", nodeID, name)
}

func fakeTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (f *fakeSWIS) Query(_ context.Context, swql string, params map[string]any) ([]swis.Row, error) {
	f.queries = append(f.queries, swql)

	switch {
	case strings.Contains(swql, "FROM Orion.Credential"):
		name, _ := params["credential_name"].(string)
		if id, ok := f.credentials[name]; ok {
			return []swis.Row{{"ID": id}}, nil
		}
		return nil, nil

	case strings.Contains(swql, "FROM Orion.Engines"):
		name, _ := params["engine_name"].(string)
		if id, ok := f.engines[name]; ok {
			return []swis.Row{{"EngineID": id, "ServerName": name}}, nil
		}
		return nil, nil

	case strings.Contains(swql, "Orion.DiscoveredNodes"):
		if name, _ := params["discovery_name"].(string); name == f.lastDiscoveryName && f.lastDiscoveredID != 0 {
			return []swis.Row{{"NodeID": f.lastDiscoveredID}}, nil
		}
		return nil, nil

	case strings.Contains(swql, "FROM Orion.DiscoveryProfiles"):
		status := discoveryStatusFinished
		if f.discoveryStuck {
			status = 1
		}
		return []swis.Row{{"Status": status}}, nil

	case strings.Contains(swql, "FROM Orion.DiscoveryLogs"):
		return []swis.Row{{"Result": 2, "ResultDescription": "Discovery completed"}}, nil

	case strings.Contains(swql, "FROM Orion.Volumes"):
		node := f.nodes[asInt(params["node_id"])]
		if node == nil {
			return nil, nil
		}
		rows := make([]swis.Row, 0, len(node.volumes))
		for _, v := range node.volumes {
			rows = append(rows, swis.Row{
				"VolumeID": v.ID, "Caption": v.Caption, "DisplayName": v.DisplayName,
				"VolumeType": v.Type, "VolumeDescription": v.Description, "Uri": v.URI,
			})
		}
		return rows, nil

	case strings.Contains(swql, "FROM Orion.NPM.Interfaces"):
		node := f.nodes[asInt(params["node_id"])]
		if node == nil {
			return nil, nil
		}
		rows := make([]swis.Row, 0, len(node.interfaces))
		for _, i := range node.interfaces {
			rows = append(rows, swis.Row{
				"InterfaceID": i.ID, "Name": i.Name, "TypeName": i.Type,
				"Caption": i.Descr, "Uri": i.URI,
			})
		}
		return rows, nil

	case strings.Contains(swql, "FROM Orion.NodeSettings"):
		node := f.nodes[asInt(params["node_id"])]
		name, _ := params["setting_name"].(string)
		if node == nil {
			return nil, nil
		}
		if v, ok := node.settings[name]; ok {
			return []swis.Row{{"SettingValue": v, "Uri": settingURI(node.id, name)}}, nil
		}
		return nil, nil

	case strings.Contains(swql, "FROM Orion.Nodes"):
		for _, n := range f.sortedNodes() {
			if !matchesLookup(n, params) {
				continue
			}
			return []swis.Row{{
				"NodeID": n.id, "Caption": n.caption, "DNS": n.dns, "IPAddress": n.ip,
				"ObjectSubType": n.subType, "SNMPVersion": n.snmpVersion, "EngineID": n.engineID,
				"Unmanaged":     n.unmanaged,
				"UnManageFrom":  fakeTimestamp(n.unmanageFrom),
				"UnManageUntil": fakeTimestamp(n.unmanageUntil),
				"Uri":           n.uri(),
			}}, nil
		}
		return nil, nil
	}

	return nil, fmt.Errorf("unhandled query: %s", swql)
}

func matchesLookup(n *fakeNode, params map[string]any) bool {
	if id, ok := params["node_id"].(string); ok {
		return strconv.Itoa(n.id) == id
	}
	if ip, ok := params["ip_address"].(string); ok {
		return n.ip == ip
	}
	if name, ok := params["node_name"].(string); ok {
		return n.caption == name || n.dns == name
	}
	return false
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func (f *fakeSWIS) Invoke(_ context.Context, entity, verb string, args ...any) (json.RawMessage, error) {
	op := entity + "." + verb
	switch op {
	case "Orion.Nodes.GetScheduledListResourcesStatus",
		"Orion.AlertSuppression.GetAlertSuppressionState":
		// status reads
	default:
		f.record(op)
	}

	switch op {
	case "Orion.Discovery.CreateCorePluginConfiguration":
		ctxMap, _ := args[0].(map[string]any)
		if bulk, ok := ctxMap["BulkList"].([]map[string]any); ok && len(bulk) > 0 {
			f.pendingAddress, _ = bulk[0]["Address"].(string)
		}
		return json.RawMessage(`{"plugin":"core"}`), nil

	case "Orion.NPM.Interfaces.CreateInterfacesPluginConfiguration":
		ctxMap, _ := args[0].(map[string]any)
		f.pendingFilters = nil
		if exprs, ok := ctxMap["AutoImportExpressionFilter"].([]map[string]string); ok {
			for _, e := range exprs {
				if e["Op"] == "!Any" {
					continue
				}
				f.pendingFilters = append(f.pendingFilters, domain.Filter{
					Prop: e["Prop"], Op: domain.FilterOp(e["Op"]), Val: e["Val"],
				})
			}
		}
		return json.RawMessage(`{"plugin":"interfaces"}`), nil

	case "Orion.Discovery.StartDiscovery":
		profile, _ := args[0].(map[string]any)
		f.lastDiscoveryName, _ = profile["Name"].(string)
		node := f.addNode(&fakeNode{
			caption:     "discovered-" + f.pendingAddress,
			ip:          f.pendingAddress,
			subType:     "SNMP",
			snmpVersion: 2,
			engineID:    asInt(profile["EngineID"]),
		})
		f.attachResources(node, f.pendingFilters)
		f.lastDiscoveredID = node.id
		return json.RawMessage("42"), nil

	case "Orion.AgentManagement.Agent.AddPassiveAgent":
		caption, _ := args[0].(string)
		hostname, _ := args[1].(string)
		ip, _ := args[2].(string)
		f.addNode(&fakeNode{
			caption:  caption,
			dns:      hostname,
			ip:       ip,
			subType:  "AGENT",
			engineID: asInt(args[4]),
		})
		return json.RawMessage("null"), nil

	case "Orion.Nodes.ScheduleListResources":
		return json.RawMessage(`"job-7"`), nil

	case "Orion.Nodes.GetScheduledListResourcesStatus":
		if f.listResourcesPolls > 0 {
			f.listResourcesPolls--
			return json.RawMessage(`"InProgress"`), nil
		}
		return json.RawMessage(`"` + listResourcesStatusReady + `"`), nil

	case "Orion.Nodes.ImportListResourcesResult":
		if node := f.nodes[asInt(args[1])]; node != nil {
			f.attachResources(node, nil)
		}
		return json.RawMessage("null"), nil

	case "Orion.Nodes.Unmanage":
		netObj, _ := args[0].(string)
		node := f.nodes[netObjectNodeID(netObj)]
		if node == nil {
			return nil, fmt.Errorf("unmanage: no node for %q", netObj)
		}
		node.unmanaged = true
		node.unmanageFrom, _ = time.Parse(time.RFC3339, args[1].(string))
		node.unmanageUntil, _ = time.Parse(time.RFC3339, args[2].(string))
		return json.RawMessage("null"), nil

	case "Orion.Nodes.Remanage":
		netObj, _ := args[0].(string)
		node := f.nodes[netObjectNodeID(netObj)]
		if node == nil {
			return nil, fmt.Errorf("remanage: no node for %q", netObj)
		}
		node.unmanaged = false
		return json.RawMessage("null"), nil

	case "Orion.AlertSuppression.GetAlertSuppressionState":
		uris, _ := args[0].([]string)
		node := f.nodeByURI(uris[0])
		if node == nil {
			return nil, fmt.Errorf("suppression state: no node for %q", uris[0])
		}
		return json.Marshal([]map[string]any{{
			"SuppressionMode": node.suppressionMode,
			"SuppressedFrom":  node.suppressedFrom,
			"SuppressedUntil": node.suppressedUntil,
		}})

	case "Orion.AlertSuppression.SuppressAlerts":
		uris, _ := args[0].([]string)
		node := f.nodeByURI(uris[0])
		node.suppressionMode = 1
		node.suppressedFrom, _ = args[1].(string)
		node.suppressedUntil, _ = args[2].(string)
		return json.RawMessage("null"), nil

	case "Orion.AlertSuppression.ResumeAlerts":
		uris, _ := args[0].([]string)
		node := f.nodeByURI(uris[0])
		node.suppressionMode = 0
		node.suppressedFrom, node.suppressedUntil = "", ""
		return json.RawMessage("null"), nil
	}

	return nil, fmt.Errorf("unhandled invoke: %s", op)
}

// attachResources populates a node with the discoverable resource set,
// applying server-side expression filters to the interfaces when given.
func (f *fakeSWIS) attachResources(node *fakeNode, filters []domain.Filter) {
	for i, iface := range f.discoverableInterfaces {
		if filters != nil && !domain.AcceptedByExpressions(filters, iface.FilterTarget()) {
			continue
		}
		iface.ID = node.id*1000 + i
		iface.URI = fmt.Sprintf("swis://fake/I/%d/%d", node.id, iface.ID)
		node.interfaces = append(node.interfaces, iface)
	}
	for i, vol := range f.discoverableVolumes {
		vol.ID = node.id*1000 + i
		vol.URI = fmt.Sprintf("swis://fake/V/%d/%d", node.id, vol.ID)
		node.volumes = append(node.volumes, vol)
	}
}

func netObjectNodeID(netObj string) int {
	id, _ := strconv.Atoi(strings.TrimPrefix(netObj, "N:"))
	return id
}

func (f *fakeSWIS) Create(_ context.Context, entity string, props map[string]any) (string, error) {
	f.record("Create/" + entity)
	switch entity {
	case "Orion.Nodes":
		node := f.addNode(&fakeNode{
			caption:  fmt.Sprint(props["Caption"]),
			ip:       fmt.Sprint(props["IPAddress"]),
			subType:  fmt.Sprint(props["ObjectSubType"]),
			engineID: asInt(props["EngineID"]),
		})
		return node.uri(), nil
	case "Orion.NodeSettings":
		node := f.nodes[asInt(props["NodeID"])]
		if node == nil {
			return "", fmt.Errorf("create setting: no node %v", props["NodeID"])
		}
		name := fmt.Sprint(props["SettingName"])
		node.settings[name] = fmt.Sprint(props["SettingValue"])
		return settingURI(node.id, name), nil
	}
	return "", fmt.Errorf("unhandled create: %s", entity)
}

func (f *fakeSWIS) Read(_ context.Context, uri string) (swis.Row, error) {
	if strings.HasSuffix(uri, "/CustomProperties") {
		node := f.nodeByURI(uri)
		if node == nil {
			return nil, fmt.Errorf("read: no node for %q", uri)
		}
		return swis.Row(node.customProps), nil
	}
	return nil, fmt.Errorf("unhandled read: %s", uri)
}

func (f *fakeSWIS) Update(_ context.Context, uri string, props map[string]any) error {
	f.record("Update/" + uri)

	if strings.HasSuffix(uri, "/CustomProperties") {
		node := f.nodeByURI(uri)
		if node == nil {
			return fmt.Errorf("update: no node for %q", uri)
		}
		for k, v := range props {
			node.customProps[k] = v
		}
		return nil
	}

	if strings.Contains(uri, "Orion.NodeSettings") {
		for _, n := range f.nodes {
			for name := range n.settings {
				if settingURI(n.id, name) == uri {
					n.settings[name] = fmt.Sprint(props["SettingValue"])
					return nil
				}
			}
		}
		return fmt.Errorf("update: no setting for %q", uri)
	}

	node := f.nodeByURI(uri)
	if node == nil {
		return fmt.Errorf("update: no node for %q", uri)
	}
	for k, v := range props {
		switch k {
		case "Caption":
			node.caption = fmt.Sprint(v)
		case "DNS":
			node.dns = fmt.Sprint(v)
		case "ObjectSubType":
			node.subType = fmt.Sprint(v)
		case "EngineID":
			node.engineID = asInt(v)
		case "SNMPVersion":
			node.snmpVersion, _ = strconv.Atoi(fmt.Sprint(v))
		}
	}
	return nil
}

func (f *fakeSWIS) Delete(_ context.Context, uri string) error {
	f.record("Delete/" + uri)

	if node := f.nodeByURI(uri); node != nil {
		delete(f.nodes, node.id)
		return nil
	}
	for _, n := range f.nodes {
		for i, v := range n.volumes {
			if v.URI == uri {
				n.volumes = append(n.volumes[:i], n.volumes[i+1:]...)
				return nil
			}
		}
		for i, iface := range n.interfaces {
			if iface.URI == uri {
				n.interfaces = append(n.interfaces[:i], n.interfaces[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("delete: nothing at %q", uri)
}
