package domain

import (
	"strconv"
	"time"
)

// NodeState represents the desired lifecycle state of a node
type NodeState string

const (
	NodeStatePresent   NodeState = "present"
	NodeStateAbsent    NodeState = "absent"
	NodeStateRemanaged NodeState = "remanaged"
	NodeStateUnmanaged NodeState = "unmanaged"
	NodeStateMuted     NodeState = "muted"
	NodeStateUnmuted   NodeState = "unmuted"
)

// PollingMethod is the mechanism Orion uses to collect data from a node
type PollingMethod string

const (
	PollingMethodSNMP     PollingMethod = "snmp"
	PollingMethodWMI      PollingMethod = "wmi"
	PollingMethodAgent    PollingMethod = "agent"
	PollingMethodICMP     PollingMethod = "icmp"
	PollingMethodExternal PollingMethod = "external"
)

// UsesDiscovery reports whether nodes with this polling method are created
// through an Orion discovery job rather than direct registration.
func (p PollingMethod) UsesDiscovery() bool {
	return p == PollingMethodSNMP || p == PollingMethodWMI
}

// UsesCredentials reports whether this polling method requires named
// credentials registered in Orion.
func (p PollingMethod) UsesCredentials() bool {
	return p == PollingMethodSNMP || p == PollingMethodWMI
}

// ObjectSubType returns the SWIS ObjectSubType value for the polling method.
// External nodes are stored as ICMP nodes with the External flag set.
func (p PollingMethod) ObjectSubType() string {
	switch p {
	case PollingMethodSNMP:
		return "SNMP"
	case PollingMethodWMI:
		return "WMI"
	case PollingMethodAgent:
		return "AGENT"
	case PollingMethodICMP, PollingMethodExternal:
		return "ICMP"
	}
	return ""
}

// AgentMode is the direction of communication between the polling engine and
// an installed agent
type AgentMode string

const (
	// AgentModeActive - agent-initiated communication
	AgentModeActive AgentMode = "active"
	// AgentModePassive - server-initiated communication
	AgentModePassive AgentMode = "passive"
)

// SNMPVersion is the SNMP protocol version used for snmp-polled nodes
type SNMPVersion string

const (
	SNMPVersion2c SNMPVersion = "2c"
	SNMPVersion3  SNMPVersion = "3"
)

// Number returns the numeric version string used by SWIS ("2" or "3").
func (v SNMPVersion) Number() string {
	if v == SNMPVersion3 {
		return "3"
	}
	return "2"
}

// Defaults applied by NodeSpec.ApplyDefaults.
const (
	DefaultAgentPort            = 17790
	DefaultSNMPPort             = 161
	DefaultVolumeFilterCutoff   = 50
	DefaultUnmanageWindowLength = 24 * time.Hour
)

// NodeSpec is the operator-supplied desired state for a single node.
type NodeSpec struct {
	// Identity. At least one of NodeID, IPAddress, or NodeName is required;
	// IPAddress and NodeName are required to create a node.
	NodeID    string `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	NodeName  string `json:"node_name,omitempty" yaml:"node_name,omitempty"`
	IPAddress string `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
	// Caption overrides the display name, which defaults to NodeName.
	Caption string `json:"caption,omitempty" yaml:"caption,omitempty"`

	State         NodeState     `json:"state,omitempty" yaml:"state,omitempty"`
	PollingMethod PollingMethod `json:"polling_method,omitempty" yaml:"polling_method,omitempty"`

	AgentMode         AgentMode `json:"agent_mode,omitempty" yaml:"agent_mode,omitempty"`
	AgentPort         int       `json:"agent_port,omitempty" yaml:"agent_port,omitempty"`
	AgentSharedSecret string    `json:"agent_shared_secret,omitempty" yaml:"agent_shared_secret,omitempty"`
	AgentAutoUpdate   bool      `json:"agent_auto_update,omitempty" yaml:"agent_auto_update,omitempty"`

	SNMPVersion SNMPVersion `json:"snmp_version,omitempty" yaml:"snmp_version,omitempty"`
	SNMPPort    int         `json:"snmp_port,omitempty" yaml:"snmp_port,omitempty"`
	SNMPAllow64 *bool       `json:"snmp_allow_64,omitempty" yaml:"snmp_allow_64,omitempty"`

	// CredentialNames are tried in order during discovery. The credentials
	// must already exist in Orion; they are never created here.
	CredentialNames []string `json:"credential_names,omitempty" yaml:"credential_names,omitempty"`

	PollingEngineName          string `json:"polling_engine_name,omitempty" yaml:"polling_engine_name,omitempty"`
	DiscoveryPollingEngineName string `json:"discovery_polling_engine_name,omitempty" yaml:"discovery_polling_engine_name,omitempty"`

	// CustomProperties keys must already exist as custom property fields.
	CustomProperties map[string]string `json:"custom_properties,omitempty" yaml:"custom_properties,omitempty"`

	// DiscoveryInterfaceFilters are evaluated server-side within the
	// discovery job. InterfaceFilters and VolumeFilters remove discovered
	// resources afterwards. The pipelines are independent.
	DiscoveryInterfaceFilters []Filter `json:"discovery_interface_filters,omitempty" yaml:"discovery_interface_filters,omitempty"`
	InterfaceFilters          []Filter `json:"interface_filters,omitempty" yaml:"interface_filters,omitempty"`
	VolumeFilters             []Filter `json:"volume_filters,omitempty" yaml:"volume_filters,omitempty"`

	// VolumeFilterCutoffMax aborts reconciliation if more than this many
	// volumes would be removed at once.
	VolumeFilterCutoffMax int `json:"volume_filter_cutoff_max,omitempty" yaml:"volume_filter_cutoff_max,omitempty"`

	// Unmanage window for state=unmanaged or state=muted (ISO 8601 UTC).
	UnmanageFrom  string `json:"unmanage_from,omitempty" yaml:"unmanage_from,omitempty"`
	UnmanageUntil string `json:"unmanage_until,omitempty" yaml:"unmanage_until,omitempty"`
}

// ApplyDefaults fills in unset fields with their documented defaults.
func (s *NodeSpec) ApplyDefaults() {
	if s.State == "" {
		s.State = NodeStatePresent
	}
	if s.Caption == "" {
		s.Caption = s.NodeName
	}
	if s.AgentPort == 0 {
		s.AgentPort = DefaultAgentPort
	}
	if s.SNMPVersion == "" {
		s.SNMPVersion = SNMPVersion2c
	}
	if s.SNMPPort == 0 {
		s.SNMPPort = DefaultSNMPPort
	}
	if s.SNMPAllow64 == nil {
		allow := true
		s.SNMPAllow64 = &allow
	}
	if s.VolumeFilterCutoffMax == 0 {
		s.VolumeFilterCutoffMax = DefaultVolumeFilterCutoff
	}
}

// Identity returns the identity key used to look the node up, preferring
// node id, then IP address, then name.
func (s *NodeSpec) Identity() string {
	switch {
	case s.NodeID != "":
		return s.NodeID
	case s.IPAddress != "":
		return s.IPAddress
	default:
		return s.NodeName
	}
}

// DisplayName returns the best human-readable name for messages.
func (s *NodeSpec) DisplayName() string {
	if s.Caption != "" {
		return s.Caption
	}
	return s.Identity()
}

// Node is the state of a node entity as observed through SWIS.
type Node struct {
	ID            int       `json:"node_id"`
	Caption       string    `json:"caption"`
	DNS           string    `json:"dns_name,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	ObjectSubType string    `json:"object_sub_type,omitempty"`
	SNMPVersion   int       `json:"snmp_version,omitempty"`
	EngineID      int       `json:"engine_id,omitempty"`
	Unmanaged     bool      `json:"unmanaged"`
	UnmanageFrom  time.Time `json:"unmanage_from,omitempty"`
	UnmanageUntil time.Time `json:"unmanage_until,omitempty"`
	URI           string    `json:"uri"`
}

// NetObjectID returns the network object id ("N:<id>") used by verbs such as
// Orion.Nodes.Unmanage.
func (n *Node) NetObjectID() string {
	if n == nil || n.ID == 0 {
		return ""
	}
	return "N:" + strconv.Itoa(n.ID)
}

// Interface is a monitored network interface discovered on a node.
type Interface struct {
	ID    int    `json:"interface_id"`
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Descr string `json:"descr,omitempty"`
	URI   string `json:"uri"`
}

// FilterTarget maps the interface onto the generic filter shape.
func (i Interface) FilterTarget() FilterTarget {
	return FilterTarget{
		Name: i.Name,
		Type: i.Type,
		Props: map[string]string{
			"Name":  i.Name,
			"Type":  i.Type,
			"Descr": i.Descr,
		},
	}
}

// Volume is a monitored storage volume discovered on a node.
type Volume struct {
	ID          int    `json:"volume_id"`
	Caption     string `json:"caption,omitempty"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	URI         string `json:"uri"`
}

// FilterTarget maps the volume onto the generic filter shape.
func (v Volume) FilterTarget() FilterTarget {
	return FilterTarget{
		Name: v.DisplayName,
		Type: v.Type,
		Props: map[string]string{
			"Caption":           v.Caption,
			"DisplayName":       v.DisplayName,
			"VolumeType":        v.Type,
			"VolumeDescription": v.Description,
		},
	}
}

// Credential is a named credential registered in Orion, resolved to its
// opaque id before use.
type Credential struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PollingEngine is an Orion polling engine, resolved by server name.
type PollingEngine struct {
	ID         int    `json:"engine_id"`
	ServerName string `json:"server_name"`
}
