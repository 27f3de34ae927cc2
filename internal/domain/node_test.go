package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeSpecApplyDefaults(t *testing.T) {
	t.Run("fills unset fields", func(t *testing.T) {
		spec := NodeSpec{NodeName: "server1.example.com"}
		spec.ApplyDefaults()

		assert.Equal(t, NodeStatePresent, spec.State)
		assert.Equal(t, "server1.example.com", spec.Caption)
		assert.Equal(t, DefaultAgentPort, spec.AgentPort)
		assert.Equal(t, SNMPVersion2c, spec.SNMPVersion)
		assert.Equal(t, DefaultSNMPPort, spec.SNMPPort)
		assert.Equal(t, DefaultVolumeFilterCutoff, spec.VolumeFilterCutoffMax)
		if assert.NotNil(t, spec.SNMPAllow64) {
			assert.True(t, *spec.SNMPAllow64)
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		allow := false
		spec := NodeSpec{
			NodeName:    "server1",
			Caption:     "server one",
			State:       NodeStateAbsent,
			SNMPPort:    1161,
			SNMPVersion: SNMPVersion3,
			SNMPAllow64: &allow,
		}
		spec.ApplyDefaults()

		assert.Equal(t, NodeStateAbsent, spec.State)
		assert.Equal(t, "server one", spec.Caption)
		assert.Equal(t, 1161, spec.SNMPPort)
		assert.Equal(t, SNMPVersion3, spec.SNMPVersion)
		assert.False(t, *spec.SNMPAllow64)
	})
}

func TestNodeSpecIdentity(t *testing.T) {
	tests := []struct {
		name string
		spec NodeSpec
		want string
	}{
		{"node id wins", NodeSpec{NodeID: "42", IPAddress: "10.0.0.1", NodeName: "n"}, "42"},
		{"ip before name", NodeSpec{IPAddress: "10.0.0.1", NodeName: "n"}, "10.0.0.1"},
		{"name as fallback", NodeSpec{NodeName: "n"}, "n"},
		{"empty spec", NodeSpec{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Identity())
		})
	}
}

func TestPollingMethod(t *testing.T) {
	assert.True(t, PollingMethodSNMP.UsesDiscovery())
	assert.True(t, PollingMethodWMI.UsesDiscovery())
	assert.False(t, PollingMethodAgent.UsesDiscovery())

	assert.True(t, PollingMethodSNMP.UsesCredentials())
	assert.True(t, PollingMethodWMI.UsesCredentials())
	assert.False(t, PollingMethodAgent.UsesCredentials())

	assert.Equal(t, "SNMP", PollingMethodSNMP.ObjectSubType())
	assert.Equal(t, "AGENT", PollingMethodAgent.ObjectSubType())
	// External nodes are stored as ICMP nodes.
	assert.Equal(t, "ICMP", PollingMethodExternal.ObjectSubType())
	assert.Equal(t, "", PollingMethod("bogus").ObjectSubType())
}

func TestNetObjectID(t *testing.T) {
	node := &Node{ID: 17}
	assert.Equal(t, "N:17", node.NetObjectID())

	var nilNode *Node
	assert.Equal(t, "", nilNode.NetObjectID())
}

func TestSNMPVersionNumber(t *testing.T) {
	assert.Equal(t, "2", SNMPVersion2c.Number())
	assert.Equal(t, "3", SNMPVersion3.Number())
}
