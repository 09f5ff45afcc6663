/*
Package fabric implements the circuit fabric: a persisted circuit
directory, an in-memory service directory, and the CircuitDirectMessage
routing handler that forwards or rejects framed messages between
services hosted across nodes.
*/
package fabric

// ServiceDefinition names one service's presence on a circuit's roster.
type ServiceDefinition struct {
	ServiceID    string            `yaml:"service_id"`
	ServiceType  string            `yaml:"service_type"`
	AllowedNodes []string          `yaml:"allowed_nodes"`
	Arguments    map[string]string `yaml:"arguments"`
}

// Circuit is a named channel connecting a fixed roster of services
// hosted across a set of member nodes.
type Circuit struct {
	ID             string              `yaml:"id"`
	AuthType       string              `yaml:"auth_type"`
	Members        []string            `yaml:"members"`
	Roster         []ServiceDefinition `yaml:"roster"`
	Persistence    string              `yaml:"persistence"`
	Durability     string              `yaml:"durability"`
	Routes         string              `yaml:"routes"`
	ManagementType string              `yaml:"management_type"`
}

// ServiceInRoster reports whether serviceID is a member of the circuit's
// roster, returning its ServiceDefinition.
func (c *Circuit) ServiceInRoster(serviceID string) (ServiceDefinition, bool) {
	for _, svc := range c.Roster {
		if svc.ServiceID == serviceID {
			return svc, true
		}
	}
	return ServiceDefinition{}, false
}

// Node is a member of the federation, addressable at one or more
// network endpoints.
type Node struct {
	NodeID    string   `yaml:"node_id"`
	Endpoints []string `yaml:"endpoints"`
	Metadata  map[string]string `yaml:"metadata"`
}

// ServiceRecord locates a running service: the node hosting it, and
// (once connected) the peer id to which direct messages are forwarded.
type ServiceRecord struct {
	ServiceID string
	CircuitID string
	NodeID    string
	PeerID    string // empty until the local service attaches
}
