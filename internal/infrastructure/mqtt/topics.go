package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "accessorhost"

// Port topic verbs.
const (
	VerbSet   = "set"
	VerbGet   = "get"
	VerbState = "state"
)

// Topics builds topic names under one prefix.
//
//	t := mqtt.NewTopics("home")
//	t.PortState("hall-bulb", "Power") // home/accessor/hall-bulb/port/Power/state
type Topics struct {
	Prefix string
}

// NewTopics returns builders for prefix, falling back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) port(id, port, verb string) string {
	return fmt.Sprintf("%s/accessor/%s/port/%s/%s", t.Prefix, id, port, verb)
}

// PortSet is the write command topic for one port.
func (t Topics) PortSet(id, port string) string { return t.port(id, port, VerbSet) }

// PortGet is the read request topic for one port.
func (t Topics) PortGet(id, port string) string { return t.port(id, port, VerbGet) }

// PortState is the retained output topic for one port.
func (t Topics) PortState(id, port string) string { return t.port(id, port, VerbState) }

// Ack is where write commands for id are acknowledged.
func (t Topics) Ack(id string) string {
	return fmt.Sprintf("%s/accessor/%s/ack", t.Prefix, id)
}

// Response is where the answer to read request requestID is published.
func (t Topics) Response(id, requestID string) string {
	return fmt.Sprintf("%s/accessor/%s/response/%s", t.Prefix, id, requestID)
}

// HostHealth is the periodic heartbeat topic.
func (t Topics) HostHealth() string {
	return t.Prefix + "/health/host"
}

// HostStatus carries the retained online/offline status and the LWT.
func (t Topics) HostStatus() string {
	return t.Prefix + "/host/status"
}

// AllPortSets matches every write command.
func (t Topics) AllPortSets() string {
	return t.Prefix + "/accessor/+/port/+/" + VerbSet
}

// AllPortGets matches every read request.
func (t Topics) AllPortGets() string {
	return t.Prefix + "/accessor/+/port/+/" + VerbGet
}

// ParsePort splits a port topic into accessor id, port name and verb.
func (t Topics) ParsePort(topic string) (id, port, verb string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/accessor/")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[1] != "port" || parts[0] == "" || parts[2] == "" {
		return "", "", "", false
	}
	switch parts[3] {
	case VerbSet, VerbGet, VerbState:
		return parts[0], parts[2], parts[3], true
	}
	return "", "", "", false
}
