// Package bootstrap loads the optional bridge bootstrap file: the application name and version,
// NATS subject overrides and the receivers to relay to remote native services.
package bootstrap

import "sort"

// Relay declares one tag whose calls are forwarded over NATS.
type Relay struct {
	// Subject overrides bridge.receiver.<tag>.
	Subject     string   `json:"subject,omitempty"`
	Description string   `json:"description,omitempty"`
	Methods     []string `json:"methods,omitempty"`
}

// Subjects overrides the bridge's NATS subjects. Empty fields keep the defaults.
type Subjects struct {
	Inbound  string `json:"inbound,omitempty"`
	Outbound string `json:"outbound,omitempty"`
	Script   string `json:"script,omitempty"`
	Journal  string `json:"journal,omitempty"`
}

// BootstrapConfig is the root bootstrap configuration.
type BootstrapConfig struct {
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Description string           `json:"description,omitempty"`
	Subjects    Subjects         `json:"subjects"`
	Relays      map[string]Relay `json:"relays"`
}

// ResolvedBootstrap is an immutable, lookup-friendly view of a BootstrapConfig.
type ResolvedBootstrap struct {
	name     string
	version  string
	subjects Subjects
	relays   map[string]*Relay
}

// Relay returns the relay declared for tag, or nil.
func (rb *ResolvedBootstrap) Relay(tag string) *Relay {
	return rb.relays[tag]
}

// RelayTags returns every declared relay tag, sorted.
func (rb *ResolvedBootstrap) RelayTags() []string {
	tags := make([]string, 0, len(rb.relays))
	for tag := range rb.relays {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Subjects returns the subject overrides.
func (rb *ResolvedBootstrap) Subjects() Subjects {
	return rb.subjects
}

func (rb *ResolvedBootstrap) Name() string {
	return rb.name
}

func (rb *ResolvedBootstrap) Version() string {
	return rb.version
}
