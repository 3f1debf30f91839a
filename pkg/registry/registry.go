// Package registry implements the tag registry that maps each tag to exactly one receiver.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/morezero/native-bridge/pkg/protocol"
)

const logPrefix = "registry:registry"

// Receiver handles inbound calls addressed to its tag. Receive runs on a worker, never on the
// script-owning loop, and may block.
type Receiver interface {
	Receive(ctx context.Context, method string, callbackID int, args protocol.Args)
}

// ReceiverFunc adapts a function to a Receiver.
type ReceiverFunc func(ctx context.Context, method string, callbackID int, args protocol.Args)

// Receive calls f.
func (f ReceiverFunc) Receive(ctx context.Context, method string, callbackID int, args protocol.Args) {
	f(ctx, method, callbackID, args)
}

// Registry maps tags to receivers. A tag is bound to at most one receiver; a binding is never
// replaced while it exists.
type Registry struct {
	mu        sync.RWMutex
	receivers map[string]Receiver
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{receivers: make(map[string]Receiver)}
}

// Register binds receiver to tag. It returns false, leaving the registry unchanged, when the
// tag is empty, the receiver is nil or the tag is already taken.
func (r *Registry) Register(tag string, receiver Receiver) bool {
	if tag == "" || receiver == nil {
		slog.Error(fmt.Sprintf("%s - Register rejected: tag and receiver are required", logPrefix))
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.receivers[tag]; exists {
		err := protocol.NewError(protocol.CodeDuplicateTag,
			fmt.Sprintf("a receiver is already registered with tag '%s'", tag), nil)
		slog.Error(fmt.Sprintf("%s - %v", logPrefix, err))
		return false
	}
	r.receivers[tag] = receiver
	slog.Debug(fmt.Sprintf("%s - Registered receiver tag=%s", logPrefix, tag))
	return true
}

// Lookup returns the receiver bound to tag.
func (r *Registry) Lookup(tag string) (Receiver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.receivers[tag]
	return rec, ok
}

// Unregister frees tag. It reports whether a receiver was bound.
func (r *Registry) Unregister(tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.receivers[tag]; !ok {
		return false
	}
	delete(r.receivers, tag)
	slog.Debug(fmt.Sprintf("%s - Unregistered receiver tag=%s", logPrefix, tag))
	return true
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	tags := make([]string, 0, len(r.receivers))
	for tag := range r.receivers {
		tags = append(tags, tag)
	}
	r.mu.RUnlock()
	sort.Strings(tags)
	return tags
}

// Len returns the number of registered receivers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.receivers)
}
