// Package transport routes bus addresses to the transport that serves them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

var ErrUnknownScheme = errors.New("unknown address scheme")

// Registry maps address schemes to dialers. Each Registry is independent; the
// CLI builds one per invocation from configuration.
type Registry struct {
	mu         sync.RWMutex
	dialers    map[string]messaging.Dialer
	publishers map[string]messaging.PublisherDialer
}

func NewRegistry() *Registry {
	return &Registry{
		dialers:    make(map[string]messaging.Dialer),
		publishers: make(map[string]messaging.PublisherDialer),
	}
}

// Register routes each scheme to d. When d also implements
// messaging.PublisherDialer it serves publishers for those schemes too.
func (r *Registry) Register(d messaging.Dialer, schemes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pd, canPublish := d.(messaging.PublisherDialer)
	for _, scheme := range schemes {
		scheme = strings.ToLower(scheme)
		r.dialers[scheme] = d
		if canPublish {
			r.publishers[scheme] = pd
		} else {
			delete(r.publishers, scheme)
		}
	}
}

// Dial implements messaging.Dialer by dispatching on the address scheme.
func (r *Registry) Dial(ctx context.Context, address, topic string) (messaging.Socket, error) {
	scheme, err := SchemeOf(address)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	d, ok := r.dialers[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownScheme, scheme, strings.Join(r.Schemes(), ", "))
	}
	return d.Dial(ctx, address, topic)
}

// DialPublisher implements messaging.PublisherDialer.
func (r *Registry) DialPublisher(ctx context.Context, address string) (messaging.Publisher, error) {
	scheme, err := SchemeOf(address)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	pd, ok := r.publishers[scheme]
	_, subscribable := r.dialers[scheme]
	r.mu.RUnlock()

	switch {
	case ok:
		return pd.DialPublisher(ctx, address)
	case subscribable:
		return nil, fmt.Errorf("%s: %w", scheme, messaging.ErrPublishUnsupported)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownScheme, scheme)
	}
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.dialers))
}

// SchemeOf returns the lower-cased scheme of an address such as tcp://host:port.
func SchemeOf(address string) (string, error) {
	scheme, _, ok := strings.Cut(address, "://")
	if !ok || scheme == "" {
		return "", fmt.Errorf("address %q: missing scheme", address)
	}
	return strings.ToLower(scheme), nil
}
