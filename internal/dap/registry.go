/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dapkit/dapkit/pkg/syncmap"
)

// KindLookup classifies the kind of session request a scenario will issue.
// The session notifier consumes this as an opaque collaborator.
type KindLookup interface {
	RequestKind(ctx context.Context, scenario Scenario) (RequestKind, error)
}

// Registry maps adapter names to their launch configuration and request
// classification. It is an explicit collaborator handed to the components
// that need it; there is no process-wide instance.
type Registry struct {
	adapters syncmap.Map[string, *AdapterConfig]
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds or replaces the configuration for config.Name.
func (r *Registry) Register(config *AdapterConfig) {
	r.adapters.Store(config.Name, config)
}

// Lookup returns the configuration registered under name.
func (r *Registry) Lookup(name string) (*AdapterConfig, bool) {
	return r.adapters.Load(name)
}

// Names returns the registered adapter names.
func (r *Registry) Names() []string {
	var names []string
	r.adapters.Range(func(name string, _ *AdapterConfig) bool {
		names = append(names, name)
		return true
	})
	return names
}

// RequestKind classifies the request the scenario will issue: the
// scenario's own "request" configuration field wins, otherwise the
// adapter's default applies.
func (r *Registry) RequestKind(_ context.Context, scenario Scenario) (RequestKind, error) {
	config, found := r.Lookup(scenario.Adapter)
	if !found {
		return "", fmt.Errorf("unknown debug adapter %q", scenario.Adapter)
	}

	if len(scenario.Config) > 0 {
		var scenarioConfig struct {
			Request string `json:"request"`
		}
		if unmarshalErr := json.Unmarshal(scenario.Config, &scenarioConfig); unmarshalErr == nil {
			switch RequestKind(scenarioConfig.Request) {
			case RequestKindLaunch:
				return RequestKindLaunch, nil
			case RequestKindAttach:
				return RequestKindAttach, nil
			}
		}
	}

	if config.DefaultKind != "" {
		return config.DefaultKind, nil
	}
	return RequestKindLaunch, nil
}
