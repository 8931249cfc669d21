// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"github.com/xrruntime/compositor/internal/xrerr"
	"github.com/xrruntime/compositor/layer"
)

// FormFactor selects the kind of device a System queries properties
// for (spec §6 "System: select (by form factor)").
type FormFactor int

const (
	FormFactorHMD FormFactor = iota
	FormFactorHandheldDisplay
)

// ViewConfiguration names a stereo or mono rendering configuration.
type ViewConfiguration int

const (
	ViewConfigurationStereo ViewConfiguration = iota
	ViewConfigurationMono
)

// SystemProperties is what GetSystemProperties reports (spec §6 "query
// properties (views, blend modes, tracking capabilities, hand-tracking
// flag)").
type SystemProperties struct {
	FormFactor           FormFactor
	SupportedBlendModes  []layer.BlendMode
	ViewConfigurations   []ViewConfiguration
	HandTrackingSupported bool
	PositionTrackingOnly  bool
}

// System is a resolved form factor plus its static properties (spec §6
// "System: select (by form factor)").
type System struct {
	formFactor FormFactor
	props      SystemProperties
}

// defaultSystemProperties reports this compositor's fixed capability
// set: stereo and mono view configurations (mono only for
// FormFactorHandheldDisplay), opaque/additive/alpha-blend environment blend
// modes, no hand tracking (spec §1 Non-goals: input binding is out of
// scope, so hand-tracking flags always report unsupported).
func defaultSystemProperties(ff FormFactor) SystemProperties {
	if ff == FormFactorHandheldDisplay {
		return SystemProperties{
			FormFactor:          ff,
			SupportedBlendModes: []layer.BlendMode{layer.BlendOpaque, layer.BlendAdditive, layer.BlendAlphaBlend},
			ViewConfigurations:  []ViewConfiguration{ViewConfigurationMono},
		}
	}
	return SystemProperties{
		FormFactor:          ff,
		SupportedBlendModes: []layer.BlendMode{layer.BlendOpaque, layer.BlendAdditive, layer.BlendAlphaBlend},
		ViewConfigurations:  []ViewConfiguration{ViewConfigurationStereo, ViewConfigurationMono},
	}
}

// GetSystem selects a System by form factor. Only FormFactorHMD is
// currently backed by a presentation target implementation;
// FormFactorHandheldDisplay resolves but its view configuration is
// mono-only.
func (inst *Instance) GetSystem(ff FormFactor) (*System, error) {
	switch ff {
	case FormFactorHMD, FormFactorHandheldDisplay:
		return &System{formFactor: ff, props: defaultSystemProperties(ff)}, nil
	default:
		return nil, xrerr.New(xrerr.KindEnvironmentUnsupported, "compositor: unknown form factor")
	}
}

// Properties returns the system's static properties.
func (s *System) Properties() SystemProperties { return s.props }

// FormFactor reports which form factor this System resolved to.
func (s *System) FormFactor() FormFactor { return s.formFactor }
