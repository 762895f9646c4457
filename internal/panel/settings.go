/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package panel

import (
	"github.com/friendsincode/grimnir_panel/internal/events"
	"github.com/friendsincode/grimnir_panel/internal/models"
)

// SettingsPatch lists the settings to change. Nil fields are left alone.
type SettingsPatch struct {
	PauseOtherMedia   *bool `json:"pause_other_media"`
	ShowNotifications *bool `json:"show_notifications"`
	UseMediaSession   *bool `json:"use_media_session"`
}

// Settings returns the operator preferences.
func (p *Panel) Settings() models.PanelSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// UpdateSettings applies patch and persists the result.
func (p *Panel) UpdateSettings(patch SettingsPatch) (models.PanelSettings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return models.PanelSettings{}, err
	}

	next := p.settings
	if patch.PauseOtherMedia != nil {
		next.PauseOtherMedia = *patch.PauseOtherMedia
	}
	if patch.ShowNotifications != nil {
		next.ShowNotifications = *patch.ShowNotifications
	}
	if patch.UseMediaSession != nil {
		next.UseMediaSession = *patch.UseMediaSession
	}
	p.applySettings(next)
	p.persist()

	p.logger.Info().
		Bool("pause_other_media", next.PauseOtherMedia).
		Bool("show_notifications", next.ShowNotifications).
		Bool("use_media_session", next.UseMediaSession).
		Msg("settings updated")
	p.bus.Publish(events.EventSettingsChanged, events.Payload{"settings": next})
	return next, nil
}

func (p *Panel) applySettings(s models.PanelSettings) {
	p.settings = s
	p.coordinator.SetEnabled(s.PauseOtherMedia)
	p.session.SetEnabled(s.UseMediaSession)
}
