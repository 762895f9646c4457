/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

// PanelSettings are the operator toggles for media coordination.
type PanelSettings struct {
	PauseOtherMedia   bool `json:"pause_other_media"`
	ShowNotifications bool `json:"show_notifications"`
	UseMediaSession   bool `json:"use_media_session"`
}
