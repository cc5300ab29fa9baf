package stages

import (
	"git.home.luguber.info/inful/litebuilder/internal/config"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
)

// ShouldPublish evaluates the deploy gate: the triggering event type and
// branch must both match the configured gate. Stage ordering already
// guarantees the build succeeded when this executes.
func ShouldPublish(trigger pipeline.Trigger, deploy config.DeployConfig) bool {
	if deploy.Event != "" && trigger.Event != deploy.Event {
		return false
	}
	if deploy.Branch != "" && trigger.Branch != deploy.Branch {
		return false
	}
	return true
}
