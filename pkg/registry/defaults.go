package registry

import (
	"github.com/loomery/loom/pkg/nodes/conditional"
	"github.com/loomery/loom/pkg/nodes/httprequest"
	lognode "github.com/loomery/loom/pkg/nodes/log"
	"github.com/loomery/loom/pkg/nodes/merge"
	switchnode "github.com/loomery/loom/pkg/nodes/switch"
	"github.com/loomery/loom/pkg/nodes/transform"
	"github.com/loomery/loom/pkg/nodes/trigger"
	"github.com/loomery/loom/pkg/nodes/wait"
)

// RegisterDefaultNodes installs the built-in node set. Registration is
// idempotent, so calling this more than once is harmless.
func RegisterDefaultNodes(registry *Registry) {
	registry.Register(trigger.NewWebhookTriggerNodeFactory())
	registry.Register(trigger.NewSchedulerTriggerNodeFactory())
	registry.Register(trigger.NewManualTriggerNodeFactory())
	registry.Register(httprequest.NewHTTPRequestNodeFactory())
	registry.Register(transform.NewTransformNodeFactory())
	registry.Register(lognode.NewLogNodeFactory())
	registry.Register(switchnode.NewSwitchNodeFactory())
	registry.Register(conditional.NewConditionalNodeFactory())
	registry.Register(merge.NewMergeNodeFactory())
	registry.Register(wait.NewWaitNodeFactory())
}
