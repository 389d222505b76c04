package cnst

// Protocol methods the client core itself issues or reacts to
const (
	MethodAttachToTarget    = "Target.attachToTarget"
	MethodDetachFromTarget  = "Target.detachFromTarget"
	EventAttachedToTarget   = "Target.attachedToTarget"
	EventDetachedFromTarget = "Target.detachedFromTarget"
	MethodBrowserGetVersion = "Browser.getVersion"
	MethodTargetGetTargets  = "Target.getTargets"
)
