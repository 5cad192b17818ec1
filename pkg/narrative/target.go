package narrative

import "github.com/jwebster45206/novel-engine/pkg/content"

// SceneTarget is where a transition goes: either a scene loaded from content or
// the action context of the current map location.
type SceneTarget struct {
	sceneID       string
	actionContext bool
}

// Scene targets the scene with the given id.
func Scene(id string) SceneTarget {
	return SceneTarget{sceneID: id}
}

// EnterActionContext leaves the novel for the current location's action menu.
var EnterActionContext = SceneTarget{actionContext: true}

// ParseTarget maps a scene id from content to a target. The content sentinel
// "action_menu" becomes EnterActionContext.
func ParseTarget(id string) SceneTarget {
	if id == content.ActionMenuSceneID {
		return EnterActionContext
	}
	return Scene(id)
}

// IsActionContext reports whether the target leaves the novel.
func (t SceneTarget) IsActionContext() bool {
	return t.actionContext
}

// SceneID is the target scene id, empty for EnterActionContext.
func (t SceneTarget) SceneID() string {
	return t.sceneID
}

func (t SceneTarget) String() string {
	if t.actionContext {
		return "<action context>"
	}
	return t.sceneID
}
