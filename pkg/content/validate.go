package content

import (
	"errors"
	"fmt"
)

// ValidateScene checks the authoring rules a scene must satisfy to be played.
// A scene with no dialogue, no choices, and no next scene is a dead end and is
// rejected here rather than stranding the player at runtime. Choices are shown
// on the last dialogue line, so a scene with choices needs at least one line.
func ValidateScene(s *Scene) error {
	var errs []error

	if len(s.Dialogue) == 0 && !s.HasChoices() && s.NextScene == "" {
		errs = append(errs, errors.New("scene has no dialogue, no choices, and no nextScene"))
	}
	if len(s.Dialogue) == 0 && s.HasChoices() {
		errs = append(errs, errors.New("scene has choices but no dialogue to show them on"))
	}

	for i, c := range s.Choices {
		if c.NextScene == "" {
			errs = append(errs, fmt.Errorf("choice %d (%q) has no nextScene", i, c.Text))
		}
	}

	for i, sprite := range s.Characters {
		if sprite.ID == "" {
			errs = append(errs, fmt.Errorf("character sprite %d has no id", i))
		}
		if sprite.Position != "" && !sprite.Position.Valid() {
			errs = append(errs, fmt.Errorf("character sprite %s has invalid position %q", sprite.ID, sprite.Position))
		}
	}

	return errors.Join(errs...)
}
