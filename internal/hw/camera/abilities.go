package camera

import (
	"strings"

	"github.com/cjeanneret/GoPhoto/internal/hw/gphoto2"
)

// Ability names as printed by gphoto2 --abilities, upper-cased.
const (
	abilityModel            = "ABILITIES FOR CAMERA"
	abilityCaptureChoices   = "CAPTURE CHOICES"
	abilityConfiguration    = "CONFIGURATION SUPPORT"
	abilityDeleteSelected   = "DELETE SELECTED FILES ON CAMERA"
	abilityDeleteAll        = "DELETE ALL FILES ON CAMERA"
	abilityThumbnailPreview = "FILE PREVIEW (THUMBNAIL) SUPPORT"
	abilityFileUpload       = "FILE UPLOAD SUPPORT"
)

// Abilities is what the camera driver reports it can do. It is read once
// when the Camera is created and never changes afterwards.
type Abilities struct {
	Model string `json:"model,omitempty"`

	CanCaptureImages   bool `json:"can_capture_images"`
	CanCapturePreviews bool `json:"can_capture_previews"`
	CanBeConfigured    bool `json:"can_be_configured"`
	CanDeleteFiles     bool `json:"can_delete_files"`
	CanDeleteAllFiles  bool `json:"can_delete_all_files"`
	CanPreviewFiles    bool `json:"can_preview_files"`
	CanUploadFiles     bool `json:"can_upload_files"`

	// Raw maps each upper-cased ability name to its upper-cased values.
	Raw map[string][]string `json:"raw"`
}

// Has reports whether the ability name lists value. Both are matched case-insensitively.
func (a Abilities) Has(name, value string) bool {
	value = strings.ToUpper(value)
	for _, v := range a.Raw[strings.ToUpper(name)] {
		if v == value {
			return true
		}
	}
	return false
}

// ParseAbilities parses the "name : value" table printed by gphoto2
// --abilities. A line with an empty name adds another value to the
// previous ability, lines without exactly one colon are skipped.
func ParseAbilities(text string) (Abilities, error) {
	a := Abilities{Raw: make(map[string][]string)}
	var current, model string

	for _, line := range splitLines(text) {
		parts := strings.Split(line, ":")
		if len(parts) != 2 {
			continue
		}
		name := strings.ToUpper(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch {
		case name != "":
			current = name
			if _, seen := a.Raw[name]; !seen {
				a.Raw[name] = nil
			}
			if name == abilityModel {
				model = value
			}
		case current == "":
			continue
		}
		if value != "" {
			a.Raw[current] = append(a.Raw[current], strings.ToUpper(value))
		}
	}

	if len(a.Raw) == 0 {
		return Abilities{}, &gphoto2.ParseError{What: "abilities", Reason: "no ability lines found"}
	}

	a.Model = model
	a.CanCaptureImages = a.Has(abilityCaptureChoices, "IMAGE")
	a.CanCapturePreviews = a.Has(abilityCaptureChoices, "PREVIEW")
	a.CanBeConfigured = a.Has(abilityConfiguration, "YES")
	a.CanDeleteFiles = a.Has(abilityDeleteSelected, "YES")
	a.CanDeleteAllFiles = a.Has(abilityDeleteAll, "YES")
	a.CanPreviewFiles = a.Has(abilityThumbnailPreview, "YES")
	a.CanUploadFiles = a.Has(abilityFileUpload, "YES")
	return a, nil
}
