package cmis

import (
	"regexp"
	"sort"
	"strings"

	cmiserr "drccmis/pkg/errors"
)

// Template placeholders of the folder paths.
const (
	YearElement     = "{{ year }}"
	MonthElement    = "{{ month }}"
	DayElement      = "{{ day }}"
	ZaakTypeElement = "{{ zaaktype }}"
	ZaakElement     = "{{ zaak }}"
)

// RelatedDataFolder holds the oios and gebruiksrechten next to their document.
const RelatedDataFolder = "Related data"

// PathElement is one folder of a parsed path. ObjectType is set when the path
// element carries a "[type]" suffix.
type PathElement struct {
	FolderName string
	ObjectType string
}

// ElementTemplate is an allowed placeholder, optionally required.
type ElementTemplate struct {
	FolderName string
	Required   bool
}

// ZaakPathTemplates are the placeholders allowed in the zaak folder path.
var ZaakPathTemplates = []ElementTemplate{
	{FolderName: YearElement},
	{FolderName: MonthElement},
	{FolderName: DayElement},
	{FolderName: ZaakTypeElement, Required: true},
	{FolderName: ZaakElement, Required: true},
}

// OtherPathTemplates are the placeholders allowed in the other folder path.
var OtherPathTemplates = []ElementTemplate{
	{FolderName: YearElement},
	{FolderName: MonthElement},
	{FolderName: DayElement},
}

var folderPattern = regexp.MustCompile(`^([^\[]+)(\[[^\]]+\])?$`)

// ParseFolderPath splits a path such as
// "/DRC/{{ zaaktype }}[drc:zaaktypefolder]/{{ year }}" into its elements.
func ParseFolderPath(path string) ([]PathElement, error) {
	trimmed := strings.Trim(path, "/")
	var elements []PathElement
	for _, folder := range strings.Split(trimmed, "/") {
		if folder == "" {
			return nil, cmiserr.Errorf(cmiserr.ErrInvalidFolderPath,
				"empty path element found, check for double slashes")
		}
		match := folderPattern.FindStringSubmatch(folder)
		if match == nil {
			return nil, cmiserr.Errorf(cmiserr.ErrInvalidFolderPath, "invalid path element: %s", folder)
		}
		element := PathElement{FolderName: match[1]}
		if match[2] != "" {
			element.ObjectType = match[2][1 : len(match[2])-1]
		}
		elements = append(elements, element)
	}
	return elements, nil
}

// ValidateFolderPath checks that only allowed placeholders are used, that every
// required placeholder is present and that the path names at least one folder.
func ValidateFolderPath(path string, templates []ElementTemplate) error {
	elements, err := ParseFolderPath(path)
	if err != nil {
		return err
	}

	allowed := make(map[string]bool, len(templates))
	required := map[string]bool{}
	for _, tpl := range templates {
		allowed[tpl.FolderName] = true
		if tpl.Required {
			required[tpl.FolderName] = true
		}
	}

	for _, pe := range elements {
		if strings.Contains(pe.FolderName, "{{") && !allowed[pe.FolderName] {
			return cmiserr.Errorf(cmiserr.ErrInvalidFolderPath, "invalid templated path element: %s", pe.FolderName)
		}
		delete(required, pe.FolderName)
	}

	if len(required) > 0 {
		missing := make([]string, 0, len(required))
		for name := range required {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return cmiserr.Errorf(cmiserr.ErrInvalidFolderPath,
			"required path elements are missing: %s", strings.Join(missing, ", "))
	}

	if len(elements) == 0 {
		return cmiserr.Errorf(cmiserr.ErrInvalidFolderPath, "at minimum, one folder is required")
	}
	return nil
}

// ValidateZaakFolderPath validates the zaak folder path.
func ValidateZaakFolderPath(path string) error {
	return ValidateFolderPath(path, ZaakPathTemplates)
}

// ValidateOtherFolderPath validates the folder path of documents without zaak.
func ValidateOtherFolderPath(path string) error {
	return ValidateFolderPath(path, OtherPathTemplates)
}

// BaseFolderName is the first element of a folder path.
func BaseFolderName(path string) string {
	elements, err := ParseFolderPath(path)
	if err != nil || len(elements) == 0 {
		return ""
	}
	return elements[0].FolderName
}
