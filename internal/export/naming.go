package export

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"asseto/internal/domain"
)

// UncategorizedFolder holds items whose section no longer exists.
const UncategorizedFolder = "Uncategorized"

const untitled = "untitled"

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Sanitize maps a display name onto a file-system safe token: accents are
// folded, every run of other non-alphanumeric characters becomes a single
// underscore and leading or trailing underscores are dropped.
func Sanitize(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	out := strings.Trim(nonAlnum.ReplaceAllString(folded, "_"), "_")
	if out == "" {
		return untitled
	}
	return out
}

// ArchiveName is the name of a full project export.
func ArchiveName(project string) string {
	return Sanitize(project) + "_assets.zip"
}

// SectionArchiveName is the name of a single-section export.
func SectionArchiveName(section string, format domain.ExportFormat) string {
	return fmt.Sprintf("%s_%s.zip", Sanitize(section), format.Extension())
}

// FileName is the name of the index-th (1-based) file of a section folder.
func FileName(project, folder string, index int, format domain.ExportFormat) string {
	return fmt.Sprintf("%s_%s_%d.%s", Sanitize(project), folder, index, format.Extension())
}

// SingleFileName is the name of an individually downloaded image.
func SingleFileName(imageID string, format domain.ExportFormat) string {
	return fmt.Sprintf("asset_%s.%s", imageID, format.Extension())
}

// folderNamer hands out unique folder names in call order. A name already
// taken gets a numeric suffix starting at 2.
type folderNamer struct {
	used map[string]bool
}

func newFolderNamer() *folderNamer {
	return &folderNamer{used: map[string]bool{}}
}

func (n *folderNamer) next(display string) string {
	name := Sanitize(display)
	for k := 2; n.used[name]; k++ {
		name = fmt.Sprintf("%s_%d", Sanitize(display), k)
	}
	n.used[name] = true
	return name
}
