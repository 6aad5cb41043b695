package template

import (
	"os"

	"github.com/oh-clever/arcana/errs"
	"github.com/oh-clever/arcana/input"
)

// openTemplate opens path as a template Input, translating a missing-file
// failure into errs.KindBadPath rather than the generic KindIoFailure
// Input.FromFile raises, since call/compile/extend name a file that is
// always expected to exist (unlike path/dirname/basename's own distinct
// existence check, see tags_path.go).
func openTemplate(path string) (*input.Input, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errs.Newf(errs.KindBadPath, "%s: %v", path, err)
	}
	return input.FromFile(path)
}
