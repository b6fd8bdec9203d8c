package launcher

import (
	"errors"

	"github.com/danmuck/apptree/internal/app"
	"github.com/danmuck/apptree/internal/config"
)

// Root is the MAIN node. It has no behavior of its own; its children are
// the user apps.
type Root struct {
	app.Base
}

func newRoot() app.App { return &Root{} }

func init() {
	app.Register(config.LauncherPath, newRoot)
}

// ensureRoot makes the root resolvable in registries other than the default.
func ensureRoot(r *app.Registry) error {
	if err := r.Register(config.LauncherPath, newRoot); err != nil && !errors.Is(err, app.ErrDuplicatePath) {
		return err
	}
	return nil
}
