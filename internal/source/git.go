package source

import (
	"context"
	"io"

	"github.com/go-git/go-git/v5"
)

// GitCloner clones with go-git, so no git binary is needed on the host.
type GitCloner struct {
	Depth    int // 0 clones full history
	Progress io.Writer
}

func (g GitCloner) Clone(ctx context.Context, url, dir string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		Depth:        g.Depth,
		SingleBranch: true,
		Tags:         git.NoTags,
		Progress:     g.Progress,
	})
	return err
}
