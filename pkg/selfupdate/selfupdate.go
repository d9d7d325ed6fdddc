// Package selfupdate keeps the boxkit install root current by pulling its
// git checkout.
package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// DefaultRemote is pulled when Updater.Remote is empty
const DefaultRemote = "origin"

// ErrNotCheckout is returned when the install root is not a git checkout
var ErrNotCheckout = errors.New("install root is not a git checkout")

// Updater pulls the checkout at Root from Remote.
type Updater struct {
	Root   string
	Remote string
}

// New returns an updater for the checkout at root.
func New(root, remote string) *Updater {
	return &Updater{Root: root, Remote: remote}
}

// Update fast-forwards the checkout and makes everything under bin/
// executable again. An already current checkout is not an error.
func (u *Updater) Update(ctx context.Context) error {
	repo, err := git.PlainOpen(u.Root)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return fmt.Errorf("%w: %s", ErrNotCheckout, u.Root)
		}
		return fmt.Errorf("failed to open %s: %w", u.Root, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}

	remote := u.Remote
	if remote == "" {
		remote = DefaultRemote
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: remote})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull %s: %w", remote, err)
	}

	return u.fixPermissions()
}

func (u *Updater) fixPermissions() error {
	binDir := filepath.Join(u.Root, "bin")
	entries, err := os.ReadDir(binDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", binDir, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(binDir, entry.Name())
		if err := os.Chmod(path, 0755); err != nil {
			return fmt.Errorf("failed to make %s executable: %w", path, err)
		}
	}
	return nil
}
