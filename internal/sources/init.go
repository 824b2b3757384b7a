package sources

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultBuildWake is the seed file `wake --init DIR` writes: just enough
// for a first build to succeed and for a user to see the shape of a Wake
// program.
const defaultBuildWake = `# Generated by wake --init.
publish target = Cons "hello" Nil
`

// Init scaffolds a new workspace at dir: creates the directory
// if needed and writes build.wake with the defaultBuildWake seed, refusing to overwrite an
// existing one or an existing wake.db (a workspace is initialized once;
// re-running --init on a live one is almost certainly a mistake, not an
// intentional reset).
func Init(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sources: creating workspace %q: %w", dir, err)
	}

	buildPath := filepath.Join(dir, "build.wake")
	if _, err := os.Stat(buildPath); err == nil {
		return fmt.Errorf("sources: %q already exists, refusing to overwrite", buildPath)
	}
	dbPath := filepath.Join(dir, "wake.db")
	if _, err := os.Stat(dbPath); err == nil {
		return fmt.Errorf("sources: %q already exists; this workspace is already initialized", dbPath)
	}

	if err := os.WriteFile(buildPath, []byte(defaultBuildWake), 0o644); err != nil {
		return fmt.Errorf("sources: writing %q: %w", buildPath, err)
	}
	return nil
}
