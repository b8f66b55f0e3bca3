package member

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// instanceIDFilePrefix matches spec.md §6.5's `.<instance_id_filename>`
// naming: a single dotfile holding the generated instance id, created
// on first start and never overwritten.
const instanceIDFilePrefix = ".netring_instance_id"

// LoadOrCreateInstanceID returns the persisted instance id under dir,
// generating and persisting a new one on first start. configured, if
// non-empty, is used verbatim and persisted instead of a generated
// uuid — this lets an operator pin an instance id via config without
// disturbing the persistence contract.
func LoadOrCreateInstanceID(dir, configured string) (string, error) {
	path := filepath.Join(dir, instanceIDFilePrefix)

	existing, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(existing))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read instance id file %s: %w", path, err)
	}

	id := configured
	if id == "" {
		id = uuid.NewString()
	}

	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write instance id file %s: %w", path, err)
	}
	return id, nil
}
