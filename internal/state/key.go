package state

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/grovetools/studio/util/pathutil"
)

// projectKeyLen is the fixed width of a project key in hex characters.
const projectKeyLen = 16

// ProjectKey derives the stable key used to isolate a project's persisted
// records. The path is canonicalized first so that symlinked or
// case-variant spellings of the same directory always map to one key. The
// key is computed once at OpenProject and carried on the Project; nothing
// else recomputes it.
func ProjectKey(path string) (string, error) {
	canonical, err := pathutil.NormalizeForLookup(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:projectKeyLen], nil
}
