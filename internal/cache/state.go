package cache

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ErrCorruptChunk marks a chunk whose score file exists without its sample file.
var ErrCorruptChunk = eris.New("cache: corrupt chunk")

// ChunkState is the persisted lifecycle of one chunk.
//
// Samples are renamed into place before scores, so the score file is always the
// last artifact of a chunk to appear.
type ChunkState int

const (
	// ChunkPending has no artifacts.
	ChunkPending ChunkState = iota
	// ChunkWriting has samples or temp files but no scores: an interrupted write.
	ChunkWriting
	// ChunkComplete has both scores and samples.
	ChunkComplete
	// ChunkCorrupt has scores without samples and must be purged.
	ChunkCorrupt
)

func (s ChunkState) String() string {
	switch s {
	case ChunkPending:
		return "pending"
	case ChunkWriting:
		return "writing"
	case ChunkComplete:
		return "complete"
	case ChunkCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// ChunkState inspects the artifacts of chunk i.
func (r RunDir) ChunkState(i int) (ChunkState, error) {
	hasY, err := Exists(r.YPath(i))
	if err != nil {
		return ChunkPending, err
	}
	hasX, err := Exists(r.XPath(i))
	if err != nil {
		return ChunkPending, err
	}

	switch {
	case hasY && hasX:
		return ChunkComplete, nil
	case hasY:
		return ChunkCorrupt, nil
	case hasX:
		return ChunkWriting, nil
	}

	temps, err := r.chunkTemps(i)
	if err != nil {
		return ChunkPending, err
	}
	if len(temps) > 0 {
		return ChunkWriting, nil
	}
	return ChunkPending, nil
}

// PurgeChunk removes every artifact of chunk i, returning it to ChunkPending.
func (r RunDir) PurgeChunk(i int) error {
	paths := []string{r.YPath(i), r.XPath(i)}
	temps, err := r.chunkTemps(i)
	if err != nil {
		return err
	}
	for _, p := range append(paths, temps...) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "cache: purge %s", p)
		}
	}
	return nil
}

func (r RunDir) chunkTemps(i int) ([]string, error) {
	var out []string
	for _, p := range []string{r.YPath(i), r.XPath(i)} {
		matches, err := filepath.Glob(p + ".*.tmp")
		if err != nil {
			return nil, eris.Wrap(err, "cache: glob temp files")
		}
		out = append(out, matches...)
	}
	return out, nil
}
