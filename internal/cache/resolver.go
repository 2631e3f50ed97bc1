// Package cache maps study configurations to stable directories and owns the
// on-disk layout of simulation chunks, indices and derived artifacts.
package cache

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/sells-group/lca-gsa/internal/model"
)

// FingerprintPolicy selects how a StudyConfig is normalized before hashing.
type FingerprintPolicy string

const (
	// PolicyStrict hashes every field value, so configurations differing in any field
	// land in different directories.
	PolicyStrict FingerprintPolicy = "strict"
	// PolicyLegacy reproduces the directory names of the first dashboard release: the
	// method contributes only its length, and the fields form the blake2b key of an
	// empty message. Methods with equal-length names share a directory.
	PolicyLegacy FingerprintPolicy = "legacy"
)

const (
	digestSize   = 8
	strictDomain = "gsa/study/v1"
	metadataFile = "metadata.json"
)

// ParsePolicy validates a policy name. The empty string selects PolicyStrict.
func ParsePolicy(s string) (FingerprintPolicy, error) {
	switch FingerprintPolicy(strings.ToLower(s)) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyLegacy:
		return PolicyLegacy, nil
	default:
		return "", eris.Errorf("cache: unknown fingerprint policy %q", s)
	}
}

// Fingerprint returns the hex digest naming the study directory.
func Fingerprint(study model.StudyConfig, policy FingerprintPolicy) (string, error) {
	switch policy {
	case PolicyLegacy:
		key := strings.Join([]string{
			study.Project,
			study.Database,
			strconv.Itoa(len(study.Method)),
			study.Activity,
			study.AmountString(),
		}, ";")
		if len(key) > blake2b.Size {
			return "", eris.Errorf("cache: legacy fingerprint key is %d bytes, limit is %d", len(key), blake2b.Size)
		}
		h, err := blake2b.New(digestSize, []byte(key))
		if err != nil {
			return "", eris.Wrap(err, "cache: legacy fingerprint")
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	case PolicyStrict, "":
		h, err := blake2b.New(digestSize, nil)
		if err != nil {
			return "", eris.Wrap(err, "cache: strict fingerprint")
		}
		h.Write([]byte(strictDomain))
		for _, field := range []string{
			study.Project,
			study.Database,
			study.Method,
			study.Activity,
			study.AmountString(),
		} {
			h.Write([]byte{0x00})
			h.Write([]byte(field))
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		return "", eris.Errorf("cache: unknown fingerprint policy %q", policy)
	}
}

// Resolver maps studies to directories under a root.
type Resolver struct {
	root   string
	policy FingerprintPolicy
}

// NewResolver creates a resolver rooted at root.
func NewResolver(root string, policy FingerprintPolicy) *Resolver {
	return &Resolver{root: root, policy: policy}
}

// Root returns the cache root.
func (r *Resolver) Root() string { return r.root }

// Resolve creates (idempotently) the study directory and rewrites its metadata file.
func (r *Resolver) Resolve(study model.StudyConfig) (StudyDir, error) {
	name, err := Fingerprint(study, r.policy)
	if err != nil {
		return StudyDir{}, err
	}

	dir := StudyDir{Path: filepath.Join(r.root, name), Study: study}
	if err := os.MkdirAll(dir.Path, 0o755); err != nil {
		return StudyDir{}, eris.Wrapf(err, "cache: create %s", dir.Path)
	}
	if err := WriteJSON(dir.MetadataPath(), study); err != nil {
		return StudyDir{}, err
	}

	zap.L().Debug("resolved study directory",
		zap.String("component", "cache.resolver"),
		zap.String("dir", dir.Path),
		zap.String("policy", string(r.policy)),
	)
	return dir, nil
}

// LoadStudyDir reopens an existing study directory from its metadata file.
func LoadStudyDir(path string) (StudyDir, error) {
	var study model.StudyConfig
	if err := ReadJSON(filepath.Join(path, metadataFile), &study); err != nil {
		return StudyDir{}, err
	}
	return StudyDir{Path: path, Study: study}, nil
}
