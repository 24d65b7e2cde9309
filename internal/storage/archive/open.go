package archive

import (
	"fmt"

	"github.com/newthinker/alphalab/internal/core"
)

// Backend types accepted by Open.
const (
	TypeLocalFS = "localfs"
	TypeS3      = "s3"
)

// Open creates the backend named by typ.
func Open(typ, path string, s3cfg S3Config) (Storage, error) {
	switch typ {
	case TypeLocalFS:
		if path == "" {
			return nil, core.Errorf(core.ErrConfigMissing, "archive path required for localfs")
		}
		store, err := NewLocalFS(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case TypeS3:
		if s3cfg.Bucket == "" {
			return nil, core.Errorf(core.ErrConfigMissing, "s3 bucket required")
		}
		store, err := NewS3(s3cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive type %q", typ))
	}
}
