package memory

import "github.com/pkg/errors"

var errDuplicate = errors.New("duplicate key value violates unique constraint")
