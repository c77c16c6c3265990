package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaultUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	f := Wrap(ErrStorageFault, "boltstore.PutLeaf", inner)

	assert.True(t, errors.Is(f, ErrStorageFault))
	assert.Contains(t, f.Error(), "boltstore.PutLeaf")
	assert.Contains(t, f.Error(), "disk full")
}

func TestFatalClassification(t *testing.T) {
	assert.True(t, Fatal(ErrRootDivergence))
	assert.True(t, Fatal(Wrap(ErrConfiguration, "config.Load", nil)))
	assert.False(t, Fatal(ErrSubmission))
	assert.False(t, Fatal(Wrap(ErrAccountsUpdate, "writerpool.upsertAccount", nil)))
}
