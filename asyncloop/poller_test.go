package asyncloop

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_RegisterUnregisterBookkeeping(t *testing.T) {
	p := newPoller()
	require.NoError(t, p.Init())
	defer p.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())
	require.NoError(t, p.RegisterFD(fd, EventRead, func(IOEvents) {}))
	assert.Equal(t, 1, p.Pending())

	err = p.RegisterFD(fd, EventRead, func(IOEvents) {})
	assert.ErrorIs(t, err, ErrFDAlreadyRegistered)

	require.NoError(t, p.UnregisterFD(fd))
	assert.Equal(t, 0, p.Pending())

	err = p.UnregisterFD(fd)
	assert.ErrorIs(t, err, ErrFDNotRegistered)
}

func TestPoller_PollIOErrorsAfterClose(t *testing.T) {
	p := newPoller()
	require.NoError(t, p.Init())
	require.NoError(t, p.Close())

	_, err := p.PollIO(0)
	assert.ErrorIs(t, err, ErrPollerClosed)
}
