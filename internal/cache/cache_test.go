package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare-appointment-server/internal/logger"
)

func TestFetchLoadsOnceUntilInvalidated(t *testing.T) {
	c, err := New(8, logger.Discard())
	require.NoError(t, err)

	loads := 0
	load := func() ([]string, error) {
		loads++
		return []string{"a", "b"}, nil
	}

	v, err := Fetch(c, Appointments, "all", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)

	_, err = Fetch(c, Appointments, "all", load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)

	c.Invalidate(Appointments)
	assert.Equal(t, 0, c.Len(Appointments))

	_, err = Fetch(c, Appointments, "all", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestInvalidateIsScopedToEntity(t *testing.T) {
	c, err := New(8, logger.Discard())
	require.NoError(t, err)

	_, _ = Fetch(c, Doctors, "all", func() (int, error) { return 1, nil })
	_, _ = Fetch(c, Patients, "all", func() (int, error) { return 2, nil })

	c.Invalidate(Patients)

	assert.Equal(t, 1, c.Len(Doctors))
	assert.Equal(t, 0, c.Len(Patients))
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	c, err := New(8, logger.Discard())
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = Fetch(c, Dashboard, "stats", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len(Dashboard))
}

func TestValueLoadedDuringInvalidationIsNotStored(t *testing.T) {
	c, err := New(8, logger.Discard())
	require.NoError(t, err)

	_, err = Fetch(c, Appointments, "all", func() (int, error) {
		c.Invalidate(Appointments)
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len(Appointments))
}

func TestNilCacheAlwaysLoads(t *testing.T) {
	var c *Cache
	loads := 0
	for i := 0; i < 3; i++ {
		_, err := Fetch(c, Appointments, "all", func() (int, error) {
			loads++
			return loads, nil
		})
		require.NoError(t, err)
	}
	c.Invalidate(Appointments)
	assert.Equal(t, 3, loads)
}
