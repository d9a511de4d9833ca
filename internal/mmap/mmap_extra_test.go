package mmap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMmap_Advise(t *testing.T) {
	f, err := os.CreateTemp("", "mmaptest")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	size := 1024
	_, err = f.Write(make([]byte, size))
	require.NoError(t, err)
	f.Close()

	m, err := Open(f.Name())
	require.NoError(t, err)

	err = m.Advise(AccessRandom)
	require.NoError(t, err)

	err = m.Close()
	require.NoError(t, err)

	assert.Error(t, m.Advise(AccessDefault))
}

func TestMmap_AfterClose(t *testing.T) {
	f, _ := os.CreateTemp("", "mmaptest2")
	defer os.Remove(f.Name())
	f.Write([]byte("data"))
	f.Close()

	m, _ := Open(f.Name())
	m.Close()

	assert.Nil(t, m.Bytes())
	assert.Error(t, m.Advise(AccessRandom))
}
