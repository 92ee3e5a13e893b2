package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashCommandDefaults(t *testing.T) {
	c := NewHashCommand()
	assert.Equal(t, 128, c.numPerm)
}

func TestRunHashRequiresInput(t *testing.T) {
	c := NewHashCommand()
	c.minhashDir = "./mh"
	cmd := c.CreateCobraCommand()
	err := c.runHash(cmd, nil)
	assert.Error(t, err)
}

func TestRunHashRequiresMinhashDir(t *testing.T) {
	c := NewHashCommand()
	c.input = "./corpus"
	cmd := c.CreateCobraCommand()
	err := c.runHash(cmd, nil)
	assert.Error(t, err)
}

func TestRunHashRejectsInvalidNumPerm(t *testing.T) {
	c := NewHashCommand()
	c.input = "./corpus"
	c.minhashDir = "./mh"
	c.numPerm = 0
	cmd := c.CreateCobraCommand()
	err := c.runHash(cmd, nil)
	assert.Error(t, err)
}

func TestCreateCobraCommandRegistersHashFlags(t *testing.T) {
	c := NewHashCommand()
	cmd := c.CreateCobraCommand()

	for _, name := range []string{"name", "input", "minhash-dir", "num-perm"} {
		assert.NotNil(t, cmd.Flags().Lookup(name))
	}
}
