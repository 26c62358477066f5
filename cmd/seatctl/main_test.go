package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-seating-api/internal/app"
)

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "seatctl version "+Version+"\n", out.String())
}

func TestParseStudentIDs(t *testing.T) {
	ids, err := parseStudentIDs(strings.NewReader("s1\n\n# transfer students\n  s2  \ns3\n"))

	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids)
}

func TestSeedRequiresStudents(t *testing.T) {
	opened := false
	cmd := seedCmd(func(ctx context.Context, migrate bool) (*app.App, error) {
		opened = true
		return nil, errors.New("unreachable")
	})
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no student ids")
	assert.False(t, opened)
}

func TestOpenFailureIsReturned(t *testing.T) {
	var migrated bool
	cmd := migrateCmd(func(ctx context.Context, migrate bool) (*app.App, error) {
		migrated = migrate
		return nil, errors.New("connection refused")
	})
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, migrated)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProvisionRequiresCount(t *testing.T) {
	cmd := provisionCmd(func(ctx context.Context, migrate bool) (*app.App, error) {
		return nil, errors.New("unreachable")
	})
	cmd.SetArgs([]string{"--start", "1"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count")
}
