package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestRoot_SuggestsUnknownCommand(t *testing.T) {
	req := require.New(t)
	err := run("histroy")
	req.ErrorContains(err, "unknown command")
	req.ErrorContains(err, "Did you mean this?")
	req.ErrorContains(err, "history")
}

func TestPageArg(t *testing.T) {
	req := require.New(t)
	req.Equal(1, pageArg([]string{"Steve"}, 1).Number)

	p := pageArg([]string{"Steve", "3"}, 1)
	req.Equal(3, p.Number)
	req.Equal(20, p.Offset())

	for _, low := range []string{"0", "-1", "two"} {
		p = pageArg([]string{"Steve", low}, 1)
		req.Equal(1, p.Number, low)
		req.Equal(0, p.Offset(), low)
	}
}

func TestCommands_AgainstSQLite(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yml")
	req.NoError(os.WriteFile(file, []byte(fmt.Sprintf("server:\n  name: survival\n  data_dir: %s\n", dir)), 0644))

	req.NoError(run("--config", file, "migrate"))
	req.NoError(run("--config", file, "test"))
	req.NoError(run("--config", file, "search", "TEST"))
	req.NoError(run("--config", file, "search", "TEST", "0"))
	req.NoError(run("--config", file, "stats"))
	req.NoError(run("--config", file, "purge", "--older-than", "30d"))
	req.FileExists(filepath.Join(dir, "chatlog.db"))

	req.Error(run("--config", file, "purge", "--older-than", "0d"))
	req.Error(run("--config", file, "historychat", "nobody"))
}
