package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/rowdb"
)

type student struct {
	Name  string `msgpack:"name"`
	Value int    `msgpack:"value"`
}

func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := rowdb.Open(path, rowdb.Options{IsTesting: true})
	require.NoError(t, err)
	students := rowdb.NewTable[student](db, "student")
	for _, s := range []student{{"bob", 0}, {"ann", 5}, {"cid", 7}} {
		_, err := students.Push(&s)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(&out, args)
	return out.String(), err
}

func TestCommands(t *testing.T) {
	path := seed(t)

	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"tables"}, []string{"student", "3"}},
		{[]string{"keys", "student"}, []string{"0\n1\n2\n"}},
		{[]string{"get", "student", "1"}, []string{`{"name":"ann","value":5}`}},
		{[]string{"counter", "student"}, []string{"3\n"}},
		{[]string{"dump", "student"}, []string{`{"name":"bob","value":0}`, `{"name":"cid","value":7}`}},
		{[]string{"stats", "student"}, []string{"rows", "next_key"}},
		{[]string{"delete", "student", "2"}, []string{`deleted student/2: {"name":"cid","value":7}`}},
		{[]string{"delete", "student", "2"}, []string{"student/2: no such row"}},
		{[]string{"keys", "student"}, []string{"0\n1\n"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := runCmd(t, append([]string{"--path", path}, tt.args...)...)
			require.NoError(t, err, out)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestCommandErrors(t *testing.T) {
	path := seed(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing path", []string{"tables"}},
		{"missing row", []string{"--path", path, "get", "student", "9"}},
		{"bad key", []string{"--path", path, "get", "student", "x"}},
		{"bad backend", []string{"--path", path, "--backend", "nope", "tables"}},
		{"bad codec", []string{"--path", path, "--codec", "xml", "tables"}},
		{"proto codec", []string{"--path", path, "--codec", "proto", "tables"}},
		{"bad log level", []string{"--path", path, "--log-level", "loud", "tables"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := seed(t)
	cfg := filepath.Join(t.TempDir(), "rowdb.hcl")
	require.NoError(t, os.WriteFile(cfg, []byte("path = \""+path+"\"\nbackend = \"bolt\"\n"), 0644))

	out, err := runCmd(t, "--config-file", cfg, "counter", "student")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	// command line wins over the file
	_, err = runCmd(t, "--config-file", cfg, "--backend", "nope", "counter", "student")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(cfg, []byte("colour = \"blue\"\n"), 0644))
	_, err = runCmd(t, "--config-file", cfg, "--path", path, "tables")
	assert.ErrorContains(t, err, "colour is not a config variable")
}

func TestOtherBackends(t *testing.T) {
	for _, backend := range []string{"pebble", "badger"} {
		t.Run(backend, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), backend)
			out, err := runCmd(t, "--path", dir, "--backend", backend, "--keys", "decimal", "counter", "student")
			require.NoError(t, err)
			assert.Equal(t, "0\n", out)
		})
	}
}
