package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/partition/internal/config"
	"github.com/oba-ldap/partition/internal/dn"
	"github.com/oba-ldap/partition/internal/partition"
)

// writeTestSchema writes a minimal LDIF schema file defining cn, enough
// to exercise the --schema flag's resolver wiring without pulling in the
// full built-in default schema.
func writeTestSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.ldif")
	const ldif = "dn: cn=schema\n" +
		"attributeTypes: ( 2.5.4.3 NAME ( 'cn' 'commonName' ) DESC 'Common name' SUP name )\n"
	require.NoError(t, os.WriteFile(path, []byte(ldif), 0644))
	return path
}

func seedStore(t *testing.T) string {
	t.Helper()
	suffix, err := dn.Parse("dc=example,dc=com", nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "partition.prec")

	s, err := partition.Open(partition.Config{Path: path, Suffix: suffix, IndexedAttrs: []string{"cn"}}, nil, nil)
	require.NoError(t, err)

	entry := &partition.Entry{}
	entry.Put("cn", "alice")
	_, err = s.Add("dc=example,dc=com", entry)
	require.NoError(t, err)
	_, err = s.Add("ou=people,dc=example,dc=com", &partition.Entry{})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	return path
}

func runCmd(t *testing.T, cmd *cobra.Command, args []string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestLookupCommandPrintsAttributes(t *testing.T) {
	path := seedStore(t)
	var schemaPath string
	cmd := newLookupCmd(&path, &schemaPath)
	out := runCmd(t, cmd, []string{"dc=example,dc=com"})
	assert.Contains(t, out, "cn: alice")
}

func TestChildrenCommandListsDirectChildren(t *testing.T) {
	path := seedStore(t)
	var schemaPath string
	cmd := newChildrenCmd(&path, &schemaPath)
	out := runCmd(t, cmd, []string{"dc=example,dc=com"})
	assert.Contains(t, out, "ou=people,dc=example,dc=com")
}

func TestSubtreeCommandListsEveryDescendant(t *testing.T) {
	path := seedStore(t)
	var schemaPath string
	cmd := newSubtreeCmd(&path, &schemaPath)
	out := runCmd(t, cmd, []string{"dc=example,dc=com"})
	assert.Contains(t, out, "dc=example,dc=com")
	assert.Contains(t, out, "ou=people,dc=example,dc=com")
}

func TestCountCommandPrintsInstanceAndCount(t *testing.T) {
	path := seedStore(t)
	var schemaPath string
	cmd := newCountCmd(&path, &schemaPath)
	out := runCmd(t, cmd, nil)
	assert.Contains(t, out, "entries:  2")
}

func TestIndicesCommandRendersTable(t *testing.T) {
	path := seedStore(t)
	var schemaPath string
	cmd := newIndicesCmd(&path, &schemaPath)
	out := runCmd(t, cmd, nil)
	assert.Contains(t, out, "cn")
}

func TestLookupCommandUsesSchemaResolverWhenSchemaSet(t *testing.T) {
	path := seedStore(t)
	schemaPath := writeTestSchema(t)
	cmd := newLookupCmd(&path, &schemaPath)
	out := runCmd(t, cmd, []string{"dc=example,dc=com"})
	assert.Contains(t, out, "cn: alice")
}

func TestConfigInitCommandPersistsSchemaPath(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeTestSchema(t)
	cmd := newConfigCmd()
	out := runCmd(t, cmd, []string{"init", dir, "--suffix", "dc=example,dc=com", "--schema", schemaPath})
	assert.Contains(t, out, "wrote")

	loaded, err := config.LoadStoreConfig(dir + "/partition.yaml")
	require.NoError(t, err)
	assert.Equal(t, schemaPath, loaded.SchemaPath)
}

func TestConfigInitCommandWritesConfigFile(t *testing.T) {
	dir := t.TempDir()
	cmd := newConfigCmd()
	out := runCmd(t, cmd, []string{"init", dir, "--suffix", "dc=example,dc=com", "--name", "example"})
	assert.Contains(t, out, "wrote")
}
