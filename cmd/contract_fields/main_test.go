package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/pdftest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func templateDir(t *testing.T) string {
	t.Helper()
	cat, err := catalog.LoadDefault()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, pdftest.WriteCatalogTemplates(dir, cat))
	return dir
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.FormPDF("Nombre", "Email"), 0o644))

	out, err := execute(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 field(s)")
	assert.Contains(t, out, `"Nombre"`)
	assert.Contains(t, out, `"Email"`)

	out, err = execute(t, "inspect", "--format", "json", path)
	require.NoError(t, err)
	var decoded struct {
		FieldCount int `json:"field_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 2, decoded.FieldCount)
}

func TestInspectSorted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.FormPDF("Telefono", "Apellidos", "Nombre"), 0o644))

	out, err := execute(t, "inspect", "--sort", "--format", "json", path)
	require.NoError(t, err)

	var decoded struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Fields, 3)
	assert.Equal(t, "Apellidos", decoded.Fields[0].Name)
	assert.Equal(t, "Nombre", decoded.Fields[1].Name)
	assert.Equal(t, "Telefono", decoded.Fields[2].Name)

	out, err = execute(t, "inspect", "--format", "json", path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Telefono", decoded.Fields[0].Name, "document order by default")
}

func TestInspectErrors(t *testing.T) {
	_, err := execute(t, "inspect")
	assert.Error(t, err)

	_, err = execute(t, "inspect", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.Corrupt(), 0o644))
	_, err = execute(t, "inspect", path)
	assert.Error(t, err)

	path = filepath.Join(t.TempDir(), "form.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.FormPDF("A"), 0o644))
	_, err = execute(t, "inspect", "--format", "xml", path)
	assert.Error(t, err)
}

func TestFields(t *testing.T) {
	dir := templateDir(t)

	out, err := execute(t, "fields", "doctorado", "--templates", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "doctorado")
	assert.Contains(t, out, `"Nombre y apellidos:"`)
	assert.NotContains(t, out, "Missing from template")

	_, err = execute(t, "fields", "phd", "--templates", dir)
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	dir := templateDir(t)

	out, err := execute(t, "verify", "--templates", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "doctorado")
	assert.Contains(t, out, "master_propio")

	require.NoError(t, os.Remove(filepath.Join(dir, "contrato_licenciatura.pdf")))
	out, err = execute(t, "verify", "--templates", dir, "--format", "json")
	require.Error(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 4)
}
