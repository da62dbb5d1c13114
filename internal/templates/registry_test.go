package templates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/contract"
)

// countingSource wraps a Source and counts the calls made to it
type countingSource struct {
	Source
	calls int
}

func (c *countingSource) Exists(ctx context.Context, name string) (bool, error) {
	c.calls++
	return c.Source.Exists(ctx, name)
}

func setupRegistry(t *testing.T, present ...contract.Type) (*Registry, *countingSource, string) {
	t.Helper()

	cat, err := catalog.LoadDefault()
	require.NoError(t, err)

	dir := t.TempDir()
	for _, ct := range present {
		entry, _ := cat.Entry(ct)
		require.NoError(t, os.WriteFile(filepath.Join(dir, entry.Template), []byte("%PDF-1.4\n%%EOF\n"), 0o600))
	}

	fsSrc, err := NewFSSource(dir, 1024)
	require.NoError(t, err)
	src := &countingSource{Source: fsSrc}

	reg, err := NewRegistry(cat, src)
	require.NoError(t, err)
	return reg, src, dir
}

func TestRegistry_ResolveSupportedTypes(t *testing.T) {
	reg, _, dir := setupRegistry(t, contract.AllTypes()...)

	for _, ct := range contract.AllTypes() {
		t.Run(string(ct), func(t *testing.T) {
			ref, err := reg.Resolve(context.Background(), string(ct))
			require.NoError(t, err)
			assert.Equal(t, ct, ref.Type)
			assert.FileExists(t, ref.Location)
			assert.Equal(t, filepath.Join(dir, ref.Name), ref.Location)
		})
	}
}

func TestRegistry_ResolveIsCaseAndWhitespaceInsensitive(t *testing.T) {
	reg, _, _ := setupRegistry(t, contract.TypeDoctorado)

	for _, raw := range []string{"doctorado", "DOCTORADO", "  Doctorado\n"} {
		ref, err := reg.Resolve(context.Background(), raw)
		require.NoError(t, err, raw)
		assert.Equal(t, contract.TypeDoctorado, ref.Type)
	}
}

func TestRegistry_ResolveUnknownTypeDoesNoIO(t *testing.T) {
	reg, src, _ := setupRegistry(t, contract.AllTypes()...)

	for _, raw := range []string{"phd", "PHD", " Doctorate ", ""} {
		_, err := reg.Resolve(context.Background(), raw)
		require.Error(t, err)
		assert.Equal(t, contract.KindInvalidContractType, contract.KindOf(err), raw)
	}
	assert.Zero(t, src.calls)
}

func TestRegistry_ResolveMissingTemplate(t *testing.T) {
	reg, _, _ := setupRegistry(t)

	_, err := reg.Resolve(context.Background(), "maestria")
	require.Error(t, err)
	assert.Equal(t, contract.KindTemplateMissing, contract.KindOf(err))
}

func TestRegistry_Load(t *testing.T) {
	reg, _, dir := setupRegistry(t, contract.TypeDoctorado, contract.TypeMaestria)
	ctx := context.Background()

	ref, err := reg.Resolve(ctx, "doctorado")
	require.NoError(t, err)

	first, err := reg.Load(ctx, ref)
	require.NoError(t, err)
	second, err := reg.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	first[0] = 'X'
	assert.NotEqual(t, first[0], second[0], "each load returns an independent copy")

	// removed between resolve and load
	mref, err := reg.Resolve(ctx, "maestria")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, mref.Name)))
	_, err = reg.Load(ctx, mref)
	assert.Equal(t, contract.KindTemplateMissing, contract.KindOf(err))
}

func TestFSSource_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.pdf"), make([]byte, 64), 0o600))

	src, err := NewFSSource(dir, 32)
	require.NoError(t, err)

	_, err = src.Read(context.Background(), "big.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))

	exists, err := src.Exists(context.Background(), "big.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = src.Exists(context.Background(), "../escape.pdf")
	assert.Error(t, err)
}

func TestMinioSource_Location(t *testing.T) {
	src, err := NewMinioSource(MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "contratos",
		Prefix:    "templates/",
	}, 1024)
	require.NoError(t, err)
	assert.Equal(t, "s3://contratos/templates/contrato_doctorado.pdf", src.Location("contrato_doctorado.pdf"))

	_, err = NewMinioSource(MinioConfig{Endpoint: "localhost:9000"}, 1024)
	assert.Error(t, err)
}
