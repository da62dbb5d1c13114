package fields

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/contract"
)

func TestAliasVariant(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Provincia:", "Provincia"},
		{"Provincia", "Provincia:"},
		{"Nombre :", "Nombre"},
		{" Fecha ", "Fecha:"},
		{":", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, AliasVariant(tt.in))
		})
	}
}

func TestStaticResolver(t *testing.T) {
	dict := catalog.FieldDictionary{
		"provincia":        {"Provincia:", "Provincia 2"},
		"nombre_apellidos": {"Nombre:"},
		"telefono_fijo":    {"Teléfono fijo"},
	}
	values := map[string]string{
		"provincia":        "Madrid",
		"nombre_apellidos": "Ana Ruiz",
		"campo_nuevo":      "ignored",
	}

	got, err := StaticResolver{}.Resolve(values, dict, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Provincia:":     "Madrid",
		"Provincia":      "Madrid",
		"Provincia 2":    "Madrid",
		"Provincia 2:":   "Madrid",
		"Nombre:":        "Ana Ruiz",
		"Nombre":         "Ana Ruiz",
		"Teléfono fijo":  "",
		"Teléfono fijo:": "",
	}, got)
}

func TestStaticResolverKeepsExplicitAliases(t *testing.T) {
	dict := catalog.FieldDictionary{
		"fecha_contrato": {"Fecha:"},
		"fecha_inicio":   {"Fecha"},
	}
	values := map[string]string{"fecha_contrato": "07/03/2026", "fecha_inicio": "06/10/2025"}

	got, err := StaticResolver{}.Resolve(values, dict, nil)
	require.NoError(t, err)
	assert.Equal(t, "07/03/2026", got["Fecha:"])
	assert.Equal(t, "06/10/2025", got["Fecha"])
}

func TestAliasVariantsShareValue(t *testing.T) {
	cat, err := catalog.LoadDefault()
	require.NoError(t, err)

	for _, entry := range cat.Entries() {
		if entry.Resolver != catalog.StrategyStatic {
			continue
		}
		t.Run(entry.Type.String(), func(t *testing.T) {
			values := map[string]string{}
			for _, key := range entry.Fields.CanonicalKeys() {
				values[key] = "valor-" + key
			}

			got, err := StaticResolver{}.Resolve(values, entry.Fields, nil)
			require.NoError(t, err)

			for key, names := range entry.Fields {
				for _, name := range names {
					assert.Equal(t, values[key], got[name], "%s -> %s", key, name)
					if variant := AliasVariant(name); !isConfigured(entry.Fields, variant) {
						assert.Equal(t, values[key], got[variant], "variant %s", variant)
					}
				}
			}
		})
	}
}

func isConfigured(dict catalog.FieldDictionary, name string) bool {
	for _, n := range dict.PhysicalNames() {
		if n == name {
			return true
		}
	}
	return false
}

func TestDynamicResolver(t *testing.T) {
	values := map[string]string{
		"nombre_apellidos": "Ana Ruiz",
		"fecha_inicio":     "06/10/2025",
		"titulacion":       "Máster en Dirección",
		"pais":             "México",
	}
	list := func() ([]string, error) {
		return []string{"Nombre Apellidos:", "Fecha de inicio", "FECHA-INICIO", "Titulación", "Firma"}, nil
	}

	got, err := DynamicResolver{}.Resolve(values, nil, list)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Nombre Apellidos:": "Ana Ruiz",
		"FECHA-INICIO":      "06/10/2025",
		"Titulación":        "Máster en Dirección",
	}, got)
}

func TestDynamicResolverDictionaryWins(t *testing.T) {
	dict := catalog.FieldDictionary{"pais": {"Pais"}}
	values := map[string]string{"pais": "México", "Pais": "otro"}
	list := func() ([]string, error) { return []string{"Pais", "País:"}, nil }

	got, err := DynamicResolver{}.Resolve(values, dict, list)
	require.NoError(t, err)
	assert.Equal(t, "México", got["Pais"])
	assert.Equal(t, "México", got["Pais:"])
	assert.Equal(t, "otro", got["País:"], "sorted keys: Pais sorts before pais")
}

func TestDynamicResolverErrors(t *testing.T) {
	_, err := DynamicResolver{}.Resolve(map[string]string{}, nil, nil)
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = DynamicResolver{}.Resolve(map[string]string{}, nil, func() ([]string, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestForStrategy(t *testing.T) {
	r, err := ForStrategy(catalog.StrategyStatic)
	require.NoError(t, err)
	assert.IsType(t, StaticResolver{}, r)

	r, err = ForStrategy(catalog.StrategyDynamic)
	require.NoError(t, err)
	assert.IsType(t, DynamicResolver{}, r)

	_, err = ForStrategy("magic")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Fecha de Inicio:", "fechadeinicio"},
		{"fecha_de_inicio", "fechadeinicio"},
		{"Titulación", "titulacion"},
		{"NÚMERO-CUOTAS", "numerocuotas"},
		{"Año 2", "ano2"},
		{"  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestRequestKeysNormalize(t *testing.T) {
	assert.Equal(t, Normalize(contract.KeyStudentName), Normalize("Nombre Apellidos"))
}
