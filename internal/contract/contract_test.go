package contract

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Type
		wantErr bool
	}{
		{name: "exact", raw: "doctorado", want: TypeDoctorado},
		{name: "upper case", raw: "MAESTRIA", want: TypeMaestria},
		{name: "surrounding whitespace", raw: "  Licenciatura\t", want: TypeLicenciatura},
		{name: "underscore type", raw: "Master_Propio", want: TypeMasterPropio},
		{name: "unknown", raw: "phd", wantErr: true},
		{name: "unknown padded", raw: "  PHD ", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindInvalidContractType, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvalidContractTypeListsPermittedSet(t *testing.T) {
	_, err := ParseType("phd")
	require.Error(t, err)

	var ce *Error
	require.True(t, errors.As(err, &ce))
	detail, ok := ce.Detail.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"doctorado", "licenciatura", "maestria", "master_propio"}, detail["permitted"])
	assert.Equal(t, http.StatusBadRequest, ce.Kind.HTTPStatus())
}

func TestKindHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindInvalidRequest.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindInvalidContractType.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindTemplateMissing.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindAssembly.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindUnknown.HTTPStatus())
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("xref corrupt")
	err := fmt.Errorf("generate: %w", NewAssemblyError("failed to open template", cause))

	assert.Equal(t, KindAssembly, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ASSEMBLY_ERROR")
	assert.Equal(t, KindUnknown, KindOf(cause))
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind Kind
		check    func(t *testing.T, req *Request)
	}{
		{
			name: "minimal",
			body: `{"contract_type":"doctorado","nombre_apellidos":"Ana Ruiz"}`,
			check: func(t *testing.T, req *Request) {
				assert.Equal(t, "doctorado", req.ContractType)
				assert.Equal(t, "Ana Ruiz", req.StudentName())
				assert.Equal(t, "doctorado", req.Fields["contract_type"])
			},
		},
		{
			name: "null and numeric values",
			body: `{"contract_type":"maestria","telefono_fijo":null,"codigo_postal":28001,"acepta":true}`,
			check: func(t *testing.T, req *Request) {
				assert.Equal(t, "", req.Fields["telefono_fijo"])
				assert.Equal(t, "28001", req.Fields["codigo_postal"])
				assert.Equal(t, "true", req.Fields["acepta"])
			},
		},
		{name: "missing contract type", body: `{"nombre_apellidos":"Ana"}`, wantKind: KindInvalidRequest},
		{name: "blank contract type", body: `{"contract_type":"   "}`, wantKind: KindInvalidRequest},
		{name: "non string contract type", body: `{"contract_type":3}`, wantKind: KindInvalidRequest},
		{name: "not an object", body: `["doctorado"]`, wantKind: KindInvalidRequest},
		{name: "null body", body: `null`, wantKind: KindInvalidRequest},
		{name: "malformed", body: `{"contract_type":`, wantKind: KindInvalidRequest},
		{name: "nested value", body: `{"contract_type":"doctorado","x":{"a":1}}`, wantKind: KindInvalidRequest},
		{name: "trailing object", body: `{"contract_type":"doctorado"} {}`, wantKind: KindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(strings.NewReader(tt.body))
			if tt.wantKind != KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				assert.Nil(t, req)
				return
			}
			require.NoError(t, err)
			tt.check(t, req)
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "accent stripped and space replaced", in: "Jose Pérez", want: "Jose_Prez"},
		{name: "plain", in: "Ana Ruiz", want: "Ana_Ruiz"},
		{name: "hyphen and underscore kept", in: "Ana-Maria de_la Cruz", want: "Ana-Maria_de_la_Cruz"},
		{name: "whitespace runs collapse", in: "  Ana \t Ruiz  ", want: "Ana_Ruiz"},
		{name: "punctuation removed", in: "O'Neil, J.", want: "ONeil_J"},
		{name: "empty", in: "", want: "alumno"},
		{name: "whitespace only", in: "   \n", want: "alumno"},
		{name: "entirely disallowed", in: "ñáéíóú", want: "alumno"},
		{name: "disallowed with spaces", in: "é é", want: "alumno"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in, DefaultStudentName)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, `^[A-Za-z0-9_-]+$`, got)
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Contrato_doctorado_Ana_Ruiz.pdf", Filename(TypeDoctorado, "Ana Ruiz"))
	assert.Equal(t, "Contrato_maestria_alumno.pdf", Filename(TypeMaestria, ""))
}
