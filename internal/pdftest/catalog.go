package pdftest

import (
	"os"
	"path/filepath"

	"github.com/cesuma/contratos-api/internal/catalog"
)

// DynamicFieldNames are the field names of templates resolved by discovery.
// They follow the request keys once normalized.
var DynamicFieldNames = []string{
	"Nombre Apellidos",
	"Documento Identidad",
	"Programa",
	"Fecha Contrato",
	"Fecha Inicio",
	"Pais",
	"Telefono Fijo",
	"Telefono Movil",
	"Email",
	"Precio Total",
	"Pago Inicial",
	"Numero Cuotas",
	"Importe Cuota",
	"Modalidad Pago",
}

// CatalogTemplate returns a template whose fields match the entry's dictionary,
// or DynamicFieldNames for entries without one
func CatalogTemplate(entry *catalog.Entry) []byte {
	names := entry.Fields.PhysicalNames()
	if len(names) == 0 {
		names = DynamicFieldNames
	}
	return FormPDF(names...)
}

// WriteCatalogTemplates writes a template for every catalog entry into dir
func WriteCatalogTemplates(dir string, cat *catalog.Catalog) error {
	for _, entry := range cat.Entries() {
		path := filepath.Join(dir, entry.Template)
		if err := os.WriteFile(path, CatalogTemplate(entry), 0o600); err != nil {
			return err
		}
	}
	return nil
}
