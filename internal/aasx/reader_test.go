package aasx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="json" ContentType="application/json"/>
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
</Types>`

const rootRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="r0" Type="http://admin-shell.io/aasx/relationships/aasx-origin" Target="/aasx/aasx-origin"/>
</Relationships>`

const originRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="r1" Type="http://admin-shell.io/aasx/relationships/aas-spec" Target="/aasx/env.json"/>
</Relationships>`

const envJSON = `{
  "assetAdministrationShells": [
    {"id": "urn:x:aas:motor", "modelType": "AssetAdministrationShell",
     "assetInformation": {"assetKind": "Instance", "globalAssetId": "urn:x:asset:motor"}}
  ],
  "submodels": [
    {"id": "urn:x:sm:nameplate", "idShort": "Nameplate", "modelType": "Submodel",
     "submodelElements": [
       {"idShort": "ManufacturerName", "modelType": "Property", "valueType": "xs:string", "value": "ACME"}
     ]}
  ],
  "conceptDescriptions": [
    {"id": "urn:x:cd:manufacturer", "modelType": "ConceptDescription"}
  ]
}`

type zipEntry struct {
	name string
	body string
}

func buildPackage(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func validEntries() []zipEntry {
	return []zipEntry{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRels},
		{"aasx/aasx-origin", ""},
		{"aasx/_rels/aasx-origin.rels", originRels},
		{"aasx/env.json", envJSON},
		{"aasx/docs/manual.pdf", "%PDF-1.4 fake"},
	}
}

func TestImportFromStreamParsesEnvironment(t *testing.T) {
	t.Parallel()

	result, err := ImportFromStream(bytes.NewReader(buildPackage(t, validEntries())))
	require.NoError(t, err)

	require.Len(t, result.Shells, 1)
	require.Equal(t, "urn:x:aas:motor", result.Shells[0].ID)
	require.Len(t, result.Submodels, 1)
	require.Equal(t, "Nameplate", result.Submodels[0].IDShort)
	require.Len(t, result.Submodels[0].SubmodelElements, 1)
	require.Len(t, result.ConceptDescriptions, 1)

	// only the supplementary part surfaces as a file; container plumbing
	// and the environment itself do not
	require.Len(t, result.Files, 2) // manual.pdf and the empty origin part
	names := map[string]string{}
	for _, f := range result.Files {
		names[f.Path] = f.ContentType
	}
	require.Equal(t, "application/pdf", names["aasx/docs/manual.pdf"])
}

func TestImportRejectsXMLEnvironment(t *testing.T) {
	t.Parallel()

	entries := validEntries()
	entries[4] = zipEntry{"aasx/env.json", `<?xml version="1.0"?><environment/>`}
	_, err := ImportFromStream(bytes.NewReader(buildPackage(t, entries)))
	require.True(t, common.IsErrBadRequest(err))
	require.Equal(t, "Package.XMLUnsupported", common.CodeOf(err))
}

func TestImportRejectsNonOPCContainers(t *testing.T) {
	t.Parallel()

	_, err := ImportFromStream(bytes.NewReader([]byte("not a zip")))
	require.True(t, common.IsErrBadRequest(err))

	// a ZIP without [Content_Types].xml is not an OPC container
	noTypes := buildPackage(t, []zipEntry{{"readme.txt", "hello"}})
	_, err = ImportFromStream(bytes.NewReader(noTypes))
	require.True(t, common.IsErrBadRequest(err))

	// an OPC container without the aasx-origin relationship is not AASX
	entries := validEntries()
	entries[1] = zipEntry{"_rels/.rels", `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`}
	_, err = ImportFromStream(bytes.NewReader(buildPackage(t, entries)))
	require.True(t, common.IsErrBadRequest(err))
}

func TestImportRejectsMissingDeclaredEnvironment(t *testing.T) {
	t.Parallel()

	entries := validEntries()
	entries = entries[:4] // drop env.json and manual.pdf
	_, err := ImportFromStream(bytes.NewReader(buildPackage(t, entries)))
	require.True(t, common.IsErrBadRequest(err))
}

func TestLocalBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "packages/p1/m.aasx", "application/zip", []byte("payload")))
	data, ctype, err := store.Get(ctx, "packages/p1/m.aasx")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
	require.Equal(t, "application/zip", ctype)

	require.NoError(t, store.Delete(ctx, "packages/p1/m.aasx"))
	_, _, err = store.Get(ctx, "packages/p1/m.aasx")
	require.True(t, common.IsErrNotFound(err))

	// deleting an absent key is idempotent
	require.NoError(t, store.Delete(ctx, "packages/p1/m.aasx"))
}

func TestLocalBlobStoreRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../outside", "text/plain", []byte("x"))
	require.True(t, common.IsErrBadRequest(err))
}
