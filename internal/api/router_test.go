package api

import (
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-basyx/titan-aas/internal/events"
)

func TestShellLifecycle(t *testing.T) {
	env := newTestEnv(t)
	idB64 := b64("urn:x:aas:motor")

	resp := env.do(t, http.MethodPost, "/shells", shellDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "/shells/"+idB64, resp.Header.Get("Location"))
	etag := resp.Header.Get("ETag")
	require.True(t, len(etag) > 2 && etag[0] == '"' && etag[len(etag)-1] == '"')
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/shells/"+idB64, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, etag, resp.Header.Get("ETag"))
	require.Contains(t, bodyOf(t, resp), `"urn:x:aas:motor"`)

	resp = env.do(t, http.MethodGet, "/shells/"+idB64, "", map[string]string{"If-None-Match": etag})
	require.Equal(t, http.StatusNotModified, resp.StatusCode)
	_ = bodyOf(t, resp)

	// a stale precondition is rejected
	resp = env.do(t, http.MethodPut, "/shells/"+idB64, shellDoc, map[string]string{"If-Match": `"0000000000000000"`})
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	var envelope struct {
		Messages []struct {
			Code        string `json:"code"`
			MessageType string `json:"messageType"`
		} `json:"messages"`
	}
	require.NoError(t, jsonAPI.UnmarshalFromString(bodyOf(t, resp), &envelope))
	require.Len(t, envelope.Messages, 1)
	require.Equal(t, "ETag.Mismatch", envelope.Messages[0].Code)
	require.Equal(t, "Error", envelope.Messages[0].MessageType)

	// a matching precondition replaces and returns the fresh tag
	resp = env.do(t, http.MethodPut, "/shells/"+idB64, shellDoc, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, etag, resp.Header.Get("ETag")) // same content, same tag
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodDelete, "/shells/"+idB64, "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/shells/"+idB64, "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = bodyOf(t, resp)

	require.Len(t, env.bus.ofType(events.TypeCreated, events.EntityAAS), 1)
	require.Len(t, env.bus.ofType(events.TypeUpdated, events.EntityAAS), 1)
	require.Len(t, env.bus.ofType(events.TypeDeleted, events.EntityAAS), 1)
}

func TestConcurrentReplacesShareOnePrecondition(t *testing.T) {
	env := newTestEnv(t)
	idB64 := b64("urn:x:aas:motor")

	resp := env.do(t, http.MethodPost, "/shells", shellDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	_ = bodyOf(t, resp)

	// two writers race with the same If-Match; only one may win
	bodies := []string{
		strings.Replace(shellDoc, `"Motor"`, `"MotorLeft"`, 1),
		strings.Replace(shellDoc, `"Motor"`, `"MotorRight"`, 1),
	}
	statuses := make(chan int, len(bodies))
	var wg sync.WaitGroup
	for _, body := range bodies {
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			resp := env.do(t, http.MethodPut, "/shells/"+idB64, body, map[string]string{"If-Match": etag})
			_ = bodyOf(t, resp)
			statuses <- resp.StatusCode
		}(body)
	}
	wg.Wait()
	close(statuses)

	replaced, rejected := 0, 0
	for status := range statuses {
		switch status {
		case http.StatusNoContent:
			replaced++
		case http.StatusPreconditionFailed:
			rejected++
		default:
			t.Fatalf("unexpected status %d", status)
		}
	}
	require.Equal(t, 1, replaced)
	require.Equal(t, 1, rejected)
}

func TestPutCreatesAbsentShell(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPut, "/shells/"+b64("urn:x:aas:motor"), shellDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "/shells/"+b64("urn:x:aas:motor"), resp.Header.Get("Location"))
	_ = bodyOf(t, resp)
}

func TestPutRejectsMismatchedBodyID(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPut, "/shells/"+b64("urn:x:aas:other"), shellDoc, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, bodyOf(t, resp), "Id.Mismatch")
}

func TestDuplicateCreateConflicts(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/shells", shellDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodPost, "/shells", shellDoc, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = bodyOf(t, resp)
}

func TestInvalidIdentifierToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/shells/not!base64", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, bodyOf(t, resp), "Identifier.Invalid")
}

func TestElementValueProjectionAndPatch(t *testing.T) {
	env := newTestEnv(t)
	smB64 := b64("urn:x:sm:temp")

	resp := env.do(t, http.MethodPost, "/submodels", submodelDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/submodels/"+smB64+"/submodel-elements/T/$value", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `"23.5"`, bodyOf(t, resp))

	resp = env.do(t, http.MethodPatch, "/submodels/"+smB64+"/submodel-elements/T", `{"value":"24.1"}`, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/submodels/"+smB64+"/$value", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"T":"24.1"}`, bodyOf(t, resp))

	// the element event carries the fresh value projection
	elementEvents := env.bus.ofType(events.TypeUpdated, events.EntitySubmodelElement)
	require.NotEmpty(t, elementEvents)
	last := elementEvents[len(elementEvents)-1]
	require.Equal(t, "T", last.IDShortPath)
	require.JSONEq(t, `"24.1"`, string(last.ValueBytes))
	require.NotEmpty(t, last.DocBytes)
}

func TestPatchSubmodelValueMap(t *testing.T) {
	env := newTestEnv(t)
	smB64 := b64("urn:x:sm:temp")

	resp := env.do(t, http.MethodPost, "/submodels", submodelDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodPatch, "/submodels/"+smB64+"/$value", `{"T":"30.0"}`, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/submodels/"+smB64+"/submodel-elements/T/$value", "", nil)
	require.JSONEq(t, `"30.0"`, bodyOf(t, resp))
}

func TestPatchSubmodelMetadataKeepsElements(t *testing.T) {
	env := newTestEnv(t)
	smB64 := b64("urn:x:sm:temp")

	resp := env.do(t, http.MethodPost, "/submodels", submodelDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodPatch, "/submodels/"+smB64+"/$metadata", `{"idShort":"Renamed","submodelElements":[]}`, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/submodels/"+smB64, "", nil)
	body := bodyOf(t, resp)
	require.Contains(t, body, `"Renamed"`)
	require.Contains(t, body, `"T"`) // element forest untouched by the metadata patch
}

func TestElementCRUDOnTree(t *testing.T) {
	env := newTestEnv(t)
	smB64 := b64("urn:x:sm:temp")

	resp := env.do(t, http.MethodPost, "/submodels", submodelDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodPost, "/submodels/"+smB64+"/submodel-elements",
		`{"idShort":"H","modelType":"Property","valueType":"xs:int","value":"55"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/submodels/"+smB64+"/submodel-elements", "", nil)
	var page struct {
		Result []map[string]any `json:"result"`
	}
	require.NoError(t, jsonAPI.UnmarshalFromString(bodyOf(t, resp), &page))
	require.Len(t, page.Result, 2)

	resp = env.do(t, http.MethodPut, "/submodels/"+smB64+"/submodel-elements/H",
		`{"idShort":"H","modelType":"Property","valueType":"xs:int","value":"56"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/submodels/"+smB64+"/submodel-elements/H/$path", "", nil)
	require.JSONEq(t, `["H"]`, bodyOf(t, resp))

	resp = env.do(t, http.MethodGet, "/submodels/"+smB64+"/submodel-elements/H/$reference", "", nil)
	body := bodyOf(t, resp)
	require.Contains(t, body, `"urn:x:sm:temp"`)
	require.Contains(t, body, `"H"`)

	resp = env.do(t, http.MethodDelete, "/submodels/"+smB64+"/submodel-elements/H", "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/submodels/"+smB64+"/submodel-elements/H", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = bodyOf(t, resp)
}

func TestListShellsPaginates(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"urn:x:aas:a", "urn:x:aas:b", "urn:x:aas:c"} {
		doc := `{"id":"` + id + `","modelType":"AssetAdministrationShell","assetInformation":{"assetKind":"Instance"}}`
		resp := env.do(t, http.MethodPost, "/shells", doc, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = bodyOf(t, resp)
	}

	resp := env.do(t, http.MethodGet, "/shells?limit=2", "", nil)
	var page struct {
		Result         []map[string]any `json:"result"`
		PagingMetadata struct {
			Cursor *string `json:"cursor"`
		} `json:"paging_metadata"`
	}
	require.NoError(t, jsonAPI.UnmarshalFromString(bodyOf(t, resp), &page))
	require.Len(t, page.Result, 2)
	require.NotNil(t, page.PagingMetadata.Cursor)

	resp = env.do(t, http.MethodGet, "/shells?limit=2&cursor="+*page.PagingMetadata.Cursor, "", nil)
	require.NoError(t, jsonAPI.UnmarshalFromString(bodyOf(t, resp), &page))
	require.Len(t, page.Result, 1)
	require.Nil(t, page.PagingMetadata.Cursor)
}

func TestDiscoveryLookupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	idB64 := b64("urn:x:aas:motor")

	resp := env.do(t, http.MethodPost, "/shells", shellDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	links := `[{"name":"serialNumber","value":"SN-1234"}]`
	resp = env.do(t, http.MethodPost, "/lookup/shells/"+idB64, links, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodPost, "/lookup/shellsByAssetLink", links, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, bodyOf(t, resp), `"urn:x:aas:motor"`)

	resp = env.do(t, http.MethodGet, "/lookup/shells/"+idB64, "", nil)
	require.Contains(t, bodyOf(t, resp), `"SN-1234"`)

	resp = env.do(t, http.MethodDelete, "/lookup/shells/"+idB64, "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = bodyOf(t, resp)
}

func TestDescriptorsSynthesizeEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/shells", shellDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)
	resp = env.do(t, http.MethodPost, "/submodels", submodelDoc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/shell-descriptors", "", nil)
	body := bodyOf(t, resp)
	require.Contains(t, body, `"AAS-3.0"`)
	require.Contains(t, body, "http://titan.example:5004/shells/"+b64("urn:x:aas:motor"))
	require.Contains(t, body, `"urn:x:asset:motor"`)

	resp = env.do(t, http.MethodGet, "/submodel-descriptors", "", nil)
	body = bodyOf(t, resp)
	require.Contains(t, body, `"SUBMODEL-3.0"`)
	require.Contains(t, body, "http://titan.example:5004/submodels/"+b64("urn:x:sm:temp"))
}

func TestAttachmentRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	smB64 := b64("urn:x:sm:files")
	doc := `{"id":"urn:x:sm:files","modelType":"Submodel","submodelElements":[
	  {"idShort":"Manual","modelType":"File","contentType":"application/pdf","value":"/docs/manual.pdf"}]}`

	resp := env.do(t, http.MethodPost, "/submodels", doc, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodPut, "/submodels/"+smB64+"/submodel-elements/Manual/attachment",
		"%PDF-1.4 payload", map[string]string{"Content-Type": "application/pdf"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = bodyOf(t, resp)

	resp = env.do(t, http.MethodGet, "/submodels/"+smB64+"/submodel-elements/Manual/attachment", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	require.Equal(t, "%PDF-1.4 payload", bodyOf(t, resp))

	// a Property carries no attachment
	resp = env.do(t, http.MethodPost, "/submodels/"+smB64+"/submodel-elements",
		`{"idShort":"N","modelType":"Property","valueType":"xs:int","value":"1"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = bodyOf(t, resp)
	resp = env.do(t, http.MethodPut, "/submodels/"+smB64+"/submodel-elements/N/attachment", "x", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = bodyOf(t, resp)
}

func TestHealthAndDescription(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"UP"}`, bodyOf(t, resp))

	resp = env.do(t, http.MethodGet, "/description", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, bodyOf(t, resp), "SubmodelRepositoryServiceSpecification")
}
