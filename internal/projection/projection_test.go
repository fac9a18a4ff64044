package projection

import (
	"encoding/json"
	"testing"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
	"github.com/stretchr/testify/require"
)

func testSubmodel(t *testing.T) *model.Submodel {
	t.Helper()
	doc := `{
		"id": "urn:example:sm:1",
		"modelType": "Submodel",
		"submodelElements": [
			{"modelType": "Property", "idShort": "T", "valueType": "xs:double", "value": "23.5"},
			{"modelType": "SubmodelElementList", "idShort": "Stack",
			 "typeValueListElement": "SubmodelElementCollection",
			 "value": [
				{"modelType": "SubmodelElementCollection", "idShort": "",
				 "value": [{"modelType": "Property", "idShort": "Temperature", "valueType": "xs:double", "value": "40.0"}]}
			 ]},
			{"modelType": "SubmodelElementCollection", "idShort": "Motor",
			 "value": [
				{"modelType": "Property", "idShort": "Rpm", "valueType": "xs:int", "value": "1500"},
				{"modelType": "MultiLanguageProperty", "idShort": "Name",
				 "value": [{"language": "en", "text": "drive"}, {"language": "de", "text": "Antrieb"}]}
			 ]},
			{"modelType": "Blob", "idShort": "Manual", "contentType": "application/pdf", "value": "JVBERg=="}
		]
	}`
	var sm model.Submodel
	require.NoError(t, json.Unmarshal([]byte(doc), &sm))
	return &sm
}

func TestParsePath(t *testing.T) {
	t.Parallel()

	segs, err := ParsePath("Stack[0].Temperature")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	require.Equal(t, "Stack", segs[0].Name)
	require.Equal(t, []int{0}, segs[0].Indices)
	require.Equal(t, "Temperature", segs[1].Name)
	require.Equal(t, "Stack[0].Temperature", FormatPath(segs))

	for _, bad := range []string{"", "1abc", "a..b", "a[", "a[]", "a[-1]", "a[x]", "a[0", "a]0["} {
		_, err := ParsePath(bad)
		require.Error(t, err, "path %q", bad)
		require.Equal(t, "Path.Invalid", common.CodeOf(err))
	}
}

func TestNavigate(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)

	el, err := Navigate(sm, "Stack[0].Temperature")
	require.NoError(t, err)
	require.Equal(t, "40.0", el.(*model.Property).Value)

	el, err = Navigate(sm, "Motor.Rpm")
	require.NoError(t, err)
	require.Equal(t, "1500", el.(*model.Property).Value)

	_, err = Navigate(sm, "Motor.Missing")
	require.True(t, common.IsErrNotFound(err))

	_, err = Navigate(sm, "Stack[5]")
	require.True(t, common.IsErrNotFound(err))

	_, err = Navigate(sm, "T[0]")
	require.True(t, common.IsErrBadRequest(err))
}

func TestValueProjection(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)

	el, err := Navigate(sm, "T")
	require.NoError(t, err)
	v, err := Value(el)
	require.NoError(t, err)
	require.Equal(t, "23.5", v)

	el, err = Navigate(sm, "Motor")
	require.NoError(t, err)
	v, err = Value(el)
	require.NoError(t, err)
	m := v.(map[string]any)
	require.Equal(t, "1500", m["Rpm"])
	require.Equal(t, map[string]string{"en": "drive", "de": "Antrieb"}, m["Name"])

	whole := SubmodelValue(sm)
	require.Equal(t, "23.5", whole["T"])
	require.Len(t, whole["Stack"].([]any), 1)
}

func TestMetadataProjection(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)

	el, err := Navigate(sm, "Motor")
	require.NoError(t, err)
	m, err := Metadata(el)
	require.NoError(t, err)
	require.Equal(t, "Motor", m["idShort"])
	require.NotContains(t, m, "value")
}

func TestReferenceProjection(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)

	ref, err := ReferenceOf(sm, "Stack[0].Temperature")
	require.NoError(t, err)
	require.Equal(t, model.ReferenceTypeModel, ref.Type)
	require.Len(t, ref.Keys, 4)
	require.Equal(t, model.Key{Type: model.KeyTypeSubmodel, Value: "urn:example:sm:1"}, ref.Keys[0])
	require.Equal(t, model.Key{Type: model.KeyTypeSubmodelElementList, Value: "Stack"}, ref.Keys[1])
	require.Equal(t, model.Key{Type: model.KeyTypeSubmodelElementCollection, Value: "0"}, ref.Keys[2])
	require.Equal(t, model.Key{Type: model.KeyTypeProperty, Value: "Temperature"}, ref.Keys[3])
}

func TestPathProjection(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)

	paths := SubmodelPaths(sm)
	require.Contains(t, paths, "T")
	require.Contains(t, paths, "Stack[0].Temperature")
	require.Contains(t, paths, "Motor.Rpm")
	require.Contains(t, paths, "Motor.Name")
	require.NotContains(t, paths, "Motor")
}

func TestLevelAndExtentModifiers(t *testing.T) {
	t.Parallel()

	sm := testSubmodel(t)
	ApplySubmodelLevel(sm, LevelCore)
	motor, err := Navigate(sm, "Motor")
	require.NoError(t, err)
	require.Empty(t, motor.(*model.SubmodelElementCollection).Value)

	sm = testSubmodel(t)
	ApplySubmodelExtent(sm, ExtentWithoutBlobValue)
	blob, err := Navigate(sm, "Manual")
	require.NoError(t, err)
	require.Empty(t, blob.(*model.Blob).Value)
	require.Equal(t, "application/pdf", blob.(*model.Blob).ContentType)
}

func TestInsertElement(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)

	el, err := model.UnmarshalSubmodelElement([]byte(`{"modelType":"Property","idShort":"P2","valueType":"xs:int","value":"7"}`))
	require.NoError(t, err)
	require.NoError(t, InsertElement(sm, "", el))
	_, err = Navigate(sm, "P2")
	require.NoError(t, err)

	// duplicate idShort in same parent
	dup, _ := model.UnmarshalSubmodelElement([]byte(`{"modelType":"Property","idShort":"T","valueType":"xs:int"}`))
	err = InsertElement(sm, "", dup)
	require.True(t, common.IsErrConflict(err))
	require.Equal(t, "Element.Exists", common.CodeOf(err))

	// nested insert into a collection
	child, _ := model.UnmarshalSubmodelElement([]byte(`{"modelType":"Property","idShort":"Torque","valueType":"xs:double","value":"3.2"}`))
	require.NoError(t, InsertElement(sm, "Motor", child))
	_, err = Navigate(sm, "Motor.Torque")
	require.NoError(t, err)

	// list append and indexed insert
	coll, _ := model.UnmarshalSubmodelElement([]byte(`{"modelType":"SubmodelElementCollection","value":[]}`))
	require.NoError(t, InsertElement(sm, "Stack", coll))
	stack, err := Navigate(sm, "Stack")
	require.NoError(t, err)
	require.Len(t, stack.(*model.SubmodelElementList).Value, 2)

	first, _ := model.UnmarshalSubmodelElement([]byte(`{"modelType":"SubmodelElementCollection","value":[]}`))
	require.NoError(t, InsertElement(sm, "Stack[0]", first))
	require.Len(t, stack.(*model.SubmodelElementList).Value, 3)

	// homogeneity enforced on list insert
	prop, _ := model.UnmarshalSubmodelElement([]byte(`{"modelType":"Property","valueType":"xs:int"}`))
	err = InsertElement(sm, "Stack", prop)
	require.Error(t, err)
	require.Equal(t, "List.ElementTypeMismatch", common.CodeOf(err))
}

func TestReplaceAndDeleteRoundTrip(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)

	repl, _ := model.UnmarshalSubmodelElement([]byte(`{"modelType":"Property","idShort":"T","valueType":"xs:double","value":"99.9"}`))
	require.NoError(t, ReplaceElement(sm, "T", repl))
	el, err := Navigate(sm, "T")
	require.NoError(t, err)
	require.Equal(t, "99.9", el.(*model.Property).Value)

	require.NoError(t, DeleteElement(sm, "Motor.Rpm"))
	_, err = Navigate(sm, "Motor.Rpm")
	require.True(t, common.IsErrNotFound(err))

	err = DeleteElement(sm, "Motor.Rpm")
	require.True(t, common.IsErrNotFound(err))
}

func TestInsertThenDeleteRestoresShape(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)
	before, err := json.Marshal(sm)
	require.NoError(t, err)

	el, _ := model.UnmarshalSubmodelElement([]byte(`{"modelType":"Property","idShort":"Tmp","valueType":"xs:int","value":"1"}`))
	require.NoError(t, InsertElement(sm, "Motor", el))
	require.NoError(t, DeleteElement(sm, "Motor.Tmp"))

	after, err := json.Marshal(sm)
	require.NoError(t, err)
	require.JSONEq(t, string(before), string(after))
}

func TestPatchElement(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)

	require.NoError(t, PatchElement(sm, "T", json.RawMessage(`{"value":"24.1"}`)))
	el, err := Navigate(sm, "T")
	require.NoError(t, err)
	require.Equal(t, "24.1", el.(*model.Property).Value)
	require.Equal(t, model.XSDouble, el.(*model.Property).ValueType)

	err = PatchElement(sm, "T", json.RawMessage(`{"modelType":"Blob"}`))
	require.Error(t, err)
	require.Equal(t, "Element.TypeMismatch", common.CodeOf(err))
}

func TestUpdateElementValue(t *testing.T) {
	t.Parallel()
	sm := testSubmodel(t)

	require.NoError(t, UpdateElementValue(sm, "T", json.RawMessage(`"24.1"`)))
	el, _ := Navigate(sm, "T")
	require.Equal(t, "24.1", el.(*model.Property).Value)

	// bare number literal accepted
	require.NoError(t, UpdateElementValue(sm, "T", json.RawMessage(`25.5`)))
	el, _ = Navigate(sm, "T")
	require.Equal(t, "25.5", el.(*model.Property).Value)

	err := UpdateElementValue(sm, "T", json.RawMessage(`"not a number"`))
	require.Error(t, err)
	require.Equal(t, "Value.TypeMismatch", common.CodeOf(err))

	require.NoError(t, UpdateElementValue(sm, "Motor.Name", json.RawMessage(`{"en":"motor"}`)))
	el, _ = Navigate(sm, "Motor.Name")
	require.Equal(t, "motor", el.(*model.MultiLanguageProperty).Value[0].Text)
}
