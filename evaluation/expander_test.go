package evaluation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticItems map[string][]*Item

func (s staticItems) ItemsOf(itemType string) []*Item {
	for k, v := range s {
		if strings.EqualFold(k, itemType) {
			return v
		}
	}
	return nil
}

func testProperties(pairs ...string) *PropertyTable {
	t := NewPropertyTable()
	for i := 0; i+1 < len(pairs); i += 2 {
		t.Set(pairs[i], pairs[i+1], OriginXML, nil)
	}
	return t
}

func testItems(itemType string, includes ...string) staticItems {
	items := make([]*Item, 0, len(includes))
	for _, inc := range includes {
		items = append(items, &Item{itemType: itemType, evaluatedIncludeEscaped: inc})
	}
	return staticItems{itemType: items}
}

func TestExpandProperties(t *testing.T) {
	props := testProperties("Configuration", "Debug", "OutDir", "bin")
	x := NewExpander(props, nil, nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no refs here", "no refs here"},
		{"simple", "$(Configuration)", "Debug"},
		{"embedded", "bin/$(Configuration)/out", "bin/Debug/out"},
		{"two refs", "$(OutDir)/$(Configuration)", "bin/Debug"},
		{"missing is empty", "pre$(Nope)post", "prepost"},
		{"case insensitive", "$(CONFIGURATION)", "Debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := x.Expand(tt.in, ExpandPropertiesOnly)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestExpandNestedPropertyName(t *testing.T) {
	props := testProperties("Flavor", "Retail", "RetailSuffix", ".r")
	x := NewExpander(props, nil, nil)

	got, err := x.Expand("$($(Flavor)Suffix)", ExpandPropertiesOnly)
	require.NoError(t, err)
	require.Equal(t, ".r", got)
}

func TestExpandUnterminatedReference(t *testing.T) {
	x := NewExpander(testProperties(), nil, nil)
	_, err := x.Expand("$(Oops", ExpandPropertiesOnly)
	require.Error(t, err)
}

func TestExpandItemsRespectMode(t *testing.T) {
	items := testItems("Compile", "a.cs", "b.cs")
	x := NewExpander(testProperties(), items, nil)

	got, err := x.Expand("@(Compile)", ExpandPropertiesOnly)
	require.NoError(t, err)
	require.Equal(t, "@(Compile)", got, "item refs are literal in properties-only mode")

	got, err = x.Expand("@(Compile)", ExpandPropertiesAndItems)
	require.NoError(t, err)
	require.Equal(t, "a.cs;b.cs", got)
}

func TestExpandItemSeparator(t *testing.T) {
	x := NewExpander(testProperties(), testItems("Compile", "a.cs", "b.cs"), nil)
	got, err := x.Expand("@(Compile, ', ')", ExpandPropertiesAndItems)
	require.NoError(t, err)
	require.Equal(t, "a.cs, b.cs", got)
}

func TestExpandItemTransform(t *testing.T) {
	x := NewExpander(testProperties(), testItems("Compile", "src/a.cs", "src/b.cs"), nil)
	got, err := x.Expand("@(Compile->'%(Filename).o')", ExpandPropertiesAndItems)
	require.NoError(t, err)
	require.Equal(t, "a.o;b.o", got)
}

func TestExpandItemFunctions(t *testing.T) {
	items := staticItems{"Compile": {
		{itemType: "Compile", evaluatedIncludeEscaped: "a.cs", metadata: []metadataEntry{{name: "Pack", escapedValue: "true"}}},
		{itemType: "Compile", evaluatedIncludeEscaped: "A.CS"},
		{itemType: "Compile", evaluatedIncludeEscaped: "b.cs", metadata: []metadataEntry{{name: "Pack", escapedValue: "false"}}},
	}}
	x := NewExpander(testProperties(), items, nil)

	got, err := x.Expand("@(Compile->Count())", ExpandPropertiesAndItems)
	require.NoError(t, err)
	require.Equal(t, "3", got)

	got, err = x.Expand("@(Compile->Distinct())", ExpandPropertiesAndItems)
	require.NoError(t, err)
	require.Equal(t, "a.cs;b.cs", got)

	got, err = x.Expand("@(Compile->Metadata('Pack'))", ExpandPropertiesAndItems)
	require.NoError(t, err)
	require.Equal(t, "true;false", got)

	_, err = x.Expand("@(Compile->Reverse())", ExpandPropertiesAndItems)
	require.Error(t, err)
}

func TestExpandMetadataOutsideItemContext(t *testing.T) {
	x := NewExpander(testProperties(), nil, nil)
	got, err := x.Expand("%(Filename)", ExpandFull)
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestExpandMetadataWithItemScope(t *testing.T) {
	it := &Item{
		itemType:                "Compile",
		evaluatedIncludeEscaped: "src/util.cs",
		metadata:                []metadataEntry{{name: "Pack", escapedValue: "true"}},
	}
	x := NewExpander(testProperties(), nil, itemMetadataScope{item: it})

	got, err := x.Expand("%(Pack)|%(Filename)|%(Compile.Extension)", ExpandFull)
	require.NoError(t, err)
	require.Equal(t, "true|util|.cs", got)

	// Qualified references to another item type expand to empty.
	got, err = x.Expand("%(Other.Filename)", ExpandFull)
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestExpandEscapedReferencesStayInert(t *testing.T) {
	props := testProperties("Configuration", "Debug")
	x := NewExpander(props, nil, nil)

	got, err := x.Expand("%24(Configuration)", ExpandPropertiesOnly)
	require.NoError(t, err)
	require.Equal(t, "%24(Configuration)", got)
	require.Equal(t, "$(Configuration)", Unescape(got))
}
