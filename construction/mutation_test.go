package construction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCounterBumpsOnMutation(t *testing.T) {
	root, err := Parse(strings.NewReader(sampleProject), "test.proj")
	require.NoError(t, err)

	v0 := root.Version()
	assert.False(t, root.HasUnsavedChanges())

	root.SetProperty("NewProp", "1")
	v1 := root.Version()
	assert.Greater(t, v1, v0)
	assert.True(t, root.HasUnsavedChanges())

	root.AddItem("Compile", "c.cs", nil)
	assert.Greater(t, root.Version(), v1)
}

func TestParsedElementsShareRoot(t *testing.T) {
	root, err := Parse(strings.NewReader(`<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="a.cs">
      <Kind>source</Kind>
    </Compile>
  </ItemGroup>
  <ImportGroup>
    <Import Project="common.props" />
  </ImportGroup>
  <Choose>
    <When Condition="'$(Configuration)' == 'Debug'">
      <PropertyGroup>
        <Optimize>false</Optimize>
      </PropertyGroup>
    </When>
  </Choose>
  <Target Name="Build">
    <Csc Sources="@(Compile)">
      <Output TaskParameter="Assembly" ItemName="Built" />
    </Csc>
  </Target>
</Project>`), "test.proj")
	require.NoError(t, err)

	prop := root.PropertyGroups()[0].Properties()[0]
	item := root.ItemGroups()[0].Items()[0]
	meta := item.Metadata()[0]
	imp := root.Imports()[0]
	when := root.Children()[3].(*ChooseElement).Whens()[0]
	branchProp := when.Children()[0].(*PropertyGroupElement).Properties()[0]
	task := root.Targets()[0].Tasks()[0]
	out := task.Outputs()[0]

	for _, el := range []Element{prop, item, meta, imp, when, branchProp, task, out} {
		assert.Same(t, root, el.Root(), "%s at %v", el.ElementName(), el.Location())
	}
}

func TestMutatingParsedElementBumpsVersion(t *testing.T) {
	root, err := Parse(strings.NewReader(`<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="a.cs" />
    <Compile Include="b.cs" />
  </ItemGroup>
</Project>`), "test.proj")
	require.NoError(t, err)

	v := root.Version()
	root.PropertyGroups()[0].Properties()[0].SetValue("Release")
	require.Greater(t, root.Version(), v)

	v = root.Version()
	item := root.ItemGroups()[0].Items()[1]
	require.True(t, root.RemoveElement(item))
	assert.Greater(t, root.Version(), v)
	assert.Len(t, root.ItemGroups()[0].Items(), 1)
}

func TestSetPropertyUpdatesLastUnconditional(t *testing.T) {
	root := Create("mem.proj")
	g := root.AddPropertyGroup()
	g.AddProperty("X", "1")
	g.AddProperty("X", "2")

	root.SetProperty("X", "3")

	props := g.Properties()
	require.Len(t, props, 2)
	assert.Equal(t, "1", props[0].Value())
	assert.Equal(t, "3", props[1].Value())
}

func TestSetPropertyCreatesGroupWhenNoneExists(t *testing.T) {
	root := Create("mem.proj")
	p := root.SetProperty("Fresh", "value")

	require.Len(t, root.PropertyGroups(), 1)
	assert.Equal(t, "Fresh", p.Name())
	assert.Equal(t, "value", p.Value())
	assert.Same(t, root, p.Root())
}

func TestAddItemAttachesMetadataAtomically(t *testing.T) {
	root := Create("mem.proj")
	item := root.AddItem("Compile", "a.cs", map[string]string{
		"Visible": "true",
		"Culture": "en-US",
	})

	meta := item.Metadata()
	require.Len(t, meta, 2)
	// Metadata maps materialize in name order.
	assert.Equal(t, "Culture", meta[0].Name())
	assert.Equal(t, "Visible", meta[1].Name())
	for _, m := range meta {
		assert.Same(t, item, m.Parent())
		assert.Same(t, root, m.Root())
	}
}

func TestAddItemGroupsByType(t *testing.T) {
	root := Create("mem.proj")
	root.AddItem("Compile", "a.cs", nil)
	root.AddItem("Compile", "b.cs", nil)
	root.AddItem("Content", "readme.txt", nil)

	groups := root.ItemGroups()
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Items(), 2)
	assert.Len(t, groups[1].Items(), 1)
}

func TestRemoveElement(t *testing.T) {
	root := Create("mem.proj")
	item := root.AddItem("Compile", "a.cs", nil)
	v := root.Version()

	require.True(t, root.RemoveElement(item))
	assert.Nil(t, item.Parent())
	assert.Greater(t, root.Version(), v)
	assert.Empty(t, root.ItemGroups()[0].Items())

	// Removing twice fails cleanly.
	assert.False(t, root.RemoveElement(item))
}

func TestNoNodeUnderTwoParents(t *testing.T) {
	root := Create("mem.proj")
	g1 := root.AddItemGroup()
	g2 := root.AddItemGroup()
	item := g1.AddItem("Compile", "a.cs", nil)

	// Re-adding the same element under another group detaches it first.
	adopt(root, g2, &g2.container, item)

	assert.Empty(t, g1.Items())
	require.Len(t, g2.Items(), 1)
	assert.Same(t, g2, Element(item).Parent())
}

func TestCreateRoot(t *testing.T) {
	root := Create("/tmp/new.proj")
	assert.Equal(t, "/tmp/new.proj", root.Path())
	assert.Equal(t, "/tmp", root.DirectoryPath())
	assert.Equal(t, int64(0), root.Version())
	assert.Empty(t, root.Children())
}
