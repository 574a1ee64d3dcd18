package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirtyTrackingRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
</Project>`)
	p := loadTestProject(t, path, nil)

	require.False(t, p.IsDirty())
	count := p.EvaluationCount()

	// A clean project reevaluates to nothing.
	require.NoError(t, p.ReevaluateIfNecessary())
	assert.Equal(t, count, p.EvaluationCount())

	_, err := p.SetProperty("Configuration", "Release")
	require.NoError(t, err)
	assert.True(t, p.IsDirty())
	// The evaluated state is stale until reevaluation.
	assert.Equal(t, "Debug", p.GetPropertyValue("Configuration"))

	require.NoError(t, p.ReevaluateIfNecessary())
	assert.Equal(t, "Release", p.GetPropertyValue("Configuration"))
	assert.Equal(t, count+1, p.EvaluationCount())
	assert.False(t, p.IsDirty())
}

func TestImportedDocumentChangeDirties(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "common.props", `<Project>
  <PropertyGroup>
    <Shared>v1</Shared>
  </PropertyGroup>
</Project>`)
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <Import Project="common.props" />
</Project>`)
	p := loadTestProject(t, path, nil)
	require.Equal(t, "v1", p.GetPropertyValue("Shared"))
	require.False(t, p.IsDirty())

	imports := p.Imports()
	require.Len(t, imports, 2)
	imports[1].ImportedRoot.SetProperty("Shared", "v2")

	assert.True(t, p.IsDirty(), "imported document mutation dirties the project")
	require.NoError(t, p.ReevaluateIfNecessary())
	assert.Equal(t, "v2", p.GetPropertyValue("Shared"))
}

func TestToolsetChangeDirties(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <PropertyGroup>
    <Flag>$(ToolsetFlag)</Flag>
  </PropertyGroup>
</Project>`)
	c := NewProjectCollection()
	p, err := c.LoadProject(path, nil, "")
	require.NoError(t, err)
	require.Equal(t, "", p.GetPropertyValue("Flag"))

	c.RegisterToolset(NewToolset(DefaultToolsVersion, "/tools", map[string]string{"ToolsetFlag": "on"}))
	assert.True(t, p.IsDirty())
	require.NoError(t, p.ReevaluateIfNecessary())
	assert.Equal(t, "on", p.GetPropertyValue("Flag"))
}

func TestGlobalPropertyMutation(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
</Project>`)
	p := loadTestProject(t, path, nil)

	require.True(t, p.SetGlobalProperty("Configuration", "Release"))
	require.False(t, p.SetGlobalProperty("Configuration", "Release"), "unchanged value is a no-op")
	require.True(t, p.IsDirty())
	require.NoError(t, p.ReevaluateIfNecessary())
	assert.Equal(t, "Release", p.GetPropertyValue("Configuration"))
	assert.True(t, p.GetProperty("Configuration").IsGlobal())

	require.True(t, p.RemoveGlobalProperty("Configuration"))
	require.False(t, p.RemoveGlobalProperty("Configuration"))
	require.NoError(t, p.ReevaluateIfNecessary())
	assert.Equal(t, "Debug", p.GetPropertyValue("Configuration"), "markup value reappears")
}

func TestDisableMarkDirty(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
</Project>`)
	c := NewProjectCollection()
	p, err := c.LoadProject(path, nil, "")
	require.NoError(t, err)

	c.SetDisableMarkDirty(true)
	p.SetGlobalProperty("Configuration", "Release")
	assert.False(t, p.IsDirty(), "dirtying is suppressed")
	require.NoError(t, p.ReevaluateIfNecessary())
	assert.Equal(t, "Debug", p.GetPropertyValue("Configuration"))

	c.SetDisableMarkDirty(false)
	p.MarkDirty()
	assert.True(t, p.IsDirty())
	require.NoError(t, p.ReevaluateIfNecessary())
	assert.Equal(t, "Release", p.GetPropertyValue("Configuration"))
}

func TestSetPropertyValidation(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
</Project>`)
	p := loadTestProject(t, path, map[string]string{"Platform": "AnyCPU"})

	_, err := p.SetProperty("MSBuildProjectFile", "x")
	require.Error(t, err)
	_, err = p.SetProperty("Platform", "x86")
	require.Error(t, err, "globals are not assignable through markup")

	el, err := p.SetProperty("Configuration", "Release")
	require.NoError(t, err)
	assert.Equal(t, "Release", el.Value())
}

func TestAddItemRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <ItemGroup>
    <Compile Include="a.cs" />
  </ItemGroup>
</Project>`)
	p := loadTestProject(t, path, nil)

	p.AddItem("Compile", "b.cs", map[string]string{"Kind": "generated"})
	require.True(t, p.IsDirty())
	require.NoError(t, p.ReevaluateIfNecessary())

	items := p.ItemsOf("Compile")
	require.Equal(t, []string{"a.cs", "b.cs"}, includes(items))
	assert.Equal(t, "generated", items[1].MetadataValue("Kind"))
}

func TestItemsByEvaluatedInclude(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <ItemGroup>
    <Compile Include="a.cs" />
    <Content Include="A.CS" />
    <Compile Include="b.cs" />
  </ItemGroup>
</Project>`)
	p := loadTestProject(t, path, nil)

	matches := p.ItemsByEvaluatedInclude("a.cs")
	require.Len(t, matches, 2, "comparison spans item types and ignores case")
	assert.Equal(t, "Compile", matches[0].ItemType())
	assert.Equal(t, "Content", matches[1].ItemType())
	assert.Empty(t, p.ItemsByEvaluatedInclude("missing.cs"))
}

func TestRemoveItemSingle(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <ItemGroup>
    <Compile Include="a.cs" />
    <Compile Include="b.cs" />
  </ItemGroup>
</Project>`)
	p := loadTestProject(t, path, nil)

	items := p.ItemsOf("Compile")
	require.Len(t, items, 2)
	require.NoError(t, p.RemoveItem(items[0]))

	// Evaluated state is already coherent, and survives reevaluation.
	assert.Equal(t, []string{"b.cs"}, includes(p.ItemsOf("Compile")))
	require.NoError(t, p.ReevaluateIfNecessary())
	assert.Equal(t, []string{"b.cs"}, includes(p.ItemsOf("Compile")))
	require.Len(t, p.Xml().ItemGroups()[0].Items(), 1)
}

func TestRemoveItemDropsFromIgnoringCondition(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <ItemGroup>
    <Compile Include="a.cs" />
    <Compile Include="b.cs" />
  </ItemGroup>
</Project>`)
	p := loadTestProject(t, path, nil)

	items := p.ItemsOf("Compile")
	require.Len(t, items, 2)
	require.NoError(t, p.RemoveItem(items[0]))

	// Both collections are coherent before the next reevaluation.
	assert.Equal(t, []string{"b.cs"}, includes(p.ItemsOf("Compile")))
	assert.Equal(t, []string{"b.cs"}, includes(p.ItemsIgnoringCondition()))
}

func TestRemoveItemSplitsListElement(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <ItemGroup>
    <Compile Include="a.cs;b.cs;c.cs">
      <Kind>source</Kind>
    </Compile>
  </ItemGroup>
</Project>`)
	p := loadTestProject(t, path, nil)

	items := p.ItemsOf("Compile")
	require.Len(t, items, 3)
	require.NoError(t, p.RemoveItem(items[1]))

	// The list element was replaced by one single-include element per
	// survivor, metadata carried along.
	elements := p.Xml().ItemGroups()[0].Items()
	require.Len(t, elements, 2)
	assert.Equal(t, "a.cs", elements[0].Include())
	assert.Equal(t, "c.cs", elements[1].Include())

	require.NoError(t, p.ReevaluateIfNecessary())
	items = p.ItemsOf("Compile")
	require.Equal(t, []string{"a.cs", "c.cs"}, includes(items))
	assert.Equal(t, "source", items[0].MetadataValue("Kind"))
	assert.Equal(t, "source", items[1].MetadataValue("Kind"))
}

func TestRemoveItemRejectsForeignItem(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <ItemGroup>
    <Compile Include="a.cs" />
  </ItemGroup>
</Project>`)
	p := loadTestProject(t, path, nil)

	require.Error(t, p.RemoveItem(nil))
	require.Error(t, p.RemoveItem(&Item{itemType: "Compile"}))
}

func TestDataViewIsReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <PropertyGroup>
    <Configuration>Debug</Configuration>
  </PropertyGroup>
</Project>`)
	p := loadTestProject(t, path, nil)
	view := p.View()

	var notSupported *NotSupportedError
	require.ErrorAs(t, view.SetProperty("X", "1"), &notSupported)
	require.ErrorAs(t, view.AddItem("Compile", "a.cs"), &notSupported)
	require.ErrorAs(t, view.RemoveItem(nil), &notSupported)
	assert.Equal(t, "Debug", view.PropertyValue("Configuration"))
}

func TestCollectionIdentity(t *testing.T) {
	dir := t.TempDir()
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <PropertyGroup>
    <Configuration Condition="'$(Configuration)' == ''">Debug</Configuration>
  </PropertyGroup>
</Project>`)
	c := NewProjectCollection()

	p1, err := c.LoadProject(path, nil, "")
	require.NoError(t, err)
	p2, err := c.LoadProject(path, nil, "")
	require.NoError(t, err)
	assert.Same(t, p1, p2, "same identity returns the loaded project")

	p3, err := c.LoadProject(path, map[string]string{"Configuration": "Release"}, "")
	require.NoError(t, err)
	assert.NotSame(t, p1, p3, "distinct globals are a distinct project")
	assert.Equal(t, "Release", p3.GetPropertyValue("Configuration"))
	assert.Equal(t, "Debug", p1.GetPropertyValue("Configuration"))

	assert.Len(t, c.LoadedProjects(), 2)
	assert.Len(t, c.GetLoadedProjects(path), 2)

	// Registering an equivalent project explicitly is an error.
	_, err = c.AddProject(p1.Xml(), nil, "")
	var dup *DuplicateProjectError
	require.ErrorAs(t, err, &dup)
}

func TestUnloadProjectAndDocuments(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "common.props", `<Project>
  <PropertyGroup><Shared>1</Shared></PropertyGroup>
</Project>`)
	path := writeProjectFile(t, dir, "p.proj", `<Project>
  <Import Project="common.props" />
</Project>`)
	c := NewProjectCollection()
	p, err := c.LoadProject(path, nil, "")
	require.NoError(t, err)

	// The import's document is held by a loaded project.
	err = c.UnloadDocument(dir + "/common.props")
	var inUse *ProjectInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, p.FullPath(), inUse.ReferencedBy)

	require.NoError(t, c.UnloadProject(p))
	require.Error(t, c.UnloadProject(p), "double unload")
	require.NoError(t, c.UnloadDocument(dir+"/common.props"))
	assert.Empty(t, c.LoadedProjects())
}

func TestProjectsShareImportedDocuments(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "common.props", `<Project>
  <PropertyGroup><Shared>1</Shared></PropertyGroup>
</Project>`)
	pathA := writeProjectFile(t, dir, "a.proj", `<Project>
  <Import Project="common.props" />
</Project>`)
	pathB := writeProjectFile(t, dir, "b.proj", `<Project>
  <Import Project="common.props" />
</Project>`)

	c := NewProjectCollection()
	a, err := c.LoadProject(pathA, nil, "")
	require.NoError(t, err)
	b, err := c.LoadProject(pathB, nil, "")
	require.NoError(t, err)

	assert.Same(t, a.Imports()[1].ImportedRoot, b.Imports()[1].ImportedRoot,
		"imported documents are shared by reference")

	// Mutating the shared document dirties both projects.
	a.Imports()[1].ImportedRoot.SetProperty("Shared", "2")
	assert.True(t, a.IsDirty())
	assert.True(t, b.IsDirty())
}
