package construction

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strings"
)

// reservedPropertyNames are tag names that can never be used as property
// names inside a PropertyGroup.
var reservedPropertyNames = map[string]bool{
	"Choose":              true,
	"Import":              true,
	"ImportGroup":         true,
	"Item":                true,
	"ItemGroup":           true,
	"ItemDefinitionGroup": true,
	"OnError":             true,
	"Otherwise":           true,
	"Output":              true,
	"ProjectExtensions":   true,
	"Property":            true,
	"PropertyGroup":       true,
	"Target":              true,
	"When":                true,
	"VisualStudioProject": true,
}

// reservedMetadataNames are computed per-item by the evaluator and can never
// be assigned explicitly.
var reservedMetadataNames = map[string]bool{
	"AccessedTime": true,
	"CreatedTime":  true,
	"Directory":    true,
	"Extension":    true,
	"Filename":     true,
	"FullPath":     true,
	"Identity":     true,
	"ModifiedTime": true,
	"RecursiveDir": true,
	"RelativeDir":  true,
	"RootDir":      true,
}

// IsReservedMetadataName reports whether name is a computed metadata name.
// The comparison is case-insensitive, like all metadata identifiers.
func IsReservedMetadataName(name string) bool {
	for reserved := range reservedMetadataNames {
		if strings.EqualFold(reserved, name) {
			return true
		}
	}
	return false
}

type parser struct {
	dec        *xml.Decoder
	data       []byte
	path       string
	lineStarts []int
	tokStart   int64
	root       *ProjectRootElement
}

func parseDocument(data []byte, path string) (*ProjectRootElement, error) {
	p := &parser{
		dec:        xml.NewDecoder(bytes.NewReader(data)),
		data:       data,
		path:       path,
		lineStarts: indexLines(data),
	}

	start, loc, err := p.firstElement()
	if err != nil {
		return nil, err
	}
	if start.Name.Local != "Project" {
		return nil, NewInvalidProjectFileError(CodeUnrecognizedElement, loc,
			"unexpected root element <%s>; a project document must begin with <Project>", start.Name.Local)
	}

	root := &ProjectRootElement{
		elementBase: elementBase{name: "Project", loc: loc},
		path:        path,
		rawBytes:    data,
	}
	root.root = root
	p.root = root

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "DefaultTargets":
			root.defaultTargets = attr.Value
		case "InitialTargets":
			root.initialTargets = attr.Value
		case "ToolsVersion":
			root.toolsVersion = attr.Value
		case "Label":
			root.label = attr.Value
		case "xmlns":
			// Tolerated and dropped on save.
		default:
			return nil, p.errAttr("Project", attr.Name.Local, loc)
		}
	}

	if err := p.parseProjectChildren(root); err != nil {
		return nil, err
	}
	return root, nil
}

// indexLines records the byte offset at which each line begins.
func indexLines(data []byte) []int {
	starts := []int{0}
	for i, b := range data {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (p *parser) locAt(offset int64) Location {
	line := sort.Search(len(p.lineStarts), func(i int) bool {
		return int64(p.lineStarts[i]) > offset
	})
	col := int(offset) - p.lineStarts[line-1] + 1
	return Location{File: p.path, Line: line, Column: col}
}

// next returns the next token, remembering the byte offset where it began.
func (p *parser) next() (xml.Token, Location, error) {
	p.tokStart = p.dec.InputOffset()
	tok, err := p.dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, Location{}, err
		}
		loc := p.locAt(p.dec.InputOffset())
		return nil, loc, NewInvalidProjectFileError(CodeInvalidMarkup, loc, "invalid markup: %v", err)
	}
	return tok, p.locAt(p.tokStart), nil
}

func (p *parser) firstElement() (xml.StartElement, Location, error) {
	for {
		tok, loc, err := p.next()
		if err == io.EOF {
			end := p.locAt(int64(len(p.data)))
			return xml.StartElement{}, end, NewInvalidProjectFileError(CodeInvalidMarkup, end, "document contains no root element")
		}
		if err != nil {
			return xml.StartElement{}, loc, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, loc, nil
		}
	}
}

func (p *parser) errAttr(element, attr string, loc Location) error {
	return NewInvalidProjectFileError(CodeUnrecognizedAttribute, loc,
		"attribute %q is not valid on element <%s>", attr, element)
}

func (p *parser) errChild(parent, child string, loc Location) error {
	return NewInvalidProjectFileError(CodeUnrecognizedElement, loc,
		"element <%s> is not valid under element <%s>", child, parent)
}

// commonAttrs extracts Condition/Label into base and reports any attribute
// outside allowed.
func (p *parser) commonAttrs(start xml.StartElement, base *elementBase, loc Location, allowed ...string) (map[string]string, error) {
	extra := map[string]string{}
	for _, attr := range start.Attr {
		name := attr.Name.Local
		switch name {
		case "Condition":
			base.condition = attr.Value
			base.conditionLoc = loc
			continue
		case "Label":
			base.label = attr.Value
			continue
		}
		ok := false
		for _, a := range allowed {
			if a == name {
				ok = true
				break
			}
		}
		if !ok {
			return nil, p.errAttr(start.Name.Local, name, loc)
		}
		extra[name] = attr.Value
	}
	return extra, nil
}

func (p *parser) parseProjectChildren(root *ProjectRootElement) error {
	sawExtensions := false
	for {
		tok, loc, err := p.next()
		if err == io.EOF {
			end := p.locAt(int64(len(p.data)))
			return NewInvalidProjectFileError(CodeInvalidMarkup, end, "unexpected end of document inside <Project>")
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			var child Element
			switch t.Name.Local {
			case "PropertyGroup":
				child, err = p.parsePropertyGroup(t, loc)
			case "ItemGroup":
				child, err = p.parseItemGroup(t, loc)
			case "ItemDefinitionGroup":
				child, err = p.parseItemDefinitionGroup(t, loc)
			case "Import":
				child, err = p.parseImport(t, loc)
			case "ImportGroup":
				child, err = p.parseImportGroup(t, loc)
			case "Target":
				child, err = p.parseTarget(t, loc)
			case "Choose":
				child, err = p.parseChoose(t, loc)
			case "ProjectExtensions":
				if sawExtensions {
					return NewInvalidProjectFileError(CodeDuplicateSingleton, loc,
						"only one <ProjectExtensions> element is allowed per project")
				}
				sawExtensions = true
				child, err = p.parseProjectExtensions(t, loc)
			default:
				return p.errChild("Project", t.Name.Local, loc)
			}
			if err != nil {
				return err
			}
			child.setParent(root)
			setRootRecursive(child, root)
			root.appendChild(child)
		}
	}
}

func (p *parser) parsePropertyGroup(start xml.StartElement, loc Location) (*PropertyGroupElement, error) {
	g := &PropertyGroupElement{elementBase: elementBase{name: "PropertyGroup", loc: loc}}
	if _, err := p.commonAttrs(start, &g.elementBase, loc); err != nil {
		return nil, err
	}
	return g, p.parseChildren(start.Name.Local, func(child xml.StartElement, childLoc Location) error {
		prop, err := p.parseProperty(child, childLoc)
		if err != nil {
			return err
		}
		prop.setParent(g)
		g.appendChild(prop)
		return nil
	})
}

func (p *parser) parseProperty(start xml.StartElement, loc Location) (*PropertyElement, error) {
	name := start.Name.Local
	if reservedPropertyNames[name] {
		return nil, NewInvalidProjectFileError(CodeReservedName, loc,
			"%q is a reserved element name and cannot be used as a property name", name)
	}
	prop := &PropertyElement{elementBase: elementBase{name: name, loc: loc}}
	if _, err := p.commonAttrs(start, &prop.elementBase, loc); err != nil {
		return nil, err
	}
	value, err := p.elementText(name)
	if err != nil {
		return nil, err
	}
	prop.value = value
	return prop, nil
}

func (p *parser) parseItemGroup(start xml.StartElement, loc Location) (*ItemGroupElement, error) {
	g := &ItemGroupElement{elementBase: elementBase{name: "ItemGroup", loc: loc}}
	if _, err := p.commonAttrs(start, &g.elementBase, loc); err != nil {
		return nil, err
	}
	return g, p.parseChildren(start.Name.Local, func(child xml.StartElement, childLoc Location) error {
		item, err := p.parseItem(child, childLoc)
		if err != nil {
			return err
		}
		item.setParent(g)
		g.appendChild(item)
		return nil
	})
}

func (p *parser) parseItem(start xml.StartElement, loc Location) (*ItemElement, error) {
	item := &ItemElement{elementBase: elementBase{name: start.Name.Local, loc: loc}}
	extra, err := p.commonAttrs(start, &item.elementBase, loc, "Include", "Exclude", "Remove")
	if err != nil {
		return nil, err
	}
	item.include = extra["Include"]
	item.exclude = extra["Exclude"]
	item.remove = extra["Remove"]

	if item.include == "" && item.remove == "" {
		return nil, NewInvalidProjectFileError(CodeMissingRequiredAttribute, loc,
			"item <%s> must specify either Include or Remove", item.ItemType())
	}
	if item.include != "" && item.remove != "" {
		return nil, NewInvalidProjectFileError(CodeUnrecognizedAttribute, loc,
			"item <%s> may not specify both Include and Remove", item.ItemType())
	}
	if item.exclude != "" && item.include == "" {
		return nil, NewInvalidProjectFileError(CodeUnrecognizedAttribute, loc,
			"item <%s> may not specify Exclude without Include", item.ItemType())
	}

	err = p.parseChildren(start.Name.Local, func(child xml.StartElement, childLoc Location) error {
		meta, err := p.parseMetadata(child, childLoc)
		if err != nil {
			return err
		}
		meta.setParent(item)
		item.appendChild(meta)
		return nil
	})
	return item, err
}

func (p *parser) parseMetadata(start xml.StartElement, loc Location) (*MetadataElement, error) {
	name := start.Name.Local
	if IsReservedMetadataName(name) {
		return nil, NewInvalidProjectFileError(CodeReservedName, loc,
			"%q is a reserved metadata name and cannot be assigned", name)
	}
	meta := &MetadataElement{elementBase: elementBase{name: name, loc: loc}}
	if _, err := p.commonAttrs(start, &meta.elementBase, loc); err != nil {
		return nil, err
	}
	value, err := p.elementText(name)
	if err != nil {
		return nil, err
	}
	meta.value = value
	return meta, nil
}

func (p *parser) parseItemDefinitionGroup(start xml.StartElement, loc Location) (*ItemDefinitionGroupElement, error) {
	g := &ItemDefinitionGroupElement{elementBase: elementBase{name: "ItemDefinitionGroup", loc: loc}}
	if _, err := p.commonAttrs(start, &g.elementBase, loc); err != nil {
		return nil, err
	}
	return g, p.parseChildren(start.Name.Local, func(child xml.StartElement, childLoc Location) error {
		def := &ItemDefinitionElement{elementBase: elementBase{name: child.Name.Local, loc: childLoc}}
		if _, err := p.commonAttrs(child, &def.elementBase, childLoc); err != nil {
			return err
		}
		err := p.parseChildren(child.Name.Local, func(metaStart xml.StartElement, metaLoc Location) error {
			meta, err := p.parseMetadata(metaStart, metaLoc)
			if err != nil {
				return err
			}
			meta.setParent(def)
			def.appendChild(meta)
			return nil
		})
		if err != nil {
			return err
		}
		def.setParent(g)
		g.appendChild(def)
		return nil
	})
}

func (p *parser) parseImport(start xml.StartElement, loc Location) (*ImportElement, error) {
	imp := &ImportElement{elementBase: elementBase{name: "Import", loc: loc}}
	extra, err := p.commonAttrs(start, &imp.elementBase, loc, "Project")
	if err != nil {
		return nil, err
	}
	imp.project = extra["Project"]
	if imp.project == "" {
		return nil, NewInvalidProjectFileError(CodeMissingRequiredAttribute, loc,
			"element <Import> requires a non-empty Project attribute")
	}
	return imp, p.expectEmpty(start.Name.Local)
}

func (p *parser) parseImportGroup(start xml.StartElement, loc Location) (*ImportGroupElement, error) {
	g := &ImportGroupElement{elementBase: elementBase{name: "ImportGroup", loc: loc}}
	if _, err := p.commonAttrs(start, &g.elementBase, loc); err != nil {
		return nil, err
	}
	return g, p.parseChildren(start.Name.Local, func(child xml.StartElement, childLoc Location) error {
		if child.Name.Local != "Import" {
			return p.errChild("ImportGroup", child.Name.Local, childLoc)
		}
		imp, err := p.parseImport(child, childLoc)
		if err != nil {
			return err
		}
		imp.setParent(g)
		g.appendChild(imp)
		return nil
	})
}

// parseChoose parses a Choose with bounded recursion handled later by the
// evaluator; structurally it requires at least one When, allows one
// Otherwise, and requires the Otherwise to come after every When.
func (p *parser) parseChoose(start xml.StartElement, loc Location) (*ChooseElement, error) {
	choose := &ChooseElement{elementBase: elementBase{name: "Choose", loc: loc}}
	if len(start.Attr) > 0 {
		return nil, p.errAttr("Choose", start.Attr[0].Name.Local, loc)
	}

	sawOtherwise := false
	err := p.parseChildren(start.Name.Local, func(child xml.StartElement, childLoc Location) error {
		switch child.Name.Local {
		case "When":
			if sawOtherwise {
				return NewInvalidProjectFileError(CodeInvalidChildPlacement, childLoc,
					"<When> may not appear after <Otherwise> inside <Choose>")
			}
			when := &WhenElement{elementBase: elementBase{name: "When", loc: childLoc}}
			if _, err := p.commonAttrs(child, &when.elementBase, childLoc); err != nil {
				return err
			}
			if when.condition == "" {
				return NewInvalidProjectFileError(CodeMissingRequiredAttribute, childLoc,
					"element <When> requires a Condition attribute")
			}
			if err := p.parseBranchChildren(when.ElementName(), &when.container, when); err != nil {
				return err
			}
			when.setParent(choose)
			choose.appendChild(when)
		case "Otherwise":
			if sawOtherwise {
				return NewInvalidProjectFileError(CodeDuplicateSingleton, childLoc,
					"only one <Otherwise> element is allowed per <Choose>")
			}
			sawOtherwise = true
			if len(child.Attr) > 0 {
				return p.errAttr("Otherwise", child.Attr[0].Name.Local, childLoc)
			}
			other := &OtherwiseElement{elementBase: elementBase{name: "Otherwise", loc: childLoc}}
			if err := p.parseBranchChildren(other.ElementName(), &other.container, other); err != nil {
				return err
			}
			other.setParent(choose)
			choose.appendChild(other)
		default:
			return p.errChild("Choose", child.Name.Local, childLoc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(choose.Whens()) == 0 {
		return nil, NewInvalidProjectFileError(CodeMissingRequiredAttribute, loc,
			"element <Choose> requires at least one <When> child")
	}
	return choose, nil
}

// parseBranchChildren parses the PropertyGroup/ItemGroup/Choose children
// allowed inside When and Otherwise.
func (p *parser) parseBranchChildren(parentName string, c *container, parent Element) error {
	return p.parseChildren(parentName, func(child xml.StartElement, childLoc Location) error {
		var el Element
		var err error
		switch child.Name.Local {
		case "PropertyGroup":
			el, err = p.parsePropertyGroup(child, childLoc)
		case "ItemGroup":
			el, err = p.parseItemGroup(child, childLoc)
		case "Choose":
			el, err = p.parseChoose(child, childLoc)
		default:
			return p.errChild(parentName, child.Name.Local, childLoc)
		}
		if err != nil {
			return err
		}
		el.setParent(parent)
		c.appendChild(el)
		return nil
	})
}

func (p *parser) parseTarget(start xml.StartElement, loc Location) (*TargetElement, error) {
	target := &TargetElement{elementBase: elementBase{name: "Target", loc: loc}}
	extra, err := p.commonAttrs(start, &target.elementBase, loc,
		"Name", "DependsOnTargets", "BeforeTargets", "AfterTargets", "Inputs", "Outputs", "Returns")
	if err != nil {
		return nil, err
	}
	target.targetName = extra["Name"]
	target.dependsOnTargets = extra["DependsOnTargets"]
	target.beforeTargets = extra["BeforeTargets"]
	target.afterTargets = extra["AfterTargets"]
	target.inputs = extra["Inputs"]
	target.outputs = extra["Outputs"]
	target.returns = extra["Returns"]
	if target.targetName == "" {
		return nil, NewInvalidProjectFileError(CodeMissingRequiredAttribute, loc,
			"element <Target> requires a non-empty Name attribute")
	}

	sawOnError := false
	err = p.parseChildren(start.Name.Local, func(child xml.StartElement, childLoc Location) error {
		if sawOnError {
			return NewInvalidProjectFileError(CodeInvalidChildPlacement, childLoc,
				"<OnError> must be the last element inside target %q", target.Name())
		}
		var el Element
		var err error
		switch child.Name.Local {
		case "OnError":
			sawOnError = true
			el, err = p.parseOnError(child, childLoc)
		case "PropertyGroup":
			el, err = p.parsePropertyGroup(child, childLoc)
		case "ItemGroup":
			el, err = p.parseItemGroup(child, childLoc)
		case "ItemDefinitionGroup":
			return NewInvalidProjectFileError(CodeUnrecognizedElement, childLoc,
				"<ItemDefinitionGroup> is not allowed inside a target")
		case "Choose", "Import", "ImportGroup", "Target", "ProjectExtensions":
			return p.errChild("Target", child.Name.Local, childLoc)
		default:
			el, err = p.parseTask(child, childLoc)
		}
		if err != nil {
			return err
		}
		el.setParent(target)
		target.appendChild(el)
		return nil
	})
	return target, err
}

func (p *parser) parseTask(start xml.StartElement, loc Location) (*TaskElement, error) {
	task := &TaskElement{elementBase: elementBase{name: start.Name.Local, loc: loc}}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "Condition":
			task.condition = attr.Value
			task.conditionLoc = loc
		case "Label":
			task.label = attr.Value
		case "ContinueOnError":
			task.continueOnError = attr.Value
		default:
			task.parameters = append(task.parameters, TaskParameter{
				Name:  attr.Name.Local,
				Value: attr.Value,
				Loc:   loc,
			})
		}
	}
	err := p.parseChildren(start.Name.Local, func(child xml.StartElement, childLoc Location) error {
		if child.Name.Local != "Output" {
			return p.errChild(task.TaskName(), child.Name.Local, childLoc)
		}
		out, err := p.parseOutput(child, childLoc)
		if err != nil {
			return err
		}
		out.setParent(task)
		task.appendChild(out)
		return nil
	})
	return task, err
}

func (p *parser) parseOutput(start xml.StartElement, loc Location) (*OutputElement, error) {
	out := &OutputElement{elementBase: elementBase{name: "Output", loc: loc}}
	extra, err := p.commonAttrs(start, &out.elementBase, loc, "TaskParameter", "ItemName", "PropertyName")
	if err != nil {
		return nil, err
	}
	out.taskParameter = extra["TaskParameter"]
	out.itemName = extra["ItemName"]
	out.propertyName = extra["PropertyName"]
	if out.taskParameter == "" {
		return nil, NewInvalidProjectFileError(CodeMissingRequiredAttribute, loc,
			"element <Output> requires a non-empty TaskParameter attribute")
	}
	if (out.itemName == "") == (out.propertyName == "") {
		return nil, NewInvalidProjectFileError(CodeUnrecognizedAttribute, loc,
			"element <Output> requires exactly one of ItemName or PropertyName")
	}
	return out, p.expectEmpty(start.Name.Local)
}

func (p *parser) parseOnError(start xml.StartElement, loc Location) (*OnErrorElement, error) {
	oe := &OnErrorElement{elementBase: elementBase{name: "OnError", loc: loc}}
	extra, err := p.commonAttrs(start, &oe.elementBase, loc, "ExecuteTargets")
	if err != nil {
		return nil, err
	}
	oe.executeTargets = extra["ExecuteTargets"]
	if oe.executeTargets == "" {
		return nil, NewInvalidProjectFileError(CodeMissingRequiredAttribute, loc,
			"element <OnError> requires a non-empty ExecuteTargets attribute")
	}
	return oe, p.expectEmpty(start.Name.Local)
}

// parseProjectExtensions captures the raw inner markup verbatim.
func (p *parser) parseProjectExtensions(start xml.StartElement, loc Location) (*ProjectExtensionsElement, error) {
	ext := &ProjectExtensionsElement{elementBase: elementBase{name: "ProjectExtensions", loc: loc}}
	contentStart := p.dec.InputOffset()
	depth := 1
	for depth > 0 {
		tok, _, err := p.next()
		if err == io.EOF {
			end := p.locAt(int64(len(p.data)))
			return nil, NewInvalidProjectFileError(CodeInvalidMarkup, end, "unexpected end of document inside <ProjectExtensions>")
		}
		if err != nil {
			return nil, err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	ext.content = string(p.data[contentStart:p.tokStart])
	return ext, nil
}

// parseChildren walks the children of the current element, calling onChild
// for each nested StartElement, until the matching EndElement. Text content
// other than whitespace is rejected.
func (p *parser) parseChildren(parentName string, onChild func(xml.StartElement, Location) error) error {
	for {
		tok, loc, err := p.next()
		if err == io.EOF {
			end := p.locAt(int64(len(p.data)))
			return NewInvalidProjectFileError(CodeInvalidMarkup, end, "unexpected end of document inside <%s>", parentName)
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			if err := onChild(t, loc); err != nil {
				return err
			}
		case xml.CharData:
			if strings.TrimSpace(string(t)) != "" {
				return NewInvalidProjectFileError(CodeUnrecognizedElement, loc,
					"unexpected text content inside <%s>", parentName)
			}
		}
	}
}

// elementText consumes the body of a leaf text element (property or
// metadata) and returns the concatenated character data.
func (p *parser) elementText(name string) (string, error) {
	var sb strings.Builder
	for {
		tok, loc, err := p.next()
		if err == io.EOF {
			end := p.locAt(int64(len(p.data)))
			return "", NewInvalidProjectFileError(CodeInvalidMarkup, end, "unexpected end of document inside <%s>", name)
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return sb.String(), nil
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			return "", NewInvalidProjectFileError(CodeUnrecognizedElement, loc,
				"element <%s> is not valid inside the value of <%s>", t.Name.Local, name)
		}
	}
}

// expectEmpty consumes the end tag of an element that allows no children.
func (p *parser) expectEmpty(name string) error {
	return p.parseChildren(name, func(child xml.StartElement, loc Location) error {
		return p.errChild(name, child.Name.Local, loc)
	})
}
