package construction

import (
	"fmt"
	"io"
	"strings"
)

// writeDocument serializes a document tree to markup with two-space
// indentation. Raw unevaluated text is written back exactly as held in the
// tree (entity-escaped as needed).
func writeDocument(w io.Writer, root *ProjectRootElement) error {
	dw := &docWriter{w: w}
	dw.printf(`<?xml version="1.0" encoding="utf-8"?>`)
	dw.newline()

	attrs := []attr{
		{"DefaultTargets", root.defaultTargets},
		{"InitialTargets", root.initialTargets},
		{"ToolsVersion", root.toolsVersion},
		{"Label", root.label},
	}
	dw.open("Project", attrs, len(root.children) == 0)
	for _, child := range root.children {
		dw.writeElement(child, 1)
	}
	if len(root.children) > 0 {
		dw.close("Project", 0)
	}
	return dw.err
}

type attr struct {
	name  string
	value string
}

type docWriter struct {
	w   io.Writer
	err error
}

func (dw *docWriter) printf(format string, args ...any) {
	if dw.err != nil {
		return
	}
	_, dw.err = fmt.Fprintf(dw.w, format, args...)
}

func (dw *docWriter) newline() { dw.printf("\n") }

func (dw *docWriter) indent(depth int) { dw.printf("%s", strings.Repeat("  ", depth)) }

func (dw *docWriter) open(name string, attrs []attr, selfClose bool) {
	dw.printf("<%s", name)
	for _, a := range attrs {
		if a.value != "" {
			dw.printf(` %s="%s"`, a.name, escapeAttr(a.value))
		}
	}
	if selfClose {
		dw.printf(" />")
	} else {
		dw.printf(">")
	}
	dw.newline()
}

func (dw *docWriter) close(name string, depth int) {
	dw.indent(depth)
	dw.printf("</%s>", name)
	dw.newline()
}

// textElement writes a leaf element whose body is raw text.
func (dw *docWriter) textElement(name, condition, label, value string, depth int) {
	dw.indent(depth)
	dw.printf("<%s", name)
	if condition != "" {
		dw.printf(` Condition="%s"`, escapeAttr(condition))
	}
	if label != "" {
		dw.printf(` Label="%s"`, escapeAttr(label))
	}
	if value == "" {
		dw.printf(" />")
	} else {
		dw.printf(">%s</%s>", escapeText(value), name)
	}
	dw.newline()
}

func commonAttrs(el Element, extra ...attr) []attr {
	attrs := make([]attr, 0, len(extra)+2)
	attrs = append(attrs, extra...)
	attrs = append(attrs, attr{"Condition", el.Condition()}, attr{"Label", el.Label()})
	return attrs
}

func (dw *docWriter) container(name string, el Element, children []Element, depth int, extra ...attr) {
	dw.indent(depth)
	dw.open(name, commonAttrs(el, extra...), len(children) == 0)
	if len(children) == 0 {
		return
	}
	for _, child := range children {
		dw.writeElement(child, depth+1)
	}
	dw.close(name, depth)
}

func (dw *docWriter) writeElement(el Element, depth int) {
	switch t := el.(type) {
	case *PropertyGroupElement:
		dw.container("PropertyGroup", t, t.children, depth)
	case *PropertyElement:
		dw.textElement(t.Name(), t.Condition(), t.Label(), t.Value(), depth)
	case *MetadataElement:
		dw.textElement(t.Name(), t.Condition(), t.Label(), t.Value(), depth)
	case *ItemGroupElement:
		dw.container("ItemGroup", t, t.children, depth)
	case *ItemElement:
		dw.container(t.ItemType(), t, t.children, depth,
			attr{"Include", t.Include()}, attr{"Exclude", t.Exclude()}, attr{"Remove", t.Remove()})
	case *ItemDefinitionGroupElement:
		dw.container("ItemDefinitionGroup", t, t.children, depth)
	case *ItemDefinitionElement:
		dw.container(t.ItemType(), t, t.children, depth)
	case *ImportElement:
		dw.indent(depth)
		dw.printf(`<Import Project="%s"`, escapeAttr(t.Project()))
		if t.Condition() != "" {
			dw.printf(` Condition="%s"`, escapeAttr(t.Condition()))
		}
		if t.Label() != "" {
			dw.printf(` Label="%s"`, escapeAttr(t.Label()))
		}
		dw.printf(" />")
		dw.newline()
	case *ImportGroupElement:
		dw.container("ImportGroup", t, t.children, depth)
	case *ChooseElement:
		dw.indent(depth)
		dw.open("Choose", nil, len(t.children) == 0)
		for _, child := range t.children {
			dw.writeElement(child, depth+1)
		}
		if len(t.children) > 0 {
			dw.close("Choose", depth)
		}
	case *WhenElement:
		dw.container("When", t, t.children, depth)
	case *OtherwiseElement:
		dw.indent(depth)
		dw.open("Otherwise", nil, len(t.children) == 0)
		for _, child := range t.children {
			dw.writeElement(child, depth+1)
		}
		if len(t.children) > 0 {
			dw.close("Otherwise", depth)
		}
	case *TargetElement:
		dw.container("Target", t, t.children, depth,
			attr{"Name", t.Name()},
			attr{"DependsOnTargets", t.DependsOnTargets()},
			attr{"BeforeTargets", t.BeforeTargets()},
			attr{"AfterTargets", t.AfterTargets()},
			attr{"Inputs", t.Inputs()},
			attr{"Outputs", t.Outputs()},
			attr{"Returns", t.Returns()})
	case *TaskElement:
		extra := make([]attr, 0, len(t.parameters)+1)
		for _, param := range t.parameters {
			extra = append(extra, attr{param.Name, param.Value})
		}
		extra = append(extra, attr{"ContinueOnError", t.ContinueOnError()})
		dw.container(t.TaskName(), t, t.children, depth, extra...)
	case *OutputElement:
		dw.indent(depth)
		dw.open("Output", commonAttrs(t,
			attr{"TaskParameter", t.TaskParameter()},
			attr{"ItemName", t.ItemName()},
			attr{"PropertyName", t.PropertyName()}), true)
	case *OnErrorElement:
		dw.indent(depth)
		dw.open("OnError", commonAttrs(t, attr{"ExecuteTargets", t.ExecuteTargets()}), true)
	case *ProjectExtensionsElement:
		dw.indent(depth)
		dw.printf("<ProjectExtensions>%s</ProjectExtensions>", t.Content())
		dw.newline()
	}
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}

func escapeText(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}
