package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the tracer name for gomsbuild operations
	TracerName = "github.com/willibrandon/gomsbuild"
)

// Common attribute keys
const (
	AttrProjectPath  = attribute.Key("msbuild.project.path")
	AttrToolsVersion = attribute.Key("msbuild.tools_version")
	AttrImportPath   = attribute.Key("msbuild.import.path")
	AttrTargetName   = attribute.Key("msbuild.target.name")
	AttrOperation    = attribute.Key("msbuild.operation")
	AttrCacheHit     = attribute.Key("msbuild.cache.hit")
	AttrEvaluationID = attribute.Key("msbuild.evaluation.id")
)

// StartEvaluationSpan starts a span for a full project evaluation
func StartEvaluationSpan(ctx context.Context, projectPath, toolsVersion, evaluationID string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "project.evaluate",
		trace.WithAttributes(
			AttrProjectPath.String(projectPath),
			AttrToolsVersion.String(toolsVersion),
			AttrEvaluationID.String(evaluationID),
			AttrOperation.String("evaluate"),
		),
	)
}

// StartParseSpan starts a span for parsing a project document
func StartParseSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "document.parse",
		trace.WithAttributes(
			AttrProjectPath.String(path),
			AttrOperation.String("parse"),
		),
	)
}

// StartImportSpan starts a span for resolving an import
func StartImportSpan(ctx context.Context, resolvedPath, expression string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "import.resolve",
		trace.WithAttributes(
			AttrImportPath.String(resolvedPath),
			attribute.String("msbuild.import.expression", expression),
			AttrOperation.String("import"),
		),
	)
}

// StartCacheLookupSpan starts a span for a document cache lookup
func StartCacheLookupSpan(ctx context.Context, cacheKey string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "cache.lookup",
		trace.WithAttributes(
			attribute.String("cache.key", cacheKey),
		),
	)
}

// RecordCacheHit records cache hit/miss on the current span
func RecordCacheHit(ctx context.Context, hit bool) {
	SetAttributes(ctx, AttrCacheHit.Bool(hit))
}

// StartPlanSpan starts a span for building a target schedule
func StartPlanSpan(ctx context.Context, projectPath string, entryTargets []string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "target.plan",
		trace.WithAttributes(
			AttrProjectPath.String(projectPath),
			attribute.StringSlice("msbuild.entry_targets", entryTargets),
			AttrOperation.String("plan"),
		),
	)
}

// EndSpanWithError ends a span with an error status
func EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
