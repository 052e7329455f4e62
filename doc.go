// Package tmpltr is the composition root of the tmpltr tool.
//
// tmpltr merges a structured content file with a Typst template. Templates
// declare what is editable with two markers:
//
//	#editable("quote.number")
//	#editable("quote.total", type: "number", default: 0)
//	#editable-block("blocks.intro", title: "Introduction")[
//	  Thank you for your interest.
//	]
//
// From these markers tmpltr derives a schema of dot-separated paths and
// keeps a YAML content file in line with it: init writes a skeleton,
// validate reports what is missing or malformed, get and set address values
// by path or by block title, and compile hands the content to typst with
// markdown blocks converted to Typst markup. Edits keep the comments,
// order and formatting of the untouched parts of the file.
//
// Usage:
//
//	svc, err := tmpltr.New(tmpltr.WithLogger(logger))
//
//	res, err := svc.Init(ctx, service.InitRequest{Template: "quote.typ"})
//	_, err = svc.SetText(ctx, res.Output, "Introduction", "# Welcome")
//	out, err := svc.Compile(ctx, service.CompileRequest{File: res.Output})
package tmpltr
