// Package template loads and validates frame stamp templates.
//
// # Overview
//
// A template is a declarative description of what to draw on a frame: a
// list of shape descriptors plus optional defaults and variables. Files may
// hold a single template or several under a "templates" list:
//
//	{
//	  "templates": [
//	    {
//	      "name": "review",
//	      "defaults": {"font_size": 24, "padding": 4},
//	      "variables": {"studio": "ACME"},
//	      "shapes": [
//	        {"type": "rect", "id": "bar", "height": "=$unit * 6", "color": "#000000aa"},
//	        {"type": "label", "parent": "bar", "text": "$studio  $frame", "align_v": "center"}
//	      ]
//	    }
//	  ]
//	}
//
// # Formats
//
// JSON files may contain // line comments and /* block */ comments
// (JSONC). Files ending in .toml are decoded as TOML. Both decode to the
// same tree of maps, lists, strings, numbers and booleans, so a template
// hashes identically regardless of its source format.
//
// # Validation
//
// [Validate] reports structural problems without rendering: unknown shape
// types, invalid or duplicate ids, parent references to shapes not yet in
// scope, and ids on repeated tile children. Parameter values are only
// checked when a frame is rendered.
package template
