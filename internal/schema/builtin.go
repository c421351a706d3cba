// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

// Entry returns the schema for entry documents. The recorded facts live
// inside each element of paths and are checked structurally by the store;
// the schema covers the top-level metadata fields.
func Entry() Schema {
	return Schema{
		"id":          {Required: true, Type: TypeString},
		"title":       {Required: true, Type: TypeString},
		"description": {Required: true, Type: TypeString},
		"paths":       {Required: true, Type: TypeList},
		"owner":       {Required: true, Type: TypeString},
		"tags":        {Required: false, Type: TypeList, Default: []any{}},
		"date_added":  {Required: false, Type: TypeTime},
	}
}

// Index returns the schema for index documents.
func Index() Schema {
	return Schema{
		"id":      {Required: true, Type: TypeString},
		"title":   {Required: true, Type: TypeString},
		"scope":   {Required: true, Type: TypeMap},
		"entries": {Required: true, Type: TypeList},
	}
}
