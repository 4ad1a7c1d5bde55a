package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/sessions>; rel="sessions"`,
		`</api/v1/sources>; rel="sources"`,
		`</api/v1/archives>; rel="archives"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/sessions>; rel="sessions"`,
	},
	"/api/v1/sessions": {
		`</api/v1/sources>; rel="sources"`,
		`</api/v1/archives>; rel="archives"`,
		`</api/v1/events>; rel="events"`,
	},
	"/api/v1/sessions/{id}": {
		`</api/v1/sessions>; rel="collection"`,
	},
	"/api/v1/sessions/{id}/annotations/{aid}": {
		`</api/v1/sessions>; rel="sessions"`,
	},
	"/api/v1/sources": {
		`</api/v1/sessions>; rel="sessions"`,
		`</api/v1/archives>; rel="archives"`,
	},
	"/api/v1/archives": {
		`</api/v1/sessions>; rel="sessions"`,
		`</api/v1/sources>; rel="sources"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
	},
}

// sessionLinks are related resources of a single session.
var sessionLinks = []string{"annotations", "geojson", "style"}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		if op.Path == "/api/v1/sessions/{id}" && op.Method == "GET" {
			base := ctx.URL().Path
			for _, rel := range sessionLinks {
				ctx.AppendHeader("Link", fmt.Sprintf(`<%s/%s>; rel="%s"`, base, rel, rel))
			}
			for _, a := range sessionActions(base) {
				ctx.AppendHeader("Link", a.LinkHeader())
			}
		}

		// Item endpoints get a self link
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		return v, nil
	}
}
